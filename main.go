package main

import "github.com/ValentinKolb/ftlsim/cmd"

func main() {
	cmd.Execute()
}
