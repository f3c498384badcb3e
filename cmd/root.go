package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/ftlsim/cmd/simulate"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ftlsim",
		Short: "flash translation layer simulator",
		Long: fmt.Sprintf(`ftlsim (v%s)

A simulator for the flash translation layer of a NAND SSD. It models
page mapping, line and placement based allocation, garbage collection
and a cached mapping table, and reports latencies and write amplification
for synthetic workloads.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ftlsim",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ftlsim v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(simulate.SimulateCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
