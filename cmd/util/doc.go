// Package util holds the helpers shared by the ftlsim commands: help text
// wrapping, device flags and the viper backed configuration loading.
package util
