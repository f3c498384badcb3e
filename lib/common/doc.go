// Package common holds the process wide plumbing shared by the CLI and the
// library packages: the logger factory that formats every package logger.
package common
