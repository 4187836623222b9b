// Package main is the entry point for pushbridge.
package main

import (
	"fmt"
	"os"

	"github.com/pushbridge/pushbridge/cmd/pushbridge/cmd"
)

// Version information (set via ldflags at build time).
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, buildTime)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
