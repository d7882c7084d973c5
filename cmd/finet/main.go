// Package main is the entry point for the finet CLI.
package main

import (
	"os"

	"github.com/dvoloshyn/finet/cmd/finet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
