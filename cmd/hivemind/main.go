// Package main is the entry point for the hivemind CLI.
package main

import (
	"os"

	"github.com/flavumhive/hivemind/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
