// Package main provides the entry point for the ftagsd CLI.
package main

import (
	"os"

	"github.com/0x8000-0000/ftagsd/cmd/ftagsd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
