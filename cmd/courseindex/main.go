// Package main provides the entry point for the courseindex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/courseindex/cmd/courseindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
