// Package main is the entry point for the sheetcalc CLI.
package main

import (
	"os"

	"github.com/vogtb/sheetcalc/cmd/sheetcalc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
