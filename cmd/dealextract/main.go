// Package main is the entry point for the dealextract CLI.
package main

import (
	"os"

	"github.com/smartdeal/dealextract/cmd/dealextract/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
