package main

import (
	"os"

	"github.com/swagat2001/systematic-sector-rotation/cmd/quant/commands"
)

// main is the entry point for the unified CLI: go run ./cmd/quant [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
