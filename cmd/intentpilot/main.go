package main

import (
	"os"

	"github.com/MEKXH/intentpilot/cmd/intentpilot/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
