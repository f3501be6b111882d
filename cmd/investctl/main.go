package main

import (
	"os"

	"github.com/regionspay/invest-engine/cmd/investctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
