package main

import (
	"os"

	"github.com/psantana5/stratum/cmd/stratum/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
