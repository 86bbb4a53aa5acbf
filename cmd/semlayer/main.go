package main

import (
	"os"

	"github.com/semlayer/semlayer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
