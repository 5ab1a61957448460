package main

import (
	"os"

	"github.com/arbstack/bscarb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
