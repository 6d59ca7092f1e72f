package main

import (
	"os"

	"github.com/verticore/liftd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
