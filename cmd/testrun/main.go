package main

import (
	"os"

	"github.com/Iron-Ham/testrun/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
