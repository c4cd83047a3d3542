// Package main is the entry point for the majordomo CLI.
package main

import (
	"os"

	"github.com/majordomo-ai/majordomo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
