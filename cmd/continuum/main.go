package main

import (
	"os"

	"github.com/lugondev/go-continuum/cmd/continuum/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
