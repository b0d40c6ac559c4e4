// Package main is the entry point for the fieldsense operator CLI.
package main

import (
	"os"

	"github.com/good-yellow-bee/fieldsense/cmd/fieldctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
