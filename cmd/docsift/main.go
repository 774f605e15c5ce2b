// Package main provides the entry point for the docsift CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/docsift/cmd/docsift/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
