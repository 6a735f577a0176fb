// Package main provides the entry point for the postsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/postsearch/cmd/postsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
