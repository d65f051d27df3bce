// Package main is the entry point for the lakeingest binary.
package main

import (
	"os"

	cli "lake-ingest/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
