// Command talkdata answers natural-language questions with SQL.
package main

import (
	"os"

	"github.com/talkdata-labs/talkdata/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
