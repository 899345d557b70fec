// Command stagehand runs SQL staging models over raw extracted tables.
package main

import (
	"os"

	"github.com/meltworks/stagehand/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
