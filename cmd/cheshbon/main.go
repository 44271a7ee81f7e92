// Command cheshbon is the CLI entry point: deterministic invocation parsing
// and file I/O live here and nowhere else in the module.
package main

import (
	"os"

	"cheshbon/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
