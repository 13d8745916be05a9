// Command diskscan reports disk usage of a directory tree and finds duplicate files.
package main

import (
	"fmt"
	"os"

	"github.com/idelchi/diskscan/internal/cli"
)

// Is set during compilation.
var version = "unknown - unofficial build"

func main() {
	if err := cli.New(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

		os.Exit(1)
	}
}
