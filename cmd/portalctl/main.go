// Command portalctl is a terminal client for the portal API. It keeps the
// session token between runs and applies the same route guard as the web
// panel before every protected command.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
