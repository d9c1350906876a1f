// Command ecoctl queries a gridinsight dashboard from the terminal.
//
// Usage:
//
//	ecoctl insight carbon-intensity --zone PT --quantity 250
//	ecoctl breakdown production --hours 6
//	ecoctl series renewable-percentage --hours 24 --output json
//
// Flags can also be set through ECOCTL_* environment variables or a
// .ecoctl.yaml file in the current or home directory.
package main

import (
	"fmt"
	"os"
)

// Set by the release build.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
