// Command consolectl is the terminal front end of the consent console.
package main

import (
	"os"

	"github.com/consentdesk/console/cmd/consolectl/commands"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	if err := commands.NewRootCmd(Version).Execute(); err != nil {
		os.Exit(1)
	}
}
