// Package main hosts the main function for the filescan utility.
package main

import (
	"github.com/demiflat/orbeon-forms/commands"

	_ "github.com/demiflat/orbeon-forms/commands/help"
	_ "github.com/demiflat/orbeon-forms/commands/scan"
	_ "github.com/demiflat/orbeon-forms/commands/schema"
	_ "github.com/demiflat/orbeon-forms/commands/version"
	_ "github.com/demiflat/orbeon-forms/config/abs"
	_ "github.com/demiflat/orbeon-forms/config/env"
	_ "github.com/demiflat/orbeon-forms/filescan/acme"
	_ "github.com/demiflat/orbeon-forms/filescan/digest"
	_ "github.com/demiflat/orbeon-forms/filescan/maxsize"
	_ "github.com/demiflat/orbeon-forms/filescan/mimetype"
	_ "github.com/demiflat/orbeon-forms/filescan/namepattern"
)

func main() {
	commands.Run(nil)
}
