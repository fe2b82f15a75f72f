// Package commands exposes a run method for main() to call
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/docopt/docopt-go"
)

// Name of the command line utility, as used in usage strings.
const Name = "filescan"

// Usage returns the top-level usage string listing all registered commands.
func Usage() string {
	usage := "usage: " + Name + " <command> [<args>...]\n"
	usage += "\n"
	usage += "Commands available:\n"
	providers := Commands()
	names := Names()
	maxNameLength := 0
	for _, name := range names {
		if len(name) > maxNameLength {
			maxNameLength = len(name)
		}
	}
	for _, name := range names {
		usage += "\n    " + pad(name, maxNameLength) + " " + providers[name].Summary()
	}
	usage += "\n"
	return usage
}

// Run will parse command line arguments and run available commands, argv
// defaults to os.Args[1:] if nil. Run exits the process when the command is
// done, non-zero if the command failed.
func Run(argv []string) {
	usage := Usage()

	// Parse arguments
	arguments, _ := docopt.Parse(usage, argv, true, Name, true)
	cmd := arguments["<command>"].(string)

	// Find command provider
	provider, ok := Lookup(cmd)
	if !ok {
		fmt.Fprintln(os.Stderr, "Unknown command: ", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	// Parse args for command provider
	subArguments, _ := docopt.Parse(
		provider.Usage(), append([]string{cmd}, arguments["<args>"].([]string)...),
		true, Name, false,
	)
	// Execute provider with parsed args
	if !provider.Execute(subArguments) {
		os.Exit(1)
	}
	os.Exit(0)
}

func pad(s string, length int) string {
	p := length - len(s)
	if p < 0 {
		p = 0
	}
	return s + strings.Repeat(" ", p)
}
