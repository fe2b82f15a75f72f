package commands

import (
	"fmt"
	"sort"
	"sync"
)

var (
	mCommands = sync.Mutex{}
	commands  = map[string]CommandProvider{}
)

// CommandProvider is a sub-command of filescan, such as 'scan', 'schema' or
// 'version'. Sub-packages register themselves from func init() and main
// imports them for side effects.
type CommandProvider interface {
	// Summary is the one-line description shown in the command list.
	Summary() string
	// Usage returns the docopt usage string, used to parse arguments.
	Usage() string
	// Execute runs the command with parsed docopt arguments, filescan exits
	// non-zero if it returns false.
	Execute(args map[string]interface{}) bool
}

// Register a CommandProvider under name, panics if name is already taken.
func Register(name string, provider CommandProvider) {
	mCommands.Lock()
	defer mCommands.Unlock()

	if _, ok := commands[name]; ok {
		panic(fmt.Sprintf("Command name: '%s' is already in use!", name))
	}
	commands[name] = provider
}

// Commands returns a map from name to registered CommandProvider.
func Commands() map[string]CommandProvider {
	mCommands.Lock()
	defer mCommands.Unlock()

	m := map[string]CommandProvider{}
	for name, provider := range commands {
		m[name] = provider
	}
	return m
}

// Lookup returns the command registered under name.
func Lookup(name string) (CommandProvider, bool) {
	mCommands.Lock()
	defer mCommands.Unlock()

	provider, ok := commands[name]
	return provider, ok
}

// Names returns the sorted names of registered commands.
func Names() []string {
	mCommands.Lock()
	defer mCommands.Unlock()

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
