package version

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/demiflat/orbeon-forms/commands"
	"github.com/demiflat/orbeon-forms/filescan"
)

func init() {
	commands.Register("version", cmd{})
}

type cmd struct{}

func (cmd) Summary() string {
	return "Display version and the scan providers built in"
}

func (cmd) Usage() string {
	return `
filescan version displays the version and git revision of this build, and the
names of the scan providers compiled into it. Include the output when
reporting a problem with a scan decision.

usage: filescan version [options] [semver|revision|providers]

options:
  -j --json     Print as JSON.
  -h --help     Show this screen.
`
}

// Info collects version information, fields are left out if not selected.
type Info struct {
	Version   string   `json:"version,omitempty"`
	Revision  string   `json:"revision,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// Collect returns version information for the selection, one of "semver",
// "revision", "providers" or "" for everything.
func Collect(selection string) Info {
	var info Info
	if selection == "" || selection == "semver" {
		info.Version = orUnknown(Version())
	}
	if selection == "" || selection == "revision" {
		info.Revision = orUnknown(Revision())
	}
	if selection == "" || selection == "providers" {
		for name := range filescan.Providers() {
			info.Providers = append(info.Providers, name)
		}
		sort.Strings(info.Providers)
	}
	return info
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func (cmd) Execute(arguments map[string]interface{}) bool {
	formatJSON, _ := arguments["--json"].(bool)

	selection := ""
	for _, s := range []string{"semver", "revision", "providers"} {
		if v, _ := arguments[s].(bool); v {
			selection = s
		}
	}
	info := Collect(selection)

	// Print as JSON or text
	if formatJSON {
		data, _ := json.Marshal(info)
		fmt.Println(string(data))
		return true
	}
	if info.Version != "" {
		fmt.Printf("version:   %s\n", info.Version)
	}
	if info.Revision != "" {
		fmt.Printf("revision:  %s\n", info.Revision)
	}
	if selection == "" || selection == "providers" {
		fmt.Printf("providers: %s\n", strings.Join(info.Providers, ", "))
	}
	return true
}
