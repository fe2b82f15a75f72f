package schema

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/demiflat/orbeon-forms/commands"
	"github.com/demiflat/orbeon-forms/config"
)

func init() {
	commands.Register("schema", cmd{})
}

type cmd struct{}

func (cmd) Summary() string {
	return "Dump schema for the configuration file"
}

func (cmd) Usage() string {
	return `
filescan schema can be used to export the JSON schema document for the
configuration file, including the configuration of all providers.

usage:
  filescan schema [options]

options:
  -f --format <format>          Set the format json or yaml [default: json].
  -o --output <file>            Write output to a file [default: -].
`
}

func (cmd) Execute(args map[string]interface{}) bool {
	data, err := Render(args["--format"].(string))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}

	// Write output file or write to stdout
	output := args["--output"].(string)
	if output != "-" {
		err = os.WriteFile(output, data, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write file: '%s', error: %s\n", output, err)
			return false
		}
	} else {
		fmt.Println(string(data))
	}

	return true
}

// Render returns the configuration file schema formatted as 'json' or 'yaml'.
func Render(format string) ([]byte, error) {
	data, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		panic(fmt.Sprintf("Internal error, failed to serialize, error: %s", err))
	}
	switch format {
	case "json":
		return data, nil
	case "yaml":
		// Round-trip through JSON, such that numbers and nested schemas are
		// plain values
		var schema interface{}
		if err := json.Unmarshal(data, &schema); err != nil {
			panic(fmt.Sprintf("Internal error, failed to parse, error: %s", err))
		}
		return yaml.Marshal(schema)
	default:
		return nil, errors.Errorf("unsupported format '%s', expected json or yaml", format)
	}
}
