// Package configenv implements a TransformationProvider that replaces objects on
// the form: {$env: "VAR"} with the value of the environment variable VAR.
//
// An optional 'type' property may be given to parse the value as 'number' or
// 'bool', for example {$env: "MAX_BYTES", type: "number"}.
package configenv

import (
	"fmt"
	"os"
	"strconv"

	"github.com/demiflat/orbeon-forms/config"
)

type provider struct{}

func init() {
	config.Register("env", provider{})
}

func (provider) Transform(cfg map[string]interface{}) error {
	return config.ReplaceObjects(cfg, "env", func(val map[string]interface{}) (interface{}, error) {
		name := val["$env"].(string)
		value := os.Getenv(name)
		switch val["type"] {
		case nil, "string":
			return value, nil
		case "number":
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("environment variable %s is not a number: '%s'", name, value)
			}
			return n, nil
		case "bool":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("environment variable %s is not a bool: '%s'", name, value)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("unsupported type '%v' for environment variable %s", val["type"], name)
		}
	})
}
