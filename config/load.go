package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/demiflat/orbeon-forms/filescan"
	"github.com/demiflat/orbeon-forms/runtime/monitoring"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

// ConfigSchema returns the schema for the 'config' property of the
// configuration file.
func ConfigSchema() schemas.Schema {
	return schemas.Schema{
		"title":       "File Scan Configuration",
		"description": "Configuration of monitoring and of the scan providers.",
		"type":        "object",
		"properties": map[string]interface{}{
			"monitor":  monitoring.ConfigSchema,
			"filescan": filescan.ManagerConfigSchema(),
		},
		"required":             []interface{}{"filescan"},
		"additionalProperties": false,
	}
}

// Schema returns the configuration file schema
func Schema() schemas.Schema {
	names := Names()
	items := map[string]interface{}{"type": "string"}
	if len(names) > 0 {
		enum := make([]interface{}, len(names))
		for i, name := range names {
			enum[i] = name
		}
		items["enum"] = enum
	}
	return schemas.Schema{
		"title":       "Configuration File",
		"description": "Initial configuration and transformations to run.",
		"type":        "object",
		"properties": map[string]interface{}{
			"transforms": map[string]interface{}{
				"title":       "Configuration Transformations",
				"description": "Ordered list of transformations to run on the config.",
				"type":        "array",
				"items":       items,
			},
			"config": ConfigSchema(),
		},
		"required": []interface{}{"config"},
	}
}

// Load configuration from YAML config object.
func Load(data []byte) (map[string]interface{}, error) {
	var config interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML config")
	}
	config = convertSimpleJSONTypes(config)

	// Extract transforms and config
	c, ok := config.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected top-level config value to be an object")
	}
	result, ok := c["config"].(map[string]interface{})
	if !ok {
		return nil, errors.New("expected 'config' property to be an object")
	}

	if ct, ok := c["transforms"]; ok {
		var transforms []string
		transformsSchema := Schema()["properties"].(map[string]interface{})["transforms"].(map[string]interface{})
		if err := schemas.Map(transformsSchema, ct, &transforms); err != nil {
			return nil, errors.Wrap(err, "'transforms' schema violated")
		}

		if err := applyTransforms(transforms, result); err != nil {
			return nil, err
		}
	}

	if err := schemas.Validate(ConfigSchema(), result); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadFromFile will load configuration options from a YAML file and validate
// against the config file schema, returning an error message explaining what
// went wrong if unsuccessful.
func LoadFromFile(filename string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file '%s'", filename)
	}
	return Load(data)
}

// convertSimpleJSONTypes rewrites the types yaml.Unmarshal produces into the
// types encoding/json would have produced.
func convertSimpleJSONTypes(val interface{}) interface{} {
	switch val := val.(type) {
	case []interface{}:
		r := make([]interface{}, len(val))
		for i, v := range val {
			r[i] = convertSimpleJSONTypes(v)
		}
		return r
	case map[interface{}]interface{}:
		r := make(map[string]interface{}, len(val))
		for k, v := range val {
			s, ok := k.(string)
			if !ok {
				s = fmt.Sprintf("%v", k)
			}
			r[s] = convertSimpleJSONTypes(v)
		}
		return r
	case map[string]interface{}:
		r := make(map[string]interface{}, len(val))
		for k, v := range val {
			r[k] = convertSimpleJSONTypes(v)
		}
		return r
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}

// jsonCompatTypes returns an error if val contains types that encoding/json
// wouldn't produce when decoding into an interface{}.
func jsonCompatTypes(val interface{}) error {
	switch val := val.(type) {
	case []interface{}:
		for _, v := range val {
			if err := jsonCompatTypes(v); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		for k, v := range val {
			if err := jsonCompatTypes(v); err != nil {
				return errors.Wrapf(err, "at key '%s'", k)
			}
		}
	case string, float64, bool, nil:
	default:
		return fmt.Errorf("type %T is not JSON compatible", val)
	}
	return nil
}
