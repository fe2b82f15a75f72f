// Package schemas wraps JSON schema validation for configuration objects.
//
// Schemas are kept in their decoded form, such that a schema can be embedded
// as a property of another schema, for example when the configuration schema
// for a provider is added to the configuration schema of the manager.
package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const resourceURL = "schema.json"

// Schema is a decoded JSON schema document.
type Schema = map[string]interface{}

// MustParse decodes a JSON schema document, it panics if the document isn't
// valid JSON or isn't a JSON schema. This is intended for static schemas
// declared in package variables.
func MustParse(text string) Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		panic(fmt.Sprintf("invalid JSON in schema, error: %s", err))
	}
	s, ok := doc.(map[string]interface{})
	if !ok {
		panic("schema must be a JSON object")
	}
	if _, err := compile(s); err != nil {
		panic(fmt.Sprintf("invalid schema, error: %s", err))
	}
	return s
}

func compile(s Schema) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, s); err != nil {
		return nil, errors.Wrap(err, "failed to add schema resource")
	}
	return c.Compile(resourceURL)
}

// normalize turns value into the generic JSON types the validator expects.
func normalize(value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "value is not JSON compatible")
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// Validate returns an error if value doesn't satisfy the schema s.
func Validate(s Schema, value interface{}) error {
	compiled, err := compile(s)
	if err != nil {
		return errors.Wrap(err, "failed to compile schema")
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}
	if err := compiled.Validate(v); err != nil {
		return errors.Wrap(err, "schema violation")
	}
	return nil
}

// MustValidate panics if value doesn't satisfy the schema s.
func MustValidate(s Schema, value interface{}) {
	if err := Validate(s, value); err != nil {
		panic(fmt.Sprintf("value doesn't satisfy schema, error: %s", err))
	}
}

// Map validates value against s and maps it into target, which must be a
// pointer to a struct with json tags matching the schema properties.
func Map(s Schema, value interface{}, target interface{}) error {
	if err := Validate(s, value); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "value is not JSON compatible")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errors.Wrap(err, "value doesn't fit target type")
	}
	return nil
}
