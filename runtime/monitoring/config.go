package monitoring

import (
	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/mocks"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

var mockConfigSchema = schemas.MustParse(`{
	"type": "object",
	"properties": {
		"type": {"enum": ["mock"]},
		"panicOnError": {
			"title": "Panic On Error",
			"description": "Use a mock implementation of the monitor that panics on errors.",
			"type": "boolean"
		}
	},
	"required": ["type", "panicOnError"],
	"additionalProperties": false
}`)

var monitorConfigSchema = schemas.MustParse(`{
	"type": "object",
	"properties": {
		"logLevel": {
			"title": "Log Level",
			"enum": ["trace", "debug", "info", "warning", "error", "fatal", "panic"]
		},
		"format": {
			"title": "Log Format",
			"description": "Write log lines as 'text' or 'json'.",
			"enum": ["text", "json"]
		},
		"tags": {
			"title": "Tags",
			"description": "Tags that should be applied to all log entries.",
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	},
	"required": ["logLevel"],
	"additionalProperties": false
}`)

// ConfigSchema for configuration given to New()
var ConfigSchema = schemas.Schema{
	"oneOf": []interface{}{
		map[string]interface{}(mockConfigSchema),
		map[string]interface{}(monitorConfigSchema),
	},
}

// PreConfig returns a default monitor for use before the configuration is
// loaded. This logs at the INFO level to stderr.
func PreConfig() runtime.Monitor {
	return NewLoggingMonitor("info", map[string]string{}, "text")
}

// New returns a runtime.Monitor strategy from config matching ConfigSchema.
func New(config interface{}) runtime.Monitor {
	schemas.MustValidate(ConfigSchema, config)

	var c struct {
		LogLevel string            `json:"logLevel"`
		Format   string            `json:"format"`
		Tags     map[string]string `json:"tags"`
	}
	if schemas.Map(monitorConfigSchema, config, &c) == nil {
		return NewLoggingMonitor(c.LogLevel, c.Tags, c.Format)
	}

	var m struct {
		Type         string `json:"type"`
		PanicOnError bool   `json:"panicOnError"`
	}
	if schemas.Map(mockConfigSchema, config, &m) == nil {
		return mocks.NewMockMonitor(m.PanicOnError)
	}

	panic("monitor should have matched one of the options, this should be impossible")
}
