// Package acme implements a simple demo scan provider. It logs calls and will
// reject an uploaded file if its name contains the string "virus".
//
// This obviously is not the right way to determine whether a file contains a
// virus or not, but it does display the lifecycle of a provider and its
// sessions, and it serves as a template for real providers.
package acme

import (
	"strings"

	"github.com/demiflat/orbeon-forms/filescan"
	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/monitoring"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

// DefaultSubstring is the substring that causes a file name to be rejected.
const DefaultSubstring = "virus"

var configSchema = schemas.MustParse(`{
	"title": "Acme Demo Provider",
	"description": "Rejects files whose declared name contains a given substring.",
	"type": "object",
	"properties": {
		"substring": {
			"title": "Rejected Substring",
			"description": "Case-sensitive substring of the file name that causes rejection, defaults to 'virus'.",
			"type": "string",
			"minLength": 1
		}
	},
	"additionalProperties": false
}`)

type config struct {
	Substring string `json:"substring"`
}

type factory struct{}

type provider struct {
	monitor   runtime.Monitor
	substring string
}

type session struct {
	monitor   runtime.Monitor
	substring string
	fileName  string
	headers   filescan.Headers
}

func init() {
	filescan.Register("acme", factory{})
}

// New returns the demo provider with the default substring, logging to a
// default monitor. It takes no arguments, such that hosts can construct it
// without any configuration.
func New() filescan.Provider {
	return newProvider(monitoring.PreConfig(), DefaultSubstring)
}

func newProvider(monitor runtime.Monitor, substring string) *provider {
	monitor.Info("Instantiating acme file scan provider")
	return &provider{
		monitor:   monitor,
		substring: substring,
	}
}

func (factory) ConfigSchema() schemas.Schema {
	return configSchema
}

func (factory) NewProvider(options filescan.ProviderOptions) (filescan.Provider, error) {
	var c config
	if options.Config != nil {
		if err := schemas.Map(configSchema, options.Config, &c); err != nil {
			return nil, err
		}
	}
	if c.Substring == "" {
		c.Substring = DefaultSubstring
	}
	return newProvider(options.Monitor, c.Substring), nil
}

func (p *provider) Init() error {
	// Initialize scan engine here if needed
	p.monitor.Info("Initializing acme file scan provider")
	return nil
}

func (p *provider) Destroy() error {
	// Release scan engine and other resources here if needed
	p.monitor.Info("Destroying acme file scan provider")
	return nil
}

func (p *provider) StartStream(fileName string, headers filescan.Headers) (filescan.Session, error) {
	return &session{
		monitor:   p.monitor.WithTag("file", fileName),
		substring: p.substring,
		fileName:  fileName,
		headers:   headers,
	}, nil
}

func (s *session) Chunk(data []byte) (filescan.Decision, error) {
	s.monitor.Infof("Received %d bytes to scan for %s", len(data), s.fileName)
	return filescan.Accept, nil
}

func (s *session) Complete(string) (filescan.Decision, error) {
	s.monitor.Infof("Completing scan for %s", s.fileName)
	return Decide(s.fileName, s.substring), nil
}

func (s *session) Abort() {
	s.monitor.Infof("Aborting scan for %s", s.fileName)
}

// Decide returns Reject if fileName contains substring, the match is exact
// and case-sensitive.
func Decide(fileName, substring string) filescan.Decision {
	if strings.Contains(fileName, substring) {
		return filescan.Reject
	}
	return filescan.Accept
}
