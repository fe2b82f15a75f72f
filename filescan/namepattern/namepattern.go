// Package namepattern provides a scan provider that rejects uploads whose
// declared file name matches one of a list of glob patterns.
//
// Patterns use the syntax of github.com/gobwas/glob, for example '*.exe' or
// '*.{bat,cmd,com}'. Patterns are compiled once when the provider is created.
package namepattern

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/demiflat/orbeon-forms/filescan"
	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

var configSchema = schemas.MustParse(`{
	"title": "File Name Patterns",
	"type": "object",
	"properties": {
		"deny": {
			"title": "Denied Patterns",
			"description": "Glob patterns, uploads with a file name matching any of these are rejected.",
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		},
		"ignoreCase": {
			"title": "Ignore Case",
			"description": "Match file names case-insensitively.",
			"type": "boolean"
		}
	},
	"required": ["deny"],
	"additionalProperties": false
}`)

type config struct {
	Deny       []string `json:"deny"`
	IgnoreCase bool     `json:"ignoreCase"`
}

type pattern struct {
	text string
	glob glob.Glob
}

type factory struct{}

type provider struct {
	filescan.ProviderBase
	monitor    runtime.Monitor
	patterns   []pattern
	ignoreCase bool
}

type session struct {
	filescan.SessionBase
	decision filescan.Decision
}

func init() {
	filescan.Register("namepattern", factory{})
}

func (factory) ConfigSchema() schemas.Schema {
	return configSchema
}

func (factory) NewProvider(options filescan.ProviderOptions) (filescan.Provider, error) {
	var c config
	if err := schemas.Map(configSchema, options.Config, &c); err != nil {
		return nil, err
	}
	return newProvider(options.Monitor, c.Deny, c.IgnoreCase)
}

func newProvider(monitor runtime.Monitor, deny []string, ignoreCase bool) (*provider, error) {
	p := &provider{
		monitor:    monitor,
		ignoreCase: ignoreCase,
	}
	for _, text := range deny {
		source := text
		if ignoreCase {
			source = strings.ToLower(text)
		}
		g, err := glob.Compile(source)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern '%s'", text)
		}
		p.patterns = append(p.patterns, pattern{text: text, glob: g})
	}
	return p, nil
}

// Match returns the first pattern matching fileName, if any.
func (p *provider) Match(fileName string) (string, bool) {
	name := fileName
	if p.ignoreCase {
		name = strings.ToLower(fileName)
	}
	for _, pat := range p.patterns {
		if pat.glob.Match(name) {
			return pat.text, true
		}
	}
	return "", false
}

func (p *provider) StartStream(fileName string, _ filescan.Headers) (filescan.Session, error) {
	s := &session{}
	if text, ok := p.Match(fileName); ok {
		p.monitor.WithTag("file", fileName).Infof("Rejecting %s, file name matches '%s'", fileName, text)
		s.decision = filescan.Reject
	}
	return s, nil
}

func (s *session) Chunk([]byte) (filescan.Decision, error) {
	return s.decision, nil
}

func (s *session) Complete(string) (filescan.Decision, error) {
	return s.decision, nil
}
