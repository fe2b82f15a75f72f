// Package mimetype provides a scan provider that detects the content type of
// an upload from its first bytes, and rejects types that aren't allowed.
//
// Detection uses github.com/gabriel-vasile/mimetype. Types in the allow and
// deny lists may be glob patterns like 'image/*', a type also matches the
// patterns of the types it is a subtype of. For example a .docx file matches
// 'application/zip'.
package mimetype

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/demiflat/orbeon-forms/filescan"
	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

const defaultSniffBytes = 3072

var configSchema = schemas.MustParse(`{
	"title": "Content Type Detection",
	"type": "object",
	"properties": {
		"sniffBytes": {
			"title": "Sniffed Bytes",
			"description": "Number of bytes buffered from the start of the upload for detection, defaults to 3072.",
			"type": "integer",
			"minimum": 1,
			"maximum": 1048576
		},
		"allow": {
			"title": "Allowed Types",
			"description": "If given, uploads of other types are rejected.",
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		},
		"deny": {
			"title": "Denied Types",
			"description": "Uploads of these types are rejected.",
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		}
	},
	"additionalProperties": false
}`)

type config struct {
	SniffBytes int      `json:"sniffBytes"`
	Allow      []string `json:"allow"`
	Deny       []string `json:"deny"`
}

type matcher struct {
	text string
	glob glob.Glob
}

type factory struct{}

type provider struct {
	filescan.ProviderBase
	monitor    runtime.Monitor
	sniffBytes int
	allow      []matcher
	deny       []matcher
}

type session struct {
	p        *provider
	monitor  runtime.Monitor
	fileName string
	buf      []byte
	sniffed  bool
	decision filescan.Decision
}

func init() {
	filescan.Register("mimetype", factory{})
}

func (factory) ConfigSchema() schemas.Schema {
	return configSchema
}

func (factory) NewProvider(options filescan.ProviderOptions) (filescan.Provider, error) {
	var c config
	if err := schemas.Map(configSchema, options.Config, &c); err != nil {
		return nil, err
	}
	if c.SniffBytes == 0 {
		c.SniffBytes = defaultSniffBytes
	}
	p := &provider{
		monitor:    options.Monitor,
		sniffBytes: c.SniffBytes,
	}
	var err error
	if p.allow, err = compile(c.Allow); err != nil {
		return nil, err
	}
	if p.deny, err = compile(c.Deny); err != nil {
		return nil, err
	}
	return p, nil
}

func compile(patterns []string) ([]matcher, error) {
	var result []matcher
	for _, text := range patterns {
		g, err := glob.Compile(strings.ToLower(text), '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid content type pattern '%s'", text)
		}
		result = append(result, matcher{text: text, glob: g})
	}
	return result, nil
}

// match returns the first pattern matching m or a type m is a subtype of,
// ignoring the root type application/octet-stream for anything but itself.
func match(m *mimetype.MIME, matchers []matcher) (string, bool) {
	for t := m; t != nil; t = t.Parent() {
		if t != m && t.Parent() == nil {
			break
		}
		base := strings.ToLower(strings.TrimSpace(strings.SplitN(t.String(), ";", 2)[0]))
		for _, mt := range matchers {
			if mt.glob.Match(base) || t.Is(mt.text) {
				return mt.text, true
			}
		}
	}
	return "", false
}

// Decide returns the decision for a detected content type.
func (p *provider) Decide(m *mimetype.MIME) (filescan.Decision, string) {
	if text, ok := match(m, p.deny); ok {
		return filescan.Reject, "type matches denied '" + text + "'"
	}
	if len(p.allow) > 0 {
		if _, ok := match(m, p.allow); !ok {
			return filescan.Reject, "type isn't allowed"
		}
	}
	return filescan.Accept, ""
}

func (p *provider) StartStream(fileName string, _ filescan.Headers) (filescan.Session, error) {
	return &session{
		p:        p,
		monitor:  p.monitor.WithTag("file", fileName),
		fileName: fileName,
	}, nil
}

func (s *session) Chunk(data []byte) (filescan.Decision, error) {
	if s.sniffed {
		return s.decision, nil
	}
	if n := s.p.sniffBytes - len(s.buf); n < len(data) {
		data = data[:n]
	}
	s.buf = append(s.buf, data...)
	if len(s.buf) >= s.p.sniffBytes {
		s.detect(mimetype.Detect(s.buf))
	}
	return s.decision, nil
}

func (s *session) Complete(filePath string) (filescan.Decision, error) {
	if s.sniffed {
		return s.decision, nil
	}
	if len(s.buf) > 0 || filePath == "" {
		s.detect(mimetype.Detect(s.buf))
		return s.decision, nil
	}

	// Nothing was streamed, so look at the stored file instead
	m, err := mimetype.DetectFile(filePath)
	if err != nil {
		return filescan.Reject, runtime.WrapEngineError(runtime.EngineUnavailable, err, "cannot read uploaded file")
	}
	s.detect(m)
	return s.decision, nil
}

func (s *session) Abort() {
	s.buf = nil
}

func (s *session) detect(m *mimetype.MIME) {
	s.sniffed = true
	s.buf = nil
	var reason string
	s.decision, reason = s.p.Decide(m)
	if s.decision == filescan.Reject {
		s.monitor.Infof("Rejecting %s detected as %s, %s", s.fileName, m.String(), reason)
	} else {
		s.monitor.Debugf("Detected %s as %s", s.fileName, m.String())
	}
}
