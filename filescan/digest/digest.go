// Package digest provides a scan provider that rejects uploads with content
// matching a blocklist of known digests.
//
// Content is streamed through a digester as chunks arrive, so no part of the
// upload is buffered. Blocklist entries use the format of
// github.com/opencontainers/go-digest, for example 'sha256:e3b0c442...'.
package digest

import (
	_ "crypto/sha256" // register the canonical algorithm
	"io"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/demiflat/orbeon-forms/filescan"
	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

var configSchema = schemas.MustParse(`{
	"title": "Digest Blocklist",
	"type": "object",
	"properties": {
		"blocklist": {
			"title": "Blocked Digests",
			"description": "Digests of content that is rejected, such as 'sha256:<hex>'.",
			"type": "array",
			"items": {"type": "string", "pattern": "^[a-z0-9]+(?:[.+_-][a-z0-9]+)*:[a-zA-Z0-9=_-]+$"}
		}
	},
	"required": ["blocklist"],
	"additionalProperties": false
}`)

type config struct {
	Blocklist []string `json:"blocklist"`
}

type factory struct{}

type provider struct {
	filescan.ProviderBase
	monitor   runtime.Monitor
	algorithm digest.Algorithm
	blocklist map[digest.Digest]bool
}

type session struct {
	p        *provider
	monitor  runtime.Monitor
	fileName string
	digester digest.Digester
	received int64
}

func init() {
	filescan.Register("digest", factory{})
}

func (factory) ConfigSchema() schemas.Schema {
	return configSchema
}

func (factory) NewProvider(options filescan.ProviderOptions) (filescan.Provider, error) {
	var c config
	if err := schemas.Map(configSchema, options.Config, &c); err != nil {
		return nil, err
	}
	return newProvider(options.Monitor, c.Blocklist)
}

func newProvider(monitor runtime.Monitor, blocklist []string) (*provider, error) {
	p := &provider{
		monitor:   monitor,
		algorithm: digest.Canonical,
		blocklist: make(map[digest.Digest]bool, len(blocklist)),
	}
	for _, s := range blocklist {
		d, err := digest.Parse(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid digest '%s'", s)
		}
		if d.Algorithm() != p.algorithm {
			return nil, errors.Errorf("digest '%s' doesn't use %s", s, p.algorithm)
		}
		p.blocklist[d] = true
	}
	return p, nil
}

// Blocked returns true if d is in the blocklist.
func (p *provider) Blocked(d digest.Digest) bool {
	return p.blocklist[d]
}

func (p *provider) StartStream(fileName string, _ filescan.Headers) (filescan.Session, error) {
	return &session{
		p:        p,
		monitor:  p.monitor.WithTag("file", fileName),
		fileName: fileName,
		digester: p.algorithm.Digester(),
	}, nil
}

func (s *session) Chunk(data []byte) (filescan.Decision, error) {
	// hash.Hash never returns an error from Write
	s.digester.Hash().Write(data)
	s.received += int64(len(data))
	return filescan.Accept, nil
}

func (s *session) Complete(filePath string) (filescan.Decision, error) {
	if s.received == 0 && filePath != "" {
		if err := s.digestFile(filePath); err != nil {
			return filescan.Reject, err
		}
	}
	d := s.digester.Digest()
	if s.p.Blocked(d) {
		s.monitor.Infof("Rejecting %s, content digest %s is blocked", s.fileName, d)
		return filescan.Reject, nil
	}
	s.monitor.Debugf("Digest of %s is %s", s.fileName, d)
	return filescan.Accept, nil
}

func (s *session) digestFile(filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return runtime.WrapEngineError(runtime.EngineUnavailable, err, "cannot open uploaded file")
	}
	defer f.Close()
	if _, err := io.Copy(s.digester.Hash(), f); err != nil {
		return runtime.WrapEngineError(runtime.EngineUnavailable, err, "cannot read uploaded file")
	}
	return nil
}

func (s *session) Abort() {}
