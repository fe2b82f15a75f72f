// Package maxsize provides a scan provider that rejects uploads larger than a
// configured number of bytes, as soon as the limit is exceeded.
package maxsize

import (
	"os"

	"github.com/demiflat/orbeon-forms/filescan"
	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

var configSchema = schemas.MustParse(`{
	"title": "Maximum Upload Size",
	"type": "object",
	"properties": {
		"maxBytes": {
			"title": "Maximum Bytes",
			"description": "Uploads with more bytes than this are rejected.",
			"type": "integer",
			"minimum": 0
		}
	},
	"required": ["maxBytes"],
	"additionalProperties": false
}`)

type config struct {
	MaxBytes int64 `json:"maxBytes"`
}

type factory struct{}

type provider struct {
	filescan.ProviderBase
	monitor  runtime.Monitor
	maxBytes int64
}

type session struct {
	monitor  runtime.Monitor
	maxBytes int64
	fileName string
	received int64
}

func init() {
	filescan.Register("maxsize", factory{})
}

func (factory) ConfigSchema() schemas.Schema {
	return configSchema
}

func (factory) NewProvider(options filescan.ProviderOptions) (filescan.Provider, error) {
	var c config
	if err := schemas.Map(configSchema, options.Config, &c); err != nil {
		return nil, err
	}
	return &provider{
		monitor:  options.Monitor,
		maxBytes: c.MaxBytes,
	}, nil
}

func (p *provider) StartStream(fileName string, _ filescan.Headers) (filescan.Session, error) {
	return &session{
		monitor:  p.monitor.WithTag("file", fileName),
		maxBytes: p.maxBytes,
		fileName: fileName,
	}, nil
}

func (s *session) Chunk(data []byte) (filescan.Decision, error) {
	s.received += int64(len(data))
	if s.received > s.maxBytes {
		s.monitor.Infof("Rejecting %s, received %d bytes exceeding limit of %d", s.fileName, s.received, s.maxBytes)
		return filescan.Reject, nil
	}
	return filescan.Accept, nil
}

func (s *session) Complete(filePath string) (filescan.Decision, error) {
	size := s.received
	// Hosts that don't stream content only give us the stored file
	if size == 0 && filePath != "" {
		info, err := os.Stat(filePath)
		if err != nil {
			return filescan.Reject, runtime.WrapEngineError(runtime.EngineUnavailable, err, "cannot stat uploaded file")
		}
		size = info.Size()
	}
	if size > s.maxBytes {
		s.monitor.Infof("Rejecting %s, size %d bytes exceeds limit of %d", s.fileName, size, s.maxBytes)
		return filescan.Reject, nil
	}
	return filescan.Accept, nil
}

func (s *session) Abort() {}
