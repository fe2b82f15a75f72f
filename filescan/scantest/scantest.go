// Package scantest provides a declarative test case for scan providers.
//
// A Case constructs a provider through the registry, starts a stream, feeds
// it chunks and completes or aborts it, asserting the decisions along the way.
package scantest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demiflat/orbeon-forms/filescan"
	"github.com/demiflat/orbeon-forms/runtime/mocks"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

// The Case is a test case for a scan provider.
type Case struct {
	// The provider under test, this should be the name that is registered
	Provider string
	// JSON configuration for the provider, defaults to an empty object
	Config string
	// Failure policy of the session
	FailurePolicy filescan.FailurePolicy
	// Declared name of the uploaded file
	FileName string
	// Request headers for the upload
	Headers filescan.Headers
	// Chunks delivered to the session, in order
	Chunks [][]byte
	// Abort the stream instead of completing it
	Abort bool
	// If not nil, decisions expected from each chunk
	ChunkDecisions []filescan.Decision
	// Final decision expected from the session
	Decision filescan.Decision
	// Messages that must have been logged, at any level
	MatchLog []string
	// Called with the monitor after the provider has been destroyed
	AfterDestroy func(t *testing.T, monitor *mocks.MockMonitor)
}

// Test runs the test case
func (c Case) Test(t *testing.T) {
	t.Helper()

	factory := filescan.Providers()[c.Provider]
	require.NotNil(t, factory, "provider '%s' is not registered", c.Provider)

	monitor := mocks.NewMockMonitor(false)
	p, err := factory.NewProvider(filescan.ProviderOptions{
		Monitor: monitor.WithPrefix(c.Provider),
		Config:  parseConfig(t, factory, c.Config),
	})
	require.NoError(t, err, "NewProvider failed")
	require.NotNil(t, p)

	m := filescan.NewStaticManager(monitor, filescan.Settings{
		FailurePolicy:   c.FailurePolicy,
		CompleteTimeout: 30 * time.Second,
		DrainTimeout:    time.Second,
	}, map[string]filescan.Provider{c.Provider: p})
	require.NoError(t, m.Init(), "Init failed")

	session, err := m.StartStream(c.FileName, c.Headers)
	require.NoError(t, err, "StartStream failed")

	// Store the upload like a host would, such that Complete can read it
	filePath := filepath.Join(t.TempDir(), "upload")
	f, err := os.Create(filePath)
	require.NoError(t, err)

	var decisions []filescan.Decision
	for _, chunk := range c.Chunks {
		_, err = f.Write(chunk)
		require.NoError(t, err)
		decisions = append(decisions, session.Chunk(chunk, 0, len(chunk)))
	}
	require.NoError(t, f.Close())
	if c.ChunkDecisions != nil {
		assert.Equal(t, c.ChunkDecisions, decisions, "unexpected chunk decisions")
	}

	if c.Abort {
		session.Abort()
		assert.Equal(t, filescan.Aborted, session.State())
	} else {
		session.Complete(filePath)
		assert.Equal(t, filescan.Completed, session.State())
	}
	assert.Equal(t, c.Decision, session.Decision(), "unexpected decision for '%s'", c.FileName)

	require.NoError(t, m.Destroy(), "Destroy failed")
	assert.Zero(t, m.ActiveSessions())

	for _, text := range c.MatchLog {
		assert.True(t, monitor.HasMessage("", text), "expected '%s' in log", text)
	}
	if c.AfterDestroy != nil {
		c.AfterDestroy(t, monitor)
	}
}

func parseConfig(t *testing.T, factory filescan.ProviderFactory, config string) interface{} {
	if config == "" {
		config = "{}"
	}
	var value interface{}
	require.NoError(t, json.Unmarshal([]byte(config), &value), "Config isn't valid JSON")
	if s := factory.ConfigSchema(); s != nil {
		require.NoError(t, schemas.Validate(s, value), "Config doesn't satisfy schema")
	}
	return value
}
