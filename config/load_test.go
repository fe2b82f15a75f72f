package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demiflat/orbeon-forms/config"
	_ "github.com/demiflat/orbeon-forms/config/abs"
	_ "github.com/demiflat/orbeon-forms/config/env"
	"github.com/demiflat/orbeon-forms/filescan"
	_ "github.com/demiflat/orbeon-forms/filescan/acme"
	_ "github.com/demiflat/orbeon-forms/filescan/maxsize"
	"github.com/demiflat/orbeon-forms/runtime/mocks"
)

const sampleConfig = `
transforms:
  - env
config:
  monitor:
    type: mock
    panicOnError: false
  filescan:
    failurePolicy: fail-open
    completeTimeout: 30s
    disabled: [maxsize]
    providers:
      acme:
        substring: {$env: ACME_SUBSTRING}
      maxsize:
        maxBytes: {$env: MAX_BYTES, type: number}
`

func TestLoad(t *testing.T) {
	t.Setenv("ACME_SUBSTRING", "malware")
	t.Setenv("MAX_BYTES", "1024")

	c, err := config.Load([]byte(sampleConfig))
	require.NoError(t, err)

	fs := c["filescan"].(map[string]interface{})
	providers := fs["providers"].(map[string]interface{})
	assert.Equal(t, "malware", providers["acme"].(map[string]interface{})["substring"])
	assert.Equal(t, float64(1024), providers["maxsize"].(map[string]interface{})["maxBytes"])

	m, err := filescan.NewManager(filescan.ManagerOptions{
		Monitor: mocks.NewMockMonitor(false),
		Config:  fs,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, m.Names())
	assert.Equal(t, filescan.FailOpen, m.Settings().FailurePolicy)

	require.NoError(t, m.Init())
	defer m.Destroy()
	s, err := m.StartStream("malware.exe", nil)
	require.NoError(t, err)
	assert.Equal(t, filescan.Reject, s.Complete(""))
}

func TestLoadFromFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(filename, []byte(`
config:
  filescan:
    providers:
      acme: {}
`), 0o600))

	c, err := config.LoadFromFile(filename)
	require.NoError(t, err)
	assert.Contains(t, c, "filescan")

	_, err = config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	invalid := []string{
		"[1, 2]",
		"config: 42",
		"config: {}",
		"config: {filescan: {providers: {unknown: {}}}}",
		"config: {filescan: {providers: {acme: {substring: 7}}}}",
		"transforms: [nope]\nconfig: {filescan: {providers: {}}}",
		"transforms: [env]\nconfig: {filescan: {providers: {acme: {substring: {$env: X, type: date}}}}}",
		": not yaml : [",
	}
	for _, data := range invalid {
		_, err := config.Load([]byte(data))
		assert.Error(t, err, "expected error for: %s", data)
	}
}

func TestSchemaListsTransforms(t *testing.T) {
	s := config.Schema()
	transforms := s["properties"].(map[string]interface{})["transforms"].(map[string]interface{})
	enum := transforms["items"].(map[string]interface{})["enum"].([]interface{})
	assert.Contains(t, enum, "abs")
	assert.Contains(t, enum, "env")
	assert.Len(t, enum, len(config.Names()))
}
