package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demiflat/orbeon-forms/filescan"
	_ "github.com/demiflat/orbeon-forms/filescan/maxsize"
	"github.com/demiflat/orbeon-forms/runtime/mocks"
)

func writeFile(t *testing.T, name, content string) string {
	filePath := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0o600))
	return filePath
}

func newTestManager(t *testing.T, config map[string]interface{}) *filescan.Manager {
	m, err := filescan.NewManager(filescan.ManagerOptions{
		Monitor: mocks.NewMockMonitor(false),
		Config:  config,
	})
	require.NoError(t, err)
	require.NoError(t, m.Init())
	t.Cleanup(func() { assert.NoError(t, m.Destroy()) })
	return m
}

func TestFileAcme(t *testing.T) {
	m := newTestManager(t, map[string]interface{}{
		"providers": map[string]interface{}{"acme": map[string]interface{}{}},
	})

	d, err := File(m, writeFile(t, "report.pdf", "%PDF-1.4"), "report.pdf", nil, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, filescan.Accept, d)

	d, err = File(m, writeFile(t, "sample", "MZ..."), "new_virus_sample.exe", nil, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, filescan.Reject, d)
	assert.Zero(t, m.ActiveSessions())
}

func TestFileEarlyRejection(t *testing.T) {
	m := newTestManager(t, map[string]interface{}{
		"providers": map[string]interface{}{
			"maxsize": map[string]interface{}{"maxBytes": 4},
		},
	})

	d, err := File(m, writeFile(t, "big.txt", "0123456789"), "big.txt", nil, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, filescan.Reject, d)
	assert.Zero(t, m.ActiveSessions())
}

func TestFileInterrupted(t *testing.T) {
	m := newTestManager(t, map[string]interface{}{
		"providers": map[string]interface{}{"acme": map[string]interface{}{}},
	})
	stop := make(chan struct{})
	close(stop)

	d, err := File(m, writeFile(t, "report.pdf", "%PDF-1.4"), "report.pdf", nil, 3, stop)
	assert.Error(t, err)
	assert.Equal(t, filescan.Reject, d)
	assert.Zero(t, m.ActiveSessions())
}

func TestFileMissing(t *testing.T) {
	m := newTestManager(t, map[string]interface{}{
		"providers": map[string]interface{}{"acme": map[string]interface{}{}},
	})
	_, err := File(m, filepath.Join(t.TempDir(), "missing"), "missing", nil, 3, nil)
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	configFile := writeFile(t, "config.yml", `
config:
  monitor:
    type: mock
    panicOnError: false
  filescan:
    drainTimeout: 1s
    providers:
      acme: {}
`)
	args := func(files ...string) map[string]interface{} {
		return map[string]interface{}{
			"--config":     configFile,
			"--chunk-size": "4",
			"--header":     []string{"Content-Type: text/plain"},
			"--name":       nil,
			"--json":       true,
			"<file>":       files,
		}
	}
	report := writeFile(t, "report.txt", "hello world")
	virus := writeFile(t, "virus.txt", "hello world")

	start := time.Now()
	assert.True(t, cmd{}.Execute(args(report)))
	assert.False(t, cmd{}.Execute(args(report, virus)))
	assert.True(t, time.Since(start) < 10*time.Second)

	a := args(report)
	a["--chunk-size"] = "0"
	assert.False(t, cmd{}.Execute(a))
	a = args(report)
	a["--header"] = []string{"no separator"}
	assert.False(t, cmd{}.Execute(a))
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"Content-Type: text/plain", "X-Tag: a", "X-Tag:b"})
	require.NoError(t, err)
	assert.Equal(t, filescan.Headers{
		"Content-Type": {"text/plain"},
		"X-Tag":        {"a", "b"},
	}, h)

	_, err = parseHeaders([]string{": value"})
	assert.Error(t, err)
}

func TestWatchSignals(t *testing.T) {
	c := make(chan os.Signal, 1)
	done := make(chan struct{})
	stop, exited := watchSignals(c, done)

	close(done)
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("signal watcher didn't return after done was closed")
	}
	select {
	case <-stop:
		t.Fatal("stop was closed without a signal")
	default:
	}

	c = make(chan os.Signal, 1)
	stop, exited = watchSignals(c, make(chan struct{}))
	c <- os.Interrupt
	select {
	case <-stop:
	case <-time.After(5 * time.Second):
		t.Fatal("stop wasn't closed on signal")
	}
	<-exited
}

type brokenProvider struct{}

func (brokenProvider) Init() error {
	return errors.New("engine not installed")
}

func (brokenProvider) Destroy() error {
	return errors.New("engine handle leaked")
}

func (brokenProvider) StartStream(string, filescan.Headers) (filescan.Session, error) {
	return filescan.SessionBase{}, nil
}

func TestInitManagerFailure(t *testing.T) {
	monitor := mocks.NewMockMonitor(false)
	m := filescan.NewStaticManager(monitor, filescan.Settings{DrainTimeout: time.Second},
		map[string]filescan.Provider{"broken": brokenProvider{}})

	assert.False(t, initManager(m, monitor))
	assert.True(t, monitor.HasMessage("ERROR", "Failed to destroy providers"))
	assert.True(t, monitor.HasMessage("ERROR", "engine handle leaked"))
}
