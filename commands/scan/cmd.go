// Package scan provides a command that streams local files through the scan
// providers, the same way an upload host would.
package scan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/demiflat/orbeon-forms/commands"
	"github.com/demiflat/orbeon-forms/config"
	"github.com/demiflat/orbeon-forms/filescan"
	"github.com/demiflat/orbeon-forms/filescan/acme"
	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/monitoring"
)

func init() {
	commands.Register("scan", cmd{})
}

type cmd struct{}

func (cmd) Summary() string {
	return "Scan local files with the configured providers."
}

func (cmd) Usage() string {
	return `
filescan scan streams each file through a scan session in chunks, like an
upload host would, and prints the decision. Without a configuration file the
acme demo provider is used. The exit code is non-zero if any file is rejected.

usage:
  filescan scan [options] [--header <header>...] <file>...

options:
  -c --config <config.yml>    Load providers from configuration file.
  -s --chunk-size <bytes>     Size of chunks given to providers [default: 65536].
  -n --name <name>            Declared file name, defaults to the base name of each file.
  -H --header <header>        Request header on the form 'Name: value'.
  -j --json                   Print results as JSON lines.
  -h --help                   Show this screen.
`
}

// A Result is printed for each scanned file.
type Result struct {
	File     string            `json:"file"`
	Name     string            `json:"name"`
	Decision filescan.Decision `json:"decision"`
	Error    string            `json:"error,omitempty"`
}

func (cmd) Execute(args map[string]interface{}) bool {
	monitor := monitoring.PreConfig()

	chunkSize, err := strconv.Atoi(args["--chunk-size"].(string))
	if err != nil || chunkSize <= 0 {
		fmt.Fprintln(os.Stderr, "--chunk-size must be a positive integer")
		return false
	}
	headers, err := parseHeaders(stringList(args["--header"]))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}
	name, _ := args["--name"].(string)
	configFile, _ := args["--config"].(string)
	formatJSON, _ := args["--json"].(bool)

	m, monitor, err := newManager(configFile, monitor)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}
	if !initManager(m, monitor) {
		return false
	}
	defer func() {
		if err := m.Destroy(); err != nil {
			monitor.Error("Failed to destroy providers: ", err)
		}
	}()

	// Abort scans in progress on interrupt
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	done := make(chan struct{})
	defer close(done)
	stop, _ := watchSignals(c, done)

	ok := true
	for _, file := range stringList(args["<file>"]) {
		fileName := name
		if fileName == "" {
			fileName = filepath.Base(file)
		}
		r := Result{File: file, Name: fileName}
		r.Decision, err = File(m, file, fileName, headers, chunkSize, stop)
		if err != nil {
			r.Error = err.Error()
		}
		if r.Decision == filescan.Reject || err != nil {
			ok = false
		}
		printResult(r, formatJSON)
	}
	return ok
}

// initManager initializes m, releasing its providers if that fails.
func initManager(m *filescan.Manager, monitor runtime.Monitor) bool {
	err := m.Init()
	if err == nil {
		return true
	}
	fmt.Fprintln(os.Stderr, err)
	if derr := m.Destroy(); derr != nil {
		monitor.Error("Failed to destroy providers: ", derr)
	}
	return false
}

// watchSignals returns a stop channel that is closed when a signal arrives on
// c, and an exited channel that is closed when the watching goroutine returns,
// which it does when a signal arrives or done is closed.
func watchSignals(c <-chan os.Signal, done <-chan struct{}) (stop, exited <-chan struct{}) {
	s := make(chan struct{})
	e := make(chan struct{})
	go func() {
		defer close(e)
		select {
		case <-c:
			close(s)
		case <-done:
		}
	}()
	return s, e
}

func newManager(configFile string, monitor runtime.Monitor) (*filescan.Manager, runtime.Monitor, error) {
	if configFile == "" {
		m := filescan.NewStaticManager(monitor, filescan.Settings{
			DrainTimeout: 10 * time.Second,
		}, map[string]filescan.Provider{"acme": acme.New()})
		return m, monitor, nil
	}

	c, err := config.LoadFromFile(configFile)
	if err != nil {
		return nil, monitor, err
	}
	if mc, ok := c["monitor"]; ok {
		monitor = monitoring.New(mc)
	}
	m, err := filescan.NewManager(filescan.ManagerOptions{
		Monitor: monitor,
		Config:  c["filescan"],
	})
	return m, monitor, err
}

// File streams the file at filePath through a new session from m, aborting if
// a chunk is rejected, a read fails or stop is closed.
func File(
	m *filescan.Manager, filePath, fileName string, headers filescan.Headers,
	chunkSize int, stop <-chan struct{},
) (filescan.Decision, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return filescan.Reject, errors.Wrapf(err, "failed to open '%s'", filePath)
	}
	defer f.Close()

	session, err := m.StartStream(fileName, headers)
	if err != nil {
		return filescan.Reject, err
	}

	buf := make([]byte, chunkSize)
	for {
		select {
		case <-stop:
			session.Abort()
			return session.Decision(), errors.New("interrupted")
		default:
		}

		n, rerr := f.Read(buf)
		if n > 0 && session.Chunk(buf, 0, n) == filescan.Reject {
			session.Abort()
			return filescan.Reject, nil
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			session.Abort()
			return session.Decision(), errors.Wrapf(rerr, "failed to read '%s'", filePath)
		}
	}
	return session.Complete(filePath), nil
}

func printResult(r Result, formatJSON bool) {
	if formatJSON {
		data, _ := json.Marshal(r)
		fmt.Println(string(data))
		return
	}
	if r.Error != "" {
		fmt.Printf("%s: %s (%s)\n", r.File, r.Decision, r.Error)
		return
	}
	fmt.Printf("%s: %s\n", r.File, r.Decision)
}

func parseHeaders(values []string) (filescan.Headers, error) {
	headers := filescan.Headers{}
	for _, v := range values {
		parts := strings.SplitN(v, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid header '%s', expected 'Name: value'", v)
		}
		key := strings.TrimSpace(parts[0])
		headers[key] = append(headers[key], strings.TrimSpace(parts[1]))
	}
	return headers, nil
}

// stringList returns the docopt value v as a list, docopt gives a single
// string or a list depending on the usage pattern.
func stringList(v interface{}) []string {
	switch v := v.(type) {
	case []string:
		return v
	case string:
		return []string{v}
	default:
		return nil
	}
}
