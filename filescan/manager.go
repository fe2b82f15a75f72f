package filescan

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/atomics"
	"github.com/demiflat/orbeon-forms/runtime/monitoring"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

// Default time Destroy() waits for active sessions before destroying providers.
const defaultDrainTimeout = 10 * time.Second

// ErrNotReady is returned from StartStream() if the Manager hasn't been
// initialized, failed to initialize or has been destroyed.
var ErrNotReady = errors.New("scan providers are not initialized or have been destroyed")

const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|ms|s|m|h))+$`

// ManagerOptions is a wrapper for the arguments given to NewManager.
type ManagerOptions struct {
	Monitor runtime.Monitor
	// Config must satisfy ManagerConfigSchema()
	Config interface{}
}

type managerConfig struct {
	FailurePolicy   string                 `json:"failurePolicy"`
	CompleteTimeout string                 `json:"completeTimeout"`
	DrainTimeout    string                 `json:"drainTimeout"`
	Disabled        []string               `json:"disabled"`
	Providers       map[string]interface{} `json:"providers"`
}

// Settings for a Manager that don't depend on which providers are enabled.
type Settings struct {
	FailurePolicy FailurePolicy
	// CompleteTimeout limits the time each provider may spend completing a
	// scan, zero means no limit.
	CompleteTimeout time.Duration
	// DrainTimeout is the time Destroy() waits for active sessions.
	DrainTimeout time.Duration
}

// A Manager owns a set of named providers and starts a ScanSession combining
// a Session from each of them for every upload. It is the object an upload
// host holds on to.
type Manager struct {
	monitor  runtime.Monitor
	settings Settings
	names    []string
	provs    []Provider
	monitors []runtime.Monitor

	initOnce    atomics.Once
	destroyOnce atomics.Once
	mReady      sync.RWMutex
	ready       bool
	active      atomics.Counter
}

// ManagerConfigSchema returns the schema for ManagerOptions.Config.
func ManagerConfigSchema() schemas.Schema {
	factories := Providers()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)

	properties := map[string]interface{}{}
	enum := []interface{}{}
	for _, name := range names {
		enum = append(enum, name)
		if s := factories[name].ConfigSchema(); s != nil {
			properties[name] = s
		} else {
			properties[name] = map[string]interface{}{"type": "object"}
		}
	}
	disabledItems := map[string]interface{}{"type": "string"}
	if len(enum) > 0 {
		disabledItems["enum"] = enum
	}

	return schemas.Schema{
		"title": "File Scan Providers",
		"description": "Mapping from provider name to provider configuration, under 'providers'. " +
			"A provider is enabled if it has an entry in this mapping, and isn't listed " +
			"in 'disabled'. Providers that don't require configuration must have an " +
			"entry, in these cases an empty object will suffice.",
		"type": "object",
		"properties": map[string]interface{}{
			"failurePolicy": map[string]interface{}{
				"title":       "Failure Policy",
				"description": "Accept ('fail-open') or reject ('fail-closed') uploads a provider failed to scan.",
				"enum":        []interface{}{FailOpen.String(), FailClosed.String()},
			},
			"completeTimeout": map[string]interface{}{
				"title":       "Complete Timeout",
				"description": "Maximum time a provider may spend completing a scan, such as '30s'.",
				"type":        "string",
				"pattern":     durationPattern,
			},
			"drainTimeout": map[string]interface{}{
				"title":       "Drain Timeout",
				"description": "Time to wait for active scans at shutdown before destroying providers.",
				"type":        "string",
				"pattern":     durationPattern,
			},
			"disabled": map[string]interface{}{
				"title":       "Disabled Providers",
				"description": "List of providers that are disabled, even if they have configuration.",
				"type":        "array",
				"items":       disabledItems,
			},
			"providers": map[string]interface{}{
				"title":                "Provider Configuration",
				"type":                 "object",
				"properties":           properties,
				"additionalProperties": false,
			},
		},
		"required":             []interface{}{"providers"},
		"additionalProperties": false,
	}
}

// NewManager instantiates all providers enabled in options.Config.
//
// The returned Manager must be initialized with Init() before use.
func NewManager(options ManagerOptions) (*Manager, error) {
	monitor := options.Monitor
	if monitor == nil {
		monitor = monitoring.PreConfig()
	}

	var c managerConfig
	if err := schemas.Map(ManagerConfigSchema(), options.Config, &c); err != nil {
		return nil, errors.Wrap(err, "invalid filescan configuration")
	}
	settings, err := parseSettings(c)
	if err != nil {
		return nil, err
	}

	// Find enabled providers, sorted so sessions consult them in stable order
	var enabled []string
	for name := range c.Providers {
		if !stringContains(c.Disabled, name) {
			enabled = append(enabled, name)
		}
	}
	sort.Strings(enabled)

	factories := Providers()
	provs := make(map[string]Provider, len(enabled))
	var failures []string
	for _, name := range enabled {
		m := monitor.WithPrefix(name).WithTag("provider", name)
		var p Provider
		var perr error
		incidentID := m.CapturePanic(func() {
			p, perr = factories[name].NewProvider(ProviderOptions{
				Monitor: m,
				Config:  c.Providers[name],
			})
		})
		if incidentID != "" {
			perr = fmt.Errorf("panic while calling NewProvider, incidentId: %s", incidentID)
		}
		if perr == nil && p == nil {
			perr = errors.New("NewProvider returned neither provider nor error")
		}
		if perr != nil {
			failures = append(failures, fmt.Sprintf("'%s': %s", name, perr))
			continue
		}
		provs[name] = p
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("provider instantiation failed:\n - %s", strings.Join(failures, "\n - "))
	}

	return NewStaticManager(monitor, settings, provs), nil
}

// NewStaticManager returns a Manager for providers the host constructed
// itself, rather than from registry and configuration.
func NewStaticManager(monitor runtime.Monitor, settings Settings, providers map[string]Provider) *Manager {
	if monitor == nil {
		monitor = monitoring.PreConfig()
	}
	m := &Manager{
		monitor:  monitor.WithPrefix("manager"),
		settings: settings,
	}
	for name := range providers {
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)
	for _, name := range m.names {
		m.provs = append(m.provs, providers[name])
		m.monitors = append(m.monitors, monitor.WithPrefix(name).WithTag("provider", name))
	}
	return m
}

func parseSettings(c managerConfig) (Settings, error) {
	s := Settings{DrainTimeout: defaultDrainTimeout}
	var err error
	if s.FailurePolicy, err = ParseFailurePolicy(c.FailurePolicy); err != nil {
		return s, err
	}
	if c.CompleteTimeout != "" {
		if s.CompleteTimeout, err = time.ParseDuration(c.CompleteTimeout); err != nil {
			return s, errors.Wrap(err, "invalid completeTimeout")
		}
	}
	if c.DrainTimeout != "" {
		if s.DrainTimeout, err = time.ParseDuration(c.DrainTimeout); err != nil {
			return s, errors.Wrap(err, "invalid drainTimeout")
		}
	}
	return s, nil
}

// Names returns the names of the providers owned by the Manager, sorted.
func (m *Manager) Names() []string {
	return append([]string(nil), m.names...)
}

// Settings returns the settings the Manager was created with.
func (m *Manager) Settings() Settings {
	return m.settings
}

// Init calls Init() on all providers concurrently, returning an error if any
// of them fail. Only the first call has any effect, after Destroy() it returns
// ErrNotReady.
func (m *Manager) Init() error {
	m.initOnce.Do(func() error {
		err := m.each("Init", func(p Provider) error { return p.Init() })
		if err == nil {
			m.mReady.Lock()
			m.ready = true
			m.mReady.Unlock()
			m.monitor.Infof("Initialized scan providers: %s", strings.Join(m.names, ", "))
		}
		return err
	})
	return m.initOnce.Err()
}

// Destroy waits for active sessions to terminate, up to the drain timeout, and
// calls Destroy() on all providers. Only the first call has any effect.
func (m *Manager) Destroy() error {
	m.destroyOnce.Do(func() error {
		// Waits for Init() if it is running, and prevents it from running later
		neverInitialized := m.initOnce.Do(func() error { return ErrNotReady })

		m.mReady.Lock()
		m.ready = false
		m.mReady.Unlock()

		if neverInitialized {
			return nil
		}
		m.drain()
		err := m.each("Destroy", func(p Provider) error { return p.Destroy() })
		m.monitor.Info("Destroyed scan providers")
		return err
	})
	return m.destroyOnce.Err()
}

// ActiveSessions returns the number of sessions started that haven't been
// completed or aborted.
func (m *Manager) ActiveSessions() int {
	return m.active.Value()
}

func (m *Manager) drain() {
	deadline := time.NewTimer(m.settings.DrainTimeout)
	defer deadline.Stop()
	for {
		value, changed := m.active.Changed()
		if value == 0 {
			return
		}
		select {
		case <-changed:
		case <-deadline.C:
			m.monitor.Warnf("destroying providers with %d scan sessions still active", value)
			return
		}
	}
}

// each calls fn for all providers concurrently, capturing panics.
func (m *Manager) each(hook string, fn func(p Provider) error) error {
	var g errgroup.Group
	for i := range m.provs {
		i := i // per-iteration copy; go.mod targets go 1.21 loop semantics
		g.Go(func() error {
			var err error
			incidentID := m.monitors[i].WithTag("hook", hook).CapturePanic(func() {
				err = fn(m.provs[i])
			})
			if incidentID != "" {
				err = fmt.Errorf("panic during %s, incidentId: %s", hook, incidentID)
			}
			if err != nil {
				m.monitors[i].ReportError(err, hook, " failed")
			}
			return errors.Wrapf(err, "%s failed for provider '%s'", hook, m.names[i])
		})
	}
	return g.Wait()
}

// StartStream starts a ScanSession for an upload, with a session from each
// provider.
//
// If a provider fails to start a session, the failure policy decides whether
// the upload is rejected or the provider is left out of the scan.
func (m *Manager) StartStream(fileName string, headers Headers) (*ScanSession, error) {
	m.mReady.RLock()
	if !m.ready {
		m.mReady.RUnlock()
		return nil, ErrNotReady
	}
	m.active.Add(1)
	m.mReady.RUnlock()

	members := make([]Member, 0, len(m.provs))
	for i, p := range m.provs {
		monitor := m.monitors[i].WithTag("file", fileName)
		var s Session
		var err error
		incidentID := monitor.CapturePanic(func() {
			s, err = p.StartStream(fileName, headers.Clone())
		})
		if incidentID != "" {
			err = runtime.NewEngineError(runtime.EngineInternal, "panic in StartStream() incidentId: ", incidentID)
		}
		if err != nil {
			e := runtime.WrapEngineError(runtime.EngineInternal, err, "StartStream() failed")
			e.Provider = m.names[i]
			monitor.ReportWarning(e, "cannot scan ", fileName, ", resolved as ", m.settings.FailurePolicy)
			if m.settings.FailurePolicy == FailOpen {
				continue
			}
			s = rejectingSession{}
		}
		if s == nil {
			s = SessionBase{}
		}
		members = append(members, Member{Name: m.names[i], Session: s, Monitor: monitor})
	}

	var once sync.Once
	return NewScanSession(SessionOptions{
		FileName:        fileName,
		Headers:         headers,
		Monitor:         m.monitor.WithTag("file", fileName),
		FailurePolicy:   m.settings.FailurePolicy,
		CompleteTimeout: m.settings.CompleteTimeout,
		onTerminal:      func() { once.Do(func() { m.active.Add(-1) }) },
	}, members...), nil
}

// stringContains returns true if list contains element
func stringContains(list []string, element string) bool {
	for _, s := range list {
		if s == element {
			return true
		}
	}
	return false
}
