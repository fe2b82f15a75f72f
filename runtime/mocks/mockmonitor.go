package mocks

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	godebug "runtime/debug"

	"github.com/pborman/uuid"

	"github.com/demiflat/orbeon-forms/runtime"
)

// A LogEntry is a message recorded by MockMonitor.
type LogEntry struct {
	Level   string
	Message string
	Prefix  string
	Tags    map[string]string
}

type recorder struct {
	m        sync.Mutex
	measures map[string]bool
	counters map[string]float64
	entries  []LogEntry
}

// MockMonitor implements runtime.Monitor for use in unit tests.
type MockMonitor struct {
	tags         map[string]string
	prefix       string
	panicOnError bool
	rec          *recorder
}

// NewMockMonitor returns a Monitor that records all messages and metrics in
// memory, such that tests can assert on what was logged.
//
// If panicOnError is set this will panic if Error() or ReportError() is called.
// This is often useful for testing components that takes a Monitor as argument.
func NewMockMonitor(panicOnError bool) *MockMonitor {
	return &MockMonitor{
		panicOnError: panicOnError,
		rec: &recorder{
			measures: make(map[string]bool),
			counters: make(map[string]float64),
		},
	}
}

// Measure records values for given name
func (m *MockMonitor) Measure(name string, value ...float64) {
	m.rec.m.Lock()
	defer m.rec.m.Unlock()

	m.rec.measures[m.prefix+name] = true
}

// Count increments counter by name with given value
func (m *MockMonitor) Count(name string, value float64) {
	m.rec.m.Lock()
	defer m.rec.m.Unlock()

	m.rec.counters[m.prefix+name] += value
}

// Time measures and records the execution time of fn
func (m *MockMonitor) Time(name string, fn func()) {
	start := time.Now()
	fn()
	m.Measure(name, time.Since(start).Seconds()*1000)
}

// HasMeasure returns true if a measure with given name has been reported
func (m *MockMonitor) HasMeasure(name string) bool {
	m.rec.m.Lock()
	defer m.rec.m.Unlock()

	return m.rec.measures[m.prefix+name]
}

// HasCounter returns true if a counter with given name has been reported
func (m *MockMonitor) HasCounter(name string) bool {
	m.rec.m.Lock()
	defer m.rec.m.Unlock()

	_, ok := m.rec.counters[m.prefix+name]
	return ok
}

// Counter returns the accumulated value of counter with given name
func (m *MockMonitor) Counter(name string) float64 {
	m.rec.m.Lock()
	defer m.rec.m.Unlock()

	return m.rec.counters[m.prefix+name]
}

// Entries returns all log entries recorded by this monitor and any monitor
// derived from it.
func (m *MockMonitor) Entries() []LogEntry {
	m.rec.m.Lock()
	defer m.rec.m.Unlock()

	return append([]LogEntry(nil), m.rec.entries...)
}

// HasMessage returns true if an entry at given level containing text has been
// recorded, level "" matches any level.
func (m *MockMonitor) HasMessage(level, text string) bool {
	for _, e := range m.Entries() {
		if (level == "" || e.Level == level) && strings.Contains(e.Message, text) {
			return true
		}
	}
	return false
}

// CapturePanic recovers from panic in fn and returns incidentID, if any
func (m *MockMonitor) CapturePanic(fn func()) (incidentID string) {
	defer func() {
		if crash := recover(); crash != nil {
			incidentID = uuid.NewRandom().String()
			trace := godebug.Stack()
			text := fmt.Sprint("Recovered from panic: ", crash, "\nAt:\n", string(trace))
			m.WithTag("incidentId", incidentID).(*MockMonitor).output("PANIC", text)
			if m.panicOnError {
				panic(fmt.Sprintf("Panic: %s", text))
			}
		}
	}()
	fn()
	return
}

// ReportError records an error, and panics if panicOnError was set
func (m *MockMonitor) ReportError(err error, message ...interface{}) string {
	incidentID := uuid.NewRandom().String()
	text := fmt.Sprint(append([]interface{}{"error: ", err, " "}, message...)...)
	m.WithTag("incidentId", incidentID).(*MockMonitor).output("ERROR-REPORT", text)
	if m.panicOnError {
		panic(fmt.Sprintf("ReportError: %s", text))
	}
	return incidentID
}

// ReportWarning records a warning
func (m *MockMonitor) ReportWarning(err error, message ...interface{}) string {
	incidentID := uuid.NewRandom().String()
	text := fmt.Sprint(append([]interface{}{"error: ", err, " "}, message...)...)
	m.WithTag("incidentId", incidentID).(*MockMonitor).output("WARNING-REPORT", text)
	return incidentID
}

func (m *MockMonitor) output(level string, a ...interface{}) {
	m.rec.m.Lock()
	defer m.rec.m.Unlock()

	m.rec.entries = append(m.rec.entries, LogEntry{
		Level:   level,
		Message: fmt.Sprint(a...),
		Prefix:  strings.TrimSuffix(m.prefix, "."),
		Tags:    m.tags,
	})
}

// Debug records a debug message
func (m *MockMonitor) Debug(a ...interface{}) { m.output("DEBUG", a...) }

// Debugln records a debug message
func (m *MockMonitor) Debugln(a ...interface{}) { m.Debug(fmt.Sprintln(a...)) }

// Debugf records a debug message
func (m *MockMonitor) Debugf(f string, a ...interface{}) { m.Debug(fmt.Sprintf(f, a...)) }

// Print records a message labelled as INFO
func (m *MockMonitor) Print(a ...interface{}) { m.output("INFO", a...) }

// Println records a message labelled as INFO
func (m *MockMonitor) Println(a ...interface{}) { m.Print(fmt.Sprintln(a...)) }

// Printf records a message labelled as INFO
func (m *MockMonitor) Printf(f string, a ...interface{}) { m.Print(fmt.Sprintf(f, a...)) }

// Info records a message labelled as INFO
func (m *MockMonitor) Info(a ...interface{}) { m.output("INFO", a...) }

// Infoln records a message labelled as INFO
func (m *MockMonitor) Infoln(a ...interface{}) { m.Info(fmt.Sprintln(a...)) }

// Infof records a message labelled as INFO
func (m *MockMonitor) Infof(f string, a ...interface{}) { m.Info(fmt.Sprintf(f, a...)) }

// Warn records a message labelled as WARN
func (m *MockMonitor) Warn(a ...interface{}) { m.output("WARN", a...) }

// Warnln records a message labelled as WARN
func (m *MockMonitor) Warnln(a ...interface{}) { m.Warn(fmt.Sprintln(a...)) }

// Warnf records a message labelled as WARN
func (m *MockMonitor) Warnf(f string, a ...interface{}) { m.Warn(fmt.Sprintf(f, a...)) }

// Error records a message labelled as ERROR, and panics if panicOnError was set
func (m *MockMonitor) Error(a ...interface{}) {
	m.output("ERROR", a...)
	if m.panicOnError {
		panic(fmt.Sprint(a...))
	}
}

// Errorln records a message labelled as ERROR, and panics if panicOnError was set
func (m *MockMonitor) Errorln(a ...interface{}) { m.Error(fmt.Sprintln(a...)) }

// Errorf records a message labelled as ERROR, and panics if panicOnError was set
func (m *MockMonitor) Errorf(f string, a ...interface{}) { m.Error(fmt.Sprintf(f, a...)) }

// Panic records a message labelled as PANIC, and panics
func (m *MockMonitor) Panic(a ...interface{}) {
	m.output("PANIC", a...)
	panic(fmt.Sprint(a...))
}

// Panicln records a message labelled as PANIC, and panics
func (m *MockMonitor) Panicln(a ...interface{}) { m.Panic(fmt.Sprintln(a...)) }

// Panicf records a message labelled as PANIC, and panics
func (m *MockMonitor) Panicf(f string, a ...interface{}) { m.Panic(fmt.Sprintf(f, a...)) }

// WithTags creates a new child Monitor with given tags
func (m *MockMonitor) WithTags(tags map[string]string) runtime.Monitor {
	allTags := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		allTags[k] = v
	}
	for k, v := range tags {
		allTags[k] = v
	}
	return &MockMonitor{
		tags:         allTags,
		prefix:       m.prefix,
		panicOnError: m.panicOnError,
		rec:          m.rec,
	}
}

// WithTag creates a new child Monitor with given tag
func (m *MockMonitor) WithTag(key, value string) runtime.Monitor {
	return m.WithTags(map[string]string{key: value})
}

// WithPrefix creates a new child Monitor with given prefix
func (m *MockMonitor) WithPrefix(prefix string) runtime.Monitor {
	if prefix != "" {
		prefix += "."
	}
	return &MockMonitor{
		tags:         m.tags,
		prefix:       m.prefix + prefix,
		panicOnError: m.panicOnError,
		rec:          m.rec,
	}
}

// String renders the prefix and tags, sorted by key, for debugging tests
func (m *MockMonitor) String() string {
	keys := make([]string, 0, len(m.tags))
	for k := range m.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m.tags)+1)
	pairs = append(pairs, fmt.Sprintf("prefix=%s", strings.TrimSuffix(m.prefix, ".")))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, m.tags[k]))
	}
	return strings.Join(pairs, " ")
}
