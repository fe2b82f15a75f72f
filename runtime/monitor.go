package runtime

// A Monitor is responsible for collecting logs, stats and error messages.
//
// Providers and sessions receive a Monitor instead of a global logger, child
// monitors carry tags such as the provider name and the file being scanned.
type Monitor interface {
	// Measure values, such as bytes per chunk or completion latency
	Measure(name string, value ...float64)
	// Increment counters
	Count(name string, value float64)
	// Measure time of fn
	Time(name string, fn func())

	// CapturePanic calls fn and recovers from any panic, returning an
	// incidentID if a panic was recovered.
	CapturePanic(fn func()) (incidentID string)

	// Report error/warning and write to log, returns incidentId which can be
	// included in messages returned to the host.
	ReportError(err error, message ...interface{}) string
	ReportWarning(err error, message ...interface{}) string

	// Write log messages to system log
	Debug(...interface{})
	Debugln(...interface{})
	Debugf(string, ...interface{})
	Print(...interface{})
	Println(...interface{})
	Printf(string, ...interface{})
	Info(...interface{})
	Infoln(...interface{})
	Infof(string, ...interface{})
	Warn(...interface{})
	Warnln(...interface{})
	Warnf(string, ...interface{})
	Error(...interface{})
	Errorln(...interface{})
	Errorf(string, ...interface{})
	Panic(...interface{})
	Panicln(...interface{})
	Panicf(string, ...interface{})

	// Create child monitor with given tags (tags don't apply to metrics)
	WithTags(tags map[string]string) Monitor
	WithTag(key, value string) Monitor
	// Create child monitor with given prefix (prefix applies to everything)
	WithPrefix(prefix string) Monitor
}
