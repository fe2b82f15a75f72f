// Package filescan defines the contract between an upload host and the scan
// providers that decide whether uploaded files are acceptable.
//
// A Provider holds the global state of a scanner, such as a rule table or a
// handle to a scan engine. The host calls Init() before first use, Destroy()
// at shutdown, and StartStream() once for each upload. StartStream returns a
// Session which holds the upload-specific state of the scanner, it receives
// the bytes of the upload as they arrive, and is then either completed or
// aborted.
//
// Providers are registered by name from init() and instantiated from
// configuration by a Manager. The Manager is what the host holds on to: it
// wraps the sessions from all enabled providers in a ScanSession, which
// enforces the lifecycle of the session, caches decisions, and resolves
// engine errors according to the configured FailurePolicy.
//
// Providers may share state between sessions, but it must be immutable after
// construction or guarded by the provider, as sessions for concurrent
// uploads are driven from different goroutines.
package filescan
