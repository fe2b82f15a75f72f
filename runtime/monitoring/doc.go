// Package monitoring provides implementations of runtime.Monitor.
//
// In addition to supplying runtime.Monitor implementations this package also
// provides a ConfigSchema and a generic New(config) method that can be used to
// instantiate one of the implementations depending on configuration.
package monitoring
