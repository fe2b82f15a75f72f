// Package config provides configuration loading logic.
//
// The configuration file is a YAML document on the form:
//   transforms:
//     - env
//     - abs
//   config:
//     monitor:
//       logLevel: info
//     filescan:
//       failurePolicy: fail-closed
//       providers:
//         acme: {}
//
// Transformations are registered by sub-packages of this package and applied
// in the order listed. Each transformation replaces objects matching a
// specific pattern, such as {$env: VAR}, with a value. After all
// transformations have run, the 'config' object is validated against Schema().
package config
