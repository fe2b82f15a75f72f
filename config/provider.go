package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// A TransformationProvider rewrites the 'config' object of a filescan
// configuration file before it is validated, typically to resolve values
// that differ between hosts, like credentials for a scanning service or the
// location of a digest blocklist.
type TransformationProvider interface {
	Transform(config map[string]interface{}) error
}

var (
	providers  = make(map[string]TransformationProvider)
	mProviders = sync.Mutex{}
)

// Register a TransformationProvider under the name used in the 'transforms'
// list. Called from func init(), panics if name is already taken.
func Register(name string, provider TransformationProvider) {
	mProviders.Lock()
	defer mProviders.Unlock()

	if _, ok := providers[name]; ok {
		panic(fmt.Sprintf("config transformation name '%s' is already in use!", name))
	}

	providers[name] = provider
}

// Providers returns a map of the registered TransformationProviders.
func Providers() map[string]TransformationProvider {
	mProviders.Lock()
	defer mProviders.Unlock()

	m := make(map[string]TransformationProvider, len(providers))
	for name, provider := range providers {
		m[name] = provider
	}
	return m
}

// Names returns the sorted names of registered transformations.
func Names() []string {
	mProviders.Lock()
	defer mProviders.Unlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// applyTransforms runs the named transformations on cfg in order.
func applyTransforms(names []string, cfg map[string]interface{}) error {
	registered := Providers()
	for _, name := range names {
		provider, ok := registered[name]
		if !ok {
			return fmt.Errorf("unknown config transformation: %s", name)
		}
		if err := provider.Transform(cfg); err != nil {
			return errors.Wrapf(err, "config transformation: %s failed", name)
		}

		// Transformations may only inject values YAML could have produced
		if err := jsonCompatTypes(cfg); err != nil {
			panic(fmt.Sprintf("%s injected wrong types, error: %s", name, err))
		}
	}
	return nil
}
