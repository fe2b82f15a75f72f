package filescan

import (
	"fmt"
	"sync"

	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/schemas"
)

var (
	mFactories = sync.Mutex{}
	factories  = make(map[string]ProviderFactory)
)

// ProviderOptions is a wrapper for the arguments given when instantiating a
// Provider using ProviderFactory.
//
// We wrap all arguments so that we can add additional properties without
// breaking source compatibility with older providers.
type ProviderOptions struct {
	Monitor runtime.Monitor
	Config  interface{}
}

// The ProviderFactory interface must be implemented and registered by anyone
// implementing a Provider that can be enabled from configuration.
type ProviderFactory interface {
	NewProvider(options ProviderOptions) (Provider, error)

	// ConfigSchema returns schema for the ProviderOptions.Config property.
	// May return nil, if no configuration should be given.
	ConfigSchema() schemas.Schema
}

// ProviderFactoryBase is a base struct that provides empty implementations of
// some methods for ProviderFactory.
//
// Implementors of ProviderFactory should embed this struct to ensure forward
// compatibility when we add new optional methods to ProviderFactory.
type ProviderFactoryBase struct{}

// ConfigSchema returns a nil schema.
func (ProviderFactoryBase) ConfigSchema() schemas.Schema {
	return nil
}

// Register will register a ProviderFactory.
// This is meant to be called from init(), and will panic if name is already
// used by another provider.
func Register(name string, factory ProviderFactory) {
	mFactories.Lock()
	defer mFactories.Unlock()

	if name == "disabled" {
		panic("Provider name 'disabled' is reserved")
	}
	if _, ok := factories[name]; ok {
		panic(fmt.Sprintf("Provider name '%s' is already in use", name))
	}
	factories[name] = factory
}

// Providers returns map from provider name to ProviderFactory.
func Providers() map[string]ProviderFactory {
	mFactories.Lock()
	defer mFactories.Unlock()

	f := make(map[string]ProviderFactory, len(factories))
	for name, factory := range factories {
		f[name] = factory
	}
	return f
}
