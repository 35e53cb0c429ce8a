// Package llm is a small provider-agnostic completion interface used to draft
// pipeline fragments the store does not have.
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Client performs a blocking text completion.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ProviderFactory creates a Client for a model name within a provider.
type ProviderFactory func(modelName string) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

// RegisterProvider registers a factory under name. Provider packages call it
// from init.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Providers lists the registered provider names.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewClient constructs a Client for a "provider:model-name" id.
func NewClient(modelID string) (Client, error) {
	provider, modelName, err := ParseModelID(modelID)
	if err != nil {
		return nil, fmt.Errorf("new llm client: %w", err)
	}
	registryMu.RLock()
	factory, ok := registry[provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q (model ID %q); import pkg/llm/providers", provider, modelID)
	}
	return factory(modelName)
}
