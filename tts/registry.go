package tts

import (
	"fmt"
	"sort"
	"sync"
)

// Config carries the settings every backend factory may draw from.
type Config struct {
	EspeakBinary string

	YandexAPIKey   string
	YandexFolderID string
	YandexModel    string
	YandexFormat   string
}

type Factory func(cfg Config) (Synthesizer, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("tts: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("tts: Register called twice for " + name)
	}
	registry[name] = factory
}

func New(name string, cfg Config) (Synthesizer, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tts: unknown backend %q (registered: %v)", name, ListBackends())
	}
	return factory(cfg)
}

// ListBackends returns registered backend names in sorted order.
func ListBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
