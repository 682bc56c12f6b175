package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the installed games. The session owns one instance;
// game packages install themselves into it at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	desc    Descriptor
	factory Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register installs a game under its descriptor key.
func (r *Registry) Register(desc Descriptor, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if desc.Key == "" {
		return fmt.Errorf("game key cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("game %q has no factory", desc.Key)
	}
	if desc.MinPlayers < 1 || desc.MaxPlayers < desc.MinPlayers {
		return fmt.Errorf("game %q has invalid player bounds %d..%d", desc.Key, desc.MinPlayers, desc.MaxPlayers)
	}
	if _, exists := r.entries[desc.Key]; exists {
		return fmt.Errorf("game already registered for key %q", desc.Key)
	}
	r.entries[desc.Key] = registryEntry{desc: desc, factory: factory}
	return nil
}

// New constructs a fresh instance of the game registered under key.
func (r *Registry) New(key string) (Game, Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, exists := r.entries[key]
	if !exists {
		return nil, Descriptor{}, fmt.Errorf("no game registered for key %q", key)
	}
	return entry.factory(), entry.desc, nil
}

// Descriptor looks up the descriptor for a key.
func (r *Registry) Descriptor(key string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, exists := r.entries[key]
	return entry.desc, exists
}

// Descriptors lists all installed games sorted by key.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.entries))
	for _, entry := range r.entries {
		descs = append(descs, entry.desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Key < descs[j].Key })
	return descs
}
