package togglekit

import (
	"sync"

	"github.com/togglekit/togglekit-go/flagengine/flags"
)

// overrideStore holds the two identity-keyed override mappings. Inner
// per-identity maps are copied on write so evaluation reads never race a
// mutation.
type overrideStore struct {
	mu      sync.RWMutex
	users   map[string]map[string]flags.Value
	plugins map[string]map[string]flags.Value
}

func newOverrideStore() *overrideStore {
	return &overrideStore{
		users:   make(map[string]map[string]flags.Value),
		plugins: make(map[string]map[string]flags.Value),
	}
}

func (s *overrideStore) userOverride(userID, flagKey string) (flags.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.users[userID][flagKey]
	return v, ok
}

func (s *overrideStore) pluginOverride(pluginID, flagKey string) (flags.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.plugins[pluginID][flagKey]
	return v, ok
}

func (s *overrideStore) setUser(userID, flagKey string, value flags.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = withEntry(s.users[userID], flagKey, value)
}

func (s *overrideStore) setPlugin(pluginID, flagKey string, value flags.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plugins[pluginID] = withEntry(s.plugins[pluginID], flagKey, value)
}

// removeUser deletes a single override entry; absent entries are a no-op.
// It reports whether anything was removed.
func (s *overrideStore) removeUser(userID, flagKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeEntry(s.users, userID, flagKey)
}

func (s *overrideStore) removePlugin(pluginID, flagKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeEntry(s.plugins, pluginID, flagKey)
}

// snapshot returns deep copies of both mappings, for export.
func (s *overrideStore) snapshot() (users, plugins map[string]map[string]flags.Value) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOverrides(s.users), cloneOverrides(s.plugins)
}

// replaceAll swaps both mappings wholesale, for import.
func (s *overrideStore) replaceAll(users, plugins map[string]map[string]flags.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = cloneOverrides(users)
	s.plugins = cloneOverrides(plugins)
}

// overridesForFlag collects the per-identity values set for one flag key,
// used to mirror the store onto the flag for introspection and export.
func (s *overrideStore) overridesForFlag(flagKey string) (users, plugins map[string]flags.Value) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesForKey(s.users, flagKey), entriesForKey(s.plugins, flagKey)
}

func withEntry(m map[string]flags.Value, key string, value flags.Value) map[string]flags.Value {
	next := make(map[string]flags.Value, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	next[key] = value
	return next
}

func removeEntry(store map[string]map[string]flags.Value, id, flagKey string) bool {
	current, ok := store[id]
	if !ok {
		return false
	}
	if _, ok := current[flagKey]; !ok {
		return false
	}
	next := make(map[string]flags.Value, len(current)-1)
	for k, v := range current {
		if k != flagKey {
			next[k] = v
		}
	}
	if len(next) == 0 {
		delete(store, id)
	} else {
		store[id] = next
	}
	return true
}

func entriesForKey(store map[string]map[string]flags.Value, flagKey string) map[string]flags.Value {
	out := make(map[string]flags.Value)
	for id, entries := range store {
		if v, ok := entries[flagKey]; ok {
			out[id] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cloneOverrides(src map[string]map[string]flags.Value) map[string]map[string]flags.Value {
	out := make(map[string]map[string]flags.Value, len(src))
	for id, entries := range src {
		inner := make(map[string]flags.Value, len(entries))
		for k, v := range entries {
			inner[k] = v
		}
		out[id] = inner
	}
	return out
}
