// Package ux reads per-user routing preferences from a JSON file kept by an
// external preferences service. The file is never written here.
package ux

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"toneroute/internal/rules"
	"toneroute/internal/signals"
)

// PreferencesVersion is the current schema version for the preferences file.
const PreferencesVersion = "1.0"

// UserPreferences is what is stored for one user.
type UserPreferences struct {
	Routing   signals.Preferences `json:"routing"`
	UpdatedAt string              `json:"updated_at,omitempty"`
}

// PreferencesFile is the on-disk schema.
type PreferencesFile struct {
	Version string                      `json:"version"`
	Users   map[string]*UserPreferences `json:"users"`
}

// DefaultPreferencesFile returns an empty file.
func DefaultPreferencesFile() *PreferencesFile {
	return &PreferencesFile{
		Version: PreferencesVersion,
		Users:   make(map[string]*UserPreferences),
	}
}

// PreferencesManager serves preferences loaded from path.
type PreferencesManager struct {
	mu   sync.RWMutex
	path string
	file *PreferencesFile
}

// NewPreferencesManager creates a preferences manager backed by path.
func NewPreferencesManager(path string) *PreferencesManager {
	return &PreferencesManager{path: path}
}

// Path returns the backing file path.
func (pm *PreferencesManager) Path() string { return pm.path }

// Load reads preferences from disk. A missing file means no stored preferences.
// Every referenced context id must be one of the known contexts.
func (pm *PreferencesManager) Load() error {
	data, err := os.ReadFile(pm.path)
	if err != nil {
		if os.IsNotExist(err) {
			pm.mu.Lock()
			pm.file = DefaultPreferencesFile()
			pm.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read preferences: %w", err)
	}

	var f PreferencesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse preferences: %w", err)
	}
	if f.Users == nil {
		f.Users = make(map[string]*UserPreferences)
	}
	if f.Version == "" {
		f.Version = PreferencesVersion
	}
	for user, up := range f.Users {
		if up == nil {
			delete(f.Users, user)
			continue
		}
		if err := checkContexts(up.Routing); err != nil {
			return fmt.Errorf("preferences for %q: %w", user, err)
		}
	}

	pm.mu.Lock()
	pm.file = &f
	pm.mu.Unlock()
	return nil
}

func checkContexts(p signals.Preferences) error {
	for _, list := range [][]rules.ContextID{p.Favored, p.Avoided} {
		for _, id := range list {
			if !id.Valid() {
				return fmt.Errorf("unknown context %q", id)
			}
		}
	}
	return nil
}

// Get returns a copy of a user's routing preferences.
func (pm *PreferencesManager) Get(user string) (signals.Preferences, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.file == nil {
		return signals.Preferences{}, false
	}
	up, ok := pm.file.Users[user]
	if !ok {
		return signals.Preferences{}, false
	}
	return signals.PreferencesOf(&up.Routing), true
}

// Users returns the user ids present in the file, sorted.
func (pm *PreferencesManager) Users() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.file == nil {
		return []string{}
	}
	out := make([]string, 0, len(pm.file.Users))
	for u := range pm.file.Users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Merge overlays explicit preferences on stored ones: non-empty lists and a
// non-empty style in override replace the stored values.
func Merge(stored, override signals.Preferences) signals.Preferences {
	out := signals.PreferencesOf(&stored)
	if len(override.Favored) > 0 {
		out.Favored = append([]rules.ContextID(nil), override.Favored...)
	}
	if len(override.Avoided) > 0 {
		out.Avoided = append([]rules.ContextID(nil), override.Avoided...)
	}
	if override.Style != "" {
		out.Style = override.Style
	}
	return out
}
