package freshness

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/tasktree-dev/tasktree/internal/platform"
	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// StateFileName is the on-disk name of the project state file
// (spec.md §6), co-located with the recipe in the project root unless
// a containerized invocation overrides the path via TT_STATE_FILE_PATH.
const StateFileName = ".tasktree-state"

// StateEntry is one persisted record, keyed by (DefHash, ArgHash).
type StateEntry struct {
	DefHash     string           `json:"def_hash"`
	ArgHash     string           `json:"arg_hash"`
	LastRunUnix int64            `json:"last_run_unix"`
	Inputs      map[string]int64 `json:"inputs"`
}

// State is the full persisted document: a JSON array of StateEntry,
// indexed in memory by "defHash__argHash" the way the original
// source's StateManager keys its cache dict.
type State struct {
	entries map[string]*StateEntry
	path    string
}

func cacheKey(defHash, argHash string) string {
	if argHash == "" {
		return defHash
	}
	return defHash + "__" + argHash
}

// LoadState reads path if present, tolerating a missing file (fresh
// state) but failing loudly on corruption, per spec.md §7's "a hard
// corruption fails loudly rather than silently discarding state."
func LoadState(fs platform.FileSystem, path string) (*State, error) {
	s := &State{entries: map[string]*StateEntry{}, path: path}

	data, err := fs.ReadFile(path)
	if err != nil {
		return s, nil
	}
	if len(data) == 0 {
		return s, nil
	}

	var list []*StateEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, tterrors.NewStateError("StateFileCorrupt", path, err)
	}

	for _, e := range list {
		s.entries[cacheKey(e.DefHash, e.ArgHash)] = e
	}
	return s, nil
}

// Get returns the entry for (defHash, argHash), or nil if absent.
func (s *State) Get(defHash DefinitionHash, argHash ArgBindingHash) *StateEntry {
	return s.entries[cacheKey(string(defHash), string(argHash))]
}

// Put records or replaces the entry for (defHash, argHash).
func (s *State) Put(defHash DefinitionHash, argHash ArgBindingHash, lastRunUnix int64, inputs map[string]int64) {
	key := cacheKey(string(defHash), string(argHash))
	s.entries[key] = &StateEntry{
		DefHash:     string(defHash),
		ArgHash:     string(argHash),
		LastRunUnix: lastRunUnix,
		Inputs:      inputs,
	}
}

// Prune removes every entry whose DefHash is not in validDefHashes,
// mirroring StateManager.prune in the original source.
func (s *State) Prune(validDefHashes map[DefinitionHash]bool) int {
	removed := 0
	for key, e := range s.entries {
		if !validDefHashes[DefinitionHash(e.DefHash)] {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Save rewrites the state file atomically: write to a temp file in
// the same directory, then rename over the canonical path, so a crash
// mid-write never leaves a truncated file as the visible state
// (spec.md §4.5 step 7, §5 "Cancellation").
func (s *State) Save(fs platform.FileSystem) error {
	list := make([]*StateEntry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return tterrors.NewStateError("StateFileWriteFailed", s.path, err)
	}

	tmp := s.path + fmt.Sprintf(".tmp-%d", len(list))
	if err := fs.WriteFile(tmp, data, 0o644); err != nil {
		return tterrors.NewStateError("StateFileWriteFailed", s.path, err)
	}
	if err := fs.Rename(tmp, s.path); err != nil {
		return tterrors.NewStateError("StateFileWriteFailed", s.path, err)
	}
	return nil
}

// DefaultStatePath is <project_root>/.tasktree-state unless overridden
// by TT_STATE_FILE_PATH (the containerized-runner contract, spec.md §6).
func DefaultStatePath(projectRoot string, env platform.Environment) string {
	if path, ok := env.Getenv("TT_STATE_FILE_PATH"); ok && path != "" {
		return path
	}
	return filepath.Join(projectRoot, StateFileName)
}
