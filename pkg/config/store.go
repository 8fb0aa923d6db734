package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Tier identifies one configuration override layer. Later tiers override
// earlier ones: System < Batch < User.
type Tier int

const (
	System Tier = iota
	Batch
	User

	tierCount
)

// Tier file names, resolved relative to the store directory.
const (
	SystemFile = "system.env"
	BatchFile  = "batch.env"
	UserFile   = "user.env"
)

func (t Tier) String() string {
	switch t {
	case System:
		return "system"
	case Batch:
		return "batch"
	case User:
		return "user"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// reservedKey reports keys that Prune must never remove from an override
// tier: runtime state flags and persisted panel geometry.
func reservedKey(key string) bool {
	return key == "FIRE_MODE" || strings.HasPrefix(key, "PANEL_")
}

// Store reads and writes the three tier files. All writes happen on the
// caller's goroutine; the single-writer convention (one UI/control thread)
// is assumed, matching the process model of the orchestrator.
type Store struct {
	paths [tierCount]string
}

// NewStore creates a store rooted at dir. Missing tier files are treated as
// empty tiers, not errors.
func NewStore(dir string) *Store {
	return &Store{
		paths: [tierCount]string{
			System: filepath.Join(dir, SystemFile),
			Batch:  filepath.Join(dir, BatchFile),
			User:   filepath.Join(dir, UserFile),
		},
	}
}

// Path returns the backing file path for a tier.
func (s *Store) Path(t Tier) string {
	return s.paths[t]
}

// LoadTiers reads all tiers and returns the merged effective configuration.
// The result is recomputed from disk on every call; nothing is cached across
// mutations.
func (s *Store) LoadTiers() (Effective, error) {
	merged := make(Effective)
	for t := System; t < tierCount; t++ {
		values, err := s.Values(t)
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	return merged, nil
}

// Values reads a single tier as a key/value map (last occurrence wins).
func (s *Store) Values(t Tier) (map[string]string, error) {
	file, err := os.Open(s.paths[t])
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("config: failed to open %s tier: %w", t, err)
	}
	defer file.Close()

	return parseMap(file), nil
}

// ValuesOf returns every occurrence of key in a tier, in file order. Used
// for keys that form ordered lists by repetition (PROMPT= lines).
func (s *Store) ValuesOf(t Tier, key string) ([]string, error) {
	file, err := os.Open(s.paths[t])
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: failed to open %s tier: %w", t, err)
	}
	defer file.Close()

	var values []string
	for _, e := range parseEntries(file) {
		if e.key == key {
			values = append(values, e.value)
		}
	}
	return values, nil
}

// Set upserts a single key in one tier, rewriting the tier file atomically.
// Existing lines, including comments, are preserved; only the key's
// assignment (and its continuation lines) is replaced.
func (s *Store) Set(t Tier, key, value string) error {
	lines, err := readLines(s.paths[t])
	if err != nil {
		return err
	}

	lines, found := replaceKeyLines(lines, key, value)
	if !found {
		lines = append(lines, formatAssignment(key, value))
	}

	return writeLinesAtomic(s.paths[t], lines)
}

// Delete removes every assignment of key from one tier.
func (s *Store) Delete(t Tier, key string) error {
	lines, err := readLines(s.paths[t])
	if err != nil {
		return err
	}

	filtered := removeKeyLines(lines, key)
	if len(filtered) == len(lines) {
		return nil
	}

	return writeLinesAtomic(s.paths[t], filtered)
}

// SetList replaces every assignment of key in one tier with one assignment
// per given value, appended in order. An empty list removes the key.
func (s *Store) SetList(t Tier, key string, values []string) error {
	lines, err := readLines(s.paths[t])
	if err != nil {
		return err
	}

	lines = removeKeyLines(lines, key)
	for _, v := range values {
		lines = append(lines, formatAssignment(key, v))
	}

	return writeLinesAtomic(s.paths[t], lines)
}

// Prune removes from an override tier every key whose value equals the
// System tier's value, keeping override files minimal. Runtime flags and
// panel geometry keys are never pruned. Pruning the System tier is a no-op.
func (s *Store) Prune(t Tier) error {
	if t == System {
		return nil
	}

	system, err := s.Values(System)
	if err != nil {
		return err
	}

	values, err := s.Values(t)
	if err != nil {
		return err
	}

	lines, err := readLines(s.paths[t])
	if err != nil {
		return err
	}

	changed := false
	for key, value := range values {
		if reservedKey(key) {
			continue
		}
		if sysValue, ok := system[key]; ok && sysValue == value {
			lines = removeKeyLines(lines, key)
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return writeLinesAtomic(s.paths[t], lines)
}

// formatAssignment renders a KEY="value" line in the tier grammar.
func formatAssignment(key, value string) string {
	return fmt.Sprintf("%s=%q", key, value)
}

// readLines returns the raw lines of path; a missing file is an empty tier.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	// Split leaves a trailing empty element after the final newline.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// writeLinesAtomic writes lines to path via a temp file and rename.
func writeLinesAtomic(path string, lines []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(tempPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("config: failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("config: failed to replace %s: %w", path, err)
	}
	return nil
}

// assignmentIndex reports whether line opens an assignment of key.
func assignmentIndex(line, key string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, key+"=")
}

// isBoundary reports lines that terminate a continuation: blank lines and
// new assignments of any key.
func isBoundary(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	return keyLine.MatchString(trimmed)
}

// replaceKeyLines substitutes the first assignment of key (with its
// continuation lines) by a single formatted assignment, and drops any later
// duplicates.
func replaceKeyLines(lines []string, key, value string) ([]string, bool) {
	var out []string
	found := false
	skipping := false

	for _, line := range lines {
		if skipping {
			switch {
			case strings.HasPrefix(strings.TrimSpace(line), "#"):
				// Comments interleaved with a continuation survive.
				out = append(out, line)
				continue
			case !isBoundary(line):
				continue
			}
			skipping = false
		}
		if assignmentIndex(line, key) {
			if !found {
				out = append(out, formatAssignment(key, value))
				found = true
			}
			skipping = true
			continue
		}
		out = append(out, line)
	}

	return out, found
}

// removeKeyLines drops every assignment of key along with continuation lines.
func removeKeyLines(lines []string, key string) []string {
	var out []string
	skipping := false

	for _, line := range lines {
		if skipping {
			switch {
			case strings.HasPrefix(strings.TrimSpace(line), "#"):
				out = append(out, line)
				continue
			case !isBoundary(line):
				continue
			}
			skipping = false
		}
		if assignmentIndex(line, key) {
			skipping = true
			continue
		}
		out = append(out, line)
	}

	return out
}
