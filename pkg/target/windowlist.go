// Package target manages the persisted artifacts shared between staging and
// firing: the window-id list, per-target prompt files, and the prompt
// resolution rules including the two content sentinels.
package target

import (
	"fmt"
	"os"
	"strings"

	"github.com/entrhq/blitz/pkg/windowctl"
)

// SaveWindowList writes the staged handles to path, one opaque token per
// line. The file is the hand-off contract between staging and firing; it is
// rewritten fresh on every staging cycle.
func SaveWindowList(path string, handles []windowctl.Handle) error {
	var b strings.Builder
	for _, h := range handles {
		b.WriteString(string(h))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("target: failed to write window list: %w", err)
	}
	return nil
}

// LoadWindowList reads the staged handles from path. A missing file yields
// an empty list: firing against nothing staged is a no-op, not an error.
func LoadWindowList(path string) ([]windowctl.Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("target: failed to read window list: %w", err)
	}

	var handles []windowctl.Handle
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			handles = append(handles, windowctl.Handle(line))
		}
	}
	return handles, nil
}

// RemoveWindowList deletes the artifact. Called on shutdown and before each
// staging cycle; a missing file is fine.
func RemoveWindowList(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("target: failed to remove window list: %w", err)
	}
	return nil
}
