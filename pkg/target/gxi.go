package target

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// A .gxi file keeps per-target prompt state: four staged prompt lists with
// the active prompt marked by a leading @, each stage followed by a history
// of previously fired prompts.
const (
	// NumStages is the fixed number of prompt stages per target.
	NumStages = 4

	// FileExt is the per-target file extension.
	FileExt = ".gxi"

	bornFormat = "2006-01-02 15:04"
)

// Stage is one prompt list with its fired history.
type Stage struct {
	// Prompts in priority order. Active indexes the prompt currently
	// marked with @; -1 means no active prompt in this stage.
	Prompts []string
	Active  int
	History []string
}

// File is the parsed per-target prompt state.
type File struct {
	URL    string
	Born   time.Time
	Desc   string
	Stages [NumStages]Stage
}

// PathFor returns the target file path for a URL: the URL-escaped name
// keeps one flat directory of target files.
func PathFor(dir, targetURL string) string {
	return filepath.Join(dir, url.QueryEscape(targetURL)+FileExt)
}

// NewFile creates the in-memory skeleton for a fresh target.
func NewFile(targetURL string) *File {
	f := &File{URL: targetURL, Born: time.Now()}
	for i := range f.Stages {
		f.Stages[i].Active = -1
	}
	return f
}

// LoadFile parses a target file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("target: failed to read %s: %w", path, err)
	}

	f := NewFile("")
	section := -1 // current stage index, -1 = header
	inHistory := false

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		var n int
		switch {
		case matchSection(trimmed, "STAGE_", &n):
			section, inHistory = n, false
		case matchSection(trimmed, ".history_", &n):
			section, inHistory = n, true
		case section < 0:
			parseHeaderLine(f, trimmed)
		case inHistory:
			f.Stages[section].History = append(f.Stages[section].History, trimmed)
		default:
			stage := &f.Stages[section]
			if strings.HasPrefix(trimmed, "@") {
				stage.Active = len(stage.Prompts)
				trimmed = strings.TrimPrefix(trimmed, "@")
			}
			stage.Prompts = append(stage.Prompts, trimmed)
		}
	}

	return f, nil
}

// LoadOrCreate reads the target file for a URL, creating the skeleton when
// none exists yet.
func LoadOrCreate(dir, targetURL string) (*File, error) {
	path := PathFor(dir, targetURL)
	f, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewFile(targetURL), nil
		}
		return nil, err
	}
	if f.URL == "" {
		f.URL = targetURL
	}
	return f, nil
}

// ActivePrompt returns the first active prompt across stages, in stage
// order, and whether one exists.
func (f *File) ActivePrompt() (string, bool) {
	for _, s := range f.Stages {
		if s.Active >= 0 && s.Active < len(s.Prompts) {
			return s.Prompts[s.Active], true
		}
	}
	return "", false
}

// SetActive marks prompt as the active entry of a stage, inserting it when
// not already present.
func (f *File) SetActive(stage int, prompt string) {
	if stage < 0 || stage >= NumStages {
		return
	}
	s := &f.Stages[stage]
	for i, p := range s.Prompts {
		if p == prompt {
			s.Active = i
			return
		}
	}
	s.Prompts = append(s.Prompts, prompt)
	s.Active = len(s.Prompts) - 1
}

// AppendHistory records a fired prompt in a stage's history.
func (f *File) AppendHistory(stage int, prompt string) {
	if stage < 0 || stage >= NumStages || strings.TrimSpace(prompt) == "" {
		return
	}
	f.Stages[stage].History = append(f.Stages[stage].History, prompt)
}

// Save writes the canonical file layout.
func (f *File) Save(path string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "TARGET_URL=%s\n", f.URL)
	fmt.Fprintf(&b, "TARGET_BORN=%s\n", f.Born.Format(bornFormat))
	if f.Desc != "" {
		fmt.Fprintf(&b, "TARGET_DESC=%s\n", f.Desc)
	}
	b.WriteByte('\n')

	for i, s := range f.Stages {
		fmt.Fprintf(&b, "STAGE_%d\n", i)
		for j, p := range s.Prompts {
			if j == s.Active {
				b.WriteByte('@')
			}
			b.WriteString(p)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
		fmt.Fprintf(&b, ".history_%d\n", i)
		for _, h := range s.History {
			b.WriteString(h)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("target: failed to create target directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("target: failed to write %s: %w", path, err)
	}
	return nil
}

// RecordShot persists one fired prompt against a target: the prompt becomes
// the active entry of stage 0 and joins its history.
func RecordShot(dir, targetURL, prompt string) error {
	f, err := LoadOrCreate(dir, targetURL)
	if err != nil {
		return err
	}
	f.SetActive(0, prompt)
	f.AppendHistory(0, prompt)
	return f.Save(PathFor(dir, targetURL))
}

// ActivePromptFor reads the persisted active prompt of a target, if any.
func ActivePromptFor(dir, targetURL string) (string, bool) {
	f, err := LoadFile(PathFor(dir, targetURL))
	if err != nil {
		return "", false
	}
	return f.ActivePrompt()
}

// matchSection parses markers like STAGE_2 or .history_1 into n.
func matchSection(line, prefix string, n *int) bool {
	if !strings.HasPrefix(line, prefix) {
		return false
	}
	rest := strings.TrimPrefix(line, prefix)
	if len(rest) != 1 || rest[0] < '0' || rest[0] > '9' {
		return false
	}
	idx := int(rest[0] - '0')
	if idx >= NumStages {
		return false
	}
	*n = idx
	return true
}

func parseHeaderLine(f *File, line string) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	switch key {
	case "TARGET_URL":
		f.URL = value
	case "TARGET_BORN":
		if t, err := time.Parse(bornFormat, value); err == nil {
			f.Born = t
		}
	case "TARGET_DESC":
		f.Desc = value
	}
}
