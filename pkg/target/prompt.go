package target

import (
	"os"
	"regexp"
	"strings"
)

// Content sentinels. A prompt equal to one of these bypasses the normal
// clipboard-paste sequence entirely.
const (
	// SentinelErase clears the target's input field and submits empty.
	SentinelErase = "~"
	// SentinelSilent submits without altering or pasting any content.
	SentinelSilent = "#"
)

// Prompt is the text payload resolved for one (window, round) pair.
type Prompt struct {
	Text string
}

// IsErase reports the erase sentinel.
func (p Prompt) IsErase() bool { return strings.TrimSpace(p.Text) == SentinelErase }

// IsSilent reports the silent-submit sentinel.
func (p Prompt) IsSilent() bool { return strings.TrimSpace(p.Text) == SentinelSilent }

// IsEmpty reports a prompt with no content at all. Empty prompts are
// delivered as an erase, matching the historical behavior.
func (p Prompt) IsEmpty() bool { return strings.TrimSpace(p.Text) == "" }

// Resolver resolves the effective prompt for a round under the fixed
// precedence: live prompts first, then the per-target active prompt, then
// the global default.
type Resolver struct {
	// Live is the prioritized in-memory prompt list; entry (round-1) mod
	// len cycles across rounds.
	Live []string

	// TargetActive is the persisted active prompt of the current target,
	// empty when the target file has none.
	TargetActive string

	// Default is the global DEFAULT_PROMPT from configuration.
	Default string
}

// Resolve returns the effective prompt for a 1-based round.
func (r Resolver) Resolve(round int) Prompt {
	if len(r.Live) > 0 {
		return Prompt{Text: r.Live[(round-1)%len(r.Live)]}
	}
	if strings.TrimSpace(r.TargetActive) != "" {
		return Prompt{Text: r.TargetActive}
	}
	return Prompt{Text: r.Default}
}

var separators = regexp.MustCompile(`[,\s]+`)

// ParseURLs interprets a URL input: a path to an existing file is read one
// URL per line with # comments, anything else is split on commas and
// whitespace. A completely empty input yields the input itself, so the
// error surfaces downstream at launch rather than silently staging nothing.
func ParseURLs(input string) []string {
	input = strings.TrimSpace(input)
	if isFile(input) {
		return readListFile(input)
	}

	var urls []string
	for _, part := range separators.Split(input, -1) {
		if part != "" {
			urls = append(urls, part)
		}
	}
	if len(urls) == 0 {
		return []string{input}
	}
	return urls
}

// ParsePrompts interprets a prompt input: a path to an existing file is
// read one prompt per line with # comments, anything else is a single
// prompt. An empty input yields one explicit empty prompt.
func ParsePrompts(input string) []string {
	input = strings.TrimSpace(input)
	if isFile(input) {
		return readListFile(input)
	}
	if input == "" {
		return []string{""}
	}
	return []string{input}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func readListFile(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var items []string
	for _, line := range strings.Split(string(data), "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return items
}
