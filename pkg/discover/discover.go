// Package discover locates target windows by title. Browser windows appear
// asynchronously after launch, so discovery polls the window system and
// adapts to real progress: it succeeds as soon as enough windows match,
// and gives up only once the visible window population has stopped changing.
package discover

import (
	"context"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/blitz/pkg/logging"
	"github.com/entrhq/blitz/pkg/windowctl"
)

// Defaults for the polling loop, matching the tool's historical tuning.
const (
	DefaultMaxAttempts   = 30
	DefaultStagnantLimit = 3
)

// Options configures a Discoverer.
type Options struct {
	// Patterns are case-insensitive title matchers. A plain pattern
	// matches as a substring; a pattern containing glob metacharacters
	// (*, ?, [, {) must match the whole title.
	Patterns []string

	// PollInterval is the pause between enumeration attempts.
	PollInterval time.Duration

	// MaxAttempts bounds the loop. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// StagnantLimit is the number of consecutive polls with an unchanged
	// total visible window count after which discovery gives up. Zero
	// means DefaultStagnantLimit.
	StagnantLimit int
}

// matcher is one compiled title pattern.
type matcher struct {
	substring string
	glob      glob.Glob
}

func (m matcher) matches(title string) bool {
	if m.glob != nil {
		return m.glob.Match(title)
	}
	return strings.Contains(title, m.substring)
}

// Discoverer polls the window system for windows whose titles match the
// configured patterns.
type Discoverer struct {
	ctl      windowctl.Control
	opts     Options
	matchers []matcher
	log      *logging.Logger
}

// New compiles the patterns and returns a Discoverer. Glob-style patterns
// that fail to compile are demoted to substring matching.
func New(ctl windowctl.Control, opts Options, log *logging.Logger) *Discoverer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.StagnantLimit <= 0 {
		opts.StagnantLimit = DefaultStagnantLimit
	}

	matchers := make([]matcher, 0, len(opts.Patterns))
	for _, p := range opts.Patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, `*?[{`) {
			if g, err := glob.Compile(p); err == nil {
				matchers = append(matchers, matcher{glob: g})
				continue
			}
		}
		matchers = append(matchers, matcher{substring: p})
	}

	return &Discoverer{ctl: ctl, opts: opts, matchers: matchers, log: log}
}

// Discover polls until expected windows match, the visible window count
// stagnates, or MaxAttempts is exhausted. On stagnation or timeout it
// returns the best matched set seen so far, which may be empty. A discovery
// shortfall is not an error; only context cancellation aborts with one.
func (d *Discoverer) Discover(ctx context.Context, expected int) ([]windowctl.Handle, error) {
	var best []windowctl.Handle
	lastTotal := -1
	stagnant := 0

	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}

		visible, err := d.ctl.ListVisible(ctx)
		if err != nil {
			// Enumeration hiccups count as an empty poll, not a failure.
			d.infof("attempt %d/%d: enumeration failed: %v", attempt, d.opts.MaxAttempts, err)
			visible = nil
		}

		if len(visible) == lastTotal {
			stagnant++
		} else {
			stagnant = 0
		}
		lastTotal = len(visible)

		matched := d.matchTitles(ctx, visible)
		if len(matched) > 0 {
			best = matched
		}
		d.infof("attempt %d/%d: %d visible, %d matched", attempt, d.opts.MaxAttempts, len(visible), len(matched))

		if len(matched) >= expected {
			return matched, nil
		}
		if stagnant >= d.opts.StagnantLimit {
			d.infof("window count stagnant for %d polls, keeping best %d", stagnant, len(best))
			return best, nil
		}

		if err := sleep(ctx, d.opts.PollInterval); err != nil {
			return best, err
		}
	}

	d.infof("max attempts reached, keeping best %d", len(best))
	return best, nil
}

// matchTitles filters the visible handles down to those whose titles match
// any pattern. Windows whose title cannot be read are skipped.
func (d *Discoverer) matchTitles(ctx context.Context, visible []windowctl.Handle) []windowctl.Handle {
	var matched []windowctl.Handle
	for _, h := range visible {
		title, err := d.ctl.Title(ctx, h)
		if err != nil {
			continue
		}
		title = strings.ToLower(title)
		for _, m := range d.matchers {
			if m.matches(title) {
				matched = append(matched, h)
				break
			}
		}
	}
	return matched
}

func (d *Discoverer) infof(format string, v ...interface{}) {
	if d.log != nil {
		d.log.Infof(format, v...)
	}
}

// sleep pauses for the interval or until the context is cancelled.
func sleep(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
