// Package fire drives the multi-round input-injection loop against the
// staged windows. One firing session runs at a time, on its own goroutine,
// with cooperative cancellation checked between windows and between rounds.
package fire

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/blitz/pkg/config"
	"github.com/entrhq/blitz/pkg/logging"
	"github.com/entrhq/blitz/pkg/target"
	"github.com/entrhq/blitz/pkg/windowctl"
)

// ErrAlreadyFiring rejects a start request while a session is active.
var ErrAlreadyFiring = errors.New("fire: a firing session is already active")

// Click-point defaults when the position keys are not configured.
const (
	defaultClickX = "50%"
	defaultClickY = "10%"
)

// StatusFunc receives human-readable progress updates.
type StatusFunc func(status string)

// Session is the transient state of one firing run. It is created by Start
// and torn down when the loop finishes or is cancelled; the cancellation
// flag is the only signal shared between the control thread and the loop.
type Session struct {
	ID     string
	rounds int

	shots     atomic.Int64
	cancelled atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Shots returns the number of shots fired so far.
func (s *Session) Shots() int { return int(s.shots.Load()) }

// Cancelled reports whether cancellation has been requested.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// Done is closed when the firing loop has fully exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Controller owns the firing state machine: Idle -> Firing -> Idle.
type Controller struct {
	store  *config.Store
	ctl    windowctl.Control
	log    *logging.Logger
	status StatusFunc

	mu      sync.Mutex
	session *Session

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a firing controller. log and status may be nil.
func New(store *config.Store, ctl windowctl.Control, log *logging.Logger, status StatusFunc) *Controller {
	return &Controller{
		store:  store,
		ctl:    ctl,
		log:    log,
		status: status,
		sleep:  sleepCtx,
	}
}

// Start begins a firing session on a background goroutine and returns it
// immediately. A second start while one is active fails with
// ErrAlreadyFiring and changes no state.
func (c *Controller) Start(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return nil, ErrAlreadyFiring
	}

	cfg, err := c.store.LoadTiers()
	if err != nil {
		return nil, err
	}
	rounds, err := cfg.Int("FIRE_COUNT")
	if err != nil {
		return nil, err
	}

	// Persist the firing flag so other processes and the panel see state.
	if err := c.store.Set(config.Batch, "FIRE_MODE", "Y"); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	sess := &Session{
		ID:     uuid.New().String(),
		rounds: rounds,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.session = sess

	go c.run(runCtx, sess)
	return sess, nil
}

// Stop requests cooperative cancellation of the active session, if any.
// The loop observes the flag at the next window or round boundary; no
// in-flight window operation is interrupted.
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess == nil {
		return
	}
	sess.cancelled.Store(true)
	sess.cancel()

	if err := c.store.Set(config.Batch, "FIRE_MODE", "N"); err != nil {
		c.warnf("failed to clear firing flag: %v", err)
	}
}

// Firing reports whether a session is currently active.
func (c *Controller) Firing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Wait blocks until the active session, if any, has fully exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		<-sess.done
	}
}

// run is the firing loop. It owns session teardown: clearing the persisted
// flag, final status, and releasing the controller back to Idle.
func (c *Controller) run(ctx context.Context, sess *Session) {
	defer func() {
		if err := c.store.Set(config.Batch, "FIRE_MODE", "N"); err != nil {
			c.warnf("failed to clear firing flag: %v", err)
		}
		c.report(fmt.Sprintf("Done — %d shots", sess.Shots()))

		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
		close(sess.done)
	}()

	for round := 1; round <= sess.rounds; round++ {
		if sess.Cancelled() {
			return
		}

		// Configuration and the window list are re-read every round so
		// concurrent edits and a re-stage are picked up.
		cfg, err := c.store.LoadTiers()
		if err != nil {
			c.warnf("round %d: config reload failed: %v", round, err)
			return
		}

		// Another process may have cleared the persisted flag; honor it
		// the same as an in-process stop.
		if strings.EqualFold(cfg.StringOr("FIRE_MODE", "Y"), "N") {
			c.infof("round %d: firing flag cleared externally", round)
			return
		}

		if round > 1 {
			roundDelay, err := cfg.Float("ROUND_DELAY")
			if err != nil {
				c.warnf("round %d: %v", round, err)
				return
			}
			if err := c.sleep(ctx, seconds(roundDelay)); err != nil {
				return
			}
			if sess.Cancelled() {
				return
			}
		}

		if err := c.fireRound(ctx, cfg, sess, round); err != nil {
			c.warnf("round %d aborted: %v", round, err)
			return
		}
	}
}

// fireRound processes every window in the persisted list order. A failure
// on one window is logged and skipped; it never aborts the round.
func (c *Controller) fireRound(ctx context.Context, cfg config.Effective, sess *Session, round int) error {
	listPath, err := cfg.String("WINDOW_LIST")
	if err != nil {
		return err
	}
	shotDelay, err := cfg.Float("SHOT_DELAY")
	if err != nil {
		return err
	}
	interDelay := 0.0
	if v, err := cfg.Float("INTER_WINDOW_DELAY"); err == nil {
		interDelay = v
	}

	handles, err := target.LoadWindowList(listPath)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		c.infof("round %d: no staged windows", round)
		return nil
	}

	resolver, err := c.buildResolver(cfg)
	if err != nil {
		return err
	}
	prompt := resolver.Resolve(round)

	for _, h := range handles {
		if sess.Cancelled() {
			return nil
		}

		if err := c.fireWindow(ctx, cfg, h, prompt); err != nil {
			c.warnf("round %d: window %s failed: %v", round, h, err)
			continue
		}

		// The injection is the shot; count it before the pacing delays so
		// a cancellation mid-sleep never uncounts completed work.
		sess.shots.Add(1)
		c.report(fmt.Sprintf("Firing round %d/%d — %d shots", round, sess.rounds, sess.Shots()))
		c.recordShot(cfg, prompt)

		if err := c.sleep(ctx, seconds(shotDelay)); err != nil {
			return nil
		}
		if err := c.sleep(ctx, seconds(interDelay)); err != nil {
			return nil
		}
	}

	return nil
}

// fireWindow performs the per-window injection sequence: focus, position
// the pointer on the prompt field, scroll content into place, click, then
// deliver the prompt. The mouse is restored afterwards.
func (c *Controller) fireWindow(ctx context.Context, cfg config.Effective, h windowctl.Handle, prompt target.Prompt) error {
	if err := c.ctl.Activate(ctx, h, false); err != nil {
		return err
	}

	saved, err := c.ctl.MousePos(ctx)
	if err != nil {
		return err
	}

	geom, err := c.ctl.Geometry(ctx, h)
	if err != nil {
		return err
	}

	clickX, err := resolveOffset(cfg.StringOr("PROMPT_X_FROM_LEFT", defaultClickX), geom.Width)
	if err != nil {
		return err
	}
	fromBottom, err := resolveOffset(cfg.StringOr("PROMPT_Y_FROM_BOTTOM", defaultClickY), geom.Height)
	if err != nil {
		return err
	}
	clickY := geom.Height - fromBottom

	if err := c.ctl.MoveMouse(ctx, h, clickX, clickY); err != nil {
		return err
	}

	// Scroll the page content into position, then click to focus the
	// prompt field.
	if err := c.ctl.Click(ctx, h, windowctl.ButtonScrollUp, 3); err != nil {
		return err
	}
	if err := c.ctl.Click(ctx, h, windowctl.ButtonLeft, 1); err != nil {
		return err
	}

	if err := c.inject(ctx, h, prompt); err != nil {
		return err
	}

	// Put the pointer back where the operator left it.
	if err := c.ctl.MoveMouse(ctx, "", saved.X, saved.Y); err != nil {
		c.warnf("window %s: failed to restore mouse: %v", h, err)
	}
	return nil
}

// inject delivers the prompt. The sentinels bypass the clipboard entirely.
func (c *Controller) inject(ctx context.Context, h windowctl.Handle, prompt target.Prompt) error {
	switch {
	case prompt.IsErase() || prompt.IsEmpty():
		return c.ctl.SendKeys(ctx, h, "ctrl+a", "Delete", "Return")
	case prompt.IsSilent():
		return c.ctl.SendKeys(ctx, h, "Return")
	default:
		if err := c.ctl.SetClipboard(prompt.Text); err != nil {
			return err
		}
		return c.ctl.SendKeys(ctx, h, "ctrl+a", "ctrl+v", "Return")
	}
}

// buildResolver assembles the prompt precedence chain for this round: live
// PROMPT= lines from the user tier, then the persisted active prompt of the
// configured target, then the global default.
func (c *Controller) buildResolver(cfg config.Effective) (target.Resolver, error) {
	live, err := c.store.ValuesOf(config.User, "PROMPT")
	if err != nil {
		return target.Resolver{}, err
	}

	resolver := target.Resolver{Live: live}

	if dir := cfg.StringOr("TARGETS_DIR", ""); dir != "" {
		if url := cfg.StringOr("DEFAULT_URL", ""); url != "" {
			if active, ok := target.ActivePromptFor(dir, url); ok {
				resolver.TargetActive = active
			}
		}
	}

	resolver.Default, err = cfg.String("DEFAULT_PROMPT")
	if err != nil {
		return target.Resolver{}, err
	}
	return resolver, nil
}

// recordShot persists the fired prompt to the target's history file.
// Sentinels and empty prompts carry no content worth recording.
func (c *Controller) recordShot(cfg config.Effective, prompt target.Prompt) {
	if prompt.IsErase() || prompt.IsSilent() || prompt.IsEmpty() {
		return
	}
	dir := cfg.StringOr("TARGETS_DIR", "")
	url := cfg.StringOr("DEFAULT_URL", "")
	if dir == "" || url == "" {
		return
	}
	if err := target.RecordShot(dir, url, prompt.Text); err != nil {
		c.warnf("failed to record shot: %v", err)
	}
}

// resolveOffset interprets a click-point offset: "35%" is a fraction of the
// window dimension, a bare number is absolute pixels.
func resolveOffset(spec string, dimension int) (int, error) {
	spec = strings.TrimSpace(spec)
	if strings.HasSuffix(spec, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(spec, "%"))
		if err != nil {
			return 0, fmt.Errorf("fire: invalid percent offset %q: %w", spec, err)
		}
		return dimension * pct / 100, nil
	}
	n, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("fire: invalid offset %q: %w", spec, err)
	}
	return n, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Controller) infof(format string, v ...interface{}) {
	if c.log != nil {
		c.log.Infof(format, v...)
	}
}

func (c *Controller) warnf(format string, v ...interface{}) {
	if c.log != nil {
		c.log.Warnf(format, v...)
	}
}

func (c *Controller) report(status string) {
	if c.status != nil {
		c.status(status)
	}
}
