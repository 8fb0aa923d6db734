// Package stage launches a batch of browser windows against a URL cycle,
// waits for them to appear, arranges them in a screen grid, and persists
// the resulting window-id list for the firing loop.
package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/blitz/pkg/config"
	"github.com/entrhq/blitz/pkg/discover"
	"github.com/entrhq/blitz/pkg/grid"
	"github.com/entrhq/blitz/pkg/logging"
	"github.com/entrhq/blitz/pkg/target"
	"github.com/entrhq/blitz/pkg/windowctl"
)

// Fallback screen size when the display cannot be queried.
const (
	fallbackScreenW = 1920
	fallbackScreenH = 1080
)

// StatusFunc receives human-readable progress updates.
type StatusFunc func(status string)

// Controller runs the staging sequence. Configuration is re-read from the
// tier store at the start of every Stage call, never cached across runs.
type Controller struct {
	store    *config.Store
	ctl      windowctl.Control
	launcher Launcher
	log      *logging.Logger
	status   StatusFunc

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a staging controller. log and status may be nil.
func New(store *config.Store, ctl windowctl.Control, launcher Launcher, log *logging.Logger, status StatusFunc) *Controller {
	return &Controller{
		store:    store,
		ctl:      ctl,
		launcher: launcher,
		log:      log,
		status:   status,
		sleep:    sleepCtx,
	}
}

// Stage tears down the previous batch, launches the configured number of
// browser windows, discovers them by title, applies the grid plan, and
// persists the window list. It returns the number of windows staged;
// staging fewer windows than requested is a shortfall, not an error.
func (c *Controller) Stage(ctx context.Context) (int, error) {
	cfg, err := c.store.LoadTiers()
	if err != nil {
		return 0, err
	}

	count, err := cfg.Int("STAGE_COUNT")
	if err != nil {
		return 0, err
	}
	listPath, err := cfg.String("WINDOW_LIST")
	if err != nil {
		return 0, err
	}
	urlInput, err := cfg.String("DEFAULT_URL")
	if err != nil {
		return 0, err
	}
	// A URL file of nothing but comments or blank lines parses to an empty
	// cycle; surface that before any window is touched.
	urls := target.ParseURLs(urlInput)
	if len(urls) == 0 {
		return 0, fmt.Errorf("stage: DEFAULT_URL %q yields no URLs to launch", urlInput)
	}
	patterns, err := cfg.String("WINDOW_PATTERNS")
	if err != nil {
		return 0, err
	}
	cellW, err := cfg.Int("DEFAULT_WIDTH")
	if err != nil {
		return 0, err
	}
	cellH, err := cfg.Int("DEFAULT_HEIGHT")
	if err != nil {
		return 0, err
	}
	overlap, err := cfg.Int("MAX_OVERLAP_PERCENT")
	if err != nil {
		return 0, err
	}
	stageDelay, err := cfg.Float("STAGE_DELAY")
	if err != nil {
		return 0, err
	}
	settleDelay, err := cfg.Float("GRID_START_DELAY")
	if err != nil {
		return 0, err
	}

	c.report("Staging…")

	// Old batch first: close its windows, then drop the stale artifact.
	c.closeStaged(ctx, cfg, listPath)
	if err := target.RemoveWindowList(listPath); err != nil {
		c.warnf("could not remove previous window list: %v", err)
	}

	argv, tailGlued, err := launchCommand(cfg)
	if err != nil {
		return 0, err
	}

	for i := 0; i < count; i++ {
		url := urls[i%len(urls)]
		cmd := appendURL(argv, url, tailGlued)

		c.infof("launching window %d/%d: %s", i+1, count, strings.Join(cmd, " "))
		if err := c.launcher.Launch(cmd); err != nil {
			// One failed launch must not sink the batch.
			c.warnf("launch failed: %v", err)
		}

		if err := c.sleep(ctx, seconds(stageDelay)); err != nil {
			return 0, err
		}
	}

	if err := c.sleep(ctx, seconds(settleDelay)); err != nil {
		return 0, err
	}

	d := discover.New(c.ctl, discover.Options{
		Patterns:     splitPatterns(patterns),
		PollInterval: seconds(settleDelay),
	}, c.log)
	handles, err := d.Discover(ctx, count)
	if err != nil {
		return 0, err
	}

	if len(handles) > 0 {
		c.applyGrid(ctx, handles, cellW, cellH, overlap)
	}

	if err := target.SaveWindowList(listPath, handles); err != nil {
		return len(handles), err
	}

	c.infof("staged %d/%d windows", len(handles), count)
	c.report("Ready")
	return len(handles), nil
}

// closeStaged closes every window from the previous batch: activate, then
// the window manager close key. Broken handles are skipped.
func (c *Controller) closeStaged(ctx context.Context, cfg config.Effective, listPath string) {
	handles, err := target.LoadWindowList(listPath)
	if err != nil || len(handles) == 0 {
		return
	}

	opDelay := 1.0
	if v, err := cfg.Float("TARGET_OP_DELAY"); err == nil {
		opDelay = v
	}

	for _, h := range handles {
		if err := c.ctl.Activate(ctx, h, true); err != nil {
			c.warnf("close: activate %s failed: %v", h, err)
			continue
		}
		if err := c.ctl.SendKeys(ctx, h, "alt+F4"); err != nil {
			c.warnf("close: %s failed: %v", h, err)
		}
		if err := c.sleep(ctx, seconds(opDelay)); err != nil {
			return
		}
	}
}

// applyGrid plans placements for the discovered handles and applies them.
// A window that fails to move is logged and left where it is.
func (c *Controller) applyGrid(ctx context.Context, handles []windowctl.Handle, cellW, cellH, overlap int) {
	screenW, screenH, err := c.ctl.DisplaySize(ctx)
	if err != nil {
		c.warnf("display geometry unavailable, assuming %dx%d: %v", fallbackScreenW, fallbackScreenH, err)
		screenW, screenH = fallbackScreenW, fallbackScreenH
	}

	layout := grid.Plan(grid.Params{
		Count:         len(handles),
		CellWidth:     cellW,
		CellHeight:    cellH,
		ScreenWidth:   screenW,
		ScreenHeight:  screenH,
		MaxOverlapPct: overlap,
	})

	for i, h := range handles {
		cell := layout.Cells[i]
		if err := c.ctl.ResizeMove(ctx, h, cellW, cellH, cell.X, cell.Y); err != nil {
			c.warnf("grid: failed to place %s: %v", h, err)
		}
	}
}

// launchCommand assembles the browser argv from configuration. The second
// return reports whether tail flags are present, in which case the URL is
// glued onto the final flag instead of passed as its own argument.
func launchCommand(cfg config.Effective) ([]string, bool, error) {
	browser, err := cfg.String("BROWSER")
	if err != nil {
		return nil, false, err
	}

	argv := []string{browser}
	tailGlued := false
	for _, key := range []string{"BROWSER_FLAGS_HEAD", "BROWSER_FLAGS_MIDDLE", "BROWSER_FLAGS_TAIL"} {
		flags, err := cfg.WordList(key)
		if err != nil {
			return nil, false, err
		}
		if key == "BROWSER_FLAGS_TAIL" && len(flags) > 0 {
			tailGlued = true
		}
		argv = append(argv, flags...)
	}
	return argv, tailGlued, nil
}

// appendURL attaches the target URL to the launch command.
func appendURL(argv []string, url string, tailGlued bool) []string {
	cmd := append(append([]string(nil), argv...), url)
	if tailGlued && len(cmd) >= 2 {
		cmd[len(cmd)-2] += cmd[len(cmd)-1]
		cmd = cmd[:len(cmd)-1]
	}
	return cmd
}

// splitPatterns parses the comma-separated WINDOW_PATTERNS value.
func splitPatterns(value string) []string {
	var patterns []string
	for _, p := range strings.Split(value, ",") {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
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
