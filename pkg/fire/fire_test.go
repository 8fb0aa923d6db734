package fire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/blitz/pkg/config"
	"github.com/entrhq/blitz/pkg/target"
	"github.com/entrhq/blitz/pkg/windowctl"
)

func fireConfig(t *testing.T, dir string, rounds int, extra string) *config.Store {
	t.Helper()
	store := config.NewStore(dir)
	content := fmt.Sprintf(`WINDOW_LIST=%q
FIRE_COUNT="%d"
ROUND_DELAY="0"
SHOT_DELAY="0"
DEFAULT_URL="https://a.example"
DEFAULT_PROMPT="hello there"
%s`, filepath.Join(dir, "windows.list"), rounds, extra)
	require.NoError(t, os.WriteFile(store.Path(config.System), []byte(content), 0600))
	return store
}

func stageWindows(t *testing.T, dir string, fake *windowctl.Fake, n int) []windowctl.Handle {
	t.Helper()
	handles := make([]windowctl.Handle, 0, n)
	for i := 1; i <= n; i++ {
		h := windowctl.Handle(fmt.Sprintf("w%d", i))
		fake.AddWindow(h, fmt.Sprintf("chat %d - firefox", i), windowctl.Geometry{Width: 640, Height: 500})
		handles = append(handles, h)
	}
	require.NoError(t, target.SaveWindowList(filepath.Join(dir, "windows.list"), handles))
	return handles
}

func newController(store *config.Store, fake *windowctl.Fake, status StatusFunc) *Controller {
	c := New(store, fake, nil, status)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func runToCompletion(t *testing.T, c *Controller) *Session {
	t.Helper()
	sess, err := c.Start(context.Background())
	require.NoError(t, err)
	<-sess.Done()
	return sess
}

func opsContaining(fake *windowctl.Fake, substr string) []string {
	var matched []string
	for _, op := range fake.Ops {
		if strings.Contains(op, substr) {
			matched = append(matched, op)
		}
	}
	return matched
}

func TestFire_SingleRoundDeliversToEveryWindow(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 1, "")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 3)

	var statuses []string
	c := newController(store, fake, func(s string) { statuses = append(statuses, s) })
	sess := runToCompletion(t, c)

	assert.Equal(t, 3, sess.Shots())
	assert.False(t, c.Firing())

	// Every window got the full sequence: clipboard load then paste keys.
	assert.Len(t, opsContaining(fake, `clipboard "hello there"`), 3)
	for _, h := range []string{"w1", "w2", "w3"} {
		assert.Contains(t, fake.Ops, fmt.Sprintf("keys %s [ctrl+a ctrl+v Return]", h))
		assert.Contains(t, fake.Ops, fmt.Sprintf("activate %s sync=false", h))
	}

	require.NotEmpty(t, statuses)
	assert.Equal(t, "Firing round 1/1 — 1 shots", statuses[0])
	assert.Equal(t, "Done — 3 shots", statuses[len(statuses)-1])
}

func TestFire_ClickPointFromConfiguredOffsets(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 1, "PROMPT_X_FROM_LEFT=\"25%\"\nPROMPT_Y_FROM_BOTTOM=\"40\"\n")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	c := newController(store, fake, nil)
	runToCompletion(t, c)

	// 640x500 window: x = 25% of 640, y = 500 - 40 absolute pixels.
	assert.Contains(t, fake.Ops, "mousemove w1 160,460")
	assert.Contains(t, fake.Ops, "click w1 button=4 repeat=3")
	assert.Contains(t, fake.Ops, "click w1 button=1 repeat=1")
}

func TestFire_DefaultClickPointIsPromptArea(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 1, "")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	c := newController(store, fake, nil)
	runToCompletion(t, c)

	// Defaults: 50% from the left, 10% up from the bottom edge.
	assert.Contains(t, fake.Ops, "mousemove w1 320,450")
}

func TestFire_SentinelsBypassClipboard(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		wantKeys string
	}{
		{"erase", "~", "keys w1 [ctrl+a Delete Return]"},
		{"silent", "#", "keys w1 [Return]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store := fireConfig(t, dir, 1, "")
			require.NoError(t, store.SetList(config.User, "PROMPT", []string{tt.prompt}))
			fake := windowctl.NewFake(1920, 1080)
			stageWindows(t, dir, fake, 1)

			c := newController(store, fake, nil)
			sess := runToCompletion(t, c)

			assert.Equal(t, 1, sess.Shots())
			assert.Contains(t, fake.Ops, tt.wantKeys)
			assert.Empty(t, opsContaining(fake, "clipboard"))
		})
	}
}

func TestFire_LivePromptsCycleAcrossRounds(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 3, "")
	require.NoError(t, store.SetList(config.User, "PROMPT", []string{"first", "second"}))
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	c := newController(store, fake, nil)
	runToCompletion(t, c)

	clips := opsContaining(fake, "clipboard")
	require.Len(t, clips, 3)
	assert.Equal(t, `clipboard "first"`, clips[0])
	assert.Equal(t, `clipboard "second"`, clips[1])
	assert.Equal(t, `clipboard "first"`, clips[2])
}

func TestFire_BrokenWindowIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 1, "")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 3)
	fake.Break("w2")

	c := newController(store, fake, nil)
	sess := runToCompletion(t, c)

	assert.Equal(t, 2, sess.Shots())
	assert.Contains(t, fake.Ops, "keys w1 [ctrl+a ctrl+v Return]")
	assert.Contains(t, fake.Ops, "keys w3 [ctrl+a ctrl+v Return]")
	assert.NotContains(t, fake.Ops, "keys w2 [ctrl+a ctrl+v Return]")
}

func TestFire_StartWhileFiringIsRejected(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 1, "")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	gate := make(chan struct{})
	entered := make(chan struct{}, 8)
	c := New(store, fake, nil, nil)
	c.sleep = func(context.Context, time.Duration) error {
		entered <- struct{}{}
		<-gate
		return nil
	}

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	<-entered

	assert.True(t, c.Firing())
	_, err = c.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyFiring)

	// The persisted flag mirrors the active state.
	cfg, err := store.LoadTiers()
	require.NoError(t, err)
	assert.Equal(t, "Y", cfg.StringOr("FIRE_MODE", ""))

	close(gate)
	c.Wait()

	assert.False(t, c.Firing())
	cfg, err = store.LoadTiers()
	require.NoError(t, err)
	assert.Equal(t, "N", cfg.StringOr("FIRE_MODE", ""))

	// Idle again, so a new session may start.
	sess, err := c.Start(context.Background())
	require.NoError(t, err)
	c.Wait()
	assert.Equal(t, 1, sess.Shots())
}

func TestFire_StopCancelsBetweenWindows(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 1, "")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 5)

	var c *Controller
	c = newController(store, fake, func(s string) {
		if strings.HasPrefix(s, "Firing") {
			c.Stop()
		}
	})

	sess := runToCompletion(t, c)

	// The first shot completed in full, then the flag was observed before
	// the next window was touched.
	assert.Equal(t, 1, sess.Shots())
	assert.True(t, sess.Cancelled())
	assert.Empty(t, opsContaining(fake, "activate w2"))
}

func TestFire_StopCancelsBetweenRounds(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 4, "")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	var c *Controller
	c = newController(store, fake, func(s string) {
		if strings.HasPrefix(s, "Firing") {
			c.Stop()
		}
	})

	sess := runToCompletion(t, c)
	assert.Equal(t, 1, sess.Shots())

	cfg, err := store.LoadTiers()
	require.NoError(t, err)
	assert.Equal(t, "N", cfg.StringOr("FIRE_MODE", ""))
}

func TestFire_CancelDuringShotDelayStillCountsTheShot(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 2, "")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	var statuses []string
	c := New(store, fake, nil, func(s string) { statuses = append(statuses, s) })
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		// A stop request lands while the shot delay is pending.
		c.Stop()
		return ctx.Err()
	}

	sess := runToCompletion(t, c)

	assert.Equal(t, 1, sess.Shots())
	require.NotEmpty(t, statuses)
	assert.Equal(t, "Done — 1 shots", statuses[len(statuses)-1])
}

func TestFire_ExternallyClearedFlagStopsNextRound(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 3, "")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	// Simulate another process clearing the persisted flag mid-run.
	c := newController(store, fake, func(s string) {
		if strings.HasPrefix(s, "Firing") {
			require.NoError(t, store.Set(config.Batch, "FIRE_MODE", "N"))
		}
	})

	sess := runToCompletion(t, c)
	assert.Equal(t, 1, sess.Shots())
	assert.False(t, sess.Cancelled())
}

func TestFire_StopWhileIdleIsANoOp(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 1, "")
	c := newController(store, windowctl.NewFake(1920, 1080), nil)
	c.Stop()
	assert.False(t, c.Firing())
}

func TestFire_MissingRequiredKeyFailsStart(t *testing.T) {
	dir := t.TempDir()
	store := config.NewStore(dir)
	require.NoError(t, os.WriteFile(store.Path(config.System), []byte("WINDOW_LIST=\"x\"\n"), 0600))

	c := newController(store, windowctl.NewFake(1920, 1080), nil)
	_, err := c.Start(context.Background())

	var missing *config.MissingKeyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "FIRE_COUNT", missing.Key)
	assert.False(t, c.Firing())
}

func TestFire_RecordsShotToTargetHistory(t *testing.T) {
	dir := t.TempDir()
	targets := filepath.Join(dir, "targets")
	require.NoError(t, os.MkdirAll(targets, 0700))
	store := fireConfig(t, dir, 1, fmt.Sprintf("TARGETS_DIR=%q\n", targets))
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	c := newController(store, fake, nil)
	runToCompletion(t, c)

	active, ok := target.ActivePromptFor(targets, "https://a.example")
	require.True(t, ok)
	assert.Equal(t, "hello there", active)
}

func TestFire_TargetActivePromptBeatsDefault(t *testing.T) {
	dir := t.TempDir()
	targets := filepath.Join(dir, "targets")
	require.NoError(t, os.MkdirAll(targets, 0700))
	require.NoError(t, target.RecordShot(targets, "https://a.example", "persisted favorite"))

	store := fireConfig(t, dir, 1, fmt.Sprintf("TARGETS_DIR=%q\n", targets))
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	c := newController(store, fake, nil)
	runToCompletion(t, c)

	assert.Contains(t, fake.Ops, `clipboard "persisted favorite"`)
}

func TestFire_MouseRestoredAfterWindow(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 1, "")
	fake := windowctl.NewFake(1920, 1080)
	stageWindows(t, dir, fake, 1)

	c := newController(store, fake, nil)
	runToCompletion(t, c)

	moves := opsContaining(fake, "mousemove")
	require.Len(t, moves, 2)
	assert.Equal(t, "mousemove  0,0", moves[1])
}

func TestFire_EmptyWindowListCompletesWithZeroShots(t *testing.T) {
	dir := t.TempDir()
	store := fireConfig(t, dir, 2, "")
	fake := windowctl.NewFake(1920, 1080)

	var statuses []string
	c := newController(store, fake, func(s string) { statuses = append(statuses, s) })
	sess := runToCompletion(t, c)

	assert.Equal(t, 0, sess.Shots())
	assert.Equal(t, []string{"Done — 0 shots"}, statuses)
}

func TestResolveOffset(t *testing.T) {
	tests := []struct {
		spec      string
		dimension int
		want      int
		wantErr   bool
	}{
		{"50%", 640, 320, false},
		{"10%", 500, 50, false},
		{" 25% ", 400, 100, false},
		{"42", 640, 42, false},
		{"0%", 640, 0, false},
		{"abc", 640, 0, true},
		{"%", 640, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := resolveOffset(tt.spec, tt.dimension)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
