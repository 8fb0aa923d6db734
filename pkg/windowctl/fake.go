package windowctl

import (
	"context"
	"fmt"
	"sync"
)

// FakeWindow is one simulated window inside a Fake control.
type FakeWindow struct {
	Handle   Handle
	Title    string
	Geometry Geometry
}

// Fake is an in-memory Control for tests. Operations record themselves and
// windows can be added, retitled, and broken at any point; a broken handle
// fails every operation, simulating a window that died under us.
type Fake struct {
	mu        sync.Mutex
	windows   []FakeWindow
	broken    map[Handle]bool
	mouse     Point
	clipboard string
	screenW   int
	screenH   int

	// Ops records every mutating call as a short string, in order.
	Ops []string
}

// NewFake creates a fake control with the given screen size.
func NewFake(screenW, screenH int) *Fake {
	return &Fake{
		broken:  make(map[Handle]bool),
		screenW: screenW,
		screenH: screenH,
	}
}

// AddWindow registers a visible window.
func (f *Fake) AddWindow(h Handle, title string, g Geometry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, FakeWindow{Handle: h, Title: title, Geometry: g})
}

// RemoveWindow drops a window from the visible set.
func (f *Fake) RemoveWindow(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.windows {
		if w.Handle == h {
			f.windows = append(f.windows[:i], f.windows[i+1:]...)
			return
		}
	}
}

// Break makes every subsequent operation on h fail.
func (f *Fake) Break(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken[h] = true
}

// Windows returns a snapshot of the current windows.
func (f *Fake) Windows() []FakeWindow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeWindow(nil), f.windows...)
}

// ClipboardText returns the fake clipboard content.
func (f *Fake) ClipboardText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clipboard
}

func (f *Fake) record(format string, args ...interface{}) {
	f.Ops = append(f.Ops, fmt.Sprintf(format, args...))
}

func (f *Fake) find(h Handle) (*FakeWindow, error) {
	if f.broken[h] {
		return nil, fmt.Errorf("windowctl: window %s is gone", h)
	}
	for i := range f.windows {
		if f.windows[i].Handle == h {
			return &f.windows[i], nil
		}
	}
	return nil, fmt.Errorf("windowctl: no such window %s", h)
}

func (f *Fake) ListVisible(context.Context) ([]Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	handles := make([]Handle, 0, len(f.windows))
	for _, w := range f.windows {
		handles = append(handles, w.Handle)
	}
	return handles, nil
}

func (f *Fake) Title(_ context.Context, h Handle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.find(h)
	if err != nil {
		return "", err
	}
	return w.Title, nil
}

func (f *Fake) Geometry(_ context.Context, h Handle) (Geometry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.find(h)
	if err != nil {
		return Geometry{}, err
	}
	return w.Geometry, nil
}

func (f *Fake) ResizeMove(_ context.Context, h Handle, width, height, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, err := f.find(h)
	if err != nil {
		return err
	}
	w.Geometry = Geometry{X: x, Y: y, Width: width, Height: height}
	f.record("resizemove %s %dx%d+%d+%d", h, width, height, x, y)
	return nil
}

func (f *Fake) Activate(_ context.Context, h Handle, sync bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.find(h); err != nil {
		return err
	}
	f.record("activate %s sync=%t", h, sync)
	return nil
}

func (f *Fake) Click(_ context.Context, h Handle, button, repeat int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h != "" {
		if _, err := f.find(h); err != nil {
			return err
		}
	}
	f.record("click %s button=%d repeat=%d", h, button, repeat)
	return nil
}

func (f *Fake) SendKeys(_ context.Context, h Handle, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h != "" {
		if _, err := f.find(h); err != nil {
			return err
		}
	}
	f.record("keys %s %v", h, keys)
	return nil
}

func (f *Fake) MousePos(context.Context) (Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mouse, nil
}

func (f *Fake) MoveMouse(_ context.Context, h Handle, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h != "" {
		if _, err := f.find(h); err != nil {
			return err
		}
	}
	f.mouse = Point{X: x, Y: y}
	f.record("mousemove %s %d,%d", h, x, y)
	return nil
}

func (f *Fake) DisplaySize(context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screenW, f.screenH, nil
}

func (f *Fake) Clipboard() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clipboard, nil
}

func (f *Fake) SetClipboard(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clipboard = text
	f.record("clipboard %q", text)
	return nil
}

var _ Control = (*Fake)(nil)
