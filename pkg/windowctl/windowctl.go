// Package windowctl abstracts the window-system operations the orchestrator
// needs: enumeration, geometry, activation, synthetic input, and the
// clipboard. All higher layers are written against Control only, so a fake
// implementation can stand in for the real window system in tests.
package windowctl

import "context"

// Handle is an opaque window identifier owned by the window system. A handle
// is valid only while the underlying window exists; staleness cannot be
// detected ahead of use, operations on a dead handle simply fail.
type Handle string

// Geometry is a window's position and size in screen coordinates.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Point is a screen coordinate, used for the mouse cursor.
type Point struct {
	X int
	Y int
}

// Mouse buttons, numbered as the X11 convention: 1 left, 2 middle, 3 right,
// 4 scroll up, 5 scroll down.
const (
	ButtonLeft     = 1
	ButtonScrollUp = 4
	ButtonScrollDn = 5
)

// Control is the window-system capability surface.
type Control interface {
	// ListVisible enumerates every currently visible window.
	ListVisible(ctx context.Context) ([]Handle, error)

	// Title returns the window's current title.
	Title(ctx context.Context, h Handle) (string, error)

	// Geometry returns the window's current position and size.
	Geometry(ctx context.Context, h Handle) (Geometry, error)

	// ResizeMove sets the window's size and then its position.
	ResizeMove(ctx context.Context, h Handle, width, height, x, y int) error

	// Activate raises and focuses the window. When sync is true the call
	// returns only once the window manager has completed the activation.
	Activate(ctx context.Context, h Handle, sync bool) error

	// Click presses a mouse button repeat times. An empty handle clicks at
	// the current pointer position.
	Click(ctx context.Context, h Handle, button, repeat int) error

	// SendKeys injects a key sequence (xdotool key syntax, e.g. "ctrl+v").
	SendKeys(ctx context.Context, h Handle, keys ...string) error

	// MousePos returns the current pointer position in screen coordinates.
	MousePos(ctx context.Context) (Point, error)

	// MoveMouse warps the pointer. A non-empty handle makes x and y
	// relative to that window's origin.
	MoveMouse(ctx context.Context, h Handle, x, y int) error

	// DisplaySize returns the full screen dimensions.
	DisplaySize(ctx context.Context) (width, height int, err error)

	// Clipboard returns the current clipboard text.
	Clipboard() (string, error)

	// SetClipboard replaces the clipboard text.
	SetClipboard(text string) error
}
