package windowctl

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
)

// DefaultBinary is the window automation tool used by the X11 backend.
const DefaultBinary = "xdotool"

// runFunc executes one external command and returns its stdout. Swappable
// in tests.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("windowctl: %s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// XDoTool is the X11 Control implementation. It shells out to xdotool for
// window and input operations and uses the system clipboard selection for
// text transfer.
type XDoTool struct {
	binary string
	run    runFunc
}

// NewXDoTool creates the X11 backend. An empty binary falls back to
// DefaultBinary resolved via PATH.
func NewXDoTool(binary string) *XDoTool {
	if binary == "" {
		binary = DefaultBinary
	}
	return &XDoTool{binary: binary, run: runCommand}
}

// ListVisible enumerates visible windows via `search --onlyvisible`.
func (x *XDoTool) ListVisible(ctx context.Context) ([]Handle, error) {
	out, err := x.run(ctx, x.binary, "search", "--onlyvisible", ".")
	if err != nil {
		return nil, err
	}

	var handles []Handle
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			handles = append(handles, Handle(line))
		}
	}
	return handles, nil
}

// Title returns the window's name.
func (x *XDoTool) Title(ctx context.Context, h Handle) (string, error) {
	out, err := x.run(ctx, x.binary, "getwindowname", string(h))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Geometry parses `getwindowgeometry --shell` output.
func (x *XDoTool) Geometry(ctx context.Context, h Handle) (Geometry, error) {
	out, err := x.run(ctx, x.binary, "getwindowgeometry", "--shell", string(h))
	if err != nil {
		return Geometry{}, err
	}

	fields := parseShellOutput(string(out))
	g := Geometry{}
	for _, f := range []struct {
		key  string
		dest *int
	}{
		{"X", &g.X}, {"Y", &g.Y}, {"WIDTH", &g.Width}, {"HEIGHT", &g.Height},
	} {
		v, ok := fields[f.key]
		if !ok {
			return Geometry{}, fmt.Errorf("windowctl: geometry output for %s missing %s", h, f.key)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Geometry{}, fmt.Errorf("windowctl: geometry %s=%q is not a number: %w", f.key, v, err)
		}
		*f.dest = n
	}
	return g, nil
}

// ResizeMove sets size then position, mirroring how the tool applies grids.
func (x *XDoTool) ResizeMove(ctx context.Context, h Handle, width, height, xPos, yPos int) error {
	if _, err := x.run(ctx, x.binary, "windowsize", string(h), strconv.Itoa(width), strconv.Itoa(height)); err != nil {
		return err
	}
	_, err := x.run(ctx, x.binary, "windowmove", string(h), strconv.Itoa(xPos), strconv.Itoa(yPos))
	return err
}

// Activate raises and focuses the window.
func (x *XDoTool) Activate(ctx context.Context, h Handle, sync bool) error {
	args := []string{"windowactivate"}
	if sync {
		args = append(args, "--sync")
	}
	args = append(args, string(h))
	_, err := x.run(ctx, x.binary, args...)
	return err
}

// Click presses a button repeat times, optionally scoped to a window.
func (x *XDoTool) Click(ctx context.Context, h Handle, button, repeat int) error {
	if repeat < 1 {
		repeat = 1
	}
	args := []string{"click", "--clearmodifiers"}
	if h != "" {
		args = append(args, "--window", string(h))
	}
	for i := 0; i < repeat; i++ {
		args = append(args, strconv.Itoa(button))
	}
	_, err := x.run(ctx, x.binary, args...)
	return err
}

// SendKeys injects a key sequence into the window.
func (x *XDoTool) SendKeys(ctx context.Context, h Handle, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := []string{"key", "--clearmodifiers"}
	if h != "" {
		args = append(args, "--window", string(h))
	}
	args = append(args, keys...)
	_, err := x.run(ctx, x.binary, args...)
	return err
}

// MousePos parses `getmouselocation --shell` output.
func (x *XDoTool) MousePos(ctx context.Context) (Point, error) {
	out, err := x.run(ctx, x.binary, "getmouselocation", "--shell")
	if err != nil {
		return Point{}, err
	}

	fields := parseShellOutput(string(out))
	px, okX := fields["X"]
	py, okY := fields["Y"]
	if !okX || !okY {
		return Point{}, fmt.Errorf("windowctl: mouse location output missing coordinates")
	}

	p := Point{}
	if p.X, err = strconv.Atoi(px); err != nil {
		return Point{}, fmt.Errorf("windowctl: mouse X %q is not a number: %w", px, err)
	}
	if p.Y, err = strconv.Atoi(py); err != nil {
		return Point{}, fmt.Errorf("windowctl: mouse Y %q is not a number: %w", py, err)
	}
	return p, nil
}

// MoveMouse warps the pointer, window-relative when h is non-empty.
func (x *XDoTool) MoveMouse(ctx context.Context, h Handle, xPos, yPos int) error {
	args := []string{"mousemove"}
	if h != "" {
		args = append(args, "--window", string(h))
	}
	args = append(args, strconv.Itoa(xPos), strconv.Itoa(yPos))
	_, err := x.run(ctx, x.binary, args...)
	return err
}

// DisplaySize parses `getdisplaygeometry` ("W H").
func (x *XDoTool) DisplaySize(ctx context.Context) (int, int, error) {
	out, err := x.run(ctx, x.binary, "getdisplaygeometry")
	if err != nil {
		return 0, 0, err
	}

	parts := strings.Fields(strings.TrimSpace(string(out)))
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("windowctl: unexpected display geometry output %q", string(out))
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("windowctl: display width %q is not a number: %w", parts[0], err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("windowctl: display height %q is not a number: %w", parts[1], err)
	}
	return w, h, nil
}

// Clipboard returns the current clipboard text.
func (x *XDoTool) Clipboard() (string, error) {
	return clipboard.ReadAll()
}

// SetClipboard replaces the clipboard text.
func (x *XDoTool) SetClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// parseShellOutput parses the KEY=VALUE (or KEY:VALUE) line format produced
// by xdotool's --shell flags. Keys are uppercased; malformed lines are
// skipped.
func parseShellOutput(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var key, value string
		if i := strings.IndexByte(line, '='); i >= 0 {
			key, value = line[:i], line[i+1:]
		} else if i := strings.IndexByte(line, ':'); i >= 0 {
			key, value = line[:i], line[i+1:]
		} else {
			continue
		}
		fields[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return fields
}
