package windowctl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRun captures invocations and plays back canned output.
type recordingRun struct {
	calls  [][]string
	output []byte
	err    error
}

func (r *recordingRun) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.output, r.err
}

func newTestTool(output string, err error) (*XDoTool, *recordingRun) {
	rec := &recordingRun{output: []byte(output), err: err}
	tool := NewXDoTool("")
	tool.run = rec.run
	return tool, rec
}

func TestParseShellOutput(t *testing.T) {
	t.Run("equals separated", func(t *testing.T) {
		fields := parseShellOutput("X=100\nY=200\nWIDTH=640\nHEIGHT=500\nSCREEN=0\n")
		assert.Equal(t, "100", fields["X"])
		assert.Equal(t, "640", fields["WIDTH"])
	})

	t.Run("colon separated", func(t *testing.T) {
		fields := parseShellOutput("x: 10\ny: 20")
		assert.Equal(t, "10", fields["X"])
		assert.Equal(t, "20", fields["Y"])
	})

	t.Run("malformed lines skipped", func(t *testing.T) {
		fields := parseShellOutput("garbage\nX=1\n\n")
		assert.Len(t, fields, 1)
	})
}

func TestListVisible(t *testing.T) {
	tool, rec := newTestTool("123\n456\n\n789\n", nil)

	handles, err := tool.ListVisible(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Handle{"123", "456", "789"}, handles)
	assert.Equal(t, []string{"xdotool", "search", "--onlyvisible", "."}, rec.calls[0])
}

func TestGeometry(t *testing.T) {
	t.Run("parses shell output", func(t *testing.T) {
		tool, _ := newTestTool("WINDOW=123\nX=40\nY=60\nWIDTH=640\nHEIGHT=500\n", nil)

		g, err := tool.Geometry(context.Background(), "123")
		require.NoError(t, err)
		assert.Equal(t, Geometry{X: 40, Y: 60, Width: 640, Height: 500}, g)
	})

	t.Run("missing field is an error", func(t *testing.T) {
		tool, _ := newTestTool("X=40\nY=60\n", nil)

		_, err := tool.Geometry(context.Background(), "123")
		assert.ErrorContains(t, err, "WIDTH")
	})
}

func TestResizeMove(t *testing.T) {
	tool, rec := newTestTool("", nil)

	require.NoError(t, tool.ResizeMove(context.Background(), "99", 640, 500, 20, 30))
	require.Len(t, rec.calls, 2)
	assert.Equal(t, []string{"xdotool", "windowsize", "99", "640", "500"}, rec.calls[0])
	assert.Equal(t, []string{"xdotool", "windowmove", "99", "20", "30"}, rec.calls[1])
}

func TestActivate(t *testing.T) {
	tool, rec := newTestTool("", nil)

	require.NoError(t, tool.Activate(context.Background(), "7", true))
	require.NoError(t, tool.Activate(context.Background(), "7", false))
	assert.Equal(t, []string{"xdotool", "windowactivate", "--sync", "7"}, rec.calls[0])
	assert.Equal(t, []string{"xdotool", "windowactivate", "7"}, rec.calls[1])
}

func TestClick(t *testing.T) {
	tool, rec := newTestTool("", nil)

	require.NoError(t, tool.Click(context.Background(), "7", ButtonScrollUp, 3))
	require.NoError(t, tool.Click(context.Background(), "", ButtonLeft, 0))
	assert.Equal(t, []string{"xdotool", "click", "--clearmodifiers", "--window", "7", "4", "4", "4"}, rec.calls[0])
	assert.Equal(t, []string{"xdotool", "click", "--clearmodifiers", "1"}, rec.calls[1])
}

func TestSendKeys(t *testing.T) {
	tool, rec := newTestTool("", nil)

	require.NoError(t, tool.SendKeys(context.Background(), "7", "ctrl+a", "ctrl+v", "Return"))
	assert.Equal(t, []string{"xdotool", "key", "--clearmodifiers", "--window", "7", "ctrl+a", "ctrl+v", "Return"}, rec.calls[0])

	require.NoError(t, tool.SendKeys(context.Background(), "7"))
	assert.Len(t, rec.calls, 1, "empty key sequence is a no-op")
}

func TestMousePos(t *testing.T) {
	tool, _ := newTestTool("X=311\nY=492\nSCREEN=0\nWINDOW=123\n", nil)

	p, err := tool.MousePos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Point{X: 311, Y: 492}, p)
}

func TestMoveMouse(t *testing.T) {
	tool, rec := newTestTool("", nil)

	require.NoError(t, tool.MoveMouse(context.Background(), "7", 320, 450))
	require.NoError(t, tool.MoveMouse(context.Background(), "", 5, 6))
	assert.Equal(t, []string{"xdotool", "mousemove", "--window", "7", "320", "450"}, rec.calls[0])
	assert.Equal(t, []string{"xdotool", "mousemove", "5", "6"}, rec.calls[1])
}

func TestDisplaySize(t *testing.T) {
	t.Run("parses dimensions", func(t *testing.T) {
		tool, _ := newTestTool("1920 1080\n", nil)

		w, h, err := tool.DisplaySize(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1920, w)
		assert.Equal(t, 1080, h)
	})

	t.Run("rejects unexpected output", func(t *testing.T) {
		tool, _ := newTestTool("what\n", nil)

		_, _, err := tool.DisplaySize(context.Background())
		assert.Error(t, err)
	})
}

func TestRunErrorsPropagate(t *testing.T) {
	bang := errors.New("window gone")
	tool, _ := newTestTool("", bang)

	_, err := tool.Title(context.Background(), "dead")
	require.Error(t, err)
	assert.True(t, errors.Is(err, bang) || strings.Contains(err.Error(), "window gone"))
}
