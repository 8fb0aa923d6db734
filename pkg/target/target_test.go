package target

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/blitz/pkg/windowctl"
)

func TestWindowListRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")
	handles := []windowctl.Handle{"123", "456", "789"}

	require.NoError(t, SaveWindowList(path, handles))

	loaded, err := LoadWindowList(path)
	require.NoError(t, err)
	assert.Equal(t, handles, loaded, "order is the contract between staging and firing")
}

func TestLoadWindowList_MissingFile(t *testing.T) {
	loaded, err := LoadWindowList(filepath.Join(t.TempDir(), "nope.list"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRemoveWindowList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")
	require.NoError(t, SaveWindowList(path, []windowctl.Handle{"1"}))

	require.NoError(t, RemoveWindowList(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, RemoveWindowList(path), "removing twice is fine")
}

func TestPromptSentinels(t *testing.T) {
	assert.True(t, Prompt{Text: "~"}.IsErase())
	assert.True(t, Prompt{Text: " ~ "}.IsErase())
	assert.True(t, Prompt{Text: "#"}.IsSilent())
	assert.True(t, Prompt{Text: ""}.IsEmpty())
	assert.False(t, Prompt{Text: "describe a cat"}.IsErase())
	assert.False(t, Prompt{Text: "# not a sentinel"}.IsSilent())
}

func TestResolver_Precedence(t *testing.T) {
	t.Run("live prompt wins", func(t *testing.T) {
		r := Resolver{Live: []string{"live"}, TargetActive: "active", Default: "default"}
		assert.Equal(t, "live", r.Resolve(1).Text)
	})

	t.Run("live prompts cycle across rounds", func(t *testing.T) {
		r := Resolver{Live: []string{"a", "b"}}
		assert.Equal(t, "a", r.Resolve(1).Text)
		assert.Equal(t, "b", r.Resolve(2).Text)
		assert.Equal(t, "a", r.Resolve(3).Text)
	})

	t.Run("target active prompt when no live prompt", func(t *testing.T) {
		r := Resolver{TargetActive: "active", Default: "default"}
		assert.Equal(t, "active", r.Resolve(1).Text)
	})

	t.Run("default as last resort", func(t *testing.T) {
		r := Resolver{Default: "default"}
		assert.Equal(t, "default", r.Resolve(1).Text)
	})
}

func TestParseURLs(t *testing.T) {
	t.Run("splits on commas and whitespace", func(t *testing.T) {
		urls := ParseURLs("https://a.example, https://b.example  https://c.example")
		assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, urls)
	})

	t.Run("reads a file with comments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "urls.txt")
		require.NoError(t, os.WriteFile(path, []byte("https://a.example # main\n# whole line comment\nhttps://b.example\n"), 0600))

		urls := ParseURLs(path)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, urls)
	})

	t.Run("empty input passes through", func(t *testing.T) {
		assert.Equal(t, []string{""}, ParseURLs("  "))
	})
}

func TestParsePrompts(t *testing.T) {
	t.Run("single literal prompt", func(t *testing.T) {
		assert.Equal(t, []string{"draw a fox"}, ParsePrompts("draw a fox"))
	})

	t.Run("file of prompts", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.txt")
		require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0600))
		assert.Equal(t, []string{"one", "two"}, ParsePrompts(path))
	})

	t.Run("empty input is one empty prompt", func(t *testing.T) {
		assert.Equal(t, []string{""}, ParsePrompts(""))
	})
}

func TestGxiRoundTrip(t *testing.T) {
	dir := t.TempDir()

	f := NewFile("https://chat.example/session")
	f.Desc = "primary chat target"
	f.SetActive(0, "paint a storm")
	f.AppendHistory(0, "paint a storm")
	f.SetActive(2, "stage two prompt")

	path := PathFor(dir, f.URL)
	require.NoError(t, f.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example/session", loaded.URL)
	assert.Equal(t, "primary chat target", loaded.Desc)

	active, ok := loaded.ActivePrompt()
	require.True(t, ok)
	assert.Equal(t, "paint a storm", active, "stage 0 takes precedence")
	assert.Equal(t, []string{"paint a storm"}, loaded.Stages[0].History)
	assert.Equal(t, 0, loaded.Stages[2].Active)
}

func TestGxiPathEscapesURL(t *testing.T) {
	path := PathFor("/targets", "https://chat.example/a?b=c")
	base := filepath.Base(path)
	assert.NotContains(t, base, "/")
	assert.NotContains(t, base, "?")
	assert.Equal(t, FileExt, filepath.Ext(base))
}

func TestSetActive_ExistingPromptIsReused(t *testing.T) {
	f := NewFile("u")
	f.SetActive(0, "a")
	f.SetActive(0, "b")
	f.SetActive(0, "a")

	assert.Len(t, f.Stages[0].Prompts, 2)
	assert.Equal(t, 0, f.Stages[0].Active)
}

func TestRecordShot(t *testing.T) {
	dir := t.TempDir()
	url := "https://chat.example"

	require.NoError(t, RecordShot(dir, url, "first"))
	require.NoError(t, RecordShot(dir, url, "second"))

	f, err := LoadFile(PathFor(dir, url))
	require.NoError(t, err)

	active, ok := f.ActivePrompt()
	require.True(t, ok)
	assert.Equal(t, "second", active)
	assert.Equal(t, []string{"first", "second"}, f.Stages[0].History)
}

func TestActivePromptFor(t *testing.T) {
	dir := t.TempDir()

	_, ok := ActivePromptFor(dir, "https://missing.example")
	assert.False(t, ok)

	require.NoError(t, RecordShot(dir, "https://there.example", "hello"))
	active, ok := ActivePromptFor(dir, "https://there.example")
	require.True(t, ok)
	assert.Equal(t, "hello", active)
}
