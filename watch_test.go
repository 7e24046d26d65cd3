package rocks

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchTemplatesReportsChanges(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "content", "tutorials")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	changed := make(chan string, 4)
	stop, err := WatchTemplates(root, func(name string) { changed <- name }, nil)
	require.NoError(t, err)
	t.Cleanup(func() { stop() })

	target := filepath.Join(sub, "index.html")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	select {
	case name := <-changed:
		assert.Equal(t, target, name)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatchTemplatesMissingRoot(t *testing.T) {
	_, err := WatchTemplates(filepath.Join(t.TempDir(), "missing"), func(string) {}, nil)
	assert.Error(t, err)
}

func TestWatchTemplatesStop(t *testing.T) {
	stop, err := WatchTemplates(t.TempDir(), func(string) {}, nil)
	require.NoError(t, err)
	assert.NoError(t, stop())
}

func TestReloadTemplatesRereadsAndFlushes(t *testing.T) {
	content := siteContent()
	a := newTestApp(t, SiteConfig{}, WithContent(content))

	rec := get(t, a, "/fr/why")
	require.Equal(t, "<div><p>Why why</p></div>", rec.Body.String())

	content["content/why.html"] = page(`<section>{{.local_content}}</section>`)
	require.NoError(t, a.Cache.Set("stale", []byte("x"), 0))
	a.reloadTemplates("content/why.html")

	rec = get(t, a, "/fr/why")
	assert.Equal(t, "<section><p>Why why</p></section>", rec.Body.String())
	_, ok, _ := a.Cache.Get("stale")
	assert.False(t, ok, "reload flushes the cache")
}
