package rocks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profilesYAML = `id: ericbidelman
name:
  given: Eric
  family: Bidelman
org:
  name: Google
  unit: Developer Relations
address:
  locality: Mountain View
  region: CA
  country: USA
  lat: 37.42
  lon: -122.08
google: 118075919496626375791
twitter: ebidel
lanyrd: true
---
name:
  given: Paul
  family: Irish
homepage: http://paulirish.com
---
name:
  given: ""
  family: ""
`

const tutorialsYAML = `title: Shaders
description: GPU fun
author_id: ericbidelman
author_id2: paulirish
url: /tutorials/webgl/shaders/
browser_support: [Chrome, FF]
publication_date: 2012-03-01
update_date: 2012-05-01
tags: [type:tutorial, class:graphics, WebGL]
---
title: Orphan
author_id: nobody
url: /tutorials/orphan/
publication_date: 2012-03-02
---
title: Copycat
author_id: ericbidelman
url: /tutorials/webgl/shaders/
publication_date: 2012-03-03
---
title: Lonely
author_id: paulirish
author_id2: ghost
url: /tutorials/lonely/
publication_date: 2012-03-04
update_date: null
tags: [type:tutorial]
`

func TestImportAuthors(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rep, err := ImportAuthors(ctx, s, strings.NewReader(profilesYAML))
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Saved: 2, Skipped: 1}, rep)

	eric, err := s.GetAuthor(ctx, "ericbidelman")
	require.NoError(t, err)
	assert.Equal(t, "Developer Relations", eric.Unit)
	assert.Equal(t, "Mountain View", eric.City)
	assert.Equal(t, "118075919496626375791", eric.GoogleAccount, "numeric ids keep their digits")
	assert.True(t, eric.Lanyrd)
	require.NotNil(t, eric.Geo)
	assert.Equal(t, "37.42,-122.08", eric.Geo.String())

	paul, err := s.GetAuthor(ctx, "paulirish")
	require.NoError(t, err, "id is derived from the name when missing")
	assert.Equal(t, "http://paulirish.com", paul.Homepage)
	assert.Nil(t, paul.Geo)
}

func TestImportResources(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, err := ImportAuthors(ctx, s, strings.NewReader(profilesYAML))
	require.NoError(t, err)

	rep, err := ImportResources(ctx, s, strings.NewReader(tutorialsYAML))
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Saved: 2, Skipped: 2}, rep)

	shaders, err := s.FindResourceByURL(ctx, "/tutorials/webgl/shaders/")
	require.NoError(t, err)
	assert.Equal(t, "Shaders", shaders.Title, "the duplicate does not replace the first import")
	assert.Equal(t, "2012-03-01", shaders.PublicationDate)
	assert.Equal(t, "2012-05-01", shaders.UpdateDate)
	assert.Equal(t, "paulirish", shaders.SecondAuthorID)
	assert.Equal(t, []string{"chrome", "ff"}, shaders.BrowserSupport)
	assert.Equal(t, []string{"type:tutorial", "class:graphics", "webgl"}, shaders.Tags)
	assert.False(t, shaders.Draft)

	lonely, err := s.FindResourceByURL(ctx, "/tutorials/lonely/")
	require.NoError(t, err)
	assert.Empty(t, lonely.SecondAuthorID, "unknown second authors are dropped")
	assert.Empty(t, lonely.UpdateDate)

	_, err = s.FindResourceByURL(ctx, "/tutorials/orphan/")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportRejectsMalformedYAML(t *testing.T) {
	s := setupTestStore(t)
	_, err := ImportAuthors(context.Background(), s, strings.NewReader("name: [unclosed"))
	assert.Error(t, err)

	_, err = ImportResources(context.Background(), s, strings.NewReader("title:\n  - not\n  - scalar\nurl: [x]\n"))
	assert.Error(t, err)
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles.yaml"), []byte(profilesYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tutorials.yaml"), []byte(tutorialsYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "playground.yaml"), []byte(`title: Sample
author_id: paulirish
url: http://example.com/sample
publication_date: 2012-01-01
tags: [type:sample]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "studio.yaml"), nil, 0o644))

	cache := NewMemoryCache()
	require.NoError(t, cache.Set("stale", []byte("x"), 0))
	a := New(SiteConfig{DataDir: dir}, WithStore(setupTestStore(t)), WithCache(cache))
	ctx := context.Background()

	rep, err := a.LoadFixtures(ctx, FixtureAll)
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Saved: 5, Skipped: 3}, rep)
	assert.Equal(t, 0, cache.Len(), "loading flushes the cache")

	res, err := a.Store.ListResources(ctx, ResourceQuery{})
	require.NoError(t, err)
	assert.Len(t, res, 3)

	_, err = a.LoadFixtures(ctx, "nonsense")
	assert.ErrorContains(t, err, "unknown fixture set")

	require.NoError(t, a.DropAll(ctx))
	authors, err := a.Store.ListAuthors(ctx)
	require.NoError(t, err)
	assert.Empty(t, authors)
}

func TestLoadFixturesMissingFile(t *testing.T) {
	a := New(SiteConfig{DataDir: t.TempDir()}, WithStore(setupTestStore(t)), WithCache(NewMemoryCache()))
	_, err := a.LoadFixtures(context.Background(), FixtureTutorials)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
