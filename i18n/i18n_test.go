package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalizerTranslates(t *testing.T) {
	cat, err := NewCatalog("en", map[string]map[string]string{
		"fr": {"this feature": "cette fonctionnalité"},
		"de": {"this feature": "diese Funktion"},
	})
	require.NoError(t, err)

	assert.Equal(t, "cette fonctionnalité", cat.Localizer("fr").T("this feature"))
	assert.Equal(t, "diese Funktion", cat.Localizer("de").T("this feature"))
	assert.Equal(t, "this feature", cat.Localizer("en").T("this feature"))
}

func TestLocalizerFallsBackToSource(t *testing.T) {
	cat, err := NewCatalog("en", map[string]map[string]string{
		"fr": {"Hello": "Bonjour"},
	})
	require.NoError(t, err)

	l := cat.Localizer("fr")
	assert.Equal(t, "Untranslated", l.T("Untranslated"))
	assert.Equal(t, "", l.T(""))

	unknown := cat.Localizer("xx")
	assert.Equal(t, "xx", unknown.Code())
	assert.Equal(t, "Hello", unknown.T("Hello"))
}

func TestLocalizerKeepsPercentSigns(t *testing.T) {
	cat, err := NewCatalog("en", map[string]map[string]string{
		"fr": {"100% CSS": "100 % CSS"},
	})
	require.NoError(t, err)

	assert.Equal(t, "100 % CSS", cat.Localizer("fr").T("100% CSS"))
	assert.Equal(t, "50% off", cat.Localizer("fr").T("50% off"))
}

func TestLoadReadsYAMLFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"es.yaml": {Data: []byte("\"this feature\": \"esta característica\"\n")},
		"ja.yaml": {Data: []byte("Tutorials: チュートリアル\n")},
	}
	cat, err := Load(fsys, "en")
	require.NoError(t, err)

	assert.Equal(t, "en", cat.Fallback())
	assert.Equal(t, "esta característica", cat.Localizer("es").T("this feature"))
	assert.Equal(t, "チュートリアル", cat.Localizer("ja").T("Tutorials"))
}

func TestLoadRejectsBadYAML(t *testing.T) {
	fsys := fstest.MapFS{
		"fr.yaml": {Data: []byte("- not\n- a map\n")},
	}
	_, err := Load(fsys, "en")
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	name, ok := DisplayName("pt")
	assert.True(t, ok)
	assert.Equal(t, "Português (Brasil)", name)

	_, ok = DisplayName("static")
	assert.False(t, ok)
	assert.Len(t, Languages, 8)
}
