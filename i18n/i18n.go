// Package i18n resolves locale codes to per-request translators backed by
// golang.org/x/text message catalogs.
//
// Catalogs are flat YAML maps from the English source string to its
// translation, one file per locale (for example locale/fr.yaml). Strings
// without a translation are returned unchanged, so English needs no file.
package i18n

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// Language is a locale code and its display name in that language.
type Language struct {
	Code string
	Name string
}

// Languages lists the locales offered in the translation picker.
var Languages = []Language{
	{Code: "de", Name: "Deutsch"},
	{Code: "en", Name: "English"},
	{Code: "fr", Name: "Français"},
	{Code: "es", Name: "Español"},
	{Code: "ja", Name: "日本語"},
	{Code: "pt", Name: "Português (Brasil)"},
	{Code: "ru", Name: "Pусский"},
	{Code: "zh", Name: "中文 (简体)"},
}

// DisplayName returns the picker name for code.
func DisplayName(code string) (string, bool) {
	for _, l := range Languages {
		if l.Code == code {
			return l.Name, true
		}
	}
	return "", false
}

// Catalog holds the translations of every loaded locale. It is immutable
// and safe for concurrent use.
type Catalog struct {
	fallback string
	tags     []language.Tag
	matcher  language.Matcher
	cat      catalog.Catalog
}

// NewCatalog builds a catalog from messages keyed by locale code, then by
// English source string. fallback is the source language.
func NewCatalog(fallback string, messages map[string]map[string]string) (*Catalog, error) {
	fbTag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("i18n: fallback locale %q: %w", fallback, err)
	}
	b := catalog.NewBuilder(catalog.Fallback(fbTag))

	codes := make([]string, 0, len(messages))
	for code := range messages {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	tags := []language.Tag{fbTag}
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("i18n: locale %q: %w", code, err)
		}
		for src, dst := range messages[code] {
			if err := b.SetString(tag, escape(src), escape(dst)); err != nil {
				return nil, fmt.Errorf("i18n: %s: %q: %w", code, src, err)
			}
		}
		if tag != fbTag {
			tags = append(tags, tag)
		}
	}
	return &Catalog{
		fallback: fallback,
		tags:     tags,
		matcher:  language.NewMatcher(tags),
		cat:      b,
	}, nil
}

// Load reads every <code>.yaml file at the root of fsys.
func Load(fsys fs.FS, fallback string) (*Catalog, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	messages := make(map[string]map[string]string, len(files))
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		m := make(map[string]string)
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("i18n: %s: %w", name, err)
		}
		messages[strings.TrimSuffix(path.Base(name), ".yaml")] = m
	}
	return NewCatalog(fallback, messages)
}

// Fallback returns the source locale code.
func (c *Catalog) Fallback() string {
	return c.fallback
}

// Localizer returns a translator for code. Unknown or malformed codes
// translate to the closest supported locale, or the fallback.
func (c *Catalog) Localizer(code string) *Localizer {
	tag := c.tags[0]
	if t, err := language.Parse(code); err == nil {
		_, idx, conf := c.matcher.Match(t)
		if conf != language.No {
			tag = c.tags[idx]
		}
	}
	return &Localizer{
		code:    code,
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(c.cat)),
	}
}

// Localizer translates strings for a single locale. It is created per
// request and never shared across locales.
type Localizer struct {
	code    string
	tag     language.Tag
	printer *message.Printer
}

// Code returns the locale code the localizer was requested for.
func (l *Localizer) Code() string {
	return l.code
}

// Tag returns the matched catalog language.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// T returns the translation of s, or s itself.
func (l *Localizer) T(s string) string {
	if s == "" {
		return s
	}
	return l.printer.Sprintf(escape(s))
}

// escape keeps catalog entries from being read as format verbs.
func escape(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}
