package rocks

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	texttemplate "text/template"
)

// partialsGlob names the shared templates parsed alongside every page, so
// pages can {{template "header" .}}.
const partialsGlob = "_partials/*.html"

// Translate is the per-request translation function exposed to templates as T.
type Translate func(string) string

func identity(s string) string { return s }

func templateFuncs(t Translate) map[string]any {
	if t == nil {
		t = identity
	}
	return map[string]any{
		"T":         t,
		"join":      strings.Join,
		"lower":     strings.ToLower,
		"hasPrefix": strings.HasPrefix,
	}
}

type pageTemplate interface {
	execute(w io.Writer, data any, t Translate) error
}

type htmlPage struct {
	name string
	tmpl *htmltemplate.Template
}

// execute runs a clone so concurrent requests can bind their own T.
func (p *htmlPage) execute(w io.Writer, data any, t Translate) error {
	clone, err := p.tmpl.Clone()
	if err != nil {
		return err
	}
	return clone.Funcs(templateFuncs(t)).ExecuteTemplate(w, p.name, data)
}

type textPage struct {
	name string
	tmpl *texttemplate.Template
}

func (p *textPage) execute(w io.Writer, data any, t Translate) error {
	clone, err := p.tmpl.Clone()
	if err != nil {
		return err
	}
	return clone.Funcs(templateFuncs(t)).ExecuteTemplate(w, p.name, data)
}

// Templates parses page templates from an fs.FS on first use and keeps them
// until Reset. Names ending in .txt or .xml use text/template, everything
// else html/template.
type Templates struct {
	fsys fs.FS

	mu     sync.RWMutex
	parsed map[string]pageTemplate
}

// NewTemplates creates a template set over fsys.
func NewTemplates(fsys fs.FS) *Templates {
	return &Templates{fsys: fsys, parsed: make(map[string]pageTemplate)}
}

// Reset drops every parsed template.
func (ts *Templates) Reset() {
	ts.mu.Lock()
	ts.parsed = make(map[string]pageTemplate)
	ts.mu.Unlock()
}

// Execute renders the template name with data, translating through t.
func (ts *Templates) Execute(w io.Writer, name string, data any, t Translate) error {
	p, err := ts.lookup(name)
	if err != nil {
		return err
	}
	return p.execute(w, data, t)
}

// RenderString renders name with no data, as used for outline extraction.
func (ts *Templates) RenderString(name string) (string, error) {
	var buf bytes.Buffer
	if err := ts.Execute(&buf, name, map[string]any{}, nil); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (ts *Templates) lookup(name string) (pageTemplate, error) {
	name, ok := cleanName(name)
	if !ok {
		return nil, fmt.Errorf("template %q: %w", name, fs.ErrInvalid)
	}
	ts.mu.RLock()
	p, ok := ts.parsed[name]
	ts.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := ts.parse(name)
	if err != nil {
		return nil, err
	}
	ts.mu.Lock()
	ts.parsed[name] = p
	ts.mu.Unlock()
	return p, nil
}

func (ts *Templates) parse(name string) (pageTemplate, error) {
	src, err := fs.ReadFile(ts.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	partials, err := fs.Glob(ts.fsys, partialsGlob)
	if err != nil {
		return nil, err
	}

	switch path.Ext(name) {
	case ".txt", ".xml":
		t, err := texttemplate.New(name).Funcs(templateFuncs(nil)).Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		return &textPage{name: name, tmpl: t}, nil
	}

	t, err := htmltemplate.New(name).Funcs(templateFuncs(nil)).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	for _, pn := range partials {
		if pn == name {
			continue
		}
		b, err := fs.ReadFile(ts.fsys, pn)
		if err != nil {
			return nil, err
		}
		if _, err := t.New(pn).Parse(string(b)); err != nil {
			return nil, fmt.Errorf("template %q: %w", pn, err)
		}
	}
	return &htmlPage{name: name, tmpl: t}, nil
}
