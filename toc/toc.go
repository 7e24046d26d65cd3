// Package toc extracts a flat table of contents from rendered HTML.
package toc

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Heading is one entry of a table of contents. Level is the heading number
// minus one, so h2 is level 1.
type Heading struct {
	Level int    `json:"level"`
	ID    string `json:"id"`
	Text  string `json:"text"`
}

// Extract parses r as an HTML document and returns every h2, h3 and h4
// element carrying an id attribute, in document order.
func Extract(r io.Reader) ([]Heading, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	w := &walker{}
	w.walk(doc)
	return w.out, nil
}

// ExtractString is Extract over a string.
func ExtractString(s string) ([]Heading, error) {
	return Extract(strings.NewReader(s))
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H2:
		return 1
	case atom.H3:
		return 2
	case atom.H4:
		return 3
	}
	return 0
}

// walker replays the DOM as a start/text/end token stream. An open heading
// takes its text from the first character data after its start tag and is
// emitted on its own end tag.
type walker struct {
	out     []Heading
	current *Heading
	owner   *html.Node
	hasText bool
}

func (w *walker) walk(n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		w.start(n)
	case html.TextNode:
		w.text(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if n.Type == html.ElementNode && n == w.owner {
		w.out = append(w.out, *w.current)
		w.current, w.owner, w.hasText = nil, nil, false
	}
}

func (w *walker) start(n *html.Node) {
	level := headingLevel(n.DataAtom)
	if level == 0 {
		return
	}
	id, ok := attr(n, "id")
	if !ok {
		return
	}
	// A heading opened inside another one cannot close the outer record.
	if w.current != nil {
		return
	}
	w.current = &Heading{Level: level, ID: id}
	w.owner = n
}

// text records the first non-blank text of the open heading, trimmed.
func (w *walker) text(data string) {
	if w.current == nil || w.hasText {
		return
	}
	if strings.TrimSpace(data) == "" {
		return
	}
	w.current.Text = strings.TrimSpace(data)
	w.hasText = true
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
