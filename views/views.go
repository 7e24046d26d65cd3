// Package views renders the admin pages. Pages are html/template files
// embedded in the binary and exposed as templ components, so handlers render
// them the same way as any other component.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var files embed.FS

var pages = template.Must(template.ParseFS(files, "templates/*.html"))

// Browsers are the checkbox choices for a resource's browser support, in
// display order. Values are stored lowercased.
var Browsers = []Browser{
	{Value: "chrome", Label: "Chrome"},
	{Value: "ff", Label: "FF"},
	{Value: "safari", Label: "Safari"},
	{Value: "opera", Label: "Opera"},
	{Value: "ie", Label: "IE"},
}

type Browser struct {
	Value string
	Label string
}

// Page fields shared by every admin page.
type Page struct {
	Title   string
	CSRF    string
	Message string
	Error   string
}

type LoginPage struct {
	Page
	ShowError bool
}

type LivePage struct {
	Page
	URL     string
	Updated string
}

// AuthorForm holds submitted or stored author values as strings.
type AuthorForm struct {
	GivenName      string
	FamilyName     string
	Org            string
	Unit           string
	City           string
	State          string
	Country        string
	Lat            string
	Lon            string
	Homepage       string
	GoogleAccount  string
	TwitterAccount string
	Email          string
	Lanyrd         bool
}

type AuthorRow struct {
	ID       string
	Name     string
	Org      string
	Location string
}

type AuthorPage struct {
	Page
	Form    AuthorForm
	Authors []AuthorRow
}

// ResourceForm holds submitted or stored resource values as strings.
type ResourceForm struct {
	PostID          string
	Title           string
	Description     string
	URL             string
	SocialURL       string
	Author          string
	SecondAuthor    string
	Tags            string
	PublicationDate string
	UpdateDate      string
	Draft           bool
	BrowserSupport  map[string]bool
}

type ResourceRow struct {
	ID              int64
	Title           string
	URL             string
	PublicationDate string
	Draft           bool
}

type AuthorOption struct {
	ID   string
	Name string
}

type ResourcePage struct {
	Page
	Form      ResourceForm
	Browsers  []Browser
	Authors   []AuthorOption
	Resources []ResourceRow
}

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

func Login(p LoginPage) templ.Component {
	if p.Title == "" {
		p.Title = "Sign in"
	}
	return render("login.html", p)
}

func Live(p LivePage) templ.Component {
	if p.Title == "" {
		p.Title = "Live banner"
	}
	return render("live.html", p)
}

func Author(p AuthorPage) templ.Component {
	if p.Title == "" {
		p.Title = "Authors"
	}
	return render("author.html", p)
}

func Resource(p ResourcePage) templ.Component {
	if p.Title == "" {
		p.Title = "Resources"
	}
	if p.Browsers == nil {
		p.Browsers = Browsers
	}
	return render("resource.html", p)
}
