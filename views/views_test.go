package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestLoginShowsError(t *testing.T) {
	out := renderString(t, Login(LoginPage{Page: Page{CSRF: "tok"}, ShowError: true}))
	for _, want := range []string{"<title>Sign in | Database</title>", `value="tok"`, "Wrong password."} {
		if !strings.Contains(out, want) {
			t.Errorf("login page missing %q", want)
		}
	}
	if strings.Contains(renderString(t, Login(LoginPage{})), "Wrong password.") {
		t.Error("error shown without ShowError")
	}
}

func TestResourceFormState(t *testing.T) {
	out := renderString(t, Resource(ResourcePage{
		Page: Page{Error: "Choose an existing author."},
		Form: ResourceForm{
			Title:          "Shaders <b>",
			Author:         "paulirish",
			BrowserSupport: map[string]bool{"ff": true},
		},
		Authors: []AuthorOption{{ID: "ericbidelman", Name: "Eric Bidelman"}, {ID: "paulirish", Name: "Paul Irish"}},
		Resources: []ResourceRow{
			{ID: 7, Title: "Old", URL: "/tutorials/old/", PublicationDate: "2011-01-01"},
		},
	}))
	checks := []string{
		`<p class="error">Choose an existing author.</p>`,
		`value="Shaders &lt;b&gt;"`,
		`<option value="paulirish" selected>Paul Irish</option>`,
		`value="ff" checked`,
		`/database/resource/7`,
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Errorf("resource page missing %q", want)
		}
	}
	if strings.Contains(out, `value="chrome" checked`) {
		t.Error("unchecked browser rendered as checked")
	}
}

func TestBrowsersAreLowercase(t *testing.T) {
	for _, b := range Browsers {
		if b.Value != strings.ToLower(b.Value) {
			t.Errorf("browser value %q is not lowercase", b.Value)
		}
	}
}
