package rocks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fixture sets accepted by LoadFixtures.
const (
	FixtureAuthors    = "authors"
	FixtureTutorials  = "tutorials"
	FixturePlayground = "playground"
	FixtureStudio     = "studio"
	FixtureAll        = "all"
)

var fixtureFiles = map[string]string{
	FixtureAuthors:    "profiles.yaml",
	FixtureTutorials:  "tutorials.yaml",
	FixturePlayground: "playground.yaml",
	FixtureStudio:     "studio.yaml",
}

// fixtureOrder loads authors before the resources that reference them.
var fixtureOrder = []string{FixtureAuthors, FixtureTutorials, FixturePlayground, FixtureStudio}

// ImportReport counts the documents an import saved and skipped.
type ImportReport struct {
	Saved   int
	Skipped int
}

func (r ImportReport) add(o ImportReport) ImportReport {
	return ImportReport{Saved: r.Saved + o.Saved, Skipped: r.Skipped + o.Skipped}
}

// yamlScalar keeps the literal text of a scalar, so unquoted dates and
// numeric account IDs decode into strings unchanged. Null becomes "".
type yamlScalar string

func (s *yamlScalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	if n.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = yamlScalar(n.Value)
	return nil
}

type profileDoc struct {
	ID   string `yaml:"id"`
	Name struct {
		Given  string `yaml:"given"`
		Family string `yaml:"family"`
	} `yaml:"name"`
	Org struct {
		Name string `yaml:"name"`
		Unit string `yaml:"unit"`
	} `yaml:"org"`
	Address struct {
		Locality string   `yaml:"locality"`
		Region   string   `yaml:"region"`
		Country  string   `yaml:"country"`
		Lat      *float64 `yaml:"lat"`
		Lon      *float64 `yaml:"lon"`
	} `yaml:"address"`
	Google   yamlScalar `yaml:"google"`
	Twitter  yamlScalar `yaml:"twitter"`
	Email    string     `yaml:"email"`
	Lanyrd   bool       `yaml:"lanyrd"`
	Homepage string     `yaml:"homepage"`
}

func (d profileDoc) author() Author {
	a := Author{
		ID:             d.ID,
		GivenName:      d.Name.Given,
		FamilyName:     d.Name.Family,
		Org:            d.Org.Name,
		Unit:           d.Org.Unit,
		City:           d.Address.Locality,
		State:          d.Address.Region,
		Country:        d.Address.Country,
		GoogleAccount:  string(d.Google),
		TwitterAccount: string(d.Twitter),
		Email:          d.Email,
		Lanyrd:         d.Lanyrd,
		Homepage:       d.Homepage,
	}
	if a.ID == "" {
		a.ID = AuthorID(a.GivenName, a.FamilyName)
	}
	if d.Address.Lat != nil && d.Address.Lon != nil {
		a.Geo = &GeoPoint{Lat: *d.Address.Lat, Lon: *d.Address.Lon}
	}
	return a
}

type resourceDoc struct {
	Title           string     `yaml:"title"`
	Description     string     `yaml:"description"`
	AuthorID        string     `yaml:"author_id"`
	AuthorID2       string     `yaml:"author_id2"`
	URL             yamlScalar `yaml:"url"`
	SocialURL       yamlScalar `yaml:"social_url"`
	BrowserSupport  []string   `yaml:"browser_support"`
	UpdateDate      yamlScalar `yaml:"update_date"`
	PublicationDate yamlScalar `yaml:"publication_date"`
	Tags            []string   `yaml:"tags"`
}

// ImportAuthors saves every profile document in r. Documents are separated
// by "---".
func ImportAuthors(ctx context.Context, s *Store, r io.Reader) (ImportReport, error) {
	var rep ImportReport
	dec := yaml.NewDecoder(r)
	for {
		var doc profileDoc
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return rep, nil
			}
			return rep, fmt.Errorf("import authors: %w", err)
		}
		a := doc.author()
		if a.ID == "" {
			rep.Skipped++
			continue
		}
		if err := s.SaveAuthor(ctx, a); err != nil {
			return rep, fmt.Errorf("import author %s: %w", a.ID, err)
		}
		rep.Saved++
	}
}

// ImportResources saves every resource document in r as published.
// Documents that reference unknown authors, lack required fields or reuse a
// published URL are skipped.
func ImportResources(ctx context.Context, s *Store, r io.Reader) (ImportReport, error) {
	var rep ImportReport
	dec := yaml.NewDecoder(r)
	for {
		var doc resourceDoc
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return rep, nil
			}
			return rep, fmt.Errorf("import resources: %w", err)
		}
		if _, err := s.GetAuthor(ctx, doc.AuthorID); err != nil {
			if errors.Is(err, ErrNotFound) {
				rep.Skipped++
				continue
			}
			return rep, err
		}
		second := ""
		if doc.AuthorID2 != "" {
			if _, err := s.GetAuthor(ctx, doc.AuthorID2); err == nil {
				second = doc.AuthorID2
			}
		}
		browsers := make([]string, len(doc.BrowserSupport))
		for i, b := range doc.BrowserSupport {
			browsers[i] = strings.ToLower(b)
		}
		res := &Resource{
			Title:           doc.Title,
			Description:     doc.Description,
			URL:             string(doc.URL),
			SocialURL:       string(doc.SocialURL),
			AuthorID:        doc.AuthorID,
			SecondAuthorID:  second,
			Tags:            doc.Tags,
			BrowserSupport:  browsers,
			PublicationDate: string(doc.PublicationDate),
			UpdateDate:      string(doc.UpdateDate),
		}
		if err := s.SaveResource(ctx, res); err != nil {
			if errors.Is(err, ErrInvalidResource) || errors.Is(err, ErrDuplicateURL) {
				rep.Skipped++
				continue
			}
			return rep, err
		}
		rep.Saved++
	}
}

// LoadFixtures imports the named fixture set from dir and flushes the cache.
func (a *App) LoadFixtures(ctx context.Context, set string) (ImportReport, error) {
	if err := a.openStore(); err != nil {
		return ImportReport{}, err
	}
	sets := []string{set}
	if set == FixtureAll {
		sets = fixtureOrder
	}
	var total ImportReport
	for _, name := range sets {
		file, ok := fixtureFiles[name]
		if !ok {
			return total, fmt.Errorf("unknown fixture set %q", name)
		}
		rep, err := a.importFile(ctx, name, filepath.Join(a.Config.DataDir, file))
		total = total.add(rep)
		if err != nil {
			return total, err
		}
	}
	a.flushCache()
	return total, nil
}

func (a *App) importFile(ctx context.Context, set, path string) (ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportReport{}, err
	}
	defer f.Close()
	if set == FixtureAuthors {
		return ImportAuthors(ctx, a.Store, f)
	}
	return ImportResources(ctx, a.Store, f)
}

// DropAll deletes every author and resource and flushes the cache.
func (a *App) DropAll(ctx context.Context) error {
	if err := a.openStore(); err != nil {
		return err
	}
	if err := a.Store.DeleteAll(ctx); err != nil {
		return err
	}
	a.flushCache()
	return nil
}
