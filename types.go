package rocks

import (
	"fmt"
	"strings"
	"time"
)

// Tag namespaces with special meaning on a Resource.
const (
	typeTagPrefix  = "type:"
	classTagPrefix = "class:"
)

// Resource is an article, tutorial, demo or similar content record.
// Its URL points at a directory under the content root holding one
// index template per locale.
type Resource struct {
	ID              int64
	Title           string
	Description     string
	URL             string
	SocialURL       string
	AuthorID        string
	SecondAuthorID  string
	Tags            []string
	BrowserSupport  []string
	PublicationDate string // YYYY-MM-DD
	UpdateDate      string // YYYY-MM-DD, empty if never updated
	Draft           bool
}

// Type returns the content kind carried by the first "type:" tag.
func (r Resource) Type() string {
	for _, t := range r.Tags {
		if strings.HasPrefix(t, typeTagPrefix) {
			return strings.TrimPrefix(t, typeTagPrefix)
		}
	}
	return ""
}

// Classes returns the display categories carried by "class:" tags.
func (r Resource) Classes() []string {
	var out []string
	for _, t := range r.Tags {
		if strings.HasPrefix(t, classTagPrefix) {
			out = append(out, strings.TrimPrefix(t, classTagPrefix))
		}
	}
	return out
}

// PlainTags returns the tags that are neither "type:" nor "class:" tags.
func (r Resource) PlainTags() []string {
	var out []string
	for _, t := range r.Tags {
		if strings.HasPrefix(t, typeTagPrefix) || strings.HasPrefix(t, classTagPrefix) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Published parses PublicationDate. The zero time is returned for bad dates.
func (r Resource) Published() time.Time {
	t, err := time.Parse(dateLayout, r.PublicationDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AuthorIDs returns the primary and, if present, secondary author IDs.
func (r Resource) AuthorIDs() []string {
	if r.SecondAuthorID == "" || r.SecondAuthorID == r.AuthorID {
		return []string{r.AuthorID}
	}
	return []string{r.AuthorID, r.SecondAuthorID}
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

func (g GeoPoint) String() string {
	return fmt.Sprintf("%g,%g", g.Lat, g.Lon)
}

// Author is a content author. ID is derived from the given and family names.
type Author struct {
	ID             string
	GivenName      string
	FamilyName     string
	Org            string
	Unit           string
	City           string
	State          string
	Country        string
	Geo            *GeoPoint
	GoogleAccount  string
	TwitterAccount string
	Email          string
	Lanyrd         bool
	Homepage       string
}

// AuthorID derives the stable author identifier from a name.
func AuthorID(given, family string) string {
	return strings.ToLower(strings.Join(strings.Fields(given+family), ""))
}

// FullName returns "Given Family".
func (a Author) FullName() string {
	return strings.TrimSpace(a.GivenName + " " + a.FamilyName)
}

// Profile is the serializable view of an Author used by humans.txt,
// the profiles page and the authors API.
type Profile struct {
	ID          string `json:"id"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	Org         string `json:"org"`
	Unit        string `json:"unit"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	GeoLocation string `json:"geo_location"`
	Google      string `json:"google_account,omitempty"`
	Twitter     string `json:"twitter_account,omitempty"`
	Email       string `json:"email,omitempty"`
	Lanyrd      bool   `json:"lanyrd"`
	Homepage    string `json:"homepage,omitempty"`

	// Resources is only filled for the profiles page.
	Resources []Resource `json:"-"`
}

// Profile converts the author into its serializable form.
func (a Author) Profile() Profile {
	p := Profile{
		ID:         a.ID,
		GivenName:  a.GivenName,
		FamilyName: a.FamilyName,
		Org:        a.Org,
		Unit:       a.Unit,
		City:       a.City,
		State:      a.State,
		Country:    a.Country,
		Google:     a.GoogleAccount,
		Twitter:    a.TwitterAccount,
		Email:      a.Email,
		Lanyrd:     a.Lanyrd,
		Homepage:   a.Homepage,
	}
	if a.Geo != nil {
		p.GeoLocation = a.Geo.String()
	}
	return p
}

// LiveData is the singleton promotional banner record.
type LiveData struct {
	URL     string
	Updated time.Time
}

// Fresh reports whether the banner was updated within the freshness window.
func (l LiveData) Fresh(now time.Time) bool {
	return l.URL != "" && now.Sub(l.Updated) < liveBannerWindow
}

// ListedResource is a Resource prepared for a listing page: localized title
// and description, locale-prefixed link and split tags.
type ListedResource struct {
	Resource
	Link     string
	Kind     string
	Classes  []string
	Labels   []string
	Localize bool
}

// Localization is one entry of an article's "available translations" list.
type Localization struct {
	Path string
	Lang string
}

// LocaleNotice is attached when a reader was redirected to the English
// version of an article from a locale it is not available in.
type LocaleNotice struct {
	Lang string
	Msg  string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}
