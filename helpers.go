package rocks

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// ParseTags splits a comma list such as the stored ",webgl,glsl," form,
// trimming each entry and dropping blanks.
func ParseTags(list string) []string {
	return FilterEmpty(strings.Split(list, ","))
}

// FilterEmpty trims each value and drops the blank ones.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RelatedResources finds resources that share at least one plain tag with
// current, skipping current itself.
func RelatedResources(current Resource, all []Resource) []Resource {
	tagSet := make(map[string]struct{})
	for _, t := range current.PlainTags() {
		tagSet[t] = struct{}{}
	}
	var related []Resource
	for _, r := range all {
		if r.URL == current.URL {
			continue
		}
		for _, t := range r.PlainTags() {
			if _, ok := tagSet[t]; ok {
				related = append(related, r)
				break
			}
		}
	}
	return related
}

// ArticleJsonLD returns a JSON-LD string for a TechArticle schema.
// canonical is the absolute URL of the page being rendered.
func ArticleJsonLD(r Resource, cfg SiteConfig, canonical string) string {
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "TechArticle",
		"headline":      r.Title,
		"description":   r.Description,
		"datePublished": r.PublicationDate,
		"url":           canonical,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   canonical,
		},
	}
	if r.UpdateDate != "" {
		data["dateModified"] = r.UpdateDate
	}
	authors := make([]map[string]string, 0, 2)
	for _, id := range r.AuthorIDs() {
		if id == "" {
			continue
		}
		authors = append(authors, map[string]string{
			"@type": "Person",
			"url":   BuildURL(cfg.URL, "profiles") + "#" + id,
		})
	}
	if len(authors) > 0 {
		data["author"] = authors
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	if tags := r.PlainTags(); len(tags) > 0 {
		data["keywords"] = strings.Join(tags, ", ")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
