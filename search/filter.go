// Package search turns a stream of filter changes into one authoritative
// result state: it normalizes raw input, debounces and runs searches with
// last-request-wins semantics, and prepares results for display.
package search

import (
	"net/url"
	"strings"

	"github.com/eringen/wanderbites/content"
)

// FilterSet is a normalized search. Empty fields are absent: they are never
// sent to a repository as empty-string matches.
type FilterSet struct {
	Text     string `json:"q,omitempty"`
	Region   string `json:"region,omitempty"`
	Rating   string `json:"rating,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Category string `json:"category,omitempty"`
}

// Normalize builds a FilterSet from raw input. Every field is trimmed and
// dropped when empty. Unknown regions and ratings outside 1-5 are dropped
// too. It never fails; the worst case is an empty set, which callers treat
// as "do not query".
func Normalize(rawText, rawRegion, rawRating, rawTag, rawCategory string) FilterSet {
	f := FilterSet{
		Text:     strings.TrimSpace(rawText),
		Region:   strings.ToLower(strings.TrimSpace(rawRegion)),
		Rating:   strings.TrimSpace(rawRating),
		Tag:      strings.TrimSpace(rawTag),
		Category: strings.TrimSpace(rawCategory),
	}
	if f.Region != "" && !content.ValidRegion(f.Region) {
		f.Region = ""
	}
	if f.Rating != "" && !content.ValidRating(f.Rating) {
		f.Rating = ""
	}
	return f
}

// FromValues normalizes the q, region, rating, tag and category parameters.
func FromValues(v url.Values) FilterSet {
	return Normalize(v.Get("q"), v.Get("region"), v.Get("rating"), v.Get("tag"), v.Get("category"))
}

// IsEmpty reports whether no field is set.
func (f FilterSet) IsEmpty() bool {
	return f.Text == "" && f.Region == "" && f.Rating == "" && f.Tag == "" && f.Category == ""
}

// Values encodes the set as query parameters, omitting absent fields.
func (f FilterSet) Values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("q", f.Text)
	set("region", f.Region)
	set("rating", f.Rating)
	set("tag", f.Tag)
	set("category", f.Category)
	return v
}

// Query converts the set to its repository form.
func (f FilterSet) Query() content.Query {
	return content.Query{
		Text:     f.Text,
		Region:   f.Region,
		Rating:   f.Rating,
		Tag:      f.Tag,
		Category: f.Category,
	}
}

// String is a short human description, used in logs and the CLI.
func (f FilterSet) String() string {
	if f.IsEmpty() {
		return "(no filters)"
	}
	return f.Values().Encode()
}
