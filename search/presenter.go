package search

import (
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/eringen/wanderbites/content"
)

// Segment is a run of text, marked when it matched the query.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match,omitempty"`
}

// Item is one presented search hit.
type Item struct {
	Slug     string    `json:"slug"`
	Title    []Segment `json:"title"`
	Excerpt  []Segment `json:"excerpt"`
	Location string    `json:"location,omitempty"`
	Region   string    `json:"region,omitempty"`
	Rating   string    `json:"rating,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	Image    string    `json:"image,omitempty"`
}

// Display is what a search surface shows for a state.
type Display struct {
	Status  Status `json:"status"`
	Heading string `json:"heading"`
	Message string `json:"message,omitempty"`
	Items   []Item `json:"items"`
	Total   int    `json:"total"`
}

const (
	idleHeading  = "Discover your next food adventure"
	idleMessage  = "Search by dish, city, country, or keyword, or use the filters to browse by region, rating, and tags."
	loadingText  = "Searching..."
	emptyHeading = "No stories found"
	emptyMessage = "Try adjusting your search or filters."
)

// Present maps a state to display copy and items. Every case-insensitive
// occurrence of query in titles and excerpts is marked. It has no side
// effects.
func Present(s State, query string) Display {
	d := Display{Status: s.Status, Items: []Item{}}
	switch s.Status {
	case StatusLoading:
		d.Heading = loadingText
	case StatusError:
		d.Heading = ErrorMessage
	case StatusSuccess:
		d.Total = s.Total
		if len(s.Records) == 0 {
			d.Heading = emptyHeading
			d.Message = emptyMessage
			return d
		}
		d.Heading = CountText(s.Total)
		for _, r := range s.Records {
			d.Items = append(d.Items, presentRecord(r, query))
		}
	default:
		d.Heading = idleHeading
		d.Message = idleMessage
	}
	return d
}

// CountText is "1 story found" or "N stories found".
func CountText(n int) string {
	if n == 1 {
		return "1 story found"
	}
	return strconv.Itoa(n) + " stories found"
}

func presentRecord(r content.Record, query string) Item {
	it := Item{
		Slug:    r.Slug,
		Title:   Highlight(r.Title, query),
		Excerpt: Highlight(r.String("excerpt"), query),
		Tags:    r.Strings("tags"),
	}
	city, country := r.String("city"), r.String("country")
	switch {
	case city != "" && country != "":
		it.Location = city + ", " + country
	default:
		it.Location = city + country
	}
	if key := r.SelectKey("region"); key != "" {
		it.Region = content.RegionLabel(key)
	}
	it.Rating = content.RatingLabel(r.SelectKey("rating"))
	if img, ok := r.Metadata["featured_image"].(map[string]any); ok {
		if u, _ := img["imgix_url"].(string); u != "" {
			it.Image = u
		} else {
			it.Image, _ = img["url"].(string)
		}
	}
	return it
}

// Highlight splits text into segments, marking every case-insensitive
// occurrence of query. Matched segments keep the casing of text. An empty
// query yields one unmarked segment.
func Highlight(text, query string) []Segment {
	if text == "" {
		return []Segment{}
	}
	if query == "" {
		return []Segment{{Text: text}}
	}
	n := utf8.RuneCountInString(query)
	var segs []Segment
	start := 0 // start of the pending unmarked run
	for i := 0; i < len(text); {
		end, ok := prefixEnd(text[i:], n)
		if ok && strings.EqualFold(text[i:i+end], query) {
			if start < i {
				segs = append(segs, Segment{Text: text[start:i]})
			}
			segs = append(segs, Segment{Text: text[i : i+end], Match: true})
			i += end
			start = i
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	if start < len(text) {
		segs = append(segs, Segment{Text: text[start:]})
	}
	return segs
}

// prefixEnd returns the byte length of the first n runes of s.
func prefixEnd(s string, n int) (int, bool) {
	end := 0
	for k := 0; k < n; k++ {
		if end >= len(s) {
			return 0, false
		}
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return end, true
}

// HighlightHTML renders segments as escaped HTML with matches in <mark>.
func HighlightHTML(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Match {
			b.WriteString("<mark>")
			b.WriteString(html.EscapeString(s.Text))
			b.WriteString("</mark>")
			continue
		}
		b.WriteString(html.EscapeString(s.Text))
	}
	return b.String()
}

// PlainText joins segments back into text, wrapping matches in before and
// after. The CLI uses it with terminal styling.
func PlainText(segs []Segment, before, after string) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Match {
			b.WriteString(before + s.Text + after)
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
