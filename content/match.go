package content

import (
	"sort"
	"strings"
)

// textFields are the post fields covered by free-text search.
var textFields = []string{"excerpt", "city", "country"}

// MatchesText reports whether text occurs, ignoring case, in the record's
// title, excerpt, city or country. Empty text matches everything.
func MatchesText(r Record, text string) bool {
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	if strings.Contains(strings.ToLower(r.Title), needle) {
		return true
	}
	for _, f := range textFields {
		if strings.Contains(strings.ToLower(r.String(f)), needle) {
			return true
		}
	}
	return false
}

// Matches reports whether the post record satisfies every field of q.
// Region, rating, tag and category are exact matches; category compares
// against the embedded category slugs.
func Matches(r Record, q Query) bool {
	if !MatchesText(r, q.Text) {
		return false
	}
	if q.Region != "" && r.SelectKey("region") != q.Region {
		return false
	}
	if q.Rating != "" && r.SelectKey("rating") != q.Rating {
		return false
	}
	if q.Tag != "" && !contains(r.Strings("tags"), q.Tag) {
		return false
	}
	if q.Category != "" {
		_, slugs := r.Refs("categories")
		if !contains(slugs, q.Category) {
			return false
		}
	}
	return true
}

// Filter returns the records matching q, preserving order.
func Filter(records []Record, q Query) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if Matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

// SortByPublished orders records newest first by publication date. Records
// without a date keep their store order and go after the dated ones.
func SortByPublished(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, okI := records[i].PublishedAt()
		tj, okJ := records[j].PublishedAt()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
}

func contains(vals []string, want string) bool {
	for _, v := range vals {
		if v == want {
			return true
		}
	}
	return false
}
