package wanderbites

import (
	"sort"

	"github.com/eringen/wanderbites/content"
	"github.com/eringen/wanderbites/views"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	return views.BuildURL(base, pathSegments...)
}

// decodePosts decodes post records, logging and skipping any that do not
// decode so one malformed entry cannot take a page down.
func (a *App) decodePosts(records []content.Record) []content.Post {
	posts := make([]content.Post, 0, len(records))
	for _, r := range records {
		p, err := content.DecodePost(r)
		if err != nil {
			a.Log.Warn().Err(err).Str("slug", r.Slug).Msg("skipping undecodable post")
			continue
		}
		posts = append(posts, p)
	}
	return posts
}

func (a *App) decodeAuthors(records []content.Record) []content.Author {
	out := make([]content.Author, 0, len(records))
	for _, r := range records {
		au, err := content.DecodeAuthor(r)
		if err != nil {
			a.Log.Warn().Err(err).Str("slug", r.Slug).Msg("skipping undecodable author")
			continue
		}
		out = append(out, au)
	}
	return out
}

// decodeCategories decodes category records ordered by display order, then
// name.
func (a *App) decodeCategories(records []content.Record) []content.Category {
	out := make([]content.Category, 0, len(records))
	for _, r := range records {
		cat, err := content.DecodeCategory(r)
		if err != nil {
			a.Log.Warn().Err(err).Str("slug", r.Slug).Msg("skipping undecodable category")
			continue
		}
		out = append(out, cat)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// splitFeatured separates the first featured post from the rest. When it is
// the only post it stays in the list as well.
func splitFeatured(posts []content.Post) (*content.Post, []content.Post) {
	for i, p := range posts {
		if !p.Featured() {
			continue
		}
		featured := p
		if len(posts) == 1 {
			return &featured, posts
		}
		rest := make([]content.Post, 0, len(posts)-1)
		rest = append(rest, posts[:i]...)
		rest = append(rest, posts[i+1:]...)
		return &featured, rest
	}
	return nil, posts
}
