package views

import (
	"github.com/eringen/wanderbites/analytics"
	"github.com/eringen/wanderbites/contact"
	"github.com/eringen/wanderbites/content"
	"github.com/eringen/wanderbites/search"
)

// SiteInfo holds the site-wide values every page template needs.
type SiteInfo struct {
	Name        string
	URL         string
	Description string
	Author      string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}

// Page is embedded in every page's data.
type Page struct {
	Site SiteInfo
	Meta PageMeta
	CSRF string
}

// HomePage is the data of the home page. Featured is nil when no post is
// flagged featured; it is repeated in Posts only when it is the only post.
type HomePage struct {
	Page
	Featured   *content.Post
	Posts      []content.Post
	Categories []content.Category
	Authors    []content.Author
}

type PostPage struct {
	Page
	Post    content.Post
	Related []content.Post
}

type AuthorPage struct {
	Page
	Author content.Author
	Posts  []content.Post
}

type CategoryPage struct {
	Page
	Category content.Category
	Posts    []content.Post
}

// SearchPage is the data of the search page and its results partial.
type SearchPage struct {
	Page
	Filters search.FilterSet
	Display search.Display
	Regions []content.Label
	Ratings []content.Label
	Tags    []string
	Popular []analytics.PopularQuery
}

// ContactPage is the data of the contact page. Errors is keyed by form
// field; Flash is the outcome of the previous submission, if any.
type ContactPage struct {
	Page
	Form       contact.Form
	Errors     map[string]string
	Flash      string
	FlashError bool
}
