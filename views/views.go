// Package views holds the page data passed to templates and a default set of
// page components. Sites that want their own markup supply templ components
// with the same signatures instead.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/wanderbites/content"
	"github.com/eringen/wanderbites/markdown"
	"github.com/eringen/wanderbites/search"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"postURL":     PostURL,
	"authorURL":   AuthorURL,
	"categoryURL": CategoryURL,
	"imgsrc":      ImageSrc,
	"stars":       Stars,
	"date":        FormatDate,
	"ratingLabel": content.RatingLabel,
	"readtime": func(p content.Post) int {
		if p.ReadingTime > 0 {
			return p.ReadingTime
		}
		return markdown.ReadingTime(p.Content)
	},
	"markdown": func(md string) template.HTML {
		return template.HTML(markdown.ToHTML(md))
	},
	"highlight": func(segs []search.Segment) template.HTML {
		return template.HTML(search.HighlightHTML(segs))
	},
	"siteLD": func(site SiteInfo) template.JS {
		return template.JS(WebsiteJSONLD(site))
	},
	"postLD": func(site SiteInfo, p content.Post) template.JS {
		return template.JS(BlogPostingJSONLD(site, p))
	},
}

var templates = template.Must(template.New("views").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

func page(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return templates.ExecuteTemplate(w, name, data)
	})
}

func Home(p HomePage) templ.Component         { return page("home", p) }
func Post(p PostPage) templ.Component         { return page("post", p) }
func Author(p AuthorPage) templ.Component     { return page("author", p) }
func Category(p CategoryPage) templ.Component { return page("category", p) }
func Search(p SearchPage) templ.Component     { return page("search", p) }
func Contact(p ContactPage) templ.Component   { return page("contact", p) }
func NotFound(p Page) templ.Component         { return page("not-found", p) }
func ServerError(p Page) templ.Component      { return page("server-error", p) }

// SearchResults renders only the results block of the search page, for
// HX-Request partial updates.
func SearchResults(p SearchPage) templ.Component { return page("search-results", p) }
