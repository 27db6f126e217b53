package wanderbites

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/wanderbites/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// lastMod trims a CMS timestamp to the date sitemaps expect.
func lastMod(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ""
}

func (a *App) renderSitemap(c echo.Context, posts []content.Post, authors, categories []content.Record) error {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
		{Loc: BuildURL(base, "search")},
		{Loc: BuildURL(base, "contact")},
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "posts", p.Slug),
			LastMod: lastMod(p.PublicationDate),
		})
	}
	for _, r := range authors {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, "authors", r.Slug), LastMod: lastMod(r.ModifiedAt)})
	}
	for _, r := range categories {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, "categories", r.Slug), LastMod: lastMod(r.ModifiedAt)})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
