package wanderbites

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/wanderbites/content"
	"github.com/eringen/wanderbites/markdown"
	"github.com/eringen/wanderbites/views"
)

const feedSize = 20

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	Author      string        `xml:"author,omitempty"`
	Categories  []string      `xml:"category"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
	PubDate     string        `xml:"pubDate,omitempty"`
	GUID        string        `xml:"guid"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// rssDescription is the post excerpt, or the start of its body as plain text.
func rssDescription(p content.Post) string {
	if p.Excerpt != "" {
		return p.Excerpt
	}
	text := []rune(markdown.PlainText(p.Content))
	if len(text) > 280 {
		return string(text[:280]) + "…"
	}
	return string(text)
}

func (a *App) renderRSS(c echo.Context, posts []content.Post) error {
	base := a.Config.URL
	if len(posts) > feedSize {
		posts = posts[:feedSize]
	}
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		pubDate := ""
		if t, err := time.Parse("2006-01-02", p.PublicationDate); err == nil {
			pubDate = t.Format(time.RFC1123Z)
		}
		postURL := BuildURL(base, "posts", p.Slug)
		item := rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: rssDescription(p),
			Categories:  p.Tags,
			PubDate:     pubDate,
			GUID:        postURL,
		}
		if p.Author != nil {
			item.Author = p.Author.Name
		}
		if src := views.ImageSrc(p.FeaturedImage); src != "" {
			item.Enclosure = &rssEnclosure{URL: src, Type: "image/jpeg"}
		}
		items = append(items, item)
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        BuildURL(base),
			Description: a.Config.Description,
			Language:    "en",
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
