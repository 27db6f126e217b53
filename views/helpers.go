package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/eringen/wanderbites/content"
)

// BuildURL joins path segments onto a base URL, ensuring a trailing slash.
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

func PostURL(slug string) string     { return "/posts/" + url.PathEscape(slug) + "/" }
func AuthorURL(slug string) string   { return "/authors/" + url.PathEscape(slug) + "/" }
func CategoryURL(slug string) string { return "/categories/" + url.PathEscape(slug) + "/" }

// RelatedPosts returns up to n posts other than current, keeping the order of
// posts (newest first when it comes from the repository).
func RelatedPosts(current content.Post, posts []content.Post, n int) []content.Post {
	related := make([]content.Post, 0, n)
	for _, p := range posts {
		if len(related) == n {
			break
		}
		if p.Slug == current.Slug {
			continue
		}
		related = append(related, p)
	}
	return related
}

// ImageSrc prefers the imgix URL of a CMS image.
func ImageSrc(img content.Image) string {
	if img.ImgixURL != "" {
		return img.ImgixURL
	}
	return img.URL
}

// Stars renders a 0-5 rating as filled and empty stars.
func Stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

// FormatDate renders a CMS publication date as "March 10, 2024". Values that
// do not parse are returned unchanged.
func FormatDate(s string) string {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("January 2, 2006")
		}
	}
	return s
}

// WebsiteJSONLD produces a Schema.org WebSite JSON-LD block with a search
// action pointing at the search page.
func WebsiteJSONLD(site SiteInfo) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     site.Name,
		"url":      BuildURL(site.URL),
		"potentialAction": map[string]string{
			"@type":       "SearchAction",
			"target":      BuildURL(site.URL, "search") + "?q={search_term_string}",
			"query-input": "required name=search_term_string",
		},
	}
	if site.Description != "" {
		data["description"] = site.Description
	}
	return marshalJSONLD(data)
}

// BlogPostingJSONLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJSONLD(site SiteInfo, post content.Post) string {
	postURL := BuildURL(site.URL, "posts", post.Slug)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Excerpt,
		"datePublished": post.PublicationDate,
		"url":           postURL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  site.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if src := ImageSrc(post.FeaturedImage); src != "" {
		data["image"] = src
	}
	author := site.Author
	if post.Author != nil && post.Author.Name != "" {
		author = post.Author.Name
	}
	if author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  author,
		}
	}
	if post.Location() != "" {
		data["contentLocation"] = map[string]string{
			"@type": "Place",
			"name":  post.Location(),
		}
	}
	if len(post.Tags) > 0 {
		data["keywords"] = strings.Join(post.Tags, ", ")
	}
	return marshalJSONLD(data)
}

func marshalJSONLD(data map[string]interface{}) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
