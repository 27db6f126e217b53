// Package content talks to the headless CMS that owns the blog's posts,
// authors and categories. Records come back with one level of relationship
// expansion: a post embeds its author and category summaries.
package content

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Kind is the CMS object type of a record.
type Kind string

const (
	KindPost     Kind = "blog-posts"
	KindAuthor   Kind = "authors"
	KindCategory Kind = "categories"
)

// Valid reports whether k is one of the kinds this site reads.
func (k Kind) Valid() bool {
	switch k {
	case KindPost, KindAuthor, KindCategory:
		return true
	}
	return false
}

// Record is a CMS object as returned by the store. The metadata bag is kind
// specific; use DecodePost, DecodeAuthor or DecodeCategory for typed access.
// ID and Slug are assigned by the CMS and never changed here.
type Record struct {
	ID         string         `json:"id"`
	Slug       string         `json:"slug"`
	Title      string         `json:"title"`
	Type       Kind           `json:"type,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  string         `json:"created_at,omitempty"`
	ModifiedAt string         `json:"modified_at,omitempty"`
}

// Query is the repository-side filter for a post search. Empty fields do not
// constrain the result.
type Query struct {
	Text     string
	Region   string
	Rating   string
	Tag      string
	Category string // category slug
}

// IsEmpty reports whether q carries no constraint at all.
func (q Query) IsEmpty() bool {
	return q.Text == "" && q.Region == "" && q.Rating == "" && q.Tag == "" && q.Category == ""
}

// Result is an ordered page of search hits.
type Result struct {
	Records []Record
	Total   int
}

// Repository is the read side of the content store.
//
// Single-record lookups return ErrNotFound when the record is absent. List
// operations return an empty slice instead. Every other failure is a
// *TransportError, except context cancellation which is returned as is.
type Repository interface {
	Search(ctx context.Context, q Query) (Result, error)
	GetBySlug(ctx context.Context, kind Kind, slug string) (Record, error)
	ListByKind(ctx context.Context, kind Kind) ([]Record, error)
	// ListByRelation returns the posts that reference the record of kind
	// related with the given id (posts by author, posts in category).
	ListByRelation(ctx context.Context, related Kind, relatedID string) ([]Record, error)
}

// relationField maps a related kind to the post metadata key referencing it.
func relationField(related Kind) (string, bool) {
	switch related {
	case KindAuthor:
		return "author", true
	case KindCategory:
		return "categories", true
	}
	return "", false
}

// String returns the metadata value at key as a string.
func (r Record) String(key string) string {
	switch v := r.Metadata[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// SelectKey returns the key of a select-dropdown metadata value ({key, value}).
// A bare string is accepted as the key.
func (r Record) SelectKey(key string) string {
	switch v := r.Metadata[key].(type) {
	case map[string]any:
		s, _ := v["key"].(string)
		return s
	case string:
		return v
	}
	return ""
}

// Strings returns a list-of-strings metadata value.
func (r Record) Strings(key string) []string {
	switch v := r.Metadata[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Refs returns the ids and slugs referenced by a relation field. Expanded
// objects contribute both id and slug, bare references only their id.
func (r Record) Refs(key string) (ids, slugs []string) {
	add := func(v any) {
		switch ref := v.(type) {
		case string:
			ids = append(ids, ref)
		case map[string]any:
			if id, ok := ref["id"].(string); ok {
				ids = append(ids, id)
			}
			if slug, ok := ref["slug"].(string); ok {
				slugs = append(slugs, slug)
			}
		}
	}
	switch v := r.Metadata[key].(type) {
	case []any:
		for _, x := range v {
			add(x)
		}
	default:
		add(v)
	}
	return ids, slugs
}

// PublishedAt parses metadata.publication_date. The second result is false
// when the record has no usable date.
func (r Record) PublishedAt() (time.Time, bool) {
	return parseDate(r.String("publication_date"))
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Image is a CMS file metafield.
type Image struct {
	URL      string `json:"url"`
	ImgixURL string `json:"imgix_url"`
}

// Option is a CMS select-dropdown value.
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Author is the typed view of an authors record.
type Author struct {
	ID           string `json:"-"`
	Slug         string `json:"-"`
	Title        string `json:"-"`
	Name         string `json:"name"`
	Avatar       *Image `json:"avatar,omitempty"`
	ShortBio     string `json:"short_bio"`
	ExtendedBio  string `json:"extended_bio,omitempty"`
	HomeBase     string `json:"home_base,omitempty"`
	InstagramURL string `json:"instagram_url,omitempty"`
	TwitterURL   string `json:"twitter_url,omitempty"`
	YoutubeURL   string `json:"youtube_url,omitempty"`
	WebsiteURL   string `json:"website_url,omitempty"`
}

// Category is the typed view of a categories record.
type Category struct {
	ID           string `json:"-"`
	Slug         string `json:"-"`
	Title        string `json:"-"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Image        *Image `json:"image,omitempty"`
	DisplayOrder int    `json:"display_order,omitempty"`
	ParentID     string `json:"-"`
}

// Post is the typed view of a blog-posts record.
type Post struct {
	ID              string
	Slug            string
	Title           string
	Excerpt         string
	Content         string
	FeaturedImage   Image
	Gallery         []Image
	PublicationDate string
	ReadingTime     int
	City            string
	Country         string
	Region          Option
	Rating          Option
	Status          Option
	Tags            []string
	Author          *Author
	Categories      []Category
	MetaTitle       string
	MetaDescription string
}

// RatingValue returns the numeric rating, 0 when unset.
func (p Post) RatingValue() int {
	n, _ := strconv.Atoi(p.Rating.Key)
	return n
}

// Featured reports whether the post is flagged as the featured story.
func (p Post) Featured() bool {
	return p.Status.Key == "featured"
}

// Location formats "City, Country", or just the country.
func (p Post) Location() string {
	if p.City == "" {
		return p.Country
	}
	if p.Country == "" {
		return p.City
	}
	return p.City + ", " + p.Country
}

type postMetadata struct {
	Excerpt         string            `json:"excerpt"`
	Content         string            `json:"content"`
	FeaturedImage   Image             `json:"featured_image"`
	Gallery         []Image           `json:"gallery"`
	PublicationDate string            `json:"publication_date"`
	ReadingTime     json.Number       `json:"reading_time"`
	City            string            `json:"city"`
	Country         string            `json:"country"`
	Region          *Option           `json:"region"`
	Rating          *Option           `json:"rating"`
	PostStatus      *Option           `json:"post_status"`
	Tags            []string          `json:"tags"`
	Author          json.RawMessage   `json:"author"`
	Categories      []json.RawMessage `json:"categories"`
	MetaTitle       string            `json:"meta_title"`
	MetaDescription string            `json:"meta_description"`
}

// DecodePost converts a blog-posts record into a Post. Embedded author and
// category summaries are decoded when expanded; bare id references yield a
// summary carrying only the id.
func DecodePost(r Record) (Post, error) {
	var m postMetadata
	if err := remarshal(r.Metadata, &m); err != nil {
		return Post{}, err
	}
	p := Post{
		ID:              r.ID,
		Slug:            r.Slug,
		Title:           r.Title,
		Excerpt:         m.Excerpt,
		Content:         m.Content,
		FeaturedImage:   m.FeaturedImage,
		Gallery:         m.Gallery,
		PublicationDate: m.PublicationDate,
		City:            m.City,
		Country:         m.Country,
		Tags:            m.Tags,
		MetaTitle:       m.MetaTitle,
		MetaDescription: m.MetaDescription,
	}
	if n, err := m.ReadingTime.Int64(); err == nil {
		p.ReadingTime = int(n)
	}
	if m.Region != nil {
		p.Region = *m.Region
	}
	if m.Rating != nil {
		p.Rating = *m.Rating
	}
	if m.PostStatus != nil {
		p.Status = *m.PostStatus
	}
	if len(m.Author) > 0 && string(m.Author) != "null" {
		ref, err := decodeRef(m.Author)
		if err != nil {
			return Post{}, err
		}
		a, err := DecodeAuthor(ref)
		if err != nil {
			return Post{}, err
		}
		p.Author = &a
	}
	for _, raw := range m.Categories {
		ref, err := decodeRef(raw)
		if err != nil {
			return Post{}, err
		}
		c, err := DecodeCategory(ref)
		if err != nil {
			return Post{}, err
		}
		p.Categories = append(p.Categories, c)
	}
	return p, nil
}

// DecodeAuthor converts an authors record into an Author.
func DecodeAuthor(r Record) (Author, error) {
	var a Author
	if err := remarshal(r.Metadata, &a); err != nil {
		return Author{}, err
	}
	a.ID, a.Slug, a.Title = r.ID, r.Slug, r.Title
	if a.Name == "" {
		a.Name = r.Title
	}
	return a, nil
}

// DecodeCategory converts a categories record into a Category.
func DecodeCategory(r Record) (Category, error) {
	var c Category
	if err := remarshal(r.Metadata, &c); err != nil {
		return Category{}, err
	}
	c.ID, c.Slug, c.Title = r.ID, r.Slug, r.Title
	if c.Name == "" {
		c.Name = r.Title
	}
	if ids, _ := r.Refs("parent_category"); len(ids) > 0 {
		c.ParentID = ids[0]
	}
	return c, nil
}

// DecodePosts decodes every record, skipping none: the first failure aborts.
func DecodePosts(records []Record) ([]Post, error) {
	posts := make([]Post, 0, len(records))
	for _, r := range records {
		p, err := DecodePost(r)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// decodeRef reads an embedded relation that is either an expanded object or a
// bare id string.
func decodeRef(raw json.RawMessage) (Record, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return Record{ID: id}, nil
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

func remarshal(src map[string]any, dst any) error {
	if src == nil {
		return nil
	}
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
