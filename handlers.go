package wanderbites

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/wanderbites/content"
	"github.com/eringen/wanderbites/views"
)

func (a *App) handleHome(c echo.Context) error {
	var posts, categories, authors []content.Record
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		posts, err = a.Repo.ListByKind(ctx, content.KindPost)
		return err
	})
	g.Go(func() (err error) {
		categories, err = a.Repo.ListByKind(ctx, content.KindCategory)
		return err
	})
	g.Go(func() (err error) {
		authors, err = a.Repo.ListByKind(ctx, content.KindAuthor)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	featured, rest := splitFeatured(a.decodePosts(posts))
	return Render(c, a.Views.Home(views.HomePage{
		Page:       a.page(c, views.PageMeta{}),
		Featured:   featured,
		Posts:      rest,
		Categories: a.decodeCategories(categories),
		Authors:    a.decodeAuthors(authors),
	}))
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	var record content.Record
	var all []content.Record
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		record, err = a.Repo.GetBySlug(ctx, content.KindPost, slug)
		return err
	})
	g.Go(func() (err error) {
		all, err = a.Repo.ListByKind(ctx, content.KindPost)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return a.renderNotFound(c)
		}
		return err
	}

	post, err := content.DecodePost(record)
	if err != nil {
		return err
	}
	meta := views.PageMeta{
		Title:       post.Title,
		Description: post.Excerpt,
		OGType:      "article",
		Image:       views.ImageSrc(post.FeaturedImage),
	}
	if post.MetaTitle != "" {
		meta.Title = post.MetaTitle
	}
	if post.MetaDescription != "" {
		meta.Description = post.MetaDescription
	}
	return Render(c, a.Views.Post(views.PostPage{
		Page:    a.page(c, meta),
		Post:    post,
		Related: views.RelatedPosts(post, a.decodePosts(all), 2),
	}))
}

func (a *App) handleAuthor(c echo.Context) error {
	ctx := c.Request().Context()
	record, err := a.Repo.GetBySlug(ctx, content.KindAuthor, c.Param("slug"))
	if errors.Is(err, content.ErrNotFound) {
		return a.renderNotFound(c)
	}
	if err != nil {
		return err
	}
	author, err := content.DecodeAuthor(record)
	if err != nil {
		return err
	}
	posts, err := a.Repo.ListByRelation(ctx, content.KindAuthor, author.ID)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Author(views.AuthorPage{
		Page:   a.page(c, views.PageMeta{Title: author.Name, Description: author.ShortBio, OGType: "profile"}),
		Author: author,
		Posts:  a.decodePosts(posts),
	}))
}

func (a *App) handleCategory(c echo.Context) error {
	ctx := c.Request().Context()
	record, err := a.Repo.GetBySlug(ctx, content.KindCategory, c.Param("slug"))
	if errors.Is(err, content.ErrNotFound) {
		return a.renderNotFound(c)
	}
	if err != nil {
		return err
	}
	category, err := content.DecodeCategory(record)
	if err != nil {
		return err
	}
	posts, err := a.Repo.ListByRelation(ctx, content.KindCategory, category.ID)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Category(views.CategoryPage{
		Page:     a.page(c, views.PageMeta{Title: category.Name, Description: category.Description}),
		Category: category,
		Posts:    a.decodePosts(posts),
	}))
}

func (a *App) handleSitemap(c echo.Context) error {
	var posts, authors, categories []content.Record
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		posts, err = a.Repo.ListByKind(ctx, content.KindPost)
		return err
	})
	g.Go(func() (err error) {
		authors, err = a.Repo.ListByKind(ctx, content.KindAuthor)
		return err
	})
	g.Go(func() (err error) {
		categories, err = a.Repo.ListByKind(ctx, content.KindCategory)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return a.renderSitemap(c, a.decodePosts(posts), authors, categories)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Repo.ListByKind(c.Request().Context(), content.KindPost)
	if err != nil {
		return err
	}
	return a.renderRSS(c, a.decodePosts(posts))
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.Config.StaticDir, "favicon.svg"))
}

// handleRobots serves the site's robots.txt, or a default that points
// crawlers at the sitemap and keeps them off the API.
func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.Config.StaticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	body := strings.Join([]string{
		"User-agent: *",
		"Allow: /",
		"Disallow: /api/",
		"Sitemap: " + strings.TrimRight(a.Config.URL, "/") + "/sitemap.xml",
		"",
	}, "\n")
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = a.renderNotFound(c)
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
		_ = RenderStatus(c, code, a.Views.ServerError(a.page(c, views.PageMeta{Title: "Error"})))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
