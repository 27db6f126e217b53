package wanderbites

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/wanderbites/views"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

func isPartial(c echo.Context, name string) bool {
	return c.Request().Header.Get("HX-Request") == "true" && c.QueryParam("partial") == name
}

func (a *App) site() views.SiteInfo {
	return views.SiteInfo{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Author:      a.Config.Author,
	}
}

// page returns the common page data for c. An empty meta description falls
// back to the site description.
func (a *App) page(c echo.Context, meta views.PageMeta) views.Page {
	if meta.Description == "" {
		meta.Description = a.Config.Description
	}
	if meta.OGType == "" {
		meta.OGType = "website"
	}
	if meta.URL == "" {
		meta.URL = BuildURL(a.Config.URL, c.Request().URL.Path)
	}
	return views.Page{Site: a.site(), Meta: meta, CSRF: CsrfToken(c)}
}

func (a *App) renderNotFound(c echo.Context) error {
	return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.page(c, views.PageMeta{Title: "Not found"})))
}
