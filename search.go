package wanderbites

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/wanderbites/analytics"
	"github.com/eringen/wanderbites/content"
	"github.com/eringen/wanderbites/search"
	"github.com/eringen/wanderbites/views"
)

const searchFailed = "Search failed"

// runSearch searches for f and records the outcome in metrics and, for
// non-empty sets, the search log. An empty set never reaches the repository.
func (a *App) runSearch(c echo.Context, f search.FilterSet, source string) (content.Result, error) {
	if f.IsEmpty() {
		a.Metrics.SearchRequests.WithLabelValues("empty").Inc()
		return content.Result{Records: []content.Record{}}, nil
	}

	res, err := a.searcher.Search(c.Request().Context(), f)
	if errors.Is(err, context.Canceled) {
		return res, err
	}

	ev := analytics.Event{
		Query:    f.Text,
		Region:   f.Region,
		Rating:   f.Rating,
		Tag:      f.Tag,
		Category: f.Category,
		Source:   source,
	}
	if err != nil {
		a.Metrics.SearchRequests.WithLabelValues("error").Inc()
		a.Log.Error().Err(err).Str("filters", f.String()).Msg("search failed")
		ev.Status = "error"
	} else {
		if res.Records == nil {
			res.Records = []content.Record{}
		}
		a.Metrics.SearchRequests.WithLabelValues("success").Inc()
		a.Metrics.SearchResults.Observe(float64(len(res.Records)))
		ev.Status = "success"
		ev.Results = res.Total
	}
	if a.logHandler != nil {
		a.logHandler.Log(c, ev)
	}
	return res, err
}

// handleSearchAPI serves GET /api/search.
func (a *App) handleSearchAPI(c echo.Context) error {
	f := search.FromValues(c.QueryParams())
	res, err := a.runSearch(c, f, "api")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, search.Response{
			Posts:   []content.Record{},
			Filters: f,
			Error:   searchFailed,
		})
	}
	return c.JSON(http.StatusOK, search.Response{
		Posts:   res.Records,
		Total:   res.Total,
		Filters: f,
	})
}

// handleSearchPage serves the search page. HX-Request calls with
// partial=results get only the results block.
func (a *App) handleSearchPage(c echo.Context) error {
	f := search.FromValues(c.QueryParams())
	state := search.State{Status: search.StatusIdle, Filters: f}

	if !f.IsEmpty() {
		if !a.searchLimiter.Allow(c.RealIP()) {
			state = search.State{Status: search.StatusError, Filters: f, Err: search.ErrorMessage}
		} else {
			res, err := a.runSearch(c, f, "page")
			switch {
			case errors.Is(err, context.Canceled):
				return nil
			case err != nil:
				state = search.State{Status: search.StatusError, Filters: f, Err: search.ErrorMessage}
			default:
				state = search.State{Status: search.StatusSuccess, Records: res.Records, Total: res.Total, Filters: f}
			}
		}
	}

	title := "Search"
	if f.Text != "" {
		title = "Search: " + f.Text
	}
	p := views.SearchPage{
		Page:    a.page(c, views.PageMeta{Title: title}),
		Filters: f,
		Display: search.Present(state, f.Text),
		Regions: content.Regions,
		Ratings: content.Ratings,
		Tags:    content.Tags,
	}
	if isPartial(c, "results") {
		return Render(c, a.Views.SearchResults(p))
	}
	if a.searchLog != nil && state.Status == search.StatusIdle {
		popular, err := a.searchLog.Popular(c.Request().Context(), time.Now().AddDate(0, 0, -30), 8)
		if err != nil {
			a.Log.Warn().Err(err).Msg("popular searches unavailable")
		}
		p.Popular = popular
	}
	return Render(c, a.Views.Search(p))
}
