package analytics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handler serves search log endpoints.
type Handler struct {
	store *Store
	log   zerolog.Logger
}

// NewHandler creates a new analytics handler.
func NewHandler(store *Store, log zerolog.Logger) *Handler {
	return &Handler{store: store, log: log.With().Str("component", "analytics").Logger()}
}

// RegisterRoutes mounts the public endpoints.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/search/popular", h.Popular)
}

// PopularResponse is the JSON response of the popular endpoint.
type PopularResponse struct {
	PeriodDays int            `json:"period_days"`
	Queries    []PopularQuery `json:"queries"`
}

// Popular returns the most frequent queries. Query parameters: days (1-365,
// default 30) and limit (1-50, default 10).
func (h *Handler) Popular(c echo.Context) error {
	days := clampParam(c.QueryParam("days"), 30, 1, 365)
	limit := clampParam(c.QueryParam("limit"), 10, 1, 50)

	from := time.Now().UTC().AddDate(0, 0, -days)
	queries, err := h.store.Popular(c.Request().Context(), from, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("popular queries failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, PopularResponse{PeriodDays: days, Queries: queries})
}

// Log records a search for the request in c. Do Not Track requests and bots
// are skipped. Failures are logged, never returned.
func (h *Handler) Log(c echo.Context, e Event) {
	req := c.Request()
	if req.Header.Get("DNT") == "1" || IsBot(req.UserAgent()) {
		return
	}
	e.IPHash = h.store.HashIP(c.RealIP())
	if err := h.store.Record(req.Context(), e); err != nil {
		h.log.Error().Err(err).Msg("failed to record search")
	}
}

func clampParam(raw string, def, lo, hi int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
