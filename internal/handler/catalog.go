package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	mw "github.com/mark-c-hall/posterpalette/internal/middleware"
	"github.com/mark-c-hall/posterpalette/internal/tmdb"
)

// discoverQuery holds the parsed /api/movies query. Zero years are open
// bounds.
type discoverQuery struct {
	GenreID   string `validate:"omitempty,max=64"`
	StartYear int    `validate:"omitempty,gte=1800,lte=9999"`
	EndYear   int    `validate:"omitempty,gte=1800,lte=9999"`
	Page      int
}

func parseYear(name, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a year, got %q", name, raw)
	}
	return year, nil
}

// parsePage never fails: anything that is not a positive integer is page 1.
func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return tmdb.ClampPage(page)
}

func (h *Handler) parseDiscoverQuery(r *http.Request) (discoverQuery, error) {
	q := r.URL.Query()
	var dq discoverQuery
	var err error

	dq.GenreID = strings.TrimSpace(q.Get("genreID"))
	if dq.StartYear, err = parseYear("startYear", q.Get("startYear")); err != nil {
		return dq, err
	}
	if dq.EndYear, err = parseYear("endYear", q.Get("endYear")); err != nil {
		return dq, err
	}
	dq.Page = parsePage(q.Get("page"))

	if err := h.validate.Struct(dq); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return dq, fmt.Errorf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return dq, err
	}
	return dq, nil
}

func (h *Handler) discoverMovies(w http.ResponseWriter, r *http.Request) {
	dq, err := h.parseDiscoverQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.catalog.DiscoverMovies(r.Context(), tmdb.DiscoverParams{
		GenreID:   dq.GenreID,
		StartYear: dq.StartYear,
		EndYear:   dq.EndYear,
		Page:      dq.Page,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "discover failed",
			"error", err,
			"genre_id", dq.GenreID,
			"page", dq.Page,
			"request_id", mw.RequestID(r.Context()),
		)
		respondError(w, http.StatusInternalServerError, "Failed to fetch movies")
		return
	}

	respondResults(w, resp.Results)
}

func (h *Handler) searchMovies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		respondResults(w, nil)
		return
	}

	resp, err := h.catalog.SearchMovies(r.Context(), query)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "search failed",
			"error", err,
			"request_id", mw.RequestID(r.Context()),
		)
		respondError(w, http.StatusInternalServerError, "Failed to search movies")
		return
	}

	respondResults(w, resp.Results)
}

func (h *Handler) listGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.GetGenres(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "genre list failed",
			"error", err,
			"request_id", mw.RequestID(r.Context()),
		)
		respondError(w, http.StatusInternalServerError, "Failed to fetch genres")
		return
	}
	if genres == nil {
		respondJSON(w, http.StatusOK, []any{})
		return
	}
	respondJSON(w, http.StatusOK, genres)
}

// respondResults writes the catalog results array, [] when absent.
func respondResults(w http.ResponseWriter, results []json.RawMessage) {
	if results == nil {
		results = []json.RawMessage{}
	}
	respondJSON(w, http.StatusOK, results)
}
