package tmdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mark-c-hall/posterpalette/internal/config"
	"github.com/mark-c-hall/posterpalette/internal/models"
)

const (
	DEFAULT_URL = "https://api.themoviedb.org"
	API_VERSION = "3"

	defaultLanguage = "en-US"
)

type Client struct {
	HTTPClient  http.Client
	APIURL      string
	APIToken    string
	Limiter     *rate.Limiter
	MaxRetries  int
	BaseBackoff time.Duration
}

// ResultsResponse is the paginated envelope shared by discover and search.
// Results are kept raw so the proxy can hand them back untouched.
type ResultsResponse struct {
	Page         int               `json:"page"`
	TotalPages   int               `json:"total_pages"`
	TotalResults int               `json:"total_results"`
	Results      []json.RawMessage `json:"results"`
}

type GenresResponse struct {
	Genres []models.Genre `json:"genres"`
}

// DiscoverParams filters a discovery query. Zero years leave that bound open.
type DiscoverParams struct {
	GenreID   string
	StartYear int
	EndYear   int
	Page      int
}

// StatusError reports a non-2xx catalog response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog returned HTTP %d: %s", e.StatusCode, e.Body)
}

func NewClient(cfg config.CatalogConfig, transport http.RoundTripper) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DEFAULT_URL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	limit := rate.Inf
	if cfg.Limit > 0 {
		limit = rate.Every(time.Second / time.Duration(cfg.Limit))
	}
	client := Client{
		HTTPClient:  http.Client{Timeout: cfg.Timeout, Transport: transport},
		APIURL:      apiURL,
		APIToken:    cfg.APIToken,
		Limiter:     rate.NewLimiter(limit, cfg.Burst),
		MaxRetries:  maxRetries,
		BaseBackoff: cfg.BaseBackoff,
	}
	return &client
}

// StartDate is the first day of year as an ISO date.
func StartDate(year int) string {
	return fmt.Sprintf("%04d-01-01", year)
}

// EndDate is the last day of year as an ISO date.
func EndDate(year int) string {
	return fmt.Sprintf("%04d-12-31", year)
}

// ClampPage maps any page below 1 to 1.
func ClampPage(page int) int {
	return max(page, 1)
}

func (c *Client) DiscoverMovies(ctx context.Context, p DiscoverParams) (*ResultsResponse, error) {
	q := url.Values{}
	q.Set("include_adult", "false")
	q.Set("language", defaultLanguage)
	q.Set("page", strconv.Itoa(ClampPage(p.Page)))
	if p.GenreID != "" {
		q.Set("with_genres", p.GenreID)
	}
	if p.StartYear != 0 {
		q.Set("primary_release_date.gte", StartDate(p.StartYear))
	}
	if p.EndYear != 0 {
		q.Set("primary_release_date.lte", EndDate(p.EndYear))
	}

	var APIResponse ResultsResponse
	if err := c.getJSON(ctx, c.endpoint("discover/movie", q), &APIResponse); err != nil {
		return nil, fmt.Errorf("error discovering movies: %w", err)
	}
	return &APIResponse, nil
}

func (c *Client) SearchMovies(ctx context.Context, query string) (*ResultsResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("include_adult", "false")
	q.Set("language", defaultLanguage)
	q.Set("page", "1")

	var APIResponse ResultsResponse
	if err := c.getJSON(ctx, c.endpoint("search/movie", q), &APIResponse); err != nil {
		return nil, fmt.Errorf("error searching movies: %w", err)
	}
	return &APIResponse, nil
}

func (c *Client) GetGenres(ctx context.Context) ([]models.Genre, error) {
	q := url.Values{}
	q.Set("language", defaultLanguage)

	var APIResponse GenresResponse
	if err := c.getJSON(ctx, c.endpoint("genre/movie/list", q), &APIResponse); err != nil {
		return nil, fmt.Errorf("error getting genres: %w", err)
	}
	return APIResponse.Genres, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	return fmt.Sprintf("%s/%s/%s?%s", c.APIURL, API_VERSION, path, q.Encode())
}

func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	resp, err := c.getHTTP(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func (c *Client) getHTTP(ctx context.Context, url string) (*http.Response, error) {
	for attempt := range c.MaxRetries {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating http request: %w", err)
		}

		req.Header.Add("Accept", "application/json")
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.APIToken))
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error making http request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt == c.MaxRetries-1 {
			return resp, nil
		}
		resp.Body.Close()

		backoff := c.BaseBackoff << attempt
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("exceeded %d retries due to rate limiting", c.MaxRetries)
}
