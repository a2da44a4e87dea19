// Package proxyclient calls the posterpalette proxy the way the browser
// front end does.
package proxyclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mark-c-hall/posterpalette/internal/models"
	"github.com/mark-c-hall/posterpalette/internal/palette"
	"github.com/mark-c-hall/posterpalette/internal/vision"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	maxImageBytes = 10 << 20
	maxErrorBytes = 4 << 10
)

type Client struct {
	HTTPClient http.Client
	BaseURL    string
	Model      string
}

// StatusError reports a non-2xx proxy response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("proxy returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("proxy returned HTTP %d: %s", e.StatusCode, e.Message)
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		HTTPClient: http.Client{Timeout: timeout},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      palette.DefaultModel,
	}
}

// DiscoverQuery mirrors the /api/movies parameters. Zero years are sent as
// empty strings.
type DiscoverQuery struct {
	GenreID   string
	StartYear int
	EndYear   int
	Page      int
}

func (c *Client) Discover(ctx context.Context, q DiscoverQuery) ([]models.Movie, error) {
	v := url.Values{}
	v.Set("genreID", q.GenreID)
	v.Set("startYear", yearParam(q.StartYear))
	v.Set("endYear", yearParam(q.EndYear))
	v.Set("page", strconv.Itoa(q.Page))

	var movies []models.Movie
	if err := c.getJSON(ctx, "/api/movies", v, &movies); err != nil {
		return nil, fmt.Errorf("error discovering movies: %w", err)
	}
	return movies, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]models.Movie, error) {
	var movies []models.Movie
	if err := c.getJSON(ctx, "/api/searchmovies", url.Values{"query": {query}}, &movies); err != nil {
		return nil, fmt.Errorf("error searching movies: %w", err)
	}
	return movies, nil
}

func (c *Client) Genres(ctx context.Context) ([]models.Genre, error) {
	var genres []models.Genre
	if err := c.getJSON(ctx, "/api/genres", nil, &genres); err != nil {
		return nil, fmt.Errorf("error listing genres: %w", err)
	}
	return genres, nil
}

// FetchImage downloads imageURL through the proxy's image endpoint.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/proxy-image", url.Values{"url": {imageURL}}, nil)
	if err != nil {
		return nil, "", fmt.Errorf("error fetching image: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("error reading image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("image data is empty")
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// ExtractColors posts a chat request to the extraction endpoint and returns
// the raw upstream response body.
func (c *Client) ExtractColors(ctx context.Context, req vision.ChatRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error encoding extraction request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/extract-colors", nil, body)
	if err != nil {
		return nil, fmt.Errorf("error extracting colors: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading extraction response: %w", err)
	}
	return data, nil
}

// ExtractPalette runs the whole pipeline for one poster: fetch through the
// proxy, encode, ask the model, validate the seven roles.
func (c *Client) ExtractPalette(ctx context.Context, posterURL string) (palette.Palette, error) {
	img, contentType, err := c.FetchImage(ctx, posterURL)
	if err != nil {
		return palette.Palette{}, err
	}
	body, err := c.ExtractColors(ctx, palette.BuildRequest(img, mediaType(contentType), c.Model))
	if err != nil {
		return palette.Palette{}, err
	}
	return palette.ParseResponse(body)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	resp, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// do issues a request and turns any non-2xx status into a StatusError.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte) (*http.Response, error) {
	target := c.BaseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating http request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return resp, nil
}

// errorMessage pulls a readable message out of either the proxy's
// {"error":"..."} body or the upstream {"error":{"message":"..."}} body.
func errorMessage(data []byte) string {
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &flat) == nil && flat.Error != "" {
		return flat.Error
	}
	var nested vision.ErrorResponse
	if json.Unmarshal(data, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	return strings.TrimSpace(string(data))
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	mt = strings.TrimSpace(mt)
	if !strings.HasPrefix(mt, "image/") {
		return "image/png"
	}
	return mt
}

func yearParam(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}
