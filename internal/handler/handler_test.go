package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/goccy/go-json"

	"github.com/mark-c-hall/posterpalette/internal/config"
	"github.com/mark-c-hall/posterpalette/internal/models"
	"github.com/mark-c-hall/posterpalette/internal/telemetry"
	"github.com/mark-c-hall/posterpalette/internal/tmdb"
	"github.com/mark-c-hall/posterpalette/internal/vision"
)

type fakeCatalog struct {
	discoverCalls atomic.Int32
	lastDiscover  tmdb.DiscoverParams
	lastQuery     string
	results       []json.RawMessage
	genres        []models.Genre
	err           error
}

func (f *fakeCatalog) DiscoverMovies(_ context.Context, p tmdb.DiscoverParams) (*tmdb.ResultsResponse, error) {
	f.discoverCalls.Add(1)
	f.lastDiscover = p
	if f.err != nil {
		return nil, f.err
	}
	return &tmdb.ResultsResponse{Results: f.results}, nil
}

func (f *fakeCatalog) SearchMovies(_ context.Context, query string) (*tmdb.ResultsResponse, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return &tmdb.ResultsResponse{Results: f.results}, nil
}

func (f *fakeCatalog) GetGenres(context.Context) ([]models.Genre, error) {
	return f.genres, f.err
}

type fakeExtractor struct {
	body []byte
	resp *vision.Response
	err  error
}

func (f *fakeExtractor) Forward(_ context.Context, body []byte) (*vision.Response, error) {
	f.body = body
	return f.resp, f.err
}

func testConfig(allowedHosts ...string) config.Config {
	return config.Config{
		Images: config.ImageProxyConfig{AllowedHosts: allowedHosts},
		Vision: config.VisionConfig{MaxBodyBytes: 4096},
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
			CORSOrigin:     "*",
		},
	}
}

func newTestHandler(t *testing.T, deps Deps, cfg config.Config) *Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h, err := NewHandler(t.Context(), deps, cfg, logger)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

var sampleResults = []json.RawMessage{
	json.RawMessage(`{"id":550,"title":"Fight Club","poster_path":"/f.jpg"}`),
	json.RawMessage(`{"id":603,"title":"The Matrix","poster_path":null}`),
}

func decodeMovies(t *testing.T, body []byte) []models.Movie {
	t.Helper()
	var movies []models.Movie
	if err := json.Unmarshal(body, &movies); err != nil {
		t.Fatalf("response is not a movie array: %v (%s)", err, body)
	}
	return movies
}

func TestDiscover_ForwardsFiltersAndReturnsArray(t *testing.T) {
	catalog := &fakeCatalog{results: sampleResults}
	h := newTestHandler(t, Deps{Catalog: catalog}, testConfig())

	rec := get(h, "/api/movies?genreID=28&startYear=1990&endYear=1999&page=2")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	want := tmdb.DiscoverParams{GenreID: "28", StartYear: 1990, EndYear: 1999, Page: 2}
	if catalog.lastDiscover != want {
		t.Errorf("expected %+v, got %+v", want, catalog.lastDiscover)
	}
	movies := decodeMovies(t, rec.Body.Bytes())
	if len(movies) != 2 || movies[0].Title != "Fight Club" || movies[1].PosterPath != nil {
		t.Errorf("unexpected movies: %+v", movies)
	}
}

func TestDiscover_ClampsPage(t *testing.T) {
	for _, page := range []string{"0", "-5", "", "abc"} {
		t.Run("page="+page, func(t *testing.T) {
			catalog := &fakeCatalog{}
			h := newTestHandler(t, Deps{Catalog: catalog}, testConfig())

			rec := get(h, "/api/movies?genreID=28&startYear=2000&endYear=2001&page="+url.QueryEscape(page))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if catalog.lastDiscover.Page != 1 {
				t.Errorf("expected page 1, got %d", catalog.lastDiscover.Page)
			}
			if strings.TrimSpace(rec.Body.String()) != "[]" {
				t.Errorf("expected empty array, got %s", rec.Body)
			}
		})
	}
}

func TestDiscover_InvalidYear(t *testing.T) {
	for _, q := range []string{"startYear=nineteen", "endYear=12", "startYear=-5"} {
		t.Run(q, func(t *testing.T) {
			catalog := &fakeCatalog{}
			h := newTestHandler(t, Deps{Catalog: catalog}, testConfig())

			rec := get(h, "/api/movies?"+q)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if catalog.discoverCalls.Load() != 0 {
				t.Error("catalog should not be called for invalid input")
			}
		})
	}
}

func TestDiscover_UpstreamFailureIsGeneric500(t *testing.T) {
	catalog := &fakeCatalog{err: &tmdb.StatusError{StatusCode: http.StatusUnauthorized}}
	h := newTestHandler(t, Deps{Catalog: catalog}, testConfig())

	rec := get(h, "/api/movies?page=1")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Failed to fetch movies"`) {
		t.Errorf("unexpected body %s", rec.Body)
	}
}

func TestSearch_SameShapeAsDiscover(t *testing.T) {
	catalog := &fakeCatalog{results: sampleResults}
	h := newTestHandler(t, Deps{Catalog: catalog}, testConfig())

	rec := get(h, "/api/searchmovies?query="+url.QueryEscape("fight club"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if catalog.lastQuery != "fight club" {
		t.Errorf("expected raw query, got %q", catalog.lastQuery)
	}
	movies := decodeMovies(t, rec.Body.Bytes())
	if len(movies) != 2 || movies[0].Poster() != "/f.jpg" {
		t.Errorf("unexpected movies: %+v", movies)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	catalog := &fakeCatalog{results: sampleResults}
	h := newTestHandler(t, Deps{Catalog: catalog}, testConfig())

	rec := get(h, "/api/searchmovies?query=")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %d %s", rec.Code, rec.Body)
	}
	if catalog.lastQuery != "" {
		t.Error("catalog should not be called for an empty query")
	}
}

func TestSearch_Failure(t *testing.T) {
	h := newTestHandler(t, Deps{Catalog: &fakeCatalog{err: errors.New("dial tcp: refused")}}, testConfig())

	rec := get(h, "/api/searchmovies?query=x")
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "Failed to search movies") {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body)
	}
}

func TestGenres(t *testing.T) {
	catalog := &fakeCatalog{genres: []models.Genre{{ID: 28, Name: "Action"}}}
	h := newTestHandler(t, Deps{Catalog: catalog}, testConfig())

	rec := get(h, "/api/genres")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var genres []models.Genre
	if err := json.Unmarshal(rec.Body.Bytes(), &genres); err != nil || len(genres) != 1 || genres[0].Name != "Action" {
		t.Errorf("unexpected genres %s", rec.Body)
	}
}

func TestProxyImage_PreservesContentTypeAndBytes(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(img)
	}))
	defer upstream.Close()

	h := newTestHandler(t, Deps{ImageClient: upstream.Client()}, testConfig("127.0.0.1"))

	rec := get(h, "/proxy-image?url="+url.QueryEscape(upstream.URL+"/poster.jpg"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), img) {
		t.Errorf("body differs from upstream: %v", rec.Body.Bytes())
	}
}

func TestProxyImage_Failures(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing url", "/proxy-image", http.StatusBadRequest},
		{"bad scheme", "/proxy-image?url=" + url.QueryEscape("file:///etc/passwd"), http.StatusBadRequest},
		{"host not allowed", "/proxy-image?url=" + url.QueryEscape("http://evil.example.com/x.png"), http.StatusForbidden},
		{"upstream 404", "/proxy-image?url=" + url.QueryEscape(notFound.URL+"/x.png"), http.StatusInternalServerError},
		{"unreachable", "/proxy-image?url=" + url.QueryEscape(closedURL+"/x.png"), http.StatusInternalServerError},
	}
	h := newTestHandler(t, Deps{ImageClient: &http.Client{Timeout: time.Second}}, testConfig("127.0.0.1"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(h, tt.target)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body)
			}
		})
	}
}

func TestProxyImage_RedirectToDisallowedHost(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://169.254.169.254/latest/meta-data", http.StatusFound)
	}))
	defer upstream.Close()

	h := newTestHandler(t, Deps{ImageClient: upstream.Client()}, testConfig("127.0.0.1"))

	rec := get(h, "/proxy-image?url="+url.QueryEscape(upstream.URL))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected redirect off the allow-list to fail, got %d", rec.Code)
	}
}

func TestProxyImage_Wildcard(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer upstream.Close()

	h := newTestHandler(t, Deps{ImageClient: upstream.Client()}, testConfig("*"))
	rec := get(h, "/proxy-image?url="+url.QueryEscape(upstream.URL))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func post(h http.Handler, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestExtractColors_ForwardsVerbatim(t *testing.T) {
	upstreamBody := `{"choices":[{"message":{"content":"{}"}}]}`
	extractor := &fakeExtractor{resp: &vision.Response{StatusCode: 200, ContentType: "application/json", Body: []byte(upstreamBody)}}
	h := newTestHandler(t, Deps{Extractor: extractor}, testConfig())

	reqBody := `{"model":"gpt-4o","messages":[]}`
	rec := post(h, "/api/extract-colors", reqBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if string(extractor.body) != reqBody {
		t.Errorf("request not forwarded verbatim: %s", extractor.body)
	}
	if rec.Body.String() != upstreamBody {
		t.Errorf("response not returned verbatim: %s", rec.Body)
	}
}

func TestExtractColors_UpstreamErrorPassthrough(t *testing.T) {
	upstreamBody := `{"error":{"message":"Invalid schema for response_format","type":"invalid_request_error"}}`
	extractor := &fakeExtractor{resp: &vision.Response{StatusCode: http.StatusBadRequest, ContentType: "application/json", Body: []byte(upstreamBody)}}
	h := newTestHandler(t, Deps{Extractor: extractor}, testConfig())

	rec := post(h, "/api/extract-colors", `{"model":"gpt-4o"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected upstream 400, got %d", rec.Code)
	}
	if rec.Body.String() != upstreamBody {
		t.Errorf("expected upstream body, got %s", rec.Body)
	}
}

func TestExtractColors_NetworkErrorIs500(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("connection reset")}
	h := newTestHandler(t, Deps{Extractor: extractor}, testConfig())

	rec := post(h, "/api/extract-colors", `{}`)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "Failed to extract colors") {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body)
	}
}

func TestExtractColors_RejectsBadBodies(t *testing.T) {
	extractor := &fakeExtractor{}
	h := newTestHandler(t, Deps{Extractor: extractor}, testConfig())

	if rec := post(h, "/api/extract-colors", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-JSON, got %d", rec.Code)
	}
	big := `{"pad":"` + strings.Repeat("a", 5000) + `"}`
	if rec := post(h, "/api/extract-colors", big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized body, got %d", rec.Code)
	}
	if extractor.body != nil {
		t.Error("extractor should not be called for rejected bodies")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, Deps{Extractor: &fakeExtractor{}}, testConfig())
	rec := get(h, "/api/extract-colors")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestStaticAndHealth(t *testing.T) {
	static := fstest.MapFS{"index.html": {Data: []byte("<h1>Poster Palette</h1>")}}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	h := newTestHandler(t, Deps{Static: static, Metrics: metrics}, testConfig())

	if rec := get(h, "/"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Poster Palette") {
		t.Errorf("unexpected index response %d %s", rec.Code, rec.Body)
	}
	if rec := get(h, "/healthz"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body)
	}
	rec := get(h, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "proxy_requests") {
		t.Errorf("expected request metrics after traffic, got %d", rec.Code)
	}
}
