package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	mw "github.com/mark-c-hall/posterpalette/internal/middleware"
)

var errHostNotAllowed = errors.New("image host not allowed")

// imageProxy fetches remote images for browsers that cannot read them
// cross-origin. Only hosts on the allow-list are reachable, redirects
// included; "*" allows any host.
type imageProxy struct {
	client  *http.Client
	allowed []string
}

func newImageProxy(client *http.Client, allowed []string) *imageProxy {
	if client == nil {
		client = &http.Client{}
	}
	p := &imageProxy{allowed: allowed}

	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("stopped after 5 redirects")
		}
		return p.check(req.URL)
	}
	p.client = &c
	return p
}

func (p *imageProxy) check(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if slices.Contains(p.allowed, "*") {
		return nil
	}
	if !slices.Contains(p.allowed, strings.ToLower(u.Hostname())) {
		return fmt.Errorf("%w: %s", errHostNotAllowed, u.Hostname())
	}
	return nil
}

func (h *Handler) proxyImage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}
	target, err := url.Parse(raw)
	if err != nil || target.Host == "" {
		http.Error(w, "invalid url parameter", http.StatusBadRequest)
		return
	}
	if err := h.images.check(target); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errHostNotAllowed) {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		http.Error(w, "Failed to fetch image", http.StatusInternalServerError)
		return
	}
	resp, err := h.images.client.Do(req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "image fetch failed",
			"url", target.String(),
			"error", err,
			"request_id", mw.RequestID(r.Context()),
		)
		http.Error(w, "Failed to fetch image", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.WarnContext(r.Context(), "image upstream returned non-2xx",
			"url", target.String(),
			"status", resp.StatusCode,
			"request_id", mw.RequestID(r.Context()),
		)
		http.Error(w, "Failed to fetch image", http.StatusInternalServerError)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.WarnContext(r.Context(), "image stream interrupted",
			"url", target.String(),
			"error", err,
			"request_id", mw.RequestID(r.Context()),
		)
	}
}
