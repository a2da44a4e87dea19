package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	mw "github.com/mark-c-hall/posterpalette/internal/middleware"
)

// extractColors relays a chat-completion request to the vision model. The
// caller's body goes upstream verbatim and the upstream reply comes back
// verbatim, error statuses included.
func (h *Handler) extractColors(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	if !json.Valid(body) {
		respondError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}

	resp, err := h.extractor.Forward(r.Context(), body)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "color extraction failed",
			"error", err,
			"request_id", mw.RequestID(r.Context()),
		)
		respondError(w, http.StatusInternalServerError, "Failed to extract colors")
		return
	}

	if !resp.OK() {
		h.logger.WarnContext(r.Context(), "vision upstream returned non-2xx",
			"status", resp.StatusCode,
			"request_id", mw.RequestID(r.Context()),
		)
	}

	ct := resp.ContentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}
