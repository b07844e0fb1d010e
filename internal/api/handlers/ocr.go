package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/readaloud/internal/ocr"
)

// maxOCRBody bounds a request of ten base64 page images.
const maxOCRBody = 64 << 20

type TextExtractor interface {
	Extract(ctx context.Context, req ocr.Request) (*ocr.Result, error)
}

type OCRHandler struct {
	svc TextExtractor
}

func NewOCRHandler(svc TextExtractor) *OCRHandler {
	return &OCRHandler{svc: svc}
}

// Extract reads the text of one image, several page images or a PDF.
func (h *OCRHandler) Extract(w http.ResponseWriter, r *http.Request) {
	req := ocr.Request{Options: ocr.DefaultOptions()}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOCRBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	result, err := h.svc.Extract(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, ocr.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ocr.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "invalid_image", err.Error())
	case errors.Is(err, ocr.ErrOCRFailed):
		writeError(w, http.StatusBadGateway, "ocr_failed", err.Error())
	default:
		slog.Error("ocr request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ocr_failed", "failed to process images")
	}
}
