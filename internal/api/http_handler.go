// Package api exposes the work-order service over HTTP: submit a config
// (JSON body or uploaded tabular document), read status, read history.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rpattn/shareflow/internal/configdoc"
	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/service"
)

// Handler routes work-order endpoints.
type Handler struct {
	service *service.Service
}

// NewHandler builds the HTTP mux for the work-order API.
func NewHandler(svc *service.Service) http.Handler {
	h := &Handler{service: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/workorders", h.submit)
	mux.HandleFunc("GET /api/workorders/{id}", h.status)
	mux.HandleFunc("GET /api/workorders/{id}/history", h.history)
	return mux
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.readConfig(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.service.Submit(r.Context(), cfg)
	if err != nil {
		if domain.IsValidation(err) {
			// The work order exists with status VALIDATION_FAILED; surface
			// both the id and the reason.
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"id":    id,
				"error": err.Error(),
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.GetHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(history) == 0 {
		http.Error(w, "work order not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// readConfig accepts either a JSON SharingConfig body or a multipart upload
// of a tabular document.
func (h *Handler) readConfig(r *http.Request) (domain.SharingConfig, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return domain.SharingConfig{}, fmt.Errorf("invalid form data: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return domain.SharingConfig{}, fmt.Errorf("file required: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return domain.SharingConfig{}, fmt.Errorf("failed to read file: %w", err)
		}

		cfg, err := configdoc.Parse(header.Filename, bytes.NewReader(data))
		if errors.Is(err, configdoc.ErrUnsupportedFormat) {
			return domain.SharingConfig{}, fmt.Errorf("unsupported document format %q", header.Filename)
		}
		return cfg, err
	}

	var cfg domain.SharingConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		return domain.SharingConfig{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	return cfg, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
