// Package httpapi exposes the market core over HTTP for the trading and UI
// layers.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/memestreet/market_layer/internal/app"
	"github.com/memestreet/market_layer/internal/app/metrics"
	"github.com/memestreet/market_layer/internal/app/services/issuance"
	"github.com/memestreet/market_layer/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// Options configures optional API features.
type Options struct {
	// AuditLogPath, when set, persists the audit trail as JSONL in addition
	// to the in-memory ring.
	AuditLogPath string
}

// NewHandler returns a router exposing the core REST API, instrumented for
// metrics and with the Prometheus endpoint mounted.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	sink, err := newFileAuditSink(opts.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", opts.AuditLogPath, err)
	}
	h := &handler{app: application, audit: newAuditLog(0, sink)}

	r := mux.NewRouter()
	r.Use(h.auditRequests)
	r.HandleFunc("/assets", h.createAsset).Methods(http.MethodPost)
	r.HandleFunc("/assets/{id}", h.getAsset).Methods(http.MethodGet)
	r.HandleFunc("/assets/{id}/valuate", h.valuateAsset).Methods(http.MethodPost)
	r.HandleFunc("/assets/{id}/retire", h.retireAsset).Methods(http.MethodPost)
	r.HandleFunc("/trending", h.trending).Methods(http.MethodGet)
	r.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return metrics.InstrumentHandler(r), nil
}

// auditRequests records every mutating request in the audit trail.
func (h *handler) auditRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			Method:     r.Method,
			Path:       r.URL.Path,
			AssetID:    mux.Vars(r)["id"],
			Status:     sw.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("limit must be an integer"))
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

func (h *handler) createAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CreatorID         string   `json:"creator_id"`
		CreatorName       string   `json:"creator_name"`
		TemplateID        string   `json:"template_id"`
		Title             string   `json:"title"`
		Text              string   `json:"text"`
		Categories        []string `json:"categories"`
		InitialSharePrice float64  `json:"initial_share_price"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Issuance.CreateAsset(r.Context(), issuance.Request{
		CreatorID:         payload.CreatorID,
		CreatorName:       payload.CreatorName,
		TemplateID:        payload.TemplateID,
		Title:             payload.Title,
		Text:              payload.Text,
		Categories:        payload.Categories,
		InitialSharePrice: payload.InitialSharePrice,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, issuance.ErrInvalidPrice) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := h.app.Assets.GetAsset(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) valuateAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := h.app.Engine.Valuate(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) retireAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.app.Issuance.Retire(r.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) trending(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("limit must be an integer"))
			return
		}
		limit = parsed
	}
	category := r.URL.Query().Get("category")

	assets, err := h.app.Ranking.GetTrending(r.Context(), limit, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
