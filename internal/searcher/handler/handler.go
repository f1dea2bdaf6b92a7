package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/events"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/middleware"
)

// SearchService is the part of *searcher.Searcher the HTTP API needs.
type SearchService interface {
	Path() string
	Search(ctx context.Context, query string, limit int) (*searcher.Result, error)
	Stats(ctx context.Context) (*searcher.IndexStats, error)
	CacheStats() (hits, misses int64)
	InvalidateCache(ctx context.Context) error
}

type Handler struct {
	search     SearchService
	collector  *events.Collector
	maxResults int
	logger     *slog.Logger
}

// New builds the API handler. collector may be nil.
func New(search SearchService, collector *events.Collector, maxResults int) *Handler {
	return &Handler{
		search:     search,
		collector:  collector,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if h.maxResults > 0 && parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	result, err := h.search.Search(ctx, query, limit)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("search failed", "query", query, "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Hits),
		"cache_hit", result.Cached,
		"latency_ms", latencyMs,
	)
	h.collector.TrackSearch(events.SearchEvent{
		IndexPath:  h.search.Path(),
		Query:      query,
		TotalHits:  result.TotalHits,
		Returned:   len(result.Hits),
		Generation: result.Generation,
		CacheHit:   result.Cached,
		LatencyMs:  latencyMs,
		RequestID:  w.Header().Get(middleware.RequestIDHeader),
	})

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.search.Stats(r.Context())
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses := h.search.CacheStats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.search.InvalidateCache(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
