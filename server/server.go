// Package server exposes the aggregation pipeline over HTTP to the
// presentation layer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chillgits/chillgits/counter"
	"github.com/chillgits/chillgits/insight"
	"github.com/chillgits/chillgits/profile"
)

// Aggregator is the pipeline entry point the handlers call.
type Aggregator interface {
	GetOrFetch(ctx context.Context, handle string, forceRefresh bool) (profile.Aggregated, error)
}

// Deps carries the handler dependencies. Insight may be nil when no
// model API key is configured; the /insight route then reports the
// feature unavailable instead of failing at startup.
type Deps struct {
	Aggregator Aggregator
	Insight    insight.Generator
	Counter    *counter.Counter
	Logger     *slog.Logger
}

// New builds the HTTP handler.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/aggregate", handleAggregate(deps))
	r.Get("/insight", handleInsight(deps))
	r.Get("/usage-count", handleUsageCount(deps, false))
	r.Post("/usage-count", handleUsageCount(deps, true))

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck // best effort
}

func handleAggregate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := r.URL.Query().Get("handle")
		refresh := r.URL.Query().Get("refresh") == "true"

		agg, err := deps.Aggregator.GetOrFetch(r.Context(), handle, refresh)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}

		writeJSON(w, http.StatusOK, agg)
	}
}

func handleInsight(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := r.URL.Query().Get("handle")

		if deps.Insight == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{
				Error:   "insight generation unavailable",
				Details: "no generative model API key is configured",
			})
			return
		}

		// The insight runs against the same cached aggregation the
		// dashboard shows; a warm cache makes this a single model call.
		agg, err := deps.Aggregator.GetOrFetch(r.Context(), handle, false)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}

		ins, err := deps.Insight.Generate(r.Context(), agg)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}

		writeJSON(w, http.StatusOK, ins)
	}
}

func handleUsageCount(deps Deps, increment bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var count int64
		if increment {
			count = deps.Counter.Increment(r.Context())
		} else {
			count = deps.Counter.Value(r.Context())
		}
		// Counter failures already degraded to zero inside the
		// counter; this surface never errors.
		writeJSON(w, http.StatusOK, map[string]int64{"count": count})
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	ResetTime int64  `json:"resetTime,omitempty"`
}

// writeError maps the pipeline's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validationErr *profile.ValidationError
		notFoundErr   *profile.NotFoundError
		rateLimitErr  *profile.RateLimitError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "invalid request",
			Details: validationErr.Error(),
		})
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:   "profile not found",
			Details: fmt.Sprintf("no GitHub user named %q", notFoundErr.Handle),
		})
	case errors.As(err, &rateLimitErr):
		body := errorBody{
			Error:   "rate limit exceeded",
			Details: "upstream API quota exhausted, try again later",
		}
		if !rateLimitErr.Reset.IsZero() {
			body.ResetTime = rateLimitErr.Reset.Unix()
		}
		writeJSON(w, http.StatusTooManyRequests, body)
	default:
		logger.Error("aggregation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "failed to fetch profile data",
			Details: err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}
