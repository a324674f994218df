package culturedb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// Handler returns the read-only HTTP API for consumers (dashboards,
// exporters). Writes go through the Append* methods only; the API exposes
// the wide view, the experiment catalog, store stats, and the live update
// stream.
func (s *Store) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	mux.HandleFunc("/api/v1/activity", getOnly(s.handleActivity))
	mux.HandleFunc("/api/v1/activity/range", getOnly(s.handleActivityRange))
	mux.HandleFunc("/api/v1/activity/latest", getOnly(s.handleActivityLatest))
	mux.HandleFunc("/api/v1/experiments", getOnly(s.handleExperiments))
	mux.HandleFunc("/api/v1/stats", getOnly(s.handleStats))

	if s.hub != nil {
		mux.HandleFunc("/api/v1/stream", getOnly(s.hub.WebSocketHandler()))
	}

	return mux
}

// Serve starts the HTTP API on the configured address and blocks until the
// listener fails or the context is canceled.
func (s *Store) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Store) handleActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := NewActivityKey(q.Get("experiment"), q.Get("unit"), q.Get("timestamp"))

	row, err := s.GetActivity(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Store) handleActivityRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	rows, err := s.RangeActivity(r.Context(),
		q.Get("experiment"), q.Get("unit"), q.Get("start"), q.Get("end"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []ActivityRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Store) handleActivityLatest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	row, err := s.LatestActivity(r.Context(), q.Get("experiment"), q.Get("unit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Store) handleExperiments(w http.ResponseWriter, r *http.Request) {
	experiments, err := s.ListExperiments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if experiments == nil {
		experiments = []Experiment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": experiments})
}

func (s *Store) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// getOnly restricts a route to GET (and HEAD) requests, matching the
// behavior of "GET /path" ServeMux patterns on toolchains that lack them.
func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrMissingKey):
		status = http.StatusBadRequest
	case errors.Is(err, ErrBusy):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ErrClosed):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
