// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/poiesic/medimatch/catalog"
	"github.com/poiesic/medimatch/core"
)

// DefaultK is the result count used when the k parameter is absent.
const DefaultK = 3

// Searcher answers medication queries. *search.Searcher implements it.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
	FindClosest(ctx context.Context, query string, k int) ([]string, error)
}

// Refresher reloads the shared catalog. *catalog.Cache implements it.
type Refresher interface {
	Refresh(ctx context.Context) (*catalog.Catalog, error)
}

var (
	// ErrSearcherRequired is returned when NewHandler is given a nil searcher.
	ErrSearcherRequired = errors.New("searcher is required")

	errQueryRequired = errors.New("query parameter is required")
	errInvalidK      = errors.New("k must be a positive integer")
)

type searchResponse struct {
	Results []string `json:"results"`
}

type refreshResponse struct {
	Size        int    `json:"size"`
	Dimension   int    `json:"dimension"`
	Fingerprint string `json:"fingerprint"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the search routes.
type Handler struct {
	searcher  Searcher
	refresher Refresher
	logger    *slog.Logger
	mux       *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger.With("component", "api")
		}
	}
}

// WithRefresher enables POST /api/catalog/refresh.
func WithRefresher(refresher Refresher) Option {
	return func(h *Handler) {
		h.refresher = refresher
	}
}

func NewHandler(searcher Searcher, opts ...Option) (*Handler, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}

	h := &Handler{
		searcher: searcher,
		logger:   slog.Default().With("component", "api"),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.mux.HandleFunc("GET /api/medications", h.handleSearch)
	if h.refresher != nil {
		h.mux.HandleFunc("POST /api/catalog/refresh", h.handleRefresh)
	}
	h.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	query := params.Get("query")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, errQueryRequired.Error())
		return
	}

	k := DefaultK
	if raw := params.Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, errInvalidK.Error())
			return
		}
		k = parsed
	}

	var (
		results []string
		err     error
	)
	switch mode := params.Get("mode"); mode {
	case "", "fused":
		results, err = h.searcher.Search(r.Context(), query, k)
	case "single":
		results, err = h.searcher.FindClosest(r.Context(), query, k)
	default:
		writeError(w, http.StatusBadRequest, "unknown mode "+strconv.Quote(mode))
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	if results == nil {
		results = []string{}
	}

	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cat, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Size:        cat.Len(),
		Dimension:   cat.Dimension(),
		Fingerprint: cat.Fingerprint(),
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "err", err)
	}
	writeError(w, status, err.Error())
}

// StatusFor maps a search error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
