package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/services/tmdb"
)

// MovieSource fetches movie metadata from TMDB.
type MovieSource interface {
	GetMovie(ctx context.Context, id int64) (*tmdb.MovieDetails, error)
}

// MoviesHandler serves the catalog and the TMDB lookup/import routes.
type MoviesHandler struct {
	movies database.MovieRepositoryInterface
	tmdb   MovieSource
	logger *zap.Logger
}

// NewMoviesHandler creates a movies handler. source may be nil when TMDB is
// not configured; the lookup and import routes then answer 503.
func NewMoviesHandler(movies database.MovieRepositoryInterface, source MovieSource, logger *zap.Logger) *MoviesHandler {
	return &MoviesHandler{movies: movies, tmdb: source, logger: logger}
}

// RegisterPublicRoutes registers the read-only catalog routes on a router
// with the /movies prefix.
func (h *MoviesHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListMovies).Methods("GET")
	r.HandleFunc("/find", h.FindMovie).Methods("GET")
	r.HandleFunc("/{id}", h.GetMovie).Methods("GET")
}

// RegisterRoutes registers the authenticated movie routes.
func (h *MoviesHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/import/{tmdb_id}", h.ImportMovie).Methods("POST")
}

// FindMovie returns TMDB details for ?movie_id=.
func (h *MoviesHandler) FindMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("movie_id"), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(w, "Invalid movie ID")
		return
	}
	details, ok := h.fetch(w, r.Context(), id)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// ListMovies pages through the local catalog.
func (h *MoviesHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	movies, total, err := h.movies.List(r.Context(), page, pageSize)
	if err != nil {
		respondInternal(w, "Failed to retrieve movies")
		return
	}
	respondJSON(w, http.StatusOK, newPage(movies, page, pageSize, total))
}

// GetMovie returns one catalog movie.
func (h *MoviesHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		respondBadRequest(w, "Invalid movie ID")
		return
	}
	movie, err := h.movies.GetByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "Movie not found", "Failed to retrieve movie")
		return
	}
	respondJSON(w, http.StatusOK, movie)
}

// ImportMovie fetches a TMDB movie and upserts it into the catalog.
func (h *MoviesHandler) ImportMovie(w http.ResponseWriter, r *http.Request) {
	tmdbID, err := pathInt64(r, "tmdb_id")
	if err != nil {
		respondBadRequest(w, "Invalid TMDB ID")
		return
	}
	ctx := r.Context()
	details, ok := h.fetch(w, ctx, tmdbID)
	if !ok {
		return
	}

	movie, err := h.movies.UpsertByTMDBID(ctx, details.ToMovie())
	if err != nil {
		h.logger.Error("movie_import_failed", zap.Int64("tmdb_id", tmdbID), zap.Error(err))
		respondInternal(w, "Failed to import movie")
		return
	}
	respondJSON(w, http.StatusOK, movie)
}

func (h *MoviesHandler) fetch(w http.ResponseWriter, ctx context.Context, id int64) (*tmdb.MovieDetails, bool) {
	if h.tmdb == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Movie metadata provider is not configured")
		return nil, false
	}
	details, err := h.tmdb.GetMovie(ctx, id)
	switch {
	case errors.Is(err, tmdb.ErrNotFound):
		respondNotFound(w, "Movie not found")
		return nil, false
	case err != nil:
		h.logger.Warn("tmdb_lookup_failed", zap.Int64("tmdb_id", id), zap.Error(err))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Movie metadata provider is unavailable")
		return nil, false
	}
	return details, true
}
