package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/services/tmdb"
)

func alienDetails() *tmdb.MovieDetails {
	return &tmdb.MovieDetails{
		ID:          348,
		Title:       "Alien",
		Overview:    "In space no one can hear you scream.",
		ReleaseDate: "1979-05-25",
		VoteAverage: 8.1,
	}
}

func TestMoviesHandler_FindMovie(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		query          string
		sourceErr      error
		nilSource      bool
		expectedStatus int
	}{
		{name: "found", query: "movie_id=348", expectedStatus: http.StatusOK},
		{name: "missing id", query: "", expectedStatus: http.StatusBadRequest},
		{name: "non-numeric id", query: "movie_id=abc", expectedStatus: http.StatusBadRequest},
		{name: "negative id", query: "movie_id=-4", expectedStatus: http.StatusBadRequest},
		{name: "unknown movie", query: "movie_id=999", sourceErr: tmdb.ErrNotFound, expectedStatus: http.StatusNotFound},
		{name: "upstream failure", query: "movie_id=348", sourceErr: fmt.Errorf("%w: 500", tmdb.ErrUpstream), expectedStatus: http.StatusBadGateway},
		{name: "not configured", query: "movie_id=348", nilSource: true, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var source MovieSource = &mockMovieSource{GetMovieFunc: func(ctx context.Context, id int64) (*tmdb.MovieDetails, error) {
				if tt.sourceErr != nil {
					return nil, tt.sourceErr
				}
				return alienDetails(), nil
			}}
			if tt.nilSource {
				source = nil
			}
			h := NewMoviesHandler(&mockMovieRepo{}, source, zap.NewNop())

			w := serve("/movies", h.RegisterPublicRoutes, newTestRequest(http.MethodGet, "/movies/find?"+tt.query, nil))
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus == http.StatusOK {
				var details tmdb.MovieDetails
				decodeData(t, w, &details)
				if details.Title != "Alien" {
					t.Errorf("Expected title 'Alien', got '%s'", details.Title)
				}
			}
		})
	}
}

func TestMoviesHandler_ListMovies(t *testing.T) {
	t.Parallel()

	var gotPage, gotSize int
	repo := &mockMovieRepo{ListFunc: func(ctx context.Context, page, pageSize int) ([]*models.Movie, int, error) {
		gotPage, gotSize = page, pageSize
		return []*models.Movie{{ID: 1, Title: "Alien"}, {ID: 2, Title: "Aliens"}}, 12, nil
	}}
	h := NewMoviesHandler(repo, nil, zap.NewNop())

	w := serve("/movies", h.RegisterPublicRoutes, newTestRequest(http.MethodGet, "/movies?page=2&page_size=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotPage != 2 || gotSize != 5 {
		t.Errorf("Expected page 2 size 5, got page %d size %d", gotPage, gotSize)
	}

	var page PageResponse[models.Movie]
	decodeData(t, w, &page)
	if len(page.Items) != 2 || page.Total != 12 || page.TotalPages != 3 {
		t.Errorf("Unexpected page: %+v", page)
	}
}

func TestMoviesHandler_GetMovie(t *testing.T) {
	t.Parallel()

	repo := &mockMovieRepo{GetByIDFunc: func(ctx context.Context, id int64) (*models.Movie, error) {
		if id == 1 {
			return &models.Movie{ID: 1, Title: "Alien"}, nil
		}
		return nil, fmt.Errorf("failed to get movie: %w", database.ErrNotFound)
	}}
	h := NewMoviesHandler(repo, nil, zap.NewNop())

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{"/1", http.StatusOK},
		{"/2", http.StatusNotFound},
		{"/zero", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := serve("/movies", h.RegisterPublicRoutes, newTestRequest(http.MethodGet, "/movies"+tt.path, nil))
		if w.Code != tt.expectedStatus {
			t.Errorf("GET %s: expected status %d, got %d", tt.path, tt.expectedStatus, w.Code)
		}
	}
}

func TestMoviesHandler_ImportMovie(t *testing.T) {
	t.Parallel()

	var upserted *models.Movie
	repo := &mockMovieRepo{UpsertByTMDBIDFunc: func(ctx context.Context, m *models.Movie) (*models.Movie, error) {
		upserted = m
		out := *m
		out.ID = 77
		return &out, nil
	}}
	source := &mockMovieSource{GetMovieFunc: func(ctx context.Context, id int64) (*tmdb.MovieDetails, error) {
		if id != 348 {
			t.Errorf("Expected TMDB id 348, got %d", id)
		}
		return alienDetails(), nil
	}}
	h := NewMoviesHandler(repo, source, zap.NewNop())

	w := serve("/movies", h.RegisterRoutes, newTestRequest(http.MethodPost, "/movies/import/348", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if upserted == nil || upserted.TMDBID == nil || *upserted.TMDBID != 348 {
		t.Fatalf("Expected upsert with tmdb_id 348, got %+v", upserted)
	}
	if upserted.ReleaseDate == nil || upserted.ReleaseDate.Year() != 1979 {
		t.Errorf("Expected release date parsed, got %v", upserted.ReleaseDate)
	}

	var movie models.Movie
	decodeData(t, w, &movie)
	if movie.ID != 77 {
		t.Errorf("Expected stored id 77, got %d", movie.ID)
	}
}

func TestMoviesHandler_ImportMovieStoreFailure(t *testing.T) {
	t.Parallel()

	repo := &mockMovieRepo{UpsertByTMDBIDFunc: func(ctx context.Context, m *models.Movie) (*models.Movie, error) {
		return nil, errors.New("connection reset")
	}}
	source := &mockMovieSource{GetMovieFunc: func(ctx context.Context, id int64) (*tmdb.MovieDetails, error) {
		return alienDetails(), nil
	}}
	h := NewMoviesHandler(repo, source, zap.NewNop())

	w := serve("/movies", h.RegisterRoutes, newTestRequest(http.MethodPost, "/movies/import/348", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}
