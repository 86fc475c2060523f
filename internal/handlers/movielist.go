package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/validation"
)

// maxBatchSize bounds the number of movies in one batch request.
const maxBatchSize = 100

// MovieListHandler serves the favorites, watched and watch-later lists.
type MovieListHandler struct {
	lists    database.MovieListRepositoryInterface
	profiles database.ProfileRepositoryInterface
	logger   *zap.Logger
}

// NewMovieListHandler creates a movie list handler.
func NewMovieListHandler(lists database.MovieListRepositoryInterface, profiles database.ProfileRepositoryInterface, logger *zap.Logger) *MovieListHandler {
	return &MovieListHandler{lists: lists, profiles: profiles, logger: logger}
}

// RegisterRoutes registers list routes on a router with the /movielist prefix.
func (h *MovieListHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/status/{filme_id}", h.GetStatus).Methods("GET")
	r.HandleFunc("/batch", h.Batch).Methods("POST")
	r.HandleFunc("/favorites", h.addTo(models.ListFavorites)).Methods("POST")
	r.HandleFunc("/watched", h.addTo(models.ListWatched)).Methods("POST")
	r.HandleFunc("/watch-later", h.addTo(models.ListWatchLater)).Methods("POST")
	r.HandleFunc("/{list_type}/{filme_id}", h.RemoveFromList).Methods("DELETE")
	r.HandleFunc("/{list_type}", h.GetList).Methods("GET")
}

// ListActionRequest adds a movie to a list.
type ListActionRequest struct {
	MovieID   int64  `json:"filme_id" validate:"required,gt=0"`
	ProfileID *int64 `json:"perfil_id,omitempty" validate:"omitempty,gt=0"`
}

// ListActionResponse reports the outcome of a list change.
type ListActionResponse struct {
	MovieID   int64           `json:"filme_id"`
	ProfileID int64           `json:"perfil_id"`
	List      models.ListType `json:"list_type"`
	Changed   bool            `json:"changed"`
	Message   string          `json:"message"`
}

// BatchRequest adds several movies to one list.
type BatchRequest struct {
	ListType  string  `json:"list_type" validate:"required,list_type"`
	MovieIDs  []int64 `json:"filme_ids" validate:"required,min=1,dive,gt=0"`
	ProfileID *int64  `json:"perfil_id,omitempty" validate:"omitempty,gt=0"`
}

// BatchItem is the result for one movie of a batch.
type BatchItem struct {
	MovieID int64  `json:"filme_id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BatchResponse collects per-movie results.
type BatchResponse struct {
	Results []BatchItem `json:"results"`
}

// resolveProfile returns the caller's default profile, or the requested one
// when it belongs to the caller. It writes the error response itself.
func (h *MovieListHandler) resolveProfile(w http.ResponseWriter, r *http.Request, userID int64, requested *int64) (int64, bool) {
	var (
		profile *models.Profile
		err     error
	)
	if requested != nil {
		profile, err = h.profiles.GetOwned(r.Context(), *requested, userID)
	} else {
		profile, err = h.profiles.GetDefault(r.Context(), userID)
	}
	if err != nil {
		respondStoreError(w, err, "Profile not found", "Failed to resolve profile")
		return 0, false
	}
	return profile.ID, true
}

func queryProfileID(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("perfil_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid perfil_id")
	}
	return &id, nil
}

// GetStatus reports which lists hold a movie.
func (h *MovieListHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	movieID, err := pathInt64(r, "filme_id")
	if err != nil {
		respondBadRequest(w, "Invalid movie ID")
		return
	}
	requested, err := queryProfileID(r)
	if err != nil {
		respondBadRequest(w, "Invalid profile ID")
		return
	}
	profileID, ok := h.resolveProfile(w, r, id.UserID, requested)
	if !ok {
		return
	}

	status, err := h.lists.Status(r.Context(), movieID, profileID)
	if err != nil {
		h.logger.Error("movie_list_status_failed", zap.Int64("movie_id", movieID), zap.Error(err))
		respondInternal(w, "Failed to retrieve movie status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *MovieListHandler) addTo(list models.ListType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := callerIdentity(w, r)
		if !ok {
			return
		}
		var req ListActionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		profileID, ok := h.resolveProfile(w, r, id.UserID, req.ProfileID)
		if !ok {
			return
		}

		added, err := h.lists.Add(r.Context(), list, req.MovieID, profileID)
		if err != nil {
			h.respondListError(w, list, req.MovieID, err)
			return
		}

		message := "Movie added to list"
		if !added {
			message = "Movie already in list"
		}
		respondJSON(w, http.StatusOK, ListActionResponse{
			MovieID:   req.MovieID,
			ProfileID: profileID,
			List:      list,
			Changed:   added,
			Message:   message,
		})
	}
}

func (h *MovieListHandler) respondListError(w http.ResponseWriter, list models.ListType, movieID int64, err error) {
	switch {
	case errors.Is(err, database.ErrAlreadyWatched):
		respondBadRequest(w, "Movie is already in the watched list")
	case errors.Is(err, database.ErrNotFound):
		respondNotFound(w, "Movie not found")
	default:
		h.logger.Error("movie_list_add_failed",
			zap.String("list", string(list)),
			zap.Int64("movie_id", movieID),
			zap.Error(err))
		respondInternal(w, "Failed to update movie list")
	}
}

// RemoveFromList takes a movie off a list.
func (h *MovieListHandler) RemoveFromList(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	list, err := validation.ValidateListType(mux.Vars(r)["list_type"])
	if err != nil {
		respondBadRequest(w, "Invalid list type")
		return
	}
	movieID, err := pathInt64(r, "filme_id")
	if err != nil {
		respondBadRequest(w, "Invalid movie ID")
		return
	}
	requested, err := queryProfileID(r)
	if err != nil {
		respondBadRequest(w, "Invalid profile ID")
		return
	}
	profileID, ok := h.resolveProfile(w, r, id.UserID, requested)
	if !ok {
		return
	}

	removed, err := h.lists.Remove(r.Context(), list, movieID, profileID)
	if err != nil {
		h.logger.Error("movie_list_remove_failed", zap.String("list", string(list)), zap.Int64("movie_id", movieID), zap.Error(err))
		respondInternal(w, "Failed to update movie list")
		return
	}

	message := "Movie removed from list"
	if !removed {
		message = "Movie was not in list"
	}
	respondJSON(w, http.StatusOK, ListActionResponse{
		MovieID:   movieID,
		ProfileID: profileID,
		List:      list,
		Changed:   removed,
		Message:   message,
	})
}

// GetList returns the movies on a list.
func (h *MovieListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	list, err := validation.ValidateListType(mux.Vars(r)["list_type"])
	if err != nil {
		respondBadRequest(w, "Invalid list type")
		return
	}
	requested, err := queryProfileID(r)
	if err != nil {
		respondBadRequest(w, "Invalid profile ID")
		return
	}
	profileID, ok := h.resolveProfile(w, r, id.UserID, requested)
	if !ok {
		return
	}

	entries, err := h.lists.Entries(r.Context(), list, profileID)
	if err != nil {
		h.logger.Error("movie_list_fetch_failed", zap.String("list", string(list)), zap.Error(err))
		respondInternal(w, "Failed to retrieve movie list")
		return
	}
	if entries == nil {
		entries = []*models.ListEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// Batch adds several movies to one list, reporting each result separately.
func (h *MovieListHandler) Batch(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	var req BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.MovieIDs) > maxBatchSize {
		respondBadRequest(w, fmt.Sprintf("At most %d movies per batch", maxBatchSize))
		return
	}
	list, err := validation.ValidateListType(req.ListType)
	if err != nil {
		respondBadRequest(w, "Invalid list type")
		return
	}
	profileID, ok := h.resolveProfile(w, r, id.UserID, req.ProfileID)
	if !ok {
		return
	}

	resp := BatchResponse{Results: make([]BatchItem, 0, len(req.MovieIDs))}
	for _, movieID := range req.MovieIDs {
		item := BatchItem{MovieID: movieID, Success: true}
		added, err := h.lists.Add(r.Context(), list, movieID, profileID)
		switch {
		case errors.Is(err, database.ErrAlreadyWatched):
			item.Success, item.Message = false, "Movie is already in the watched list"
		case errors.Is(err, database.ErrNotFound):
			item.Success, item.Message = false, "Movie not found"
		case err != nil:
			h.logger.Warn("movie_list_batch_item_failed", zap.Int64("movie_id", movieID), zap.Error(err))
			item.Success, item.Message = false, "Failed to update movie list"
		case !added:
			item.Message = "Movie already in list"
		}
		resp.Results = append(resp.Results, item)
	}
	respondJSON(w, http.StatusOK, resp)
}
