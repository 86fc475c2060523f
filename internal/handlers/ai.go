package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/services/ai"
	"github.com/benvon/cinematch/internal/validation"
)

const (
	// recommendationCatalogSize is how many top-rated movies the model chooses from.
	recommendationCatalogSize = 200
	// summaryReviewLimit caps the reviews fed into one summary.
	summaryReviewLimit = 50
)

// AIHandler serves the LLM-backed recommendation and review summary routes.
type AIHandler struct {
	provider ai.Provider
	movies   database.MovieRepositoryInterface
	reviews  database.ReviewRepositoryInterface
	logger   *zap.Logger
}

// NewAIHandler creates an AI handler. provider may be nil when no API key is
// configured; the routes then answer 503.
func NewAIHandler(provider ai.Provider, movies database.MovieRepositoryInterface, reviews database.ReviewRepositoryInterface, logger *zap.Logger) *AIHandler {
	return &AIHandler{provider: provider, movies: movies, reviews: reviews, logger: logger}
}

// RegisterRoutes registers AI routes on a router with the /ai prefix.
func (h *AIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ask", h.Ask).Methods("POST")
	r.HandleFunc("/movies/{id}/review-summary", h.ReviewSummary).Methods("GET")
}

// AskRequest is a free-form recommendation question.
type AskRequest struct {
	Question string `json:"question" validate:"required,not_blank,max=1000"`
}

// AskResponse carries the model's answer.
type AskResponse struct {
	Answer string `json:"answer"`
}

// ReviewSummaryResponse carries a generated summary of a movie's reviews.
type ReviewSummaryResponse struct {
	MovieID     int64  `json:"filme_id"`
	ReviewCount int    `json:"review_count"`
	Summary     string `json:"summary"`
}

// Ask recommends movies from the top-rated catalog.
func (h *AIHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	movies, err := h.movies.TopRated(ctx, recommendationCatalogSize)
	if err != nil {
		respondInternal(w, "Failed to load catalog")
		return
	}
	if len(movies) == 0 {
		respondNotFound(w, "The catalog is empty")
		return
	}

	answer, err := h.provider.Recommend(ctx, validation.SanitizeText(req.Question), movies)
	if err != nil {
		h.respondProviderError(w, "recommend", err)
		return
	}
	respondJSON(w, http.StatusOK, AskResponse{Answer: answer})
}

// ReviewSummary summarizes the reviews of one movie.
func (h *AIHandler) ReviewSummary(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	movieID, err := pathInt64(r, "id")
	if err != nil {
		respondBadRequest(w, "Invalid movie ID")
		return
	}

	ctx := r.Context()
	movie, err := h.movies.GetByID(ctx, movieID)
	if err != nil {
		respondStoreError(w, err, "Movie not found", "Failed to retrieve movie")
		return
	}
	reviews, err := h.reviews.ListByMovie(ctx, movieID, summaryReviewLimit)
	if err != nil {
		respondInternal(w, "Failed to retrieve reviews")
		return
	}
	if len(reviews) == 0 {
		respondJSON(w, http.StatusOK, ReviewSummaryResponse{MovieID: movieID, Summary: "No reviews yet."})
		return
	}

	summary, err := h.provider.SummarizeReviews(ctx, movie, reviews)
	if err != nil {
		h.respondProviderError(w, "summarize_reviews", err)
		return
	}
	respondJSON(w, http.StatusOK, ReviewSummaryResponse{
		MovieID:     movieID,
		ReviewCount: len(reviews),
		Summary:     summary,
	})
}

func (h *AIHandler) available(w http.ResponseWriter) bool {
	if h.provider == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "AI features are not configured")
		return false
	}
	return true
}

func (h *AIHandler) respondProviderError(w http.ResponseWriter, operation string, err error) {
	switch {
	case ai.IsRateLimitError(err):
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "AI provider rate limit reached, try again later")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "AI provider is temporarily unavailable")
	default:
		h.logger.Error("ai_request_failed", zap.String("operation", operation), zap.Error(err))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "AI provider request failed")
	}
}
