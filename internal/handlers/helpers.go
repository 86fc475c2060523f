package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/request"
	"github.com/benvon/cinematch/internal/validation"
)

const (
	// DefaultPageSize is the default page size for pagination
	DefaultPageSize = 20
	// MaxPageSize is the maximum page size for pagination
	MaxPageSize = 100
	// maxErrorMessageLength bounds messages echoed to clients
	maxErrorMessageLength = 200
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	// Wrapped driver errors carry "failed to ...: pq: ..." chains; keep the head.
	if head, _, ok := strings.Cut(message, ": pq:"); ok {
		message = head
	}
	if len(message) > maxErrorMessageLength {
		message = message[:maxErrorMessageLength] + "..."
	}
	return message
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondJSONError(w, http.StatusBadRequest, "Bad Request", message)
}

func respondNotFound(w http.ResponseWriter, message string) {
	respondJSONError(w, http.StatusNotFound, "Not Found", message)
}

func respondInternal(w http.ResponseWriter, message string) {
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", message)
}

// respondStoreError maps repository errors: not found to 404, anything else to 500.
func respondStoreError(w http.ResponseWriter, err error, notFoundMessage, failedMessage string) {
	if errors.Is(err, database.ErrNotFound) {
		respondNotFound(w, notFoundMessage)
		return
	}
	respondInternal(w, failedMessage)
}

// callerIdentity returns the authenticated caller or writes a 401.
func callerIdentity(w http.ResponseWriter, r *http.Request) (*models.Identity, bool) {
	id := request.Identity(r)
	if id == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return nil, false
	}
	return id, true
}

// decodeJSON decodes and validates the request body into dst, writing the
// error response itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
		case errors.Is(err, io.EOF):
			respondBadRequest(w, "Request body is required")
		default:
			respondBadRequest(w, "Invalid request body")
		}
		return false
	}
	if err := validation.Validate.Struct(dst); err != nil {
		respondBadRequest(w, validation.Message(err))
		return false
	}
	return true
}

// pathInt64 parses a positive integer path variable.
func pathInt64(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// pagination reads page and page_size, clamping to sane bounds.
func pagination(r *http.Request) (page, pageSize int) {
	page = 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	pageSize = DefaultPageSize
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			pageSize = min(parsed, MaxPageSize)
		}
	}
	return page, pageSize
}

// PageResponse is the envelope for paginated lists.
type PageResponse[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newPage[T any](items []T, page, pageSize, total int) PageResponse[T] {
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if items == nil {
		items = []T{}
	}
	return PageResponse[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
