package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/breaker"
	"github.com/benvon/cinematch/internal/metrics"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/request"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.0-flash"
	// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider implements Provider against any OpenAI-compatible chat
// completions endpoint.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	breaker   *breaker.Breaker[string]
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a provider. An empty baseURL or model takes the
// Gemini defaults.
func NewOpenAIProvider(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
		option.WithMaxRetries(0),
	)

	return &OpenAIProvider{
		client: client,
		model:  model,
		breaker: breaker.New[string]("llm", breaker.Settings{
			MinRequests: 5,
			Timeout:     time.Minute,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}, logger),
		logger:    logger,
		debugMode: debugMode,
	}
}

// SummarizeReviews writes a summary of the movie's reviews.
func (p *OpenAIProvider) SummarizeReviews(ctx context.Context, movie *models.Movie, reviews []*models.Review) (string, error) {
	prompt := buildReviewSummaryPrompt(movie, reviews)
	out, err := p.complete(ctx, "summarize_reviews", reviewSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to summarize reviews: %w", err)
	}
	return out, nil
}

// Recommend answers a question about the given movies.
func (p *OpenAIProvider) Recommend(ctx context.Context, question string, movies []*models.Movie) (string, error) {
	prompt := buildRecommendationPrompt(question, movies)
	out, err := p.complete(ctx, "recommend", recommendSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to recommend movies: %w", err)
	}
	return out, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, operation, system, prompt string) (string, error) {
	requestID := request.RequestIDFromContext(ctx)
	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	}

	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", preview(prompt)),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	content, err := p.breaker.Execute(func() (string, error) {
		resp, err := p.client.Chat.Completions.New(ctx, req)
		if err != nil {
			if apiErr := ExtractAPIError(err); apiErr != nil {
				return "", apiErr
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New(ErrNoChoicesInResponse)
		}
		return resp.Choices[0].Message.Content, nil
	})
	latency := time.Since(start)
	metrics.ExternalRequestDuration.WithLabelValues("llm", operation).Observe(latency.Seconds())

	if err != nil {
		p.logger.Warn("llm_api_error",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		return "", err
	}

	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", operation),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", preview(content)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return content, nil
}
