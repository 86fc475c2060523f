package ai

import (
	"strings"
	"testing"

	"github.com/benvon/cinematch/internal/models"
)

func strPtr(s string) *string { return &s }

func TestBuildReviewSummaryPrompt(t *testing.T) {
	t.Parallel()
	movie := &models.Movie{ID: 7, Title: "Cidade de Deus"}

	tests := []struct {
		name     string
		reviews  []*models.Review
		contains []string
	}{
		{
			name:     "no reviews",
			contains: []string{"Cidade de Deus", "nenhuma avaliação", "0.00/10"},
		},
		{
			name: "averages ratings and lists comments",
			reviews: []*models.Review{
				{Rating: 9, Likes: 3, Comment: strPtr("Obra-prima")},
				{Rating: 7, Likes: 0},
			},
			contains: []string{"8.00/10", "Nota: 9.0, Curtidas: 3, Comentário: Obra-prima", "sem comentário"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prompt := buildReviewSummaryPrompt(movie, tt.reviews)
			for _, want := range tt.contains {
				if !strings.Contains(prompt, want) {
					t.Errorf("prompt missing %q:\n%s", want, prompt)
				}
			}
		})
	}
}

func TestBuildRecommendationPrompt(t *testing.T) {
	t.Parallel()
	movies := []*models.Movie{
		{
			Title:         "Alien",
			AverageRating: 8.5,
			Director:      strPtr("Ridley Scott"),
			Cast:          []string{"Sigourney Weaver", "Tom Skerritt"},
			Genres:        []string{"Terror", "Ficção científica"},
			Synopsis:      strPtr(strings.Repeat("x", maxSynopsisChars+50)),
		},
		{Title: "Sem Dados"},
	}

	prompt := buildRecommendationPrompt("um filme de terror espacial", movies)
	for _, want := range []string{
		`"um filme de terror espacial"`,
		"- Alien (8.5)",
		"Diretor: Ridley Scott",
		"Elenco: Sigourney Weaver, Tom Skerritt",
		"Gênero: Terror, Ficção científica",
		"Diretor: Desconhecido",
		"Sem sinopse disponível",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, strings.Repeat("x", maxSynopsisChars+1)) {
		t.Error("synopsis was not truncated")
	}
}

func TestBuildRecommendationPrompt_Empty(t *testing.T) {
	t.Parallel()
	if prompt := buildRecommendationPrompt("qualquer", nil); !strings.Contains(prompt, "nenhum filme encontrado") {
		t.Errorf("prompt = %q", prompt)
	}
}
