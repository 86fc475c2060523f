package ai

import (
	"fmt"
	"strings"

	"github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/models"
)

const (
	reviewSystemPrompt    = "Você resume avaliações de filmes para uma loja online. Responda em português, sem inventar informações."
	recommendSystemPrompt = "Você é um assistente de recomendações de filmes divertido. Responda em português usando apenas os filmes fornecidos."

	// maxSynopsisChars bounds each synopsis in the recommendation prompt.
	maxSynopsisChars = 300
)

// averageRating returns the mean review score, or 0 with no reviews.
func averageRating(reviews []*models.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Rating
	}
	return sum / float64(len(reviews))
}

func buildReviewSummaryPrompt(movie *models.Movie, reviews []*models.Review) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Filme: %s (id %d)\n\n", movie.Title, movie.ID)
	b.WriteString("Avaliações registradas:\n\n")
	if len(reviews) == 0 {
		b.WriteString("(nenhuma avaliação encontrada para este filme)\n")
	}
	for _, r := range reviews {
		comment := "sem comentário"
		if r.Comment != nil && strings.TrimSpace(*r.Comment) != "" {
			comment = strings.TrimSpace(*r.Comment)
		}
		fmt.Fprintf(&b, "- Nota: %.1f, Curtidas: %d, Comentário: %s\n", r.Rating, r.Likes, comment)
	}
	fmt.Fprintf(&b, `
Gere um resumo no estilo de e-commerce considerando a média geral (%.2f/10) e o conteúdo dos comentários:
1. Comece destacando a média das avaliações.
2. Escreva um parágrafo breve sobre como os espectadores descreveram o filme.
3. Liste em marcadores os pontos positivos e negativos mais mencionados.
Não invente informações que não estejam nas avaliações.
`, averageRating(reviews))
	return b.String()
}

func buildRecommendationPrompt(question string, movies []*models.Movie) string {
	var b strings.Builder
	fmt.Fprintf(&b, "O usuário perguntou: %q\n\nFilmes disponíveis:\n\n", question)
	if len(movies) == 0 {
		b.WriteString("(nenhum filme encontrado)\n")
	}
	for _, m := range movies {
		director := "Desconhecido"
		if m.Director != nil && *m.Director != "" {
			director = *m.Director
		}
		synopsis := "Sem sinopse disponível"
		if m.Synopsis != nil && *m.Synopsis != "" {
			synopsis = logger.Truncate(*m.Synopsis, maxSynopsisChars)
		}
		fmt.Fprintf(&b, "- %s (%.1f)\n  Diretor: %s\n  Elenco: %s\n  Gênero: %s\n  Sinopse: %s\n",
			m.Title, m.AverageRating, director,
			strings.Join(m.Cast, ", "), strings.Join(m.Genres, ", "), synopsis)
	}
	b.WriteString("\nResponda à pergunta com base apenas na lista acima.\n")
	return b.String()
}
