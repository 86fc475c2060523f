package database

import (
	"context"
	"fmt"

	"github.com/benvon/cinematch/internal/models"
)

const movieColumns = `id, tmdb_id, titulo, sinopse, diretor, elenco, genero, data_lancamento, poster_url, "avaliacaoMedia", created_at`

// MovieRepository handles catalog rows in "Filme".
type MovieRepository struct {
	db *DB
}

// NewMovieRepository creates a new movie repository
func NewMovieRepository(db *DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// GetByID retrieves a movie by catalog ID
func (r *MovieRepository) GetByID(ctx context.Context, id int64) (*models.Movie, error) {
	m := &models.Movie{}
	if err := r.db.GetContext(ctx, m, `SELECT `+movieColumns+` FROM "Filme" WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get movie: %w", notFound("movie", err))
	}
	return m, nil
}

// List returns the catalog ordered by title with the total count.
func (r *MovieRepository) List(ctx context.Context, page, pageSize int) ([]*models.Movie, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM "Filme"`); err != nil {
		return nil, 0, fmt.Errorf("failed to count movies: %w", err)
	}
	movies := []*models.Movie{}
	err := r.db.SelectContext(ctx, &movies,
		`SELECT `+movieColumns+` FROM "Filme" ORDER BY titulo, id LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list movies: %w", err)
	}
	return movies, total, nil
}

// TopRated returns up to limit movies with the highest average rating.
func (r *MovieRepository) TopRated(ctx context.Context, limit int) ([]*models.Movie, error) {
	movies := []*models.Movie{}
	err := r.db.SelectContext(ctx, &movies,
		`SELECT `+movieColumns+` FROM "Filme" ORDER BY "avaliacaoMedia" DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top rated movies: %w", err)
	}
	return movies, nil
}

// UpsertByTMDBID inserts or refreshes a movie imported from TMDB.
func (r *MovieRepository) UpsertByTMDBID(ctx context.Context, m *models.Movie) (*models.Movie, error) {
	if m.TMDBID == nil {
		return nil, fmt.Errorf("tmdb id is required")
	}
	out := &models.Movie{}
	err := r.db.GetContext(ctx, out, `
		INSERT INTO "Filme" (tmdb_id, titulo, sinopse, diretor, elenco, genero, data_lancamento, poster_url, "avaliacaoMedia")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tmdb_id) DO UPDATE SET
			titulo = EXCLUDED.titulo,
			sinopse = EXCLUDED.sinopse,
			diretor = EXCLUDED.diretor,
			elenco = EXCLUDED.elenco,
			genero = EXCLUDED.genero,
			data_lancamento = EXCLUDED.data_lancamento,
			poster_url = EXCLUDED.poster_url,
			"avaliacaoMedia" = EXCLUDED."avaliacaoMedia"
		RETURNING `+movieColumns,
		*m.TMDBID, m.Title, m.Synopsis, m.Director, m.Cast, m.Genres, m.ReleaseDate, m.PosterURL, m.AverageRating,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert movie: %w", err)
	}
	return out, nil
}
