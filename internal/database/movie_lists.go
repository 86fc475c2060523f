package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/benvon/cinematch/internal/models"
)

// ErrAlreadyWatched is returned when adding a watched movie to watch-later.
var ErrAlreadyWatched = errors.New("movie already watched")

var listTables = map[models.ListType]string{
	models.ListFavorites:  `"FilmesFavoritos"`,
	models.ListWatched:    `"FilmesAssistidos"`,
	models.ListWatchLater: `"FilmesWatchLater"`,
}

// MovieListRepository handles the favorites, watched and watch-later lists.
type MovieListRepository struct {
	db *DB
}

// NewMovieListRepository creates a new movie list repository
func NewMovieListRepository(db *DB) *MovieListRepository {
	return &MovieListRepository{db: db}
}

func listTable(list models.ListType) (string, error) {
	table, ok := listTables[list]
	if !ok {
		return "", fmt.Errorf("unknown list type %q", list)
	}
	return table, nil
}

// Add puts a movie on a list. Adding twice is a no-op and reports added=false.
// Marking a movie watched drops it from watch-later; a watched movie cannot
// be queued for later.
func (r *MovieListRepository) Add(ctx context.Context, list models.ListType, movieID, profileID int64) (bool, error) {
	table, err := listTable(list)
	if err != nil {
		return false, err
	}

	var added bool
	err = r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		if list == models.ListWatchLater {
			var watched bool
			if err := tx.GetContext(ctx, &watched,
				`SELECT EXISTS(SELECT 1 FROM "FilmesAssistidos" WHERE filme_id = $1 AND perfil_id = $2)`,
				movieID, profileID); err != nil {
				return fmt.Errorf("failed to check watched list: %w", err)
			}
			if watched {
				return ErrAlreadyWatched
			}
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (filme_id, perfil_id) VALUES ($1, $2) ON CONFLICT (filme_id, perfil_id) DO NOTHING`,
			movieID, profileID)
		if err != nil {
			return mapForeignKey(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		added = n > 0

		if list == models.ListWatched {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM "FilmesWatchLater" WHERE filme_id = $1 AND perfil_id = $2`,
				movieID, profileID); err != nil {
				return fmt.Errorf("failed to clear watch later: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

// Remove takes a movie off a list and reports whether it was there.
func (r *MovieListRepository) Remove(ctx context.Context, list models.ListType, movieID, profileID int64) (bool, error) {
	table, err := listTable(list)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE filme_id = $1 AND perfil_id = $2`, movieID, profileID)
	if err != nil {
		return false, fmt.Errorf("failed to remove from %s: %w", list, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

type listEntryRow struct {
	ID        int64        `db:"id"`
	MovieID   int64        `db:"filme_id"`
	ProfileID int64        `db:"perfil_id"`
	CreatedAt time.Time    `db:"created_at"`
	Film      models.Movie `db:"filme"`
}

// Entries returns a list with the movie attached, newest first.
func (r *MovieListRepository) Entries(ctx context.Context, list models.ListType, profileID int64) ([]*models.ListEntry, error) {
	table, err := listTable(list)
	if err != nil {
		return nil, err
	}
	rows := []listEntryRow{}
	err = r.db.SelectContext(ctx, &rows, `
		SELECT l.id, l.filme_id, l.perfil_id, l.created_at,
			f.id AS "filme.id", f.tmdb_id AS "filme.tmdb_id", f.titulo AS "filme.titulo",
			f.poster_url AS "filme.poster_url", f."avaliacaoMedia" AS "filme.avaliacaoMedia",
			f.created_at AS "filme.created_at"
		FROM `+table+` l
		JOIN "Filme" f ON f.id = l.filme_id
		WHERE l.perfil_id = $1
		ORDER BY l.created_at DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", list, err)
	}

	entries := make([]*models.ListEntry, 0, len(rows))
	for i := range rows {
		film := rows[i].Film
		entries = append(entries, &models.ListEntry{
			ID:        rows[i].ID,
			MovieID:   rows[i].MovieID,
			ProfileID: rows[i].ProfileID,
			CreatedAt: rows[i].CreatedAt,
			Movie:     &film,
		})
	}
	return entries, nil
}

// Status reports which lists hold the movie for the profile.
func (r *MovieListRepository) Status(ctx context.Context, movieID, profileID int64) (*models.MovieListStatus, error) {
	status := &models.MovieListStatus{MovieID: movieID, ProfileID: profileID}
	row := r.db.QueryRowContext(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM "FilmesFavoritos" WHERE filme_id = $1 AND perfil_id = $2),
			EXISTS(SELECT 1 FROM "FilmesAssistidos" WHERE filme_id = $1 AND perfil_id = $2),
			EXISTS(SELECT 1 FROM "FilmesWatchLater" WHERE filme_id = $1 AND perfil_id = $2)
	`, movieID, profileID)
	if err := row.Scan(&status.Favorite, &status.Watched, &status.WatchLater); err != nil {
		return nil, fmt.Errorf("failed to get movie list status: %w", err)
	}
	return status, nil
}

// mapForeignKey turns a missing movie or profile reference into ErrNotFound.
func mapForeignKey(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return fmt.Errorf("referenced row not found: %w", errors.Join(ErrNotFound, err))
	}
	return fmt.Errorf("failed to insert row: %w", err)
}
