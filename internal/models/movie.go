package models

import (
	"time"

	"github.com/lib/pq"
)

// Movie is a catalog entry in "Filme", usually imported from TMDB.
type Movie struct {
	ID            int64          `json:"id" db:"id"`
	TMDBID        *int64         `json:"tmdb_id,omitempty" db:"tmdb_id"`
	Title         string         `json:"titulo" db:"titulo"`
	Synopsis      *string        `json:"sinopse,omitempty" db:"sinopse"`
	Director      *string        `json:"diretor,omitempty" db:"diretor"`
	Cast          pq.StringArray `json:"elenco" db:"elenco"`
	Genres        pq.StringArray `json:"genero" db:"genero"`
	ReleaseDate   *time.Time     `json:"data_lancamento,omitempty" db:"data_lancamento"`
	PosterURL     *string        `json:"poster_url,omitempty" db:"poster_url"`
	AverageRating float64        `json:"avaliacao_media" db:"avaliacaoMedia"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// ListType identifies one of a profile's movie lists.
type ListType string

const (
	ListFavorites  ListType = "favorites"
	ListWatched    ListType = "watched"
	ListWatchLater ListType = "watch_later"
)

// ParseListType accepts the path forms ("watch-later", "favorite") and the stored form.
func ParseListType(s string) (ListType, bool) {
	switch s {
	case "favorites", "favorite":
		return ListFavorites, true
	case "watched":
		return ListWatched, true
	case "watch_later", "watch-later":
		return ListWatchLater, true
	}
	return "", false
}

// ListEntry is a movie on one of a profile's lists.
type ListEntry struct {
	ID        int64     `json:"id" db:"id"`
	MovieID   int64     `json:"filme_id" db:"filme_id"`
	ProfileID int64     `json:"perfil_id" db:"perfil_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Movie     *Movie    `json:"filme,omitempty" db:"-"`
}

// MovieListStatus reports which lists a movie is on for a profile.
type MovieListStatus struct {
	MovieID    int64 `json:"filme_id"`
	ProfileID  int64 `json:"perfil_id"`
	Favorite   bool  `json:"favorite"`
	Watched    bool  `json:"watched"`
	WatchLater bool  `json:"watch_later"`
}

// Review is a profile's rating of a movie in "Avaliacao".
type Review struct {
	ID        int64     `json:"id" db:"id"`
	MovieID   int64     `json:"filme_id" db:"filme_id"`
	ProfileID int64     `json:"perfil_id" db:"perfil_id"`
	Rating    float64   `json:"nota" db:"nota"`
	Comment   *string   `json:"comentario,omitempty" db:"comentario"`
	Likes     int       `json:"curtidas" db:"curtidas"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
