package infra_postgres_movie

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cinematch/core/internal/model"
)

// Driver serves the candidate queue. Ranking is deliberately dumb
// (rating order): recommendation generation lives outside this service,
// the session only needs a stable, ordered list.
type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

type movieDTO struct {
	ID         uuid.UUID      `db:"id"`
	Title      string         `db:"title"`
	Year       int            `db:"year"`
	Rating     float64        `db:"rating"`
	Genres     pq.StringArray `db:"genres"`
	Overview   string         `db:"overview"`
	PosterLink string         `db:"poster_link"`
}

func (d *Driver) CandidatesForGroup(ctx context.Context, groupID model.GroupID, limit int) ([]*model.MovieMeta, error) {
	var movies []movieDTO

	query := `
		SELECT id, title, year, rating, genres, overview, poster_link
		FROM movies
		ORDER BY rating DESC, id
		LIMIT $1
	`
	if err := d.db.SelectContext(ctx, &movies, query, limit); err != nil {
		return nil, err
	}

	result := make([]*model.MovieMeta, 0, len(movies))
	for _, m := range movies {
		result = append(result, &model.MovieMeta{
			ID:         m.ID,
			Title:      m.Title,
			Year:       m.Year,
			Rating:     m.Rating,
			Genres:     []string(m.Genres),
			Overview:   m.Overview,
			PosterLink: m.PosterLink,
		})
	}

	return result, nil
}

func (d *Driver) Add(ctx context.Context, mm *model.MovieMeta) error {
	query := `
		INSERT INTO movies (id, title, year, rating, genres, overview, poster_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := d.db.ExecContext(ctx, query,
		mm.ID, mm.Title, mm.Year, mm.Rating, pq.StringArray(mm.Genres), mm.Overview, mm.PosterLink)
	return err
}
