package infra_postgres_session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cinematch/core/internal/model"
	usecase_session "github.com/cinematch/core/internal/usecase/session"
)

var ErrWinnerAlreadySet = errors.New("winner already set")

const pgUniqueViolation = "23505"

type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

type candidateDTO struct {
	MovieID    uuid.UUID      `db:"movie_id"`
	Title      string         `db:"title"`
	Year       int            `db:"year"`
	Rating     float64        `db:"rating"`
	Genres     pq.StringArray `db:"genres"`
	Overview   string         `db:"overview"`
	PosterLink string         `db:"poster_link"`
}

type ballotDTO struct {
	MovieID uuid.UUID `db:"movie_id"`
	UserID  uuid.UUID `db:"user_id"`
	Liked   bool      `db:"liked"`
}

func (dto candidateDTO) toModel() *model.MovieMeta {
	return &model.MovieMeta{
		ID:         dto.MovieID,
		Title:      dto.Title,
		Year:       dto.Year,
		Rating:     dto.Rating,
		Genres:     []string(dto.Genres),
		Overview:   dto.Overview,
		PosterLink: dto.PosterLink,
	}
}

func (d *Driver) Create(ctx context.Context, s *model.Session) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	insertSession := `INSERT INTO match_sessions (group_id) VALUES ($1)`
	if _, err := tx.ExecContext(ctx, insertSession, s.GroupID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return usecase_session.ErrSessionExists
		}
		return err
	}

	insertCandidate := `
		INSERT INTO match_candidates (group_id, movie_id, position)
		VALUES ($1, $2, $3)
	`
	for i, mm := range s.Candidates {
		if _, err := tx.ExecContext(ctx, insertCandidate, s.GroupID, mm.ID, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *Driver) ByGroup(ctx context.Context, groupID model.GroupID) (*model.Session, error) {
	var winnerID uuid.NullUUID

	sessionQuery := `SELECT winner_movie_id FROM match_sessions WHERE group_id = $1`
	if err := d.db.GetContext(ctx, &winnerID, sessionQuery, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, usecase_session.ErrSessionNotFound
		}
		return nil, err
	}

	var candidates []candidateDTO
	candidatesQuery := `
		SELECT c.movie_id, m.title, m.year, m.rating, m.genres, m.overview, m.poster_link
		FROM match_candidates c
		JOIN movies m ON m.id = c.movie_id
		WHERE c.group_id = $1
		ORDER BY c.position
	`
	if err := d.db.SelectContext(ctx, &candidates, candidatesQuery, groupID); err != nil {
		return nil, err
	}

	var ballots []ballotDTO
	ballotsQuery := `SELECT movie_id, user_id, liked FROM match_ballots WHERE group_id = $1`
	if err := d.db.SelectContext(ctx, &ballots, ballotsQuery, groupID); err != nil {
		return nil, err
	}

	queue := make([]*model.MovieMeta, 0, len(candidates))
	for _, dto := range candidates {
		queue = append(queue, dto.toModel())
	}

	s := model.NewSession(groupID, queue)
	for _, b := range ballots {
		s.SetBallot(b.UserID, b.MovieID, b.Liked)
	}
	if winnerID.Valid {
		s.Winner = s.Candidate(winnerID.UUID)
	}

	return s, nil
}

func (d *Driver) Ballot(ctx context.Context, groupID model.GroupID, userID, movieID uuid.UUID, liked model.Reaction) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Row lock keeps the ballot write ordered against a concurrent
	// winner decision on the same session.
	var winnerID uuid.NullUUID
	lockQuery := `SELECT winner_movie_id FROM match_sessions WHERE group_id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &winnerID, lockQuery, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return usecase_session.ErrSessionNotFound
		}
		return err
	}
	if winnerID.Valid {
		return fmt.Errorf("session %s already decided", groupID)
	}

	upsert := `
		INSERT INTO match_ballots (group_id, movie_id, user_id, liked)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, movie_id, user_id)
		DO UPDATE SET liked = EXCLUDED.liked
	`
	if _, err := tx.ExecContext(ctx, upsert, groupID, movieID, userID, liked); err != nil {
		return err
	}

	return tx.Commit()
}

func (d *Driver) SetWinner(ctx context.Context, groupID model.GroupID, movieID uuid.UUID) error {
	query := `
		UPDATE match_sessions
		SET winner_movie_id = $2
		WHERE group_id = $1 AND winner_movie_id IS NULL
	`
	res, err := d.db.ExecContext(ctx, query, groupID, movieID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current uuid.NullUUID
		checkQuery := `SELECT winner_movie_id FROM match_sessions WHERE group_id = $1`
		if err := d.db.GetContext(ctx, &current, checkQuery, groupID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return usecase_session.ErrSessionNotFound
			}
			return err
		}
		if current.Valid && current.UUID == movieID {
			// Lost a benign race: same decision from another path.
			return nil
		}
		return ErrWinnerAlreadySet
	}

	return nil
}
