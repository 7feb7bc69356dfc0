package infra_postgres_group

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cinematch/core/internal/model"
	usecase_session "github.com/cinematch/core/internal/usecase/session"
)

type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

func (d *Driver) Members(ctx context.Context, groupID model.GroupID) ([]uuid.UUID, error) {
	var exists bool
	existsQuery := `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`
	if err := d.db.GetContext(ctx, &exists, existsQuery, groupID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, usecase_session.ErrGroupNotFound
	}

	var members []uuid.UUID
	membersQuery := `SELECT user_id FROM group_members WHERE group_id = $1`
	if err := d.db.SelectContext(ctx, &members, membersQuery, groupID); err != nil {
		return nil, err
	}

	return members, nil
}

func (d *Driver) Create(ctx context.Context, group model.Group) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	insertGroup := `INSERT INTO groups (id, name) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, insertGroup, group.ID, group.Name); err != nil {
		return err
	}

	insertMember := `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`
	for _, userID := range group.Members {
		if _, err := tx.ExecContext(ctx, insertMember, group.ID, userID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *Driver) AddMember(ctx context.Context, groupID model.GroupID, userID uuid.UUID) error {
	query := `
		INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`
	_, err := d.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return usecase_session.ErrGroupNotFound
		}
		return err
	}
	return nil
}
