package infra_pg_init

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/cinematch/core/internal/config"
)

func MustEstablishConn(cfg config.Postgres) *sqlx.DB {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatal(err)
	}

	return db
}

// MustEnsureSchema creates the tables on startup. Safe to call twice.
func MustEnsureSchema(db *sqlx.DB) {
	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS movies (
    id UUID PRIMARY KEY,
    title TEXT NOT NULL,
    year INT NOT NULL DEFAULT 0,
    rating FLOAT NOT NULL DEFAULT 0,
    genres TEXT[] NOT NULL DEFAULT '{}',
    overview TEXT NOT NULL DEFAULT '',
    poster_link TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    user_id UUID NOT NULL,
    PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS match_sessions (
    group_id TEXT PRIMARY KEY REFERENCES groups(id) ON DELETE CASCADE,
    winner_movie_id UUID REFERENCES movies(id),
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS match_candidates (
    group_id TEXT NOT NULL REFERENCES match_sessions(group_id) ON DELETE CASCADE,
    movie_id UUID NOT NULL REFERENCES movies(id),
    position INT NOT NULL,
    PRIMARY KEY (group_id, movie_id)
);

CREATE INDEX IF NOT EXISTS idx_match_candidates_order ON match_candidates(group_id, position);

CREATE TABLE IF NOT EXISTS match_ballots (
    group_id TEXT NOT NULL REFERENCES match_sessions(group_id) ON DELETE CASCADE,
    movie_id UUID NOT NULL,
    user_id UUID NOT NULL,
    liked BOOLEAN NOT NULL,
    PRIMARY KEY (group_id, movie_id, user_id)
);
`
