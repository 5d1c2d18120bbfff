// internal/database/match.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/pvprelay/internal/lobby"
)

const createMatchesTable = `
	CREATE TABLE IF NOT EXISTS matches (
		id           BIGSERIAL PRIMARY KEY,
		lobby_code   TEXT        NOT NULL,
		mode         TEXT        NOT NULL,
		winner_id    UUID        NOT NULL,
		winner_name  TEXT        NOT NULL,
		winner_lives INT         NOT NULL,
		loser_id     UUID        NOT NULL,
		loser_name   TEXT        NOT NULL,
		loser_lives  INT         NOT NULL,
		rounds       INT         NOT NULL,
		ended_at     TIMESTAMPTZ NOT NULL,
		UNIQUE (winner_id, loser_id, ended_at)
	)
`

// MatchStore persists finished matches.
type MatchStore struct {
	pool *pgxpool.Pool
}

func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

// EnsureSchema creates the matches table if it does not exist.
func (s *MatchStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createMatchesTable); err != nil {
		return fmt.Errorf("create matches table: %w", err)
	}
	return nil
}

// RecordMatches inserts results in one transaction. A result already stored
// is skipped.
func (s *MatchStore) RecordMatches(ctx context.Context, results []lobby.MatchResult) error {
	if len(results) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO matches (
				lobby_code, mode, winner_id, winner_name, winner_lives,
				loser_id, loser_name, loser_lives, rounds, ended_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (winner_id, loser_id, ended_at) DO NOTHING
		`
		for _, r := range results {
			_, err := tx.Exec(ctx, q,
				r.Code, string(r.Mode), r.WinnerID, r.WinnerName, r.WinnerLives,
				r.LoserID, r.LoserName, r.LoserLives, r.Rounds, r.EndedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert matches: %w", err)
	}
	return nil
}

// CountMatches returns how many matches were stored for a lobby code.
func (s *MatchStore) CountMatches(ctx context.Context, code string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches WHERE lobby_code = $1`, code).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}
