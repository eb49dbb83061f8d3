package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/tycoon/internal/models"
)

// PGStore keeps sessions and history in Postgres through a pgx pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to connStr, pings and migrates.
func OpenPostgres(ctx context.Context, connStr string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	s := &PGStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	rows, err := s.pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scan schema migrations: %w", err)
	}
	applied := map[string]bool{}
	for _, v := range versions {
		applied[v] = true
	}

	files, err := migrationFiles(DialectPostgres)
	if err != nil {
		return err
	}
	for _, file := range files {
		base := filepath.Base(file)
		if applied[base] {
			continue
		}
		ddl, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(ddl)); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)", base, time.Now().UTC())
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) SaveSession(ctx context.Context, rec *models.SessionRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	q := `
		INSERT INTO game_sessions (id, status, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id)
		DO UPDATE SET status = EXCLUDED.status, record = EXCLUDED.record, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, q, rec.Game.ID, string(rec.Game.Status), data, now); err != nil {
		return fmt.Errorf("save session %s: %w", rec.Game.ID, err)
	}
	return nil
}

func (s *PGStore) LoadSession(ctx context.Context, id uuid.UUID) (*models.SessionRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, "SELECT record FROM game_sessions WHERE id = $1", id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return decodeRecord(id, data)
}

func (s *PGStore) Unfinished(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id FROM game_sessions WHERE status IN ($1, $2) ORDER BY created_at",
		string(models.StatusPending), string(models.StatusRunning))
	if err != nil {
		return nil, fmt.Errorf("list unfinished sessions: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// AppendHistory inserts a batch of entries in one transaction, skipping ones already stored.
func (s *PGStore) AppendHistory(ctx context.Context, entries []models.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO game_history (game_id, action_index, actor_id, action_type, payload, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (game_id, action_index) DO NOTHING
		`
		for _, e := range entries {
			payload, err := encodePayload(e.Payload)
			if err != nil {
				return fmt.Errorf("encode payload %d: %w", e.ActionIndex, err)
			}
			if _, err := tx.Exec(ctx, q, e.GameID, e.ActionIndex, e.ActorID, e.ActionType, payload, e.Timestamp); err != nil {
				return fmt.Errorf("insert history %s/%d: %w", e.GameID, e.ActionIndex, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx append history: %w", err)
	}
	return nil
}

func (s *PGStore) History(ctx context.Context, gameID uuid.UUID) ([]models.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT action_index, actor_id, action_type, payload, recorded_at
		FROM game_history WHERE game_id = $1 ORDER BY action_index`, gameID)
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", gameID, err)
	}
	defer rows.Close()
	var out []models.HistoryEntry
	for rows.Next() {
		e := models.HistoryEntry{GameID: gameID}
		var payload []byte
		if err := rows.Scan(&e.ActionIndex, &e.ActorID, &e.ActionType, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		if e.Payload, err = decodePayload(payload); err != nil {
			return nil, fmt.Errorf("history payload %d: %w", e.ActionIndex, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
