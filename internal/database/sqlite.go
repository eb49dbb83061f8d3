package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps everything in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer; sqlite serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate schema migrations: %w", err)
	}
	rows.Close()

	files, err := migrationFiles(DialectSQLite)
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
		err = s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(ddl)); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", base, time.Now().UTC())
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// inTx runs f in a transaction, committing on success.
func (s *SQLiteStore) inTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, rec *models.SessionRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	q := `
		INSERT INTO game_sessions (id, status, record, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, record = excluded.record, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, q, rec.Game.ID.String(), string(rec.Game.Status), string(data), now, now); err != nil {
		return fmt.Errorf("save session %s: %w", rec.Game.ID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadSession(ctx context.Context, id uuid.UUID) (*models.SessionRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT record FROM game_sessions WHERE id = ?", id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return decodeRecord(id, []byte(data))
}

func (s *SQLiteStore) Unfinished(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM game_sessions WHERE status IN (?, ?) ORDER BY created_at",
		string(models.StatusPending), string(models.StatusRunning))
	if err != nil {
		return nil, fmt.Errorf("list unfinished sessions: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("session id %q: %w", raw, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AppendHistory writes entries in one transaction. Entries already stored are skipped, so a
// redelivered batch is harmless.
func (s *SQLiteStore) AppendHistory(ctx context.Context, entries []models.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		q := `
			INSERT INTO game_history (game_id, action_index, actor_id, action_type, payload, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (game_id, action_index) DO NOTHING
		`
		for _, e := range entries {
			payload, err := encodePayload(e.Payload)
			if err != nil {
				return fmt.Errorf("encode payload %d: %w", e.ActionIndex, err)
			}
			if _, err := tx.ExecContext(ctx, q, e.GameID.String(), e.ActionIndex, e.ActorID.String(), e.ActionType, string(payload), e.Timestamp); err != nil {
				return fmt.Errorf("insert history %s/%d: %w", e.GameID, e.ActionIndex, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) History(ctx context.Context, gameID uuid.UUID) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action_index, actor_id, action_type, payload, recorded_at
		FROM game_history WHERE game_id = ? ORDER BY action_index`, gameID.String())
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", gameID, err)
	}
	defer rows.Close()
	var out []models.HistoryEntry
	for rows.Next() {
		e := models.HistoryEntry{GameID: gameID}
		var actor, payload string
		if err := rows.Scan(&e.ActionIndex, &actor, &e.ActionType, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		if e.ActorID, err = uuid.Parse(actor); err != nil {
			return nil, fmt.Errorf("history actor %q: %w", actor, err)
		}
		if e.Payload, err = decodePayload([]byte(payload)); err != nil {
			return nil, fmt.Errorf("history payload %d: %w", e.ActionIndex, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
