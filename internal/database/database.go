// Package database persists session records and the per-game action history, in SQLite
// for development and tests or Postgres in production.
package database

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/models"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Options select and locate the database.
type Options struct {
	Dialect     Dialect
	SQLitePath  string
	PostgresURL string
}

// Store is the persistence boundary of the engine plus the history the historian writes.
type Store interface {
	game.Persistence
	AppendHistory(ctx context.Context, entries []models.HistoryEntry) error
	History(ctx context.Context, gameID uuid.UUID) ([]models.HistoryEntry, error)
	// Unfinished lists games still Pending or Running, for resuming after a restart.
	Unfinished(ctx context.Context) ([]uuid.UUID, error)
	Close() error
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, opts Options, logger *logrus.Logger) (Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	var (
		store Store
		err   error
	)
	switch opts.Dialect {
	case "", DialectSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join("tmp", "tycoon.sqlite")
		}
		store, err = OpenSQLite(ctx, path)
	case DialectPostgres:
		if opts.PostgresURL == "" {
			return nil, fmt.Errorf("DB_DIALECT=postgres requires DATABASE_URL or POSTGRES_* settings")
		}
		store, err = OpenPostgres(ctx, opts.PostgresURL)
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", opts.Dialect)
	}
	if err != nil {
		return nil, err
	}
	logger.WithField("dialect", opts.Dialect).Info("database ready")
	return store, nil
}

// migrationFiles lists the embedded migrations of a dialect in apply order.
func migrationFiles(d Dialect) ([]string, error) {
	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", d))
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func encodeRecord(rec *models.SessionRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal session %s: %w", rec.Game.ID, err)
	}
	return data, nil
}

func decodeRecord(id uuid.UUID, data []byte) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("session %s: %w: corrupt record: %v", id, game.ErrInvalidState, err)
	}
	return &rec, nil
}

func notFound(id uuid.UUID) error {
	return fmt.Errorf("session %s: %w", id, game.ErrNotFound)
}

func encodePayload(p map[string]interface{}) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func decodePayload(data []byte) (map[string]interface{}, error) {
	var p map[string]interface{}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}
