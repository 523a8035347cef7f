package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/quiz"
)

// Driver names a supported SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS test_progress (
  session_id TEXT PRIMARY KEY,
  version INTEGER NOT NULL,
  data TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);
`

// SQLStore keeps snapshots in a test_progress table.
type SQLStore struct {
	db     *sql.DB
	driver Driver
}

// OpenSQL opens the database, checks the connection and ensures the schema
// exists.
func OpenSQL(ctx context.Context, driver Driver, dsn string) (*SQLStore, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:spotit.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/spotit?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Save(ctx context.Context, sessionID string, snap models.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO test_progress (session_id, version, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET version=excluded.version, data=excluded.data, updated_at=excluded.updated_at`),
		Key(sessionID), snap.Version, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, sessionID string) (models.Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT version, data FROM test_progress WHERE session_id = ?`), Key(sessionID))
	var version int
	var data string
	if err := row.Scan(&version, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Snapshot{}, false, nil
		}
		return models.Snapshot{}, false, fmt.Errorf("loading snapshot %s: %w", sessionID, err)
	}
	if version != quiz.SnapshotVersion {
		return models.Snapshot{}, false, nil
	}
	snap, ok, err := Decode([]byte(data))
	if err != nil {
		// Un registro ilegible se descarta y la sesión arranca limpia
		if cerr := s.Clear(ctx, sessionID); cerr != nil {
			return models.Snapshot{}, false, cerr
		}
		return models.Snapshot{}, false, nil
	}
	return snap, ok, nil
}

func (s *SQLStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM test_progress WHERE session_id = ?`), Key(sessionID)); err != nil {
		return fmt.Errorf("clearing snapshot %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
