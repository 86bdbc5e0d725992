package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"

	"hologram-cli/pkg/models"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database holding downloaded records.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Annotate(err, "create db directory")
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, errors.Annotate(err, "open sqlite")
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures the records table exists.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			record_id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			received TEXT NOT NULL,
			fields TEXT NOT NULL,
			fetched_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_device_received ON records(device_id, received);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Annotate(err, "init schema")
		}
	}
	return nil
}

// SaveRecords upserts records in one transaction. Fields are stored as a JSON
// array in positional order.
func (s *Store) SaveRecords(ctx context.Context, deviceID string, records []models.FinalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (record_id, device_id, received, fields)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			device_id = excluded.device_id,
			received = excluded.received,
			fields = excluded.fields`)
	if err != nil {
		return errors.Annotate(err, "prepare insert")
	}
	defer stmt.Close()

	for _, r := range records {
		fields, err := json.Marshal(r.Values())
		if err != nil {
			return errors.Annotatef(err, "encode record %s", r.ID)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, deviceID, r.Received, string(fields)); err != nil {
			return errors.Annotatef(err, "insert record %s", r.ID)
		}
	}

	return errors.Annotate(tx.Commit(), "commit")
}

// Records returns the stored records of a device, newest first.
func (s *Store) Records(ctx context.Context, deviceID string) ([]models.FinalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, received, fields FROM records WHERE device_id = ? ORDER BY received DESC, record_id`,
		deviceID)
	if err != nil {
		return nil, errors.Annotate(err, "query records")
	}
	defer rows.Close()

	var out []models.FinalRecord
	for rows.Next() {
		var (
			r      models.FinalRecord
			fields string
			values []string
		)
		if err := rows.Scan(&r.ID, &r.Received, &fields); err != nil {
			return nil, errors.Annotate(err, "scan record")
		}
		if err := json.Unmarshal([]byte(fields), &values); err != nil {
			return nil, errors.Annotatef(err, "decode fields of %s", r.ID)
		}
		r.Fields = make(map[int]string, len(values))
		for i, v := range values {
			r.Fields[i] = v
		}
		out = append(out, r)
	}
	return out, errors.Trace(rows.Err())
}
