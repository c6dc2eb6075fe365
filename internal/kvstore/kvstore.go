package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"log/slog"

	"github.com/medveille/medveille/internal/db"
)

// ErrVersionConflict is returned by PutCollection when the stored version no
// longer matches the version the caller read.
var ErrVersionConflict = errors.New("kvstore: version conflict")

// Store persists named collections (whole JSON arrays) and scalar settings.
// There are no cross-collection transactions: each write replaces a single
// collection row all-or-nothing.
type Store struct {
	conn   *db.DB
	logger *slog.Logger
}

func New(conn *db.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{conn: conn, logger: logger}
}

// GetCollection returns the raw JSON array for name and its version stamp.
// A collection that was never written reads as an empty array at version 0.
func (s *Store) GetCollection(ctx context.Context, name string) ([]byte, int64, error) {
	row := s.conn.QueryRow(ctx, `SELECT data, version FROM collections WHERE name = ?`, name)
	var data string
	var version int64
	if err := row.Scan(&data, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []byte("[]"), 0, nil
		}
		return nil, 0, fmt.Errorf("get collection %s: %w", name, err)
	}
	return []byte(data), version, nil
}

// PutCollection replaces the collection guarded by a compare-and-set on the
// version stamp. expectVersion must be the version returned by the read that
// produced data; 0 means the collection is expected to not exist yet.
func (s *Store) PutCollection(ctx context.Context, name string, data []byte, expectVersion int64) error {
	res, err := s.conn.Exec(ctx,
		`INSERT INTO collections (name, data, version) VALUES (?, ?, 1)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, version = collections.version + 1
		 WHERE collections.version = ?`,
		name, string(data), expectVersion)
	if err != nil {
		return fmt.Errorf("put collection %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put collection %s: %w", name, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ForcePutCollection replaces the collection unconditionally. Used by import,
// which holds the store-wide write lock and overwrites wholesale.
func (s *Store) ForcePutCollection(ctx context.Context, name string, data []byte) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO collections (name, data, version) VALUES (?, ?, 1)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, version = collections.version + 1`,
		name, string(data))
	if err != nil {
		return fmt.Errorf("force put collection %s: %w", name, err)
	}
	return nil
}

// GetSetting returns the scalar value for key and whether it was present.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	row := s.conn.QueryRow(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

// PutSetting upserts a scalar setting.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}
