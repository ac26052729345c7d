package pairing

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore returns a pairing store backed by the given SQLite
// database, creating its table if needed. Each record is stored as a single
// JSON blob per pairing id, matching the one-blob-per-key ownership model.
func NewSQLiteStore(db *sql.DB) (Store, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS pairings (
			pairing_id TEXT PRIMARY KEY,
			data       TEXT NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating pairings table: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Load(pairingID string) (*Record, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM pairings WHERE pairing_id = ?`, pairingID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading pairing %s: %w", pairingID, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decoding pairing %s: %w", pairingID, err)
	}
	return &rec, nil
}

func (s *sqliteStore) Save(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding pairing %s: %w", rec.PairingID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO pairings (pairing_id, data) VALUES (?, ?)
		 ON CONFLICT(pairing_id) DO UPDATE SET data = excluded.data`,
		rec.PairingID, string(data),
	)
	if err != nil {
		return fmt.Errorf("saving pairing %s: %w", rec.PairingID, err)
	}
	return nil
}
