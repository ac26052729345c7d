package approval

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore returns an approval-request store backed by the given
// SQLite database, creating its table if needed.
func NewSQLiteStore(db *sql.DB) (Store, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS approval_requests (
			pairing_id TEXT PRIMARY KEY,
			data       TEXT NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating approval_requests table: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Load(pairingID string) (map[string]*Request, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM approval_requests WHERE pairing_id = ?`, pairingID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]*Request{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading requests for %s: %w", pairingID, err)
	}

	var set map[string]*Request
	if err := json.Unmarshal([]byte(data), &set); err != nil {
		return nil, fmt.Errorf("decoding requests for %s: %w", pairingID, err)
	}
	if set == nil {
		set = map[string]*Request{}
	}
	return set, nil
}

func (s *sqliteStore) Save(pairingID string, requests map[string]*Request) error {
	data, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("encoding requests for %s: %w", pairingID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO approval_requests (pairing_id, data) VALUES (?, ?)
		 ON CONFLICT(pairing_id) DO UPDATE SET data = excluded.data`,
		pairingID, string(data),
	)
	if err != nil {
		return fmt.Errorf("saving requests for %s: %w", pairingID, err)
	}
	return nil
}
