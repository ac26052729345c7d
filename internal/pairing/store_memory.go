package pairing

import "sync"

type memoryStore struct {
	mu       sync.RWMutex
	pairings map[string]*Record
}

// NewMemoryStore returns an in-memory pairing store. State does not survive
// a restart; agents re-pair.
func NewMemoryStore() Store {
	return &memoryStore{
		pairings: make(map[string]*Record),
	}
}

func (s *memoryStore) Load(pairingID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.pairings[pairingID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

func (s *memoryStore) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pairings[rec.PairingID] = rec.clone()
	return nil
}
