package approval

import "sync"

type memoryStore struct {
	mu       sync.RWMutex
	requests map[string]map[string]*Request
}

// NewMemoryStore returns an in-memory approval-request store.
func NewMemoryStore() Store {
	return &memoryStore{
		requests: make(map[string]map[string]*Request),
	}
}

func (s *memoryStore) Load(pairingID string) (map[string]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Request, len(s.requests[pairingID]))
	for id, req := range s.requests[pairingID] {
		r := *req
		out[id] = &r
	}
	return out, nil
}

func (s *memoryStore) Save(pairingID string, requests map[string]*Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]*Request, len(requests))
	for id, req := range requests {
		r := *req
		set[id] = &r
	}
	s.requests[pairingID] = set
	return nil
}
