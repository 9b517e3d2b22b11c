package memory

import (
	"context"
	"sync"
)

type cachedResponse struct {
	status int
	body   []byte
}

// IdempotencyStore keeps cached HTTP responses in process.
type IdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]cachedResponse
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{responses: make(map[string]cachedResponse)}
}

func (s *IdempotencyStore) Lookup(_ context.Context, key string) (int, []byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[key]
	if !ok {
		return 0, nil, false, nil
	}
	return r.status, append([]byte(nil), r.body...), true, nil
}

// Save keeps the first response stored under key.
func (s *IdempotencyStore) Save(_ context.Context, key string, status int, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.responses[key]; !exists {
		s.responses[key] = cachedResponse{status: status, body: append([]byte(nil), body...)}
	}
	return nil
}
