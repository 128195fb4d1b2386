// Package inmem keeps the session token in memory, for tests and throwaway sessions.
package inmem

import "sync"

type Store struct {
	mu    sync.Mutex
	token string

	// Err, when set, is returned by every operation.
	Err error
}

func New(token string) *Store {
	return &Store{token: token}
}

func (s *Store) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	return s.token, nil
}

func (s *Store) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.token = token
	return nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.token = ""
	return nil
}
