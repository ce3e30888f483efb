// Package memory implements storage.Storage with an in-process,
// mutex-guarded map of per-uid records holding the generic
// LastAccepted[V] payload, the same mutex-guarded-map shape as the
// transport/inmemory registry.
package memory

import (
	"context"
	"sync"

	"github.com/esaraci/paxoscore/message"
	"github.com/esaraci/paxoscore/sid"
)

type record[V any] struct {
	granted     sid.SID
	hasGranted  bool
	accepted    message.LastAccepted[V]
	hasAccepted bool
}

// Storage is a map-backed storage.Storage[V] implementation.
type Storage[V any] struct {
	mu      sync.RWMutex
	records map[string]*record[V]
}

// New returns an empty in-memory Storage.
func New[V any]() *Storage[V] {
	return &Storage[V]{records: make(map[string]*record[V])}
}

// getOrCreateLocked fetches uid's record, creating it if absent.
// Callers must hold s.mu for writing.
func (s *Storage[V]) getOrCreateLocked(uid string) *record[V] {
	r, ok := s.records[uid]
	if !ok {
		r = &record[V]{}
		s.records[uid] = r
	}
	return r
}

func (s *Storage[V]) GetLastGrantedSuggestionId(_ context.Context, uid string) (sid.SID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[uid]
	if !ok || !r.hasGranted {
		return sid.SID{}, false, nil
	}
	return r.granted, true, nil
}

func (s *Storage[V]) StoreLastGrantedSuggestionId(_ context.Context, uid string, newSID sid.SID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreateLocked(uid)
	r.granted = newSID
	r.hasGranted = true
	return nil
}

func (s *Storage[V]) GetLastAcceptedData(_ context.Context, uid string) (message.LastAccepted[V], bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[uid]
	if !ok || !r.hasAccepted {
		return message.LastAccepted[V]{}, false, nil
	}
	return r.accepted, true, nil
}

func (s *Storage[V]) StoreLastAcceptedData(_ context.Context, uid string, data message.LastAccepted[V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreateLocked(uid)
	r.accepted = data
	r.hasAccepted = true
	return nil
}

func (s *Storage[V]) Reset(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, uid)
	return nil
}
