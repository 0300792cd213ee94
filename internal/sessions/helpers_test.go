package sessions

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errBoom = errors.New("connection refused")

// memStore is an in-memory Store with error injection.
type memStore struct {
	mu      sync.Mutex
	records map[string]Record
	getErr  error
	listErr error
	delErr  map[string]error
	gets    int
	deletes []string
}

func newMemStore(recs ...Record) *memStore {
	s := &memStore{records: make(map[string]Record), delErr: make(map[string]error)}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *memStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return ErrDuplicate
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return Record{}, unavailable("mem get", s.getErr)
	}
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memStore) ListByUser(_ context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, unavailable("mem list", s.listErr)
	}
	out := []Record{}
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.delErr[id]; err != nil {
		return unavailable("mem delete", err)
	}
	s.deletes = append(s.deletes, id)
	delete(s.records, id)
	return nil
}

func (s *memStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.LastActivity = at
	s.records[id] = rec
	return nil
}

func (s *memStore) setGetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

func (s *memStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

type countingRecorder struct {
	mu     sync.Mutex
	checks map[string]int
	ended  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{checks: map[string]int{}, ended: map[string]int{}}
}

func (r *countingRecorder) SessionChecked(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[state]++
}

func (r *countingRecorder) SessionsEnded(reason string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended[reason] += n
}

func record(id, userID string, lastActivity time.Time) Record {
	return Record{
		ID:           id,
		UserID:       userID,
		UserEmail:    userID + "@example.com",
		Device:       DeviceInfo{Type: DeviceDesktop, Browser: "Firefox", OS: "Linux"},
		CreatedAt:    lastActivity,
		LastActivity: lastActivity,
	}
}
