package pendingmock

import (
	"context"
	"sync"

	"github.com/mcpconsole/oauth-broker/internal/pending"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

type StoreOption func(*Store)

// Store is an in-memory pending.Store with injectable failures.
type Store struct {
	mu      sync.Mutex
	records map[string]pending.Record

	saveErr, loadErr, removeErr, listErr error
}

func WithRecord(rec pending.Record) StoreOption {
	return func(s *Store) { s.records[rec.State] = rec }
}
func WithSaveError(err error) StoreOption {
	return func(s *Store) { s.saveErr = err }
}
func WithLoadError(err error) StoreOption {
	return func(s *Store) { s.loadErr = err }
}
func WithRemoveError(err error) StoreOption {
	return func(s *Store) { s.removeErr = err }
}
func WithListError(err error) StoreOption {
	return func(s *Store) { s.listErr = err }
}

var _ pending.Store = (*Store)(nil)
var _ pending.Lister = (*Store)(nil)

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		records: make(map[string]pending.Record),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *Store) Save(_ context.Context, rec pending.Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.State] = rec

	return nil
}

func (s *Store) Load(_ context.Context, state string) (pending.Record, error) {
	if s.loadErr != nil {
		return pending.Record{}, s.loadErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[state]; ok {
		return rec, nil
	}

	return pending.Record{}, serviceerr.ErrNotFound
}

func (s *Store) Remove(_ context.Context, state string) error {
	if s.removeErr != nil {
		return s.removeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, state)

	return nil
}

func (s *Store) List(_ context.Context) ([]pending.Record, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]pending.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}

	return records, nil
}

// Len reports the number of stored records. Test helper.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}
