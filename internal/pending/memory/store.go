// Package pendingmemory is the tab-local pending-authorization
// partition. Records live in process memory, scoped to the broker
// instance that started the attempt, mirroring session-scoped storage
// in the browser console.
package pendingmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/mcpconsole/oauth-broker/internal/pending"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

type Store struct {
	cache *cache.Cache
}

// NewStore creates a store whose entries are evicted after ttl. The
// eviction is belt and braces: the pending.Stores front performs the
// authoritative lazy expiry check on load.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = pending.DefaultTTL
	}

	return &Store{
		cache: cache.New(ttl, ttl),
	}
}

func (s *Store) Save(_ context.Context, rec pending.Record) error {
	s.cache.Set(pending.Key(rec.State), rec, cache.DefaultExpiration)
	return nil
}

func (s *Store) Load(_ context.Context, state string) (pending.Record, error) {
	v, ok := s.cache.Get(pending.Key(state))
	if !ok {
		return pending.Record{}, serviceerr.ErrNotFound
	}

	rec, ok := v.(pending.Record)
	if !ok {
		return pending.Record{}, fmt.Errorf("unexpected cache entry type %T", v)
	}

	return rec, nil
}

func (s *Store) Remove(_ context.Context, state string) error {
	s.cache.Delete(pending.Key(state))
	return nil
}

func (s *Store) List(_ context.Context) ([]pending.Record, error) {
	items := s.cache.Items()

	records := make([]pending.Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.Object.(pending.Record); ok {
			records = append(records, rec)
		}
	}

	return records, nil
}
