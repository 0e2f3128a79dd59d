package pending

import (
	"context"
	"errors"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

// DefaultTTL bounds how long a pending authorization stays redeemable.
// It is the only staleness guard: a user abandoning the consent screen
// simply leaves a record behind that expires.
const DefaultTTL = 15 * time.Minute

// Store is one partition backend.
type Store interface {
	Save(ctx context.Context, rec Record) error
	// Load returns serviceerr.ErrNotFound for an absent state.
	Load(ctx context.Context, state string) (Record, error)
	// Remove is idempotent: removing an absent state is not an error.
	Remove(ctx context.Context, state string) error
}

// Lister is implemented by backends that can enumerate their records,
// letting the housekeeper reclaim expired entries.
type Lister interface {
	List(ctx context.Context) ([]Record, error)
}

// Stores fronts the two partitions and enforces the TTL. Load applies
// the expiry check lazily and proactively removes stale records; any
// backend failure surfaces as serviceerr.ErrStorageUnavailable because
// an attempt cannot proceed without its persisted verifier.
type Stores struct {
	local  Store
	shared Store
	ttl    time.Duration
	now    func() time.Time
}

type StoresOption func(*Stores)

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) StoresOption {
	return func(s *Stores) { s.now = now }
}

func NewStores(local, shared Store, ttl time.Duration, opts ...StoresOption) *Stores {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Stores{
		local:  local,
		shared: shared,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Stores) TTL() time.Duration {
	return s.ttl
}

func (s *Stores) partition(p Partition) (Store, error) {
	switch p {
	case PartitionLocal:
		return s.local, nil
	case PartitionShared:
		return s.shared, nil
	default:
		return nil, fmt.Errorf("unknown partition %q", p)
	}
}

func (s *Stores) Save(ctx context.Context, p Partition, rec Record) error {
	store, err := s.partition(p)
	if err != nil {
		return err
	}

	if err := store.Save(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", serviceerr.ErrStorageUnavailable, err)
	}

	return nil
}

// Load returns the record for a state, treating expired records as
// absent. Expired records are removed as a side effect.
func (s *Stores) Load(ctx context.Context, p Partition, state string) (Record, error) {
	store, err := s.partition(p)
	if err != nil {
		return Record{}, err
	}

	rec, err := store.Load(ctx, state)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return Record{}, err
		}

		return Record{}, fmt.Errorf("%w: %w", serviceerr.ErrStorageUnavailable, err)
	}

	if s.expired(rec) {
		if err := store.Remove(ctx, state); err != nil {
			slogctx.Warn(ctx, "Failed to purge expired pending authorization", "state", state, "error", err)
		}

		return Record{}, serviceerr.ErrStateExpired
	}

	return rec, nil
}

func (s *Stores) Remove(ctx context.Context, p Partition, state string) error {
	store, err := s.partition(p)
	if err != nil {
		return err
	}

	if err := store.Remove(ctx, state); err != nil {
		return fmt.Errorf("%w: %w", serviceerr.ErrStorageUnavailable, err)
	}

	return nil
}

// Purge removes a state from both partitions. The caller may not know
// which flow shape produced the record, so both backends are asked;
// removing an absent state is a no-op in either.
func (s *Stores) Purge(ctx context.Context, state string) error {
	var errs error
	for _, p := range []Partition{PartitionLocal, PartitionShared} {
		if err := s.Remove(ctx, p, state); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

// Lookup finds the record for a state across both partitions, tab-local
// first. Either flow shape could have produced the match, so both must
// be consulted before reporting serviceerr.ErrStateNotFound.
func (s *Stores) Lookup(ctx context.Context, state string) (Record, Partition, error) {
	for _, p := range []Partition{PartitionLocal, PartitionShared} {
		rec, err := s.Load(ctx, p, state)
		if err == nil {
			return rec, p, nil
		}
		if errors.Is(err, serviceerr.ErrNotFound) {
			continue
		}

		// Expired or backend failure: stop, the attempt is over.
		return Record{}, p, err
	}

	return Record{}, "", serviceerr.ErrStateNotFound
}

func (s *Stores) expired(rec Record) bool {
	return s.now().After(rec.ExpiresAt(s.ttl))
}

// SweepShared removes expired records from the shared partition. The
// lazy check in Load stays authoritative; this only reclaims storage
// for attempts whose callback never arrived.
func (s *Stores) SweepShared(ctx context.Context) (int, error) {
	lister, ok := s.shared.(Lister)
	if !ok {
		return 0, nil
	}

	records, err := lister.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing pending authorizations: %w", err)
	}

	removed := 0
	for _, rec := range records {
		if !s.expired(rec) {
			continue
		}
		if err := s.shared.Remove(ctx, rec.State); err != nil {
			slogctx.Warn(ctx, "Failed to remove expired pending authorization", "state", rec.State, "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}
