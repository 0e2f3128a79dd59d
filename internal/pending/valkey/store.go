// Package pendingvalkey is the popup-shareable pending-authorization
// partition, backed by ValKey so the provider callback may land on any
// broker instance serving the console.
package pendingvalkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/mcpconsole/oauth-broker/internal/pending"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

type Store struct {
	valkey valkey.Client
	prefix string
	ttl    time.Duration
}

// NewStore creates a store writing under `<prefix>oauth:pkce:<state>`.
// An empty prefix yields the bare `oauth:pkce:<state>` key format.
// Entries carry a server-side expiry of ttl as a second line of defence
// behind the lazy check in pending.Stores.
func NewStore(valkeyClient valkey.Client, prefix string, ttl time.Duration) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	if ttl <= 0 {
		ttl = pending.DefaultTTL
	}

	return &Store{
		valkey: valkeyClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) key(state string) string {
	return s.prefix + pending.Key(state)
}

func (s *Store) Save(ctx context.Context, rec pending.Record) error {
	bytes, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	cmd := s.valkey.B().Set().
		Key(s.key(rec.State)).
		Value(valkey.BinaryString(bytes)).
		Ex(s.ttl).
		Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

func (s *Store) Load(ctx context.Context, state string) (pending.Record, error) {
	bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(s.key(state)).Build()).AsBytes()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return pending.Record{}, errors.Join(valkeyErr, serviceerr.ErrNotFound)
		}

		return pending.Record{}, fmt.Errorf("executing get command: %w", err)
	}

	var rec pending.Record
	if err := json.Unmarshal(bytes, &rec); err != nil {
		return pending.Record{}, fmt.Errorf("unmarshaling record: %w", err)
	}

	return rec, nil
}

func (s *Store) Remove(ctx context.Context, state string) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(s.key(state)).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

func (s *Store) List(ctx context.Context) ([]pending.Record, error) {
	var records []pending.Record

	match := s.prefix + pending.KeyPrefix + "*"
	var cursor uint64
	for {
		scan, err := s.valkey.Do(ctx, s.valkey.B().Scan().Cursor(cursor).Match(match).Count(100).Build()).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("executing scan command: %w", err)
		}

		cursor = scan.Cursor
		for _, key := range scan.Elements {
			bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(key).Build()).AsBytes()
			if err != nil {
				valkeyErr, ok := valkey.IsValkeyErr(err)
				if ok && valkeyErr.IsNil() {
					continue // expired between scan and get
				}

				return nil, fmt.Errorf("getting an element: %w", err)
			}

			var rec pending.Record
			if err := json.Unmarshal(bytes, &rec); err != nil {
				return nil, fmt.Errorf("unmarshaling record: %w", err)
			}

			records = append(records, rec)
		}

		if cursor == 0 {
			return records, nil
		}
	}
}
