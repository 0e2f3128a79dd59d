package pending_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpconsole/oauth-broker/internal/pending"
	pendingmock "github.com/mcpconsole/oauth-broker/internal/pending/mock"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

func record(state string, createdAt time.Time) pending.Record {
	return pending.Record{
		State:        state,
		CodeVerifier: "verifier-" + state,
		ServerID:     "srv-1",
		CreatedAt:    createdAt,
	}
}

func TestStores_SaveAndLoad(t *testing.T) {
	local := pendingmock.NewStore()
	shared := pendingmock.NewStore()
	stores := pending.NewStores(local, shared, time.Minute)

	rec := record("state-1", time.Now())
	require.NoError(t, stores.Save(t.Context(), pending.PartitionLocal, rec))

	got, err := stores.Load(t.Context(), pending.PartitionLocal, "state-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// The record must not leak into the other partition.
	_, err = stores.Load(t.Context(), pending.PartitionShared, "state-1")
	assert.ErrorIs(t, err, serviceerr.ErrNotFound)
}

func TestStores_LoadExpired(t *testing.T) {
	const ttl = 15 * time.Minute

	now := time.Now()
	local := pendingmock.NewStore(
		pendingmock.WithRecord(record("stale", now.Add(-ttl-time.Millisecond))),
	)
	stores := pending.NewStores(local, pendingmock.NewStore(), ttl,
		pending.WithClock(func() time.Time { return now }),
	)

	_, err := stores.Load(t.Context(), pending.PartitionLocal, "stale")
	assert.ErrorIs(t, err, serviceerr.ErrStateExpired)

	// Expired record was removed as a side effect.
	assert.Equal(t, 0, local.Len())
}

func TestStores_LoadJustWithinTTL(t *testing.T) {
	const ttl = 15 * time.Minute

	now := time.Now()
	local := pendingmock.NewStore(
		pendingmock.WithRecord(record("fresh", now.Add(-ttl))),
	)
	stores := pending.NewStores(local, pendingmock.NewStore(), ttl,
		pending.WithClock(func() time.Time { return now }),
	)

	got, err := stores.Load(t.Context(), pending.PartitionLocal, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.State)
}

func TestStores_Lookup(t *testing.T) {
	now := time.Now()

	t.Run("local partition wins", func(t *testing.T) {
		stores := pending.NewStores(
			pendingmock.NewStore(pendingmock.WithRecord(record("state-1", now))),
			pendingmock.NewStore(pendingmock.WithRecord(record("state-1", now.Add(-time.Minute)))),
			time.Hour,
		)

		rec, partition, err := stores.Lookup(t.Context(), "state-1")
		require.NoError(t, err)
		assert.Equal(t, pending.PartitionLocal, partition)
		assert.Equal(t, now, rec.CreatedAt)
	})

	t.Run("falls through to shared", func(t *testing.T) {
		stores := pending.NewStores(
			pendingmock.NewStore(),
			pendingmock.NewStore(pendingmock.WithRecord(record("state-2", now))),
			time.Hour,
		)

		_, partition, err := stores.Lookup(t.Context(), "state-2")
		require.NoError(t, err)
		assert.Equal(t, pending.PartitionShared, partition)
	})

	t.Run("absent in both", func(t *testing.T) {
		stores := pending.NewStores(pendingmock.NewStore(), pendingmock.NewStore(), time.Hour)

		_, _, err := stores.Lookup(t.Context(), "nope")
		assert.ErrorIs(t, err, serviceerr.ErrStateNotFound)
	})
}

func TestStores_ReplayRejection(t *testing.T) {
	stores := pending.NewStores(
		pendingmock.NewStore(),
		pendingmock.NewStore(pendingmock.WithRecord(record("state-1", time.Now()))),
		time.Hour,
	)

	rec, partition, err := stores.Lookup(t.Context(), "state-1")
	require.NoError(t, err)
	require.NoError(t, stores.Remove(t.Context(), partition, rec.State))

	_, _, err = stores.Lookup(t.Context(), "state-1")
	assert.ErrorIs(t, err, serviceerr.ErrStateNotFound, "consumed state must not match again")
}

func TestStores_Purge(t *testing.T) {
	now := time.Now()

	t.Run("removes the state from both partitions", func(t *testing.T) {
		local := pendingmock.NewStore(pendingmock.WithRecord(record("state-1", now)))
		shared := pendingmock.NewStore(pendingmock.WithRecord(record("state-1", now)))
		stores := pending.NewStores(local, shared, time.Hour)

		require.NoError(t, stores.Purge(t.Context(), "state-1"))

		assert.Equal(t, 0, local.Len())
		assert.Equal(t, 0, shared.Len())
	})

	t.Run("absent state is a no-op", func(t *testing.T) {
		stores := pending.NewStores(pendingmock.NewStore(), pendingmock.NewStore(), time.Hour)

		assert.NoError(t, stores.Purge(t.Context(), "nope"))
	})

	t.Run("backend failure surfaces as unavailable", func(t *testing.T) {
		backendErr := errors.New("connection refused")
		stores := pending.NewStores(
			pendingmock.NewStore(),
			pendingmock.NewStore(pendingmock.WithRemoveError(backendErr)),
			time.Hour,
		)

		err := stores.Purge(t.Context(), "state-1")
		assert.ErrorIs(t, err, serviceerr.ErrStorageUnavailable)
	})
}

func TestStores_StorageFailures(t *testing.T) {
	backendErr := errors.New("quota exceeded")

	t.Run("save", func(t *testing.T) {
		stores := pending.NewStores(pendingmock.NewStore(pendingmock.WithSaveError(backendErr)), pendingmock.NewStore(), time.Hour)

		err := stores.Save(t.Context(), pending.PartitionLocal, record("s", time.Now()))
		assert.ErrorIs(t, err, serviceerr.ErrStorageUnavailable)
	})

	t.Run("load", func(t *testing.T) {
		stores := pending.NewStores(pendingmock.NewStore(pendingmock.WithLoadError(backendErr)), pendingmock.NewStore(), time.Hour)

		_, err := stores.Load(t.Context(), pending.PartitionLocal, "s")
		assert.ErrorIs(t, err, serviceerr.ErrStorageUnavailable)
	})

	t.Run("lookup stops on backend failure", func(t *testing.T) {
		stores := pending.NewStores(pendingmock.NewStore(pendingmock.WithLoadError(backendErr)), pendingmock.NewStore(), time.Hour)

		_, _, err := stores.Lookup(t.Context(), "s")
		assert.ErrorIs(t, err, serviceerr.ErrStorageUnavailable)
		assert.NotErrorIs(t, err, serviceerr.ErrStateNotFound)
	})
}

func TestStores_SweepShared(t *testing.T) {
	const ttl = 15 * time.Minute

	now := time.Now()
	shared := pendingmock.NewStore(
		pendingmock.WithRecord(record("stale-1", now.Add(-ttl-time.Second))),
		pendingmock.WithRecord(record("stale-2", now.Add(-2*ttl))),
		pendingmock.WithRecord(record("fresh", now)),
	)
	stores := pending.NewStores(pendingmock.NewStore(), shared, ttl,
		pending.WithClock(func() time.Time { return now }),
	)

	removed, err := stores.SweepShared(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, shared.Len())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "oauth:pkce:state-123", pending.Key("state-123"))
}
