package business

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mcpconsole/oauth-broker/internal/config"
	"github.com/mcpconsole/oauth-broker/internal/pending"
	pendingmock "github.com/mcpconsole/oauth-broker/internal/pending/mock"
)

func TestStartHousekeeper(t *testing.T) {
	t.Run("sweeps expired records and stops on cancellation", func(t *testing.T) {
		now := time.Now()
		shared := pendingmock.NewStore(
			pendingmock.WithRecord(pending.Record{
				State:     "state-stale",
				CreatedAt: now.Add(-pending.DefaultTTL - time.Hour),
			}),
			pendingmock.WithRecord(pending.Record{
				State:     "state-fresh",
				CreatedAt: now,
			}),
		)
		stores := pending.NewStores(pendingmock.NewStore(), shared, pending.DefaultTTL,
			pending.WithClock(func() time.Time { return now }))

		cfg := &config.Config{
			Housekeeper: config.Housekeeper{TriggerInterval: time.Hour},
		}

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		// The first sweep runs before the cancelled context is observed.
		err := startHousekeeper(ctx, stores, cfg)
		assert.NoError(t, err)
		assert.Equal(t, 1, shared.Len())
	})
}

func TestHousekeeperMain_InvalidDatabaseConfig(t *testing.T) {
	cfg := &config.Config{}

	err := HousekeeperMain(t.Context(), cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "initialising the broker")
}
