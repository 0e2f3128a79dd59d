package business

import (
	"context"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/mcpconsole/oauth-broker/internal/config"
	"github.com/mcpconsole/oauth-broker/internal/pending"
)

// startHousekeeper sweeps expired pending authorizations out of the
// shared partition. Expiry is also enforced lazily at lookup time, the
// sweep only keeps abandoned flows from piling up.
func startHousekeeper(ctx context.Context, stores *pending.Stores, cfg *config.Config) error {
	c := time.Tick(cfg.Housekeeper.TriggerInterval)
	for {
		removed, err := stores.SweepShared(ctx)
		if err != nil {
			slogctx.Error(ctx, "Error during pending-authorization sweep", "error", err)
		} else if removed > 0 {
			slogctx.Info(ctx, "Swept expired pending authorizations", "removed", removed)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}
