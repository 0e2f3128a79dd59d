package business

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/mcpconsole/oauth-broker/internal/business/server"
	"github.com/mcpconsole/oauth-broker/internal/config"
	"github.com/mcpconsole/oauth-broker/internal/flow"
	"github.com/mcpconsole/oauth-broker/internal/gateway"
	"github.com/mcpconsole/oauth-broker/internal/pending"
	pendingmemory "github.com/mcpconsole/oauth-broker/internal/pending/memory"
	pendingvalkey "github.com/mcpconsole/oauth-broker/internal/pending/valkey"
	"github.com/mcpconsole/oauth-broker/internal/pkce"
	"github.com/mcpconsole/oauth-broker/internal/registry"
	registrysql "github.com/mcpconsole/oauth-broker/internal/registry/sql"
	"github.com/mcpconsole/oauth-broker/internal/relay"
)

// Main starts the broker API server.
func Main(ctx context.Context, cfg *config.Config) error {
	broker, closeFn, err := initBroker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the broker: %w", err)
	}

	defer closeFn()

	return server.StartHTTPServer(ctx, cfg, server.Services{
		Flow:     broker.Flow,
		Registry: broker.Registry,
		Hub:      broker.Hub,
	})
}

// HousekeeperMain runs the shared-partition sweep job.
func HousekeeperMain(ctx context.Context, cfg *config.Config) error {
	broker, closeFn, err := initBroker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the broker: %w", err)
	}

	defer closeFn()

	slogctx.Info(ctx, "Starting pending-authorization housekeeper")
	return startHousekeeper(ctx, broker.Stores, cfg)
}

// Broker bundles the wired services the HTTP layer serves.
type Broker struct {
	Flow     *flow.Manager
	Registry *registry.Service
	Stores   *pending.Stores
	Hub      *relay.Hub
}

func initBroker(ctx context.Context, cfg *config.Config) (_ *Broker, closeFn func(), _ error) {
	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("making dsn from config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing pgxpool config: %w", err)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	valkeyClient, err := newValkeyClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	localStore := pendingmemory.NewStore(cfg.Broker.PendingTTL)
	sharedStore := pendingvalkey.NewStore(valkeyClient, cfg.ValKey.Prefix, cfg.Broker.PendingTTL)
	stores := pending.NewStores(localStore, sharedStore, cfg.Broker.PendingTTL)

	registryService := registry.NewService(registrysql.NewRepository(db))
	if cfg.Broker.SeedFile != "" {
		if err := registryService.Seed(ctx, cfg.Broker.SeedFile); err != nil {
			return nil, nil, fmt.Errorf("seeding the server registry: %w", err)
		}
	}

	hub, err := newHub(cfg)
	if err != nil {
		return nil, nil, err
	}

	pkceOpts := []pkce.Option{}
	if cfg.Broker.AllowPlainPKCE {
		pkceOpts = append(pkceOpts, pkce.WithPlainFallback())
	}

	gatewayClient := gateway.NewClient(cfg.Broker.GatewayURL, &http.Client{
		Timeout: cfg.Broker.RequestTimeout,
	})

	manager := flow.NewManager(
		pkce.New(pkceOpts...),
		stores,
		gatewayClient,
		registryService,
		hub,
		flow.WithDebug(cfg.Broker.Debug),
	)

	broker := &Broker{
		Flow:     manager,
		Registry: registryService,
		Stores:   stores,
		Hub:      hub,
	}

	closeFn = func() {
		valkeyClient.Close()
		db.Close()
	}

	return broker, closeFn, nil
}

// newHub derives the trusted console origin from the callback URL.
func newHub(cfg *config.Config) (*relay.Hub, error) {
	u, err := url.Parse(cfg.Broker.CallbackURL)
	if err != nil {
		return nil, fmt.Errorf("parsing callback URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("callback URL %q has no scheme or host", cfg.Broker.CallbackURL)
	}

	return relay.NewHub(u.Scheme + "://" + u.Host), nil
}

func newValkeyClient(cfg *config.Config) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	})
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return valkeyClient, nil
}
