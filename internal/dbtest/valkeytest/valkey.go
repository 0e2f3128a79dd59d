package valkeytest

import (
	"context"
	"net"

	"github.com/valkey-io/valkey-go"

	valkeycontainer "github.com/testcontainers/testcontainers-go/modules/valkey"
	slogctx "github.com/veqryn/slog-context"
)

const image = "valkey/valkey:8-alpine"

// Start runs a throwaway Valkey container for shared-partition tests
// and returns a connected client plus a termination function. Failures
// panic: there is no test to fail yet when TestMain calls this.
func Start(ctx context.Context) (valkey.Client, func(ctx context.Context)) {
	container, err := valkeycontainer.Run(ctx, image)
	if err != nil {
		slogctx.Error(ctx, "Failed to start Valkey container", "error", err)
		panic(err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		slogctx.Error(ctx, "Failed to resolve the mapped Valkey port", "error", err)
		panic(err)
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{net.JoinHostPort("localhost", port.Port())},
	})
	if err != nil {
		slogctx.Error(ctx, "Failed to connect to the Valkey container", "error", err)
		panic(err)
	}

	terminate := func(ctx context.Context) {
		client.Close()
		if err := container.Terminate(ctx); err != nil {
			slogctx.Error(ctx, "Failed to terminate Valkey container", "error", err)
		}
	}

	return client, terminate
}
