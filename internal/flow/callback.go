package flow

import (
	"context"
	"fmt"

	slogctx "github.com/veqryn/slog-context"

	"github.com/mcpconsole/oauth-broker/internal/gateway"
	"github.com/mcpconsole/oauth-broker/internal/pending"
	"github.com/mcpconsole/oauth-broker/internal/relay"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

// Callback carries the query parameters the provider redirected back
// with, plus the origin of the window delivering them.
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	Origin           string
}

// Completion is the terminal outcome of a flow.
type Completion struct {
	ServerID  string
	ReturnURL string
	Partition pending.Partition
	Result    gateway.ExchangeResult
}

// HandleCallback correlates a provider redirect with its pending
// authorization and exchanges the code for a stored credential. The
// pending record is removed once the exchange returns, success or not,
// so a replayed callback fails the state lookup.
func (m *Manager) HandleCallback(ctx context.Context, cb Callback) (Completion, error) {
	if cb.Error != "" {
		// A denial is terminal for the attempt: consume the state so a
		// later callback for it lands in "not found".
		err := fmt.Errorf("%w: %s", serviceerr.ErrProviderDenied, providerErrorText(cb))
		m.discard(ctx, cb.State)
		m.publishError(cb.Origin, cb.State, err)

		return Completion{}, err
	}

	if cb.Code == "" || cb.State == "" {
		err := fmt.Errorf("%w: code and state", serviceerr.ErrMissingParameters)
		m.discard(ctx, cb.State)
		m.publishError(cb.Origin, cb.State, err)

		return Completion{}, err
	}

	record, partition, err := m.stores.Lookup(ctx, cb.State)
	if err != nil {
		m.publishError(cb.Origin, cb.State, err)

		return Completion{}, fmt.Errorf("correlating callback state: %w", err)
	}

	ctx = slogctx.With(ctx, "server_id", record.ServerID, "partition", string(partition))
	if m.debug {
		slogctx.Debug(ctx, "Correlated callback", "state", cb.State, "verifier", redactVerifier(record.CodeVerifier))
	}

	result, exchangeErr := m.gateway.Exchange(ctx, gateway.ExchangeRequest{
		Code:         cb.Code,
		State:        cb.State,
		ServerID:     record.ServerID,
		CodeVerifier: record.CodeVerifier,
	})

	// The flow is terminal either way: a verifier is single-use.
	if err := m.stores.Remove(ctx, partition, cb.State); err != nil {
		slogctx.Error(ctx, "Failed to remove pending authorization", "state", cb.State, "error", err)
	}

	if exchangeErr != nil {
		wrapped := fmt.Errorf("%w: %w", serviceerr.ErrExchangeFailed, exchangeErr)
		m.publishError(cb.Origin, cb.State, wrapped)

		return Completion{}, wrapped
	}

	slogctx.Info(ctx, "Exchanged the auth code for a credential", "credential_key", result.CredentialKey)

	m.hub.Publish(cb.Origin, relay.Message{
		Type:   relay.MessageTypeComplete,
		State:  cb.State,
		Result: &result,
	})

	return Completion{
		ServerID:  record.ServerID,
		ReturnURL: record.ReturnURL,
		Partition: partition,
		Result:    result,
	}, nil
}

// discard consumes the pending record for a state on terminal error
// paths where no exchange happened. Removal failures are logged only:
// the record would expire on its own.
func (m *Manager) discard(ctx context.Context, state string) {
	if state == "" {
		return
	}
	if err := m.stores.Purge(ctx, state); err != nil {
		slogctx.Error(ctx, "Failed to remove pending authorization", "state", state, "error", err)
	}
}

func (m *Manager) publishError(origin, state string, err error) {
	m.hub.Publish(origin, relay.Message{
		Type:  relay.MessageTypeComplete,
		State: state,
		Error: err.Error(),
	})
}

func providerErrorText(cb Callback) string {
	if cb.ErrorDescription != "" {
		return cb.Error + ": " + cb.ErrorDescription
	}

	return cb.Error
}
