package flow

import (
	"context"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/mcpconsole/oauth-broker/internal/gateway"
	"github.com/mcpconsole/oauth-broker/internal/pending"
	"github.com/mcpconsole/oauth-broker/internal/pkce"
	"github.com/mcpconsole/oauth-broker/internal/registry"
	"github.com/mcpconsole/oauth-broker/internal/relay"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

// Mode selects how the authorization URL is presented to the user.
type Mode string

const (
	// ModePopup opens the provider page in a separate window. The
	// pending record goes to the shared partition so the callback can
	// be correlated from that window.
	ModePopup Mode = "popup"
	// ModeRedirect navigates the current tab. The pending record stays
	// in the tab-local partition.
	ModeRedirect Mode = "redirect"
)

// Partition returns the pending-store partition a flow started in this
// mode writes to.
func (m Mode) Partition() pending.Partition {
	if m == ModePopup {
		return pending.PartitionShared
	}

	return pending.PartitionLocal
}

// GatewayClient is the slice of the gateway API the manager needs.
type GatewayClient interface {
	Initiate(ctx context.Context, req gateway.InitiateRequest) (gateway.InitiateResponse, error)
	Exchange(ctx context.Context, req gateway.ExchangeRequest) (gateway.ExchangeResult, error)
}

// ServerDirectory resolves registered MCP servers for a flow.
type ServerDirectory interface {
	GetEnabled(ctx context.Context, serverID string) (registry.Server, error)
}

type Manager struct {
	pkce      pkce.Source
	stores    *pending.Stores
	gateway   GatewayClient
	directory ServerDirectory
	hub       *relay.Hub

	now   func() time.Time
	debug bool
}

type ManagerOption func(*Manager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithDebug enables logging of redacted verifier prefixes.
func WithDebug(debug bool) ManagerOption {
	return func(m *Manager) { m.debug = debug }
}

func NewManager(
	source pkce.Source,
	stores *pending.Stores,
	gatewayClient GatewayClient,
	directory ServerDirectory,
	hub *relay.Hub,
	opts ...ManagerOption,
) *Manager {
	m := &Manager{
		pkce:      source,
		stores:    stores,
		gateway:   gatewayClient,
		directory: directory,
		hub:       hub,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// StartRequest describes a new authorization flow.
type StartRequest struct {
	ServerID  string
	Scopes    []string
	Mode      Mode
	ReturnURL string
}

// Started reports how a flow was kicked off.
type Started struct {
	AuthURL        string
	State          string
	Mode           Mode
	RequiredScopes []string
}

// StartAuthorization begins the authorization-code flow for a server:
// it generates a PKCE pair, asks the gateway to build the provider
// authorization URL, persists the pending record, and only then
// presents the URL through the opener. The record must be durable
// before the user leaves, otherwise the callback cannot be correlated.
func (m *Manager) StartAuthorization(ctx context.Context, req StartRequest, opener Opener) (Started, error) {
	if req.ServerID == "" {
		return Started{}, fmt.Errorf("%w: server ID", serviceerr.ErrMissingParameters)
	}

	mode := req.Mode
	if mode == "" {
		mode = ModePopup
	}

	server, err := m.directory.GetEnabled(ctx, req.ServerID)
	if err != nil {
		return Started{}, fmt.Errorf("resolving server: %w", err)
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = server.DefaultScopes
	}

	proof, err := m.pkce.PKCE()
	if err != nil {
		return Started{}, fmt.Errorf("generating PKCE pair: %w", err)
	}

	nonce, err := m.pkce.Nonce()
	if err != nil {
		return Started{}, fmt.Errorf("generating state nonce: %w", err)
	}

	resp, err := m.gateway.Initiate(ctx, gateway.InitiateRequest{
		ServerID:            req.ServerID,
		Scopes:              scopes,
		State:               nonce,
		CodeChallenge:       proof.Challenge,
		CodeChallengeMethod: proof.Method,
		AuthorizeURL:        server.AuthorizeURL,
		TokenURL:            server.TokenURL,
		ClientID:            server.ClientID,
		RedirectURI:         server.RedirectURI,
	})
	if err != nil {
		return Started{}, fmt.Errorf("%w: %w", serviceerr.ErrInitiateFailed, err)
	}

	// The gateway normally mints the state itself; a gateway that only
	// echoes leaves it empty and the proposed nonce carries the flow.
	state := resp.State
	if state == "" {
		state = nonce
	}

	record := pending.Record{
		State:        state,
		CodeVerifier: proof.Verifier,
		ServerID:     req.ServerID,
		Scopes:       resp.RequiredScopes,
		ReturnURL:    req.ReturnURL,
		CreatedAt:    m.now(),
	}
	if err := m.stores.Save(ctx, mode.Partition(), record); err != nil {
		return Started{}, fmt.Errorf("persisting pending authorization: %w", err)
	}

	if m.debug {
		slogctx.Debug(ctx, "Stored pending authorization",
			"state", record.State, "server_id", record.ServerID,
			"partition", mode.Partition(), "verifier", redactVerifier(proof.Verifier))
	}

	if err := m.present(ctx, mode, resp.AuthURL, opener); err != nil {
		return Started{}, err
	}

	return Started{
		AuthURL:        resp.AuthURL,
		State:          state,
		Mode:           mode,
		RequiredScopes: resp.RequiredScopes,
	}, nil
}

func (m *Manager) present(ctx context.Context, mode Mode, authURL string, opener Opener) error {
	if mode == ModePopup {
		opened, err := opener.OpenPopup(ctx, authURL)
		if err != nil {
			return fmt.Errorf("opening popup: %w", err)
		}
		if opened {
			return nil
		}

		slogctx.Info(ctx, "Popup blocked, falling back to redirect")
	}

	if err := opener.Navigate(ctx, authURL); err != nil {
		return fmt.Errorf("navigating to authorization URL: %w", err)
	}

	return nil
}

// redactVerifier keeps a short prefix so flows can be matched in debug
// logs without disclosing the secret.
func redactVerifier(verifier string) string {
	const keep = 6
	if len(verifier) <= keep {
		return "******"
	}

	return verifier[:keep] + "..."
}
