package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/mcpconsole/oauth-broker/internal/config"
	"github.com/mcpconsole/oauth-broker/internal/flow"
	"github.com/mcpconsole/oauth-broker/internal/middleware/origin"
	"github.com/mcpconsole/oauth-broker/internal/pending"
	"github.com/mcpconsole/oauth-broker/internal/registry"
	"github.com/mcpconsole/oauth-broker/internal/relay"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

const (
	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 2 * time.Minute
)

// FlowManager drives authorization flows.
type FlowManager interface {
	StartAuthorization(ctx context.Context, req flow.StartRequest, opener flow.Opener) (flow.Started, error)
	HandleCallback(ctx context.Context, cb flow.Callback) (flow.Completion, error)
}

// ServerRegistry manages the registered MCP servers.
type ServerRegistry interface {
	Get(ctx context.Context, serverID string) (registry.Server, error)
	List(ctx context.Context) ([]registry.Server, error)
	Create(ctx context.Context, server registry.Server) error
	Update(ctx context.Context, server registry.Server) error
	Delete(ctx context.Context, serverID string) error
}

// CompletionHub delivers completion messages to long-poll waiters.
type CompletionHub interface {
	Subscribe(state string) (<-chan relay.Message, func())
	Origin() string
}

// Services bundles the business-layer dependencies of the HTTP API.
type Services struct {
	Flow     FlowManager
	Registry ServerRegistry
	Hub      CompletionHub
}

type api struct {
	cfg    *config.Config
	broker Services
}

func newAPI(cfg *config.Config, broker Services) *api {
	return &api{cfg: cfg, broker: broker}
}

type authorizeRequest struct {
	ServerID  string   `json:"server_id"`
	Scopes    []string `json:"scopes,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	ReturnURL string   `json:"return_url,omitempty"`
}

type popupGeometry struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type authorizeResponse struct {
	AuthURL        string         `json:"auth_url"`
	State          string         `json:"state"`
	Mode           string         `json:"mode"`
	RequiredScopes []string       `json:"required_scopes,omitempty"`
	Popup          *popupGeometry `json:"popup,omitempty"`
}

// apiOpener resolves the presentation choice for an API client: the
// browser does the actual window work, the broker only reports which
// path it committed to.
type apiOpener struct {
	mode flow.Mode
}

func (o *apiOpener) OpenPopup(_ context.Context, _ string) (bool, error) {
	o.mode = flow.ModePopup
	return true, nil
}

func (o *apiOpener) Navigate(_ context.Context, _ string) error {
	o.mode = flow.ModeRedirect
	return nil
}

func (a *api) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request body: %w", err))
		return
	}

	opener := &apiOpener{}
	started, err := a.broker.Flow.StartAuthorization(r.Context(), flow.StartRequest{
		ServerID:  req.ServerID,
		Scopes:    req.Scopes,
		Mode:      flow.Mode(req.Mode),
		ReturnURL: req.ReturnURL,
	}, opener)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}

	resp := authorizeResponse{
		AuthURL:        started.AuthURL,
		State:          started.State,
		Mode:           string(opener.mode),
		RequiredScopes: started.RequiredScopes,
	}
	if opener.mode == flow.ModePopup {
		resp.Popup = &popupGeometry{Width: flow.PopupWidth, Height: flow.PopupHeight}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Provider redirects carry no Origin header; the console origin is
	// the only window the hub delivers to anyway.
	callbackOrigin, err := origin.OriginFromContext(ctx)
	if err != nil || callbackOrigin == "" {
		callbackOrigin = a.broker.Hub.Origin()
	}

	q := r.URL.Query()
	completion, err := a.broker.Flow.HandleCallback(ctx, flow.Callback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		Origin:           callbackOrigin,
	})
	if err != nil {
		slogctx.Error(ctx, "Callback failed", "error", err)
		renderCallbackError(w, statusFromError(err), err)
		return
	}

	returnURL := completion.ReturnURL
	if returnURL == "" {
		returnURL = "/servers/" + completion.ServerID
	}

	if completion.Partition == pending.PartitionShared {
		renderCloseWindow(w, returnURL)
		return
	}

	http.Redirect(w, r, returnURL, http.StatusFound)
}

func (a *api) handleWait(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: state", serviceerr.ErrMissingParameters))
		return
	}

	timeout := defaultWaitTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parsing timeout: %w", err))
			return
		}
		timeout = min(parsed, maxWaitTimeout)
	}

	ch, cancel := a.broker.Hub.Subscribe(state)
	defer cancel()

	select {
	case msg := <-ch:
		writeJSON(w, http.StatusOK, msg)
	case <-time.After(timeout):
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}

type apiServer struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	AuthorizeURL  string   `json:"authorize_url,omitempty"`
	TokenURL      string   `json:"token_url,omitempty"`
	ClientID      string   `json:"client_id,omitempty"`
	RedirectURI   string   `json:"redirect_uri,omitempty"`
	DefaultScopes []string `json:"default_scopes,omitempty"`
	Disabled      bool     `json:"disabled,omitempty"`
}

func toAPIServer(server registry.Server) apiServer {
	return apiServer{
		ID:            server.ID,
		Name:          server.Name,
		AuthorizeURL:  server.AuthorizeURL,
		TokenURL:      server.TokenURL,
		ClientID:      server.ClientID,
		RedirectURI:   server.RedirectURI,
		DefaultScopes: server.DefaultScopes,
		Disabled:      server.Disabled,
	}
}

func (s apiServer) toRegistry() registry.Server {
	return registry.Server{
		ID:            s.ID,
		Name:          s.Name,
		AuthorizeURL:  s.AuthorizeURL,
		TokenURL:      s.TokenURL,
		ClientID:      s.ClientID,
		RedirectURI:   s.RedirectURI,
		DefaultScopes: s.DefaultScopes,
		Disabled:      s.Disabled,
	}
}

func (a *api) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := a.broker.Registry.List(r.Context())
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}

	out := make([]apiServer, 0, len(servers))
	for _, server := range servers {
		out = append(out, toAPIServer(server))
	}

	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleGetServer(w http.ResponseWriter, r *http.Request) {
	server, err := a.broker.Registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, toAPIServer(server))
}

func (a *api) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req apiServer
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request body: %w", err))
		return
	}

	if err := a.broker.Registry.Create(r.Context(), req.toRegistry()); err != nil {
		writeError(w, statusFromError(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

func (a *api) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	var req apiServer
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request body: %w", err))
		return
	}
	req.ID = r.PathValue("id")

	if err := a.broker.Registry.Update(r.Context(), req.toRegistry()); err != nil {
		writeError(w, statusFromError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (a *api) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	if err := a.broker.Registry.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFromError(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, serviceerr.ErrMissingParameters),
		errors.Is(err, serviceerr.ErrProviderDenied):
		return http.StatusBadRequest
	case errors.Is(err, serviceerr.ErrNotFound),
		errors.Is(err, serviceerr.ErrStateNotFound):
		return http.StatusNotFound
	case errors.Is(err, serviceerr.ErrStateExpired):
		return http.StatusGone
	case errors.Is(err, serviceerr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, serviceerr.ErrServerDisabled):
		return http.StatusForbidden
	case errors.Is(err, serviceerr.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, serviceerr.ErrInitiateFailed),
		errors.Is(err, serviceerr.ErrExchangeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// closeWindowTemplate notifies the opener window and closes the popup.
// When there is no opener, for example after a blocked-popup redirect
// fallback, it navigates back to the console instead.
var closeWindowTemplate = template.Must(template.New("close").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorization complete</title></head>
<body>
<p>Authorization complete. You can close this window.</p>
<script>
if (window.opener) {
	window.close();
} else {
	window.location.replace({{.ReturnURL}});
}
</script>
</body>
</html>
`))

var callbackErrorTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorization failed</title></head>
<body>
<p>Authorization failed: {{.Message}}</p>
<p>You can close this window and retry from the console.</p>
</body>
</html>
`))

func renderCloseWindow(w http.ResponseWriter, returnURL string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = closeWindowTemplate.Execute(w, struct{ ReturnURL string }{ReturnURL: returnURL})
}

func renderCallbackError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackErrorTemplate.Execute(w, struct{ Message string }{Message: err.Error()})
}
