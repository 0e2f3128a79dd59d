package registry_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpconsole/oauth-broker/internal/registry"
	registrymock "github.com/mcpconsole/oauth-broker/internal/registry/mock"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

func githubServer() registry.Server {
	return registry.Server{
		ID:            "github-mcp",
		Name:          "GitHub MCP",
		AuthorizeURL:  "https://github.com/login/oauth/authorize",
		TokenURL:      "https://github.com/login/oauth/access_token",
		ClientID:      "iv1.client",
		DefaultScopes: []string{"repo", "read:org"},
	}
}

func TestService_GetEnabled(t *testing.T) {
	ctx := t.Context()

	t.Run("returns an enabled server", func(t *testing.T) {
		subj := registry.NewService(registrymock.NewRepository(registrymock.WithServer(githubServer())))

		server, err := subj.GetEnabled(ctx, "github-mcp")
		require.NoError(t, err)
		assert.Equal(t, "GitHub MCP", server.Name)
	})

	t.Run("rejects a disabled server", func(t *testing.T) {
		disabled := githubServer()
		disabled.Disabled = true
		subj := registry.NewService(registrymock.NewRepository(registrymock.WithServer(disabled)))

		_, err := subj.GetEnabled(ctx, "github-mcp")
		assert.ErrorIs(t, err, serviceerr.ErrServerDisabled)
	})

	t.Run("propagates not found", func(t *testing.T) {
		subj := registry.NewService(registrymock.NewRepository())

		_, err := subj.GetEnabled(ctx, "unknown")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})
}

func TestService_CRUD(t *testing.T) {
	ctx := t.Context()

	t.Run("create then list", func(t *testing.T) {
		subj := registry.NewService(registrymock.NewRepository())

		require.NoError(t, subj.Create(ctx, githubServer()))
		require.NoError(t, subj.Create(ctx, registry.Server{ID: "asana-mcp", Name: "Asana MCP"}))

		servers, err := subj.List(ctx)
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, "asana-mcp", servers[0].ID)
		assert.Equal(t, "github-mcp", servers[1].ID)
	})

	t.Run("create rejects an empty ID", func(t *testing.T) {
		subj := registry.NewService(registrymock.NewRepository())

		err := subj.Create(ctx, registry.Server{Name: "nameless"})
		assert.ErrorIs(t, err, serviceerr.ErrMissingParameters)
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		subj := registry.NewService(registrymock.NewRepository(registrymock.WithServer(githubServer())))

		err := subj.Create(ctx, githubServer())
		assert.ErrorIs(t, err, serviceerr.ErrConflict)
	})

	t.Run("update a missing server", func(t *testing.T) {
		subj := registry.NewService(registrymock.NewRepository())

		err := subj.Update(ctx, githubServer())
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		subj := registry.NewService(registrymock.NewRepository(registrymock.WithServer(githubServer())))

		require.NoError(t, subj.Delete(ctx, "github-mcp"))
		assert.ErrorIs(t, subj.Delete(ctx, "github-mcp"), serviceerr.ErrNotFound)
	})

	t.Run("repository failures are wrapped", func(t *testing.T) {
		errBoom := errors.New("boom")
		subj := registry.NewService(registrymock.NewRepository(registrymock.WithListError(errBoom)))

		_, err := subj.List(ctx)
		assert.ErrorIs(t, err, errBoom)
	})
}

func TestService_Seed(t *testing.T) {
	ctx := t.Context()

	seedPath := filepath.Join("testdata", "servers.yaml")

	t.Run("registers declared servers", func(t *testing.T) {
		subj := registry.NewService(registrymock.NewRepository())

		require.NoError(t, subj.Seed(ctx, seedPath))

		server, err := subj.Get(ctx, "github-mcp")
		require.NoError(t, err)
		assert.Equal(t, "GitHub MCP", server.Name)
		assert.Equal(t, []string{"repo", "read:org"}, server.DefaultScopes)

		server, err = subj.Get(ctx, "notion-mcp")
		require.NoError(t, err)
		assert.True(t, server.Disabled)
	})

	t.Run("re-applying updates in place", func(t *testing.T) {
		stale := githubServer()
		stale.Name = "Old name"
		subj := registry.NewService(registrymock.NewRepository(registrymock.WithServer(stale)))

		require.NoError(t, subj.Seed(ctx, seedPath))

		server, err := subj.Get(ctx, "github-mcp")
		require.NoError(t, err)
		assert.Equal(t, "GitHub MCP", server.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		subj := registry.NewService(registrymock.NewRepository())

		err := subj.Seed(ctx, filepath.Join("testdata", "does-not-exist.yaml"))
		assert.Error(t, err)
	})
}
