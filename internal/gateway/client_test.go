package gateway_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpconsole/oauth-broker/internal/gateway"
)

func TestClient_Initiate(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"auth_url":        "https://provider/authorize?x=1",
			"state":           "state-123",
			"required_scopes": []string{"repo:read"},
		})
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, nil)

	resp, err := client.Initiate(t.Context(), gateway.InitiateRequest{
		ServerID:            "srv-1",
		Scopes:              []string{"repo:read", "repo:read"}, // duplicates pass through unmodified
		CodeChallenge:       "abc",
		CodeChallengeMethod: "S256",
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/oauth/start", gotPath)

	wantBody := map[string]any{
		"server_id":             "srv-1",
		"scopes":                []any{"repo:read", "repo:read"},
		"code_challenge":        "abc",
		"code_challenge_method": "S256",
	}
	if diff := cmp.Diff(wantBody, gotBody); diff != "" {
		t.Errorf("initiate request body mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "https://provider/authorize?x=1", resp.AuthURL)
	assert.Equal(t, "state-123", resp.State)
	assert.Equal(t, []string{"repo:read"}, resp.RequiredScopes)
}

func TestClient_InitiateOptionalFields(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(gateway.InitiateResponse{State: "s"})
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, nil)

	_, err := client.Initiate(t.Context(), gateway.InitiateRequest{
		ServerID:            "srv-1",
		Scopes:              []string{},
		CodeChallenge:       "abc",
		CodeChallengeMethod: "S256",
		AuthorizeURL:        "https://provider/authorize",
		TokenURL:            "https://provider/token",
		ClientID:            "client-1",
		RedirectURI:         "https://console/oauth/callback",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://provider/authorize", gotBody["authorize_url"])
	assert.Equal(t, "https://provider/token", gotBody["token_url"])
	assert.Equal(t, "client-1", gotBody["client_id"])
	assert.Equal(t, "https://console/oauth/callback", gotBody["redirect_uri"])
}

func TestClient_Exchange(t *testing.T) {
	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/oauth/exchange", r.URL.Path)

		var req gateway.ExchangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, gateway.ExchangeRequest{
			Code:         "code-abc",
			State:        "state-123",
			ServerID:     "srv-1",
			CodeVerifier: "verifier-1",
		}, req)

		_ = json.NewEncoder(w).Encode(gateway.ExchangeResult{
			CredentialKey: "cred-1",
			Scope:         []string{"repo:read"},
			Status:        gateway.StatusConnected,
			ExpiresAt:     &expiresAt,
		})
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, nil)

	result, err := client.Exchange(t.Context(), gateway.ExchangeRequest{
		Code:         "code-abc",
		State:        "state-123",
		ServerID:     "srv-1",
		CodeVerifier: "verifier-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cred-1", result.CredentialKey)
	assert.Equal(t, gateway.StatusConnected, result.Status)
	require.NotNil(t, result.ExpiresAt)
	assert.True(t, expiresAt.Equal(*result.ExpiresAt))
}

func TestClient_ErrorPassthrough(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantText string
	}{
		{
			name:     "message field",
			status:   http.StatusBadGateway,
			body:     `{"message": "upstream provider rejected the code"}`,
			wantText: "upstream provider rejected the code",
		},
		{
			name:     "error field",
			status:   http.StatusBadRequest,
			body:     `{"error": "invalid_grant"}`,
			wantText: "invalid_grant",
		},
		{
			name:     "no body",
			status:   http.StatusInternalServerError,
			body:     "",
			wantText: "gateway returned status 500",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := gateway.NewClient(srv.URL, nil)

			_, err := client.Exchange(t.Context(), gateway.ExchangeRequest{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}
