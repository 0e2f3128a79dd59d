package gateway

import "time"

// InitiateRequest starts an authorization attempt on the gateway. The
// URL, client and redirect overrides are optional; the gateway falls
// back to the values recorded with the server registration. State is a
// client-proposed correlation nonce; the gateway may replace it with
// its own in the response.
type InitiateRequest struct {
	ServerID            string   `json:"server_id"`
	Scopes              []string `json:"scopes"`
	State               string   `json:"state,omitempty"`
	CodeChallenge       string   `json:"code_challenge"`
	CodeChallengeMethod string   `json:"code_challenge_method"`
	AuthorizeURL        string   `json:"authorize_url,omitempty"`
	TokenURL            string   `json:"token_url,omitempty"`
	ClientID            string   `json:"client_id,omitempty"`
	RedirectURI         string   `json:"redirect_uri,omitempty"`
}

type InitiateResponse struct {
	AuthURL        string   `json:"auth_url"`
	State          string   `json:"state"`
	RequiredScopes []string `json:"required_scopes"`
}

// ExchangeRequest redeems an authorization code. The code verifier is
// transmitted here and nowhere else.
type ExchangeRequest struct {
	Code         string `json:"code"`
	State        string `json:"state"`
	ServerID     string `json:"server_id"`
	CodeVerifier string `json:"code_verifier"`
}

type Status string

const (
	StatusConnected Status = "connected"
	StatusPending   Status = "pending"
	StatusError     Status = "error"
)

// ExchangeResult carries an opaque credential handle, never the raw
// token itself.
type ExchangeResult struct {
	CredentialKey string     `json:"credential_key"`
	Scope         []string   `json:"scope"`
	Status        Status     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
