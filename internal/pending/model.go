// Package pending persists in-flight authorization attempts between the
// moment the consent screen is opened and the moment the provider calls
// back. Records are keyed by the gateway-issued state value and live in
// one of two partitions: the tab-local partition for same-tab redirect
// flows and the shared partition that both a popup window and its opener
// can reach.
package pending

import "time"

type Partition string

const (
	// PartitionLocal holds records for same-tab redirect flows. It is
	// process-local, so a record written here is only visible to the
	// broker instance that started the attempt.
	PartitionLocal Partition = "local"

	// PartitionShared holds records for popup flows. It is backed by
	// shared storage so the callback may land on any broker instance.
	PartitionShared Partition = "shared"
)

// KeyPrefix is the storage key namespace for pending authorizations.
const KeyPrefix = "oauth:pkce:"

// Key returns the storage key for a state value.
func Key(state string) string {
	return KeyPrefix + state
}

// Record is one in-flight authorization attempt.
type Record struct {
	State        string    `json:"state"`          // correlation key, issued by the gateway
	CodeVerifier string    `json:"code_verifier"`  // PKCE secret, sent only to the exchange endpoint
	ServerID     string    `json:"server_id"`      // target MCP server registration
	Scopes       []string  `json:"scopes,omitempty"`
	ReturnURL    string    `json:"return_url,omitempty"` // navigation target after a same-tab flow
	CreatedAt    time.Time `json:"created_at"`
}

// ExpiresAt returns the instant after which the record is stale.
func (r Record) ExpiresAt(ttl time.Duration) time.Time {
	return r.CreatedAt.Add(ttl)
}
