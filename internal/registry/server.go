package registry

// Server holds the OAuth connection settings for a single registered
// MCP server. AuthorizeURL, TokenURL, ClientID and RedirectURI are
// optional overrides; when empty the gateway resolves them from the
// server's protected-resource metadata.
type Server struct {
	ID            string
	Name          string
	AuthorizeURL  string
	TokenURL      string
	ClientID      string
	RedirectURI   string
	DefaultScopes []string
	Disabled      bool
}
