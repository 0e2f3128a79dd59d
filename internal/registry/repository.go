package registry

import "context"

// ServerRepository stores the registered MCP servers.
type ServerRepository interface {
	Get(ctx context.Context, serverID string) (Server, error)
	List(ctx context.Context) ([]Server, error)
	Create(ctx context.Context, server Server) error
	Update(ctx context.Context, server Server) error
	Delete(ctx context.Context, serverID string) error
}
