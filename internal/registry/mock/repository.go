package registrymock

import (
	"context"
	"sort"
	"sync"

	"github.com/mcpconsole/oauth-broker/internal/registry"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

// Repository is an in-memory ServerRepository for tests.
type Repository struct {
	mu      sync.Mutex
	servers map[string]registry.Server

	getErr, listErr, createErr, updateErr, deleteErr error
}

type Option func(*Repository)

func WithServer(server registry.Server) Option {
	return func(r *Repository) {
		r.servers[server.ID] = server
	}
}

func WithGetError(err error) Option {
	return func(r *Repository) { r.getErr = err }
}

func WithListError(err error) Option {
	return func(r *Repository) { r.listErr = err }
}

func WithCreateError(err error) Option {
	return func(r *Repository) { r.createErr = err }
}

func WithUpdateError(err error) Option {
	return func(r *Repository) { r.updateErr = err }
}

func WithDeleteError(err error) Option {
	return func(r *Repository) { r.deleteErr = err }
}

func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		servers: make(map[string]registry.Server),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Repository) Get(_ context.Context, serverID string) (registry.Server, error) {
	if r.getErr != nil {
		return registry.Server{}, r.getErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	server, ok := r.servers[serverID]
	if !ok {
		return registry.Server{}, serviceerr.ErrNotFound
	}

	return server, nil
}

func (r *Repository) List(_ context.Context) ([]registry.Server, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	servers := make([]registry.Server, 0, len(r.servers))
	for _, server := range r.servers {
		servers = append(servers, server)
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].ID < servers[j].ID })

	return servers, nil
}

func (r *Repository) Create(_ context.Context, server registry.Server) error {
	if r.createErr != nil {
		return r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.servers[server.ID]; ok {
		return serviceerr.ErrConflict
	}

	r.servers[server.ID] = server

	return nil
}

func (r *Repository) Update(_ context.Context, server registry.Server) error {
	if r.updateErr != nil {
		return r.updateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.servers[server.ID]; !ok {
		return serviceerr.ErrNotFound
	}

	r.servers[server.ID] = server

	return nil
}

func (r *Repository) Delete(_ context.Context, serverID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.servers[serverID]; !ok {
		return serviceerr.ErrNotFound
	}

	delete(r.servers, serverID)

	return nil
}
