package registry

import (
	"context"
	"fmt"

	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

type Service struct {
	repository ServerRepository
}

func NewService(repo ServerRepository) *Service {
	return &Service{
		repository: repo,
	}
}

func (s *Service) Get(ctx context.Context, serverID string) (Server, error) {
	server, err := s.repository.Get(ctx, serverID)
	if err != nil {
		return Server{}, fmt.Errorf("getting server by ID: %w", err)
	}

	return server, nil
}

// GetEnabled is Get with the disabled flag enforced. Authorization
// flows use this so a disabled server cannot be connected.
func (s *Service) GetEnabled(ctx context.Context, serverID string) (Server, error) {
	server, err := s.Get(ctx, serverID)
	if err != nil {
		return Server{}, err
	}

	if server.Disabled {
		return Server{}, serviceerr.ErrServerDisabled
	}

	return server, nil
}

func (s *Service) List(ctx context.Context) ([]Server, error) {
	servers, err := s.repository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}

	return servers, nil
}

func (s *Service) Create(ctx context.Context, server Server) error {
	if server.ID == "" {
		return fmt.Errorf("%w: server ID", serviceerr.ErrMissingParameters)
	}

	err := s.repository.Create(ctx, server)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return nil
}

func (s *Service) Update(ctx context.Context, server Server) error {
	if server.ID == "" {
		return fmt.Errorf("%w: server ID", serviceerr.ErrMissingParameters)
	}

	err := s.repository.Update(ctx, server)
	if err != nil {
		return fmt.Errorf("updating server: %w", err)
	}

	return nil
}

func (s *Service) Delete(ctx context.Context, serverID string) error {
	err := s.repository.Delete(ctx, serverID)
	if err != nil {
		return fmt.Errorf("deleting server: %w", err)
	}

	return nil
}
