package registry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

type seedFile struct {
	Servers []seedServer `yaml:"servers"`
}

type seedServer struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	AuthorizeURL  string   `yaml:"authorizeUrl"`
	TokenURL      string   `yaml:"tokenUrl"`
	ClientID      string   `yaml:"clientId"`
	RedirectURI   string   `yaml:"redirectUri"`
	DefaultScopes []string `yaml:"defaultScopes"`
	Disabled      bool     `yaml:"disabled"`
}

// Seed registers the servers declared in a YAML file. Entries that
// already exist are updated in place, so the file can be re-applied on
// every start.
func (s *Service) Seed(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("unmarshalling seed file: %w", err)
	}

	for _, entry := range file.Servers {
		server := Server{
			ID:            entry.ID,
			Name:          entry.Name,
			AuthorizeURL:  entry.AuthorizeURL,
			TokenURL:      entry.TokenURL,
			ClientID:      entry.ClientID,
			RedirectURI:   entry.RedirectURI,
			DefaultScopes: entry.DefaultScopes,
			Disabled:      entry.Disabled,
		}

		err := s.Create(ctx, server)
		if errors.Is(err, serviceerr.ErrConflict) {
			err = s.Update(ctx, server)
		}
		if err != nil {
			return fmt.Errorf("seeding server %q: %w", entry.ID, err)
		}
	}

	return nil
}
