package registrysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcpconsole/oauth-broker/internal/registry"
	"github.com/mcpconsole/oauth-broker/internal/serviceerr"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Get(ctx context.Context, serverID string) (registry.Server, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return registry.Server{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var server registry.Server
	if err := tx.QueryRow(ctx,
		`SELECT id, name, authorize_url, token_url, client_id, redirect_uri, default_scopes, disabled
FROM mcp_servers
WHERE id = $1;`,
		serverID,
	).Scan(&server.ID, &server.Name, &server.AuthorizeURL, &server.TokenURL,
		&server.ClientID, &server.RedirectURI, &server.DefaultScopes, &server.Disabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registry.Server{}, serviceerr.ErrNotFound
		}

		return registry.Server{}, fmt.Errorf("selecting from mcp_servers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return registry.Server{}, fmt.Errorf("committing tx: %w", err)
	}

	return server, nil
}

func (r *Repository) List(ctx context.Context) ([]registry.Server, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, name, authorize_url, token_url, client_id, redirect_uri, default_scopes, disabled
FROM mcp_servers
ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("selecting from mcp_servers: %w", err)
	}

	servers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (registry.Server, error) {
		var server registry.Server
		err := row.Scan(&server.ID, &server.Name, &server.AuthorizeURL, &server.TokenURL,
			&server.ClientID, &server.RedirectURI, &server.DefaultScopes, &server.Disabled)
		return server, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing tx: %w", err)
	}

	return servers, nil
}

func (r *Repository) Create(ctx context.Context, server registry.Server) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The default scopes are optional, so we use COALESCE to default to an empty array if nil
	if _, err := tx.Exec(ctx,
		`INSERT INTO mcp_servers (id, name, authorize_url, token_url, client_id, redirect_uri, default_scopes, disabled)
			 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'::text[]), $8);`,
		server.ID, server.Name, server.AuthorizeURL, server.TokenURL,
		server.ClientID, server.RedirectURI, server.DefaultScopes, server.Disabled,
	); err != nil {
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into mcp_servers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r *Repository) Update(ctx context.Context, server registry.Server) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE mcp_servers
			 SET name = $1, authorize_url = $2, token_url = $3, client_id = $4, redirect_uri = $5,
				 default_scopes = COALESCE($6, '{}'::text[]), disabled = $7
			 WHERE id = $8;`,
		server.Name, server.AuthorizeURL, server.TokenURL, server.ClientID,
		server.RedirectURI, server.DefaultScopes, server.Disabled, server.ID)
	if err != nil {
		return fmt.Errorf("updating mcp_servers: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return serviceerr.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, serverID string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `DELETE FROM mcp_servers WHERE id = $1;`, serverID)
	if err != nil {
		return fmt.Errorf("deleting from mcp_servers: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return serviceerr.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}

	return nil
}
