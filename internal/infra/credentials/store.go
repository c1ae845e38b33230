// Package credentials resolves provider API keys from the integration_tokens
// table when they are not supplied through the environment.
package credentials

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stylist/internal/infra"
)

// Provider slugs stored in integration_tokens.
const (
	ProviderPrompt    = "prompt"
	ProviderSynthesis = "synthesis"
	ProviderTryOn     = "tryon"
)

// Executor is the subset of pgxpool.Pool the store needs.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

type Store struct {
	db Executor
}

func NewStore(db Executor) *Store {
	return &Store{db: db}
}

// Token returns the stored API key for the provider, or "" when none is
// configured.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.db.QueryRow(ctx, `
SELECT token FROM integration_tokens WHERE provider = $1;
`, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores or replaces the API key for the provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO integration_tokens (provider, token, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (provider) DO UPDATE SET token = EXCLUDED.token, updated_at = now();
`, provider, token)
	return err
}
