package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"stylist/internal/domain"
)

// CompositeRepositoryPG implements domain.CompositeRepository using PostgreSQL.
type CompositeRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCompositeRepository constructs a new composite repository instance.
func NewCompositeRepository(pool *pgxpool.Pool) *CompositeRepositoryPG {
	return &CompositeRepositoryPG{pool: pool}
}

// Save persists a completed try-on composite.
func (r *CompositeRepositoryPG) Save(ctx context.Context, userID string, result *domain.CompositeResult) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO composites (id, user_id, image_url, provider_used, risk_level, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`, result.ID, userID, result.ImageRef, string(result.ProviderUsed), string(result.RiskLevel), result.CreatedAt)
	return err
}

var _ domain.CompositeRepository = (*CompositeRepositoryPG)(nil)
