package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"stylist/internal/domain"
)

// GarmentRepositoryPG implements domain.GarmentRepository using PostgreSQL.
type GarmentRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGarmentRepository constructs a new garment repository instance.
func NewGarmentRepository(pool *pgxpool.Pool) *GarmentRepositoryPG {
	return &GarmentRepositoryPG{pool: pool}
}

// Save persists a confirmed garment asset.
func (r *GarmentRepositoryPG) Save(ctx context.Context, userID string, asset *domain.GarmentAsset) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO garments (id, user_id, image_url, category, label, prompt_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`, asset.ID, userID, asset.ImageRef, string(asset.Category), asset.Label, asset.PromptUsed, asset.CreatedAt)
	return err
}

var _ domain.GarmentRepository = (*GarmentRepositoryPG)(nil)
