package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"stylist/internal/domain"
	"stylist/internal/infra"
)

// AvatarRepositoryPG implements domain.AvatarRepository using PostgreSQL.
type AvatarRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAvatarRepository constructs a new avatar repository instance.
func NewAvatarRepository(pool *pgxpool.Pool) *AvatarRepositoryPG {
	return &AvatarRepositoryPG{pool: pool}
}

// Load returns the avatar ledger state for the user, or domain.ErrNotFound
// when the user has no avatar yet.
func (r *AvatarRepositoryPG) Load(ctx context.Context, userID string) (*domain.AvatarState, error) {
	row := r.pool.QueryRow(ctx, `
SELECT user_id, original_ref, current_ref, change_count, max_changes, reset_required, updated_at
FROM avatars
WHERE user_id = $1;
`, userID)

	var state domain.AvatarState
	if err := row.Scan(
		&state.UserID,
		&state.OriginalRef,
		&state.CurrentRef,
		&state.ChangeCount,
		&state.MaxChanges,
		&state.ResetRequired,
		&state.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

// Save upserts the avatar ledger state. Last write wins.
func (r *AvatarRepositoryPG) Save(ctx context.Context, state *domain.AvatarState) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO avatars (user_id, original_ref, current_ref, change_count, max_changes, reset_required, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
	original_ref = EXCLUDED.original_ref,
	current_ref = EXCLUDED.current_ref,
	change_count = EXCLUDED.change_count,
	max_changes = EXCLUDED.max_changes,
	reset_required = EXCLUDED.reset_required,
	updated_at = EXCLUDED.updated_at;
`, state.UserID, state.OriginalRef, state.CurrentRef, state.ChangeCount, state.MaxChanges, state.ResetRequired, state.UpdatedAt)
	return err
}

var _ domain.AvatarRepository = (*AvatarRepositoryPG)(nil)
