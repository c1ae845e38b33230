package domain

import "context"

// AvatarRepository persists per-user avatar ledger state.
type AvatarRepository interface {
	Load(ctx context.Context, userID string) (*AvatarState, error)
	Save(ctx context.Context, state *AvatarState) error
}

// GarmentRepository persists confirmed garment assets.
type GarmentRepository interface {
	Save(ctx context.Context, userID string, asset *GarmentAsset) error
}

// CompositeRepository persists completed composites.
type CompositeRepository interface {
	Save(ctx context.Context, userID string, result *CompositeResult) error
}
