package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stylist/internal/domain"
)

const defaultWarnFraction = 0.8

// Ledger tracks how many composites have been applied to each avatar since it
// was last reset to its pristine original. Repeated image-to-image edits
// accumulate visual drift; the ledger bounds the chain length and surfaces
// when a reset is due.
//
// Read-modify-write on a single avatar is serialized through a per-avatar
// lock so concurrent workflow runs cannot lose updates; different avatars are
// fully independent.
type Ledger struct {
	repo         domain.AvatarRepository
	warnFraction float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedger(repo domain.AvatarRepository, warnFraction float64) *Ledger {
	if warnFraction <= 0 || warnFraction > 1 {
		warnFraction = defaultWarnFraction
	}
	return &Ledger{
		repo:         repo,
		warnFraction: warnFraction,
		locks:        make(map[string]*sync.Mutex),
	}
}

// RecordComposite points the avatar at the new composite and increments the
// change count. Once the count reaches the configured maximum the returned
// state carries ResetRequired; enforcing the reset is the caller's decision.
func (l *Ledger) RecordComposite(ctx context.Context, avatar *domain.AvatarState, result *domain.CompositeResult) (*domain.AvatarState, error) {
	lock := l.lockFor(avatar.UserID)
	lock.Lock()
	defer lock.Unlock()

	updated := avatar.Clone()
	updated.CurrentRef = result.ImageRef
	updated.ChangeCount++
	updated.ResetRequired = updated.ChangeCount >= updated.MaxChanges
	updated.UpdatedAt = time.Now().UTC()

	if err := l.save(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Reset restores the avatar to its pristine original.
func (l *Ledger) Reset(ctx context.Context, avatar *domain.AvatarState) (*domain.AvatarState, error) {
	lock := l.lockFor(avatar.UserID)
	lock.Lock()
	defer lock.Unlock()

	updated := avatar.Clone()
	updated.CurrentRef = updated.OriginalRef
	updated.ChangeCount = 0
	updated.ResetRequired = false
	updated.UpdatedAt = time.Now().UTC()

	if err := l.save(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// NeedsResetWarning is true once the change count reaches the warning
// fraction of the maximum, giving the user notice before the hard threshold.
func (l *Ledger) NeedsResetWarning(avatar *domain.AvatarState) bool {
	if avatar == nil || avatar.MaxChanges <= 0 {
		return false
	}
	return float64(avatar.ChangeCount) >= l.warnFraction*float64(avatar.MaxChanges)
}

func (l *Ledger) save(ctx context.Context, state *domain.AvatarState) error {
	if l.repo == nil {
		return nil
	}
	if err := l.repo.Save(ctx, state); err != nil {
		return fmt.Errorf("save avatar state: %w", err)
	}
	return nil
}

func (l *Ledger) lockFor(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}
