package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stylist/internal/domain"
)

const defaultMaxAvatarChanges = 5

// ManagerConfig wires the shared stage instances and repositories.
type ManagerConfig struct {
	Synthesis   *SynthesisStage
	Compositing *CompositingStage
	Ledger      *Ledger
	Avatars     domain.AvatarRepository
	Garments    domain.GarmentRepository
	Composites  domain.CompositeRepository
	Checker     RefChecker
	MaxChanges  int
	Logger      zerolog.Logger
}

// Manager hands out exactly one workflow session per user. The stages are
// stateless and shared; all per-user state lives in the session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	synthesis   *SynthesisStage
	compositing *CompositingStage
	ledger      *Ledger
	avatars     domain.AvatarRepository
	garments    domain.GarmentRepository
	composites  domain.CompositeRepository
	checker     RefChecker
	maxChanges  int
	logger      zerolog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	maxChanges := cfg.MaxChanges
	if maxChanges < 1 {
		maxChanges = defaultMaxAvatarChanges
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		synthesis:   cfg.Synthesis,
		compositing: cfg.Compositing,
		ledger:      cfg.Ledger,
		avatars:     cfg.Avatars,
		garments:    cfg.Garments,
		composites:  cfg.Composites,
		checker:     cfg.Checker,
		maxChanges:  maxChanges,
		logger:      cfg.Logger,
	}
}

// Session returns the user's workflow session, creating it on first use. The
// user must already have an avatar; the avatar pipeline that creates one is a
// separate surface.
func (m *Manager) Session(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	avatar, err := m.avatars.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load avatar for %s: %w", userID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have raced us here; keep the first session.
	if sess, ok := m.sessions[userID]; ok {
		return sess, nil
	}
	sess := &Session{
		userID:      userID,
		state:       domain.WorkflowState{Step: domain.StepIdle},
		avatar:      avatar,
		synthesis:   m.synthesis,
		compositing: m.compositing,
		ledger:      m.ledger,
		garments:    m.garments,
		composites:  m.composites,
		logger:      m.logger.With().Str("user_id", userID).Logger(),
	}
	m.sessions[userID] = sess
	return sess, nil
}

// RegisterAvatar stores a new pristine avatar for the user, replacing any
// previous one. An existing session is rebased onto the new avatar and its
// in-flight work is discarded.
func (m *Manager) RegisterAvatar(ctx context.Context, userID, imageURL string) (*domain.AvatarState, error) {
	if m.checker != nil {
		if err := m.checker.Check(ctx, imageURL); err != nil {
			return nil, domain.NewValidationError("avatar image failed validation", err)
		}
	}

	state := &domain.AvatarState{
		UserID:      userID,
		OriginalRef: imageURL,
		CurrentRef:  imageURL,
		MaxChanges:  m.maxChanges,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := m.avatars.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save avatar for %s: %w", userID, err)
	}

	m.mu.Lock()
	sess, ok := m.sessions[userID]
	m.mu.Unlock()
	if ok {
		sess.rebase(state)
	}
	return state.Clone(), nil
}
