package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"stylist/internal/domain"
)

// Progress checkpoints per step. Progress is monotonically non-decreasing
// within a run and resets only on restart.
const (
	progressIdle        = 0
	progressGenerating  = 10
	progressPreview     = 50
	progressConfirming  = 60
	progressCompositing = 75
	progressComplete    = 100
)

// Snapshot is the immutable view handed to the UI layer after every
// transition.
type Snapshot struct {
	Step             domain.Step
	Progress         int
	Message          string
	Garment          *domain.GarmentAsset
	Composite        *domain.CompositeResult
	ResetRequired    bool
	ResetSuggested   bool
	AvatarChanges    int
	AvatarMaxChanges int
}

// Session is the workflow state machine for one user: idle → generating →
// preview → confirming → compositing → complete, with error reachable from
// the two generative steps and idle reachable from anywhere via restart.
//
// Stages run in a goroutine per run. Every run carries a generation stamp;
// restart bumps the stamp, so a late-arriving result from a discarded run is
// recognized as stale and never applied to the newer state.
type Session struct {
	userID string

	mu     sync.Mutex
	run    uint64
	state  domain.WorkflowState
	avatar *domain.AvatarState

	synthesis   *SynthesisStage
	compositing *CompositingStage
	ledger      *Ledger
	garments    domain.GarmentRepository
	composites  domain.CompositeRepository
	logger      zerolog.Logger
}

// Start begins a new generation run. Allowed only from idle; every other step
// needs an explicit restart first.
func (s *Session) Start(ctx context.Context, userText, style string) (Snapshot, error) {
	if strings.TrimSpace(userText) == "" {
		return Snapshot{}, domain.NewValidationError("garment description is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step != domain.StepIdle {
		return Snapshot{}, &domain.StateError{Step: s.state.Step, Trigger: "start"}
	}

	s.run++
	stamp := s.run
	s.state = domain.WorkflowState{
		Step:     domain.StepGenerating,
		Progress: progressGenerating,
		Message:  "Generating your garment...",
	}

	go s.runSynthesis(context.WithoutCancel(ctx), stamp, userText, style)
	return s.snapshotLocked(), nil
}

func (s *Session) runSynthesis(ctx context.Context, stamp uint64, userText, style string) {
	asset, err := s.synthesis.Synthesize(ctx, userText, style)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != stamp {
		s.logger.Debug().Uint64("stamp", stamp).Msg("discarding stale synthesis result")
		return
	}
	if err != nil {
		s.failLocked("generating", err)
		return
	}
	s.state.Step = domain.StepPreview
	s.state.Progress = progressPreview
	s.state.Message = "Garment ready. Confirm to try it on."
	if asset.Label != "" {
		s.state.Message = asset.Label + " is ready. Confirm to try it on."
	}
	s.state.Garment = asset
}

// Confirm accepts the previewed garment and starts compositing it onto the
// avatar. The garment is handed to the persistence layer at this boundary.
func (s *Session) Confirm(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step != domain.StepPreview || s.state.Garment == nil {
		return Snapshot{}, &domain.StateError{Step: s.state.Step, Trigger: "confirm"}
	}

	stamp := s.run
	asset := s.state.Garment
	avatar := s.avatar.Clone()
	s.state.Step = domain.StepConfirming
	s.state.Progress = progressConfirming
	s.state.Message = "Preparing your try-on..."

	go s.runCompositing(context.WithoutCancel(ctx), stamp, asset, avatar)
	return s.snapshotLocked(), nil
}

func (s *Session) runCompositing(ctx context.Context, stamp uint64, asset *domain.GarmentAsset, avatar *domain.AvatarState) {
	if s.garments != nil {
		if err := s.garments.Save(ctx, s.userID, asset); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist confirmed garment")
		}
	}

	if !s.advance(stamp, domain.StepCompositing, progressCompositing, "Compositing onto your avatar...") {
		return
	}

	result, err := s.compositing.Composite(ctx, asset, avatar)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != stamp {
		s.logger.Debug().Uint64("stamp", stamp).Msg("discarding stale composite result")
		return
	}
	if err != nil {
		s.failLocked("compositing", err)
		return
	}

	updated, err := s.ledger.RecordComposite(ctx, avatar, result)
	if err != nil {
		// Durability here is last-write-wins; the composite itself succeeded,
		// so finish the run and keep the in-memory ledger state.
		s.logger.Error().Err(err).Msg("failed to persist avatar state")
		updated = avatar.Clone()
		updated.CurrentRef = result.ImageRef
		updated.ChangeCount++
		updated.ResetRequired = updated.ChangeCount >= updated.MaxChanges
	}
	s.avatar = updated

	if s.composites != nil {
		if err := s.composites.Save(ctx, s.userID, result); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist composite")
		}
	}

	s.state.Step = domain.StepComplete
	s.state.Progress = progressComplete
	s.state.Composite = result
	switch {
	case updated.ResetRequired:
		s.state.Message = "Try-on complete. Your avatar needs a reset before further edits."
	case s.ledger.NeedsResetWarning(updated):
		s.state.Message = "Try-on complete. Consider resetting your avatar soon."
	default:
		s.state.Message = "Try-on complete."
	}
}

// Reject discards the previewed garment without touching the avatar.
func (s *Session) Reject() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step != domain.StepPreview {
		return Snapshot{}, &domain.StateError{Step: s.state.Step, Trigger: "reject"}
	}
	s.resetLocked()
	return s.snapshotLocked(), nil
}

// Restart returns to idle from any step, discarding all in-flight results.
// The bumped generation stamp invalidates any outstanding provider call.
func (s *Session) Restart() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return s.snapshotLocked()
}

// Snapshot returns the current workflow view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Avatar returns a copy of the session's avatar state.
func (s *Session) Avatar() *domain.AvatarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avatar.Clone()
}

// ResetAvatar restores the avatar to its pristine original. Any in-flight run
// is abandoned first so a late composite cannot overwrite the reset state.
func (s *Session) ResetAvatar(ctx context.Context) (*domain.AvatarState, error) {
	s.mu.Lock()
	avatar := s.avatar.Clone()
	s.resetLocked()
	s.mu.Unlock()

	updated, err := s.ledger.Reset(ctx, avatar)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.avatar = updated
	s.mu.Unlock()
	return updated.Clone(), nil
}

// rebase swaps in a freshly registered avatar and discards in-flight work.
func (s *Session) rebase(avatar *domain.AvatarState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatar = avatar.Clone()
	s.resetLocked()
}

// advance applies a mid-run transition if the run is still current.
func (s *Session) advance(stamp uint64, step domain.Step, progress int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != stamp {
		return false
	}
	s.state.Step = step
	if progress > s.state.Progress {
		s.state.Progress = progress
	}
	s.state.Message = message
	return true
}

func (s *Session) resetLocked() {
	s.run++
	s.state = domain.WorkflowState{Step: domain.StepIdle, Progress: progressIdle}
}

// failLocked moves to the error step with a message that lets the UI tell
// "try again" (provider trouble) apart from "change your description"
// (validation).
func (s *Session) failLocked(stage string, err error) {
	s.state.Step = domain.StepError
	if domain.IsValidation(err) {
		s.state.Message = "The result could not be used. Try a different description. (" + err.Error() + ")"
	} else {
		s.state.Message = "The image service is having trouble. Please try again. (" + err.Error() + ")"
	}
	s.logger.Error().Err(err).Str("stage", stage).Msg("workflow failed")
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Step:     s.state.Step,
		Progress: s.state.Progress,
		Message:  s.state.Message,
	}
	if s.state.Garment != nil {
		g := *s.state.Garment
		snap.Garment = &g
	}
	if s.state.Composite != nil {
		c := *s.state.Composite
		snap.Composite = &c
	}
	if s.avatar != nil {
		snap.ResetRequired = s.avatar.ResetRequired
		snap.ResetSuggested = s.ledger.NeedsResetWarning(s.avatar)
		snap.AvatarChanges = s.avatar.ChangeCount
		snap.AvatarMaxChanges = s.avatar.MaxChanges
	}
	return snap
}
