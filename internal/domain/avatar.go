package domain

import "time"

// AvatarState tracks how many generative composites have been applied to a
// user's avatar since it was last reset to its pristine original. Repeated
// image-to-image edits accumulate visual drift; bounding the chain length and
// allowing an explicit reset is the mitigation.
//
// Invariant: ChangeCount is the number of composites since the last reset,
// and CurrentRef == OriginalRef iff ChangeCount == 0.
type AvatarState struct {
	UserID        string
	OriginalRef   string
	CurrentRef    string
	ChangeCount   int
	MaxChanges    int
	ResetRequired bool
	UpdatedAt     time.Time
}

// Pristine reports whether the avatar is untouched since its last reset.
func (a *AvatarState) Pristine() bool {
	return a.ChangeCount == 0
}

// Clone returns a copy so callers can mutate without racing readers.
func (a *AvatarState) Clone() *AvatarState {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
