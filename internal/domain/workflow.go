package domain

import "time"

// Step identifies where a try-on workflow currently is in its lifecycle.
type Step string

const (
	StepIdle        Step = "idle"
	StepGenerating  Step = "generating"
	StepPreview     Step = "preview"
	StepConfirming  Step = "confirming"
	StepCompositing Step = "compositing"
	StepComplete    Step = "complete"
	StepError       Step = "error"
)

// WorkflowState is the single in-flight orchestration record for a user
// session. It is mutated in place by the workflow session as stages complete
// and is not persisted; a process restart loses in-flight progress.
type WorkflowState struct {
	Step      Step
	Progress  int
	Message   string
	Garment   *GarmentAsset
	Composite *CompositeResult
}

// AttemptOutcome classifies a single provider call.
type AttemptOutcome string

const (
	AttemptSuccess        AttemptOutcome = "success"
	AttemptTransientError AttemptOutcome = "transient_error"
	AttemptFatalError     AttemptOutcome = "fatal_error"
)

// ProviderAttempt records one provider call for retry decisions and
// diagnostics. It is never persisted.
type ProviderAttempt struct {
	Provider    string
	Timestamp   time.Time
	Outcome     AttemptOutcome
	ErrorDetail string
}
