package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"stylist/internal/domain"
	"stylist/internal/providers/synthesis"
	"stylist/internal/providers/tryon"
	"stylist/internal/retry"
)

func fastStagePolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Growth: 1}
}

// okChecker accepts every reference.
type okChecker struct{}

func (okChecker) Check(context.Context, string) error { return nil }

// errChecker rejects references listed in bad.
type errChecker struct {
	bad map[string]error
}

func (c errChecker) Check(_ context.Context, ref string) error {
	return c.bad[ref]
}

// fakeGenerator replays a scripted sequence of results, one per call.
type fakeGenerator struct {
	mu      sync.Mutex
	scripts []func() ([]synthesis.Image, error)
	calls   int
}

func (g *fakeGenerator) Generate(context.Context, synthesis.Request) ([]synthesis.Image, error) {
	g.mu.Lock()
	idx := g.calls
	g.calls++
	if idx >= len(g.scripts) {
		idx = len(g.scripts) - 1
	}
	script := g.scripts[idx]
	g.mu.Unlock()
	// Run outside the lock so a blocking script does not stall other callers.
	return script()
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func generatorReturning(url string) *fakeGenerator {
	return &fakeGenerator{scripts: []func() ([]synthesis.Image, error){
		func() ([]synthesis.Image, error) { return []synthesis.Image{{URL: url}}, nil },
	}}
}

// fakeCompositor replays a scripted sequence of results, one per call.
type fakeCompositor struct {
	mu      sync.Mutex
	name    string
	scripts []func() (*tryon.Image, error)
	calls   int
	lastReq tryon.Request
}

func (c *fakeCompositor) Composite(_ context.Context, req tryon.Request) (*tryon.Image, error) {
	c.mu.Lock()
	c.lastReq = req
	idx := c.calls
	c.calls++
	if idx >= len(c.scripts) {
		idx = len(c.scripts) - 1
	}
	script := c.scripts[idx]
	c.mu.Unlock()
	return script()
}

func (c *fakeCompositor) Model() string { return c.name }

func (c *fakeCompositor) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeCompositor) lastRequest() tryon.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReq
}

func compositorReturning(name, url string) *fakeCompositor {
	return &fakeCompositor{name: name, scripts: []func() (*tryon.Image, error){
		func() (*tryon.Image, error) { return &tryon.Image{URL: url}, nil },
	}}
}

func compositorFailing(name string, err error) *fakeCompositor {
	return &fakeCompositor{name: name, scripts: []func() (*tryon.Image, error){
		func() (*tryon.Image, error) { return nil, err },
	}}
}

// memAvatarRepo is an in-memory domain.AvatarRepository.
type memAvatarRepo struct {
	mu      sync.Mutex
	states  map[string]*domain.AvatarState
	saveErr error
	saves   int
}

func newMemAvatarRepo(states ...*domain.AvatarState) *memAvatarRepo {
	repo := &memAvatarRepo{states: make(map[string]*domain.AvatarState)}
	for _, s := range states {
		repo.states[s.UserID] = s.Clone()
	}
	return repo
}

func (r *memAvatarRepo) Load(_ context.Context, userID string) (*domain.AvatarState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return state.Clone(), nil
}

func (r *memAvatarRepo) Save(_ context.Context, state *domain.AvatarState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.states[state.UserID] = state.Clone()
	return nil
}

type memGarmentRepo struct {
	mu     sync.Mutex
	assets []*domain.GarmentAsset
}

func (r *memGarmentRepo) Save(_ context.Context, _ string, asset *domain.GarmentAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets = append(r.assets, asset)
	return nil
}

type memCompositeRepo struct {
	mu      sync.Mutex
	results []*domain.CompositeResult
}

func (r *memCompositeRepo) Save(_ context.Context, _ string, result *domain.CompositeResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func (r *memCompositeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func testAvatar(userID string, maxChanges int) *domain.AvatarState {
	return &domain.AvatarState{
		UserID:      userID,
		OriginalRef: "https://cdn.example.com/avatars/" + userID + ".png",
		CurrentRef:  "https://cdn.example.com/avatars/" + userID + ".png",
		MaxChanges:  maxChanges,
	}
}

// waitForStep polls the session until it reaches the wanted step or times out.
func waitForStep(t *testing.T, sess *Session, want domain.Step) Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap := sess.Snapshot()
		if snap.Step == want {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("session never reached step %q, last = %q", want, sess.Snapshot().Step)
	return Snapshot{}
}
