// Package client holds the poll-side helpers that player clients run: a
// start/stop status poller driving the reconciler, and a keystroke debouncer
// for answer submission. Both are built so tests can drive them without
// timers firing.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/powmonk/qubpiz-sub000/internal/domain"
	"github.com/powmonk/qubpiz-sub000/internal/reconcile"
)

// StatusFetcher fetches the status snapshot for a session code.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, code string) (domain.StatusSnapshot, error)
}

// StatusFetcherFunc adapts a function to StatusFetcher.
type StatusFetcherFunc func(ctx context.Context, code string) (domain.StatusSnapshot, error)

func (f StatusFetcherFunc) FetchStatus(ctx context.Context, code string) (domain.StatusSnapshot, error) {
	return f(ctx, code)
}

// StatusPoller periodically fetches a session's status snapshot and runs it
// through the reconciler. Nothing starts in the constructor; Start and Stop
// give it an explicit lifecycle, and Tick performs exactly one poll so tests
// can step it deterministically.
type StatusPoller struct {
	fetch    StatusFetcher
	interval time.Duration
	navigate func(reconcile.Decision)

	mu    sync.Mutex
	code  string
	state reconcile.ClientState
	stop  chan struct{}
	done  chan struct{}
}

// NewStatusPoller wires a poller. navigate receives only decisions that
// require action; it performs the effectful screen change.
func NewStatusPoller(fetch StatusFetcher, interval time.Duration, navigate func(reconcile.Decision)) *StatusPoller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &StatusPoller{fetch: fetch, interval: interval, navigate: navigate}
}

// SetJoined records whether the client currently holds a member identity.
func (p *StatusPoller) SetJoined(joined bool) {
	p.mu.Lock()
	p.state.Joined = joined
	p.mu.Unlock()
}

// SetLocation records the client's current screen, for callers that navigate
// outside the reconciler (e.g. right after joining).
func (p *StatusPoller) SetLocation(loc reconcile.Location) {
	p.mu.Lock()
	p.state.Location = loc
	p.mu.Unlock()
}

// State returns the tracked client state.
func (p *StatusPoller) State() reconcile.ClientState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start begins polling the given session. Starting an already-running poller
// is a no-op.
func (p *StatusPoller) Start(code string) {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return
	}
	p.code = code
	stop := make(chan struct{})
	done := make(chan struct{})
	p.stop = stop
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.Tick(context.Background())
			}
		}
	}()
}

// Stop halts polling and waits for the loop to exit. Safe to call twice.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop = nil
	p.done = nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Tick performs one fetch-and-reconcile step. A vanished session (expired or
// ended) reconciles as closed; transient fetch errors leave state untouched
// so a flaky poll never causes navigation.
func (p *StatusPoller) Tick(ctx context.Context) {
	p.mu.Lock()
	code := p.code
	state := p.state
	p.mu.Unlock()

	snap, err := p.fetch.FetchStatus(ctx, code)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return
		}
		snap = reconcile.SnapshotGone()
	}

	d := reconcile.Decide(state, snap)
	next := reconcile.Apply(state, d)

	p.mu.Lock()
	p.state = next
	p.mu.Unlock()

	if (d.Navigate || d.ClearIdentity) && p.navigate != nil {
		p.navigate(d)
	}
}
