// Package registry supplies archived sessions to the rest of the system with
// an explicit loading/error/ready lifecycle.
package registry

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/rpr-kontrol/kontrol/internal/domain"
)

// Status is the lifecycle of the most recent fetch.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

const fetchFailedMessage = "failed to load sessions from registry"

// Source lists archived sessions. store.Repository satisfies it.
type Source interface {
	ListSessions(ctx context.Context, projectFilter string) ([]*domain.Session, error)
}

// State is a read snapshot of the accessor. Sessions is never shared with the
// accessor's internal copy.
type State struct {
	Status   Status            `json:"status"`
	Filter   string            `json:"filter"`
	Error    string            `json:"error,omitempty"`
	Sessions []*domain.Session `json:"sessions"`
	Token    uint64            `json:"token"`
}

// Accessor fetches sessions asynchronously. Each fetch carries a token; only
// the fetch holding the latest token may publish its result, so a superseded
// filter can never overwrite a newer one.
type Accessor struct {
	source   Source
	logger   *slog.Logger
	onChange func(State)

	mu       sync.Mutex
	state    State
	token    uint64
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	closed   bool

	notifyMu     sync.Mutex
	lastNotified uint64
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithLogger sets the accessor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accessor) { a.logger = logger }
}

// WithOnChange registers a callback invoked after every state change.
// Callbacks are serialized and delivered in token order; a notification
// older than one already delivered is dropped. It runs on the calling or
// fetching goroutine and must not block.
func WithOnChange(fn func(State)) Option {
	return func(a *Accessor) { a.onChange = fn }
}

// NewAccessor returns an accessor in the loading state with no fetch started.
func NewAccessor(source Source, opts ...Option) *Accessor {
	a := &Accessor{
		source: source,
		logger: slog.Default(),
		state:  State{Status: StatusLoading, Filter: normalizeFilter(""), Sessions: []*domain.Session{}},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetFilter supersedes any in-flight fetch and starts a new one for filter.
// It returns the token assigned to the new fetch.
func (a *Accessor) SetFilter(filter string) uint64 {
	return a.start(normalizeFilter(filter))
}

// Refresh re-fetches the current filter.
func (a *Accessor) Refresh() uint64 {
	a.mu.Lock()
	filter := a.state.Filter
	a.mu.Unlock()
	return a.start(filter)
}

// State returns a snapshot of the current state.
func (a *Accessor) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Close cancels the in-flight fetch and waits for fetch goroutines to exit.
func (a *Accessor) Close() {
	a.mu.Lock()
	a.closed = true
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
	a.inflight.Wait()
}

func (a *Accessor) start(filter string) uint64 {
	a.mu.Lock()
	if a.closed {
		token := a.token
		a.mu.Unlock()
		return token
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.token++
	token := a.token
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.state = State{
		Status:   StatusLoading,
		Filter:   filter,
		Sessions: a.state.Sessions,
		Token:    token,
	}
	loading := a.snapshotLocked()
	a.inflight.Add(1)
	a.mu.Unlock()

	a.notify(loading)

	go a.fetch(ctx, token, filter)
	return token
}

func (a *Accessor) fetch(ctx context.Context, token uint64, filter string) {
	defer a.inflight.Done()

	sessions, err := a.source.ListSessions(ctx, filter)

	a.mu.Lock()
	if token != a.token {
		a.mu.Unlock()
		a.logger.Debug("Discarding superseded registry fetch", "token", token, "filter", filter)
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			a.mu.Unlock()
			return
		}
		a.logger.Error("Registry fetch failed", "filter", filter, "token", token, "error", err)
		a.state = State{Status: StatusError, Filter: filter, Error: fetchFailedMessage, Sessions: []*domain.Session{}, Token: token}
	} else {
		if sessions == nil {
			sessions = []*domain.Session{}
		}
		a.state = State{Status: StatusReady, Filter: filter, Sessions: sessions, Token: token}
	}
	a.cancel = nil
	applied := a.snapshotLocked()
	a.mu.Unlock()

	a.notify(applied)
}

func (a *Accessor) notify(s State) {
	if a.onChange == nil {
		return
	}
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	if s.Token < a.lastNotified {
		return
	}
	a.lastNotified = s.Token
	a.onChange(s)
}

func (a *Accessor) snapshotLocked() State {
	s := a.state
	s.Sessions = make([]*domain.Session, len(a.state.Sessions))
	for i, sess := range a.state.Sessions {
		s.Sessions[i] = sess.Clone()
	}
	return s
}

func normalizeFilter(filter string) string {
	filter = strings.ToUpper(strings.TrimSpace(filter))
	if filter == "" {
		return "ALL"
	}
	return filter
}
