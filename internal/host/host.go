// Package host owns the background execution context: a worker subprocess
// that loads and runs the test binary. The host mediates the readiness
// handshake and forwards every worker message verbatim; it routes by
// message tag only and never interprets payloads.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suitepulse/suitepulse/internal/protocol"
)

// State is the host's load lifecycle state.
type State string

const (
	StateUnloaded   State = "unloaded"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateLoadFailed State = "load_failed"
)

// allowedTransitions guards the lifecycle. Ready and LoadFailed are
// terminal; a host is never reloaded, a fresh one is spawned instead.
var allowedTransitions = map[State][]State{
	StateUnloaded:   {StateLoading},
	StateLoading:    {StateReady, StateLoadFailed},
	StateReady:      {},
	StateLoadFailed: {},
}

var (
	// ErrLoadTimeout means the readiness handshake exceeded its deadline.
	ErrLoadTimeout = errors.New("timed out waiting for worker to load")
	// ErrLoadFailed means the worker reported an explicit error, or its
	// process faulted, before becoming ready.
	ErrLoadFailed = errors.New("worker failed to load")
	// ErrNotReady means a run directive was issued before the handshake
	// completed.
	ErrNotReady = errors.New("worker is not ready")
)

const (
	// DefaultReadyTimeout bounds the readiness handshake.
	DefaultReadyTimeout = 60 * time.Second
	// DefaultPollInterval is how often the readiness wait re-checks state.
	DefaultPollInterval = 100 * time.Millisecond
)

//go:generate go tool mockgen -source=host.go -destination=mock_worker_link_test.go -package=host

// workerLink is the host's connection to one background context. The real
// implementation wraps a subprocess; tests substitute a mock.
type workerLink interface {
	// Send writes one message under the given session ID.
	Send(sid string, msg protocol.Message) error
	// Recv blocks until one frame arrives. Any error, io.EOF included,
	// means the context is gone.
	Recv() (protocol.Frame, error)
	// Close tears the context down. Safe to call more than once.
	Close() error
}

// Option configures a Host.
type Option func(*Host)

// WithReadyTimeout overrides the readiness handshake deadline.
func WithReadyTimeout(d time.Duration) Option {
	return func(h *Host) { h.readyTimeout = d }
}

// WithPollInterval overrides the readiness poll interval. Tests shrink it
// to keep the bounded wait fast.
func WithPollInterval(d time.Duration) Option {
	return func(h *Host) { h.pollInterval = d }
}

// Host drives one background context through load and run. Messages() is
// single-consumer; all other methods are safe to call from the consumer
// goroutine.
type Host struct {
	link         workerLink
	loadSID      string
	readyTimeout time.Duration
	pollInterval time.Duration

	mu        sync.Mutex
	state     State
	failCause string

	messages chan protocol.Frame
	reading  sync.Once
	closing  sync.Once
}

// New wraps an established worker link. Most callers want Spawn instead.
func New(link workerLink, opts ...Option) *Host {
	h := &Host{
		link:         link,
		loadSID:      uuid.NewString(),
		readyTimeout: DefaultReadyTimeout,
		pollInterval: DefaultPollInterval,
		state:        StateUnloaded,
		messages:     make(chan protocol.Frame, 256),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Messages returns the stream of frames forwarded from the worker. The
// channel closes when the worker's end of the stream is gone.
func (h *Host) Messages() <-chan protocol.Frame {
	return h.messages
}

// Load sends the load directive and starts forwarding worker messages.
// It returns as soon as the directive is on the wire; use WaitReady to
// observe the handshake outcome.
func (h *Host) Load(binaryRef string, args ...string) error {
	if err := h.transition(StateLoading); err != nil {
		return err
	}

	if err := h.link.Send(h.loadSID, protocol.Load{BinaryRef: binaryRef, Args: args}); err != nil {
		h.failLoad(fmt.Sprintf("sending load directive: %v", err))
		return fmt.Errorf("sending load directive: %w", err)
	}

	h.reading.Do(func() { go h.readLoop() })
	return nil
}

// WaitReady polls until the host leaves Loading, or the deadline passes.
// The poll checks state before the deadline so a loaded acknowledgment that
// arrived late, but in time, is still honored. On timeout the host is moved
// to LoadFailed; it is never retried.
func (h *Host) WaitReady(ctx context.Context) error {
	deadline := time.Now().Add(h.readyTimeout)

	for {
		switch h.State() {
		case StateReady:
			return nil
		case StateLoadFailed:
			return h.loadFailedErr()
		case StateUnloaded:
			return ErrNotReady
		}

		if time.Now().After(deadline) {
			h.failLoad("no loaded acknowledgment before deadline")
			return fmt.Errorf("%w after %s", ErrLoadTimeout, h.readyTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.pollInterval):
		}
	}
}

// Run asks the worker to execute the loaded binary. The sid stamps every
// message the run produces, which is how stale messages from an abandoned
// run are told apart from the live session's.
func (h *Host) Run(sid string) error {
	if h.State() != StateReady {
		return ErrNotReady
	}
	return h.link.Send(sid, protocol.Run{})
}

// Close tears down the background context. The worker process may be
// mid-run; its remaining output is discarded.
func (h *Host) Close() error {
	var err error
	h.closing.Do(func() {
		err = h.link.Close()
	})
	return err
}

func (h *Host) readLoop() {
	defer close(h.messages)

	for {
		frame, err := h.link.Recv()
		if err != nil {
			// The context is gone. Mid-handshake that is a load fault;
			// later it is the run loop's problem to interpret.
			if h.State() == StateLoading {
				h.failLoad(fmt.Sprintf("worker stream ended: %v", err))
			}
			return
		}

		switch msg := frame.Msg.(type) {
		case protocol.Loaded:
			if err := h.transition(StateReady); err != nil {
				slog.Debug("ignoring loaded acknowledgment", "state", h.State())
			}
		case protocol.Error:
			if h.State() == StateLoading {
				h.failLoad(msg.Message)
			}
		}

		h.messages <- frame
	}
}

func (h *Host) transition(to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, allowed := range allowedTransitions[h.state] {
		if allowed == to {
			slog.Debug("host state change", "from", h.state, "to", to)
			h.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid host transition %s -> %s", h.state, to)
}

func (h *Host) failLoad(cause string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateLoadFailed {
		return
	}
	for _, allowed := range allowedTransitions[h.state] {
		if allowed == StateLoadFailed {
			slog.Debug("host load failed", "from", h.state, "cause", cause)
			h.state = StateLoadFailed
			h.failCause = cause
			return
		}
	}
}

func (h *Host) loadFailedErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.failCause == "" {
		return ErrLoadFailed
	}
	return fmt.Errorf("%w: %s", ErrLoadFailed, h.failCause)
}
