// Package orchestration drives one run of the test binary end to end: it
// brings the worker context up, routes its output through classification
// and aggregation, and fans progress out to listeners. The controller has
// no opinion about presentation; listeners decide what a run looks like.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suitepulse/suitepulse/internal/protocol"
	"github.com/suitepulse/suitepulse/internal/scan"
	"github.com/suitepulse/suitepulse/internal/session"
)

// State is the controller's run lifecycle state.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReady State = "awaiting_ready"
	StateStreaming     State = "streaming"
	StateFinished      State = "finished"
	StateAborted       State = "aborted"
)

var (
	// ErrRunInProgress means Run was called while another run was live.
	// The caller gets this synchronously; the live run is unaffected.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrRunFailed wraps an error the worker reported mid-run.
	ErrRunFailed = errors.New("run failed")
	// ErrReset means the live run was abandoned by a reset.
	ErrReset = errors.New("run reset")
)

// Host is the controller's view of one background execution context.
// *host.Host satisfies it; tests substitute scripted fakes.
type Host interface {
	Load(binaryRef string, args ...string) error
	WaitReady(ctx context.Context) error
	Run(sid string) error
	Messages() <-chan protocol.Frame
	Close() error
}

// HostFactory spawns a fresh execution context. The controller calls it
// at most once per context lifetime; a context is never reloaded.
type HostFactory func() (Host, error)

// ScriptPlayer plays a canned line stream when no worker is usable. Each
// emitted line goes through the same classification pipeline real output
// does.
type ScriptPlayer interface {
	Play(ctx context.Context, emit func(line string)) error
}

// EventType discriminates progress events.
type EventType string

const (
	// EventHostLoading fires when a fresh worker context starts its
	// readiness handshake.
	EventHostLoading EventType = "host_loading"
	// EventRunStarted fires when a session enters streaming.
	EventRunStarted EventType = "run_started"
	// EventOutputLine fires for every forwarded output line, verbatim.
	EventOutputLine EventType = "output_line"
	// EventTestResult fires after each test verdict, with the running
	// counters current as of that verdict.
	EventTestResult EventType = "test_result"
	// EventRunFinished fires once per completed run with the
	// authoritative final totals.
	EventRunFinished EventType = "run_finished"
	// EventRunAborted fires when a run ends without finishing.
	EventRunAborted EventType = "run_aborted"
	// EventFallbackEngaged fires once, when the controller gives up on
	// the worker for good and switches to the scripted fallback.
	EventFallbackEngaged EventType = "fallback_engaged"
)

// Event is one progress update.
type Event struct {
	Type       EventType
	SessionID  string
	Line       string
	Name       string
	TestPassed bool
	Category   string
	Current    int
	Total      int
	Passed     int
	Failed     int
	DurationMs int64
	Fallback   bool
	Err        error
}

// Listener receives progress events.
type Listener func(event Event)

// Option configures a Controller.
type Option func(*Controller)

// WithArgs sets extra arguments passed to the test binary.
func WithArgs(args ...string) Option {
	return func(c *Controller) { c.args = args }
}

// WithExpectedTotal presets the expected test count reported until the
// output stream provides one.
func WithExpectedTotal(n int) Option {
	return func(c *Controller) { c.expectedTotal = n }
}

// WithFallback installs the scripted player used when the worker cannot
// load.
func WithFallback(p ScriptPlayer) Option {
	return func(c *Controller) { c.script = p }
}

// WithFallbackEngaged starts the controller already switched to the
// scripted fallback, as if the worker had failed to load. Demo runs use
// this; the host factory is never invoked.
func WithFallbackEngaged() Option {
	return func(c *Controller) { c.fallback = true }
}

// Controller owns the run session lifecycle. One run is live at a time;
// Run rejects overlap synchronously. All methods are safe for concurrent
// use.
type Controller struct {
	binary        string
	args          []string
	expectedTotal int
	newHost       HostFactory
	script        ScriptPlayer

	mu       sync.Mutex
	state    State
	busy     bool
	fallback bool
	sid      string
	host     Host
	tracker  *scan.Tracker
	agg      *session.Aggregator

	listenerMu sync.Mutex
	listeners  []Listener
}

// NewController creates a controller for the given test binary. The
// factory is invoked lazily, on the first run and again whenever the
// previous context was torn down.
func NewController(binary string, factory HostFactory, opts ...Option) *Controller {
	c := &Controller{
		binary:  binary,
		newHost: factory,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracker = scan.NewTracker()
	c.agg = session.NewAggregator(c.expectedTotal)
	return c
}

// OnProgress registers a progress listener. Listeners are called from the
// running goroutine, in registration order.
func (c *Controller) OnProgress(listener Listener) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a run is live.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// FallbackActive reports whether the controller has permanently switched
// to the scripted fallback.
func (c *Controller) FallbackActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallback
}

// Outcome is the final accounting of one run. Total, Passed and Failed
// are the authoritative finals; Snapshot carries the per-test list and
// its category partition for reporting.
type Outcome struct {
	SessionID  string
	Fallback   bool
	Total      int
	Passed     int
	Failed     int
	DurationMs int64
	Snapshot   session.Snapshot
}

// Run executes the test binary once and blocks until the run ends. If the
// worker context cannot load, the controller switches to the scripted
// fallback for this and every later run. A second Run while one is live
// fails immediately with ErrRunInProgress.
func (c *Controller) Run(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrRunInProgress
	}
	c.busy = true
	c.mu.Unlock()

	// The busy flag clears on every exit path, even when the run ends
	// before producing a single line of output.
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.state = StateIdle
		c.mu.Unlock()
	}()

	if c.FallbackActive() {
		return c.runScripted(ctx)
	}

	h, err := c.ensureReadyHost(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.setState(StateAborted)
			c.notify(Event{Type: EventRunAborted, Err: err})
			return nil, err
		}
		c.engageFallback(err)
		return c.runScripted(ctx)
	}

	return c.streamRun(ctx, h)
}

// Reset abandons the live session, if any, and clears all accumulated
// run state. Messages the abandoned session still produces are dropped
// as stale; the worker context itself is left alone.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sid != "" {
		slog.Debug("abandoning run session", "sid", c.sid)
	}
	c.sid = ""
	c.tracker.Reset()
	c.agg.Reset()
}

// Close tears down the worker context, if one is up.
func (c *Controller) Close() error {
	c.mu.Lock()
	h := c.host
	c.host = nil
	c.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close()
}

// ensureReadyHost returns a ready worker context, spawning and loading a
// fresh one when none is up.
func (c *Controller) ensureReadyHost(ctx context.Context) (Host, error) {
	c.mu.Lock()
	h := c.host
	c.mu.Unlock()
	if h != nil {
		return h, nil
	}

	c.setState(StateAwaitingReady)
	c.notify(Event{Type: EventHostLoading})

	h, err := c.newHost()
	if err != nil {
		return nil, fmt.Errorf("spawning worker: %w", err)
	}
	if err := h.Load(c.binary, c.args...); err != nil {
		h.Close()
		return nil, fmt.Errorf("loading %s: %w", c.binary, err)
	}
	if err := h.WaitReady(ctx); err != nil {
		h.Close()
		return nil, err
	}

	c.mu.Lock()
	c.host = h
	c.mu.Unlock()
	return h, nil
}

// streamRun sends the run directive and consumes the worker's message
// stream until the run ends.
func (c *Controller) streamRun(ctx context.Context, h Host) (*Outcome, error) {
	sid := uuid.NewString()
	c.beginSession(sid, false)

	if err := h.Run(sid); err != nil {
		err = fmt.Errorf("starting run: %w", err)
		c.abort(sid, err)
		return nil, err
	}

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			// Kill the worker; otherwise it would keep streaming into
			// a stream nobody reads.
			c.dropHost(h)
			err := ctx.Err()
			c.abort(sid, err)
			return nil, err

		case frame, ok := <-h.Messages():
			if !ok {
				c.dropHost(h)
				err := fmt.Errorf("%w: worker stream ended before finish", ErrRunFailed)
				c.abort(sid, err)
				return nil, err
			}
			done, out, err := c.handleFrame(sid, start, frame)
			if done {
				return out, err
			}
		}
	}
}

// handleFrame routes one worker frame. It reports done=true when the
// frame ended the run.
func (c *Controller) handleFrame(sid string, start time.Time, frame protocol.Frame) (bool, *Outcome, error) {
	if frame.SID != sid {
		slog.Debug("dropping frame from stale session", "sid", frame.SID, "kind", frame.Msg.Kind())
		return false, nil, nil
	}
	if c.liveSID() != sid {
		// A reset landed mid-run. Everything this session produced is
		// already cleared; stop consuming on its behalf.
		c.abort(sid, ErrReset)
		return true, nil, ErrReset
	}

	switch msg := frame.Msg.(type) {
	case protocol.Started:
		slog.Debug("worker started run", "sid", sid)

	case protocol.Status:
		slog.Debug("worker status", "message", msg.Message)

	case protocol.Output:
		// Host-side classification builds the result list and the
		// category partition. Progress numbers come from the worker's
		// own counters, carried on its result messages.
		c.applyLine(sid, msg.Text, false)

	case protocol.Result:
		c.mu.Lock()
		total := c.agg.ExpectedTotal()
		category := c.tracker.Current()
		c.mu.Unlock()
		c.notify(Event{
			Type:       EventTestResult,
			SessionID:  sid,
			Name:       msg.Name,
			TestPassed: msg.Passed,
			Category:   category,
			Current:    msg.Current,
			Total:      total,
			Passed:     msg.PassCount,
			Failed:     msg.FailCount,
		})

	case protocol.Category:
		// Redundant with the category header already seen on the
		// output stream; the tracker is stamped from there.
		slog.Debug("worker category", "name", msg.Name)

	case protocol.Total:
		slog.Debug("worker total", "count", msg.Count)

	case protocol.Finished:
		return true, c.finish(sid, msg.Total, msg.Passed, msg.Failed, time.Since(start), false), nil

	case protocol.Error:
		err := fmt.Errorf("%w: %s", ErrRunFailed, msg.Message)
		c.abort(sid, err)
		return true, nil, err

	default:
		slog.Debug("ignoring unexpected frame", "kind", frame.Msg.Kind())
	}

	return false, nil, nil
}

// runScripted plays the fallback script through the same pipeline a real
// run uses. Progress counters come from the aggregator, there being no
// worker to report any.
func (c *Controller) runScripted(ctx context.Context) (*Outcome, error) {
	if c.script == nil {
		err := errors.New("no fallback script configured")
		c.setState(StateAborted)
		c.notify(Event{Type: EventRunAborted, Err: err})
		return nil, err
	}

	sid := uuid.NewString()
	c.beginSession(sid, true)

	start := time.Now()
	if err := c.script.Play(ctx, func(line string) {
		c.applyLine(sid, line, true)
	}); err != nil {
		c.abort(sid, err)
		return nil, err
	}
	if c.liveSID() != sid {
		c.abort(sid, ErrReset)
		return nil, ErrReset
	}

	c.mu.Lock()
	total := c.agg.Len()
	passed := c.agg.PassCount()
	failed := c.agg.FailCount()
	c.mu.Unlock()
	return c.finish(sid, total, passed, failed, time.Since(start), true), nil
}

// beginSession resets the per-run state and enters streaming under a new
// session ID. Anything a previous session still emits is stale from here
// on.
func (c *Controller) beginSession(sid string, fallback bool) {
	c.mu.Lock()
	c.sid = sid
	c.tracker.Reset()
	c.agg.Reset()
	c.state = StateStreaming
	total := c.agg.ExpectedTotal()
	c.mu.Unlock()

	slog.Debug("run session started", "sid", sid, "fallback", fallback)
	c.notify(Event{Type: EventRunStarted, SessionID: sid, Fallback: fallback, Total: total})
}

// applyLine classifies one output line into the session state and emits
// the line event. When emitResults is set it also emits a test result
// event per verdict, with counters from the aggregator; the worker path
// leaves that to the worker's own result messages.
func (c *Controller) applyLine(sid, line string, emitResults bool) {
	c.mu.Lock()
	if c.sid != sid {
		c.mu.Unlock()
		return
	}
	var delta session.Delta
	ev := scan.Classify(line)
	if ev != nil {
		c.tracker.Observe(ev)
		delta = c.agg.Apply(ev, c.tracker.Current())
		if raw, ok := ev.(scan.Raw); ok && scan.HasTotalPhrase(raw.Text) {
			slog.Debug("ignoring malformed total line", "line", raw.Text)
		}
	}
	c.mu.Unlock()

	c.notify(Event{Type: EventOutputLine, SessionID: sid, Line: line})

	if emitResults && delta.Result != nil {
		c.notify(Event{
			Type:       EventTestResult,
			SessionID:  sid,
			Name:       delta.Result.Name,
			TestPassed: delta.Result.Passed,
			Category:   delta.Result.Category,
			Current:    delta.Index + 1,
			Total:      delta.ExpectedTotal,
			Passed:     delta.Passed,
			Failed:     delta.Failed,
		})
	}
}

func (c *Controller) finish(sid string, total, passed, failed int, elapsed time.Duration, fallback bool) *Outcome {
	c.mu.Lock()
	snap := c.agg.Snapshot()
	c.state = StateFinished
	c.mu.Unlock()

	out := &Outcome{
		SessionID:  sid,
		Fallback:   fallback,
		Total:      total,
		Passed:     passed,
		Failed:     failed,
		DurationMs: elapsed.Milliseconds(),
		Snapshot:   snap,
	}
	slog.Debug("run finished", "sid", sid, "total", total, "passed", passed, "failed", failed)
	c.notify(Event{
		Type:       EventRunFinished,
		SessionID:  sid,
		Fallback:   fallback,
		Total:      total,
		Passed:     passed,
		Failed:     failed,
		DurationMs: out.DurationMs,
	})
	return out
}

func (c *Controller) abort(sid string, cause error) {
	c.setState(StateAborted)
	slog.Debug("run aborted", "sid", sid, "cause", cause)
	c.notify(Event{Type: EventRunAborted, SessionID: sid, Err: cause})
}

// engageFallback flips the controller to scripted mode, permanently. The
// switch is one-way; once the worker has proven unusable it is never
// tried again.
func (c *Controller) engageFallback(cause error) {
	c.mu.Lock()
	already := c.fallback
	c.fallback = true
	c.mu.Unlock()

	if !already {
		slog.Warn("worker unavailable, switching to scripted fallback", "cause", cause)
		c.notify(Event{Type: EventFallbackEngaged, Fallback: true, Err: cause})
	}
}

func (c *Controller) dropHost(h Host) {
	c.mu.Lock()
	if c.host == h {
		c.host = nil
	}
	c.mu.Unlock()
	if err := h.Close(); err != nil {
		slog.Debug("closing worker context", "error", err)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) liveSID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

func (c *Controller) notify(event Event) {
	c.listenerMu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}
