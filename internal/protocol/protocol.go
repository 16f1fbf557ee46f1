// Package protocol defines the messages exchanged between the host process
// and the background worker context, and the newline-delimited JSON framing
// they travel over. Messages are plain structs with no shared references:
// the two contexts never share memory, so everything that crosses the
// boundary must survive a copy.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags a message on the wire.
type Kind string

// Host → worker.
const (
	KindLoad Kind = "load"
	KindRun  Kind = "run"
)

// Worker → host.
const (
	KindStatus   Kind = "status"
	KindLoaded   Kind = "loaded"
	KindStarted  Kind = "started"
	KindOutput   Kind = "output"
	KindResult   Kind = "result"
	KindCategory Kind = "category"
	KindTotal    Kind = "total"
	KindFinished Kind = "finished"
	KindError    Kind = "error"
)

// Message is implemented by every protocol message. Consumers dispatch with
// a type switch over the concrete types rather than comparing kind strings,
// so a new variant is a missing case the compiler can point at.
type Message interface {
	Kind() Kind
}

// Load asks the worker to load the test binary identified by BinaryRef.
// Args are handed to the binary unchanged when it runs.
type Load struct {
	BinaryRef string   `json:"binaryRef"`
	Args      []string `json:"args,omitempty"`
}

// Run asks the worker to execute the loaded binary. Valid only after the
// worker has acknowledged with Loaded.
type Run struct{}

// Status carries informational loading progress. No semantic effect.
type Status struct {
	Message string `json:"message"`
}

// Loaded is the readiness acknowledgment. It is the only message that moves
// the host from Loading to Ready.
type Loaded struct{}

// Started signals that binary execution began.
type Started struct{}

// Output carries one raw line of the binary's text output.
type Output struct {
	Text string `json:"text"`
}

// Result is the worker's own per-test summary with its running counters.
// It is redundant with, and independent of, what the host re-derives from
// Output lines.
type Result struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Current   int    `json:"current"`
	PassCount int    `json:"passCount"`
	FailCount int    `json:"failCount"`
}

// Category forwards a raw category-header line for convenience. The host
// still re-derives categories from Output text.
type Category struct {
	Name string `json:"name"`
}

// Total carries an updated expected-total hint.
type Total struct {
	Count int `json:"count"`
}

// Finished is the terminal success signal with the worker's final tallies.
type Finished struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Error is the terminal failure signal.
type Error struct {
	Message string `json:"message"`
}

func (Load) Kind() Kind     { return KindLoad }
func (Run) Kind() Kind      { return KindRun }
func (Status) Kind() Kind   { return KindStatus }
func (Loaded) Kind() Kind   { return KindLoaded }
func (Started) Kind() Kind  { return KindStarted }
func (Output) Kind() Kind   { return KindOutput }
func (Result) Kind() Kind   { return KindResult }
func (Category) Kind() Kind { return KindCategory }
func (Total) Kind() Kind    { return KindTotal }
func (Finished) Kind() Kind { return KindFinished }
func (Error) Kind() Kind    { return KindError }

// Frame pairs a message with the session it belongs to. The session ID is
// how stale messages from an abandoned run are detected and dropped.
type Frame struct {
	SID string
	Msg Message
}

// wireFrame is the on-the-wire shape: {"kind":"...","sid":"...","data":{...}}.
type wireFrame struct {
	Kind Kind            `json:"kind"`
	SID  string          `json:"sid"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrUnknownKind is returned by Decode for a frame whose kind tag is not a
// known message variant.
var ErrUnknownKind = errors.New("unknown message kind")

// Encode renders a frame as a single JSON line without the trailing newline.
func Encode(f Frame) ([]byte, error) {
	wf := wireFrame{Kind: f.Msg.Kind(), SID: f.SID}

	data, err := json.Marshal(f.Msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", f.Msg.Kind(), err)
	}
	// Empty payloads marshal as "{}"; leave those off the wire.
	if string(data) != "{}" {
		wf.Data = data
	}

	return json.Marshal(wf)
}

// Decode parses one JSON line into a frame.
func Decode(line []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(line, &wf); err != nil {
		return Frame{}, fmt.Errorf("invalid JSON: %w", err)
	}

	msg, err := newMessage(wf.Kind)
	if err != nil {
		return Frame{}, err
	}

	if len(wf.Data) > 0 {
		if err := json.Unmarshal(wf.Data, msg); err != nil {
			return Frame{}, fmt.Errorf("invalid %s payload: %w", wf.Kind, err)
		}
	}

	return Frame{SID: wf.SID, Msg: deref(msg)}, nil
}

// newMessage returns a pointer to a zero value of the concrete type for kind,
// so Decode can unmarshal into it.
func newMessage(kind Kind) (Message, error) {
	switch kind {
	case KindLoad:
		return &Load{}, nil
	case KindRun:
		return &Run{}, nil
	case KindStatus:
		return &Status{}, nil
	case KindLoaded:
		return &Loaded{}, nil
	case KindStarted:
		return &Started{}, nil
	case KindOutput:
		return &Output{}, nil
	case KindResult:
		return &Result{}, nil
	case KindCategory:
		return &Category{}, nil
	case KindTotal:
		return &Total{}, nil
	case KindFinished:
		return &Finished{}, nil
	case KindError:
		return &Error{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// deref unwraps the pointer Decode unmarshaled into, so frames always hold
// value types and copying a frame copies the payload.
func deref(m Message) Message {
	switch v := m.(type) {
	case *Load:
		return *v
	case *Run:
		return *v
	case *Status:
		return *v
	case *Loaded:
		return *v
	case *Started:
		return *v
	case *Output:
		return *v
	case *Result:
		return *v
	case *Category:
		return *v
	case *Total:
		return *v
	case *Finished:
		return *v
	case *Error:
		return *v
	default:
		return m
	}
}
