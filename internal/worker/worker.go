// Package worker implements the background execution context. It runs as a
// separate process, reads load/run directives from stdin, executes the test
// binary, and reports everything it sees back over stdout as protocol
// messages. It shares no memory with the host; the message stream is the
// only coupling.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/suitepulse/suitepulse/internal/protocol"
	"github.com/suitepulse/suitepulse/internal/scan"
)

// maxLineBytes caps one output line; anything longer is split by the
// scanner rather than aborting the run.
const maxLineBytes = 1024 * 1024

// Serve processes directives from r until it closes, writing messages to w.
// Canceling ctx kills any binary still running.
func Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	wk := &worker{transport: protocol.NewTransport(r, w)}
	return wk.serve(ctx)
}

type worker struct {
	transport *protocol.Transport
	binary    string
	args      []string
	loaded    bool
}

func (wk *worker) serve(ctx context.Context) error {
	for {
		frame, err := wk.transport.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading directive: %w", err)
		}

		switch msg := frame.Msg.(type) {
		case protocol.Load:
			wk.handleLoad(frame.SID, msg)
		case protocol.Run:
			// Runs execute synchronously, so a second run directive is not
			// even read until this one ends.
			wk.handleRun(ctx, frame.SID)
		default:
			slog.Warn("ignoring unexpected directive", "kind", frame.Msg.Kind())
		}
	}
}

func (wk *worker) handleLoad(sid string, msg protocol.Load) {
	wk.send(sid, protocol.Status{Message: "locating test binary"})

	path, err := filepath.Abs(msg.BinaryRef)
	if err != nil {
		wk.send(sid, protocol.Error{Message: fmt.Sprintf("resolving %q: %v", msg.BinaryRef, err)})
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		wk.send(sid, protocol.Error{Message: fmt.Sprintf("test binary %q: %v", msg.BinaryRef, err)})
		return
	}
	if info.IsDir() {
		wk.send(sid, protocol.Error{Message: fmt.Sprintf("test binary %q is a directory", msg.BinaryRef)})
		return
	}

	wk.binary = path
	wk.args = msg.Args
	wk.loaded = true

	wk.send(sid, protocol.Status{Message: fmt.Sprintf("binary ready (%d bytes)", info.Size())})
	wk.send(sid, protocol.Loaded{})
}

// tally is the worker's own count of what it saw. It is deliberately
// independent of whatever the host re-derives from the output stream.
type tally struct {
	current int
	passed  int
	failed  int
}

func (wk *worker) handleRun(ctx context.Context, sid string) {
	if !wk.loaded {
		wk.send(sid, protocol.Error{Message: "no binary loaded"})
		return
	}

	cmd := exec.CommandContext(ctx, wk.binary, wk.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		wk.send(sid, protocol.Error{Message: fmt.Sprintf("wiring binary stdout: %v", err)})
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		wk.send(sid, protocol.Error{Message: fmt.Sprintf("wiring binary stderr: %v", err)})
		return
	}

	if err := cmd.Start(); err != nil {
		wk.send(sid, protocol.Error{Message: fmt.Sprintf("starting %q: %v", wk.binary, err)})
		return
	}
	wk.send(sid, protocol.Started{})

	var counts tally
	var group errgroup.Group
	group.Go(func() error {
		return wk.streamStdout(sid, stdout, &counts)
	})
	group.Go(func() error {
		return wk.streamStderr(sid, stderr)
	})
	scanErr := group.Wait()
	waitErr := cmd.Wait()

	switch {
	case scanErr != nil:
		wk.send(sid, protocol.Error{Message: fmt.Sprintf("reading binary output: %v", scanErr)})
	case waitErr == nil, exitedNormally(waitErr):
		// Test binaries conventionally exit non-zero when tests failed;
		// that is still a completed run, not a fault.
		wk.send(sid, protocol.Finished{
			Total:  counts.current,
			Passed: counts.passed,
			Failed: counts.failed,
		})
	default:
		wk.send(sid, protocol.Error{Message: fmt.Sprintf("binary terminated abnormally: %v", waitErr)})
	}
}

// streamStdout forwards every line verbatim and additionally reports the
// structured shapes it recognizes, with running counters. Only this stream
// is classified; counters never race because stderr is forwarded raw.
func (wk *worker) streamStdout(sid string, r io.Reader, counts *tally) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		wk.send(sid, protocol.Output{Text: line})

		switch ev := scan.Classify(line).(type) {
		case scan.Result:
			counts.current++
			if ev.Passed {
				counts.passed++
			} else {
				counts.failed++
			}
			wk.send(sid, protocol.Result{
				Name:      ev.Name,
				Passed:    ev.Passed,
				Current:   counts.current,
				PassCount: counts.passed,
				FailCount: counts.failed,
			})
		case scan.Category:
			wk.send(sid, protocol.Category{Name: ev.Name})
		case scan.Total:
			wk.send(sid, protocol.Total{Count: ev.Count})
		}
	}
	return scanner.Err()
}

func (wk *worker) streamStderr(sid string, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		wk.send(sid, protocol.Output{Text: scanner.Text()})
	}
	return scanner.Err()
}

// send never fails the run: once the host stops listening there is nobody
// left to tell, so write errors are only logged.
func (wk *worker) send(sid string, msg protocol.Message) {
	if err := wk.transport.Write(sid, msg); err != nil {
		slog.Debug("dropping message", "kind", msg.Kind(), "err", err)
	}
}

func exitedNormally(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() >= 0
}
