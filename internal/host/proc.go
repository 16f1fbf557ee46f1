package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/suitepulse/suitepulse/internal/protocol"
)

// closeGrace is how long Close waits for the worker to exit on its own,
// after stdin closes, before killing it.
const closeGrace = 3 * time.Second

// Spawn starts argv as the background worker process and returns a host
// wired to its stdin/stdout.
func Spawn(argv []string, opts ...Option) (*Host, error) {
	link, err := newProcLink(argv)
	if err != nil {
		return nil, err
	}
	return New(link, opts...), nil
}

// procLink speaks the protocol to a worker subprocess. Stderr is drained to
// the debug log so a crashing worker leaves a trace.
type procLink struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	transport *protocol.Transport
}

func newProcLink(argv []string) (*procLink, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty worker command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("wiring worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("wiring worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("wiring worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker %q: %w", argv[0], err)
	}
	slog.Debug("worker process started", "pid", cmd.Process.Pid, "argv", argv)

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Debug("worker stderr", "line", scanner.Text())
		}
	}()

	return &procLink{
		cmd:       cmd,
		stdin:     stdin,
		transport: protocol.NewTransport(stdout, stdin),
	}, nil
}

func (p *procLink) Send(sid string, msg protocol.Message) error {
	return p.transport.Write(sid, msg)
}

func (p *procLink) Recv() (protocol.Frame, error) {
	// EOF here is also the fault signal: the process exiting closes its
	// stdout after the remaining buffered frames drain.
	return p.transport.Read()
}

// Close signals the worker by closing its stdin, waits briefly for a clean
// exit, then kills it. Remaining output is discarded.
func (p *procLink) Close() error {
	_ = p.stdin.Close()

	waited := make(chan error, 1)
	go func() { waited <- p.cmd.Wait() }()

	select {
	case err := <-waited:
		return ignoreExitError(err)
	case <-time.After(closeGrace):
		slog.Debug("worker did not exit in time, killing", "pid", p.cmd.Process.Pid)
		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("killing worker: %w", err)
		}
		return ignoreExitError(<-waited)
	}
}

// ignoreExitError drops the uninteresting non-zero-exit error a torn-down
// worker produces; a real teardown problem still surfaces.
func ignoreExitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
