// Package spinner renders a single-line busy indicator for interactive
// waits, like the worker readiness poll.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Start displays an animated spinner with the given message on w. Once
// the wait passes one second the elapsed time is appended so a stuck
// readiness poll is visible as such. Call the returned function to stop
// the spinner and clear the line.
func Start(w io.Writer, message string) (stop func()) {
	started := time.Now()
	done := make(chan struct{})
	cleared := make(chan struct{})
	var stopOnce sync.Once
	go func() {
		i := 0
		width := len(message)
		for {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", width+2)) //nolint:errcheck
				close(cleared)
				return
			case <-time.After(80 * time.Millisecond):
				line := message
				if elapsed := time.Since(started); elapsed >= time.Second {
					line = fmt.Sprintf("%s (%.1fs)", message, elapsed.Seconds())
				}
				if len(line) > width {
					width = len(line)
				}
				fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], line) //nolint:errcheck
				i++
			}
		}
	}()
	return func() {
		stopOnce.Do(func() {
			close(done)
		})
		<-cleared
	}
}
