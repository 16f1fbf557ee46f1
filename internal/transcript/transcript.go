// Package transcript records the raw line stream of a run so it can be
// replayed and inspected after the fact. Transcripts are zstd-compressed
// JSONL: one entry per line, appended as the run streams.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Entry kinds.
const (
	// KindLine is a verbatim output line from the binary.
	KindLine = "line"
	// KindEvent is a lifecycle marker (started, finished, fallback).
	KindEvent = "event"
)

// Entry is one recorded moment of a run.
type Entry struct {
	Seq       int    `json:"seq"`
	ElapsedMs int64  `json:"elapsedMs"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
}

// sanitize replaces characters that are unsafe in filenames.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// Filename returns the transcript filename for a run.
func Filename(suiteName string, ts time.Time) string {
	return fmt.Sprintf("%s-%s.jsonl.zst", sanitizeName(suiteName), ts.Format("20060102-150405"))
}

// Writer appends entries to a compressed transcript file while the run
// is still streaming. Not safe for concurrent use; the run loop emits
// lines one at a time.
type Writer struct {
	path      string
	f         *os.File
	zw        *zstd.Encoder
	enc       *json.Encoder
	seq       int
	startedAt time.Time
	now       func() time.Time
}

// NewWriter creates the transcript file for a run, creating dir if
// needed.
func NewWriter(dir, suiteName string, startedAt time.Time) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	path := filepath.Join(dir, Filename(suiteName, startedAt))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}

	return &Writer{
		path:      path,
		f:         f,
		zw:        zw,
		enc:       json.NewEncoder(zw),
		startedAt: startedAt,
		now:       time.Now,
	}, nil
}

// Path returns the transcript file path.
func (w *Writer) Path() string {
	return w.path
}

// Line records one verbatim output line.
func (w *Writer) Line(text string) error {
	return w.append(KindLine, text)
}

// Event records a lifecycle marker.
func (w *Writer) Event(text string) error {
	return w.append(KindEvent, text)
}

func (w *Writer) append(kind, text string) error {
	entry := Entry{
		Seq:       w.seq,
		ElapsedMs: w.now().Sub(w.startedAt).Milliseconds(),
		Kind:      kind,
		Text:      text,
	}
	if err := w.enc.Encode(entry); err != nil {
		return fmt.Errorf("write transcript entry: %w", err)
	}
	w.seq++
	return nil
}

// Close flushes the compressed stream and closes the file. The file is
// not valid zstd until Close returns.
func (w *Writer) Close() error {
	zerr := w.zw.Close()
	ferr := w.f.Close()
	if zerr != nil {
		return fmt.Errorf("close zstd writer: %w", zerr)
	}
	return ferr
}

// Read loads every entry of a transcript file.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	var entries []Entry
	dec := json.NewDecoder(zr)
	for {
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("decode transcript entry: %w", err)
		}
		entries = append(entries, entry)
	}
}
