package protocol

import (
	"bufio"
	"io"
	"sync"
)

// Transport reads and writes frames over a byte stream, one JSON frame per
// newline-terminated line. Reads are single-consumer; writes are serialized
// by an internal mutex so multiple goroutines may send.
type Transport struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
}

// NewTransport wraps an io.Reader and io.Writer as a frame transport.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// Read blocks until one frame arrives. It returns io.EOF when the peer
// closes its end of the stream.
func (t *Transport) Read() (Frame, error) {
	line, err := t.reader.ReadBytes('\n')
	if err != nil {
		return Frame{}, err
	}
	return Decode(line)
}

// Write sends one message under the given session ID.
func (t *Transport) Write(sid string, msg Message) error {
	data, err := Encode(Frame{SID: sid, Msg: msg})
	if err != nil {
		return err
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.writer.Write(data)
	return err
}
