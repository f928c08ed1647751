package recording

import (
	"bytes"
	"io"
	"sync"
)

// pipe is an in-memory pipe whose writes never block: data is buffered until
// the reader catches up. Reads block until data is available or the pipe is
// closed.
type pipe struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
	err    error
}

func newPipe() *pipe {
	p := &pipe{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Write appends b to the buffer. It fails with io.ErrClosedPipe after Close.
func (p *pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	n, _ := p.buf.Write(b)
	p.cond.Broadcast()
	return n, nil
}

// Read reads buffered data, blocking while the buffer is empty and the pipe
// is open. After Close it drains the buffer and then returns io.EOF (or the
// error passed to CloseWithError).
func (p *pipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.buf.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.err != nil {
		return 0, p.err
	}
	if p.buf.Len() == 0 {
		return 0, io.EOF
	}
	return p.buf.Read(b)
}

// Close ends the stream; the reader sees io.EOF after the remaining data.
func (p *pipe) Close() error {
	p.CloseWithError(nil)
	return nil
}

// CloseWithError ends the stream. A non-nil err is returned to the reader
// immediately, discarding buffered data.
func (p *pipe) CloseWithError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.err = err
	p.cond.Broadcast()
}
