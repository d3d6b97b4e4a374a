package serialmux

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

var errPortClosed = errors.New("serial port closed")

// ReplayPort plays back a recorded tracker stream at a fixed line interval
// and records what is written to it. It is used by the server's replay mode
// and by tests.
type ReplayPort struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	mu   sync.Mutex
	sent bytes.Buffer
	done chan struct{}
	once sync.Once
}

// NewReplayPort starts copying the lines of src to the port's read side,
// one line per interval. A zero interval replays as fast as it is read.
// The read side reaches EOF when src is exhausted.
func NewReplayPort(src io.Reader, interval time.Duration) *ReplayPort {
	r, w := io.Pipe()
	p := &ReplayPort{r: r, w: w, done: make(chan struct{})}
	go p.replay(src, interval)
	return p
}

func (p *ReplayPort) replay(src io.Reader, interval time.Duration) {
	scan := bufio.NewScanner(src)
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for scan.Scan() {
		if tick != nil {
			select {
			case <-tick:
			case <-p.done:
				return
			}
		}
		if _, err := p.w.Write(append(scan.Bytes(), '\n')); err != nil {
			return
		}
	}
	p.w.CloseWithError(scan.Err())
}

func (p *ReplayPort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *ReplayPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return 0, errPortClosed
	default:
	}
	return p.sent.Write(b)
}

// Written returns everything written to the port so far.
func (p *ReplayPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent.String()
}

func (p *ReplayPort) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		close(p.done)
		p.mu.Unlock()
		p.r.Close()
	})
	return nil
}

// NewReplaySerialMux returns a SerialMux over a ReplayPort.
func NewReplaySerialMux(src io.Reader, interval time.Duration) *SerialMux[*ReplayPort] {
	return NewSerialMux(NewReplayPort(src, interval))
}

// TestableSerialPort is an in-memory port whose read side is fed with
// AddReadData. Reads block until data arrives or the port is closed.
type TestableSerialPort struct {
	mu     sync.Mutex
	cond   *sync.Cond
	read   bytes.Buffer
	write  bytes.Buffer
	closed bool
	// writeErr, when set, is returned by the next Write.
	writeErr error
}

func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.read.Len() == 0 {
		p.cond.Wait()
	}
	if p.read.Len() == 0 {
		return 0, io.EOF
	}
	return p.read.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errPortClosed
	}
	if err := p.writeErr; err != nil {
		p.writeErr = nil
		return 0, err
	}
	return p.write.Write(b)
}

func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

// FailNextWrite makes the next Write return err.
func (p *TestableSerialPort) FailNextWrite(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// AddReadData queues data for Read.
func (p *TestableSerialPort) AddReadData(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.read.WriteString(data)
	p.cond.Broadcast()
}

// Written returns everything written to the port so far.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write.String()
}
