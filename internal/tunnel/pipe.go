package tunnel

import (
	"net"
	"sync"
	"time"

	"github.com/matst80/knockport/internal/obs"
)

// readBufSize bounds how much one leg reads per wakeup, the same ceiling the
// kernel-side socket buffers enforce on the write half.
const readBufSize = 128 << 10

// Side is one leg of an established pipe. It owns its conn; the peer link is
// a reference, not ownership, and either side may sever it. All fields are
// guarded by the pipe mutex so the two legs never mutate shared state
// concurrently.
type Side struct {
	p    *Pipe
	conn net.Conn
	// peer is the other leg, or nil once the link has been severed. When
	// non-nil the peer always points back at us.
	peer *Side
	// peerTimedOut is set on us by the peer when the peer observes an idle
	// timeout, and cleared whenever the peer receives data again. Only a
	// mutual timeout tears the pipe down.
	peerTimedOut bool
	idle         time.Duration
	closed       bool
	label        string
}

// Pipe links the client and backend legs of one routed connection.
type Pipe struct {
	mu      sync.Mutex
	client  *Side
	backend *Side
	grace   time.Duration
	live    int
	done    chan struct{}
}

func newPipe(client, backend net.Conn, idle, grace time.Duration) *Pipe {
	p := &Pipe{grace: grace, live: 2, done: make(chan struct{})}
	p.client = &Side{p: p, conn: client, idle: idle, label: "client"}
	p.backend = &Side{p: p, conn: backend, idle: idle, label: "backend"}
	p.client.peer = p.backend
	p.backend.peer = p.client
	return p
}

func (p *Pipe) run() {
	go p.client.run()
	go p.backend.run()
}

// Wait blocks until both legs have terminated.
func (p *Pipe) Wait() { <-p.done }

func (s *Side) run() {
	buf := make([]byte, readBufSize)
	for {
		s.p.mu.Lock()
		idle := s.idle
		s.p.mu.Unlock()
		_ = s.conn.SetReadDeadline(time.Now().Add(idle))
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.forward(buf[:n])
		}
		if err == nil {
			continue
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			if s.timedOut() {
				continue
			}
			return
		}
		s.fail(err)
		return
	}
}

// forward moves freshly read bytes into the peer's socket. A severed leg
// discards its input instead, so a draining survivor never stalls on a full
// buffer. The write happens outside the pipe mutex: a peer closing its conn
// mid-write just fails the write, and the peer's own reader handles that
// leg's death.
func (s *Side) forward(b []byte) {
	s.p.mu.Lock()
	peer := s.peer
	if peer != nil {
		// fresh data proves this leg alive, withdraw any timeout we flagged
		peer.peerTimedOut = false
	}
	s.p.mu.Unlock()
	if peer == nil {
		return
	}
	if _, err := peer.conn.Write(b); err != nil {
		obs.Debug("pipe.forward", obs.Fields{"leg": s.label, "err": err.Error()})
	}
}

// timedOut runs the idle-timeout half of the teardown protocol. A timeout is
// a liveness probe, not an error: the first leg to notice only flags its
// peer and keeps reading. The pipe dies when both legs are idle at once, or
// when the link was already severed by an earlier failure. Reports whether
// the leg survived.
func (s *Side) timedOut() bool {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.closed {
		return false
	}
	if s.peer != nil {
		s.peer.peerTimedOut = true
		if !s.peerTimedOut {
			return true
		}
	}
	s.terminateLocked("mutual timeout")
	return false
}

// fail handles a hard error (reset, EOF, I/O fault). No dual confirmation:
// the leg dies immediately and the peer gets its drain window.
func (s *Side) fail(err error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if !s.closed {
		obs.Debug("pipe.leg_error", obs.Fields{"leg": s.label, "err": err.Error()})
	}
	s.terminateLocked("error")
}

// terminateLocked releases this leg exactly once. A surviving peer is given
// a short window with both deadlines armed so it can flush what is in
// flight, and the link is severed on both ends in the same step so neither
// record can reach the other afterwards.
func (s *Side) terminateLocked(reason string) {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.Close()
	if peer := s.peer; peer != nil {
		deadline := time.Now().Add(s.p.grace)
		_ = peer.conn.SetReadDeadline(deadline)
		_ = peer.conn.SetWriteDeadline(deadline)
		peer.idle = s.p.grace
		peer.peer = nil
		s.peer = nil
	}
	obs.Debug("pipe.leg_closed", obs.Fields{"leg": s.label, "reason": reason})
	s.p.live--
	if s.p.live == 0 {
		close(s.p.done)
	}
}
