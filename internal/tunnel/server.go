package tunnel

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/matst80/knockport/internal/knock"
	"github.com/matst80/knockport/internal/obs"
	"github.com/matst80/knockport/internal/ratelimit"
)

// Recorder receives routing and pipe lifecycle events, typically backed by
// the stats store. A nil Recorder is allowed.
type Recorder interface {
	Decision(hidden, timedOut bool)
	Rejected()
	PipeOpened()
	PipeClosed(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Decision(bool, bool)      {}
func (nopRecorder) Rejected()                {}
func (nopRecorder) PipeOpened()              {}
func (nopRecorder) PipeClosed(time.Duration) {}

// Config holds the read-only tunnel settings for the life of a Server.
type Config struct {
	Knock       knock.Signature
	NormalPort  int // loopback backend for connections without the knock
	HiddenPort  int // loopback backend for connections starting with the knock
	SniffWindow time.Duration
	IdleTimeout time.Duration
	GracePeriod time.Duration
	DialTimeout time.Duration
	// Gate optionally rejects accepted connections before any sniffing.
	Gate *ratelimit.SourceGate
}

type Server struct {
	cfg Config
	rec Recorder
}

func NewServer(cfg Config, rec Recorder) *Server {
	if rec == nil {
		rec = nopRecorder{}
	}
	if cfg.SniffWindow <= 0 {
		cfg.SniffWindow = 2 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Server{cfg: cfg, rec: rec}
}

// Serve accepts connections until ln is closed or ctx is done. Each
// connection runs its whole lifecycle (sniff, dial, pipe) on one goroutine
// pair, so a failing tunnel never affects another.
func (s *Server) Serve(ctx context.Context, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				obs.Error("accept.temp", obs.Fields{"err": err.Error()})
				continue
			}
			return
		}
		if g := s.cfg.Gate; g != nil {
			host, _, _ := net.SplitHostPort(c.RemoteAddr().String())
			if !g.Allow(host) {
				obs.RejectedTotal.Inc()
				s.rec.Rejected()
				obs.Debug("accept.rejected", obs.Fields{"remote": c.RemoteAddr().String()})
				_ = c.Close()
				continue
			}
		}
		go s.handleConn(c)
	}
}

func (s *Server) handleConn(c net.Conn) {
	remote := c.RemoteAddr().String()
	dec, err := knock.Sniff(c, s.cfg.Knock, s.cfg.SniffWindow)
	if err != nil {
		// client vanished before routing was decided, no backend is contacted
		obs.Debug("sniff.abandoned", obs.Fields{"remote": remote, "err": err.Error()})
		obs.ErrorsTotal.WithLabelValues("sniff").Inc()
		_ = c.Close()
		return
	}
	port := s.cfg.NormalPort
	if dec.Hidden {
		port = s.cfg.HiddenPort
		obs.KnockHitsTotal.Inc()
	} else {
		obs.NormalRoutesTotal.Inc()
	}
	if dec.TimedOut {
		obs.SniffTimeoutsTotal.Inc()
	}
	s.rec.Decision(dec.Hidden, dec.TimedOut)
	obs.Debug("route.decided", obs.Fields{"remote": remote, "hidden": dec.Hidden, "timed_out": dec.TimedOut, "buffered": len(dec.Buffered)})

	backend, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), s.cfg.DialTimeout)
	if err != nil {
		// abandon both legs, never leave half a pipe dangling
		obs.Error("dial.backend", obs.Fields{"port": port, "err": err.Error()})
		obs.ErrorsTotal.WithLabelValues("dial").Inc()
		_ = c.Close()
		return
	}
	if tc, ok := backend.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	// bytes consumed while sniffing go to the backend before the loops start
	if len(dec.Buffered) > 0 {
		if _, err := backend.Write(dec.Buffered); err != nil {
			obs.Error("pipe.initial_flush", obs.Fields{"port": port, "err": err.Error()})
			obs.ErrorsTotal.WithLabelValues("initial_flush").Inc()
			_ = backend.Close()
			_ = c.Close()
			return
		}
	}
	obs.PipesTotal.Inc()
	obs.ActivePipes.Inc()
	s.rec.PipeOpened()
	obs.Info("pipe.established", obs.Fields{"remote": remote, "port": port, "hidden": dec.Hidden})

	start := time.Now()
	p := newPipe(c, backend, s.cfg.IdleTimeout, s.cfg.GracePeriod)
	p.run()
	p.Wait()

	d := time.Since(start)
	obs.ActivePipes.Dec()
	obs.PipeDurationSeconds.Observe(d.Seconds())
	s.rec.PipeClosed(d)
	obs.Debug("pipe.closed", obs.Fields{"remote": remote, "duration": d.String()})
}
