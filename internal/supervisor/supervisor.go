// Package supervisor wraps the transport with the reconnect policy: on any
// unexpected close it redials with a bounded attempt count and replays the
// join handshake, because the server has no memory of a dropped
// connection's identity until re-announced. Intentional teardown
// short-circuits the retry loop synchronously so a reconnect can never race
// a user-initiated leave.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/transport"
)

var ErrNotConnected = errors.New("socket not connected")

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusRetrying     Status = "retrying"
	StatusGivenUp      Status = "given_up"
)

// Event is what the supervisor reports upward.
type Event interface{ isSupervisorEvent() }

// Connected fires after the join handshake went out on a fresh socket.
type Connected struct{}

// FrameReceived forwards one inbound frame.
type FrameReceived struct {
	Data []byte
}

// GaveUp fires exactly once, when the attempt budget is exhausted. The
// session cannot self-heal past this point.
type GaveUp struct {
	Err error
}

func (Connected) isSupervisorEvent()     {}
func (FrameReceived) isSupervisorEvent() {}
func (GaveUp) isSupervisorEvent()        {}

type Config struct {
	SocketURL string
	// Handshake is sent as the first frame on every successful open.
	Handshake   []byte
	MaxRetries  int           // default 100
	MinDelay    time.Duration // default 1s
	MaxDelay    time.Duration // default 30s
	DialTimeout time.Duration // default 10s
}

func (c *Config) fillDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 100
	}
	if c.MinDelay == 0 {
		c.MinDelay = time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// Supervisor is the sole owner of the live socket handle; every other
// component routes sends through it.
type Supervisor struct {
	dialer transport.Dialer
	cfg    Config
	log    *zap.Logger
	out    chan Event

	mu      sync.Mutex
	conn    transport.Conn
	status  Status
	retries int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Start begins supervising immediately; the first dial happens right away.
func Start(d transport.Dialer, cfg Config, log *zap.Logger) *Supervisor {
	cfg.fillDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	s := &Supervisor{
		dialer: d,
		cfg:    cfg,
		log:    log.Named("supervisor"),
		out:    make(chan Event, 64),
		status: StatusDisconnected,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Supervisor) Events() <-chan Event { return s.out }

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Retries reports the current consecutive-failure count.
func (s *Supervisor) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// Send writes one frame on the live socket. Frames are never queued: an
// intent that cannot go out now is dropped by the caller.
func (s *Supervisor) Send(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	conn, status := s.conn, s.status
	s.mu.Unlock()
	if status != StatusConnected || conn == nil {
		return ErrNotConnected
	}
	return conn.Send(ctx, frame)
}

// Stop tears the supervisor down and blocks until the run loop has exited,
// so no reconnect can fire after Stop returns.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	})
	<-s.done
}

func (s *Supervisor) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Supervisor) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Supervisor) run() {
	defer close(s.done)
	defer close(s.out)

	b := &backoff.Backoff{
		Min:    s.cfg.MinDelay,
		Max:    s.cfg.MaxDelay,
		Factor: 2,
		Jitter: true,
	}

	for {
		if s.stopped() {
			s.setStatus(StatusDisconnected)
			return
		}
		s.setStatus(StatusConnecting)

		dialCtx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
		conn, err := s.dialer.Dial(dialCtx, s.cfg.SocketURL)
		cancel()
		if err != nil {
			s.log.Warn("dial failed", zap.Error(err))
			if !s.waitRetry(b, err) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		closeErr, intentional := s.pump(conn, b)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		if intentional {
			s.setStatus(StatusDisconnected)
			return
		}
		s.log.Info("connection closed unexpectedly", zap.Error(closeErr))
		if !s.waitRetry(b, closeErr) {
			return
		}
	}
}

// pump consumes one connection's events until it closes or Stop is called.
func (s *Supervisor) pump(conn transport.Conn, b *backoff.Backoff) (closeErr error, intentional bool) {
	for {
		select {
		case <-s.stop:
			_ = conn.Close()
			for ev := range conn.Events() {
				if _, ok := ev.(transport.Closed); ok {
					break
				}
			}
			return nil, true

		case ev, ok := <-conn.Events():
			if !ok {
				return nil, false
			}
			switch e := ev.(type) {
			case transport.Opened:
				// Re-announce identity before anything else may be sent.
				sendCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				err := conn.Send(sendCtx, s.cfg.Handshake)
				cancel()
				if err != nil {
					s.log.Warn("handshake send failed", zap.Error(err))
					_ = conn.Close()
					continue
				}
				s.mu.Lock()
				s.retries = 0
				s.status = StatusConnected
				s.mu.Unlock()
				b.Reset()
				s.out <- Connected{}

			case transport.Frame:
				s.out <- FrameReceived{Data: e.Data}

			case transport.Closed:
				return e.Err, false
			}
		}
	}
}

// waitRetry sleeps out the backoff for the next attempt. It returns false
// when the budget is spent (emitting the single GaveUp) or Stop was called.
func (s *Supervisor) waitRetry(b *backoff.Backoff, cause error) bool {
	if s.stopped() {
		s.setStatus(StatusDisconnected)
		return false
	}
	s.mu.Lock()
	s.retries++
	n := s.retries
	s.mu.Unlock()

	if n > s.cfg.MaxRetries {
		s.setStatus(StatusGivenUp)
		s.log.Error("max retries reached, giving up", zap.Int("retries", n-1), zap.Error(cause))
		s.out <- GaveUp{Err: cause}
		return false
	}

	s.setStatus(StatusRetrying)
	delay := b.Duration()
	s.log.Info("reconnecting",
		zap.Int("attempt", n),
		zap.Int("max", s.cfg.MaxRetries),
		zap.Duration("delay", delay))

	select {
	case <-s.stop:
		s.setStatus(StatusDisconnected)
		return false
	case <-time.After(delay):
		return true
	}
}
