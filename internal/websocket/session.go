package websocket

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultPingInterval is how often a session sends an empty PING.
const DefaultPingInterval = 5 * time.Second

var ErrSessionClosed = errors.New("websocket session closed")

// Transform rewrites the payload of a TEXT frame before it is echoed back.
type Transform func([]byte) []byte

// Session owns an upgraded connection until it ends. A keepalive goroutine
// and the receive loop share the connection; frame writes are serialized
// so that frames from the two never interleave.
type Session struct {
	conn io.ReadWriteCloser
	r    io.Reader

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once

	transform    Transform
	pingInterval time.Duration
	logger       *log.Logger
}

type Option func(*Session)

// WithPingInterval sets the keepalive period. A period <= 0 disables
// keepalive pings.
func WithPingInterval(d time.Duration) Option {
	return func(s *Session) {
		s.pingInterval = d
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession wraps conn. r is where frames are read from; pass the
// buffered reader used for the handshake so no byte read past it is lost.
// A nil r reads from conn directly.
func NewSession(conn io.ReadWriteCloser, r io.Reader, transform Transform, opts ...Option) *Session {
	if r == nil {
		r = conn
	}
	if transform == nil {
		transform = func(b []byte) []byte { return b }
	}
	s := &Session{
		conn:         conn,
		r:            r,
		transform:    transform,
		pingInterval: DefaultPingInterval,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves the session until a CLOSE exchange, a protocol violation, an
// I/O error or ctx is done. The connection is closed when Run returns.
// A completed CLOSE exchange returns nil.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	// closing the socket is what unblocks a pending ReadFrame
	stop := context.AfterFunc(gctx, s.shutdown)
	defer stop()

	g.Go(func() error {
		defer cancel()
		return s.receive()
	})
	g.Go(func() error {
		return s.keepalive(gctx)
	})

	err := g.Wait()
	s.shutdown()
	return err
}

func (s *Session) shutdown() {
	s.closed.Store(true)
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Printf("websocket: close: %v", err)
		}
	})
}

func (s *Session) writeFrame(op Opcode, payload []byte) error {
	return s.write(op, payload, false)
}

// write sends one frame under the write lock. When last is set nothing
// else is written after this frame.
func (s *Session) write(op Opcode, payload []byte, last bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	if last {
		s.closed.Store(true)
	}
	_, err := s.conn.Write(AppendFrame(nil, true, op, payload))
	return err
}

func (s *Session) keepalive(ctx context.Context) error {
	if s.pingInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.writeFrame(OpcodePing, nil); err != nil {
				if errors.Is(err, ErrSessionClosed) {
					return nil
				}
				return err
			}
		}
	}
}

func (s *Session) receive() error {
	defer s.closed.Store(true)

	for {
		f, err := ReadFrame(s.r)
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return err
		}

		switch f.Opcode {
		case OpcodeText:
			if err := s.writeFrame(OpcodeText, s.transform(f.Payload)); err != nil {
				return err
			}
		case OpcodeClose:
			s.logger.Printf("websocket: close frame received")
			return s.write(OpcodeClose, closeReply(f.Payload), true)
		case OpcodePing:
			if err := s.writeFrame(OpcodePong, f.Payload); err != nil {
				return err
			}
		case OpcodePong:
			s.logger.Printf("websocket: pong frame received")
		case OpcodeContinuation, OpcodeBinary:
			return &ProtocolError{Err: ErrUnexpectedFrame, Opcode: f.Opcode}
		default:
			return &ProtocolError{Err: ErrUnknownOpcode, Opcode: f.Opcode}
		}
	}
}

// closeReply echoes the status code of a CLOSE payload, if it has one.
func closeReply(payload []byte) []byte {
	if len(payload) < 2 {
		return nil
	}
	return payload[:2]
}
