package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YohYamasaki/barebone-http-ws-server/internal/request"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/response"
	"github.com/YohYamasaki/barebone-http-ws-server/internal/websocket"
)

// Handler answers a parsed GET or HEAD request. It writes exactly one
// response; the connection is closed when it returns.
type Handler func(w *response.Writer, req *request.Request)

type Server struct {
	Port    uint16
	Handler Handler

	listener     net.Listener
	closed       atomic.Bool
	logger       *log.Logger
	transform    websocket.Transform
	pingInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Server)

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTransform sets the function applied to every TEXT payload before a
// WebSocket session echoes it.
func WithTransform(transform websocket.Transform) Option {
	return func(s *Server) {
		s.transform = transform
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		s.pingInterval = d
	}
}

func (s *Server) runConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	// a stopping server must not wait for idle clients
	stop := context.AfterFunc(s.ctx, func() { conn.Close() })
	defer stop()

	remote := conn.RemoteAddr()
	responseWriter := response.NewWriter(conn)
	br := bufio.NewReader(conn)

	r, err := request.RequestFromReader(br)
	if err != nil {
		if s.closed.Load() {
			return
		}
		s.logger.Printf("%s: bad request: %v", remote, err)
		s.writeResponse(responseWriter, remote, response.Empty(request.StatusOf(err)))
		return
	}
	s.logger.Printf("%s: %s %s", remote, r.RequestLine.Method, r.RequestLine.RequestTarget)

	if websocket.IsUpgradeRequest(r.Headers) {
		s.upgrade(conn, br, responseWriter, r)
		return
	}

	switch r.RequestLine.Method {
	case request.MethodGet, request.MethodHead:
		s.Handler(responseWriter, r)
	default:
		s.writeResponse(responseWriter, remote, response.Empty(response.StatusNotImplemented))
	}
}

// upgrade completes the handshake and hands the connection to a
// WebSocket session until it ends. br may already hold the first frames.
func (s *Server) upgrade(conn net.Conn, br io.Reader, w *response.Writer, r *request.Request) {
	remote := conn.RemoteAddr()

	resp, err := websocket.UpgradeResponse(string(r.RequestLine.HttpVersion), r.Headers.Get("Sec-WebSocket-Key"))
	if err != nil {
		s.logger.Printf("%s: upgrade: %v", remote, err)
		s.writeResponse(w, remote, response.Empty(response.StatusBadRequest))
		return
	}
	if err := w.WriteResponse(resp); err != nil {
		s.logger.Printf("%s: upgrade: %v", remote, err)
		return
	}
	s.logger.Printf("%s: upgraded to websocket", remote)

	session := websocket.NewSession(conn, br, s.transform,
		websocket.WithPingInterval(s.pingInterval),
		websocket.WithLogger(s.logger),
	)
	if err := session.Run(s.ctx); err != nil {
		s.logger.Printf("%s: websocket: %v", remote, err)
		return
	}
	s.logger.Printf("%s: websocket closed", remote)
}

// writeResponse is best effort: the connection is closed right after, so a
// failed write is only logged.
func (s *Server) writeResponse(w *response.Writer, remote net.Addr, resp *response.Response) {
	if err := w.WriteResponse(resp); err != nil {
		s.logger.Printf("%s: write %d response: %v", remote, int(resp.Status), err)
	}
}

func (s *Server) runServer() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if s.closed.Load() {
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			s.logger.Printf("accept: %v", err)
			return
		}
		s.wg.Add(1)
		go s.runConnection(conn)
	}
}

// Serve listens on port and serves connections in the background until
// Close. Port 0 picks a free port; Port holds the one in use.
func Serve(port uint16, handler Handler, opts ...Option) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Port:         port,
		Handler:      handler,
		logger:       log.Default(),
		pingInterval: websocket.DefaultPingInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		cancel()
		return nil, err
	}
	s.listener = listener
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.Port = uint16(addr.Port)
	}

	s.wg.Add(1)
	go s.runServer()
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting, closes every open connection including upgraded
// ones and waits for their goroutines to return.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.listener.Close()
	s.cancel()
	s.wg.Wait()
	return err
}
