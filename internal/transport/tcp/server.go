package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/beechat/beechat-server/internal/auth"
	"github.com/beechat/beechat-server/internal/core"
)

// Server accepts chat connections and runs one handler per client. The
// connection ceiling bounds concurrent handlers; connections accepted at
// the ceiling are disconnected immediately.
type Server struct {
	addr      string
	maxConns  int
	adminUser string
	auth      *auth.Service
	reg       *core.Registry
	bcast     *core.Broadcaster
	log       *zerolog.Logger

	listener net.Listener
	running  atomic.Bool
	conns    atomic.Int32

	mu       sync.Mutex
	handlers map[*Handler]struct{}
	wg       sync.WaitGroup
}

// NewServer builds a server; Start binds the listener.
func NewServer(addr string, maxConns int, adminUser string, authSvc *auth.Service, reg *core.Registry, bcast *core.Broadcaster, logger *zerolog.Logger) *Server {
	return &Server{
		addr:      addr,
		maxConns:  maxConns,
		adminUser: adminUser,
		auth:      authSvc,
		reg:       reg,
		bcast:     bcast,
		log:       logger,
		handlers:  make(map[*Handler]struct{}),
	}
}

// Start binds the listening socket.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.running.Store(true)
	s.log.Info().Str("addr", listener.Addr().String()).Msg("server listening")
	return nil
}

// Addr returns the bound listener address. Valid after Start.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// ConnCount reports the number of live handlers.
func (s *Server) ConnCount() int {
	return int(s.conns.Load())
}

// Serve accepts connections until shutdown. A closed listener while the
// running flag is down is the expected shutdown signal, not an error.
func (s *Server) Serve() error {
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				s.log.Info().Msg("listener closed for shutdown")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		sess := NewSession(conn)
		if int(s.conns.Load()) >= s.maxConns {
			s.log.Warn().Str("addr", sess.RemoteAddr()).Int("max", s.maxConns).Msg("connection ceiling reached, rejecting")
			sess.Disconnect()
			continue
		}

		connID := uuid.NewString()
		logger := s.log.With().Str("conn_id", connID).Str("addr", sess.RemoteAddr()).Logger()
		logger.Info().Msg("client connected")

		h := NewHandler(sess, s.auth, s.reg, s.bcast, s.adminUser, s.beginShutdown, logger)

		// Registration is checked against the running flag under the same
		// lock beginShutdown sweeps with, so a handler either joins the
		// sweep or is closed right here.
		s.mu.Lock()
		if !s.running.Load() {
			s.mu.Unlock()
			sess.Disconnect()
			return nil
		}
		s.handlers[h] = struct{}{}
		s.mu.Unlock()
		s.conns.Add(1)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(h)
			h.Run()
		}()
	}
	return nil
}

// release decrements the live-connection counter on any handler
// termination path and drops the handler from the shutdown list.
func (s *Server) release(h *Handler) {
	s.conns.Add(-1)
	s.mu.Lock()
	delete(s.handlers, h)
	s.mu.Unlock()
}

// beginShutdown flips the running flag, stops every tracked handler, and
// closes the listening socket. It does not wait for handlers to finish, so
// a handler may invoke it from its own command loop. Safe to call more
// than once.
func (s *Server) beginShutdown() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.log.Info().Msg("server shutting down")

	s.mu.Lock()
	handlers := make([]*Handler, 0, len(s.handlers))
	for h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h.Stop()
	}

	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn().Err(err).Msg("failed to close listener")
	}
}

// Shutdown stops the server and waits for all handlers to finish, bounded
// by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.beginShutdown()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
