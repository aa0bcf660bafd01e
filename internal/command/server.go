package command

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/dgnsrekt/tab_relay/internal/types"
)

const (
	maxRequestBytes = 4096
	requestTimeout  = 10 * time.Second
)

// ackOK is the only reply the control channel ever sends. The sender cannot
// act on a failure, so the ack does not distinguish outcomes.
var ackOK = []byte("OK")

// Server accepts one-shot TCP connections carrying a single focus command.
type Server struct {
	addr string
	svc  *Service
}

// NewServer creates a control channel server on addr.
func NewServer(addr string, svc *Service) *Server {
	return &Server{addr: addr, svc: svc}
}

// Run listens on the configured address and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	slog.Info("control channel listening", "addr", s.addr)
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is canceled. Each connection
// is handled on its own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("control channel accept failed", "error", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn reads one request, resolves it, and always acks. The ack goes
// out even when the request fails, so callers never block on an error they
// cannot handle.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(requestTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil {
		slog.Warn("control channel read failed", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	var cmd types.FocusCommand
	if err := json.Unmarshal(buf[:n], &cmd); err != nil {
		slog.Warn("malformed control request", "remote", conn.RemoteAddr(), "error", err)
	} else if err := s.svc.FocusOrOpen(ctx, cmd); err != nil {
		slog.Error("focus or open failed", "url", cmd.URL, "profile", cmd.Profile, "error", err)
	}

	if _, err := conn.Write(ackOK); err != nil {
		slog.Warn("control channel ack failed", "remote", conn.RemoteAddr(), "error", err)
	}
}
