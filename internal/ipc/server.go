// Package ipc implements the local socket interface (§6): a UNIX domain
// socket accepting newline-delimited mod-protocol URLs or the literal probe
// string "testmsg", forwarding parsed URLs to the download pipeline.
package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dandels/dmodman-core/internal/modid"
)

// ProbeMessage is the literal connectivity check a client may send to confirm
// a daemon instance is listening; the server accepts and ignores it
// (original_source/nxm_listener.rs test_connection).
const ProbeMessage = "testmsg"

// ErrAlreadyRunning is returned by Listen when the socket path already
// exists, enforcing the single-writer precondition (§6).
var ErrAlreadyRunning = errors.New("ipc: socket already exists, another instance may be running")

// URLHandler receives a parsed mod-protocol URL forwarded over the socket.
type URLHandler func(ctx context.Context, u modid.NxmURL) error

// Server owns the listening socket and dispatches each accepted connection's
// lines to onURL.
type Server struct {
	logger     *slog.Logger
	socketPath string
	onURL      URLHandler

	ln net.Listener

	wg sync.WaitGroup
}

// NewServer creates a Server bound to socketPath once Listen is called.
func NewServer(socketPath string, onURL URLHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{logger: logger, socketPath: socketPath, onURL: onURL}
}

// Listen binds the UNIX socket, refusing to start if one already exists
// (§6 "refusing to start if the socket exists").
func (s *Server) Listen() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("ipc: listening on %s: %w", s.socketPath, err)
	}

	s.ln = ln

	return nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed, then waits for in-flight connections to finish.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()

				return nil
			}

			return fmt.Errorf("ipc: accept: %w", err)
		}

		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Close closes the listener and removes the socket file, the "stale sockets
// ... removed on clean shutdown" behaviour from §6.
func (s *Server) Close() error {
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("ipc: closing listener: %w", err)
		}
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ipc: removing socket file: %w", err)
	}

	return nil
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.handleLine(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		s.logger.Warn("ipc: connection read error", slog.String("error", err.Error()))
	}
}

func (s *Server) handleLine(ctx context.Context, line string) {
	if line == ProbeMessage {
		s.logger.Debug("ipc: probe received")

		return
	}

	u, err := modid.ParseNxmURL(line, time.Now())
	if err != nil {
		s.logger.Warn("ipc: rejecting malformed input", slog.String("line", line), slog.String("error", err.Error()))

		return
	}

	if err := s.onURL(ctx, u); err != nil {
		s.logger.Warn("ipc: handler failed for forwarded url",
			slog.String("file_identity", u.FileIdentity.String()), slog.String("error", err.Error()))
	}
}
