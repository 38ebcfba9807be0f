package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ServiceName is the net/rpc name the control service registers under.
const ServiceName = "Control"

var (
	ApplyHandler  = ServiceName + ".Apply"
	StatusHandler = ServiceName + ".Status"
)

// applyTimeout bounds how long Apply waits on a full queue.
const applyTimeout = 2 * time.Second

type ApplyRequest struct {
	Commands []Command
}

// ApplyResponse reports a partial apply in Err rather than as a call error,
// since net/rpc discards the reply of a failed call.
type ApplyResponse struct {
	Accepted int
	Err      string
}

// StatusRequest names the caller for the server log. gob refuses structs
// without exported fields, so it cannot be empty.
type StatusRequest struct {
	Client string
}

type StatusResponse struct {
	Status Status
}

// Service is the net/rpc receiver. It only enqueues commands and reads the
// published status; it never touches the engine.
type Service struct {
	queue   *Queue
	status  StatusSource
	logger  *log.Logger
	timeout time.Duration
}

func NewService(queue *Queue, status StatusSource, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{queue: queue, status: status, logger: logger, timeout: applyTimeout}
}

// Apply enqueues the request's commands in order. It stops at the first
// command that cannot be queued; Accepted counts those that were and Err
// describes the failure.
func (s *Service) Apply(req ApplyRequest, res *ApplyResponse) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	for _, cmd := range req.Commands {
		if err := s.queue.Send(ctx, cmd); err != nil {
			res.Err = fmt.Sprintf("queueing %v: %v", cmd, err)
			s.logger.Warn("remote apply stopped", "accepted", res.Accepted, "err", err)
			return nil
		}
		res.Accepted++
		s.logger.Debug("remote command", "cmd", cmd)
	}
	return nil
}

func (s *Service) Status(req StatusRequest, res *StatusResponse) error {
	if s.status == nil {
		return errors.New("status unavailable")
	}
	res.Status = s.status.Status()
	s.logger.Debug("status requested", "client", req.Client)
	return nil
}

// Server accepts RPC connections for a Service.
type Server struct {
	rpc    *rpc.Server
	ln     net.Listener
	logger *log.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Listen registers svc and binds addr. Call Serve to accept connections.
func Listen(addr string, svc *Service) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, svc); err != nil {
		return nil, fmt.Errorf("registering control service: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &Server{
		rpc:    srv,
		ln:     ln,
		logger: svc.logger,
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until Close. It returns nil after Close.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accepting control connection: %w", err)
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		s.logger.Debug("control client connected", "remote", conn.RemoteAddr())
		go func() {
			defer s.wg.Done()
			s.rpc.ServeConn(conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

// Close stops accepting, drops open connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.ln.Close()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}
