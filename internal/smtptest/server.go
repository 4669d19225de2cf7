// Package smtptest runs an in-process SMTP server that speaks enough ESMTP
// (EHLO, STARTTLS, AUTH PLAIN/LOGIN, MAIL, RCPT, DATA) to exercise an SMTP
// client end to end. Accepted messages are recorded instead of relayed.
package smtptest

import (
	"crypto/tls"
	"errors"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"
)

// Options configures a Server. A nil TLSConfig disables STARTTLS; empty
// credentials disable AUTH.
type Options struct {
	Hostname  string
	TLSConfig *tls.Config
	Username  string
	Password  string

	// RejectRecipients lists addresses refused at RCPT TO with a 550.
	RejectRecipients []string

	// RequireTLS refuses AUTH and MAIL until STARTTLS has completed.
	RequireTLS bool

	// ReplyDelay is slept before the greeting and before answering each
	// command, to simulate a slow server.
	ReplyDelay time.Duration
}

// Delivery is a message accepted by the server.
type Delivery struct {
	From     string
	To       []string
	Data     []byte
	TLS      bool
	AuthUser string
}

// Server is a listening SMTP test server bound to 127.0.0.1.
type Server struct {
	opts     Options
	auth     *authenticator
	listener net.Listener

	mu         sync.Mutex
	deliveries []Delivery
	commands   []string

	wg     sync.WaitGroup
	closed chan struct{}
}

// NewServer starts listening on an ephemeral port and serves until Close.
func NewServer(opts Options) (*Server, error) {
	if opts.Hostname == "" {
		opts.Hostname = "localhost"
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:     opts,
		auth:     &authenticator{username: opts.Username, password: opts.Password},
		listener: ln,
		closed:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newSession(conn, s).handle()
		}()
	}
}

// Close stops the listener and waits up to five seconds for open sessions.
func (s *Server) Close() error {
	close(s.closed)
	err := s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
	return err
}

// Addr returns the listener address as host:port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listening IP.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Deliveries returns a copy of the accepted messages.
func (s *Server) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Delivery(nil), s.deliveries...)
}

// Commands returns the command verbs received across all sessions, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) recordCommand(cmd string) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
}

func (s *Server) recordDelivery(d Delivery) {
	s.mu.Lock()
	s.deliveries = append(s.deliveries, d)
	s.mu.Unlock()
}

func (s *Server) rejects(addr string) bool {
	return slices.Contains(s.opts.RejectRecipients, addr)
}
