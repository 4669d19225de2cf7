// Package smtp implements a Transport that submits each message over its own
// STARTTLS-upgraded, authenticated SMTP session.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"gopkg.in/mail.v2"

	"github.com/shineum/mail-relay/internal/tlsconfig"
	"github.com/shineum/mail-relay/internal/transport"
)

// DefaultTimeout bounds the dial and every single read or write of a session.
const DefaultTimeout = 30 * time.Second

var (
	// ErrMissingCredentials is returned when SMTP_USER or SMTP_PASS is unset.
	ErrMissingCredentials = errors.New("SMTP credentials not provided (SMTP_USER / SMTP_PASS required)")

	// ErrSTARTTLSUnsupported is returned when the server does not offer STARTTLS.
	ErrSTARTTLSUnsupported = errors.New("server does not support STARTTLS")
)

func init() {
	mail.NetDialTimeout = dialSession
}

// Config holds the settings for outbound sessions.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// TLSConfig is cloned for every STARTTLS upgrade. When nil, the server
	// certificate is verified against the system roots for Host.
	TLSConfig *tls.Config

	// LocalName is sent in EHLO. Defaults to "localhost".
	LocalName string
}

// Transport opens one SMTP session per Deliver call; nothing is pooled.
type Transport struct {
	cfg Config
}

// New creates a Transport. Credentials are not checked here; see Ready.
func New(cfg Config) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	return &Transport{cfg: cfg}
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "smtp"
}

// Addr returns host:port of the configured server.
func (t *Transport) Addr() string {
	return net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
}

// Ready reports ErrMissingCredentials when either credential is empty.
func (t *Transport) Ready() error {
	if t.cfg.Username == "" || t.cfg.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Deliver runs connect, EHLO, STARTTLS, EHLO, AUTH, MAIL, RCPT, DATA, QUIT.
// ctx is only consulted before dialing; once connected, the per-operation
// timeout is the sole bound.
func (t *Transport) Deliver(ctx context.Context, env *transport.Envelope) error {
	if err := t.Ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}

	dialer, err := t.dialer()
	if err != nil {
		return err
	}

	sender, err := dialer.Dial()
	if err != nil {
		var unsupported mail.StartTLSUnsupportedError
		if errors.As(err, &unsupported) {
			return fmt.Errorf("smtp: %s: %w", t.Addr(), ErrSTARTTLSUnsupported)
		}
		return fmt.Errorf("smtp: connect %s: %w", t.Addr(), err)
	}

	if err := sender.Send(env.From, env.To, env.Message); err != nil {
		_ = sender.Close()
		return fmt.Errorf("smtp: send: %w", err)
	}
	if err := sender.Close(); err != nil {
		return fmt.Errorf("smtp: quit: %w", err)
	}
	return nil
}

// dialer builds a fresh mail.Dialer per session: Dial caches the negotiated
// auth mechanism on the Dialer itself.
func (t *Transport) dialer() (*mail.Dialer, error) {
	tlsCfg, err := t.tlsConfig()
	if err != nil {
		return nil, err
	}
	return &mail.Dialer{
		Host:           t.cfg.Host,
		Port:           t.cfg.Port,
		Username:       t.cfg.Username,
		Password:       t.cfg.Password,
		TLSConfig:      tlsCfg,
		StartTLSPolicy: mail.MandatoryStartTLS,
		LocalName:      t.cfg.LocalName,
		Timeout:        t.cfg.Timeout,
		RetryFailure:   false,
	}, nil
}

func (t *Transport) tlsConfig() (*tls.Config, error) {
	if t.cfg.TLSConfig != nil {
		cfg := t.cfg.TLSConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = t.cfg.Host
		}
		return cfg, nil
	}
	cfg, err := tlsconfig.ClientConfig(tlsconfig.ClientOptions{ServerName: t.cfg.Host})
	if err != nil {
		return nil, fmt.Errorf("smtp: tls config: %w", err)
	}
	return cfg, nil
}
