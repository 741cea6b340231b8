// Package notify delivers verification codes to account owners
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/nkiryanov/gopherauth/internal/logger"
)

type Sender interface {
	SendCode(ctx context.Context, email string, code string) error
}

const subject = "Password reset code"

func message(from string, to string, code string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your password reset code is %s\r\n", code)
	b.WriteString("If you did not request a password reset, ignore this message.\r\n")
	return []byte(b.String())
}

// Write messages to log instead of sending. Development only
type LogSender struct {
	Logger logger.Logger
}

func (s LogSender) SendCode(_ context.Context, email string, code string) error {
	s.Logger.Debug("Verification code message", "to", email, "subject", subject, "code", code)
	return nil
}

// Fails every send. Used outside development when no mail server is configured
type DisabledSender struct{}

func (DisabledSender) SendCode(context.Context, string, string) error {
	return ErrNoMailServer
}

var ErrNoMailServer = errors.New("no mail server configured")

const defaultSMTPTimeout = 30 * time.Second

type SMTPConfig struct {
	// host:port
	Addr string
	From string

	// Plain auth is used if username is set
	Username string
	Password string

	// Whole conversation deadline; default if zero
	Timeout time.Duration
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendCode(ctx context.Context, email string, code string) error {
	if strings.ContainsAny(email, "\r\n") {
		return fmt.Errorf("invalid recipient %q", email)
	}

	host, _, err := net.SplitHostPort(s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("invalid smtp address. Err: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err = s.send(ctx, host, email, message(s.cfg.From, email, code))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp error: %w", ctxErr)
		}
		return fmt.Errorf("smtp error: %w", err)
	}
	return nil
}

// Same conversation as smtp.SendMail, bound to ctx
func (s *SMTPSender) send(ctx context.Context, host string, to string, msg []byte) error {
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	// Closing the connection unblocks any pending read or write
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close() // nolint:errcheck

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)); err != nil {
			return err
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
