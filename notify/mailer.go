package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/phonetica/phonauth"
)

// SMTPConfig configures a [Mailer].
type SMTPConfig struct {
	Host     string
	Port     int
	Login    string
	Password string
	// Sender is the From address. It defaults to Login.
	Sender string

	AppName      string
	DocsURL      string
	CommunityURL string
	DashboardURL string

	DialTimeout time.Duration
	TLSConfig   *tls.Config
}

// Mailer is a phonauth.Notifier that sends the welcome mail over SMTPS.
type Mailer struct {
	cfg  SMTPConfig
	send func(ctx context.Context, from string, to []string, msg []byte) error
}

var _ phonauth.Notifier = (*Mailer)(nil)

func NewMailer(cfg SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("notify: smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 465
	}
	if cfg.Sender == "" {
		cfg.Sender = cfg.Login
	}
	if _, err := mail.ParseAddress(cfg.Sender); err != nil {
		return nil, fmt.Errorf("notify: invalid sender %q: %w", cfg.Sender, err)
	}
	if cfg.AppName == "" {
		cfg.AppName = "Phonetica"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	m := &Mailer{cfg: cfg}
	m.send = m.sendTLS
	return m, nil
}

// SendWelcome renders and delivers the welcome mail to email.
func (m *Mailer) SendWelcome(ctx context.Context, email, name string) error {
	if name == "" {
		name = email
	}
	msg, err := m.compose(email, Welcome{
		AppName:      m.cfg.AppName,
		Name:         name,
		DocsURL:      m.cfg.DocsURL,
		CommunityURL: m.cfg.CommunityURL,
		DashboardURL: m.cfg.DashboardURL,
	})
	if err != nil {
		return err
	}
	from, _ := mail.ParseAddress(m.cfg.Sender)
	if err := m.send(ctx, from.Address, []string{email}, msg); err != nil {
		return fmt.Errorf("send welcome mail: %w", err)
	}
	return nil
}

// compose builds a multipart/alternative message with a text and an HTML
// part.
func (m *Mailer) compose(to string, data Welcome) ([]byte, error) {
	var text, html bytes.Buffer
	if err := welcomeText.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render welcome text: %w", err)
	}
	if err := welcomeHTML.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render welcome html: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=\"UTF-8\"", text.Bytes()},
		{"text/html; charset=\"UTF-8\"", html.Bytes()},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	subject := "Welcome to " + data.AppName
	headers := []string{
		"From: " + m.cfg.Sender,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + mw.Boundary(),
		"",
		"",
	}
	return append([]byte(strings.Join(headers, "\r\n")), body.Bytes()...), nil
}

// sendTLS dials the server with implicit TLS, authenticates and submits msg.
func (m *Mailer) sendTLS(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsCfg := m.cfg.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
	}

	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: m.cfg.DialTimeout}, Config: tlsCfg}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if m.cfg.Login != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Login, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}
