package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMailer(t *testing.T) *Mailer {
	t.Helper()
	m, err := NewMailer(SMTPConfig{
		Host:         "smtp.example.com",
		Login:        "robot@example.com",
		Sender:       "Phonetica <hello@example.com>",
		AppName:      "Phonetica",
		DashboardURL: "https://app.example.com/dashboard",
	})
	require.NoError(t, err)
	return m
}

func TestNewMailerDefaults(t *testing.T) {
	m, err := NewMailer(SMTPConfig{Host: "smtp.example.com", Login: "robot@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 465, m.cfg.Port)
	assert.Equal(t, "robot@example.com", m.cfg.Sender)
	assert.Equal(t, "Phonetica", m.cfg.AppName)

	_, err = NewMailer(SMTPConfig{Login: "robot@example.com"})
	assert.Error(t, err)

	_, err = NewMailer(SMTPConfig{Host: "smtp.example.com", Sender: "not an address"})
	assert.Error(t, err)
}

func TestSendWelcomeComposesAlternativeMessage(t *testing.T) {
	m := newTestMailer(t)

	var (
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	m.send = func(_ context.Context, from string, to []string, msg []byte) error {
		gotFrom, gotTo, gotMsg = from, to, msg
		return nil
	}

	require.NoError(t, m.SendWelcome(context.Background(), "dana@example.com", "Dana <3"))
	assert.Equal(t, "hello@example.com", gotFrom)
	assert.Equal(t, []string{"dana@example.com"}, gotTo)

	msg, err := mail.ReadMessage(bytes.NewReader(gotMsg))
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Phonetica", msg.Header.Get("Subject"))
	assert.Equal(t, "dana@example.com", msg.Header.Get("To"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	parts := map[string]string{}
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		ct, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
		body, err := io.ReadAll(p)
		require.NoError(t, err)
		parts[ct] = string(body)
	}

	require.Contains(t, parts, "text/plain")
	require.Contains(t, parts, "text/html")
	assert.Contains(t, parts["text/plain"], "Welcome to Phonetica, Dana <3!")
	assert.Contains(t, parts["text/plain"], "https://app.example.com/dashboard")
	assert.NotContains(t, parts["text/plain"], "getting started guide")
	assert.Contains(t, parts["text/html"], "Dana &lt;3")
	assert.True(t, strings.Contains(parts["text/html"], "Go to Dashboard"))
}

func TestSendWelcomeWrapsTransportError(t *testing.T) {
	m := newTestMailer(t)
	boom := errors.New("connection refused")
	m.send = func(context.Context, string, []string, []byte) error { return boom }

	err := m.SendWelcome(context.Background(), "dana@example.com", "")
	require.ErrorIs(t, err, boom)
}

type captureLogger struct{ msgs []string }

func (c *captureLogger) Debug(_ context.Context, msg string, _ ...any) { c.msgs = append(c.msgs, msg) }
func (c *captureLogger) Info(_ context.Context, msg string, _ ...any)  { c.msgs = append(c.msgs, msg) }
func (c *captureLogger) Warn(_ context.Context, msg string, _ ...any)  { c.msgs = append(c.msgs, msg) }
func (c *captureLogger) Error(_ context.Context, msg string, _ ...any) { c.msgs = append(c.msgs, msg) }

func TestLogNotifier(t *testing.T) {
	l := &captureLogger{}
	require.NoError(t, LogNotifier{Logger: l}.SendWelcome(context.Background(), "a@example.com", "A"))
	assert.Len(t, l.msgs, 1)

	require.NoError(t, LogNotifier{}.SendWelcome(context.Background(), "a@example.com", "A"))
}
