package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/intake/internal/ports/secondary"
)

var testEmail = secondary.Email{
	To:       []string{"jane@example.com", "ac@firm.example"},
	Subject:  "Your instruction HLX-1-a is confirmed",
	HTMLBody: "<p>Hello</p>",
}

func TestGraphMailer_Send(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		got  sendMailRequest
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"graph-tok","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer graph-tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req sendMailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		path, got = r.URL.Path, req
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := NewGraphMailer(context.Background(), GraphConfig{
		TenantID:     "tenant",
		ClientID:     "app",
		ClientSecret: "secret",
		From:         "automations@firm.example",
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
		Timeout:      2 * time.Second,
	})

	require.NoError(t, m.Send(context.Background(), testEmail))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/users/automations@firm.example/sendMail", path)
	assert.Equal(t, testEmail.Subject, got.Message.Subject)
	assert.Equal(t, "HTML", got.Message.Body.ContentType)
	assert.Equal(t, "<p>Hello</p>", got.Message.Body.Content)
	require.Len(t, got.Message.ToRecipients, 2)
	assert.Equal(t, "ac@firm.example", got.Message.ToRecipients[1].EmailAddress.Address)
	assert.Equal(t, "graph", m.Transport())
}

func TestGraphMailer_Rejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"graph-tok","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":"ErrorAccessDenied"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := NewGraphMailer(context.Background(), GraphConfig{From: "a@firm.example", BaseURL: srv.URL, TokenURL: srv.URL + "/token"})
	err := m.Send(context.Background(), testEmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph sendMail returned 403")
}

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.firm.example", Username: "u", Password: "p", From: "automations@firm.example"})
	m.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	var (
		addr string
		to   []string
		msg  string
		auth smtp.Auth
	)
	m.send = func(a string, au smtp.Auth, from string, rcpt []string, body []byte) error {
		addr, auth, to, msg = a, au, rcpt, string(body)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), testEmail))
	assert.Equal(t, "smtp.firm.example:587", addr)
	assert.NotNil(t, auth)
	assert.Equal(t, testEmail.To, to)
	assert.True(t, strings.HasPrefix(msg, "From: automations@firm.example\r\nTo: jane@example.com, ac@firm.example\r\n"))
	assert.Contains(t, msg, "Subject: Your instruction HLX-1-a is confirmed\r\n")
	assert.Contains(t, msg, "Date: Sun, 01 Mar 2026 10:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>Hello</p>"))
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.firm.example", Port: 25})
	m.send = func(a string, au smtp.Auth, from string, rcpt []string, body []byte) error {
		assert.Nil(t, au)
		assert.Equal(t, "smtp.firm.example:25", a)
		return errors.New("connection refused")
	}
	assert.ErrorContains(t, m.Send(context.Background(), testEmail), "smtp send failed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, testEmail), context.Canceled)
}

type fakeMailer struct {
	name string
	err  error
	sent int
}

func (f *fakeMailer) Send(context.Context, secondary.Email) error {
	f.sent++
	return f.err
}

func (f *fakeMailer) Transport() string { return f.name }

func TestFallbackMailer(t *testing.T) {
	t.Run("primary succeeds", func(t *testing.T) {
		primary, fallback := &fakeMailer{name: "graph"}, &fakeMailer{name: "smtp"}
		m := &FallbackMailer{Primary: primary, Fallback: fallback}
		require.NoError(t, m.Send(context.Background(), testEmail))
		assert.Equal(t, 1, primary.sent)
		assert.Zero(t, fallback.sent)
		assert.Equal(t, "graph+smtp", m.Transport())
	})

	t.Run("fallback used", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		primary, fallback := &fakeMailer{name: "graph", err: errors.New("503")}, &fakeMailer{name: "smtp"}
		m := &FallbackMailer{Primary: primary, Fallback: fallback, Logger: zap.New(core)}
		require.NoError(t, m.Send(context.Background(), testEmail))
		assert.Equal(t, 1, fallback.sent)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("both fail", func(t *testing.T) {
		first, second := errors.New("graph down"), errors.New("smtp down")
		m := &FallbackMailer{Primary: &fakeMailer{name: "graph", err: first}, Fallback: &fakeMailer{name: "smtp", err: second}}
		err := m.Send(context.Background(), testEmail)
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
	})
}

func TestDebugMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := &DebugMailer{Logger: zap.New(core)}

	require.NoError(t, m.Send(context.Background(), testEmail))
	entries := logs.FilterMessage("debug email").All()
	require.Len(t, entries, 1)
	assert.Equal(t, testEmail.Subject, entries[0].ContextMap()["subject"])
	assert.Equal(t, "debug", m.Transport())
}
