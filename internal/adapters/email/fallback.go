package email

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/intake/internal/ports/secondary"
)

// FallbackMailer tries Primary and, if it fails, Fallback.
type FallbackMailer struct {
	Primary  secondary.Mailer
	Fallback secondary.Mailer
	Logger   *zap.Logger
}

// Send returns nil if either transport delivered the message.
func (m *FallbackMailer) Send(ctx context.Context, email secondary.Email) error {
	err := m.Primary.Send(ctx, email)
	if err == nil {
		return nil
	}
	if m.Logger != nil {
		m.Logger.Warn("primary mail transport failed, trying fallback",
			zap.String("primary", m.Primary.Transport()),
			zap.String("fallback", m.Fallback.Transport()),
			zap.Error(err))
	}

	if fbErr := m.Fallback.Send(ctx, email); fbErr != nil {
		return errors.Join(err, fbErr)
	}
	return nil
}

// Transport names both transports, e.g. "graph+smtp".
func (m *FallbackMailer) Transport() string {
	return m.Primary.Transport() + "+" + m.Fallback.Transport()
}

// DebugMailer logs messages instead of sending them.
type DebugMailer struct {
	Logger *zap.Logger
}

// Send logs the envelope and never fails.
func (m *DebugMailer) Send(_ context.Context, email secondary.Email) error {
	m.Logger.Info("debug email",
		zap.Strings("to", email.To),
		zap.String("subject", email.Subject),
		zap.Int("body_bytes", len(email.HTMLBody)))
	return nil
}

// Transport returns "debug".
func (m *DebugMailer) Transport() string { return "debug" }

var (
	_ secondary.Mailer = (*FallbackMailer)(nil)
	_ secondary.Mailer = (*DebugMailer)(nil)
)
