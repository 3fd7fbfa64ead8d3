// Package events publishes instruction lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/ports/secondary"
)

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATSPublisher publishes events as JSON on <prefix>.instruction.<event>.
type NATSPublisher struct {
	conn   conn
	prefix string
}

// Connect dials url and returns a publisher plus the connection to drain on shutdown.
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("intake"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return NewNATSPublisher(nc, prefix), nc, nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(c conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: c, prefix: prefix}
}

// Subject returns the subject an event is published on.
func Subject(prefix, event string) string {
	parts := []string{"instruction", event}
	if p := strings.Trim(prefix, "."); p != "" {
		parts = append([]string{p}, parts...)
	}
	return strings.Join(parts, ".")
}

// Publish sends the event and flushes so a lost connection surfaces as an
// error and the task is retried. Nats-Msg-Id lets JetStream streams drop
// redeliveries.
func (p *NATSPublisher) Publish(ctx context.Context, event outbox.EventPayload) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := nats.NewMsg(Subject(p.prefix, event.Event))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.InstructionRef+":"+event.Event+":"+event.OccurredAt)
	msg.Header.Set("Instruction-Ref", event.InstructionRef)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush %s: %w", msg.Subject, err)
	}
	return nil
}

// Noop drops events. It is used when no broker is configured.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, outbox.EventPayload) error { return nil }

var (
	_ secondary.EventPublisher = (*NATSPublisher)(nil)
	_ secondary.EventPublisher = Noop{}
	_ conn                     = (*nats.Conn)(nil)
)
