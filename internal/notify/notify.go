// Package notify publishes moderation events for administrators. Delivery is
// best effort: a failed publish is logged and never affects the reply.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is the NATS subject moderation events are published on.
const DefaultSubject = "autoresponder.moderation.flagged"

// Event describes a message that triggered the moderation warning.
type Event struct {
	ChatID string `json:"chat_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text"`
	Term   string `json:"term"`
	Ts     int64  `json:"ts"`
}

// Notifier delivers moderation events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	Subject       string
	ReconnectWait time.Duration
	MaxReconnects int
}

// DefaultConfig returns sensible defaults for a local NATS server.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "autoresponder",
		Subject:       DefaultSubject,
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// publisher is the subset of *nats.Conn used for publishing.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes events as JSON on a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	logger  *zap.Logger
}

// NewNATS connects to NATS and returns a ready notifier.
func NewNATS(cfg Config, logger *zap.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.Info("nats connected", zap.String("url", nc.ConnectedUrl()), zap.String("subject", cfg.Subject))

	return &NATSNotifier{conn: nc, pub: nc, subject: cfg.Subject, logger: logger}, nil
}

// Notify publishes ev. The context is accepted for interface symmetry; NATS
// publishes are buffered and do not block on the server.
func (n *NATSNotifier) Notify(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal moderation event: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", n.subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (n *NATSNotifier) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.logger.Warn("nats drain failed", zap.Error(err))
		n.conn.Close()
	}
}
