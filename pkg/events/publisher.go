package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ibsadiq/scms-backend-sub000/pkg/config"
)

// Result lifecycle event types. Report rendering and notification delivery subscribe to these.
const (
	TypeResultsComputed    = "computed"
	TypeResultsPublished   = "published"
	TypeResultsUnpublished = "unpublished"
)

// ResultEvent describes a change to the stored results of one term and classroom.
type ResultEvent struct {
	Type        string      `json:"type"`
	TermID      string      `json:"term_id"`
	ClassroomID string      `json:"classroom_id"`
	StudentID   string      `json:"student_id,omitempty"`
	Affected    int         `json:"affected"`
	Detail      interface{} `json:"detail,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Publisher emits result lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event ResultEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ResultEvent) error { return nil }

// NATSPublisher publishes events as JSON on "<prefix>.<type>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(conn *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, prefix: strings.Trim(prefix, "."), logger: logger}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, event ResultEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal result event: %w", err)
	}
	subject := p.Subject(event.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("result event published", zap.String("subject", subject), zap.String("term_id", event.TermID), zap.String("classroom_id", event.ClassroomID))
	return nil
}

// Connect dials NATS. It returns a nil connection when no URL is configured.
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}
