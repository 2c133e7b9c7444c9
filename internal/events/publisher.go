// Package events mirrors lifecycle and audit activity onto a message bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dmitrijs2005/estatekeeper/internal/logging"
)

const (
	SubjectDocumentCompleted = "documents.completed"
	SubjectDocumentDeleted   = "documents.deleted"
	SubjectDocumentFailed    = "documents.failed"
	auditSubjectPrefix       = "audit."
)

// AuditSubject returns the subject audit entries of eventType go to.
func AuditSubject(eventType string) string {
	return auditSubjectPrefix + eventType
}

// DocumentEvent is the payload of documents.* subjects.
type DocumentEvent struct {
	DocumentID string    `json:"document_id"`
	OwnerID    string    `json:"owner_id"`
	ActorID    string    `json:"actor_id"`
	Status     string    `json:"status"`
	Version    int64     `json:"version"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers payloads to subjects. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON payloads with core NATS.
type NATSPublisher struct {
	conn natsConn
}

var natsConnect = func(url string, opts ...nats.Option) (natsConn, error) {
	return nats.Connect(url, opts...)
}

// NewNATSPublisher connects to url with unlimited reconnects.
func NewNATSPublisher(url string, logger logging.Logger) (*NATSPublisher, error) {
	ctx := context.Background()
	conn, err := natsConnect(url,
		nats.Name("estatekeeper"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn(ctx, "nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info(ctx, "nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
