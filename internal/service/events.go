package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/models"
)

// EventSink receives node lifecycle events.
type EventSink interface {
	Publish(ctx context.Context, event models.NodeEvent) error
}

// EventSinkFunc allows using plain functions.
type EventSinkFunc func(ctx context.Context, event models.NodeEvent) error

// Publish implements EventSink.
func (f EventSinkFunc) Publish(ctx context.Context, event models.NodeEvent) error {
	return f(ctx, event)
}

// EventDispatcher fans events out to every sink. Sink failures are logged
// and never fail the mutation that raised the event.
type EventDispatcher struct {
	sinks  []EventSink
	logger *zap.Logger
}

// NewEventDispatcher constructs a dispatcher over sinks.
func NewEventDispatcher(logger *zap.Logger, sinks ...EventSink) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventDispatcher{sinks: sinks, logger: logger}
}

// Dispatch delivers event to every sink.
func (d *EventDispatcher) Dispatch(ctx context.Context, event models.NodeEvent) {
	if d == nil {
		return
	}
	for _, sink := range d.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			d.logger.Warn("failed to publish node event",
				zap.String("operation", string(event.Operation)),
				zap.String("node", event.Node.Hex()),
				zap.Error(err))
		}
	}
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditSink persists node events to the audit log.
type AuditSink struct {
	repo auditWriter
}

// NewAuditSink constructs the sink.
func NewAuditSink(repo auditWriter) *AuditSink {
	return &AuditSink{repo: repo}
}

// Publish implements EventSink.
func (a *AuditSink) Publish(ctx context.Context, event models.NodeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	resourceID := event.Node.Hex()
	entry := &models.AuditLog{
		Action:     "node." + string(event.Operation),
		Resource:   models.AuditResourceNode,
		ResourceID: &resourceID,
		NewValues:  body,
		CreatedAt:  event.Timestamp,
	}
	if event.Actor != nil {
		actor := event.Actor.Hex()
		entry.UserID = &actor
	}
	if info, ok := ClientInfoFrom(ctx); ok {
		entry.IPAddress, entry.UserAgent = info.IP, info.UserAgent
	}
	return a.repo.Create(ctx, entry)
}

// ClientInfo describes the remote caller of a request.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type clientInfoKey struct{}

// WithClientInfo attaches caller details for audit records.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// ClientInfoFrom returns the caller details attached to ctx.
func ClientInfoFrom(ctx context.Context) (ClientInfo, bool) {
	info, ok := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info, ok
}
