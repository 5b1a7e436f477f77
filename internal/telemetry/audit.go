package telemetry

import (
	"context"
	"log"
	"time"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Recorder appends audit entries to durable storage and mirrors them onto
// the message broker. Both legs are fire-and-forget: failures are logged
// and never surfaced to the caller.
type Recorder struct {
	repo        repositories.AuditRepository
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int                  `json:"schema_version"`
	EventType     string               `json:"event_type"`
	OccurredAt    string               `json:"occurred_at"`
	Service       string               `json:"service"`
	Environment   string               `json:"environment"`
	Payload       models.AuditLogEntry `json:"payload"`
}

func NewRecorder(repo repositories.AuditRepository, publisher Publisher, routingKey, service, environment string) *Recorder {
	return &Recorder{
		repo:        repo,
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Record persists one audit entry and publishes it. Safe on a nil
// receiver so callers never have to guard.
func (r *Recorder) Record(ctx context.Context, entry models.AuditLogEntry) {
	if r == nil {
		return
	}

	if r.repo != nil {
		if err := r.repo.Append(ctx, entry); err != nil {
			log.Printf("audit append failed: action=%s user_id=%d err=%v", entry.ActionType, entry.UserID, err)
		}
	}

	if r.publisher == nil {
		return
	}
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       r.service,
		Environment:   r.environment,
		Payload:       entry,
	}
	if err := r.publisher.Publish(ctx, r.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
