package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Anupam-Kumar2505/djsce-resources/internal/logging"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/mq"
	"github.com/Anupam-Kumar2505/djsce-resources/types"
)

// Catalogue lifecycle event names.
const (
	EventResourceUploaded = "resource.uploaded"
	EventResourceApproved = "resource.approved"
	EventResourceDeleted  = "resource.deleted"
)

// Events publishes catalogue lifecycle notifications. Publishing is
// best-effort: failures are logged and never surfaced to the request.
type Events interface {
	Publish(ctx context.Context, event string, file types.File)
}

type eventEnvelope struct {
	Event      string    `json:"event"`
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Subject    string    `json:"subject"`
	Type       string    `json:"type"`
	Year       string    `json:"year"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MQEvents publishes events to a message broker channel.
type MQEvents struct {
	queue   *mq.MQ
	channel string
	log     logging.Logger
}

func NewMQEvents(queue *mq.MQ, channel string, log logging.Logger) *MQEvents {
	return &MQEvents{queue: queue, channel: channel, log: log}
}

func (e *MQEvents) Publish(ctx context.Context, event string, file types.File) {
	envelope := eventEnvelope{
		Event:      event,
		ID:         file.ID,
		Name:       file.Name,
		Subject:    file.Subject,
		Type:       file.Type,
		Year:       file.Year,
		OccurredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		e.log.Error(ctx, "marshal event", "event", event, "err", err)
		return
	}
	attrs := map[string]string{"event": event}
	if _, err := e.queue.Publish(ctx, e.channel, data, attrs); err != nil {
		e.log.Error(ctx, "publish event", "event", event, "file_id", file.ID, "err", err)
	}
}

// NoopEvents is used when no broker is configured.
type NoopEvents struct{}

func (NoopEvents) Publish(context.Context, string, types.File) {}
