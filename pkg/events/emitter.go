package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Publisher is the subset of the Kafka producer the emitter needs
type Publisher interface {
	PublishToTopic(ctx context.Context, topic string, key string, headers kafka.MessageHeaders, value []byte) error
}

// Emitter publishes board events to Kafka. Emission failures are logged and
// swallowed: the database write already succeeded, so the mutation must not be
// reported as failed just because the announcement did not go out.
type Emitter struct {
	producer Publisher
	topic    string
	logger   ectologger.Logger
}

// NewEmitter creates a new board event emitter
func NewEmitter(producer Publisher, topic string, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Emit publishes a board event. The message key is tenant:pipeline so all
// events of one board land on the same partition and stay ordered.
func (e *Emitter) Emit(ctx context.Context, event *BoardEvent) {
	event.Timestamp = time.Now().UTC()
	event.TraceID = tracing.GetTraceID(ctx)
	event.SpanID = tracing.GetSpanID(ctx)

	data, err := event.ToJSON()
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to serialize board event")
		return
	}

	key := fmt.Sprintf("%s:%s", event.TenantID, event.PipelineID)
	headers := kafka.MessageHeaders{
		TenantID:   event.TenantID,
		PipelineID: event.PipelineID,
		EventType:  string(event.Type),
	}
	if event.TraceID != "" {
		headers.TraceParent = tracing.GetTraceParent(ctx)
	}

	if err := e.producer.PublishToTopic(ctx, e.topic, key, headers, data); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"type":        event.Type,
			"pipeline_id": event.PipelineID,
		}).Error("Failed to publish board event")
		return
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"type":        event.Type,
		"pipeline_id": event.PipelineID,
		"deal_id":     event.DealID,
	}).Debug("Published board event")
}
