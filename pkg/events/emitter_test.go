package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/kafka"
)

type publishedMessage struct {
	Topic   string
	Key     string
	Headers kafka.MessageHeaders
	Value   []byte
}

type fakePublisher struct {
	published []publishedMessage
	err       error
}

func (p *fakePublisher) PublishToTopic(ctx context.Context, topic string, key string, headers kafka.MessageHeaders, value []byte) error {
	p.published = append(p.published, publishedMessage{Topic: topic, Key: key, Headers: headers, Value: value})
	return p.err
}

func newTestEmitter(publisher *fakePublisher) *events.Emitter {
	zapLogger, _ := zap.NewDevelopment()
	return events.NewEmitter(publisher, "board-events", zapadapter.NewZapEctoLogger(zapLogger, nil))
}

func TestEmitKeysByBoard(t *testing.T) {
	publisher := &fakePublisher{}
	emitter := newTestEmitter(publisher)

	emitter.Emit(context.Background(), &events.BoardEvent{
		Type:       events.TypeDealStageUpdated,
		TenantID:   "tenant-1",
		PipelineID: "pipe-1",
		DealID:     "deal-1",
	})

	require.Len(t, publisher.published, 1)
	msg := publisher.published[0]
	assert.Equal(t, "board-events", msg.Topic)

	// All events of one board share a key so they stay on one partition.
	assert.Equal(t, "tenant-1:pipe-1", msg.Key)
	assert.Equal(t, "tenant-1", msg.Headers.TenantID)
	assert.Equal(t, "pipe-1", msg.Headers.PipelineID)
	assert.Equal(t, string(events.TypeDealStageUpdated), msg.Headers.EventType)

	parsed, err := events.ParseBoardEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, events.TypeDealStageUpdated, parsed.Type)
	assert.Equal(t, "deal-1", parsed.DealID)
	assert.False(t, parsed.Timestamp.IsZero())
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	emitter := newTestEmitter(publisher)

	// Must not panic or propagate, the database write already committed.
	emitter.Emit(context.Background(), &events.BoardEvent{
		Type:       events.TypeDealUpdated,
		TenantID:   "tenant-1",
		PipelineID: "pipe-1",
	})
	assert.Len(t, publisher.published, 1)
}
