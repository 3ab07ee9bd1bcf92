package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func testEvent() *domain.ProductEvent {
	return &domain.ProductEvent{
		EventID:    "evt-1",
		EventType:  domain.EventTypeProductIndexed,
		ProductID:  "prod-1",
		Category:   "shoes",
		ImageURL:   "http://cdn/1.png",
		OccurredAt: time.Date(2025, 5, 6, 7, 8, 9, 10, time.UTC),
	}
}

func TestProducer_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, logger: logger.NewNopLogger(), cfg: &cfg.KafkaCfg{Topic: "product-events"}}

	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.Len(t, writer.msgs, 1)

	msg := writer.msgs[0]
	assert.Equal(t, "prod-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, domain.EventTypeProductIndexed, string(msg.Headers[0].Value))

	decoded, err := DecodeEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, testEvent().ProductID, decoded.ProductID)
	assert.Equal(t, testEvent().Category, decoded.Category)
	assert.True(t, testEvent().OccurredAt.Equal(decoded.OccurredAt))
}

func TestProducer_PublishError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker not available")}
	p := &Producer{writer: writer, logger: logger.NewNopLogger(), cfg: &cfg.KafkaCfg{}}

	err := p.Publish(context.Background(), testEvent())
	require.Error(t, err)
	assert.True(t, isRetryableError(err))
}

func TestDecodeEvent_Garbage(t *testing.T) {
	_, err := DecodeEvent([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}
