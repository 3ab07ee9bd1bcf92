package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/internal/usecase/mocks"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

type fakeOutbox struct {
	mu       sync.Mutex
	events   []*usecase.OutboxEvent
	released int
}

func (f *fakeOutbox) add(t *testing.T, id int64, event *domain.ProductEvent) {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, &usecase.OutboxEvent{
		ID: id, EventID: event.EventID, ProductID: event.ProductID,
		Payload: payload, Status: usecase.OutboxStatusPending,
	})
}

func (f *fakeOutbox) GetAndMarkAsProcessing(_ context.Context, limit int) ([]*usecase.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var res []*usecase.OutboxEvent
	for _, ev := range f.events {
		if len(res) == limit {
			break
		}
		if ev.Status == usecase.OutboxStatusPending {
			ev.Status = usecase.OutboxStatusProcessing
			res = append(res, ev)
		}
	}
	return res, nil
}

func (f *fakeOutbox) MarkAsProcessed(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID == id {
			ev.Status = usecase.OutboxStatusProcessed
		}
	}
	return nil
}

func (f *fakeOutbox) ReleaseStale(context.Context, time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, ev := range f.events {
		if ev.Status == usecase.OutboxStatusProcessing {
			ev.Status = usecase.OutboxStatusPending
			n++
		}
	}
	f.released += int(n)
	return n, nil
}

func (f *fakeOutbox) statuses() map[int64]usecase.OutboxStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make(map[int64]usecase.OutboxStatus, len(f.events))
	for _, ev := range f.events {
		res[ev.ID] = ev.Status
	}
	return res
}

func TestOutboxWorker_DeliversAndRequeuesFailed(t *testing.T) {
	defer goleak.VerifyNone(t)

	outbox := &fakeOutbox{}
	for i, id := range []string{"p1", "p2", "p3"} {
		outbox.add(t, int64(i+1), &domain.ProductEvent{EventID: "e-" + id, ProductID: id})
	}

	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)

	var mu sync.Mutex
	delivered := make(map[string]int)
	failedOnce := false
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ev *domain.ProductEvent) error {
			mu.Lock()
			defer mu.Unlock()
			if ev.ProductID == "p2" && !failedOnce {
				failedOnce = true
				return errors.New("connection refused")
			}
			delivered[ev.ProductID]++
			return nil
		}).MinTimes(4)

	w := NewOutboxWorker(outbox, logger.NewNopLogger(), publisher, "")
	w.pollEvery = 5 * time.Millisecond
	w.Start(context.Background())

	require.Eventually(t, func() bool {
		for _, status := range outbox.statuses() {
			if status != usecase.OutboxStatusProcessed {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"p1": 1, "p2": 1, "p3": 1}, delivered)
	assert.GreaterOrEqual(t, outbox.released, 1)
}

func TestOutboxWorker_MalformedPayloadStaysUndelivered(t *testing.T) {
	defer goleak.VerifyNone(t)

	outbox := &fakeOutbox{events: []*usecase.OutboxEvent{
		{ID: 1, EventID: "bad", Payload: []byte("{"), Status: usecase.OutboxStatusPending},
	}}

	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)

	w := NewOutboxWorker(outbox, logger.NewNopLogger(), publisher, "")
	w.pollEvery = time.Hour

	hasMore, err := w.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Equal(t, usecase.OutboxStatusProcessing, outbox.statuses()[1])
}
