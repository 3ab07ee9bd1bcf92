package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const (
	outboxChannel      = "outbox_pending"
	outboxBatchSize    = 10
	defaultPollEvery   = 10 * time.Second
	defaultStaleAfter  = time.Minute
	listenWaitTimeout  = 30 * time.Second
	reconnectBackoff   = 2 * time.Second
	reconnectFailPause = 5 * time.Second
)

// OutboxWorker доставляет события из outbox-таблицы в Kafka. Будится по
// NOTIFY outbox_pending, а периодический опрос подбирает пропущенные
// уведомления и возвращает в очередь события, застрявшие в processing.
type OutboxWorker struct {
	repo       usecase.OutboxRepository
	logger     logger.Logger
	publisher  usecase.EventPublisher
	dbConnStr  string
	pollEvery  time.Duration
	staleAfter time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	publisher usecase.EventPublisher,
	dbConnStr string,
) *OutboxWorker {
	return &OutboxWorker{
		repo:       repo,
		logger:     logger,
		publisher:  publisher,
		dbConnStr:  dbConnStr,
		pollEvery:  defaultPollEvery,
		staleAfter: defaultStaleAfter,
	}
}

// Start запускает воркер. Пустая строка подключения отключает LISTEN,
// тогда остаётся только периодический опрос.
func (w *OutboxWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	if w.dbConnStr != "" {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.listenOutboxNotifications(ctx)
		}()
	}
}

func (w *OutboxWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *OutboxWorker) run(ctx context.Context) {
	w.logger.Infof("Draining pending outbox events on startup...")
	w.drain(ctx)

	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("Outbox worker stopped")
			return
		case <-ticker.C:
			released, err := w.repo.ReleaseStale(ctx, w.staleAfter)
			if err != nil && ctx.Err() == nil {
				w.logger.Warnf("release stale outbox events failed: %v", err)
			}
			if released > 0 {
				w.logger.Infof("Requeued %d stale outbox events", released)
			}
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn

	connect := func() error {
		c, err := pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err := c.Exec(ctx, "LISTEN "+outboxChannel); err != nil {
			_ = c.Close(ctx)
			return e.Wrap("failed to LISTEN", err)
		}

		conn = c
		w.logger.Infof("Subscribed to '%s' channel", outboxChannel)
		return nil
	}

	if err := connect(); err != nil {
		w.logger.Warnf("Initial connect failed, falling back to polling: %v", err)
		return
	}
	defer func() {
		if conn != nil {
			_ = conn.Close(context.Background())
		}
	}()

	for ctx.Err() == nil {
		if conn == nil {
			if !sleepCtx(ctx, reconnectBackoff) {
				return
			}
			if err := connect(); err != nil {
				w.logger.Warnf("Reconnect failed: %v", err)
				sleepCtx(ctx, reconnectFailPause)
			}
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, listenWaitTimeout)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
			_ = conn.Close(context.Background())
			conn = nil
			continue
		}

		if notif != nil && notif.Channel == outboxChannel {
			w.logger.Debugf("Received outbox notification, draining outbox events")
			w.drain(ctx)
		}
	}
}

// drain обрабатывает батчи, пока outbox не опустеет.
func (w *OutboxWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warnf("Batch processing failed: %v", err)
			}
			return
		}
		if !hasMore {
			return
		}
	}
}

// processBatch возвращает true, если в батче было хоть одно успешно
// отправленное событие. Неотправленные остаются в processing до ReleaseStale.
func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, outboxBatchSize)
	if err != nil {
		return false, err
	}

	sent := 0
	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			w.logger.Warnf("outbox event %s not delivered: %v", event.EventID, err)
			continue
		}
		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
			continue
		}
		sent++
	}

	return sent > 0, nil
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *usecase.OutboxEvent) error {
	var payload domain.ProductEvent
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return e.Wrap("Malformed outbox payload", err)
	}

	if err := w.publisher.Publish(ctx, &payload); err != nil {
		if isRetryableError(err) {
			return e.Wrap("Temporary Kafka failure, will retry", err)
		}
		return e.Wrap("Permanent Kafka failure", err)
	}

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
