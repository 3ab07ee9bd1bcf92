package ml_service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var pngData = []byte("\x89PNG\r\n\x1a\n0000000000000000")

type fakeModel struct {
	mu       sync.Mutex
	calls    int
	errs     []error
	mimes    []string
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeModel) EmbedImage(ctx context.Context, _ []byte, mimeType string) (domain.Vector, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.mimes = append(f.mimes, mimeType)
	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	return domain.Vector{0.6, 0.8}, nil
}

func (f *fakeModel) Version() string { return "fake-v1" }

func newTestService(model EmbeddingModel, maxConcurrent int) *MLService {
	svc := NewMLService(model,
		&cfg.MLServiceCfg{MaxConcurrent: maxConcurrent, MaxRetries: 3, RequestsPerSecond: 1000, Burst: 100},
		&cfg.MinIOCfg{MaxImageSize: 1024, FetchTimeout: time.Second},
		logger.NewNopLogger(),
	)
	svc.backoff = func(int) time.Duration { return time.Millisecond }
	return svc
}

func TestVectorizeRequest_FromBytes(t *testing.T) {
	model := &fakeModel{}
	svc := newTestService(model, 2)

	res, err := svc.VectorizeRequest(context.Background(),
		usecase.NewVectorizeReq(usecase.NewProductImage(pngData, "", int64(len(pngData)), "a.png"), ""))
	require.NoError(t, err)
	assert.Equal(t, domain.Vector{0.6, 0.8}, res.Vector)
	assert.Equal(t, "fake-v1", res.ModelVersion)
	assert.Equal(t, []string{"image/png"}, model.mimes)
}

func TestVectorizeRequest_FromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngData)
	}))
	t.Cleanup(srv.Close)

	model := &fakeModel{}
	svc := newTestService(model, 2)
	svc.httpClient = srv.Client()

	res, err := svc.VectorizeRequest(context.Background(), usecase.NewVectorizeReq(nil, srv.URL+"/q.png"))
	require.NoError(t, err)
	assert.Len(t, res.Vector, 2)

	_, err = svc.VectorizeRequest(context.Background(), usecase.NewVectorizeReq(nil, ""))
	assert.ErrorIs(t, err, e.ErrNoImages)
	assert.Equal(t, 1, model.calls)
}

func TestVectorizeRequest_RetriesTransientErrors(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("503"), errors.New("503")}}
	svc := newTestService(model, 1)

	res, err := svc.VectorizeRequest(context.Background(),
		usecase.NewVectorizeReq(usecase.NewProductImage(pngData, "image/png", 1, "a"), ""))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Vector)
	assert.Equal(t, 3, model.calls)
}

func TestVectorizeRequest_GivesUpWithEmbeddingError(t *testing.T) {
	boom := errors.New("503")
	model := &fakeModel{errs: []error{boom, boom, boom, boom}}
	svc := newTestService(model, 1)

	_, err := svc.VectorizeRequest(context.Background(),
		usecase.NewVectorizeReq(usecase.NewProductImage(pngData, "image/png", 1, "a"), ""))
	require.ErrorIs(t, err, e.ErrEmbedding)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, model.calls)
}

func TestVectorizeRequest_DoesNotRetryEmptyResult(t *testing.T) {
	model := &fakeModel{errs: []error{e.ErrEmptyCaption}}
	svc := newTestService(model, 1)

	_, err := svc.VectorizeRequest(context.Background(),
		usecase.NewVectorizeReq(usecase.NewProductImage(pngData, "image/png", 1, "a"), ""))
	require.ErrorIs(t, err, e.ErrEmptyCaption)
	assert.Equal(t, e.KindEmbedding, e.Kind(err))
	assert.Equal(t, 1, model.calls)
}

func TestVectorizeRequest_RespectsCancellation(t *testing.T) {
	model := &fakeModel{delay: time.Second}
	svc := newTestService(model, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.VectorizeRequest(ctx, usecase.NewVectorizeReq(usecase.NewProductImage(pngData, "image/png", 1, "a"), ""))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestVectorizeRequest_BoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	model := &fakeModel{delay: 10 * time.Millisecond}
	svc := newTestService(model, 2)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.VectorizeRequest(context.Background(),
				usecase.NewVectorizeReq(usecase.NewProductImage(pngData, "image/png", 1, "a"), ""))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, model.maxSeen.Load(), int32(2))
	assert.Equal(t, 8, model.calls)
}
