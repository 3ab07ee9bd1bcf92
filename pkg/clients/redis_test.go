package clients

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewRedisClient(&cfg.RedisCfg{Addr: mr.Addr(), DialTimeout: time.Second, Timeout: time.Second})
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Ping(context.Background()))
}

func TestRedisClient_PingUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := NewRedisClient(&cfg.RedisCfg{Addr: addr, DialTimeout: 100 * time.Millisecond, Timeout: 100 * time.Millisecond})
	defer func() { _ = client.Close() }()

	require.Error(t, client.Ping(context.Background()))
}
