package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	logger := zap.NewNop()
	config := Config{
		Addr:       mr.Addr(),
		DB:         0,
		DefaultTTL: 1 * time.Minute,
	}

	manager, err := NewManager(config, logger)
	require.NoError(t, err)

	return mr, manager
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	err := manager.Set(ctx, "test-key", "test-value", 1*time.Minute)
	require.NoError(t, err)

	value, err := manager.Get(ctx, "test-key")
	require.NoError(t, err)
	assert.Equal(t, "test-value", value)
}

func TestManager_GetMiss(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	_, err := manager.Get(context.Background(), "non-existent")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSONRoundTrip(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	in := []float64{0.1, 0.2, 0.3}
	require.NoError(t, manager.SetJSON(ctx, "embedding", in, 0))

	var out []float64
	require.NoError(t, manager.GetJSON(ctx, "embedding", &out))
	assert.Equal(t, in, out)
}

func TestManager_Delete(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", 0))
	require.NoError(t, manager.Delete(ctx, "k"))

	_, err := manager.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_ClosedOperations(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()

	require.NoError(t, manager.Close())

	_, err := manager.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, IsCacheMiss(err))

	// Close 幂等
	assert.NoError(t, manager.Close())
}
