package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_Disabled(t *testing.T) {
	providers, err := Init(Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, providers)

	// Noop providers shut down cleanly.
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestShutdown_NilReceiver(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "satrag", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
}
