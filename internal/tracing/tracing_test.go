package tracing

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/moolen/groundwork/internal/config"
	"github.com/moolen/groundwork/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	t.Cleanup(logging.SetOutput(io.Discard))

	badCA := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(badCA, []byte("not a pem"), 0o600))

	tests := []struct {
		name        string
		cfg         config.TracingConfig
		expectError bool
	}{
		{
			name: "disabled",
			cfg:  config.TracingConfig{},
		},
		{
			name:        "enabled without endpoint",
			cfg:         config.TracingConfig{Enabled: true},
			expectError: true,
		},
		{
			name: "TLS with insecure skip verify",
			cfg: config.TracingConfig{
				Enabled:     true,
				Endpoint:    "localhost:4317",
				TLSInsecure: true,
			},
		},
		{
			name: "TLS with missing CA certificate",
			cfg: config.TracingConfig{
				Enabled:   true,
				Endpoint:  "localhost:4317",
				TLSCAPath: "/path/to/ca.crt",
			},
			expectError: true,
		},
		{
			name: "TLS with invalid CA certificate",
			cfg: config.TracingConfig{
				Enabled:   true,
				Endpoint:  "localhost:4317",
				TLSCAPath: badCA,
			},
			expectError: true,
		},
		{
			name: "no TLS",
			cfg: config.TracingConfig{
				Enabled:  true,
				Endpoint: "localhost:4317",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg, "test")
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, provider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Enabled, provider.IsEnabled())
			assert.NotNil(t, provider.Tracer("test"))
			require.NoError(t, provider.Start(context.Background()))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			// nothing buffered, so shutdown does not need the collector
			_ = provider.Stop(ctx)
		})
	}
}

func TestDisabledProviderStopIsNoop(t *testing.T) {
	provider, err := NewProvider(config.TracingConfig{}, "test")
	require.NoError(t, err)
	assert.NoError(t, provider.Stop(context.Background()))
}
