package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverMemory)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8000", c.HTTPAddr)
	assert.Equal(t, 5, c.WorkerConcurrency)
	assert.Equal(t, 10, c.Providers.ShortTextThreshold)
	assert.Equal(t, 3, c.Providers.MetricPoolSize)
	assert.Equal(t, 30*time.Second, c.Providers.Timeout)
	assert.Equal(t, "huggingface", c.Providers.Summary)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverPostgres)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("PROVIDER_TIMEOUT", "2s")
	t.Setenv("SHORT_TEXT_THRESHOLD", "25")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, c.Providers.Timeout)
	assert.Equal(t, 25, c.Providers.ShortTextThreshold)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing dsn", map[string]string{"STORE_DRIVER": DriverPostgres, "DATABASE_URL": ""}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "sqlite"}},
		{"bad timeout", map[string]string{"STORE_DRIVER": DriverMemory, "PROVIDER_TIMEOUT": "soon"}},
		{"negative pool", map[string]string{"STORE_DRIVER": DriverMemory, "METRIC_POOL_SIZE": "-1"}},
		{"bad concurrency", map[string]string{"STORE_DRIVER": DriverMemory, "WORKER_CONCURRENCY": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
