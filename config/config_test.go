package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: memory
kafka:
  brokers: localhost:9092
fare:
  base_fare: 50
auth:
  jwt_secret: test-secret
`), 0o600))

	for _, k := range []string{"STORAGE_DRIVER", "KAFKA_BROKERS", "FARE_BASE_FARE", "AUTH_JWT_SECRET", "FARE_PER_KM_RATE", "ROUTING_TIMEOUT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 50.0, cfg.Fare.BaseFare)
	assert.Equal(t, 10.0, cfg.Fare.PerKmRate)
	assert.Equal(t, 3*time.Second, cfg.Routing.Timeout)

	var buf bytes.Buffer
	WriteConfig(&buf, cfg)
	assert.NotContains(t, buf.String(), "test-secret")
}

func TestLoad_InvalidStorage(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
