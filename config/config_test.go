package config

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected *Config
	}{
		{
			name:    "default config",
			envVars: map[string]string{},
			expected: &Config{
				ProjectID:  "",
				LogLevel:   "info",
				ServerPort: "8080",
			},
		},
		{
			name: "custom config",
			envVars: map[string]string{
				"PROJECT_ID":  "custom-project",
				"LOG_LEVEL":   "debug",
				"SERVER_PORT": "9000",
			},
			expected: &Config{
				ProjectID:  "custom-project",
				LogLevel:   "debug",
				ServerPort: "9000",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("PROJECT_ID")
			os.Unsetenv("LOG_LEVEL")
			os.Unsetenv("SERVER_PORT")

			for key, value := range tt.envVars {
				os.Setenv(key, value)
				defer os.Unsetenv(key)
			}

			config := NewConfig()
			assert.Equal(t, tt.expected.ProjectID, config.ProjectID)
			assert.Equal(t, tt.expected.LogLevel, config.LogLevel)
			assert.Equal(t, tt.expected.ServerPort, config.ServerPort)
		})
	}
}

func TestNewConfigTrackingDefaults(t *testing.T) {
	for _, key := range []string{
		"SCRAPER_BASE_URL", "TRACKING_WORKERS", "TRACKING_QUEUE_SIZE",
		"TRACKING_ITEM_TIMEOUT", "EVENT_BUFFER_SIZE", "LOG_RING_SIZE",
	} {
		os.Unsetenv(key)
	}

	config := NewConfig()
	tracking := config.TrackingConfig

	assert.Equal(t, "http://localhost:8081", tracking.ScraperBaseURL)
	assert.Equal(t, 2, tracking.Workers)
	assert.Equal(t, 50, tracking.QueueSize)
	assert.Equal(t, 15*time.Second, tracking.ItemTimeout)
	assert.Equal(t, 200, tracking.EventBufferSize)
	assert.Equal(t, 100, tracking.LogRingSize)
	assert.Equal(t, 30*time.Second, tracking.HeartbeatInterval)
}

func TestNewConfigTrackingOverrides(t *testing.T) {
	os.Setenv("SCRAPER_BASE_URL", "http://scraper.internal:9090")
	os.Setenv("TRACKING_WORKERS", "8")
	os.Setenv("TRACKING_ITEM_TIMEOUT", "5s")
	defer func() {
		os.Unsetenv("SCRAPER_BASE_URL")
		os.Unsetenv("TRACKING_WORKERS")
		os.Unsetenv("TRACKING_ITEM_TIMEOUT")
	}()

	config := NewConfig()
	assert.Equal(t, "http://scraper.internal:9090", config.TrackingConfig.ScraperBaseURL)
	assert.Equal(t, 8, config.TrackingConfig.Workers)
	assert.Equal(t, 5*time.Second, config.TrackingConfig.ItemTimeout)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				TrackingConfig: TrackingConfig{ScraperBaseURL: "http://localhost:8081"},
			},
			wantErr: false,
		},
		{
			name:    "missing scraper base url",
			config:  &Config{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewServicesWithoutProjectID(t *testing.T) {
	os.Unsetenv("PROJECT_ID")

	config := NewConfig()
	services, err := NewServices(config)
	require.NoError(t, err, "missing PROJECT_ID disables archival, not startup")
	defer services.Close()

	// Datastore is absent, the rest of the graph is wired
	client, err := services.Container.GetDatastoreClient()
	require.NoError(t, err)
	assert.Nil(t, client)

	sched, err := services.Container.GetScheduler()
	require.NoError(t, err)
	assert.False(t, sched.Running())

	handler, err := services.Container.GetHandler()
	require.NoError(t, err)
	assert.NotNil(t, handler)
}

func TestGetEnv(t *testing.T) {
	// Test with existing env var
	os.Setenv("TEST_VAR", "test_value")
	defer os.Unsetenv("TEST_VAR")

	result := getEnv("TEST_VAR", "default")
	assert.Equal(t, "test_value", result)

	// Test with non-existing env var
	result = getEnv("NON_EXISTING_VAR", "default")
	assert.Equal(t, "default", result)
}

func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "45s")
	defer os.Unsetenv("TEST_DURATION")

	assert.Equal(t, 45*time.Second, getEnvDuration("TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("MISSING_DURATION", time.Minute))

	os.Setenv("TEST_DURATION", "not a duration")
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DURATION", time.Minute))
}

func TestServicesClose(t *testing.T) {
	logger := logrus.New()

	services := &Services{
		Logger: logger,
	}

	// Close without a container must not panic
	assert.NotPanics(t, func() {
		services.Close()
	}, "Close should not panic")
}
