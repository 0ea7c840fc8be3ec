package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.NotEmpty(t, cfg.AllowedOrigins)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://example.com, https://chat.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"http://example.com", "https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize)
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")

	cfg := NewConfigFromEnv()
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
}

func TestSetConfigSanitizes(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{
		Port:           "",
		AllowedOrigins: []string{" http://Example.com ", "", "not a url"},
		MaxMessageSize: -1,
	})

	cfg := currentConfig()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, []string{"http://example.com"}, cfg.AllowedOrigins)
}

func TestSetConfigNilResetsDefaults(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{Port: ":1234"})
	SetConfig(nil)

	assert.Equal(t, ":8080", currentConfig().Port)
}
