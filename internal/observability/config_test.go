package observability

import (
	"testing"

	"github.com/smallbiznis/taxledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "development", OTLPEndpoint: "collector:4317"})

	assert.Equal(t, "taxledger", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.False(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigCarriesAppSettings(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:           "ledger-api",
		Environment:       "production",
		LogLevel:          "warn",
		OTelEnabled:       true,
		OTLPProtocol:      "http",
		OTelSamplingRatio: 7,
	})

	assert.Equal(t, "ledger-api", cfg.ServiceName)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())

	cfg = LoadConfig(config.Config{Environment: "production", LogLevel: "debug"})
	assert.True(t, cfg.Debug())
}
