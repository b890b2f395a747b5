package resilience_test

import (
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/provider/resilience"
)

func TestRegistry_RegisterAndGetHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("usgs")
	cfg.Registry = registry

	client := resilience.NewClient(cfg)

	assert.Equal(t, 1, registry.ProviderCount())
	assert.Equal(t, "usgs", client.Name())

	health := registry.GetHealth("usgs")
	require.NotNil(t, health)
	assert.Equal(t, "usgs", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register("open-meteo", nil)
	assert.Equal(t, 1, registry.ProviderCount())

	registry.Unregister("open-meteo")

	assert.Equal(t, 0, registry.ProviderCount())
	assert.Nil(t, registry.GetHealth("open-meteo"))
}

func TestRegistry_RecordSuccessAndFailure(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register("open-elevation", nil)

	health := registry.GetHealth("open-elevation")
	require.NotNil(t, health)
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	registry.RecordSuccess("open-elevation")
	registry.RecordFailure("open-elevation", assert.AnError)
	registry.RecordFailure("open-elevation", assert.AnError)

	health = registry.GetHealth("open-elevation")
	require.NotNil(t, health)
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastFailureAt, time.Second)
	assert.Equal(t, int64(1), health.Successes)
	assert.Equal(t, int64(2), health.Failures)
	assert.Equal(t, assert.AnError.Error(), health.LastError)
}

func TestRegistry_RecordRegistersUnknownProviders(t *testing.T) {
	registry := resilience.NewRegistry()

	registry.RecordSuccess("mock")

	health := registry.GetHealth("mock")
	require.NotNil(t, health)
	assert.True(t, health.IsHealthy())
}

func TestRegistry_GetAllHealthSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"usgs", "open-elevation", "open-meteo"} {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		_ = resilience.NewClient(cfg)
	}

	healthList := registry.GetAllHealth()
	require.Len(t, healthList, 3)
	assert.Equal(t, "open-elevation", healthList[0].Name)
	assert.Equal(t, "open-meteo", healthList[1].Name)
	assert.Equal(t, "usgs", healthList[2].Name)
}

func TestRegistry_GetHealthNotFound(t *testing.T) {
	assert.Nil(t, resilience.NewRegistry().GetHealth("nonexistent"))
}

func TestProviderHealth_States(t *testing.T) {
	tests := []struct {
		state      gobreaker.State
		isHealthy  bool
		isDegraded bool
		isUnhealth bool
	}{
		{gobreaker.StateClosed, true, false, false},
		{gobreaker.StateHalfOpen, false, true, false},
		{gobreaker.StateOpen, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.isHealthy, h.IsHealthy())
			assert.Equal(t, tt.isDegraded, h.IsDegraded())
			assert.Equal(t, tt.isUnhealth, h.IsUnhealthy())
		})
	}
}
