package openelevation_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/elevation/openelevation"
	"github.com/stratotrack/stratotrack/internal/geo"
	"github.com/stratotrack/stratotrack/internal/provider/resilience"
)

func TestClient_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/lookup", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Locations []struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"locations"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Locations, 2)

		_, _ = w.Write([]byte(`{"results":[
			{"latitude":27.98,"longitude":86.92,"elevation":8725},
			{"latitude":28.0,"longitude":87.0,"elevation":6100}
		]}`))
	}))
	defer server.Close()

	client := openelevation.NewClient(openelevation.ClientConfig{BaseURL: server.URL})

	samples, err := client.GetBatchElevation(context.Background(), []geo.Point{
		geo.NewPoint(27.98, 86.92),
		geo.NewPoint(28.0, 87.0),
	})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 8725.0, samples[0].Elevation)
	assert.Equal(t, openelevation.ProviderName, samples[1].DataSource)
}

func TestClient_VoidSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"latitude":0,"longitude":0,"elevation":-32768}]}`))
	}))
	defer server.Close()

	client := openelevation.NewClient(openelevation.ClientConfig{BaseURL: server.URL})
	_, err := client.GetElevation(context.Background(), 0, 0)

	var unavailable *resilience.DataUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := openelevation.NewClient(openelevation.ClientConfig{BaseURL: server.URL})
	_, err := client.GetElevation(context.Background(), 0, 0)
	assert.True(t, resilience.IsRateLimited(err))
}
