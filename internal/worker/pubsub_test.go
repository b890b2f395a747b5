package worker_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/worker"
)

func TestDispatcher_Dispatch(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
		batches int
	}{
		{name: "cache warm all sites", payload: `{"job_type":"cache_warm"}`, batches: 4},
		{name: "cache warm named site", payload: `{"job_type":"cache_warm","sites":["Bern"]}`, batches: 1},
		{name: "health check", payload: `{"job_type":"health_check"}`, batches: 1},
		{name: "unknown job", payload: `{"job_type":"provider_refresh"}`, wantErr: worker.ErrUnknownJob},
		{name: "malformed", payload: `{"job_type":`, wantErr: worker.ErrMalformedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elev := &fakeElevation{}
			job := newJob(elev, nil, worker.WarmConfig{Sites: sites(), GridRadius: 0})
			d := worker.NewDispatcher(job, zerolog.Nop())

			err := d.Dispatch(context.Background(), []byte(tt.payload))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, elev.batches)
				return
			}
			require.NoError(t, err)
			assert.Len(t, elev.batches, tt.batches)
		})
	}
}

func TestDispatcher_CacheWarmFailsWhenMostSitesFail(t *testing.T) {
	elev := &fakeElevation{status: "ERROR"}
	job := newJob(elev, nil, worker.WarmConfig{Sites: sites(), GridRadius: 0})
	d := worker.NewDispatcher(job, zerolog.Nop())

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"cache_warm"}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many warming failures: 4/4")
}
