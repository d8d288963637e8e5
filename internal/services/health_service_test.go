package services

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactcli/internal/shared/testutil"
)

type fakeClients int

func (f fakeClients) ClientCount() int { return int(f) }

func TestHealthCheck(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	store := NewResultStore(0, 0)
	store.Put(&Batch{ID: "b1"})

	hs := NewHealthService("v1.2.0", "2024-01-01", "abc", store, fakeClients(2), logger)
	status := hs.HealthCheck(context.Background())

	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "v1.2.0", status.Version)
	require.Contains(t, status.Services, "results")
	assert.Equal(t, ServiceHealth{Status: "ready", Message: "1 batch retained"}, status.Services["results"])
	assert.Equal(t, ServiceHealth{Status: "ready", Message: "2 clients connected"}, status.Services["websocket"])
}

func TestHealthCheckWithoutComponents(t *testing.T) {
	hs := NewHealthService("dev", "", "", nil, nil, nil)
	status := hs.HealthCheck(context.Background())

	assert.Equal(t, ServiceHealth{Status: "disabled"}, status.Services["results"])
	assert.Equal(t, ServiceHealth{Status: "disabled"}, status.Services["websocket"])
	assert.Equal(t, "alive", hs.LivenessCheck(context.Background()).Status)
}

func TestVersion(t *testing.T) {
	hs := NewHealthService("v1.2.0", "2024-01-01", "abc", nil, nil, nil)
	v := hs.Version()

	assert.Equal(t, "v1.2.0", v.Version)
	assert.Equal(t, "abc", v.BuildID)
	assert.Equal(t, runtime.Version(), v.GoVersion)
	assert.GreaterOrEqual(t, v.Uptime, 0.0)
}
