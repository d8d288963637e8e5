package services

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"time"
)

// ClientCounter reports the number of connected log stream clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService answers the probe endpoints of the web UI.
type HealthService struct {
	build   VersionInfo
	store   *ResultStore
	clients ClientCounter
	logger  *slog.Logger
}

// HealthStatus is the body of /api/health and /api/health/live.
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   *RuntimeInfo             `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// RuntimeInfo describes the serving process.
type RuntimeInfo struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
}

// ServiceHealth is the state of one component: ready or disabled.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// VersionInfo describes the running build.
type VersionInfo struct {
	Version   string    `json:"version"`
	BuildTime string    `json:"build_time,omitempty"`
	BuildID   string    `json:"build_id,omitempty"`
	GoVersion string    `json:"go_version"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
	Uptime    float64   `json:"uptime_seconds"`
	StartTime time.Time `json:"start_time"`
}

// NewHealthService creates a health service. store and clients may be nil,
// in which case their components report disabled.
func NewHealthService(version, buildTime, buildID string, store *ResultStore, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	hs := &HealthService{
		build: VersionInfo{
			Version:   version,
			BuildTime: buildTime,
			BuildID:   buildID,
			GoVersion: runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			StartTime: time.Now(),
		},
		store:   store,
		clients: clients,
		logger:  logger,
	}
	logger.Debug("health service initialized", slog.String("version", version), slog.String("build_id", buildID))
	return hs
}

func (hs *HealthService) uptime() float64 {
	return time.Since(hs.build.StartTime).Seconds()
}

// HealthCheck reports the result store and log stream alongside process
// runtime figures.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.build.Version,
		Runtime:   &RuntimeInfo{UptimeSeconds: hs.uptime(), Goroutines: runtime.NumGoroutine()},
		Services:  map[string]ServiceHealth{"results": hs.results(), "websocket": hs.logStream()},
	}
	hs.logger.DebugContext(ctx, "health check completed", slog.String("status", status.Status))
	return status
}

// LivenessCheck only proves the process is serving.
func (hs *HealthService) LivenessCheck(context.Context) HealthStatus {
	return HealthStatus{Status: "alive", Timestamp: time.Now(), Version: hs.build.Version}
}

func (hs *HealthService) Version() VersionInfo {
	v := hs.build
	v.Uptime = hs.uptime()
	return v
}

func (hs *HealthService) results() ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{Status: "disabled"}
	}
	return ServiceHealth{Status: "ready", Message: count(hs.store.Len(), "batch", "batches") + " retained"}
}

func (hs *HealthService) logStream() ServiceHealth {
	if hs.clients == nil {
		return ServiceHealth{Status: "disabled"}
	}
	return ServiceHealth{Status: "ready", Message: count(hs.clients.ClientCount(), "client", "clients") + " connected"}
}

func count(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
