package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is the connectivity probe surface of a dependency.
type Pinger interface {
	Ping() error
}

// Checker handles health check endpoints
type Checker struct {
	source    Pinger
	warehouse Pinger
	search    func() error
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a new health checker. The search probe may be nil when
// the cluster should not gate health.
func NewChecker(source Pinger, warehouse Pinger, search func() error, version string) *Checker {
	return &Checker{
		source:    source,
		warehouse: warehouse,
		search:    search,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

func (c *Checker) check(probe func() error) *CheckResult {
	start := time.Now()
	if err := probe(); err != nil {
		return &CheckResult{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	}
	return &CheckResult{
		Status:  "healthy",
		Latency: time.Since(start).String(),
	}
}

// Health returns the overall health status
func (c *Checker) Health(ctx echo.Context) error {
	status := &HealthStatus{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now(),
	}

	if c.source != nil {
		status.Checks["source_database"] = c.check(c.source.Ping)
	} else {
		status.Checks["source_database"] = &CheckResult{Status: "unhealthy", Message: "source database not configured"}
	}

	if c.warehouse != nil {
		status.Checks["warehouse_database"] = c.check(c.warehouse.Ping)
	} else {
		status.Checks["warehouse_database"] = &CheckResult{Status: "unhealthy", Message: "warehouse database not configured"}
	}

	if c.search != nil {
		status.Checks["elasticsearch"] = c.check(c.search)
	}

	for _, result := range status.Checks {
		if result.Status != "healthy" {
			status.Status = "unhealthy"
			break
		}
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return ctx.JSON(httpStatus, status)
}

// Live returns the liveness status (is the service running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready.Load() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
