// Package trigger exposes manual run endpoints for operators, mirroring
// what the scheduler does on its own.
package trigger

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/internal/jobs"
)

// Runner is the orchestrator surface the trigger routes need.
type Runner interface {
	RunWarehouse(ctx context.Context) error
	RunSearch(ctx context.Context) error
	RunAll(ctx context.Context) error
}

// Handler serves the manual trigger routes.
type Handler struct {
	runner Runner
	logger ectologger.Logger
}

func NewHandler(runner Runner, logger ectologger.Logger) *Handler {
	return &Handler{
		runner: runner,
		logger: logger,
	}
}

// Register registers trigger routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/jobs/warehouse", h.TriggerWarehouse)
	g.POST("/jobs/search", h.TriggerSearch)
	g.POST("/jobs/all", h.TriggerAll)
}

// TriggerWarehouse runs the warehouse pipeline synchronously.
func (h *Handler) TriggerWarehouse(c echo.Context) error {
	return h.trigger(c, jobs.JobWarehouse, h.runner.RunWarehouse)
}

// TriggerSearch runs the search pipeline synchronously.
func (h *Handler) TriggerSearch(c echo.Context) error {
	return h.trigger(c, jobs.JobSearch, h.runner.RunSearch)
}

// TriggerAll runs both pipelines.
func (h *Handler) TriggerAll(c echo.Context) error {
	return h.trigger(c, "all", h.runner.RunAll)
}

func (h *Handler) trigger(c echo.Context, job string, run func(ctx context.Context) error) error {
	ctx := c.Request().Context()

	h.logger.WithContext(ctx).WithFields(map[string]any{"job": job}).Info("Manual run triggered")

	if err := run(ctx); err != nil {
		if errors.Is(err, jobs.ErrRunInProgress) {
			return httperror.NewHTTPError(http.StatusConflict, "a run is already in progress")
		}
		h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job": job}).Error("Manual run failed")
		return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "completed",
		"job":    job,
	})
}
