// Package scheduler fires the pipeline runs at configured wall-clock times.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner with daily HH:MM registrations.
type Scheduler struct {
	cron   *cron.Cron
	logger ectologger.Logger
}

func New(logger ectologger.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// cronSpec converts an HH:MM wall-clock time into a daily cron expression.
func cronSpec(t string) (string, error) {
	parts := strings.Split(t, ":")
	if len(parts) != 2 {
		return "", errors.Errorf("expected HH:MM, got %q", t)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", errors.Errorf("invalid hour in %q", t)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", errors.Errorf("invalid minute in %q", t)
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// RegisterDaily schedules run once per day at each of the given HH:MM
// times. Run errors are logged, not fatal; the next firing still happens.
func (s *Scheduler) RegisterDaily(times []string, name string, run func(ctx context.Context) error) error {
	for _, t := range times {
		t := strings.TrimSpace(t)
		if t == "" {
			continue
		}

		spec, err := cronSpec(t)
		if err != nil {
			return errors.Wrapf(err, "invalid schedule time %q", t)
		}

		if _, err := s.cron.AddFunc(spec, func() {
			ctx := context.Background()
			s.logger.WithContext(ctx).WithFields(map[string]any{
				"job":  name,
				"time": t,
			}).Info("Scheduled run firing")

			if err := run(ctx); err != nil {
				s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"job": name,
				}).Error("Scheduled run failed")
			}
		}); err != nil {
			return errors.Wrapf(err, "failed to register schedule %q", t)
		}

		s.logger.WithFields(map[string]any{
			"job":  name,
			"time": t,
		}).Info("Registered daily schedule")
	}

	return nil
}

// EntryCount returns the number of registered schedules.
func (s *Scheduler) EntryCount() int {
	return len(s.cron.Entries())
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Gave up waiting for running jobs to finish")
	}
}
