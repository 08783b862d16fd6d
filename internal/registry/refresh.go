package registry

import (
	"context"
	"fmt"
	"log/slog"

	rcron "github.com/robfig/cron/v3"
)

// Refresher re-fetches the accessor's current filter on a cron schedule.
type Refresher struct {
	cron   *rcron.Cron
	logger *slog.Logger
}

// StartRefresh schedules Accessor.Refresh using a standard five-field cron
// expression or a descriptor such as "@every 5m".
func StartRefresh(a *Accessor, spec string, logger *slog.Logger) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := rcron.New()
	if _, err := c.AddFunc(spec, func() {
		token := a.Refresh()
		logger.Debug("Scheduled registry refresh", "token", token)
	}); err != nil {
		return nil, fmt.Errorf("schedule registry refresh %q: %w", spec, err)
	}
	c.Start()
	logger.Info("Registry refresh scheduled", "spec", spec)
	return &Refresher{cron: c, logger: logger}, nil
}

// Stop halts the schedule and waits for a running refresh trigger, or ctx.
func (r *Refresher) Stop(ctx context.Context) {
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		r.logger.Warn("Registry refresh stop timed out", "error", ctx.Err())
	}
}
