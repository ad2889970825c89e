package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brensch/campwatch/internal/ridb"
	"github.com/robfig/cron/v3"
)

// RunScheduled calls Run on a cron schedule until ctx is cancelled. A run that
// is still going when the next tick fires causes that tick to be skipped. A
// key failure stops the schedule and is returned.
func (m *Monitor) RunScheduled(ctx context.Context, spec string, windows []Window) error {
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := m.Run(ctx, windows); err != nil {
			if errors.Is(err, ridb.ErrAuth) {
				cancel(err)
				return
			}
			m.logger.Warn("scheduled run ended early", slog.Any("err", err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	m.logger.Info("schedule started", slog.String("spec", spec))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	if cause := context.Cause(ctx); errors.Is(cause, ridb.ErrAuth) {
		return cause
	}
	return nil
}
