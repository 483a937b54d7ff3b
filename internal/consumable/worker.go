package consumable

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Worker menjalankan decay tick pada periode tetap.
type Worker struct {
	Manager *Manager
	Log     zerolog.Logger
}

func (w *Worker) Name() string { return "decay" }

func (w *Worker) Run(ctx context.Context) error {
	period := w.Manager.TickPeriod
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Manager.Tick(ctx); err != nil {
				w.Log.Error().Err(err).Msg("decay tick failed")
			}
		}
	}
}
