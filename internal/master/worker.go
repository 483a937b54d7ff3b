package master

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Worker menjalankan tick status master; cadence-nya independen dari
// decay tick dan boleh interleave bebas.
type Worker struct {
	Scheduler *Scheduler
	Rooms     []string
	Period    time.Duration
	Log       zerolog.Logger
}

func (w *Worker) Name() string { return "master" }

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, room := range w.Rooms {
				if err := w.Scheduler.TickRoom(ctx, room); err != nil {
					w.Log.Error().Err(err).Str("room", room).Msg("master tick failed")
				}
			}
		}
	}
}
