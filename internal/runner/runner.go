package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const restartDelay = 500 * time.Millisecond

// Worker adalah loop periodik (kitchen, decay, master tick).
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Supervisor menjalankan tiap worker di goroutine sendiri dan restart
// saat error/panic; fault satu worker tidak merobohkan yang lain.
type Supervisor struct {
	Log     zerolog.Logger
	workers []Worker
	wg      sync.WaitGroup
}

func NewSupervisor(log zerolog.Logger) *Supervisor {
	return &Supervisor{Log: log}
}

func (s *Supervisor) Add(w ...Worker) *Supervisor {
	s.workers = append(s.workers, w...)
	return s
}

func (s *Supervisor) Run(ctx context.Context) {
	for _, w := range s.workers {
		s.start(ctx, w)
	}
	s.wg.Wait()
}

func (s *Supervisor) start(ctx context.Context, w Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			err := s.runOnce(ctx, w)
			if ctx.Err() != nil {
				s.Log.Info().Str("worker", w.Name()).Msg("worker stopped")
				return
			}
			if err == nil {
				s.Log.Info().Str("worker", w.Name()).Msg("worker finished")
				return
			}
			s.Log.Warn().Err(err).Str("worker", w.Name()).Msg("worker crashed, restarting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(restartDelay):
			}
		}
	}()
}

func (s *Supervisor) runOnce(ctx context.Context, w Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.Run(ctx)
}
