package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	kafkax "github.com/ariefcatur/go-diner-live.git/internal/kafka"
	"github.com/ariefcatur/go-diner-live.git/internal/redisx"
)

// Service meng-arsip event order.finalized. Dipasang sebagai handler
// consumer; return nil = offset boleh di-commit.
type Service struct {
	Repo        *Repo
	Redis       *redis.Client
	ServiceName string
	Log         zerolog.Logger
}

func (s *Service) HandleOrderFinalized(ctx context.Context, m kafkago.Message) error {
	var env diner.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != diner.EventOrderFinalized {
		return nil // bukan urusan kita
	}

	// dedup via Redis pakai event_id
	dkey := fmt.Sprintf(redisx.KeyDedup, "archive", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[diner.OrderFinalizedPayload](env.Payload)
	if err != nil {
		return err
	}

	if ok, _ := s.Repo.SudahDiarsip(ctx, p.OrderID); ok {
		return nil
	}
	if err := s.Repo.Insert(ctx, p); err != nil {
		return err
	}
	s.Log.Info().Str("order", p.OrderID).Str("final", p.FinalStatus).Msg("order archived")
	return nil
}
