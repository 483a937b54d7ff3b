package kafka

import (
	"context"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafkago.Message) error

type Consumer struct {
	r       *kafkago.Reader
	workers int
	log     zerolog.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log zerolog.Logger) *Consumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafkago.Message, 256)
	done := make(chan struct{})

	for i := 0; i < c.workers; i++ {
		go func() {
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					c.log.Warn().Err(err).Str("topic", m.Topic).Msg("handler failed, offset not committed")
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn().Err(err).Msg("commit failed")
				}
			}
			done <- struct{}{}
		}()
	}

	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			close(jobs)
			for i := 0; i < c.workers; i++ {
				<-done
			}
			select {
			case <-ctx.Done():
				return nil // shutdown normal, jangan berisik
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			return nil
		}
	}
}
