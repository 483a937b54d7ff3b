package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	"github.com/ariefcatur/go-diner-live.git/internal/redisx"
	"github.com/ariefcatur/go-diner-live.git/internal/store"
)

// TickRoom memutar pipeline satu room satu langkah:
//  1. order READY dari pass sebelumnya di-serve (delivery step),
//  2. order PREPARING yang sudah selesai dipromosikan ke READY,
//     dan order QUEUED berikutnya langsung masuk slot.
//
// Invariant: maksimal satu order PREPARING per room, FIFO by enqueued_at.
func (e *Engine) TickRoom(ctx context.Context, roomID string) error {
	if err := e.servePending(ctx, roomID); err != nil {
		return err
	}
	if err := e.advanceSlot(ctx, roomID); err != nil {
		return err
	}
	return e.promoteNext(ctx, roomID)
}

func (e *Engine) servePending(ctx context.Context, roomID string) error {
	servingKey := fmt.Sprintf(redisx.KeyServing, roomID)
	slot, err := e.slot(ctx, servingKey)
	if err != nil || slot == nil {
		return err
	}
	order, err := e.getOrder(ctx, slot.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return e.Store.Delete(ctx, servingKey) // slot yatim, self-heal
	}
	if err != nil {
		return err
	}

	// user bisa pindah/keluar selama order dimasak; consumable harus
	// nempel ke kursi dia sekarang, bukan kursi saat pesan
	curSeat, err := e.Seats.SeatOf(ctx, order.RoomID, order.UserID)
	seated := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	served, err := e.transition(ctx, order.ID, diner.OrderServed, func(o *diner.Order) {
		t := e.now()
		o.ServedAt = &t
		if seated {
			o.SeatID = curSeat
		}
	})
	if err != nil {
		return err
	}
	if err := e.Store.Set(ctx, fmt.Sprintf(redisx.KeyPlate, served.UserID), []byte(served.ID)); err != nil {
		return err
	}
	if err := e.Store.Delete(ctx, servingKey); err != nil {
		return err
	}
	e.emitStatus(*served)
	// kursi kosong: jangan bikin consumable yatim; restore saat rejoin
	// yang membangun ulang dari record order SERVED
	if e.Sink != nil && seated {
		if _, err := e.Sink.OnOrderServed(ctx, *served); err != nil {
			// consumable bisa di-restore dari order record; jangan gagalkan serve
			e.Log.Error().Err(err).Str("order", served.ID).Msg("consumable creation failed")
		}
	}
	e.Log.Info().Str("order", served.ID).Str("room", roomID).Msg("order served")
	return nil
}

func (e *Engine) advanceSlot(ctx context.Context, roomID string) error {
	kitchenKey := fmt.Sprintf(redisx.KeyKitchen, roomID)
	slot, err := e.slot(ctx, kitchenKey)
	if err != nil || slot == nil {
		return err
	}
	order, err := e.getOrder(ctx, slot.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return e.Store.Delete(ctx, kitchenKey)
	}
	if err != nil {
		return err
	}
	if order.Status != diner.OrderPreparing || order.PreparationStartedAt == nil {
		return e.Store.Delete(ctx, kitchenKey)
	}

	item, err := diner.LookupMenuItem(order.ItemRef)
	if err != nil {
		item.PrepSeconds = 10 // item dihapus dari katalog; pakai durasi wajar
	}
	if e.now().Sub(*order.PreparationStartedAt) < time.Duration(item.PrepSeconds)*time.Second {
		return nil // masih dimasak
	}

	ready, err := e.transition(ctx, order.ID, diner.OrderReady, func(o *diner.Order) {
		t := e.now()
		o.ReadyAt = &t
	})
	if err != nil {
		return err
	}
	// order sudah keluar dari antrian aktif; user boleh pesan lagi
	if err := e.Store.Delete(ctx, fmt.Sprintf(redisx.KeyActiveOrder, ready.UserID)); err != nil {
		return err
	}
	b, _ := json.Marshal(diner.KitchenSlot{OrderID: ready.ID, Since: e.now()})
	if err := e.Store.Set(ctx, fmt.Sprintf(redisx.KeyServing, roomID), b); err != nil {
		return err
	}
	if err := e.Store.Delete(ctx, kitchenKey); err != nil {
		return err
	}
	e.emitStatus(*ready)
	return nil
}

// promoteNext mengisi slot dapur dari kepala antrian, skip tombstone
// (order yang sudah CANCELLED saat kursi divacate).
func (e *Engine) promoteNext(ctx context.Context, roomID string) error {
	kitchenKey := fmt.Sprintf(redisx.KeyKitchen, roomID)
	if slot, err := e.slot(ctx, kitchenKey); err != nil || slot != nil {
		return err
	}
	queueKey := fmt.Sprintf(redisx.KeyOrderQueue, roomID)

	for {
		orderID, err := e.Store.PopFront(ctx, queueKey)
		if errors.Is(err, store.ErrNotFound) {
			return nil // antrian kosong
		}
		if err != nil {
			return err
		}
		order, err := e.getOrder(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if order.Status != diner.OrderQueued {
			continue
		}

		if e.PrepareHook != nil {
			if hookErr := e.PrepareHook(ctx, *order); hookErr != nil {
				if err := e.handlePrepFault(ctx, queueKey, *order, hookErr); err != nil {
					return err
				}
				if order.Retries < maxPrepRetries {
					return nil // balik ke kepala antrian, dicoba lagi tick depan
				}
				continue // sudah CANCELLED, ambil order berikutnya
			}
		}

		prep, err := e.transition(ctx, orderID, diner.OrderPreparing, func(o *diner.Order) {
			t := e.now()
			o.PreparationStartedAt = &t
		})
		if err != nil {
			return err
		}
		b, _ := json.Marshal(diner.KitchenSlot{OrderID: prep.ID, Since: e.now()})
		if err := e.Store.Set(ctx, kitchenKey, b); err != nil {
			return err
		}
		e.emitStatus(*prep)
		e.Log.Info().Str("order", prep.ID).Str("room", roomID).Msg("order preparing")
		return nil
	}
}

// handlePrepFault: fault pertama balikin order ke kepala antrian,
// fault kedua CANCELLED + notifikasi user lewat event status.
func (e *Engine) handlePrepFault(ctx context.Context, queueKey string, order diner.Order, cause error) error {
	e.Log.Warn().Err(cause).Str("order", order.ID).Int("retries", order.Retries).Msg("preparation fault")

	if order.Retries < maxPrepRetries {
		err := e.Store.Update(ctx, fmt.Sprintf(redisx.KeyOrder, order.ID), func(cur []byte) ([]byte, error) {
			if cur == nil {
				return nil, nil
			}
			var o diner.Order
			if err := json.Unmarshal(cur, &o); err != nil {
				return nil, err
			}
			o.Retries++
			b, _ := json.Marshal(o)
			return b, nil
		})
		if err != nil {
			return err
		}
		return e.Store.PushFront(ctx, queueKey, order.ID)
	}

	cancelled, err := e.transition(ctx, order.ID, diner.OrderCancelled, nil)
	if err != nil {
		return err
	}
	if err := e.Store.Delete(ctx, fmt.Sprintf(redisx.KeyActiveOrder, order.UserID)); err != nil {
		return err
	}
	e.emitStatus(*cancelled)
	e.emitFinalized(*cancelled, diner.FinalFailed, "preparation failed after retry")
	return nil
}

// Worker menjalankan pipeline di atas tick tetap; handler request tidak
// pernah menunggu loop ini.
type Worker struct {
	Engine *Engine
	Rooms  []string
	Period time.Duration
	Log    zerolog.Logger
}

func (w *Worker) Name() string { return "kitchen" }

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, room := range w.Rooms {
				if err := w.Engine.TickRoom(ctx, room); err != nil {
					w.Log.Error().Err(err).Str("room", room).Msg("kitchen tick failed")
				}
			}
		}
	}
}
