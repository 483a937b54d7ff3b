package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	"github.com/ariefcatur/go-diner-live.git/internal/events"
	"github.com/ariefcatur/go-diner-live.git/internal/redisx"
	"github.com/ariefcatur/go-diner-live.git/internal/store"
)

var (
	ErrNotSeated            = errors.New("user not seated")
	ErrDuplicateActiveOrder = errors.New("user already has an active order")
	ErrNoServedOrder        = errors.New("no served order to complete")
)

// maxPrepRetries: satu retry otomatis, setelah itu CANCELLED + notifikasi.
const maxPrepRetries = 1

// SeatIndex: cukup tahu user duduk di mana. Registry memenuhinya.
type SeatIndex interface {
	SeatOf(ctx context.Context, roomID, userID string) (int, error)
}

// ServeSink dipanggil saat order SERVED; manager consumable memenuhinya.
type ServeSink interface {
	OnOrderServed(ctx context.Context, order diner.Order) (diner.Consumable, error)
}

// Engine menjaga pipeline FIFO dengan satu slot preparasi per room.
// Semua state order hidup di store; engine tidak pegang copy otoritatif.
type Engine struct {
	Store   store.Store
	Emitter events.Emitter
	Seats   SeatIndex
	Sink    ServeSink
	Service string
	Log     zerolog.Logger

	// PrepareHook adalah langkah kerja dapur sebenarnya (generate aset,
	// TTS, dsb. di sistem penuh). Error di sini = PreparationFault.
	PrepareHook func(ctx context.Context, order diner.Order) error

	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Place memvalidasi kursi + menu, claim marker active (satu order aktif
// per user), lalu enqueue FIFO. Tidak pernah menunggu tick.
func (e *Engine) Place(ctx context.Context, userID, roomID string, seatID int, itemRef string) (string, error) {
	cur, err := e.Seats.SeatOf(ctx, roomID, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && cur != seatID) {
		return "", ErrNotSeated
	}
	if err != nil {
		return "", err
	}
	if _, err := diner.LookupMenuItem(itemRef); err != nil {
		return "", err
	}

	orderID := uuid.NewString()
	activeKey := fmt.Sprintf(redisx.KeyActiveOrder, userID)
	ok, err := e.Store.SetIfAbsent(ctx, activeKey, []byte(orderID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrDuplicateActiveOrder
	}

	order := diner.Order{
		ID:         orderID,
		UserID:     userID,
		RoomID:     roomID,
		SeatID:     seatID,
		ItemRef:    itemRef,
		Status:     diner.OrderQueued,
		EnqueuedAt: e.now(),
	}
	if err := e.writeOrder(ctx, order); err != nil {
		_ = e.Store.Delete(ctx, activeKey) // kompensasi claim
		return "", err
	}
	if err := e.Store.PushBack(ctx, fmt.Sprintf(redisx.KeyOrderQueue, roomID), orderID); err != nil {
		_ = e.Store.Delete(ctx, activeKey)
		_ = e.Store.Delete(ctx, fmt.Sprintf(redisx.KeyOrder, orderID))
		return "", err
	}
	e.emitStatus(order)
	e.Log.Info().Str("order", orderID).Str("user", userID).Str("item", itemRef).Msg("order queued")
	return orderID, nil
}

// CancelQueued membatalkan order user yang masih QUEUED (kursi divacate
// sebelum preparasi mulai). Order PREPARING dibiarkan selesai.
func (e *Engine) CancelQueued(ctx context.Context, userID string) error {
	activeKey := fmt.Sprintf(redisx.KeyActiveOrder, userID)
	b, err := e.Store.Get(ctx, activeKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	orderID := string(b)

	var cancelled *diner.Order
	err = e.Store.Update(ctx, fmt.Sprintf(redisx.KeyOrder, orderID), func(cur []byte) ([]byte, error) {
		if cur == nil {
			return nil, nil
		}
		var o diner.Order
		if err := json.Unmarshal(cur, &o); err != nil {
			return nil, nil
		}
		if o.Status != diner.OrderQueued {
			return cur, nil
		}
		o.Status = diner.OrderCancelled
		cancelled = &o
		out, _ := json.Marshal(o)
		return out, nil
	})
	if err != nil {
		return err
	}
	if cancelled == nil {
		return nil
	}
	if err := e.Store.Delete(ctx, activeKey); err != nil {
		return err
	}
	e.emitStatus(*cancelled)
	e.emitFinalized(*cancelled, diner.FinalCancelled, "seat vacated before preparation")
	// entry di queue tinggal jadi tombstone; worker skip saat pop
	return nil
}

// Complete menutup order SERVED milik user (plate slot) dan menghapus
// record panasnya. Arsip durable diurus consumer order.finalized.
func (e *Engine) Complete(ctx context.Context, userID string) (*diner.Order, error) {
	plateKey := fmt.Sprintf(redisx.KeyPlate, userID)
	b, err := e.Store.Get(ctx, plateKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoServedOrder
	}
	if err != nil {
		return nil, err
	}
	order, err := e.getOrder(ctx, string(b))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = e.Store.Delete(ctx, plateKey) // marker yatim
			return nil, ErrNoServedOrder
		}
		return nil, err
	}
	if err := e.Store.Delete(ctx, plateKey); err != nil {
		return nil, err
	}
	if err := e.Store.Delete(ctx, fmt.Sprintf(redisx.KeyOrder, order.ID)); err != nil {
		return nil, err
	}
	e.emitFinalized(*order, diner.FinalCompleted, "")
	e.Log.Info().Str("order", order.ID).Str("user", userID).Msg("order completed")
	return order, nil
}

type QueueStatus struct {
	QueueSize                 int64  `json:"queue_size"`
	ActiveOrdersCount         int64  `json:"active_orders_count"`
	MasterBusy                bool   `json:"master_busy"`
	CurrentlyPreparing        bool   `json:"currently_preparing"`
	CurrentlyPreparingOrderID string `json:"currently_preparing_order_id,omitempty"`
}

func (e *Engine) QueueStatus(ctx context.Context, roomID string) (QueueStatus, error) {
	var qs QueueStatus
	ids, err := e.Store.QueueItems(ctx, fmt.Sprintf(redisx.KeyOrderQueue, roomID))
	if err != nil {
		return qs, err
	}
	// tombstone cancel yang belum di-pop worker tidak ikut dihitung
	for _, id := range ids {
		o, err := e.getOrder(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return qs, err
		}
		if o.Status == diner.OrderQueued {
			qs.QueueSize++
		}
	}
	qs.ActiveOrdersCount = qs.QueueSize

	slot, err := e.slot(ctx, fmt.Sprintf(redisx.KeyKitchen, roomID))
	if err != nil {
		return qs, err
	}
	if slot != nil {
		qs.ActiveOrdersCount++
		qs.MasterBusy = true
		qs.CurrentlyPreparing = true
		qs.CurrentlyPreparingOrderID = slot.OrderID
	}
	serving, err := e.slot(ctx, fmt.Sprintf(redisx.KeyServing, roomID))
	if err != nil {
		return qs, err
	}
	if serving != nil {
		qs.MasterBusy = true
	}
	return qs, nil
}

func (e *Engine) slot(ctx context.Context, key string) (*diner.KitchenSlot, error) {
	b, err := e.Store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s diner.KitchenSlot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, nil
	}
	return &s, nil
}

func (e *Engine) getOrder(ctx context.Context, orderID string) (*diner.Order, error) {
	b, err := e.Store.Get(ctx, fmt.Sprintf(redisx.KeyOrder, orderID))
	if err != nil {
		return nil, err
	}
	var o diner.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return &o, nil
}

func (e *Engine) writeOrder(ctx context.Context, o diner.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return e.Store.Set(ctx, fmt.Sprintf(redisx.KeyOrder, o.ID), b)
}

// transition menulis perubahan status lewat tabel transisi; transisi
// ilegal ditolak di sini, bukan by convention.
func (e *Engine) transition(ctx context.Context, orderID string, to diner.OrderStatus, stamp func(o *diner.Order)) (*diner.Order, error) {
	var out *diner.Order
	err := e.Store.Update(ctx, fmt.Sprintf(redisx.KeyOrder, orderID), func(cur []byte) ([]byte, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var o diner.Order
		if err := json.Unmarshal(cur, &o); err != nil {
			return nil, err
		}
		if !diner.CanTransitionOrder(o.Status, to) {
			return nil, fmt.Errorf("illegal order transition %s -> %s", o.Status, to)
		}
		o.Status = to
		if stamp != nil {
			stamp(&o)
		}
		out = &o
		b, _ := json.Marshal(o)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) emitStatus(o diner.Order) {
	if e.Emitter == nil {
		return
	}
	env := events.NewEnvelope(e.Service, diner.EventOrderStatusChanged, o.ID,
		diner.OrderStatusChangedPayload{OrderID: o.ID, RoomID: o.RoomID, UserID: o.UserID, Status: o.Status})
	e.Emitter.Emit(diner.TopicOrderStatus, diner.OrderKey(o.ID), env)
}

func (e *Engine) emitFinalized(o diner.Order, final, reason string) {
	if e.Emitter == nil {
		return
	}
	env := events.NewEnvelope(e.Service, diner.EventOrderFinalized, o.ID,
		diner.OrderFinalizedPayload{OrderID: o.ID, FinalStatus: final, Reason: reason, Order: o})
	e.Emitter.Emit(diner.TopicOrderFinalized, diner.OrderKey(o.ID), env)
}
