package consumable

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	"github.com/ariefcatur/go-diner-live.git/internal/events"
	"github.com/ariefcatur/go-diner-live.git/internal/redisx"
	"github.com/ariefcatur/go-diner-live.git/internal/store"
)

func newManager() (*Manager, *events.Recorder, *time.Time) {
	rec := events.NewRecorder()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := &Manager{
		Store:        store.NewMemory(),
		Emitter:      rec,
		Service:      "test",
		Log:          zerolog.Nop(),
		TickPeriod:   time.Second,
		RefreshEvery: 5,
		Now:          func() time.Time { return now },
	}
	return m, rec, &now
}

func servedOrder(id, userID string, seatID int, itemRef string, servedAt time.Time) diner.Order {
	return diner.Order{
		ID: id, UserID: userID, RoomID: "main", SeatID: seatID,
		ItemRef: itemRef, Status: diner.OrderServed, ServedAt: &servedAt,
	}
}

func TestOnOrderServed_DurationFromMenu(t *testing.T) {
	req := require.New(t)
	m, _, now := newManager()
	ctx := context.Background()

	c, err := m.OnOrderServed(ctx, servedOrder("o1", "u1", 2, "coffee", *now))
	req.NoError(err)
	req.Equal(300, c.DurationSeconds)
	req.Equal(300, c.RemainingSeconds)
	req.Equal(diner.ItemDrink, c.ItemType)

	// serve ulang order yang sama tidak menduplikasi
	_, err = m.OnOrderServed(ctx, servedOrder("o1", "u1", 2, "coffee", *now))
	req.NoError(err)
	list, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Len(list, 1)
}

func TestTick_Decrement(t *testing.T) {
	req := require.New(t)
	m, _, now := newManager()
	ctx := context.Background()

	_, err := m.OnOrderServed(ctx, servedOrder("o1", "u1", 2, "coffee", *now))
	req.NoError(err)

	for i := 0; i < 3; i++ {
		req.NoError(m.Tick(ctx))
	}
	list, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Len(list, 1)
	req.Equal(297, list[0].RemainingSeconds)
}

func TestTick_ExpiryExactlyOnce(t *testing.T) {
	req := require.New(t)
	m, rec, now := newManager()
	ctx := context.Background()

	order := servedOrder("o1", "u1", 2, "coffee", *now)
	b, _ := json.Marshal(order)
	req.NoError(m.Store.Set(ctx, fmt.Sprintf(redisx.KeyOrder, "o1"), b))
	req.NoError(m.Store.Set(ctx, fmt.Sprintf(redisx.KeyPlate, "u1"), []byte("o1")))

	_, err := m.OnOrderServed(ctx, order)
	req.NoError(err)

	// paksa remaining ke 1, lalu dua tick: expiry hanya sekali
	k := key("u1", "main", 2)
	req.NoError(m.Store.Update(ctx, k, func(cur []byte) ([]byte, error) {
		list := decodeList(cur)
		list[0].RemainingSeconds = 1
		return encodeList(list)
	}))
	req.NoError(m.Tick(ctx))
	req.NoError(m.Tick(ctx))

	req.Len(rec.ByType(diner.EventConsumableExpired), 1)

	// record habis → key hilang, plate & order panas ikut diarsipkan
	list, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Empty(list)
	_, err = m.Store.Get(ctx, fmt.Sprintf(redisx.KeyPlate, "u1"))
	req.ErrorIs(err, store.ErrNotFound)
	_, err = m.Store.Get(ctx, fmt.Sprintf(redisx.KeyOrder, "o1"))
	req.ErrorIs(err, store.ErrNotFound)

	fin := rec.ByType(diner.EventOrderFinalized)
	req.Len(fin, 1)
	var p diner.OrderFinalizedPayload
	req.NoError(json.Unmarshal(fin[0].Envelope.Payload, &p))
	req.Equal(diner.FinalExpired, p.FinalStatus)
}

func TestTransferOnSeatSwap_KeepsRemaining(t *testing.T) {
	req := require.New(t)
	m, _, now := newManager()
	ctx := context.Background()

	_, err := m.OnOrderServed(ctx, servedOrder("o1", "u1", 2, "coffee", *now))
	req.NoError(err)
	k := key("u1", "main", 2)
	req.NoError(m.Store.Update(ctx, k, func(cur []byte) ([]byte, error) {
		list := decodeList(cur)
		list[0].RemainingSeconds = 120
		return encodeList(list)
	}))

	req.NoError(m.TransferOnSeatSwap(ctx, "u1", "main", 2, 5))

	old, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Empty(old)
	moved, err := m.Consumables(ctx, "u1", "main", 5)
	req.NoError(err)
	req.Len(moved, 1)
	req.Equal(120, moved[0].RemainingSeconds) // timer jalan terus, bukan reset
	req.Equal(5, moved[0].SeatID)

	// swap tanpa consumable = no-op
	req.NoError(m.TransferOnSeatSwap(ctx, "u2", "main", 1, 3))
}

func TestTransferOnSeatSwap_NoDuplicateAtDestination(t *testing.T) {
	req := require.New(t)
	m, _, now := newManager()
	ctx := context.Background()

	_, err := m.OnOrderServed(ctx, servedOrder("o1", "u1", 2, "coffee", *now))
	req.NoError(err)
	// kursi tujuan sudah pegang consumable order yang sama (retry transfer)
	_, err = m.OnOrderServed(ctx, servedOrder("o1", "u1", 5, "coffee", *now))
	req.NoError(err)

	req.NoError(m.TransferOnSeatSwap(ctx, "u1", "main", 2, 5))

	merged, err := m.Consumables(ctx, "u1", "main", 5)
	req.NoError(err)
	req.Len(merged, 1)
}

func TestRestoreOnRejoin_RecomputesFromServedAt(t *testing.T) {
	req := require.New(t)
	m, _, now := newManager()
	ctx := context.Background()

	// order SERVED 100 detik lalu, record consumable sudah hilang (leave)
	servedAt := now.Add(-100 * time.Second)
	order := servedOrder("o1", "u1", 2, "coffee", servedAt)
	b, _ := json.Marshal(order)
	req.NoError(m.Store.Set(ctx, fmt.Sprintf(redisx.KeyOrder, "o1"), b))
	req.NoError(m.Store.Set(ctx, fmt.Sprintf(redisx.KeyPlate, "u1"), []byte("o1")))

	req.NoError(m.RestoreOnRejoin(ctx, "u1", "main", 2))

	list, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Len(list, 1)
	req.Equal(200, list[0].RemainingSeconds) // 300 - 100, bukan 300 penuh

	// idempotent: restore kedua tidak menyentuh timer
	req.NoError(m.RestoreOnRejoin(ctx, "u1", "main", 2))
	list, err = m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Len(list, 1)
	req.Equal(200, list[0].RemainingSeconds)
}

func TestRestoreOnRejoin_RestoresAllServedOrders(t *testing.T) {
	req := require.New(t)
	m, _, now := newManager()
	ctx := context.Background()

	// dua order SERVED sekaligus (marker active dilepas saat READY,
	// jadi user sah pegang kopi + teh berbarengan)
	coffee := servedOrder("o1", "u1", 2, "coffee", now.Add(-100*time.Second))
	tea := servedOrder("o2", "u1", 2, "tea", now.Add(-10*time.Second))
	for _, o := range []diner.Order{coffee, tea} {
		b, _ := json.Marshal(o)
		req.NoError(m.Store.Set(ctx, fmt.Sprintf(redisx.KeyOrder, o.ID), b))
	}
	req.NoError(m.Store.Set(ctx, fmt.Sprintf(redisx.KeyPlate, "u1"), []byte("o2")))

	req.NoError(m.RestoreOnRejoin(ctx, "u1", "main", 2))

	list, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Len(list, 2)
	req.Equal("o1", list[0].OrderID) // urut served_at
	req.Equal(200, list[0].RemainingSeconds)
	req.Equal("o2", list[1].OrderID)
	req.Equal(290, list[1].RemainingSeconds)
}

func TestRestoreOnRejoin_LiveRecordUntouched(t *testing.T) {
	req := require.New(t)
	m, rec, now := newManager()
	ctx := context.Background()

	_, err := m.OnOrderServed(ctx, servedOrder("o1", "u1", 2, "coffee", *now))
	req.NoError(err)
	k := key("u1", "main", 2)
	req.NoError(m.Store.Update(ctx, k, func(cur []byte) ([]byte, error) {
		list := decodeList(cur)
		list[0].RemainingSeconds = 42
		return encodeList(list)
	}))

	before := len(rec.ByType(diner.EventConsumableUpdated))
	req.NoError(m.RestoreOnRejoin(ctx, "u1", "main", 2))

	list, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Equal(42, list[0].RemainingSeconds)
	// display-only: snapshot dipancarkan ulang
	req.Len(rec.ByType(diner.EventConsumableUpdated), before+1)
}

func TestRestoreOnRejoin_PastLifetime(t *testing.T) {
	req := require.New(t)
	m, _, now := newManager()
	ctx := context.Background()

	servedAt := now.Add(-400 * time.Second) // coffee cuma hidup 300s
	order := servedOrder("o1", "u1", 2, "coffee", servedAt)
	b, _ := json.Marshal(order)
	req.NoError(m.Store.Set(ctx, fmt.Sprintf(redisx.KeyOrder, "o1"), b))
	req.NoError(m.Store.Set(ctx, fmt.Sprintf(redisx.KeyPlate, "u1"), []byte("o1")))

	req.NoError(m.RestoreOnRejoin(ctx, "u1", "main", 2))
	list, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Empty(list)
}

func TestDropForSeat(t *testing.T) {
	req := require.New(t)
	m, _, now := newManager()
	ctx := context.Background()

	_, err := m.OnOrderServed(ctx, servedOrder("o1", "u1", 2, "pudding", *now))
	req.NoError(err)
	req.NoError(m.DropForSeat(ctx, "u1", "main", 2))

	list, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Empty(list)
}

func TestRemoveByOrder(t *testing.T) {
	req := require.New(t)
	m, _, now := newManager()
	ctx := context.Background()

	_, err := m.OnOrderServed(ctx, servedOrder("o1", "u1", 2, "coffee", *now))
	req.NoError(err)
	_, err = m.OnOrderServed(ctx, servedOrder("o2", "u1", 2, "pudding", *now))
	req.NoError(err)

	req.NoError(m.RemoveByOrder(ctx, "u1", "main", 2, "o1"))
	list, err := m.Consumables(ctx, "u1", "main", 2)
	req.NoError(err)
	req.Len(list, 1)
	req.Equal("o2", list[0].OrderID)
}
