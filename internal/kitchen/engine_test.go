package kitchen

import (
	"context"
	"encoding/json"
	"errors"
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

type seatStub map[string]int

func (s seatStub) SeatOf(ctx context.Context, roomID, userID string) (int, error) {
	if seat, ok := s[userID]; ok {
		return seat, nil
	}
	return 0, store.ErrNotFound
}

type sinkStub struct{ served []diner.Order }

func (s *sinkStub) OnOrderServed(ctx context.Context, o diner.Order) (diner.Consumable, error) {
	s.served = append(s.served, o)
	return diner.Consumable{OrderID: o.ID}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newEngine(seats seatStub) (*Engine, *events.Recorder, *sinkStub, *clock) {
	rec := events.NewRecorder()
	sink := &sinkStub{}
	clk := &clock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	e := &Engine{
		Store:   store.NewMemory(),
		Emitter: rec,
		Seats:   seats,
		Sink:    sink,
		Service: "test",
		Log:     zerolog.Nop(),
		Now:     clk.now,
	}
	return e, rec, sink, clk
}

func orderOf(t *testing.T, s store.Store, orderID string) diner.Order {
	t.Helper()
	b, err := s.Get(context.Background(), fmt.Sprintf(redisx.KeyOrder, orderID))
	require.NoError(t, err)
	var o diner.Order
	require.NoError(t, json.Unmarshal(b, &o))
	return o
}

func TestPlace_Validation(t *testing.T) {
	req := require.New(t)
	e, _, _, _ := newEngine(seatStub{"u1": 3})
	ctx := context.Background()

	_, err := e.Place(ctx, "ghost", "main", 1, "coffee")
	req.ErrorIs(err, ErrNotSeated)

	// kursi di request beda dari kursi sebenarnya
	_, err = e.Place(ctx, "u1", "main", 5, "coffee")
	req.ErrorIs(err, ErrNotSeated)

	_, err = e.Place(ctx, "u1", "main", 3, "nasi-goreng")
	req.ErrorIs(err, diner.ErrUnknownItem)

	_, err = e.Place(ctx, "u1", "main", 3, "coffee")
	req.NoError(err)
	_, err = e.Place(ctx, "u1", "main", 3, "tea")
	req.ErrorIs(err, ErrDuplicateActiveOrder)
}

func TestPipeline_FIFOSingleSlot(t *testing.T) {
	req := require.New(t)
	e, _, sink, clk := newEngine(seatStub{"u1": 1, "u2": 2})
	ctx := context.Background()

	id1, err := e.Place(ctx, "u1", "main", 1, "coffee") // prep 5s
	req.NoError(err)
	id2, err := e.Place(ctx, "u2", "main", 2, "tea") // prep 4s
	req.NoError(err)

	// tick 1: order pertama masuk slot, yang kedua tetap antri
	req.NoError(e.TickRoom(ctx, "main"))
	req.Equal(diner.OrderPreparing, orderOf(t, e.Store, id1).Status)
	req.Equal(diner.OrderQueued, orderOf(t, e.Store, id2).Status)

	qs, err := e.QueueStatus(ctx, "main")
	req.NoError(err)
	req.True(qs.CurrentlyPreparing)
	req.Equal(id1, qs.CurrentlyPreparingOrderID)
	req.EqualValues(1, qs.QueueSize)

	// belum matang: tick tambahan tidak mengubah apa-apa
	clk.advance(2 * time.Second)
	req.NoError(e.TickRoom(ctx, "main"))
	req.Equal(diner.OrderPreparing, orderOf(t, e.Store, id1).Status)

	// matang: READY, slot langsung diisi order berikutnya
	clk.advance(3 * time.Second)
	req.NoError(e.TickRoom(ctx, "main"))
	req.Equal(diner.OrderReady, orderOf(t, e.Store, id1).Status)
	req.Equal(diner.OrderPreparing, orderOf(t, e.Store, id2).Status)

	// tick berikutnya: delivery step order pertama
	req.NoError(e.TickRoom(ctx, "main"))
	o1 := orderOf(t, e.Store, id1)
	req.Equal(diner.OrderServed, o1.Status)
	req.NotNil(o1.ServedAt)
	req.Len(sink.served, 1)
	req.Equal(id1, sink.served[0].ID)

	clk.advance(4 * time.Second)
	req.NoError(e.TickRoom(ctx, "main"))
	req.Equal(diner.OrderReady, orderOf(t, e.Store, id2).Status)
	req.NoError(e.TickRoom(ctx, "main"))
	req.Equal(diner.OrderServed, orderOf(t, e.Store, id2).Status)
	req.Len(sink.served, 2)
}

func TestPipeline_ReorderAllowedAfterReady(t *testing.T) {
	req := require.New(t)
	e, _, _, clk := newEngine(seatStub{"u1": 1})
	ctx := context.Background()

	_, err := e.Place(ctx, "u1", "main", 1, "coffee")
	req.NoError(err)
	req.NoError(e.TickRoom(ctx, "main"))

	// masih PREPARING: order kedua ditolak
	_, err = e.Place(ctx, "u1", "main", 1, "tea")
	req.ErrorIs(err, ErrDuplicateActiveOrder)

	clk.advance(5 * time.Second)
	req.NoError(e.TickRoom(ctx, "main")) // READY: marker active dilepas

	_, err = e.Place(ctx, "u1", "main", 1, "tea")
	req.NoError(err)
}

func TestPipeline_PrepFaultRetryThenCancel(t *testing.T) {
	req := require.New(t)
	e, rec, _, _ := newEngine(seatStub{"u1": 1})
	e.PrepareHook = func(ctx context.Context, o diner.Order) error {
		return errors.New("tts backend down")
	}
	ctx := context.Background()

	id, err := e.Place(ctx, "u1", "main", 1, "coffee")
	req.NoError(err)

	// fault pertama: balik ke kepala antrian
	req.NoError(e.TickRoom(ctx, "main"))
	o := orderOf(t, e.Store, id)
	req.Equal(diner.OrderQueued, o.Status)
	req.Equal(1, o.Retries)

	// fault kedua: CANCELLED + finalized FAILED, user boleh pesan lagi
	req.NoError(e.TickRoom(ctx, "main"))
	req.Equal(diner.OrderCancelled, orderOf(t, e.Store, id).Status)

	fin := rec.ByType(diner.EventOrderFinalized)
	req.Len(fin, 1)
	var p diner.OrderFinalizedPayload
	req.NoError(json.Unmarshal(fin[0].Envelope.Payload, &p))
	req.Equal(diner.FinalFailed, p.FinalStatus)

	_, err = e.Place(ctx, "u1", "main", 1, "tea")
	req.NoError(err)
}

func TestPipeline_PrepFaultRecoversOnRetry(t *testing.T) {
	req := require.New(t)
	e, _, _, _ := newEngine(seatStub{"u1": 1})
	calls := 0
	e.PrepareHook = func(ctx context.Context, o diner.Order) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}
	ctx := context.Background()

	id, err := e.Place(ctx, "u1", "main", 1, "coffee")
	req.NoError(err)

	req.NoError(e.TickRoom(ctx, "main"))
	req.Equal(diner.OrderQueued, orderOf(t, e.Store, id).Status)
	req.NoError(e.TickRoom(ctx, "main"))
	req.Equal(diner.OrderPreparing, orderOf(t, e.Store, id).Status)
	req.Equal(2, calls)
}

func TestCancelQueued_TombstoneSkipped(t *testing.T) {
	req := require.New(t)
	e, rec, _, _ := newEngine(seatStub{"u1": 1, "u2": 2})
	ctx := context.Background()

	id1, err := e.Place(ctx, "u1", "main", 1, "coffee")
	req.NoError(err)
	id2, err := e.Place(ctx, "u2", "main", 2, "tea")
	req.NoError(err)

	req.NoError(e.CancelQueued(ctx, "u1"))
	req.Equal(diner.OrderCancelled, orderOf(t, e.Store, id1).Status)

	// snapshot debug tidak menghitung tombstone yang belum di-pop
	qs, err := e.QueueStatus(ctx, "main")
	req.NoError(err)
	req.EqualValues(1, qs.QueueSize)

	fin := rec.ByType(diner.EventOrderFinalized)
	req.Len(fin, 1)
	var p diner.OrderFinalizedPayload
	req.NoError(json.Unmarshal(fin[0].Envelope.Payload, &p))
	req.Equal(diner.FinalCancelled, p.FinalStatus)

	// tombstone dilewati: slot langsung jatuh ke order u2
	req.NoError(e.TickRoom(ctx, "main"))
	req.Equal(diner.OrderPreparing, orderOf(t, e.Store, id2).Status)

	// idempotent untuk user tanpa order aktif
	req.NoError(e.CancelQueued(ctx, "u1"))
}

func TestCancelQueued_LeavesPreparingAlone(t *testing.T) {
	req := require.New(t)
	e, _, _, _ := newEngine(seatStub{"u1": 1})
	ctx := context.Background()

	id, err := e.Place(ctx, "u1", "main", 1, "coffee")
	req.NoError(err)
	req.NoError(e.TickRoom(ctx, "main"))

	req.NoError(e.CancelQueued(ctx, "u1"))
	req.Equal(diner.OrderPreparing, orderOf(t, e.Store, id).Status)
}

func TestPipeline_ServeSkipsVacatedSeat(t *testing.T) {
	req := require.New(t)
	seats := seatStub{"u1": 1}
	e, _, sink, clk := newEngine(seats)
	ctx := context.Background()

	id, err := e.Place(ctx, "u1", "main", 1, "coffee")
	req.NoError(err)
	req.NoError(e.TickRoom(ctx, "main")) // PREPARING

	// user keluar selagi order dimasak; order tetap diselesaikan
	delete(seats, "u1")
	clk.advance(5 * time.Second)
	req.NoError(e.TickRoom(ctx, "main")) // READY
	req.NoError(e.TickRoom(ctx, "main")) // SERVED

	o := orderOf(t, e.Store, id)
	req.Equal(diner.OrderServed, o.Status)
	// kursi kosong: tidak ada consumable yang dibuat
	req.Empty(sink.served)
}

func TestPipeline_ServeFollowsSeatSwap(t *testing.T) {
	req := require.New(t)
	seats := seatStub{"u1": 1}
	e, _, sink, clk := newEngine(seats)
	ctx := context.Background()

	id, err := e.Place(ctx, "u1", "main", 1, "coffee")
	req.NoError(err)
	req.NoError(e.TickRoom(ctx, "main"))

	// user pindah kursi selagi order dimasak
	seats["u1"] = 5
	clk.advance(5 * time.Second)
	req.NoError(e.TickRoom(ctx, "main"))
	req.NoError(e.TickRoom(ctx, "main"))

	req.Len(sink.served, 1)
	req.Equal(5, sink.served[0].SeatID) // nempel ke kursi sekarang
	req.Equal(5, orderOf(t, e.Store, id).SeatID)
}

func TestComplete(t *testing.T) {
	req := require.New(t)
	e, rec, _, clk := newEngine(seatStub{"u1": 1})
	ctx := context.Background()

	id, err := e.Place(ctx, "u1", "main", 1, "coffee")
	req.NoError(err)
	req.NoError(e.TickRoom(ctx, "main"))
	clk.advance(5 * time.Second)
	req.NoError(e.TickRoom(ctx, "main"))
	req.NoError(e.TickRoom(ctx, "main")) // SERVED

	done, err := e.Complete(ctx, "u1")
	req.NoError(err)
	req.Equal(id, done.ID)

	// record panas hilang, finalized COMPLETED terpancar
	_, err = e.Store.Get(ctx, fmt.Sprintf(redisx.KeyOrder, id))
	req.ErrorIs(err, store.ErrNotFound)
	var completed int
	for _, ev := range rec.ByType(diner.EventOrderFinalized) {
		var p diner.OrderFinalizedPayload
		req.NoError(json.Unmarshal(ev.Envelope.Payload, &p))
		if p.FinalStatus == diner.FinalCompleted {
			completed++
		}
	}
	req.Equal(1, completed)

	_, err = e.Complete(ctx, "u1")
	req.ErrorIs(err, ErrNoServedOrder)
}
