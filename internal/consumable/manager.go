package consumable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	"github.com/ariefcatur/go-diner-live.git/internal/events"
	"github.com/ariefcatur/go-diner-live.git/internal/redisx"
	"github.com/ariefcatur/go-diner-live.git/internal/store"
)

// Manager memiliki namespace consumable:{userId}:{roomId}:{seatId}.
// Server yang pegang countdown; client cuma render snapshot
// remaining_seconds, jadi semua orang lihat angka yang sama.
type Manager struct {
	Store   store.Store
	Emitter events.Emitter
	Service string
	Log     zerolog.Logger

	// TickPeriod menentukan berapa detik dikurangi per tick.
	TickPeriod time.Duration
	// RefreshEvery: snapshot broadcast tiap N tick, bukan tiap tick,
	// supaya volume pesan terikat.
	RefreshEvery int

	tickCount int
	Now       func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func key(userID, roomID string, seatID int) string {
	return fmt.Sprintf(redisx.KeyConsumable, userID, roomID, seatID)
}

// OnOrderServed membuat consumable dari order SERVED; durasi dari menu.
func (m *Manager) OnOrderServed(ctx context.Context, order diner.Order) (diner.Consumable, error) {
	item, err := diner.LookupMenuItem(order.ItemRef)
	if err != nil {
		return diner.Consumable{}, err
	}
	c := diner.Consumable{
		ID:               uuid.NewString(),
		UserID:           order.UserID,
		RoomID:           order.RoomID,
		SeatID:           order.SeatID,
		ItemName:         item.Name,
		ItemType:         item.Type,
		DurationSeconds:  item.DurationSeconds,
		RemainingSeconds: item.DurationSeconds,
		OrderID:          order.ID,
	}
	k := key(order.UserID, order.RoomID, order.SeatID)
	err = m.Store.Update(ctx, k, func(cur []byte) ([]byte, error) {
		list := decodeList(cur)
		for _, existing := range list {
			if existing.OrderID == order.ID {
				return cur, nil // sudah ada, jangan duplikat
			}
		}
		list = append(list, c)
		return encodeList(list)
	})
	if err != nil {
		return diner.Consumable{}, err
	}
	m.emitUpdated(ctx, order.UserID, order.RoomID, order.SeatID)
	return c, nil
}

// Tick mengurangi remaining semua consumable hidup. Yang habis dihapus
// dalam CAS yang sama, lalu expiry event dipancarkan tepat sekali.
func (m *Manager) Tick(ctx context.Context) error {
	keys, err := m.Store.Keys(ctx, redisx.PrefixConsumable)
	if err != nil {
		return err
	}
	dec := int(m.TickPeriod / time.Second)
	if dec <= 0 {
		dec = 1
	}

	m.tickCount++
	refresh := m.RefreshEvery > 0 && m.tickCount%m.RefreshEvery == 0

	for _, k := range keys {
		var expired []diner.Consumable
		err := m.Store.Update(ctx, k, func(cur []byte) ([]byte, error) {
			expired = expired[:0]
			list := decodeList(cur)
			live := list[:0]
			for _, c := range list {
				c.RemainingSeconds -= dec
				if c.RemainingSeconds <= 0 {
					expired = append(expired, c)
					continue
				}
				live = append(live, c)
			}
			return encodeList(live)
		})
		if err != nil {
			m.Log.Error().Err(err).Str("key", k).Msg("decay tick failed")
			continue // self-heal di tick berikutnya
		}
		for _, c := range expired {
			m.expire(ctx, c)
		}
		if refresh || len(expired) > 0 {
			m.emitUpdated(ctx, firstUser(k), firstRoom(k), firstSeat(k))
		}
	}
	return nil
}

func (m *Manager) expire(ctx context.Context, c diner.Consumable) {
	if m.Emitter != nil {
		env := events.NewEnvelope(m.Service, diner.EventConsumableExpired, c.ID,
			diner.ConsumableExpiredPayload{
				ConsumableID: c.ID, UserID: c.UserID, RoomID: c.RoomID,
				SeatID: c.SeatID, ItemName: c.ItemName, OrderID: c.OrderID,
			})
		m.Emitter.Emit(diner.TopicConsumableExpired, diner.RoomKey(c.RoomID), env)
	}

	// order pendukung ikut diarsipkan: hapus plate marker + record panas
	plateKey := fmt.Sprintf(redisx.KeyPlate, c.UserID)
	if b, err := m.Store.Get(ctx, plateKey); err == nil && string(b) == c.OrderID {
		_ = m.Store.Delete(ctx, plateKey)
	}
	orderKey := fmt.Sprintf(redisx.KeyOrder, c.OrderID)
	if b, err := m.Store.Get(ctx, orderKey); err == nil {
		var o diner.Order
		if json.Unmarshal(b, &o) == nil && o.Status == diner.OrderServed {
			_ = m.Store.Delete(ctx, orderKey)
			if m.Emitter != nil {
				env := events.NewEnvelope(m.Service, diner.EventOrderFinalized, o.ID,
					diner.OrderFinalizedPayload{OrderID: o.ID, FinalStatus: diner.FinalExpired, Order: o})
				m.Emitter.Emit(diner.TopicOrderFinalized, diner.OrderKey(o.ID), env)
			}
		}
	}
	m.Log.Info().Str("consumable", c.ID).Str("item", c.ItemName).Msg("consumable expired")
}

// TransferOnSeatSwap memindahkan consumable apa adanya: timer tidak
// di-reset dan tidak diduplikasi.
func (m *Manager) TransferOnSeatSwap(ctx context.Context, userID, roomID string, fromSeat, toSeat int) error {
	fromKey := key(userID, roomID, fromSeat)
	b, err := m.Store.Get(ctx, fromKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil // tidak ada yang dipindah
	}
	if err != nil {
		return err
	}
	moved := decodeList(b)
	for i := range moved {
		moved[i].SeatID = toSeat
	}
	toKey := key(userID, roomID, toSeat)
	err = m.Store.Update(ctx, toKey, func(cur []byte) ([]byte, error) {
		list := decodeList(cur)
		for _, c := range moved {
			if !containsOrder(list, c.OrderID) {
				list = append(list, c)
			}
		}
		return encodeList(list)
	})
	if err != nil {
		return err
	}
	if err := m.Store.Delete(ctx, fromKey); err != nil {
		return err
	}
	m.emitUpdated(ctx, userID, roomID, fromSeat)
	m.emitUpdated(ctx, userID, roomID, toSeat)
	return nil
}

// RestoreOnRejoin menangani dua cabang non-swap:
//   - record hidup masih ada: kirim ulang display state saja, timer
//     tidak disentuh (jangan kasih waktu ekstra gratis);
//   - record hilang: bangun ulang dari SEMUA order SERVED user yang
//     masih valid (user bisa pegang lebih dari satu, marker active
//     dilepas saat READY), remaining dihitung dari
//     served_at + duration - now, bukan reset penuh.
//
// Idempotent: dipanggil dua kali tanpa tick di antaranya, remaining sama.
func (m *Manager) RestoreOnRejoin(ctx context.Context, userID, roomID string, seatID int) error {
	k := key(userID, roomID, seatID)
	if _, err := m.Store.Get(ctx, k); err == nil {
		m.emitUpdated(ctx, userID, roomID, seatID)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	orders, err := m.servedOrders(ctx, userID, roomID)
	if err != nil {
		return err
	}
	var list []diner.Consumable
	for _, o := range orders {
		item, err := diner.LookupMenuItem(o.ItemRef)
		if err != nil {
			continue
		}
		remaining := item.DurationSeconds - int(m.now().Sub(*o.ServedAt)/time.Second)
		if remaining <= 0 {
			continue // sudah lewat masa hidupnya; biarkan decay path mengarsipkan
		}
		list = append(list, diner.Consumable{
			ID:               uuid.NewString(),
			UserID:           userID,
			RoomID:           roomID,
			SeatID:           seatID,
			ItemName:         item.Name,
			ItemType:         item.Type,
			DurationSeconds:  item.DurationSeconds,
			RemainingSeconds: remaining,
			OrderID:          o.ID,
		})
	}
	if len(list) == 0 {
		return nil // tidak ada order SERVED yang bisa dipulihkan
	}
	val, err := encodeList(list)
	if err != nil {
		return err
	}
	if _, err := m.Store.SetIfAbsent(ctx, k, val); err != nil {
		return err
	}
	m.emitUpdated(ctx, userID, roomID, seatID)
	m.Log.Info().Str("user", userID).Int("seat", seatID).Int("restored", len(list)).Msg("consumables restored")
	return nil
}

// servedOrders scan record order panas milik user yang masih SERVED,
// urut served_at supaya hasil restore deterministik.
func (m *Manager) servedOrders(ctx context.Context, userID, roomID string) ([]diner.Order, error) {
	keys, err := m.Store.Keys(ctx, redisx.PrefixOrder)
	if err != nil {
		return nil, err
	}
	var out []diner.Order
	for _, k := range keys {
		b, err := m.Store.Get(ctx, k)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var o diner.Order
		if json.Unmarshal(b, &o) != nil {
			continue
		}
		if o.UserID != userID || o.RoomID != roomID || o.Status != diner.OrderServed || o.ServedAt == nil {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServedAt.Before(*out[j].ServedAt) })
	return out, nil
}

// DropForSeat: kursi divacate tanpa transfer. Order SERVED pendukung
// tidak dihapus, supaya rejoin masih bisa restore sisa waktunya.
func (m *Manager) DropForSeat(ctx context.Context, userID, roomID string, seatID int) error {
	if err := m.Store.Delete(ctx, key(userID, roomID, seatID)); err != nil {
		return err
	}
	m.emitUpdated(ctx, userID, roomID, seatID)
	return nil
}

// RemoveByOrder dipakai saat completeOrder: consumable order itu dicabut.
func (m *Manager) RemoveByOrder(ctx context.Context, userID, roomID string, seatID int, orderID string) error {
	k := key(userID, roomID, seatID)
	err := m.Store.Update(ctx, k, func(cur []byte) ([]byte, error) {
		if cur == nil {
			return nil, nil
		}
		list := decodeList(cur)
		kept := list[:0]
		for _, c := range list {
			if c.OrderID != orderID {
				kept = append(kept, c)
			}
		}
		return encodeList(kept)
	})
	if err != nil {
		return err
	}
	m.emitUpdated(ctx, userID, roomID, seatID)
	return nil
}

func (m *Manager) Consumables(ctx context.Context, userID, roomID string, seatID int) ([]diner.Consumable, error) {
	b, err := m.Store.Get(ctx, key(userID, roomID, seatID))
	if errors.Is(err, store.ErrNotFound) {
		return []diner.Consumable{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeList(b), nil
}

func (m *Manager) ClearAll(ctx context.Context) error {
	n, err := m.Store.DeletePrefix(ctx, redisx.PrefixConsumable)
	if err != nil {
		return err
	}
	m.Log.Warn().Int("removed", n).Msg("all consumables cleared")
	return nil
}

func (m *Manager) emitUpdated(ctx context.Context, userID, roomID string, seatID int) {
	if m.Emitter == nil {
		return
	}
	list, err := m.Consumables(ctx, userID, roomID, seatID)
	if err != nil {
		return
	}
	env := events.NewEnvelope(m.Service, diner.EventConsumableUpdated, userID,
		diner.ConsumableUpdatedPayload{UserID: userID, RoomID: roomID, SeatID: seatID, Consumables: list})
	m.Emitter.Emit(diner.TopicConsumableUpdated, diner.RoomKey(roomID), env)
}

func containsOrder(list []diner.Consumable, orderID string) bool {
	for _, c := range list {
		if c.OrderID == orderID {
			return true
		}
	}
	return false
}

func decodeList(b []byte) []diner.Consumable {
	if b == nil {
		return nil
	}
	var list []diner.Consumable
	if err := json.Unmarshal(b, &list); err != nil {
		return nil
	}
	return list
}

// encodeList return nil saat list kosong supaya key-nya terhapus.
func encodeList(list []diner.Consumable) ([]byte, error) {
	if len(list) == 0 {
		return nil, nil
	}
	return json.Marshal(list)
}

// key consumable:{userId}:{roomId}:{seatId} dibongkar balik untuk refresh.
func firstUser(k string) string { u, _, _ := splitKey(k); return u }
func firstRoom(k string) string { _, r, _ := splitKey(k); return r }
func firstSeat(k string) int    { _, _, s := splitKey(k); return s }

func splitKey(k string) (string, string, int) {
	parts := strings.Split(k, ":")
	if len(parts) != 4 {
		return "", "", 0
	}
	seat, _ := strconv.Atoi(parts[3])
	return parts[1], parts[2], seat
}
