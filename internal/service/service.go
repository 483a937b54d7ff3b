// Package service adalah fasad command inbound: transport layer (di luar
// scope) hanya bicara ke sini. Alur lintas namespace (seat-swap vs
// fresh-restore, cancel saat vacate) dimiliki fasad, bukan komponen.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-diner-live.git/internal/consumable"
	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	"github.com/ariefcatur/go-diner-live.git/internal/kitchen"
	"github.com/ariefcatur/go-diner-live.git/internal/master"
	"github.com/ariefcatur/go-diner-live.git/internal/seats"
)

type Service struct {
	Seats       *seats.Registry
	Kitchen     *kitchen.Engine
	Consumables *consumable.Manager
	Master      *master.Scheduler
	Rooms       []string
	Log         zerolog.Logger
}

// JoinSeat: tiga cabang yang harus persis —
//   - swap: consumable ditransfer apa adanya,
//   - fresh join / rejoin: restore (idempotent; record hidup tidak disentuh).
func (s *Service) JoinSeat(ctx context.Context, roomID string, seatID int, userID, userName string) (seats.JoinResult, error) {
	res, err := s.Seats.Join(ctx, roomID, seatID, userID, userName)
	if err != nil {
		return res, err
	}
	if res.Swapped {
		if err := s.Consumables.TransferOnSeatSwap(ctx, userID, roomID, res.FromSeat, seatID); err != nil {
			s.Log.Error().Err(err).Str("user", userID).Msg("consumable transfer failed")
		}
		return res, nil
	}
	if err := s.Consumables.RestoreOnRejoin(ctx, userID, roomID, seatID); err != nil {
		s.Log.Error().Err(err).Str("user", userID).Msg("consumable restore failed")
	}
	return res, nil
}

// LeaveSeat: order QUEUED dibatalkan, consumable di kursi itu di-drop
// (order SERVED pendukung tetap, supaya rejoin bisa restore).
func (s *Service) LeaveSeat(ctx context.Context, roomID, userID string) (int, error) {
	seatID, err := s.Seats.Leave(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	if err := s.Kitchen.CancelQueued(ctx, userID); err != nil {
		s.Log.Error().Err(err).Str("user", userID).Msg("queued order cancel failed")
	}
	if err := s.Consumables.DropForSeat(ctx, userID, roomID, seatID); err != nil {
		s.Log.Error().Err(err).Str("user", userID).Msg("consumable drop failed")
	}
	return seatID, nil
}

func (s *Service) PlaceOrder(ctx context.Context, userID, roomID string, seatID int, itemRef string) (string, error) {
	return s.Kitchen.Place(ctx, userID, roomID, seatID, itemRef)
}

func (s *Service) CompleteOrder(ctx context.Context, userID string) error {
	order, err := s.Kitchen.Complete(ctx, userID)
	if err != nil {
		return err
	}
	return s.Consumables.RemoveByOrder(ctx, order.UserID, order.RoomID, order.SeatID, order.ID)
}

func (s *Service) ChatMessage(ctx context.Context, userID, roomID, content string, at time.Time) error {
	return s.Master.NoteChat(ctx, roomID, userID, content, at)
}

// ---- Administratif; store bisa di-wipe terpisah dari proses ----

func (s *Service) InitializeRoom(ctx context.Context, roomID string) error {
	if err := s.Seats.InitRoom(ctx, roomID); err != nil {
		return err
	}
	return s.Master.InitRoom(ctx, roomID)
}

func (s *Service) ReinitializeSystem(ctx context.Context) error {
	for _, room := range s.Rooms {
		if err := s.InitializeRoom(ctx, room); err != nil {
			return err
		}
	}
	s.Log.Warn().Msg("system reinitialized")
	return nil
}

func (s *Service) ClearAllConsumables(ctx context.Context) error {
	return s.Consumables.ClearAll(ctx)
}

func (s *Service) ClearSeatMappings(ctx context.Context) error {
	return s.Seats.ClearMappings(ctx)
}

// ---- Proyeksi read-only untuk tooling debug ----

func (s *Service) SeatSnapshot(ctx context.Context, roomID string) ([]seats.SeatView, error) {
	return s.Seats.Snapshot(ctx, roomID)
}

func (s *Service) QueueStatus(ctx context.Context, roomID string) (kitchen.QueueStatus, error) {
	return s.Kitchen.QueueStatus(ctx, roomID)
}

func (s *Service) ConsumableSnapshot(ctx context.Context, userID, roomID string, seatID int) ([]diner.Consumable, error) {
	return s.Consumables.Consumables(ctx, userID, roomID, seatID)
}

func (s *Service) MasterStats(ctx context.Context, roomID string) (master.Stats, error) {
	return s.Master.Stats(ctx, roomID)
}
