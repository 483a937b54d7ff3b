package seats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	"github.com/ariefcatur/go-diner-live.git/internal/events"
	"github.com/ariefcatur/go-diner-live.git/internal/redisx"
	"github.com/ariefcatur/go-diner-live.git/internal/store"
)

var (
	ErrSeatOccupied = errors.New("seat already occupied")
	ErrNotSeated    = errors.New("user not seated")
	ErrBadSeat      = errors.New("seat out of range")
)

// Registry adalah satu-satunya otoritas "siapa duduk di mana".
// View lain (profil user, debug endpoint) cuma proyeksi read-only.
type Registry struct {
	Store    store.Store
	Emitter  events.Emitter
	Service  string
	SeatsNum int // fallback kalau room record hilang (di-wipe admin)
	Log      zerolog.Logger
}

type JoinResult struct {
	RoomID   string
	SeatID   int
	UserID   string
	UserName string
	// Swapped true kalau user pindah dari kursi lain di room yang sama;
	// FromSeat kursi lamanya, supaya layer consumable bisa transfer.
	Swapped  bool
	FromSeat int
	// Rejoined true kalau user join ke kursi yang memang sudah dia duduki.
	Rejoined bool
}

type SeatView struct {
	SeatID   int    `json:"seat_id"`
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

func (r *Registry) seatCount(ctx context.Context, roomID string) int {
	b, err := r.Store.Get(ctx, fmt.Sprintf(redisx.KeyRoom, roomID))
	if err != nil {
		return r.SeatsNum
	}
	var room diner.Room
	if json.Unmarshal(b, &room) != nil || room.SeatCount <= 0 {
		return r.SeatsNum
	}
	return room.SeatCount
}

// Join claim kursi dengan SetIfAbsent: first-committer-wins, yang kalah
// dapat ErrSeatOccupied. Kalau user sudah duduk di kursi lain, kursi lama
// divacate dan move diklasifikasikan sebagai swap.
func (r *Registry) Join(ctx context.Context, roomID string, seatID int, userID, userName string) (JoinResult, error) {
	res := JoinResult{RoomID: roomID, SeatID: seatID, UserID: userID, UserName: userName}

	if seatID < 1 || seatID > r.seatCount(ctx, roomID) {
		return res, ErrBadSeat
	}

	seatOfKey := fmt.Sprintf(redisx.KeySeatOf, roomID, userID)
	curSeat, hadSeat, err := r.currentSeat(ctx, seatOfKey)
	if err != nil {
		return res, err
	}
	if hadSeat && curSeat == seatID {
		res.Rejoined = true
		return res, nil
	}

	rec := diner.SeatRecord{UserID: userID, UserName: userName, Since: time.Now().UTC()}
	val, _ := json.Marshal(rec)
	seatKey := fmt.Sprintf(redisx.KeySeat, roomID, seatID)
	ok, err := r.Store.SetIfAbsent(ctx, seatKey, val)
	if err != nil {
		return res, err
	}
	if !ok {
		occ, occErr := r.Occupant(ctx, roomID, seatID)
		if occErr == nil && occ != nil && occ.UserID == userID {
			// reverse index hilang tapi kursi memang milik user ini
			res.Rejoined = true
		} else {
			return res, ErrSeatOccupied
		}
	}

	if hadSeat && curSeat != seatID {
		if err := r.vacate(ctx, roomID, curSeat, userID); err != nil {
			return res, err
		}
		res.Swapped = true
		res.FromSeat = curSeat
		r.emitSeat(roomID, curSeat, "", "")
	}

	if err := r.Store.Set(ctx, seatOfKey, []byte(fmt.Sprintf("%d", seatID))); err != nil {
		return res, err
	}
	if !res.Rejoined {
		r.emitSeat(roomID, seatID, userID, userName)
	}
	r.Log.Info().Str("room", roomID).Int("seat", seatID).Str("user", userID).
		Bool("swap", res.Swapped).Msg("seat joined")
	return res, nil
}

func (r *Registry) Leave(ctx context.Context, roomID, userID string) (int, error) {
	seatOfKey := fmt.Sprintf(redisx.KeySeatOf, roomID, userID)
	curSeat, hadSeat, err := r.currentSeat(ctx, seatOfKey)
	if err != nil {
		return 0, err
	}
	if !hadSeat {
		return 0, ErrNotSeated
	}
	if err := r.vacate(ctx, roomID, curSeat, userID); err != nil {
		return 0, err
	}
	if err := r.Store.Delete(ctx, seatOfKey); err != nil {
		return 0, err
	}
	r.emitSeat(roomID, curSeat, "", "")
	r.Log.Info().Str("room", roomID).Int("seat", curSeat).Str("user", userID).Msg("seat left")
	return curSeat, nil
}

func (r *Registry) currentSeat(ctx context.Context, seatOfKey string) (int, bool, error) {
	b, err := r.Store.Get(ctx, seatOfKey)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var seat int
	if _, err := fmt.Sscanf(string(b), "%d", &seat); err != nil {
		return 0, false, nil // record rusak: anggap tidak duduk
	}
	return seat, true, nil
}

// vacate hapus record kursi hanya kalau occupant-nya memang userID
// (jangan menimpa claim user lain yang menang duluan).
func (r *Registry) vacate(ctx context.Context, roomID string, seatID int, userID string) error {
	seatKey := fmt.Sprintf(redisx.KeySeat, roomID, seatID)
	return r.Store.Update(ctx, seatKey, func(cur []byte) ([]byte, error) {
		if cur == nil {
			return nil, nil
		}
		var rec diner.SeatRecord
		if err := json.Unmarshal(cur, &rec); err != nil {
			return nil, nil
		}
		if rec.UserID != userID {
			return cur, nil
		}
		return nil, nil
	})
}

func (r *Registry) Occupant(ctx context.Context, roomID string, seatID int) (*diner.SeatRecord, error) {
	b, err := r.Store.Get(ctx, fmt.Sprintf(redisx.KeySeat, roomID, seatID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec diner.SeatRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}

// SeatOf return kursi user sekarang; store.ErrNotFound kalau tidak duduk.
func (r *Registry) SeatOf(ctx context.Context, roomID, userID string) (int, error) {
	seat, ok, err := r.currentSeat(ctx, fmt.Sprintf(redisx.KeySeatOf, roomID, userID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, store.ErrNotFound
	}
	return seat, nil
}

func (r *Registry) Snapshot(ctx context.Context, roomID string) ([]SeatView, error) {
	n := r.seatCount(ctx, roomID)
	out := make([]SeatView, 0, n)
	for i := 1; i <= n; i++ {
		v := SeatView{SeatID: i}
		rec, err := r.Occupant(ctx, roomID, i)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			v.UserID = rec.UserID
			v.UserName = rec.UserName
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Registry) InitRoom(ctx context.Context, roomID string) error {
	room := diner.Room{ID: roomID, SeatCount: r.SeatsNum, CreatedAt: time.Now().UTC()}
	val, _ := json.Marshal(room)
	_, err := r.Store.SetIfAbsent(ctx, fmt.Sprintf(redisx.KeyRoom, roomID), val)
	return err
}

// ClearMappings: emergency reset operator. Read berikutnya memperlakukan
// record hilang sebagai kursi kosong, tidak pernah crash.
func (r *Registry) ClearMappings(ctx context.Context) error {
	if _, err := r.Store.DeletePrefix(ctx, redisx.PrefixSeat); err != nil {
		return err
	}
	_, err := r.Store.DeletePrefix(ctx, redisx.PrefixSeatOf)
	return err
}

func (r *Registry) emitSeat(roomID string, seatID int, userID, userName string) {
	if r.Emitter == nil {
		return
	}
	env := events.NewEnvelope(r.Service, diner.EventSeatChanged, roomID,
		diner.SeatChangedPayload{RoomID: roomID, SeatID: seatID, UserID: userID, UserName: userName})
	r.Emitter.Emit(diner.TopicSeatChanged, diner.RoomKey(roomID), env)
}
