package master

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	"github.com/ariefcatur/go-diner-live.git/internal/events"
	kafkax "github.com/ariefcatur/go-diner-live.git/internal/kafka"
	"github.com/ariefcatur/go-diner-live.git/internal/redisx"
	"github.com/ariefcatur/go-diner-live.git/internal/store"
)

const recentChatCap = 10

// ReplyGenerator adalah kolaborator eksternal yang memutuskan isi
// balasan dan perlu-tidaknya membalas. Scheduler cuma gerbangnya.
type ReplyGenerator interface {
	Generate(ctx context.Context, roomID string, recent []diner.ChatNote) (reply string, ok bool, err error)
}

// Scheduler adalah satu-satunya penulis MasterState. Dua sumber trigger
// (aktivitas order & cadence chat) digabung lewat satu otoritas ini,
// jadi status busy tidak pernah tampil dobel.
type Scheduler struct {
	Store   store.Store
	Emitter events.Emitter
	Gen     ReplyGenerator
	Service string
	Log     zerolog.Logger

	DisplayName      string
	MinInterval      time.Duration // jarak minimum antar balasan
	ThinkingCeiling  time.Duration // plafon THINKING; lewat ini revert
	ConversingWindow time.Duration
	CleaningEvery    time.Duration
	CleaningFor      time.Duration

	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Scheduler) stateKey(roomID string) string {
	return fmt.Sprintf(redisx.KeyMaster, roomID)
}

func (s *Scheduler) InitRoom(ctx context.Context, roomID string) error {
	st := diner.MasterState{Status: diner.MasterIdle, DisplayName: s.DisplayName}
	b, _ := json.Marshal(st)
	_, err := s.Store.SetIfAbsent(ctx, s.stateKey(roomID), b)
	return err
}

// NoteChat mencatat chat masuk; balasan diputuskan di tick, bukan di sini,
// supaya request path tidak pernah menunggu generator.
func (s *Scheduler) NoteChat(ctx context.Context, roomID, userID, content string, at time.Time) error {
	return s.Store.Update(ctx, s.stateKey(roomID), func(cur []byte) ([]byte, error) {
		st := s.decode(cur)
		if at.After(st.LastChatEventAt) {
			st.LastChatEventAt = at
		}
		st.RecentChat = append(st.RecentChat, diner.ChatNote{UserID: userID, Content: content, At: at})
		if len(st.RecentChat) > recentChatCap {
			st.RecentChat = st.RecentChat[len(st.RecentChat)-recentChatCap:]
		}
		b, _ := json.Marshal(st)
		return b, nil
	})
}

// HandleChatEvent dipasang sebagai handler consumer topic chat.
func (s *Scheduler) HandleChatEvent(ctx context.Context, value []byte) error {
	var env diner.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return err
	}
	if env.EventType != diner.EventChatMessageOccurred {
		return nil
	}
	p, err := kafkax.UnwrapPayload[diner.ChatMessageOccurredPayload](env.Payload)
	if err != nil {
		return err
	}
	return s.NoteChat(ctx, p.RoomID, p.UserID, p.Content, p.Timestamp)
}

// TickRoom menurunkan status publik master dan, kalau gerbang cadence
// terbuka, menjalankan satu putaran balasan. Aktivitas order selalu
// preempt jalur percakapan.
func (s *Scheduler) TickRoom(ctx context.Context, roomID string) error {
	busy, currentOrder, err := s.orderActivity(ctx, roomID)
	if err != nil {
		return err
	}

	var attempt *replyAttempt
	err = s.Store.Update(ctx, s.stateKey(roomID), func(cur []byte) ([]byte, error) {
		attempt = nil
		st := s.decode(cur)
		now := s.now()

		if busy != "" {
			// order preempt percakapan; THINKING yang nggantung dibuang
			st.ThinkingSince = nil
			st.Status = busy
			st.CurrentOrderID = currentOrder
			b, _ := json.Marshal(st)
			return b, nil
		}
		st.CurrentOrderID = ""

		if st.ThinkingSince != nil {
			if now.Sub(*st.ThinkingSince) > s.ThinkingCeiling {
				// THINKING macet (crash di tengah generate); revert
				st.Status = s.baseStatus(st, now)
				st.ThinkingSince = nil
			} else {
				st.Status = diner.MasterThinking
			}
			b, _ := json.Marshal(st)
			return b, nil
		}

		pending := st.LastChatEventAt.After(st.LastResponseAt) && st.LastChatEventAt.After(st.LastAttemptAt)
		if s.Gen != nil && pending && now.Sub(st.LastResponseAt) >= s.MinInterval {
			st.PrevStatus = s.baseStatus(st, now)
			st.Status = diner.MasterThinking
			t := now
			st.ThinkingSince = &t
			st.LastAttemptAt = now
			attempt = &replyAttempt{recent: append([]diner.ChatNote(nil), st.RecentChat...)}
			b, _ := json.Marshal(st)
			return b, nil
		}

		st.Status = s.baseStatus(st, now)
		b, _ := json.Marshal(st)
		return b, nil
	})
	if err != nil {
		return err
	}

	s.emitIfChanged(ctx, roomID)

	if attempt != nil {
		s.runReply(ctx, roomID, attempt.recent)
		s.emitIfChanged(ctx, roomID)
	}
	return nil
}

type replyAttempt struct {
	recent []diner.ChatNote
}

// runReply memanggil generator di bawah plafon waktu; gagal = diam,
// status balik ke nilai sebelum THINKING, tidak retry dalam window ini.
func (s *Scheduler) runReply(ctx context.Context, roomID string, recent []diner.ChatNote) {
	genCtx, cancel := context.WithTimeout(ctx, s.ThinkingCeiling)
	defer cancel()

	reply, ok, err := s.Gen.Generate(genCtx, roomID, recent)
	now := s.now()

	updateErr := s.Store.Update(ctx, s.stateKey(roomID), func(cur []byte) ([]byte, error) {
		st := s.decode(cur)
		st.ThinkingSince = nil
		switch {
		case err != nil || !ok:
			st.Status = st.PrevStatus
			if st.Status == "" || st.Status == diner.MasterThinking {
				st.Status = diner.MasterIdle
			}
		default:
			st.LastResponseAt = now
			st.ResponseCount++
			st.Status = diner.MasterConversing
		}
		b, _ := json.Marshal(st)
		return b, nil
	})
	if updateErr != nil {
		s.Log.Error().Err(updateErr).Str("room", roomID).Msg("reply bookkeeping failed")
		return
	}

	if err != nil {
		s.Log.Warn().Err(err).Str("room", roomID).Msg("reply generation failed")
		return
	}
	if !ok {
		return // generator memutuskan diam; bukan error
	}
	if s.Emitter != nil {
		env := events.NewEnvelope(s.Service, diner.EventMasterReply, roomID,
			diner.MasterReplyPayload{RoomID: roomID, DisplayName: s.DisplayName, Text: reply})
		s.Emitter.Emit(diner.TopicMasterReply, diner.RoomKey(roomID), env)
	}
}

// orderActivity membaca slot dapur dari store, jadi konsisten
// read-after-write dengan engine: tidak ada "idle" basi saat ada order
// yang sedang dimasak.
func (s *Scheduler) orderActivity(ctx context.Context, roomID string) (diner.MasterStatus, string, error) {
	if slot, err := s.readSlot(ctx, fmt.Sprintf(redisx.KeyServing, roomID)); err != nil {
		return "", "", err
	} else if slot != nil {
		return diner.MasterServing, slot.OrderID, nil
	}
	if slot, err := s.readSlot(ctx, fmt.Sprintf(redisx.KeyKitchen, roomID)); err != nil {
		return "", "", err
	} else if slot != nil {
		return diner.MasterPreparingOrder, slot.OrderID, nil
	}
	return "", "", nil
}

func (s *Scheduler) readSlot(ctx context.Context, key string) (*diner.KitchenSlot, error) {
	b, err := s.Store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var slot diner.KitchenSlot
	if err := json.Unmarshal(b, &slot); err != nil {
		return nil, nil
	}
	return &slot, nil
}

// baseStatus: status non-busy terendah. CONVERSING selama masih hangat
// setelah balasan, CLEANING di jendela wall-clock, sisanya IDLE.
func (s *Scheduler) baseStatus(st diner.MasterState, now time.Time) diner.MasterStatus {
	if !st.LastResponseAt.IsZero() && now.Sub(st.LastResponseAt) <= s.ConversingWindow {
		return diner.MasterConversing
	}
	if s.CleaningEvery > 0 && s.CleaningFor > 0 {
		phase := time.Duration(now.UnixNano()) % s.CleaningEvery
		if phase < s.CleaningFor {
			return diner.MasterCleaning
		}
	}
	return diner.MasterIdle
}

// emitIfChanged memancarkan MasterStatusChanged hanya saat status beda
// dari yang terakhir dipancarkan untuk room itu. Scheduler satu-satunya
// penulis state, jadi bookkeeping-nya cukup di record yang sama.
func (s *Scheduler) emitIfChanged(ctx context.Context, roomID string) {
	if s.Emitter == nil {
		return
	}
	changed := false
	var snapshot diner.MasterState
	err := s.Store.Update(ctx, s.stateKey(roomID), func(cur []byte) ([]byte, error) {
		changed = false
		st := s.decode(cur)
		if st.Status == st.EmittedStatus {
			return cur, nil
		}
		st.EmittedStatus = st.Status
		changed = true
		snapshot = st
		b, _ := json.Marshal(st)
		return b, nil
	})
	if err != nil || !changed {
		return
	}
	env := events.NewEnvelope(s.Service, diner.EventMasterStatusChanged, roomID,
		diner.MasterStatusChangedPayload{RoomID: roomID, Status: snapshot.Status, DisplayName: snapshot.DisplayName})
	s.Emitter.Emit(diner.TopicMasterStatus, diner.RoomKey(roomID), env)
}

func (s *Scheduler) State(ctx context.Context, roomID string) (diner.MasterState, error) {
	b, err := s.Store.Get(ctx, s.stateKey(roomID))
	if errors.Is(err, store.ErrNotFound) {
		return diner.MasterState{Status: diner.MasterIdle, DisplayName: s.DisplayName}, nil
	}
	if err != nil {
		return diner.MasterState{}, err
	}
	return s.decode(b), nil
}

type Stats struct {
	Status           diner.MasterStatus `json:"status"`
	PendingOrders    int64              `json:"pending_orders"`
	RecentResponses  int                `json:"recent_responses"`
	LastResponseTime time.Time          `json:"last_response_time"`
}

func (s *Scheduler) Stats(ctx context.Context, roomID string) (Stats, error) {
	st, err := s.State(ctx, roomID)
	if err != nil {
		return Stats{}, err
	}
	pending, err := s.pendingOrders(ctx, roomID)
	if err != nil {
		return Stats{}, err
	}
	if slot, _ := s.readSlot(ctx, fmt.Sprintf(redisx.KeyKitchen, roomID)); slot != nil {
		pending++
	}
	return Stats{
		Status:           st.Status,
		PendingOrders:    pending,
		RecentResponses:  st.ResponseCount,
		LastResponseTime: st.LastResponseAt,
	}, nil
}

// pendingOrders hitung order QUEUED beneran; tombstone cancel di
// antrian dilewati, sama seperti snapshot dapur.
func (s *Scheduler) pendingOrders(ctx context.Context, roomID string) (int64, error) {
	ids, err := s.Store.QueueItems(ctx, fmt.Sprintf(redisx.KeyOrderQueue, roomID))
	if err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		b, err := s.Store.Get(ctx, fmt.Sprintf(redisx.KeyOrder, id))
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		var o diner.Order
		if json.Unmarshal(b, &o) != nil {
			continue
		}
		if o.Status == diner.OrderQueued {
			n++
		}
	}
	return n, nil
}

func (s *Scheduler) decode(b []byte) diner.MasterState {
	st := diner.MasterState{Status: diner.MasterIdle, DisplayName: s.DisplayName}
	if b != nil {
		_ = json.Unmarshal(b, &st)
	}
	if st.DisplayName == "" {
		st.DisplayName = s.DisplayName
	}
	return st
}
