package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
	"github.com/ariefcatur/go-diner-live.git/internal/kitchen"
	"github.com/ariefcatur/go-diner-live.git/internal/seats"
	"github.com/ariefcatur/go-diner-live.git/internal/service"
	"github.com/ariefcatur/go-diner-live.git/internal/store"
)

// DinerHandler mengekspos command (untuk dev/transport lokal), snapshot
// read-only buat tooling debug, dan reset admin.
type DinerHandler struct {
	Svc *service.Service
}

func (h *DinerHandler) Register(r *chi.Mux) {
	r.Post("/rooms/{roomID}/seats/{seatID}/join", h.joinSeat)
	r.Post("/rooms/{roomID}/leave", h.leaveSeat)
	r.Post("/orders", h.placeOrder)
	r.Post("/orders/complete", h.completeOrder)
	r.Post("/chat", h.chat)

	r.Get("/menu", h.menu)
	r.Get("/rooms/{roomID}/seats", h.seatSnapshot)
	r.Get("/rooms/{roomID}/queue", h.queueStatus)
	r.Get("/rooms/{roomID}/master", h.masterStats)
	r.Get("/users/{userID}/consumables", h.consumables)

	r.Post("/admin/rooms/{roomID}/init", h.initRoom)
	r.Post("/admin/reinit", h.reinit)
	r.Post("/admin/consumables/clear", h.clearConsumables)
	r.Post("/admin/seats/clear", h.clearSeats)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr menerjemahkan error domain jadi reason string spesifik.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, seats.ErrSeatOccupied):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "seat already occupied"})
	case errors.Is(err, seats.ErrNotSeated), errors.Is(err, kitchen.ErrNotSeated):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "not seated"})
	case errors.Is(err, seats.ErrBadSeat):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seat out of range"})
	case errors.Is(err, kitchen.ErrDuplicateActiveOrder):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already has active order"})
	case errors.Is(err, kitchen.ErrNoServedOrder):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no served order"})
	case errors.Is(err, diner.ErrUnknownItem):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown menu item"})
	case errors.Is(err, store.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "state store unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func reqCtx(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

type joinReq struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

func (h *DinerHandler) joinSeat(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	seatID, err := strconv.Atoi(chi.URLParam(r, "seatID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad seat id"})
		return
	}
	var req joinReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	ctx, cancel := reqCtx(r, 5*time.Second)
	defer cancel()
	res, err := h.Svc.JoinSeat(ctx, roomID, seatID, req.UserID, req.UserName)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"seat_id": res.SeatID, "swapped": res.Swapped, "from_seat": res.FromSeat, "rejoined": res.Rejoined,
	})
}

type leaveReq struct {
	UserID string `json:"user_id"`
}

func (h *DinerHandler) leaveSeat(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	var req leaveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	ctx, cancel := reqCtx(r, 5*time.Second)
	defer cancel()
	seatID, err := h.Svc.LeaveSeat(ctx, roomID, req.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seat_id": seatID})
}

type placeOrderReq struct {
	UserID  string `json:"user_id"`
	RoomID  string `json:"room_id"`
	SeatID  int    `json:"seat_id"`
	ItemRef string `json:"item_ref"`
}

func (h *DinerHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.RoomID == "" || req.ItemRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	ctx, cancel := reqCtx(r, 5*time.Second)
	defer cancel()
	orderID, err := h.Svc.PlaceOrder(ctx, req.UserID, req.RoomID, req.SeatID, req.ItemRef)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"order_id": orderID})
}

func (h *DinerHandler) completeOrder(w http.ResponseWriter, r *http.Request) {
	var req leaveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	ctx, cancel := reqCtx(r, 5*time.Second)
	defer cancel()
	if err := h.Svc.CompleteOrder(ctx, req.UserID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

type chatReq struct {
	UserID  string `json:"user_id"`
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

func (h *DinerHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.RoomID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	ctx, cancel := reqCtx(r, 5*time.Second)
	defer cancel()
	if err := h.Svc.ChatMessage(ctx, req.UserID, req.RoomID, req.Content, time.Now().UTC()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "noted"})
}

func (h *DinerHandler) menu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, diner.MenuItems())
}

func (h *DinerHandler) seatSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r, 3*time.Second)
	defer cancel()
	snap, err := h.Svc.SeatSnapshot(ctx, chi.URLParam(r, "roomID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *DinerHandler) queueStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r, 3*time.Second)
	defer cancel()
	qs, err := h.Svc.QueueStatus(ctx, chi.URLParam(r, "roomID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *DinerHandler) masterStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r, 3*time.Second)
	defer cancel()
	st, err := h.Svc.MasterStats(ctx, chi.URLParam(r, "roomID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *DinerHandler) consumables(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	roomID := r.URL.Query().Get("room_id")
	seatID, _ := strconv.Atoi(r.URL.Query().Get("seat_id"))
	ctx, cancel := reqCtx(r, 3*time.Second)
	defer cancel()
	list, err := h.Svc.ConsumableSnapshot(ctx, userID, roomID, seatID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *DinerHandler) initRoom(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r, 5*time.Second)
	defer cancel()
	if err := h.Svc.InitializeRoom(ctx, chi.URLParam(r, "roomID")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}

func (h *DinerHandler) reinit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r, 10*time.Second)
	defer cancel()
	if err := h.Svc.ReinitializeSystem(ctx); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reinitialized"})
}

func (h *DinerHandler) clearConsumables(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r, 10*time.Second)
	defer cancel()
	if err := h.Svc.ClearAllConsumables(ctx); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *DinerHandler) clearSeats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r, 10*time.Second)
	defer cancel()
	if err := h.Svc.ClearSeatMappings(ctx); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
