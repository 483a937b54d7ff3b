package diner

import (
	"encoding/json"
	"time"
)

const (
	EventSeatChanged         = "SeatChanged"
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventOrderFinalized      = "OrderFinalized"
	EventConsumableUpdated   = "ConsumableUpdated"
	EventConsumableExpired   = "ConsumableExpired"
	EventMasterStatusChanged = "MasterStatusChanged"
	EventMasterReply         = "MasterReply"
	EventChatMessageOccurred = "ChatMessageOccurred"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type SeatChangedPayload struct {
	RoomID   string `json:"room_id"`
	SeatID   int    `json:"seat_id"`
	UserID   string `json:"user_id,omitempty"`   // kosong = kursi divacate
	UserName string `json:"user_name,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID string      `json:"order_id"`
	RoomID  string      `json:"room_id"`
	UserID  string      `json:"user_id"`
	Status  OrderStatus `json:"status"`
}

const (
	FinalCompleted = "COMPLETED"
	FinalExpired   = "EXPIRED"
	FinalFailed    = "FAILED"
	FinalCancelled = "CANCELLED"
)

type OrderFinalizedPayload struct {
	OrderID     string `json:"order_id"`
	FinalStatus string `json:"final_status"` // COMPLETED | EXPIRED | FAILED
	Reason      string `json:"reason,omitempty"`
	Order       Order  `json:"order"` // snapshot penuh untuk archiver
}

type ConsumableUpdatedPayload struct {
	UserID      string       `json:"user_id"`
	RoomID      string       `json:"room_id"`
	SeatID      int          `json:"seat_id"`
	Consumables []Consumable `json:"consumables"`
}

type ConsumableExpiredPayload struct {
	ConsumableID string `json:"consumable_id"`
	UserID       string `json:"user_id"`
	RoomID       string `json:"room_id"`
	SeatID       int    `json:"seat_id"`
	ItemName     string `json:"item_name"`
	OrderID      string `json:"order_id"`
}

type MasterStatusChangedPayload struct {
	RoomID      string       `json:"room_id"`
	Status      MasterStatus `json:"status"`
	DisplayName string       `json:"display_name"`
}

type MasterReplyPayload struct {
	RoomID      string `json:"room_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
}

// Inbound dari transport layer (websocket relay di luar scope).
type ChatMessageOccurredPayload struct {
	UserID    string    `json:"user_id"`
	RoomID    string    `json:"room_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
