package diner

import "time"

type ItemType string

const (
	ItemFood    ItemType = "FOOD"
	ItemDrink   ItemType = "DRINK"
	ItemDessert ItemType = "DESSERT"
)

type Room struct {
	ID        string    `json:"room_id"`
	SeatCount int       `json:"seat_count"`
	CreatedAt time.Time `json:"created_at"`
}

// SeatRecord adalah isi key seat:{roomId}:{seatId}; absen = kursi kosong.
type SeatRecord struct {
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	Since    time.Time `json:"since"`
}

type Order struct {
	ID                   string      `json:"order_id"`
	UserID               string      `json:"user_id"`
	RoomID               string      `json:"room_id"`
	SeatID               int         `json:"seat_id"`
	ItemRef              string      `json:"item_ref"`
	Status               OrderStatus `json:"status"`
	Retries              int         `json:"retries"`
	EnqueuedAt           time.Time   `json:"enqueued_at"`
	PreparationStartedAt *time.Time  `json:"preparation_started_at,omitempty"`
	ReadyAt              *time.Time  `json:"ready_at,omitempty"`
	ServedAt             *time.Time  `json:"served_at,omitempty"`
}

type Consumable struct {
	ID               string   `json:"consumable_id"`
	UserID           string   `json:"user_id"`
	RoomID           string   `json:"room_id"`
	SeatID           int      `json:"seat_id"`
	ItemName         string   `json:"item_name"`
	ItemType         ItemType `json:"item_type"`
	DurationSeconds  int      `json:"duration_seconds"`
	RemainingSeconds int      `json:"remaining_seconds"`
	OrderID          string   `json:"order_id"`
}

// KitchenSlot adalah isi key kitchen:{roomId}; absen = dapur kosong.
type KitchenSlot struct {
	OrderID string    `json:"order_id"`
	Since   time.Time `json:"since"`
}

type ChatNote struct {
	UserID  string    `json:"user_id"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// MasterState punya satu penulis: scheduler. Komponen lain hanya baca.
type MasterState struct {
	Status          MasterStatus `json:"status"`
	DisplayName     string       `json:"display_name"`
	CurrentOrderID  string       `json:"current_order_id,omitempty"`
	LastChatEventAt time.Time    `json:"last_chat_event_at"`
	LastResponseAt  time.Time    `json:"last_response_at"`
	LastAttemptAt   time.Time    `json:"last_attempt_at"`
	ThinkingSince   *time.Time   `json:"thinking_since,omitempty"`
	PrevStatus      MasterStatus `json:"prev_status,omitempty"`
	EmittedStatus   MasterStatus `json:"emitted_status,omitempty"`
	ResponseCount   int          `json:"response_count"`
	RecentChat      []ChatNote   `json:"recent_chat,omitempty"`
}
