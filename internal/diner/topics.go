package diner

const (
	TopicSeatChanged       = "diner.seat.changed"
	TopicOrderStatus       = "diner.order.status"
	TopicOrderFinalized    = "diner.order.finalized"
	TopicConsumableUpdated = "diner.consumable.updated"
	TopicConsumableExpired = "diner.consumable.expired"
	TopicMasterStatus      = "diner.master.status"
	TopicMasterReply       = "diner.master.reply"
	TopicChatOccurred      = "chat.message.occurred"
)

// Partition key per room supaya event satu room maintain urutan.
func RoomKey(roomID string) []byte { return []byte(roomID) }

// Partition key per order, dipakai topic order.* (urutan per order).
func OrderKey(orderID string) []byte { return []byte(orderID) }
