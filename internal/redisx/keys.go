package redisx

import "time"

// Keyspace diner. Tiap komponen pegang namespace sendiri;
// cuma seat-swap & restore yang sengaja lintas namespace.
const (
	// Room record: room:{roomId} -> {roomId, seatCount, createdAt}
	KeyRoom = "room:%s"

	// Occupancy: seat:{roomId}:{seatId} -> {userId, userName, since}
	KeySeat = "seat:%s:%d"

	// Reverse index: seatof:{roomId}:{userId} -> seatId
	KeySeatOf = "seatof:%s:%s"

	// Order record: order:{orderId}
	KeyOrder = "order:%s"

	// Antrian FIFO per room: orderq:{roomId} -> [orderId...]
	KeyOrderQueue = "orderq:%s"

	// Slot dapur (satu order PREPARING per room): kitchen:{roomId}
	KeyKitchen = "kitchen:%s"

	// Order READY yang menunggu delivery step: serving:{roomId}
	KeyServing = "serving:%s"

	// Marker order aktif (QUEUED/PREPARING) per user: active:{userId} -> orderId
	KeyActiveOrder = "active:%s"

	// Marker order SERVED yang belum di-complete: plate:{userId} -> orderId
	KeyPlate = "plate:%s"

	// Consumable per kursi: consumable:{userId}:{roomId}:{seatId} -> []Consumable
	KeyConsumable = "consumable:%s:%s:%d"

	// State master per room: master:{roomId}:state
	KeyMaster = "master:%s:state"

	// Dedup event processing: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"
)

// Prefix untuk scan & reset admin.
const (
	PrefixSeat       = "seat:"
	PrefixSeatOf     = "seatof:"
	PrefixConsumable = "consumable:"
	PrefixOrder      = "order:"
)

var TTLDedup = 48 * time.Hour
