package diner

type OrderStatus string

const (
	OrderQueued    OrderStatus = "QUEUED"
	OrderPreparing OrderStatus = "PREPARING"
	OrderReady     OrderStatus = "READY"
	OrderServed    OrderStatus = "SERVED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Transisi monoton, tidak ada regresi status. Revert saat preparation
// fault (PREPARING -> QUEUED) satu-satunya pengecualian yang diizinkan.
var validNextOrder = map[OrderStatus]map[OrderStatus]bool{
	OrderQueued:    {OrderPreparing: true, OrderCancelled: true},
	OrderPreparing: {OrderReady: true, OrderQueued: true, OrderCancelled: true},
	OrderReady:     {OrderServed: true},
	OrderServed:    {},
	OrderCancelled: {},
}

func CanTransitionOrder(from, to OrderStatus) bool {
	return validNextOrder[from][to]
}

type MasterStatus string

const (
	MasterIdle           MasterStatus = "IDLE"
	MasterThinking       MasterStatus = "THINKING"
	MasterPreparingOrder MasterStatus = "PREPARING_ORDER"
	MasterServing        MasterStatus = "SERVING"
	MasterCleaning       MasterStatus = "CLEANING"
	MasterConversing     MasterStatus = "CONVERSING"
)
