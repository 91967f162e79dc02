package redisx

import "time"

const (
	// Blob persistence: blob:{key} -> JSON collection
	KeyBlob = "blob:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Cache status ticket: ticket_status:{ticket_id} -> same shape as order status
	KeyTicketStatus = "ticket_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
