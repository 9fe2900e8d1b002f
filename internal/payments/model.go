package payments

import "time"

// Order payment states stored locally.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Gateway order states reported by PhonePe.
const (
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StatePending   = "PENDING"
)

// Order is a premium upgrade purchase.
type Order struct {
	OrderID         string         `json:"orderId"`
	UserID          string         `json:"userId"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	PaymentStatus   string         `json:"paymentStatus"`
	TransactionID   string         `json:"transactionId,omitempty"`
	GatewayResponse map[string]any `json:"-"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Status is the gateway view of an order.
type Status struct {
	State         string `json:"status"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	ErrorCode     string `json:"errorCode"`
	ExpireAt      int64  `json:"expireAt"`
}

// LocalStatus maps a gateway state onto the stored payment status.
func LocalStatus(state string) string {
	switch state {
	case StateCompleted:
		return StatusSuccess
	case StateFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}
