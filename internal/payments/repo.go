package payments

import "context"

// Repo persists orders.
type Repo interface {
	Create(ctx context.Context, order Order) error
	GetByOrderID(ctx context.Context, orderID string) (Order, error)
	UpdateStatus(ctx context.Context, orderID, status, transactionID string, gatewayResponse map[string]any) error
}
