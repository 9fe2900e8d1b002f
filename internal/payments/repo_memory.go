package payments

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores orders in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: make(map[string]Order)}
}

func (r *MemoryRepo) Create(ctx context.Context, order Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.OrderID]; exists {
		return ErrDuplicateOrder
	}
	r.orders[order.OrderID] = order
	return nil
}

func (r *MemoryRepo) GetByOrderID(ctx context.Context, orderID string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, orderID, status, transactionID string, gatewayResponse map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.PaymentStatus = status
	if transactionID != "" {
		order.TransactionID = transactionID
	}
	if gatewayResponse != nil {
		order.GatewayResponse = gatewayResponse
	}
	order.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = order
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
