package payments

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrDuplicateOrder     = errors.New("order already exists")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrNotConfigured      = errors.New("payment gateway not configured")
)
