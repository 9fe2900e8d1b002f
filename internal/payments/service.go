package payments

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"resuradar/internal/shared/metrics"
	"resuradar/internal/shared/telemetry"
)

// CurrencyINR is the only supported currency.
const CurrencyINR = "INR"

var (
	ErrAmountRequired  = errors.New("amount must be positive")
	ErrOrderIDRequired = errors.New("order id is required")
)

// Gateway is the payment provider surface used by the service.
type Gateway interface {
	CreateCheckout(ctx context.Context, orderID string, amountPaise int64, redirectURL string) (string, map[string]any, error)
	OrderStatus(ctx context.Context, orderID string) (Status, map[string]any, error)
}

// PremiumGranter upgrades an account once payment completes.
type PremiumGranter interface {
	MarkPremium(ctx context.Context, userID string) error
}

type Service struct {
	Repo        Repo
	Gateway     Gateway
	Users       PremiumGranter
	RedirectURL string
	now         func() time.Time
}

func NewService(repo Repo, gateway Gateway, users PremiumGranter, redirectURL string) *Service {
	return &Service{Repo: repo, Gateway: gateway, Users: users, RedirectURL: redirectURL, now: time.Now}
}

// Initiate opens a checkout for the order and records it as pending.
// It returns the hosted payment page URL.
func (s *Service) Initiate(ctx context.Context, userID, orderID string, amount float64) (string, error) {
	if s == nil || s.Repo == nil || s.Gateway == nil {
		return "", ErrNotConfigured
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", ErrOrderIDRequired
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", ErrAmountRequired
	}
	if _, err := s.Repo.GetByOrderID(ctx, orderID); err == nil {
		return "", ErrDuplicateOrder
	} else if !errors.Is(err, ErrOrderNotFound) {
		return "", err
	}

	redirect, raw, err := s.Gateway.CreateCheckout(ctx, orderID, ToPaise(amount), s.RedirectURL)
	if err != nil {
		telemetry.Error("payment.initiate_failed", map[string]any{
			"order_id": orderID,
			"user_id":  userID,
			"error":    err.Error(),
		})
		return "", err
	}

	now := s.clock().UTC()
	order := Order{
		OrderID:         orderID,
		UserID:          userID,
		Amount:          amount,
		Currency:        CurrencyINR,
		PaymentStatus:   StatusPending,
		GatewayResponse: raw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(ctx, order); err != nil {
		return "", err
	}
	telemetry.Info("payment.initiated", map[string]any{
		"order_id": orderID,
		"user_id":  userID,
		"amount":   amount,
	})
	return redirect, nil
}

// Verify refreshes the order from the gateway. A completed payment upgrades the caller.
func (s *Service) Verify(ctx context.Context, userID, orderID string) (Status, error) {
	if s == nil || s.Repo == nil || s.Gateway == nil {
		return Status{}, ErrNotConfigured
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Status{}, ErrOrderIDRequired
	}
	order, err := s.Repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return Status{}, err
	}
	if order.UserID != userID {
		return Status{}, ErrOrderNotFound
	}

	status, raw, err := s.Gateway.OrderStatus(ctx, orderID)
	if err != nil {
		telemetry.Error("payment.verify_failed", map[string]any{
			"order_id": orderID,
			"user_id":  userID,
			"error":    err.Error(),
		})
		return Status{}, err
	}

	local := LocalStatus(status.State)
	if err := s.Repo.UpdateStatus(ctx, orderID, local, status.TransactionID, raw); err != nil {
		return Status{}, err
	}
	metrics.IncPaymentVerified(local)

	if status.State == StateCompleted && s.Users != nil {
		if err := s.Users.MarkPremium(ctx, userID); err != nil {
			return Status{}, err
		}
		telemetry.Info("payment.premium_granted", map[string]any{
			"order_id": orderID,
			"user_id":  userID,
		})
	}
	return status, nil
}

// ToPaise converts an INR amount to the smallest currency unit.
func ToPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
