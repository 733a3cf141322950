package sandbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PaymentProvider is the capability interface for checkout/payment flows.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, amountCents int, currency string) (string, error)
	ConfirmPayment(ctx context.Context, checkoutSessionID string) (string, error)
	RefundPayment(ctx context.Context, paymentID string) (string, error)
}

// MockPaymentProvider always succeeds with synthetic ids and performs no
// outbound network call.
type MockPaymentProvider struct{}

func NewMockPaymentProvider() *MockPaymentProvider { return &MockPaymentProvider{} }

func (MockPaymentProvider) CreateCheckoutSession(ctx context.Context, amountCents int, currency string) (string, error) {
	return fmt.Sprintf("mock_checkout_%s", uuid.NewString()), nil
}

func (MockPaymentProvider) ConfirmPayment(ctx context.Context, checkoutSessionID string) (string, error) {
	return fmt.Sprintf("mock_payment_%s", uuid.NewString()), nil
}

func (MockPaymentProvider) RefundPayment(ctx context.Context, paymentID string) (string, error) {
	return fmt.Sprintf("mock_refund_%s", uuid.NewString()), nil
}

// RealPaymentProvider is an inert stub awaiting a production wiring.
type RealPaymentProvider struct{}

func (RealPaymentProvider) CreateCheckoutSession(ctx context.Context, amountCents int, currency string) (string, error) {
	return "", ErrNotImplemented
}
func (RealPaymentProvider) ConfirmPayment(ctx context.Context, checkoutSessionID string) (string, error) {
	return "", ErrNotImplemented
}
func (RealPaymentProvider) RefundPayment(ctx context.Context, paymentID string) (string, error) {
	return "", ErrNotImplemented
}
