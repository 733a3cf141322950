package sandbox

import "context"

// Stubs bundles the three always-substituted providers attached to every
// tenant request context by the Gateway pipeline (spec §4.3 step 5).
type Stubs struct {
	Email   EmailProvider
	Payment PaymentProvider
	Storage StorageProvider
}

// NewMockStubs returns the bundle used for every preview request.
func NewMockStubs(email *MockEmailProvider) Stubs {
	return Stubs{
		Email:   email,
		Payment: NewMockPaymentProvider(),
		Storage: NewMockStorageProvider(),
	}
}

type stubsContextKey struct{}

// NewContext attaches stubs to ctx.
func NewContext(ctx context.Context, stubs Stubs) context.Context {
	return context.WithValue(ctx, stubsContextKey{}, stubs)
}

// FromContext retrieves the stubs attached by NewContext.
func FromContext(ctx context.Context) (Stubs, bool) {
	stubs, ok := ctx.Value(stubsContextKey{}).(Stubs)
	return stubs, ok
}
