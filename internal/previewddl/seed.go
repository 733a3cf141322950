package previewddl

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Executor is the minimal subset of pgx.Tx/pgxpool.Pool the seeder needs. It
// intentionally discards the command tag returned by a real pgx Exec — seed
// statements never need rows-affected — so callers adapt their pool/conn with
// a small wrapper type (see connExecutor in pkg/schema/provisioner.go).
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) error
}

// seedFunc populates one feature module's tables.
type seedFunc func(ctx context.Context, exec Executor) error

var seedFuncs = map[string]seedFunc{
	"ecommerce": seedEcommerce,
	"booking":   seedBooking,
	"helpdesk":  seedHelpdesk,
}

// Seed populates only the tables belonging to the given session features.
// Features are dotted (e.g. "ecommerce.products"); only the module prefix
// before the first '.' determines which seed function runs, and each module
// is seeded at most once even if multiple sub-features select it.
func Seed(ctx context.Context, exec Executor, features []string) error {
	seen := make(map[string]bool)
	for _, f := range features {
		module := f
		if idx := strings.IndexByte(f, '.'); idx >= 0 {
			module = f[:idx]
		}
		if seen[module] {
			continue
		}
		seen[module] = true

		fn, ok := seedFuncs[module]
		if !ok {
			continue
		}
		if err := fn(ctx, exec); err != nil {
			return fmt.Errorf("seeding module %q: %w", module, err)
		}
	}
	return nil
}

func seedEcommerce(ctx context.Context, exec Executor) error {
	productID := uuid.New()
	if err := exec.Exec(ctx,
		`INSERT INTO ecommerce_products (id, name, price_cents, sku) VALUES ($1, $2, $3, $4)`,
		productID, "Sample Product", 1999, "SKU-"+productID.String()[:8],
	); err != nil {
		return err
	}
	return exec.Exec(ctx,
		`INSERT INTO ecommerce_cart_items (id, product_id, quantity) VALUES ($1, $2, $3)`,
		uuid.New(), productID, 1,
	)
}

func seedBooking(ctx context.Context, exec Executor) error {
	serviceID := uuid.New()
	return exec.Exec(ctx,
		`INSERT INTO booking_services (id, name, duration_mins) VALUES ($1, $2, $3)`,
		serviceID, "Sample Service", 30,
	)
}

func seedHelpdesk(ctx context.Context, exec Executor) error {
	return exec.Exec(ctx,
		`INSERT INTO helpdesk_tickets (id, subject) VALUES ($1, $2)`,
		uuid.New(), "Welcome to your preview",
	)
}
