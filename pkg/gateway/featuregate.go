// Package gateway implements the Tenant Gateway: request pipeline, session
// resolution and caching, circuit-broken Authority lookups, feature gating,
// and sandbox stub injection (spec §4.3).
package gateway

import "strings"

// RouteMap is the static table mapping a URL prefix to a required feature
// identifier. Paths not present are "core" routes, always admitted (spec
// §4.3, design note: "keep it a plain immutable lookup rather than any
// reflection").
type RouteMap map[string]string

// DefaultRouteMap is the hand-maintained prefix table for the feature
// modules this repository seeds (spec's own worked examples use
// ecommerce.products/ecommerce.cart and booking.services verbatim).
var DefaultRouteMap = RouteMap{
	"/api/v1/ecommerce/products": "ecommerce.products",
	"/api/v1/ecommerce/cart":     "ecommerce.cart",
	"/api/v1/booking/services":   "booking.services",
	"/api/v1/booking/appointments": "booking.appointments",
	"/api/v1/helpdesk/tickets":   "helpdesk.tickets",
}

// RequiredFeature returns the feature identifier path requires, and whether
// one was found. Matching is by longest registered prefix.
func (m RouteMap) RequiredFeature(path string) (string, bool) {
	var bestPrefix string
	found := false
	for prefix := range m {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix = prefix
			found = true
		}
	}
	if !found {
		return "", false
	}
	return m[bestPrefix], true
}

// Admits reports whether sessionFeatures satisfy required, per spec §4.3:
// admit iff sessionFeatures contains required exactly, or the required
// feature's module prefix, or any feature that is itself a sub-feature of
// required (a sibling sub-feature of the same module does not admit).
func Admits(sessionFeatures []string, required string) bool {
	module := required
	if idx := strings.IndexByte(required, '.'); idx >= 0 {
		module = required[:idx]
	}

	for _, f := range sessionFeatures {
		if f == required {
			return true
		}
		if f == module {
			return true
		}
		if strings.HasPrefix(f, required+".") {
			return true
		}
	}
	return false
}
