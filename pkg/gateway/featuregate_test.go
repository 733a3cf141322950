package gateway

import "testing"

func TestAdmits(t *testing.T) {
	tests := []struct {
		name             string
		sessionFeatures  []string
		required         string
		want             bool
	}{
		{name: "exact match", sessionFeatures: []string{"ecommerce.products"}, required: "ecommerce.products", want: true},
		{name: "module-level grant admits sub-feature", sessionFeatures: []string{"ecommerce"}, required: "ecommerce.products", want: true},
		{name: "different sub-feature does not admit", sessionFeatures: []string{"ecommerce.cart"}, required: "ecommerce.products", want: false},
		{name: "no features at all", sessionFeatures: nil, required: "ecommerce.products", want: false},
		{name: "unrelated module", sessionFeatures: []string{"booking.services"}, required: "ecommerce.products", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Admits(tt.sessionFeatures, tt.required); got != tt.want {
				t.Errorf("Admits(%v, %q) = %v, want %v", tt.sessionFeatures, tt.required, got, tt.want)
			}
		})
	}
}

func TestRouteMapRequiredFeature(t *testing.T) {
	routes := RouteMap{
		"/api/v1/ecommerce/products": "ecommerce.products",
		"/api/v1/booking/services":   "booking.services",
	}

	tests := []struct {
		path         string
		wantFeature  string
		wantFound    bool
	}{
		{path: "/api/v1/ecommerce/products", wantFeature: "ecommerce.products", wantFound: true},
		{path: "/api/v1/ecommerce/products/123", wantFeature: "ecommerce.products", wantFound: true},
		{path: "/api/v1/core/ping", wantFeature: "", wantFound: false},
		{path: "/health", wantFeature: "", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := routes.RequiredFeature(tt.path)
			if found != tt.wantFound || got != tt.wantFeature {
				t.Errorf("RequiredFeature(%q) = (%q, %v), want (%q, %v)", tt.path, got, found, tt.wantFeature, tt.wantFound)
			}
		})
	}
}
