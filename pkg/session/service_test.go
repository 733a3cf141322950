package session

import "testing"

func TestValidateFeatures(t *testing.T) {
	tests := []struct {
		name     string
		features []string
		wantErr  bool
	}{
		{name: "empty list", features: nil, wantErr: false},
		{name: "valid dotted features", features: []string{"ecommerce.products", "ecommerce.cart"}, wantErr: false},
		{name: "blank feature", features: []string{""}, wantErr: true},
		{name: "feature with whitespace", features: []string{"ecommerce products"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFeatures(tt.features)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFeatures(%v) error = %v, wantErr %v", tt.features, err, tt.wantErr)
			}
		})
	}
}

func TestNewTokenIsURLSafeAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := newToken()
		if err != nil {
			t.Fatalf("newToken() error: %v", err)
		}
		if len(tok) < 20 {
			t.Fatalf("newToken() too short: %q", tok)
		}
		for _, r := range tok {
			if r == '+' || r == '/' || r == '=' {
				t.Fatalf("newToken() not URL-safe: %q", tok)
			}
		}
		if seen[tok] {
			t.Fatalf("newToken() produced duplicate: %q", tok)
		}
		seen[tok] = true
	}
}
