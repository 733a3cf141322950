package signing

import (
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func headerAt(secret, method, path string, body []byte, timestampMillis int64) http.Header {
	h := http.Header{}
	h.Set(HeaderTimestamp, strconv.FormatInt(timestampMillis, 10))
	h.Set(HeaderSignature, Sign(secret, method, path, body, timestampMillis))
	return h
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{"sessionToken":"tok-1"}`)
	header := headerAt(secret, http.MethodPost, "/internal/schemas/provision", body, NowMillis())

	if err := Verify(secret, http.MethodPost, "/internal/schemas/provision", body, header, 5*time.Minute); err != nil {
		t.Errorf("Verify() error = %v, want nil", err)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{}`)
	header := headerAt("wrong-secret", http.MethodGet, "/path", body, NowMillis())

	err := Verify(secret, http.MethodGet, "/path", body, header, 5*time.Minute)
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("Verify() error = %v, want ErrBadSignature", err)
	}
}

func TestVerifyRejectsMissingHeaders(t *testing.T) {
	err := Verify("secret", http.MethodGet, "/path", nil, http.Header{}, 5*time.Minute)
	if !errors.Is(err, ErrMissingHeaders) {
		t.Errorf("Verify() error = %v, want ErrMissingHeaders", err)
	}
}

func TestVerifyClockSkewBoundary(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{}`)
	maxSkew := 5 * time.Minute

	tests := []struct {
		name    string
		skewAgo time.Duration
		wantErr error
	}{
		{name: "exactly at max skew is accepted", skewAgo: maxSkew, wantErr: nil},
		{name: "1ms past max skew is rejected", skewAgo: maxSkew + time.Millisecond, wantErr: ErrClockSkew},
		{name: "well within window is accepted", skewAgo: time.Second, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := NowMillis() - tt.skewAgo.Milliseconds()
			header := headerAt(secret, http.MethodGet, "/path", body, ts)

			err := Verify(secret, http.MethodGet, "/path", body, header, maxSkew)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Verify() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignRequestStampsHeadersVerifiably(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{"token":"tok-1"}`)
	req, err := http.NewRequest(http.MethodPost, "http://gateway.internal/internal/schemas/provision", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	SignRequest(req, secret, body)

	if err := Verify(secret, req.Method, req.URL.Path, body, req.Header, 5*time.Minute); err != nil {
		t.Errorf("Verify() of a SignRequest-stamped request error = %v, want nil", err)
	}
}
