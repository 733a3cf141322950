// Package signing implements the HMAC request signing and verification
// scheme used for every Authority<->Gateway internal call (spec §6). Unlike
// the teacher's Slack/Mattermost webhook verifiers, which validate a
// provider-defined header format, this is a small bespoke scheme shared by
// both peers, so it is implemented directly against crypto/hmac rather than
// adapted from either provider's SDK.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	// HeaderTimestamp carries decimal millis since epoch.
	HeaderTimestamp = "X-Internal-Timestamp"
	// HeaderSignature carries lowercase hex HMAC-SHA256.
	HeaderSignature = "X-Internal-Signature"
)

// Sign computes the lowercase hex HMAC-SHA256 signature over
// "METHOD:PATH:BODY:TIMESTAMP" using secret as the key.
func Sign(secret, method, path string, body []byte, timestampMillis int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	msg := fmt.Sprintf("%s:%s:%s:%d", method, path, body, timestampMillis)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// NowMillis returns the current time as decimal millis since epoch, the
// format the signer and verifier exchange over HeaderTimestamp.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// SignRequest stamps an outgoing *http.Request with the timestamp and
// signature headers, signing over body exactly as sent (an empty body is
// NOT rewritten to "{}" — the receiver verifies whatever was actually sent).
func SignRequest(req *http.Request, secret string, body []byte) {
	ts := NowMillis()
	sig := Sign(secret, req.Method, req.URL.Path, body, ts)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, sig)
}

// Verify checks a received request's signature against secret and a maximum
// clock skew. It uses a constant-time comparison to defeat timing attacks,
// as spec §6 requires of both endpoints.
func Verify(secret, method, path string, body []byte, header http.Header, maxSkew time.Duration) error {
	tsRaw := header.Get(HeaderTimestamp)
	sigRaw := header.Get(HeaderSignature)
	if tsRaw == "" || sigRaw == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return ErrMissingHeaders
	}

	now := NowMillis()
	skew := now - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Millisecond > maxSkew {
		return ErrClockSkew
	}

	expected := Sign(secret, method, path, body, ts)
	if !hmac.Equal([]byte(expected), []byte(sigRaw)) {
		return ErrBadSignature
	}

	return nil
}
