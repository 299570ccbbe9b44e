/**
 * @description
 * This file implements the signed envelope exchanged between internal
 * services. The transport layer already provides an authenticated channel;
 * the envelope adds payload-level authenticity on top of it, so a service
 * relaying a request can prove which service originally produced it.
 *
 * Key features:
 * - HMAC-SHA256 signature over a versioned canonical string, keyed with the
 *   sender's derived service secret.
 * - Ordered verification: service identity, then signature, then freshness,
 *   each with its own sentinel error so callers can log the precise cause.
 * - Symmetric freshness window: timestamps too far in the past OR the future
 *   are rejected, bounding replay of captured envelopes.
 */
package trust

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// EnvelopeTTL bounds how far an envelope timestamp may drift from the
// verifier's clock, in either direction.
const EnvelopeTTL = 300 * time.Second

// canonicalVersion tags the string-to-sign layout. It must change if the
// field order or separators ever do, so signatures from one layout can never
// verify under another.
const canonicalVersion = "v1"

var (
	// ErrInvalidServiceID is returned when the envelope's serviceId does not
	// match the caller the receiver expected.
	ErrInvalidServiceID = errors.New("trust: invalid service id")
	// ErrInvalidSignature is returned when the recomputed HMAC does not match.
	ErrInvalidSignature = errors.New("trust: invalid signature")
	// ErrRequestExpired is returned when the timestamp falls outside the
	// freshness window.
	ErrRequestExpired = errors.New("trust: request expired")
)

// SignedEnvelope is the wire format for service-to-service requests. The
// signature covers every other field; a received envelope is never mutated,
// only accepted or rejected.
type SignedEnvelope struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	ServiceID string          `json:"serviceId"`
	Signature string          `json:"signature"`
}

// Sign wraps payload in an envelope stamped with the current time and signed
// with the sending service's secret.
func Sign(payload any, serviceID string, secret []byte) (SignedEnvelope, error) {
	return SignAt(payload, serviceID, secret, time.Now())
}

// SignAt is Sign with an explicit clock.
func SignAt(payload any, serviceID string, secret []byte, now time.Time) (SignedEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return SignedEnvelope{}, fmt.Errorf("trust: marshal payload: %w", err)
	}
	env := SignedEnvelope{
		Payload:   raw,
		Timestamp: now.Unix(),
		ServiceID: serviceID,
	}
	env.Signature = computeSignature(env, secret)
	return env, nil
}

// Verify checks an inbound envelope against the secret derived for
// expectedServiceID. It returns nil for an authentic, fresh envelope, or one
// of ErrInvalidServiceID, ErrInvalidSignature, ErrRequestExpired.
func Verify(env SignedEnvelope, expectedServiceID string, secret []byte) error {
	return VerifyAt(env, expectedServiceID, secret, time.Now())
}

// VerifyAt is Verify with an explicit clock.
func VerifyAt(env SignedEnvelope, expectedServiceID string, secret []byte, now time.Time) error {
	// The MAC is recomputed before any verdict; an identity mismatch must not
	// skip the signature work.
	expected := computeSignature(env, secret)
	signatureOK := hmac.Equal([]byte(expected), []byte(env.Signature))

	if env.ServiceID != expectedServiceID {
		return ErrInvalidServiceID
	}
	if !signatureOK {
		return ErrInvalidSignature
	}
	skew := now.Unix() - env.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(EnvelopeTTL/time.Second) {
		return ErrRequestExpired
	}
	return nil
}

// computeSignature returns the hex HMAC-SHA256 of the canonical string:
//
//	v1\n<serviceId>\n<timestamp>\n<payload bytes>
//
// The payload is signed as the exact bytes carried on the wire, so the
// signature does not depend on how a re-marshal would order JSON keys.
func computeSignature(env SignedEnvelope, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonicalVersion))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(env.ServiceID))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(env.Timestamp, 10)))
	mac.Write([]byte{'\n'})
	mac.Write(env.Payload)
	return hex.EncodeToString(mac.Sum(nil))
}
