/**
 * @description
 * This file implements the state token embedded in onboarding redirect URLs.
 * The token ties a browser's return/refresh visit back to the seller the
 * link was issued for, so a forged or copied redirect cannot act on another
 * seller's account.
 *
 * The token is a base64 string of four pipe-joined fields:
 *
 *	<ownerId>|<unixSeconds>|<nonce>|<hash>
 *
 * where hash = hex SHA-256 of "<secret>:<ownerId>:<unixSeconds>:<nonce>".
 * It is a distinct artifact from the service-to-service envelope: it rides
 * in query strings, expires after an hour, and validation never returns a
 * reason. Any malformed or stale token is simply invalid.
 */
package statetoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// TokenTTL is the maximum accepted token age.
	TokenTTL = 3600 * time.Second
	// nonceSize is the number of random bytes behind each token's nonce.
	nonceSize = 16

	fieldCount = 4
	separator  = "|"
)

// Issue builds a fresh token for ownerID, stamped with the current time.
func Issue(ownerID string, secret []byte) (string, error) {
	return IssueAt(ownerID, secret, time.Now())
}

// IssueAt is Issue with an explicit clock.
func IssueAt(ownerID string, secret []byte, now time.Time) (string, error) {
	nonceBytes := make([]byte, nonceSize)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("statetoken: generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)
	ts := strconv.FormatInt(now.Unix(), 10)

	joined := strings.Join([]string{ownerID, ts, nonce, computeHash(secret, ownerID, ts, nonce)}, separator)
	return base64.RawURLEncoding.EncodeToString([]byte(joined)), nil
}

// Validate reports whether token is authentic for ownerID and no older than
// TokenTTL. Every failure mode, including malformed input, yields false; the
// token guards a browser redirect and must fail closed without detail.
//
// Validation is purely time-bounded: an unexpired token remains valid if
// presented again.
func Validate(token, ownerID string, secret []byte) bool {
	return ValidateAt(token, ownerID, secret, time.Now())
}

// ValidateAt is Validate with an explicit clock.
func ValidateAt(token, ownerID string, secret []byte, now time.Time) bool {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false
	}

	fields := strings.Split(string(decoded), separator)
	if len(fields) != fieldCount {
		return false
	}
	tokenOwner, ts, nonce, hash := fields[0], fields[1], fields[2], fields[3]

	if tokenOwner != ownerID {
		return false
	}

	expected := computeHash(secret, ownerID, ts, nonce)
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return false
	}

	issuedAt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if now.Unix()-issuedAt > int64(TokenTTL/time.Second) {
		return false
	}
	return true
}

func computeHash(secret []byte, ownerID, ts, nonce string) string {
	h := sha256.New()
	h.Write(secret)
	h.Write([]byte(":"))
	h.Write([]byte(ownerID))
	h.Write([]byte(":"))
	h.Write([]byte(ts))
	h.Write([]byte(":"))
	h.Write([]byte(nonce))
	return hex.EncodeToString(h.Sum(nil))
}
