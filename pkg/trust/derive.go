package trust

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ServiceSecretSize is the byte length of every derived service secret.
const ServiceSecretSize = 32

// DeriveServiceSecret derives the signing secret for one internal service
// from the platform master secret using HKDF-SHA256, with the service id as
// the info parameter. The derivation is deterministic: the same
// (masterSecret, serviceID) pair always yields the same secret, and secrets
// for different service ids (including the empty id) are unrelated.
//
// Secrets are recomputed on demand and never persisted.
func DeriveServiceSecret(masterSecret []byte, serviceID string) []byte {
	hk := hkdf.New(sha256.New, masterSecret, nil, []byte(serviceID))
	out := make([]byte, ServiceSecretSize)
	if _, err := io.ReadFull(hk, out); err != nil {
		// hkdf only errors past 255 blocks; unreachable for 32 bytes.
		panic(err)
	}
	return out
}
