// Package profile provides sender-profile lookup with a bounded in-process
// cache. Raw customer IDs never enter the cache: keys are opaque digests.
package profile

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"
)

// Profile is the subset of the customer record the gateway needs to enrich
// outbound messages.
type Profile struct {
	CustomerID int    `json:"customerId"`
	Mobile     string `json:"mobile"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

// DisplayName joins the first and last name for the senderName envelope field.
func (p Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Loader fetches a profile from the external profile service by raw customer ID.
type Loader interface {
	LoadProfile(ctx context.Context, customerID string) (Profile, error)
}

// Digest returns the cache key for a raw user identifier: URL-safe unpadded
// base64 of SHA-256 over the UTF-8 bytes. Deterministic across restarts.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// loadTimeout bounds the external profile call so a slow profile service
// cannot stall a delivery worker.
const loadTimeout = 10 * time.Second
