// Package idempotency caches responses to retried mutating requests so a
// client resending the same feedback does not apply it twice.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Key lifecycle states. StatusProcessing marks a key whose first request is
// still in flight; the database CHECK constraint references both values, so
// keep them in sync with the migrations.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// MaxKeyLength bounds client-chosen keys.
const MaxKeyLength = 64

var (
	ErrKeyNotFound = errors.New("idempotency key not found")
	ErrKeyExists   = errors.New("idempotency key already exists")
	ErrInvalidKey  = errors.New("invalid idempotency key")
	ErrKeyTooLong  = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// Record is a stored key with its cached response.
type Record struct {
	Key                string    `json:"key"`
	Method             string    `json:"method"`
	Route              string    `json:"route"`
	Status             string    `json:"status"`
	ResponseStatusCode int       `json:"response_status_code"`
	ResponseBody       string    `json:"response_body"`
	ResponseHash       string    `json:"response_hash"`
	CreatedAt          time.Time `json:"created_at"`
}

// ValidateKey rejects empty keys and keys over MaxKeyLength.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return ErrInvalidKey
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	}
	return nil
}

// ComputeResponseHash returns the hex SHA-256 of a response body, stored
// alongside the body to detect corruption of cached responses.
func ComputeResponseHash(responseBody string) string {
	sum := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(sum[:])
}

// Repository persists idempotency records.
type Repository interface {
	// Get returns the record for key, or ErrKeyNotFound.
	Get(key string) (*Record, error)

	// Store saves a new record, or returns ErrKeyExists.
	Store(record *Record) error

	// DeleteOlderThan removes records older than the duration and reports
	// how many were deleted.
	DeleteOlderThan(duration time.Duration) (int64, error)
}
