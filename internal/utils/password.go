package utils

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultBcryptCost matches the cost the original user records were hashed with.
const DefaultBcryptCost = 12

// Hasher hashes and verifies passwords with bcrypt. At most `workers` bcrypt
// operations run at once; callers beyond that wait on the semaphore or give
// up when their context ends.
type Hasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte
}

// NewHasher returns a Hasher using cost (DefaultBcryptCost when <= 0) and
// workers concurrent slots (runtime.NumCPU() when <= 0).
func NewHasher(cost, workers int) (*Hasher, error) {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// Compared against when there is no stored hash, so an unknown account
	// costs the same as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers)), dummy: dummy}, nil
}

// Cost returns the configured bcrypt cost.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns the bcrypt hash of plain.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compares plain against hash. An empty hash is compared against a
// dummy value and always fails.
func (h *Hasher) Verify(ctx context.Context, hash, plain string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
