// Package commitment issues and verifies signed problem commitments.
// A commitment binds a served problem (user, exercise, problem number,
// content hash, seed) so a later attempt submission can prove it is
// answering the problem that was actually served.
package commitment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the commitment service.
var (
	// ErrInvalidCommitment indicates the token is malformed, unsigned by
	// us, or otherwise unusable.
	ErrInvalidCommitment = errors.New("invalid problem commitment")

	// ErrExpiredCommitment indicates the token was valid but has expired.
	ErrExpiredCommitment = errors.New("problem commitment has expired")

	// ErrCommitmentMismatch indicates a valid token that was issued for a
	// different problem than the one being submitted.
	ErrCommitmentMismatch = errors.New("problem commitment does not match submission")
)

// Problem identifies one served problem instance.
type Problem struct {
	UserID        uuid.UUID
	Exercise      string
	ProblemNumber int
	ContentSHA1   string
	Seed          string
}

// Claims carries the verified contents of a commitment token.
type Claims struct {
	Problem
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues and verifies problem commitments.
type Service interface {
	// Issue creates a signed commitment token for a served problem.
	Issue(ctx context.Context, problem Problem) (string, error)

	// Verify checks the token signature and expiry and confirms the token
	// binds the given problem. Returns ErrInvalidCommitment,
	// ErrExpiredCommitment or ErrCommitmentMismatch on failure.
	Verify(ctx context.Context, token string, problem Problem) (*Claims, error)
}
