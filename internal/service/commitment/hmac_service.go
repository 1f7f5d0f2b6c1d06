package commitment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/config"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
)

// hmacService is an implementation of Service using HMAC-SHA signing.
type hmacService struct {
	signingKey []byte
	ttl        time.Duration
	timeFunc   func() time.Time // Injectable for testing
	clockSkew  time.Duration    // Allowed time difference for validation to handle clock drift
}

// commitmentClaims defines the structure of JWT claims we use
type commitmentClaims struct {
	UserID        uuid.UUID `json:"uid"`
	Exercise      string    `json:"exercise"`
	ProblemNumber int       `json:"problem_number"`
	ContentSHA1   string    `json:"sha1"`
	Seed          string    `json:"seed"`
	jwt.RegisteredClaims
}

// Ensure hmacService implements Service interface
var _ Service = (*hmacService)(nil)

// NewService creates a new commitment service using HMAC-SHA signing.
func NewService(cfg config.CommitmentConfig) (Service, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("commitment secret must be at least 32 characters")
	}

	return &hmacService{
		signingKey: []byte(cfg.Secret),
		ttl:        time.Duration(cfg.TTLMinutes) * time.Minute,
		timeFunc:   time.Now,
		clockSkew:  2 * time.Minute,
	}, nil
}

// Issue creates a signed commitment token for a served problem.
func (s *hmacService) Issue(ctx context.Context, problem Problem) (string, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()

	claims := commitmentClaims{
		UserID:        problem.UserID,
		Exercise:      problem.Exercise,
		ProblemNumber: problem.ProblemNumber,
		ContentSHA1:   problem.ContentSHA1,
		Seed:          problem.Seed,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   problem.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.New().String(), // Unique token ID
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.signingKey)
	if err != nil {
		log.Error("failed to sign problem commitment",
			"error", err,
			"user_id", problem.UserID,
			"exercise", problem.Exercise,
			"signing_method", jwt.SigningMethodHS256.Name)
		return "", fmt.Errorf("failed to sign commitment with HMAC-SHA256: %w", err)
	}

	return signedToken, nil
}

// Verify checks the token and confirms it binds the given problem.
func (s *hmacService) Verify(ctx context.Context, token string, problem Problem) (*Claims, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew), // Allow for clock skew when validating time claims
		jwt.WithTimeFunc(func() time.Time {
			return now
		}),
	}

	parsed, err := jwt.ParseWithClaims(
		token,
		&commitmentClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		parserOpts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Debug("commitment validation failed: token expired",
				"error", err,
				"user_id", problem.UserID,
				"exercise", problem.Exercise)
			return nil, ErrExpiredCommitment
		}
		log.Debug("commitment validation failed",
			"error", err,
			"user_id", problem.UserID,
			"exercise", problem.Exercise)
		return nil, ErrInvalidCommitment
	}

	claims, ok := parsed.Claims.(*commitmentClaims)
	if !ok || !parsed.Valid {
		log.Debug("commitment validation failed: invalid claims")
		return nil, ErrInvalidCommitment
	}

	if claims.UserID != problem.UserID ||
		claims.Exercise != problem.Exercise ||
		claims.ProblemNumber != problem.ProblemNumber ||
		claims.ContentSHA1 != problem.ContentSHA1 ||
		claims.Seed != problem.Seed {
		log.Debug("commitment does not match submission",
			"user_id", problem.UserID,
			"exercise", problem.Exercise,
			"problem_number", problem.ProblemNumber)
		return nil, ErrCommitmentMismatch
	}

	return &Claims{
		Problem: Problem{
			UserID:        claims.UserID,
			Exercise:      claims.Exercise,
			ProblemNumber: claims.ProblemNumber,
			ContentSHA1:   claims.ContentSHA1,
			Seed:          claims.Seed,
		},
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
