package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/aussiebroadwan/credcore/pkg/slogx"
)

// DefaultKeyOpTimeout bounds an administrative key operation. It is longer
// than the store timeout because rotation includes key generation.
const DefaultKeyOpTimeout = 10 * time.Second

// KeyRotationService exposes the key ring's administrative operations to the
// HTTP layer and the admin CLI.
type KeyRotationService struct {
	Ring    *jwtx.KeyRing
	Timeout time.Duration
}

// NewKeyRotationService wraps ring. A zero timeout uses DefaultKeyOpTimeout.
func NewKeyRotationService(ring *jwtx.KeyRing, timeout time.Duration) *KeyRotationService {
	if timeout <= 0 {
		timeout = DefaultKeyOpTimeout
	}
	return &KeyRotationService{Ring: ring, Timeout: timeout}
}

// SigningKeyInfo is the public view of a signing key.
type SigningKeyInfo struct {
	Kid       string     `json:"kid"`
	Algorithm string     `json:"alg"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	NotAfter  *time.Time `json:"not_after,omitempty"`
}

// RotateKeyResponse reports a completed rotation.
type RotateKeyResponse struct {
	Kid         string `json:"kid"`
	PreviousKid string `json:"previous_kid,omitempty"`
	Algorithm   string `json:"alg"`
}

// Rotate promotes a fresh key. The previous active key keeps verifying until
// a sweep after the grace period.
func (s *KeyRotationService) Rotate(ctx context.Context) (RotateKeyResponse, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	prev := s.Ring.ActiveKid()
	kid, err := s.Ring.Rotate(ctx)
	if err != nil {
		return RotateKeyResponse{}, unavailable(err)
	}
	slogx.FromContext(ctx).InfoContext(ctx, "signing key rotated by admin",
		slog.String("kid", kid), slog.String("previous_kid", prev))
	return RotateKeyResponse{Kid: kid, PreviousKid: prev, Algorithm: s.Ring.Algorithm()}, nil
}

// List returns every key including revoked ones, oldest first.
func (s *KeyRotationService) List(ctx context.Context) ([]SigningKeyInfo, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	recs, err := s.Ring.Keys(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]SigningKeyInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, SigningKeyInfo{
			Kid:       r.Kid,
			Algorithm: r.Algorithm,
			Status:    string(r.Status),
			CreatedAt: r.CreatedAt,
			RetiredAt: r.RetiredAt,
			RevokedAt: r.RevokedAt,
			NotAfter:  r.NotAfter,
		})
	}
	return out, nil
}

// Sweep revokes retiring keys past their grace period and returns their kids.
func (s *KeyRotationService) Sweep(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	kids, err := s.Ring.Sweep(ctx)
	if err != nil {
		return kids, unavailable(err)
	}
	if kids == nil {
		kids = []string{}
	}
	return kids, nil
}

// Revoke removes kid from the verification set at once. Tokens it signed
// stop verifying immediately.
func (s *KeyRotationService) Revoke(ctx context.Context, kid string) error {
	if kid == "" {
		return fmt.Errorf("%w: kid is required", ErrInvalidInput)
	}
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.Ring.Revoke(ctx, kid); err != nil {
		return unavailable(err)
	}
	return nil
}

// JWKS returns the current verification set.
func (s *KeyRotationService) JWKS() jwtx.JWKS { return s.Ring.VerificationSet() }
