package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/service"
	"github.com/aussiebroadwan/credcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestKeyRotationService(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(t)
	ring := newTestRing(t, s, clock)
	svc := service.NewKeyRotationService(ring, 0)
	issuer := jwtx.NewIssuer(ring, jwtx.IssuerOptions{Issuer: "credcore", Now: clock.Now})
	ctx := context.Background()

	first := ring.ActiveKid()
	token, err := issuer.Issue(jwtx.Claims{Scopes: []string{"a"}}, time.Hour)
	require.NoError(t, err)

	res, err := svc.Rotate(ctx)
	require.NoError(t, err)
	require.Equal(t, first, res.PreviousKid)
	require.Equal(t, ring.ActiveKid(), res.Kid)
	require.Equal(t, jwtx.AlgorithmEdDSA, res.Algorithm)
	require.ElementsMatch(t, []string{first, res.Kid}, svc.JWKS().Kids())

	// Tokens from the retiring key still verify.
	_, err = issuer.Verify(token)
	require.NoError(t, err)

	keys, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, first, keys[0].Kid)
	require.Equal(t, "retiring", keys[0].Status)
	require.NotNil(t, keys[0].RetiredAt)
	require.Equal(t, "active", keys[1].Status)

	swept, err := svc.Sweep(ctx)
	require.NoError(t, err)
	require.Empty(t, swept)

	clock.Advance(time.Hour + time.Second)
	swept, err = svc.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{first}, swept)

	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrUnknownKey)

	require.ErrorIs(t, svc.Revoke(ctx, "nope"), jwtx.ErrKeyNotFound)
	require.ErrorIs(t, svc.Revoke(ctx, ""), service.ErrInvalidInput)

	// Revoking the active key rotates first.
	active := ring.ActiveKid()
	require.NoError(t, svc.Revoke(ctx, active))
	require.NotEqual(t, active, ring.ActiveKid())
	require.NotContains(t, svc.JWKS().Kids(), active)
}

func TestHousekeepingService_RunOnce(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(t)
	ring := newTestRing(t, s, clock, func(o *jwtx.KeyRingOptions) {
		o.MaxKeyAge = 24 * time.Hour
	})
	apiKeys := service.NewAPIKeyService(s, nil, service.APIKeyConfig{Now: clock.Now})
	hk := service.NewHousekeepingService(ring, apiKeys, nil, 0)
	require.Equal(t, service.DefaultHousekeepingInterval, hk.Interval)
	ctx := context.Background()

	res := hk.RunOnce(ctx)
	require.Zero(t, res.Failures)
	require.Empty(t, res.RotatedKid)
	require.Empty(t, res.SweptKids)

	first := ring.ActiveKid()
	clock.Advance(24 * time.Hour)
	res = hk.RunOnce(ctx)
	require.Zero(t, res.Failures)
	require.NotEmpty(t, res.RotatedKid)
	require.Equal(t, res.RotatedKid, ring.ActiveKid())
	require.Contains(t, ring.VerificationSet().Kids(), first)

	clock.Advance(2 * time.Hour)
	res = hk.RunOnce(ctx)
	require.Zero(t, res.Failures)
	require.Equal(t, []string{first}, res.SweptKids)
	require.NotContains(t, ring.VerificationSet().Kids(), first)
}

func TestHousekeepingService_StartStop(t *testing.T) {
	clock := newTestClock()
	s := newTestStore(t)
	ring := newTestRing(t, s, clock)
	hk := service.NewHousekeepingService(ring, nil, nil, time.Millisecond)

	hk.Start()
	time.Sleep(5 * time.Millisecond)
	hk.Stop()
	hk.Stop()
}
