package jwtx

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/aussiebroadwan/credcore/pkg/idx"
)

// KeyStatus is the lifecycle state of a signing key.
type KeyStatus string

const (
	KeyStatusActive   KeyStatus = "active"
	KeyStatusRetiring KeyStatus = "retiring"
	KeyStatusRevoked  KeyStatus = "revoked"
)

// DefaultGracePeriod is how long a retiring key keeps verifying.
const DefaultGracePeriod = 24 * time.Hour

// Defaults for picking up changes other instances make to the store.
const (
	DefaultRefreshInterval    = 30 * time.Second
	DefaultMissReloadInterval = time.Second
	DefaultReloadTimeout      = 2 * time.Second
)

// KeyRecord is the persisted form of a signing key. The private key is
// stored sealed and is never returned by Keys.
type KeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	Status              KeyStatus
	CreatedAt           time.Time
	RetiredAt           *time.Time
	RevokedAt           *time.Time
	NotAfter            *time.Time
}

// KeyStore persists signing keys.
type KeyStore interface {
	// ListSigningKeys returns keys oldest first. Revoked keys are included
	// only when includeRevoked is set.
	ListSigningKeys(ctx context.Context, includeRevoked bool) ([]KeyRecord, error)

	// RotateSigningKey atomically demotes the active key to retiring and
	// inserts next as active. expectedActiveKid is "" when no key is active.
	// Returns ErrRotationConflict when the stored active key differs.
	RotateSigningKey(ctx context.Context, next KeyRecord, expectedActiveKid string, now time.Time) error

	// RevokeSigningKey marks a retiring key revoked. Already revoked keys
	// are left alone. Returns ErrKeyNotFound for an unknown kid and
	// ErrKeyActive for the active key.
	RevokeSigningKey(ctx context.Context, kid string, now time.Time) error
}

// KeySealer encrypts private key PEMs at rest. cryptox.KeyCipher implements it.
type KeySealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// KeyRingOptions configures a KeyRing.
type KeyRingOptions struct {
	Store     KeyStore
	Sealer    KeySealer
	Algorithm string
	RSABits   int

	// GracePeriod after retirement during which a key still verifies.
	GracePeriod time.Duration

	// MaxKeyAge makes RotateIfDue rotate an older active key. Zero disables.
	MaxKeyAge time.Duration

	// KeyLifetime sets NotAfter on new keys. Zero means no hard expiry.
	KeyLifetime time.Duration

	// RefreshInterval is the maximum age of the in-memory snapshot seen by
	// Sign, Lookup and VerificationSet. Zero uses DefaultRefreshInterval;
	// negative disables the refresh.
	RefreshInterval time.Duration

	// MissReloadInterval is the minimum gap between reloads triggered by a
	// Lookup for an unknown kid. Zero uses DefaultMissReloadInterval.
	MissReloadInterval time.Duration

	// ReloadTimeout bounds reloads that run without a caller context.
	ReloadTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time

	// GenerateKey overrides key generation, for tests.
	GenerateKey func(alg string, rsaBits int) ([]byte, error)
}

// ringKey is a loaded, decrypted key.
type ringKey struct {
	rec    KeyRecord // PrivateKeyEncrypted cleared
	signer Signer
}

// ringState is an immutable snapshot. Sign and Verify read it without locks.
type ringState struct {
	activeKid string
	keys      map[string]ringKey
	jwks      JWKS
}

// KeyRing owns the signing keys. Rotation, sweep and revocation are
// serialized by mu and guarded in the store by a compare-and-swap on the
// active kid, so two instances cannot both promote a key.
type KeyRing struct {
	opts  KeyRingOptions
	mu    sync.Mutex
	state atomic.Pointer[ringState]

	// Unix nanos, by opts.Now, of the last reload attempt and of the last
	// reload caused by an unknown kid.
	reloadedAt     atomic.Int64
	missReloadedAt atomic.Int64
}

// NewKeyRing loads all non-revoked keys. If none is active a first key is
// generated, so a constructed ring can always sign.
func NewKeyRing(ctx context.Context, opts KeyRingOptions) (*KeyRing, error) {
	if opts.Store == nil {
		return nil, errors.New("jwtx: key ring requires a store")
	}
	if opts.Sealer == nil {
		return nil, errors.New("jwtx: key ring requires a sealer")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmEdDSA
	}
	if !ValidAlgorithm(opts.Algorithm) {
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", opts.Algorithm)
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GenerateKey == nil {
		opts.GenerateKey = GenerateKeyPEM
	}
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.MissReloadInterval <= 0 {
		opts.MissReloadInterval = DefaultMissReloadInterval
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = DefaultReloadTimeout
	}

	r := &KeyRing{opts: opts}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.reloadLocked(ctx); err != nil {
		return nil, err
	}
	if r.state.Load().activeKid == "" {
		if _, err := r.rotateLocked(ctx); err != nil {
			// Another instance may have won the first rotation.
			if !errors.Is(err, ErrRotationConflict) || r.state.Load().activeKid == "" {
				return nil, err
			}
		}
	}
	return r, nil
}

// Algorithm returns the algorithm used for new keys.
func (r *KeyRing) Algorithm() string { return r.opts.Algorithm }

// GracePeriod returns the configured retirement grace period.
func (r *KeyRing) GracePeriod() time.Duration { return r.opts.GracePeriod }

// ActiveKid returns the kid used for signing, or "" if none.
func (r *KeyRing) ActiveKid() string {
	r.refreshIfStale()
	return r.state.Load().activeKid
}

// IsReady reports whether the ring can sign.
func (r *KeyRing) IsReady() bool {
	s := r.state.Load()
	return s != nil && s.activeKid != ""
}

// Sign signs claims with the active key.
func (r *KeyRing) Sign(claims Claims) (string, error) {
	r.refreshIfStale()
	s := r.state.Load()
	k, ok := s.keys[s.activeKid]
	if !ok {
		return "", ErrNoActiveKey
	}
	return k.signer.Sign(claims)
}

// Lookup implements KeySource over every non-revoked key. An unknown kid
// triggers one rate-limited reload, so keys promoted by another instance
// verify here straight away.
func (r *KeyRing) Lookup(kid string) (VerificationKey, error) {
	r.refreshIfStale()
	k, ok := r.state.Load().keys[kid]
	if !ok {
		if k, ok = r.reloadOnMiss(kid); !ok {
			return VerificationKey{}, ErrUnknownKey
		}
	}
	return VerificationKey{Kid: kid, Algorithm: k.rec.Algorithm, Public: k.signer.PublicKey()}, nil
}

// VerificationSet returns the public keys of every non-revoked key, ordered
// by creation time.
func (r *KeyRing) VerificationSet() JWKS {
	r.refreshIfStale()
	jwks := r.state.Load().jwks
	out := JWKS{Keys: make([]JWK, len(jwks.Keys))}
	copy(out.Keys, jwks.Keys)
	return out
}

// Keys lists key metadata from the store, including revoked keys.
// Private material is stripped.
func (r *KeyRing) Keys(ctx context.Context) ([]KeyRecord, error) {
	recs, err := r.opts.Store.ListSigningKeys(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("jwtx: list keys: %w", err)
	}
	for i := range recs {
		recs[i].PrivateKeyEncrypted = nil
	}
	return recs, nil
}

// Rotate makes a freshly generated key active and demotes the previous one
// to retiring. On failure the ring is unchanged.
func (r *KeyRing) Rotate(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotateLocked(ctx)
}

// RotateIfDue rotates when the active key is older than MaxKeyAge or past
// its NotAfter. It returns the new kid, or "" when no rotation happened.
func (r *KeyRing) RotateIfDue(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.state.Load()
	active, ok := s.keys[s.activeKid]
	if ok && !r.due(active.rec) {
		return "", nil
	}
	return r.rotateLocked(ctx)
}

func (r *KeyRing) due(rec KeyRecord) bool {
	now := r.opts.Now()
	if rec.NotAfter != nil && !now.Before(*rec.NotAfter) {
		return true
	}
	return r.opts.MaxKeyAge > 0 && now.Sub(rec.CreatedAt) >= r.opts.MaxKeyAge
}

// Sweep revokes retiring keys retired more than GracePeriod ago and
// retiring keys past NotAfter. It returns the revoked kids.
func (r *KeyRing) Sweep(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Work from the store so keys retired by other instances are swept too.
	recs, err := r.opts.Store.ListSigningKeys(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("jwtx: list keys: %w", err)
	}

	now := r.opts.Now()
	cutoff := now.Add(-r.opts.GracePeriod)

	var revoked []string
	for _, rec := range recs {
		if rec.Status != KeyStatusRetiring {
			continue
		}
		expired := rec.RetiredAt != nil && rec.RetiredAt.Before(cutoff)
		pastNotAfter := rec.NotAfter != nil && !now.Before(*rec.NotAfter)
		if !expired && !pastNotAfter {
			continue
		}
		if err := r.opts.Store.RevokeSigningKey(ctx, rec.Kid, now); err != nil {
			return revoked, fmt.Errorf("jwtx: revoke %s: %w", rec.Kid, err)
		}
		revoked = append(revoked, rec.Kid)
	}

	if len(revoked) > 0 {
		r.opts.Logger.InfoContext(ctx, "signing keys revoked by sweep", slog.Any("kids", revoked))
	}
	return revoked, r.reloadLocked(ctx)
}

// Revoke removes kid from the verification set immediately. Revoking the
// active key rotates first so signing never stops.
func (r *KeyRing) Revoke(ctx context.Context, kid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kid == r.state.Load().activeKid {
		if _, err := r.rotateLocked(ctx); err != nil {
			return err
		}
	}
	if err := r.opts.Store.RevokeSigningKey(ctx, kid, r.opts.Now()); err != nil {
		return fmt.Errorf("jwtx: revoke %s: %w", kid, err)
	}
	r.opts.Logger.WarnContext(ctx, "signing key revoked", slog.String("kid", kid))
	return r.reloadLocked(ctx)
}

// Reload rebuilds the snapshot from the store, picking up rotations made by
// other instances.
func (r *KeyRing) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked(ctx)
}

// refreshIfStale reloads when the snapshot is older than RefreshInterval.
// It never waits for the lock: if a rotation or reload is in flight the
// current snapshot is used.
func (r *KeyRing) refreshIfStale() {
	if r.opts.RefreshInterval < 0 || !r.stale(r.opts.Now()) {
		return
	}
	if !r.mu.TryLock() {
		return
	}
	defer r.mu.Unlock()
	if r.stale(r.opts.Now()) {
		r.reloadDetached("refresh")
	}
}

func (r *KeyRing) stale(now time.Time) bool {
	return now.Sub(time.Unix(0, r.reloadedAt.Load())) >= r.opts.RefreshInterval
}

// reloadOnMiss reloads once per MissReloadInterval and reports whether kid
// is known afterwards.
func (r *KeyRing) reloadOnMiss(kid string) (ringKey, bool) {
	limited := func(now time.Time) bool {
		last := r.missReloadedAt.Load()
		return last != 0 && now.Sub(time.Unix(0, last)) < r.opts.MissReloadInterval
	}
	if limited(r.opts.Now()) {
		return ringKey{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have reloaded while this one waited.
	if k, ok := r.state.Load().keys[kid]; ok {
		return k, true
	}
	now := r.opts.Now()
	if limited(now) {
		return ringKey{}, false
	}
	r.missReloadedAt.Store(now.UnixNano())
	r.reloadDetached("unknown_kid")

	k, ok := r.state.Load().keys[kid]
	return k, ok
}

// reloadDetached reloads under mu for callers without a context. A failure
// keeps the current snapshot.
func (r *KeyRing) reloadDetached(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ReloadTimeout)
	defer cancel()
	if err := r.reloadLocked(ctx); err != nil {
		r.opts.Logger.WarnContext(ctx, "signing key reload failed",
			slog.String("reason", reason), slog.Any("err", err))
	}
}

func (r *KeyRing) rotateLocked(ctx context.Context) (string, error) {
	log := r.opts.Logger
	prev := r.state.Load()

	kid, signer, sealed, err := r.generate()
	if err != nil {
		log.ErrorContext(ctx, "signing key generation failed",
			slog.String("alg", r.opts.Algorithm), slog.Any("err", err))
		return "", err
	}

	now := r.opts.Now()
	rec := KeyRecord{
		ID:                  string(idx.NewAt(now)),
		Kid:                 kid,
		Algorithm:           r.opts.Algorithm,
		PrivateKeyEncrypted: sealed,
		Status:              KeyStatusActive,
		CreatedAt:           now,
	}
	if r.opts.KeyLifetime > 0 {
		na := now.Add(r.opts.KeyLifetime)
		rec.NotAfter = &na
	}

	if err := r.opts.Store.RotateSigningKey(ctx, rec, prev.activeKid, now); err != nil {
		if errors.Is(err, ErrRotationConflict) {
			log.WarnContext(ctx, "signing key rotation lost to another instance", slog.String("expected_kid", prev.activeKid))
			if rerr := r.reloadLocked(ctx); rerr != nil {
				return "", errors.Join(err, rerr)
			}
			return "", err
		}
		return "", fmt.Errorf("jwtx: persist rotated key: %w", err)
	}

	next := &ringState{activeKid: kid, keys: make(map[string]ringKey, len(prev.keys)+1)}
	for k, v := range prev.keys {
		if k == prev.activeKid {
			v.rec.Status = KeyStatusRetiring
			v.rec.RetiredAt = &now
		}
		next.keys[k] = v
	}
	rec.PrivateKeyEncrypted = nil
	next.keys[kid] = ringKey{rec: rec, signer: signer}
	next.jwks = buildJWKS(next.keys)
	r.state.Store(next)

	log.InfoContext(ctx, "signing key rotated",
		slog.String("kid", kid),
		slog.String("previous_kid", prev.activeKid),
		slog.String("alg", r.opts.Algorithm))
	return kid, nil
}

// generate creates and seals a new key pair.
func (r *KeyRing) generate() (kid string, signer Signer, sealed []byte, err error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: kid: %v", ErrKeyGeneration, err)
	}
	kid = "ck-" + token

	pemKey, err := r.opts.GenerateKey(r.opts.Algorithm, r.opts.RSABits)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	signer, err = NewSigner(r.opts.Algorithm, kid, pemKey)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	sealed, err = r.opts.Sealer.Seal(pemKey)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: seal: %v", ErrKeyGeneration, err)
	}
	return kid, signer, sealed, nil
}

func (r *KeyRing) reloadLocked(ctx context.Context) error {
	r.reloadedAt.Store(r.opts.Now().UnixNano())
	recs, err := r.opts.Store.ListSigningKeys(ctx, false)
	if err != nil {
		return fmt.Errorf("jwtx: load keys: %w", err)
	}

	prev := r.state.Load()
	next := &ringState{keys: make(map[string]ringKey, len(recs))}
	for _, rec := range recs {
		if rec.Status == KeyStatusRevoked {
			continue
		}
		// Reuse already decrypted keys.
		if prev != nil {
			if k, ok := prev.keys[rec.Kid]; ok {
				rec.PrivateKeyEncrypted = nil
				k.rec = rec
				next.keys[rec.Kid] = k
				if rec.Status == KeyStatusActive {
					next.activeKid = rec.Kid
				}
				continue
			}
		}

		pemKey, err := r.opts.Sealer.Open(rec.PrivateKeyEncrypted)
		if err != nil {
			// A key sealed under a different master key cannot be used; skip
			// it rather than refusing to start.
			r.opts.Logger.ErrorContext(ctx, "signing key cannot be decrypted",
				slog.String("kid", rec.Kid), slog.Any("err", err))
			continue
		}
		signer, err := NewSigner(rec.Algorithm, rec.Kid, pemKey)
		if err != nil {
			r.opts.Logger.ErrorContext(ctx, "signing key cannot be parsed",
				slog.String("kid", rec.Kid), slog.Any("err", err))
			continue
		}
		rec.PrivateKeyEncrypted = nil
		next.keys[rec.Kid] = ringKey{rec: rec, signer: signer}
		if rec.Status == KeyStatusActive {
			next.activeKid = rec.Kid
		}
	}
	next.jwks = buildJWKS(next.keys)
	r.state.Store(next)
	return nil
}

func buildJWKS(keys map[string]ringKey) JWKS {
	list := make([]ringKey, 0, len(keys))
	for _, k := range keys {
		list = append(list, k)
	}
	slices.SortFunc(list, func(a, b ringKey) int {
		if c := a.rec.CreatedAt.Compare(b.rec.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.rec.Kid, b.rec.Kid)
	})

	out := JWKS{Keys: make([]JWK, 0, len(list))}
	for _, k := range list {
		out.Keys = append(out.Keys, k.signer.PublicJWK())
	}
	return out
}
