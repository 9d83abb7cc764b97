package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/credcore/internal/credential/domain"
	"github.com/aussiebroadwan/credcore/internal/credential/store"
	"github.com/aussiebroadwan/credcore/pkg/cryptox"
	"github.com/aussiebroadwan/credcore/pkg/idx"
	"github.com/aussiebroadwan/credcore/pkg/slogx"
)

// DefaultPasswordHistoryDepth is how many previous passwords are remembered.
const DefaultPasswordHistoryDepth = 5

// PasswordHistoryConfig configures a PasswordHistoryService.
type PasswordHistoryConfig struct {
	Depth int

	// StoreTimeout bounds the whole check-and-record transaction,
	// including up to Depth hash verifications.
	StoreTimeout time.Duration

	Now func() time.Time
}

// PasswordHistoryService rejects reuse of a user's recent passwords.
type PasswordHistoryService struct {
	store  store.Store
	hasher *cryptox.PasswordHasher
	cfg    PasswordHistoryConfig
}

// NewPasswordHistoryService returns the service. hasher must be the one
// backing the live credential store.
func NewPasswordHistoryService(s store.Store, hasher *cryptox.PasswordHasher, cfg PasswordHistoryConfig) *PasswordHistoryService {
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultPasswordHistoryDepth
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PasswordHistoryService{store: s, hasher: hasher, cfg: cfg}
}

// Depth returns the number of remembered passwords.
func (s *PasswordHistoryService) Depth() int { return s.cfg.Depth }

// CheckAndRecord returns ErrPasswordReuse if newPassword matches any of the
// user's last Depth passwords. Otherwise it records newPassword and prunes
// the history back to Depth. Concurrent calls for one user are serialised,
// so two racing changes cannot both skip each other.
func (s *PasswordHistoryService) CheckAndRecord(ctx context.Context, userID, newPassword string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	log := slogx.FromContext(ctx)

	// Hashing is slow; keep it out of the transaction.
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	now := s.cfg.Now().UTC()

	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var pruned int64
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		repo := tx.PasswordHistory()
		if err := repo.LockPasswordHistory(ctx, userID, now); err != nil {
			return err
		}
		entries, err := repo.ListPasswordHistory(ctx, userID, s.cfg.Depth)
		if err != nil {
			return err
		}
		for _, e := range entries {
			err := s.hasher.Verify(newPassword, e.PasswordHash)
			if err == nil {
				return ErrPasswordReuse
			}
			if !errors.Is(err, cryptox.ErrPasswordMismatch) {
				log.WarnContext(ctx, "unreadable password history entry",
					slog.String("user_id", userID), slog.Any("err", err))
			}
		}
		if err := repo.InsertPasswordHistory(ctx, domain.PasswordHistoryEntry{
			ID:           idx.NewAt(now).String(),
			UserID:       userID,
			PasswordHash: hash,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		pruned, err = repo.PrunePasswordHistory(ctx, userID, s.cfg.Depth)
		return err
	})
	if errors.Is(err, ErrPasswordReuse) {
		log.InfoContext(ctx, "password reuse rejected", slog.String("user_id", userID))
		return ErrPasswordReuse
	}
	if err != nil {
		return fmt.Errorf("record password history: %w", unavailable(err))
	}

	log.DebugContext(ctx, "password history recorded",
		slog.String("user_id", userID), slog.Int64("pruned", pruned))
	return nil
}

// Forget deletes a user's history, for account deletion.
func (s *PasswordHistoryService) Forget(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if err := s.store.PasswordHistory().DeletePasswordHistory(ctx, userID); err != nil {
		return fmt.Errorf("delete password history: %w", unavailable(err))
	}
	slogx.FromContext(ctx).InfoContext(ctx, "password history forgotten", slog.String("user_id", userID))
	return nil
}

// Count returns how many entries are stored for userID.
func (s *PasswordHistoryService) Count(ctx context.Context, userID string) (int, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	n, err := s.store.PasswordHistory().CountPasswordHistory(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count password history: %w", unavailable(err))
	}
	return n, nil
}
