package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taxbridge/backend/internal/models"
	"github.com/taxbridge/backend/internal/repositories"
)

// OTPManager issues and verifies the one-time codes recipients use to prove
// control of the email a grant was addressed to. Codes are stored bcrypt-hashed
// and are single use: a successful verification deletes the row, and resending
// replaces any outstanding code.
type OTPManager struct {
	store   OTPStore
	ttl     time.Duration
	NowFunc func() time.Time
}

// NewOTPManager constructs a manager issuing codes valid for ttl.
func NewOTPManager(store OTPStore, ttl time.Duration) *OTPManager {
	if store == nil {
		panic("share: otp store must not be nil")
	}
	return &OTPManager{store: store, ttl: ttl}
}

// Issue generates a fresh code for the grant and email and returns it for
// delivery. Only the hash is persisted.
func (m *OTPManager) Issue(ctx context.Context, shareID, email string) (string, error) {
	code, err := NewOTPCode()
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}

	now := m.now()
	if err := m.store.Upsert(ctx, models.ShareOTP{
		ShareID:   shareID,
		Email:     strings.ToLower(email),
		CodeHash:  string(hash),
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}); err != nil {
		return "", err
	}

	return code, nil
}

// Verify checks the supplied code and consumes it on success.
func (m *OTPManager) Verify(ctx context.Context, shareID, email, code string) error {
	otp, err := m.store.Find(ctx, shareID, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrOTPInvalid
		}
		return err
	}

	if m.now().After(otp.ExpiresAt) {
		return ErrOTPInvalid
	}

	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		return ErrOTPInvalid
	}

	if err := m.store.Delete(ctx, shareID, strings.ToLower(email)); err != nil {
		return err
	}

	return nil
}

func (m *OTPManager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now().UTC()
}
