package share

import (
	"context"
	"errors"
	"time"

	"github.com/taxbridge/backend/internal/models"
	"github.com/taxbridge/backend/internal/repositories"
)

// SessionManager issues and resolves the short-lived bearer tokens carried by
// recipients after OTP verification. Keeping the credential opaque and stored
// server-side keeps the access handlers stateless across instances.
type SessionManager struct {
	store   RecipientSessionStore
	ttl     time.Duration
	NowFunc func() time.Time
}

// NewSessionManager constructs a manager issuing sessions valid for ttl.
func NewSessionManager(store RecipientSessionStore, ttl time.Duration) *SessionManager {
	if store == nil {
		panic("share: recipient session store must not be nil")
	}
	return &SessionManager{store: store, ttl: ttl}
}

// Issue creates a new session bound to the grant and verified email.
func (m *SessionManager) Issue(ctx context.Context, shareID, email string) (models.RecipientSession, error) {
	token, err := NewToken()
	if err != nil {
		return models.RecipientSession{}, err
	}

	session := models.RecipientSession{
		Token:     token,
		ShareID:   shareID,
		Email:     email,
		ExpiresAt: m.now().Add(m.ttl),
	}

	if err := m.store.Save(ctx, session); err != nil {
		return models.RecipientSession{}, err
	}

	return session, nil
}

// Resolve returns the session for a token, rejecting unknown and expired ones.
func (m *SessionManager) Resolve(ctx context.Context, token string) (models.RecipientSession, error) {
	if token == "" {
		return models.RecipientSession{}, ErrSessionInvalid
	}

	session, err := m.store.Find(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.RecipientSession{}, ErrSessionInvalid
		}
		return models.RecipientSession{}, err
	}

	if m.now().After(session.ExpiresAt) {
		return models.RecipientSession{}, ErrSessionInvalid
	}

	return session, nil
}

func (m *SessionManager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now().UTC()
}
