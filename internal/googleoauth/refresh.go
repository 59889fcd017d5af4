package googleoauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/taxbridge/backend/internal/config"
	"github.com/taxbridge/backend/internal/logging"
	"github.com/taxbridge/backend/internal/models"
)

// ErrReconnectRequired indicates the stored refresh token no longer works and
// the user must relink their Google account. Refresh is attempted exactly once;
// retrying against a revoked refresh token only risks provider-side throttling.
var ErrReconnectRequired = errors.New("google account reconnect required")

// CredentialStore persists per-user OAuth token pairs.
type CredentialStore interface {
	Find(ctx context.Context, userID string) (models.ProviderCredential, error)
	Update(ctx context.Context, cred models.ProviderCredential) error
}

// TokenProvider returns a currently valid Drive access token for a user,
// refreshing the stored credential when it has expired. Refresh is an explicit
// check-then-act on every call rather than middleware, so a failure surfaces
// exactly at the operation that needed the token.
type TokenProvider struct {
	conf    *oauth2.Config
	creds   CredentialStore
	NowFunc func() time.Time
}

// NewTokenProvider builds a provider around the configured OAuth client.
func NewTokenProvider(cfg config.GoogleConfig, creds CredentialStore) *TokenProvider {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL}
	}

	return &TokenProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
		},
		creds: creds,
	}
}

// AccessToken returns a valid access token for the user, refreshing and
// persisting the stored credential if it has expired.
func (p *TokenProvider) AccessToken(ctx context.Context, userID string) (string, error) {
	stored, err := p.creds.Find(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%w: no stored credential: %v", ErrReconnectRequired, err)
	}

	now := p.now()
	if stored.ExpiresAt.After(now) {
		return stored.AccessToken, nil
	}

	refreshed, err := p.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: stored.RefreshToken}).Token()
	if err != nil {
		logging.FromContext(ctx).Warn("google token refresh failed", "userId", userID, "error", err)
		return "", fmt.Errorf("%w: refresh failed", ErrReconnectRequired)
	}

	stored.AccessToken = refreshed.AccessToken
	stored.ExpiresAt = refreshed.Expiry.UTC()
	if refreshed.RefreshToken != "" {
		stored.RefreshToken = refreshed.RefreshToken
	}
	stored.UpdatedAt = now

	if err := p.creds.Update(ctx, stored); err != nil {
		// The refreshed token is still usable for this request even if the
		// write-back failed; the next request will refresh again.
		logging.FromContext(ctx).Error("persist refreshed google credential", "userId", userID, "error", err)
	}

	return stored.AccessToken, nil
}

func (p *TokenProvider) now() time.Time {
	if p.NowFunc != nil {
		return p.NowFunc()
	}
	return time.Now().UTC()
}
