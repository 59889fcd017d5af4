package share

import (
	"context"
	"time"

	"github.com/taxbridge/backend/internal/models"
)

// ShareStore captures the persistence operations the share services need.
type ShareStore interface {
	Create(ctx context.Context, grant models.ShareGrant) error
	FindByToken(ctx context.Context, token string) (models.ShareGrant, error)
	FindByID(ctx context.Context, id string) (models.ShareGrant, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.ShareGrant, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateLedger(ctx context.Context, id string, ledger map[string]string) error
}

// AuditStore records issuance and verification events.
type AuditStore interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	MarkOTPVerified(ctx context.Context, shareID, email string, at time.Time) error
}

// DocumentStore reads document metadata owned by the vault service.
type DocumentStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.DocumentRecord, error)
}

// OTPStore persists pending one-time codes.
type OTPStore interface {
	Upsert(ctx context.Context, otp models.ShareOTP) error
	Find(ctx context.Context, shareID, email string) (models.ShareOTP, error)
	Delete(ctx context.Context, shareID, email string) error
}

// RecipientSessionStore persists post-verification recipient sessions.
type RecipientSessionStore interface {
	Save(ctx context.Context, session models.RecipientSession) error
	Find(ctx context.Context, token string) (models.RecipientSession, error)
}

// AccessTokenProvider yields a currently valid Drive access token for a user.
type AccessTokenProvider interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// PermissionSync is the provider-side permission surface used for Drive-backed
// documents. All operations are idempotent and fail closed.
type PermissionSync interface {
	EnsureAnyoneReader(ctx context.Context, accessToken, fileID string) (string, error)
	CheckPermission(ctx context.Context, accessToken, fileID, permissionID string) bool
	RevokePermission(ctx context.Context, accessToken, fileID, permissionID string) error
	WebViewLink(ctx context.Context, accessToken, fileID string) (string, error)
}

// ObjectSigner mints fresh time-limited URLs for internally stored documents.
type ObjectSigner interface {
	SignedURL(ctx context.Context, rawPath string, ttl time.Duration) (string, error)
}
