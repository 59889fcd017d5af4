package models

import "time"

// ShareGrant represents one recipient's access to a fixed set of documents.
// The row is never deleted; revocation and delivery failures are recorded by
// flipping Status so the grant history stays auditable.
type ShareGrant struct {
	ID                string
	OwnerID           string
	DocumentIDs       []string
	RecipientEmail    string
	RecipientType     string
	RecipientMetadata map[string]string
	AllowDownload     bool
	ExpiresAt         time.Time
	Token             string
	ShareKind         string
	Status            string
	// DrivePermissions maps Drive file ids to the permission id this grant
	// knows about. It is an advisory cache: access checks always re-verify
	// against Drive and prune entries that turned out to be gone.
	DrivePermissions map[string]string
	CreatedAt        time.Time
}

const (
	ShareStatusPending = "pending"
	ShareStatusSuccess = "success"
	ShareStatusFailed  = "failed"
	ShareStatusRevoked = "revoked"
)

const (
	ShareKindSingle   = "single"
	ShareKindMultiple = "multiple"
)

// AuditEntry records one issuance event and, later, the moment the recipient
// proved their identity. Rows are append-only apart from the single
// OTPVerifiedAt stamp.
type AuditEntry struct {
	ID                string
	ShareID           string
	RecipientEmail    string
	RecipientType     string
	RecipientMetadata map[string]string
	EmailStatus       string
	OTPVerifiedAt     *time.Time
	ExpiresAt         time.Time
	CreatedAt         time.Time
}

const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// DocumentRecord is the slice of the document vault this service reads:
// ownership, the per-document sharing switch, and the storage locator.
// A locator starting with "gdrive:" points at a Drive file; anything else is
// a key in the platform object store.
type DocumentRecord struct {
	ID           string
	OwnerID      string
	FileName     string
	FileType     string
	MainCategory string
	SubCategory  string
	ShareEnabled bool
	StoragePath  string
	CreatedAt    time.Time
}

// ProviderCredential holds a user's Google OAuth token pair.
type ProviderCredential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// ShareOTP is a pending one-time code bound to a grant and recipient email.
// Only the bcrypt hash of the code is stored.
type ShareOTP struct {
	ShareID   string
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RecipientSession is the short-lived bearer credential handed out after a
// successful OTP verification.
type RecipientSession struct {
	Token     string
	ShareID   string
	Email     string
	ExpiresAt time.Time
}

// Session is an owner-side access token used to authenticate the issuance and
// revocation endpoints. Primary login lives elsewhere; this service only
// resolves tokens to user ids.
type Session struct {
	AccessToken string
	UserID      string
	ExpiresAt   time.Time
}
