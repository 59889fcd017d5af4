package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taxbridge/backend/internal/logging"
	"github.com/taxbridge/backend/internal/mail"
	"github.com/taxbridge/backend/internal/models"
	"github.com/taxbridge/backend/internal/repositories"
	"github.com/taxbridge/backend/internal/storage"
)

// Summary is the non-sensitive view of a grant exposed before the recipient
// has verified their identity. Document identities are deliberately absent.
type Summary struct {
	RecipientEmail string
	DocumentCount  int
	ExpiresAt      time.Time
	AllowDownload  bool
}

// AccessibleDocument is one entry of the post-verification document list.
type AccessibleDocument struct {
	ID                    string
	FileName              string
	FileType              string
	MainCategory          string
	SubCategory           string
	IsDriveFile           bool
	DrivePermissionActive bool
}

// VerifiedAccess is returned on successful OTP verification.
type VerifiedAccess struct {
	AccessToken   string
	AllowDownload bool
	Documents     []AccessibleDocument
}

// DocumentAccess is the per-view URL handed to a verified recipient.
type DocumentAccess struct {
	SignedURL   string
	IsDriveFile bool
}

// AccessService implements the recipient-facing protocol: token validation,
// email-match OTP, verification, and per-view URL issuance. Handlers are
// stateless; all state lives in the grant row, the OTP row, and the recipient
// session row, so every step is independently re-enterable.
type AccessService struct {
	shares    ShareStore
	audits    AuditStore
	documents DocumentStore
	otps      *OTPManager
	sessions  *SessionManager
	tokens    AccessTokenProvider
	sync      PermissionSync
	signer    ObjectSigner
	mailer    mail.Mailer

	signedURLTTL time.Duration
	NowFunc      func() time.Time
}

// NewAccessService wires an access service.
func NewAccessService(shares ShareStore, audits AuditStore, documents DocumentStore,
	otps *OTPManager, sessions *SessionManager, tokens AccessTokenProvider,
	sync PermissionSync, signer ObjectSigner, mailer mail.Mailer, signedURLTTL time.Duration) *AccessService {
	return &AccessService{
		shares:       shares,
		audits:       audits,
		documents:    documents,
		otps:         otps,
		sessions:     sessions,
		tokens:       tokens,
		sync:         sync,
		signer:       signer,
		mailer:       mailer,
		signedURLTTL: signedURLTTL,
	}
}

// Validate resolves a share token to its public summary.
func (s *AccessService) Validate(ctx context.Context, token string) (Summary, error) {
	grant, err := s.usableGrant(ctx, token)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		RecipientEmail: grant.RecipientEmail,
		DocumentCount:  len(grant.DocumentIDs),
		ExpiresAt:      grant.ExpiresAt,
		AllowDownload:  grant.AllowDownload,
	}, nil
}

// SendOTP issues a one-time code to the grant's recipient, provided the caller
// supplied the matching email. Repeat calls reissue the code.
func (s *AccessService) SendOTP(ctx context.Context, token, email string) error {
	grant, err := s.usableGrant(ctx, token)
	if err != nil {
		return err
	}

	if !strings.EqualFold(strings.TrimSpace(email), grant.RecipientEmail) {
		return ErrEmailMismatch
	}

	code, err := s.otps.Issue(ctx, grant.ID, grant.RecipientEmail)
	if err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}

	subject, html, text := mail.OTPMessage(code)
	if err := s.mailer.Send(ctx, grant.RecipientEmail, subject, html, text); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}

	return nil
}

// VerifyOTP checks the code, mints a recipient session, stamps the audit
// trail, and returns the document list filtered against live state: documents
// whose sharing has since been disabled are dropped, and Drive documents whose
// provider permission has disappeared are flagged inactive.
func (s *AccessService) VerifyOTP(ctx context.Context, token, email, code string) (VerifiedAccess, error) {
	logger := logging.FromContext(ctx)

	grant, err := s.usableGrant(ctx, token)
	if err != nil {
		return VerifiedAccess{}, err
	}

	if !strings.EqualFold(strings.TrimSpace(email), grant.RecipientEmail) {
		return VerifiedAccess{}, ErrEmailMismatch
	}

	if err := s.otps.Verify(ctx, grant.ID, grant.RecipientEmail, code); err != nil {
		return VerifiedAccess{}, err
	}

	if err := s.audits.MarkOTPVerified(ctx, grant.ID, grant.RecipientEmail, s.now()); err != nil {
		logger.Error("stamp otp verification", "shareId", grant.ID, "error", err)
	}

	session, err := s.sessions.Issue(ctx, grant.ID, grant.RecipientEmail)
	if err != nil {
		return VerifiedAccess{}, fmt.Errorf("issue recipient session: %w", err)
	}

	documents, err := s.accessibleDocuments(ctx, grant)
	if err != nil {
		return VerifiedAccess{}, err
	}

	return VerifiedAccess{
		AccessToken:   session.Token,
		AllowDownload: grant.AllowDownload,
		Documents:     documents,
	}, nil
}

// DocumentURL mints a fresh URL for one document in the grant. URLs are never
// cached or reused; Drive permissions are re-verified on every call and stale
// ledger entries pruned.
func (s *AccessService) DocumentURL(ctx context.Context, sessionToken, documentID string) (DocumentAccess, error) {
	logger := logging.FromContext(ctx)

	session, err := s.sessions.Resolve(ctx, sessionToken)
	if err != nil {
		return DocumentAccess{}, err
	}

	grant, err := s.shares.FindByID(ctx, session.ShareID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return DocumentAccess{}, ErrSessionInvalid
		}
		return DocumentAccess{}, fmt.Errorf("load grant: %w", err)
	}

	if !strings.EqualFold(session.Email, grant.RecipientEmail) {
		return DocumentAccess{}, ErrSessionInvalid
	}

	if grant.Status == models.ShareStatusRevoked || s.now().After(grant.ExpiresAt) {
		return DocumentAccess{}, ErrDocumentNotAccessible
	}

	if !containsString(grant.DocumentIDs, documentID) {
		return DocumentAccess{}, ErrDocumentNotInGrant
	}

	docs, err := s.documents.FindByIDs(ctx, []string{documentID})
	if err != nil {
		return DocumentAccess{}, fmt.Errorf("load document: %w", err)
	}
	if len(docs) == 0 || !docs[0].ShareEnabled {
		return DocumentAccess{}, ErrDocumentNotAccessible
	}
	doc := docs[0]

	locator := storage.ResolveLocator(doc.StoragePath)
	if locator.Kind == storage.KindInternal {
		url, err := s.signer.SignedURL(ctx, locator.RawPath, s.signedURLTTL)
		if err != nil {
			return DocumentAccess{}, fmt.Errorf("sign url: %w", err)
		}
		return DocumentAccess{SignedURL: url}, nil
	}

	permissionID, ok := grant.DrivePermissions[locator.FileID]
	if !ok {
		return DocumentAccess{}, ErrPermissionRevoked
	}

	accessToken, err := s.tokens.AccessToken(ctx, grant.OwnerID)
	if err != nil {
		return DocumentAccess{}, err
	}

	if !s.sync.CheckPermission(ctx, accessToken, locator.FileID, permissionID) {
		// Self-heal: the provider no longer has this permission, so the
		// ledger entry is stale and must not be trusted again.
		delete(grant.DrivePermissions, locator.FileID)
		if err := s.shares.UpdateLedger(ctx, grant.ID, grant.DrivePermissions); err != nil {
			logger.Error("prune stale ledger entry", "shareId", grant.ID, "fileId", locator.FileID, "error", err)
		}
		return DocumentAccess{}, ErrPermissionRevoked
	}

	link, err := s.sync.WebViewLink(ctx, accessToken, locator.FileID)
	if err != nil {
		return DocumentAccess{}, fmt.Errorf("resolve drive link: %w", err)
	}

	return DocumentAccess{SignedURL: link, IsDriveFile: true}, nil
}

// usableGrant loads a grant by token and applies the shared validity rules.
// The expiry check deliberately precedes the status check.
func (s *AccessService) usableGrant(ctx context.Context, token string) (models.ShareGrant, error) {
	if token == "" {
		return models.ShareGrant{}, ErrInvalidToken
	}

	grant, err := s.shares.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ShareGrant{}, ErrInvalidToken
		}
		return models.ShareGrant{}, fmt.Errorf("load grant: %w", err)
	}

	if s.now().After(grant.ExpiresAt) {
		return models.ShareGrant{}, ErrExpired
	}

	// A grant whose notification email failed stays reachable by token; the
	// recipient may have received the link another way. Only revocation
	// closes the door.
	if grant.Status == models.ShareStatusRevoked {
		return models.ShareGrant{}, ErrInvalidToken
	}

	return grant, nil
}

func (s *AccessService) accessibleDocuments(ctx context.Context, grant models.ShareGrant) ([]AccessibleDocument, error) {
	docs, err := s.documents.FindByIDs(ctx, grant.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	byID := make(map[string]models.DocumentRecord, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	// The owner's drive credential is fetched lazily: grants over internal
	// documents never touch the credential store.
	driveToken := ""
	driveTokenErr := false

	var out []AccessibleDocument
	for _, id := range grant.DocumentIDs {
		doc, ok := byID[id]
		if !ok || doc.OwnerID != grant.OwnerID || !doc.ShareEnabled {
			continue
		}

		entry := AccessibleDocument{
			ID:           doc.ID,
			FileName:     doc.FileName,
			FileType:     doc.FileType,
			MainCategory: doc.MainCategory,
			SubCategory:  doc.SubCategory,
		}

		if locator := storage.ResolveLocator(doc.StoragePath); locator.Kind == storage.KindExternal {
			entry.IsDriveFile = true
			entry.DrivePermissionActive = false

			if permissionID, ok := grant.DrivePermissions[locator.FileID]; ok && !driveTokenErr {
				if driveToken == "" {
					token, err := s.tokens.AccessToken(ctx, grant.OwnerID)
					if err != nil {
						// Fail closed: without a credential the permission
						// cannot be confirmed, so it is reported inactive.
						logging.FromContext(ctx).Warn("drive credential unavailable", "ownerId", grant.OwnerID, "error", err)
						driveTokenErr = true
					} else {
						driveToken = token
					}
				}
				if driveToken != "" {
					entry.DrivePermissionActive = s.sync.CheckPermission(ctx, driveToken, locator.FileID, permissionID)
				}
			}
		}

		out = append(out, entry)
	}

	return out, nil
}

func (s *AccessService) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

func containsString(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
