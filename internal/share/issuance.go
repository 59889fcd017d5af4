package share

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taxbridge/backend/internal/logging"
	"github.com/taxbridge/backend/internal/mail"
	"github.com/taxbridge/backend/internal/models"
	"github.com/taxbridge/backend/internal/storage"
)

// Recipient is one addressee of a share request.
type Recipient struct {
	Email    string
	Type     string
	Metadata map[string]string
}

// IssueRequest captures an owner's share request after structural validation.
type IssueRequest struct {
	DocumentIDs   []string
	Recipients    []Recipient
	AllowDownload bool
	ExpiresAt     time.Time
}

// RecipientResult reports the outcome for a single recipient.
type RecipientResult struct {
	Email     string
	ShareID   string
	ShareLink string
	Status    string
}

// IssueOutcome is the aggregate result of an issuance call.
type IssueOutcome struct {
	Results []RecipientResult
	// DriveWarning is set when Drive-backed documents could not be made
	// link-accessible. The shares are still issued: email-gated metadata
	// access works without a live Drive permission.
	DriveWarning string
}

// IssuanceService creates share grants: one row and token per recipient, a
// single provider permission pass for the document set, a notification email,
// and an audit entry. Recipients are independent; one failure never blocks
// the others.
type IssuanceService struct {
	shares    ShareStore
	audits    AuditStore
	documents DocumentStore
	tokens    AccessTokenProvider
	sync      PermissionSync
	mailer    mail.Mailer

	shareBaseURL string
	NowFunc      func() time.Time
}

// NewIssuanceService wires an issuance service.
func NewIssuanceService(shares ShareStore, audits AuditStore, documents DocumentStore,
	tokens AccessTokenProvider, sync PermissionSync, mailer mail.Mailer, shareBaseURL string) *IssuanceService {
	return &IssuanceService{
		shares:       shares,
		audits:       audits,
		documents:    documents,
		tokens:       tokens,
		sync:         sync,
		mailer:       mailer,
		shareBaseURL: strings.TrimSuffix(shareBaseURL, "/"),
	}
}

// Issue validates the document set once, establishes Drive permissions once,
// then processes each recipient independently.
func (s *IssuanceService) Issue(ctx context.Context, ownerID string, req IssueRequest) (IssueOutcome, error) {
	logger := logging.FromContext(ctx)

	docs, err := s.documents.FindByIDs(ctx, req.DocumentIDs)
	if err != nil {
		return IssueOutcome{}, fmt.Errorf("load documents: %w", err)
	}

	byID := make(map[string]models.DocumentRecord, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	// A grant is never issued partially valid: any unknown, foreign, or
	// share-disabled document fails the whole call before any work happens.
	var invalid []string
	for _, id := range req.DocumentIDs {
		doc, ok := byID[id]
		if !ok || doc.OwnerID != ownerID || !doc.ShareEnabled {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return IssueOutcome{}, &InvalidDocumentsError{IDs: invalid}
	}

	ledger, warning := s.buildLedger(ctx, ownerID, req.DocumentIDs, byID)

	kind := models.ShareKindMultiple
	if len(req.DocumentIDs) == 1 {
		kind = models.ShareKindSingle
	}

	outcome := IssueOutcome{DriveWarning: warning}
	for _, recipient := range req.Recipients {
		outcome.Results = append(outcome.Results, s.issueOne(ctx, ownerID, req, recipient, kind, ledger))
	}

	logger.Info("shares issued",
		"ownerId", ownerID,
		"documents", len(req.DocumentIDs),
		"recipients", len(req.Recipients),
	)

	return outcome, nil
}

// buildLedger grants anyone-with-link access on every Drive-backed document in
// the set, once, up front. All recipients of this issuance reuse the same
// permission ids. Failures degrade to a warning rather than aborting: the
// share is still worth delivering without a working Drive link.
func (s *IssuanceService) buildLedger(ctx context.Context, ownerID string, ids []string, byID map[string]models.DocumentRecord) (map[string]string, string) {
	logger := logging.FromContext(ctx)

	var fileIDs []string
	for _, id := range ids {
		if loc := storage.ResolveLocator(byID[id].StoragePath); loc.Kind == storage.KindExternal {
			fileIDs = append(fileIDs, loc.FileID)
		}
	}
	if len(fileIDs) == 0 {
		return map[string]string{}, ""
	}

	accessToken, err := s.tokens.AccessToken(ctx, ownerID)
	if err != nil {
		logger.Warn("drive credential unavailable during issuance", "ownerId", ownerID, "error", err)
		return map[string]string{}, "Google Drive is not connected; Drive documents will not be directly accessible."
	}

	ledger := make(map[string]string, len(fileIDs))
	degraded := false
	for _, fileID := range fileIDs {
		permissionID, err := s.sync.EnsureAnyoneReader(ctx, accessToken, fileID)
		if err != nil || permissionID == "" {
			logger.Warn("grant drive permission failed", "fileId", fileID, "error", err)
			degraded = true
			continue
		}
		ledger[fileID] = permissionID
	}

	if degraded {
		return ledger, "Some Google Drive documents could not be made link-accessible."
	}
	return ledger, ""
}

func (s *IssuanceService) issueOne(ctx context.Context, ownerID string, req IssueRequest,
	recipient Recipient, kind string, ledger map[string]string) RecipientResult {
	logger := logging.FromContext(ctx)

	email := strings.TrimSpace(strings.ToLower(recipient.Email))
	result := RecipientResult{Email: email, Status: models.ShareStatusFailed}

	token, err := NewToken()
	if err != nil {
		logger.Error("generate share token", "error", err)
		return result
	}

	now := s.now()
	grant := models.ShareGrant{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		DocumentIDs:       req.DocumentIDs,
		RecipientEmail:    email,
		RecipientType:     recipient.Type,
		RecipientMetadata: recipient.Metadata,
		AllowDownload:     req.AllowDownload,
		ExpiresAt:         req.ExpiresAt,
		Token:             token,
		ShareKind:         kind,
		Status:            models.ShareStatusPending,
		DrivePermissions:  ledger,
		CreatedAt:         now,
	}

	if err := s.shares.Create(ctx, grant); err != nil {
		logger.Error("create share grant", "email", email, "error", err)
		return result
	}

	result.ShareID = grant.ID
	result.ShareLink = fmt.Sprintf("%s/share/%s", s.shareBaseURL, token)

	subject, html, text := mail.ShareNotification(result.ShareLink, len(req.DocumentIDs),
		req.ExpiresAt.UTC().Format("Jan 2, 2006"))

	emailStatus := models.EmailStatusSent
	status := models.ShareStatusSuccess
	if err := s.mailer.Send(ctx, email, subject, html, text); err != nil {
		// A failed notification does not invalidate the token: the recipient
		// may still receive the link through another channel.
		logger.Warn("share notification failed", "email", email, "shareId", grant.ID, "error", err)
		emailStatus = models.EmailStatusFailed
		status = models.ShareStatusFailed
	}

	if err := s.shares.UpdateStatus(ctx, grant.ID, status); err != nil {
		logger.Error("update share status", "shareId", grant.ID, "error", err)
	}
	result.Status = status

	if err := s.audits.Append(ctx, models.AuditEntry{
		ID:                uuid.NewString(),
		ShareID:           grant.ID,
		RecipientEmail:    email,
		RecipientType:     recipient.Type,
		RecipientMetadata: recipient.Metadata,
		EmailStatus:       emailStatus,
		ExpiresAt:         req.ExpiresAt,
		CreatedAt:         now,
	}); err != nil {
		logger.Error("append share audit", "shareId", grant.ID, "error", err)
	}

	return result
}

func (s *IssuanceService) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
