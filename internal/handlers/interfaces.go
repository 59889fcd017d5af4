package handlers

import (
	"context"

	"github.com/taxbridge/backend/internal/models"
	"github.com/taxbridge/backend/internal/share"
)

// OwnerSessionStore resolves owner access tokens to sessions.
type OwnerSessionStore interface {
	Find(ctx context.Context, accessToken string) (models.Session, error)
}

// ShareIssuer creates share grants for an owner.
type ShareIssuer interface {
	Issue(ctx context.Context, ownerID string, req share.IssueRequest) (share.IssueOutcome, error)
}

// ShareRevoker tears down a grant on the owner's behalf.
type ShareRevoker interface {
	Revoke(ctx context.Context, ownerID, shareID string) error
}

// ShareReader lists an owner's grants for the back-office screen.
type ShareReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.ShareGrant, error)
}

// ShareAccess is the recipient-facing protocol surface.
type ShareAccess interface {
	Validate(ctx context.Context, token string) (share.Summary, error)
	SendOTP(ctx context.Context, token, email string) error
	VerifyOTP(ctx context.Context, token, email, code string) (share.VerifiedAccess, error)
	DocumentURL(ctx context.Context, sessionToken, documentID string) (share.DocumentAccess, error)
}
