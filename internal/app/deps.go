package app

import (
	"context"
	"fmt"
	"time"

	"github.com/taxbridge/backend/internal/config"
	"github.com/taxbridge/backend/internal/db"
	"github.com/taxbridge/backend/internal/drive"
	"github.com/taxbridge/backend/internal/googleoauth"
	"github.com/taxbridge/backend/internal/handlers"
	"github.com/taxbridge/backend/internal/mail"
	"github.com/taxbridge/backend/internal/middleware"
	"github.com/taxbridge/backend/internal/repositories"
	"github.com/taxbridge/backend/internal/share"
	"github.com/taxbridge/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	signer, err := storage.NewS3Signer(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure object store: %w", err)
	}

	mailer, err := mail.NewSESMailer(ctx, cfg.Email)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure mailer: %w", err)
	}

	shareRepo := repositories.NewPostgresShareRepository(pool)
	auditRepo := repositories.NewPostgresAuditRepository(pool)
	documentRepo := repositories.NewPostgresDocumentRepository(pool)
	credentialRepo := repositories.NewPostgresCredentialRepository(pool)
	otpRepo := repositories.NewPostgresOTPRepository(pool)
	recipientSessions := repositories.NewPostgresRecipientSessionRepository(pool)

	tokens := googleoauth.NewTokenProvider(cfg.Google, credentialRepo)
	sync := drive.NewSynchronizer(cfg.Google.DriveEndpoint)

	otps := share.NewOTPManager(otpRepo, cfg.OTPTTL)
	sessions := share.NewSessionManager(recipientSessions, cfg.RecipientSessionTTL)

	return handlers.Dependencies{
		Sessions: repositories.NewPostgresSessionRepository(pool),
		Issuer: share.NewIssuanceService(shareRepo, auditRepo, documentRepo,
			tokens, sync, mailer, cfg.ShareBaseURL),
		Revoker: share.NewRevocationService(shareRepo, tokens, sync),
		Shares:  shareRepo,
		Access: share.NewAccessService(shareRepo, auditRepo, documentRepo,
			otps, sessions, tokens, sync, signer, mailer, cfg.SignedURLTTL),
		OTPLimiter: middleware.NewIPRateLimiter(5, time.Minute, 5, 10*time.Minute),
	}, nil
}
