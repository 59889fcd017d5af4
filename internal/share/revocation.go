package share

import (
	"context"
	"errors"
	"fmt"

	"github.com/taxbridge/backend/internal/logging"
	"github.com/taxbridge/backend/internal/models"
	"github.com/taxbridge/backend/internal/repositories"
)

// RevocationService tears down a grant: best-effort removal of the Drive
// permissions it ledgered, then the authoritative local status flip. Provider
// failures are logged and swallowed; the access protocol re-verifies liveness
// on every view, so a stray provider permission is a cleanup issue, not a
// security hole.
type RevocationService struct {
	shares ShareStore
	tokens AccessTokenProvider
	sync   PermissionSync
}

// NewRevocationService wires a revocation service.
func NewRevocationService(shares ShareStore, tokens AccessTokenProvider, sync PermissionSync) *RevocationService {
	return &RevocationService{shares: shares, tokens: tokens, sync: sync}
}

// Revoke marks the grant revoked and clears its ledger. A grant that does not
// exist and a grant owned by someone else are indistinguishable to the caller.
// Revoking an already revoked grant succeeds trivially.
func (s *RevocationService) Revoke(ctx context.Context, ownerID, shareID string) error {
	logger := logging.FromContext(ctx)

	grant, err := s.shares.FindByID(ctx, shareID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrShareNotFound
		}
		return fmt.Errorf("load grant: %w", err)
	}

	if grant.OwnerID != ownerID {
		return ErrShareNotFound
	}

	if grant.Status == models.ShareStatusRevoked {
		return nil
	}

	if len(grant.DrivePermissions) > 0 {
		accessToken, err := s.tokens.AccessToken(ctx, ownerID)
		if err != nil {
			logger.Warn("drive credential unavailable during revocation", "shareId", shareID, "error", err)
		} else {
			for fileID, permissionID := range grant.DrivePermissions {
				if err := s.sync.RevokePermission(ctx, accessToken, fileID, permissionID); err != nil {
					logger.Warn("revoke drive permission failed", "shareId", shareID, "fileId", fileID, "error", err)
				}
			}
		}
	}

	if err := s.shares.UpdateStatus(ctx, shareID, models.ShareStatusRevoked); err != nil {
		return fmt.Errorf("mark share revoked: %w", err)
	}
	if err := s.shares.UpdateLedger(ctx, shareID, map[string]string{}); err != nil {
		return fmt.Errorf("clear share ledger: %w", err)
	}

	logger.Info("share revoked", "shareId", shareID, "ownerId", ownerID)
	return nil
}
