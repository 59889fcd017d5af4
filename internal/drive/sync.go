package drive

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/taxbridge/backend/internal/logging"
)

// Permission is the slice of a Drive permission this service cares about.
type Permission struct {
	ID    string
	Type  string
	Role  string
	Email string
}

// Synchronizer manages provider-side permission state for externally stored
// documents. Drive is the source of truth: the locally
// ledgered permission ids are advisory, and every security-relevant check here
// re-queries the provider. Ambiguous provider responses are treated as "no
// access" rather than "access"; all operations are idempotent.
type Synchronizer struct {
	// endpoint overrides the Drive API base URL; empty means production.
	endpoint string
}

// NewSynchronizer constructs a Synchronizer. endpoint is normally empty and is
// only set by tests pointing at a fake Drive server.
func NewSynchronizer(endpoint string) *Synchronizer {
	return &Synchronizer{endpoint: endpoint}
}

func (s *Synchronizer) service(ctx context.Context, accessToken string) (*drivev3.Service, error) {
	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

// ListPermissions returns the permissions currently on a file. A listing
// failure yields an empty slice: callers must never assume broad access when
// the provider could not be consulted.
func (s *Synchronizer) ListPermissions(ctx context.Context, accessToken, fileID string) []Permission {
	svc, err := s.service(ctx, accessToken)
	if err != nil {
		logging.FromContext(ctx).Warn("drive service unavailable", "fileId", fileID, "error", err)
		return nil
	}

	list, err := svc.Permissions.List(fileID).
		Fields("permissions(id,type,role,emailAddress)").
		Context(ctx).Do()
	if err != nil {
		logging.FromContext(ctx).Warn("list drive permissions", "fileId", fileID, "error", err)
		return nil
	}

	perms := make([]Permission, 0, len(list.Permissions))
	for _, p := range list.Permissions {
		perms = append(perms, Permission{ID: p.Id, Type: p.Type, Role: p.Role, Email: p.EmailAddress})
	}
	return perms
}

// EnsureAnyoneReader makes the file reachable by anyone with the link and
// returns the permission id. If an "anyone" permission already exists with at
// least reader access its id is returned without issuing a second grant.
func (s *Synchronizer) EnsureAnyoneReader(ctx context.Context, accessToken, fileID string) (string, error) {
	for _, p := range s.ListPermissions(ctx, accessToken, fileID) {
		if p.Type == "anyone" && (p.Role == "reader" || p.Role == "writer") {
			return p.ID, nil
		}
	}

	svc, err := s.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	created, err := svc.Permissions.Create(fileID, &drivev3.Permission{
		Type: "anyone",
		Role: "reader",
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create anyone-reader permission on %s: %w", fileID, err)
	}

	return created.Id, nil
}

// CheckPermission reports whether the ledgered permission still exists on the
// file. A 404 means it was removed; any other failure is also reported as
// absent (fail closed).
func (s *Synchronizer) CheckPermission(ctx context.Context, accessToken, fileID, permissionID string) bool {
	svc, err := s.service(ctx, accessToken)
	if err != nil {
		logging.FromContext(ctx).Warn("drive service unavailable", "fileId", fileID, "error", err)
		return false
	}

	_, err = svc.Permissions.Get(fileID, permissionID).Fields("id,role").Context(ctx).Do()
	if err != nil {
		if !isNotFound(err) {
			logging.FromContext(ctx).Warn("check drive permission", "fileId", fileID, "permissionId", permissionID, "error", err)
		}
		return false
	}
	return true
}

// RevokePermission deletes a permission from the file. A permission that is
// already gone counts as revoked; only a genuine provider error is returned.
func (s *Synchronizer) RevokePermission(ctx context.Context, accessToken, fileID, permissionID string) error {
	svc, err := s.service(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := svc.Permissions.Delete(fileID, permissionID).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete permission %s on %s: %w", permissionID, fileID, err)
	}
	return nil
}

// WebViewLink returns Drive's canonical view link for the file.
func (s *Synchronizer) WebViewLink(ctx context.Context, accessToken, fileID string) (string, error) {
	svc, err := s.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	file, err := svc.Files.Get(fileID).Fields("webViewLink").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get file %s: %w", fileID, err)
	}
	return file.WebViewLink, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}
