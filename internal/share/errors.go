package share

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidToken indicates the share token does not resolve to a usable grant.
	ErrInvalidToken = errors.New("invalid share token")
	// ErrExpired indicates the grant's expiry has passed. Checked before any
	// status check so an expired grant always reads as expired, never invalid.
	ErrExpired = errors.New("share expired")
	// ErrEmailMismatch indicates the supplied email does not match the grant's
	// recipient. The message is identical whether the email is wrong or the
	// grant unknown, to avoid enumeration.
	ErrEmailMismatch = errors.New("email does not match this share")
	// ErrOTPInvalid indicates the one-time code is wrong, expired, or spent.
	ErrOTPInvalid = errors.New("invalid or expired verification code")
	// ErrSessionInvalid indicates the recipient session token is unknown,
	// expired, or bound to a different grant.
	ErrSessionInvalid = errors.New("invalid recipient session")
	// ErrDocumentNotInGrant indicates the requested document is not part of the grant.
	ErrDocumentNotInGrant = errors.New("document not part of this share")
	// ErrDocumentNotAccessible indicates the document can no longer be served:
	// sharing was disabled, or the grant was revoked or expired.
	ErrDocumentNotAccessible = errors.New("document not accessible")
	// ErrPermissionRevoked indicates the Drive permission backing the document
	// was removed on the provider side. Distinguished from a generic failure
	// so the recipient sees "access revoked by owner".
	ErrPermissionRevoked = errors.New("drive permission revoked")
	// ErrShareNotFound indicates the grant does not exist or is not owned by
	// the caller. The two cases are deliberately indistinguishable.
	ErrShareNotFound = errors.New("share not found")
)

// InvalidDocumentsError reports document ids that block issuance entirely:
// unknown, not owned by the caller, or with sharing disabled.
type InvalidDocumentsError struct {
	IDs []string
}

func (e *InvalidDocumentsError) Error() string {
	return fmt.Sprintf("documents not shareable: %s", strings.Join(e.IDs, ", "))
}
