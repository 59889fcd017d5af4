package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/taxbridge/backend/internal/googleoauth"
	"github.com/taxbridge/backend/internal/logging"
	"github.com/taxbridge/backend/internal/share"
)

// AccessHandler implements the public recipient endpoint. Every request is a
// POST carrying an action discriminator plus the share token; no owner
// authentication is involved.
type AccessHandler struct {
	Access  ShareAccess
	Limiter RateLimiter
}

type accessRequest struct {
	Action      string `json:"action"`
	Token       string `json:"token"`
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	AccessToken string `json:"accessToken"`
	DocumentID  string `json:"documentId"`
}

type accessDocumentPayload struct {
	ID                    string `json:"id"`
	FileName              string `json:"fileName"`
	FileType              string `json:"fileType"`
	MainCategory          string `json:"mainCategory"`
	SubCategory           string `json:"subCategory"`
	IsDriveFile           bool   `json:"isDriveFile"`
	DrivePermissionActive *bool  `json:"drivePermissionActive,omitempty"`
}

// Handle dispatches POST /api/v1/share-access.
func (h AccessHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if handlePreflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Access == nil {
		logger.Error("share access service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "share access unavailable"})
		return
	}

	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid access payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	switch req.Action {
	case "validate":
		h.validate(w, r, req)
	case "send-otp":
		h.sendOTP(w, r, req)
	case "verify-otp":
		h.verifyOTP(w, r, req)
	case "get-url":
		h.getURL(w, r, req)
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unknown action"})
	}
}

func (h AccessHandler) validate(w http.ResponseWriter, r *http.Request, req accessRequest) {
	ctx := r.Context()

	summary, err := h.Access.Validate(ctx, req.Token)
	if err != nil {
		h.respondAccessError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"valid":          true,
		"recipientEmail": summary.RecipientEmail,
		"documentCount":  summary.DocumentCount,
		"expiresAt":      summary.ExpiresAt.Format(time.RFC3339),
		"allowDownload":  summary.AllowDownload,
	})
}

func (h AccessHandler) sendOTP(w http.ResponseWriter, r *http.Request, req accessRequest) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "send-otp") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	if err := h.Access.SendOTP(ctx, req.Token, req.Email); err != nil {
		h.respondAccessError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"success": true,
		"message": "verification code sent",
	})
}

func (h AccessHandler) verifyOTP(w http.ResponseWriter, r *http.Request, req accessRequest) {
	ctx := r.Context()

	access, err := h.Access.VerifyOTP(ctx, req.Token, req.Email, req.OTP)
	if err != nil {
		h.respondAccessError(ctx, w, err)
		return
	}

	documents := make([]accessDocumentPayload, 0, len(access.Documents))
	for _, doc := range access.Documents {
		payload := accessDocumentPayload{
			ID:           doc.ID,
			FileName:     doc.FileName,
			FileType:     doc.FileType,
			MainCategory: doc.MainCategory,
			SubCategory:  doc.SubCategory,
			IsDriveFile:  doc.IsDriveFile,
		}
		if doc.IsDriveFile {
			active := doc.DrivePermissionActive
			payload.DrivePermissionActive = &active
		}
		documents = append(documents, payload)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"verified":      true,
		"allowDownload": access.AllowDownload,
		"accessToken":   access.AccessToken,
		"documents":     documents,
	})
}

func (h AccessHandler) getURL(w http.ResponseWriter, r *http.Request, req accessRequest) {
	ctx := r.Context()

	access, err := h.Access.DocumentURL(ctx, req.AccessToken, req.DocumentID)
	if err != nil {
		h.respondAccessError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"signedUrl":   access.SignedURL,
		"isDriveFile": access.IsDriveFile,
	})
}

// respondAccessError maps protocol errors to wire statuses. Recipient-facing
// messages stay generic; the one deliberate exception is the distinguished
// permission-revoked condition, which the UI renders as "access revoked by
// the owner" rather than a generic failure.
func (h AccessHandler) respondAccessError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, share.ErrInvalidToken):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "invalid share link"})
	case errors.Is(err, share.ErrExpired):
		respondJSON(ctx, w, http.StatusGone, map[string]string{"error": "this share link has expired"})
	case errors.Is(err, share.ErrEmailMismatch):
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "email does not match this share"})
	case errors.Is(err, share.ErrOTPInvalid):
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired verification code"})
	case errors.Is(err, share.ErrSessionInvalid):
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "session invalid or expired"})
	case errors.Is(err, share.ErrDocumentNotInGrant):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "document not found"})
	case errors.Is(err, share.ErrPermissionRevoked):
		respondJSON(ctx, w, http.StatusForbidden, map[string]any{
			"error":             "access to this document was revoked by the owner",
			"permissionRevoked": true,
		})
	case errors.Is(err, share.ErrDocumentNotAccessible):
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "document not accessible"})
	case errors.Is(err, googleoauth.ErrReconnectRequired):
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "the owner's Google Drive connection needs to be re-established"})
	default:
		logging.FromContext(ctx).Error("share access failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "something went wrong"})
	}
}
