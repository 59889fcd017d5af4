package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/taxbridge/backend/internal/logging"
	"github.com/taxbridge/backend/internal/models"
	"github.com/taxbridge/backend/internal/repositories"
	"github.com/taxbridge/backend/internal/share"
)

// ShareHandler implements the owner-facing issuance, listing, and revocation
// endpoints.
type ShareHandler struct {
	Sessions OwnerSessionStore
	Issuer   ShareIssuer
	Revoker  ShareRevoker
	Shares   ShareReader
	NowFunc  func() time.Time
}

type issueRequest struct {
	DocumentIDs   []string           `json:"documentIds"`
	AllowDownload bool               `json:"allowDownload"`
	ExpiresAt     string             `json:"expiresAt"`
	Recipients    []recipientPayload `json:"recipients"`

	// Legacy single-recipient shorthand, normalized into Recipients.
	RecipientEmail    string            `json:"recipientEmail"`
	RecipientType     string            `json:"recipientType"`
	RecipientMetadata map[string]string `json:"recipientMetadata"`
}

type recipientPayload struct {
	Email    string            `json:"email"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type recipientResultPayload struct {
	Email     string `json:"email"`
	ShareID   string `json:"shareId"`
	ShareLink string `json:"shareLink"`
	Status    string `json:"status"`
}

type issueResponse struct {
	Success bool                     `json:"success"`
	Results []recipientResultPayload `json:"results"`

	// Top-level mirrors of the first result, kept for older clients that
	// predate multi-recipient issuance.
	ShareID      string `json:"shareId,omitempty"`
	Status       string `json:"status,omitempty"`
	ShareLink    string `json:"shareLink,omitempty"`
	DriveWarning string `json:"driveWarning,omitempty"`
}

// HandleShares dispatches POST (issue) and GET (list) on /api/v1/shares.
func (h ShareHandler) HandleShares(w http.ResponseWriter, r *http.Request) {
	if handlePreflight(w, r) {
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.issue(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h ShareHandler) issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	ownerID, ok := h.authenticate(ctx, w, r)
	if !ok {
		return
	}

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid issue payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	recipients, errMsg := normalizeRecipients(req)
	if errMsg != "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	if len(req.DocumentIDs) == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "documentIds are required"})
		return
	}

	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "expiresAt must be a valid RFC 3339 timestamp"})
		return
	}

	outcome, err := h.Issuer.Issue(ctx, ownerID, share.IssueRequest{
		DocumentIDs:   req.DocumentIDs,
		Recipients:    recipients,
		AllowDownload: req.AllowDownload,
		ExpiresAt:     expiresAt.UTC(),
	})
	if err != nil {
		var invalid *share.InvalidDocumentsError
		if errors.As(err, &invalid) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]any{
				"error":              "some documents are not shareable",
				"invalidDocumentIds": invalid.IDs,
			})
			return
		}
		logger.Error("share issuance failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create share"})
		return
	}

	resp := issueResponse{DriveWarning: outcome.DriveWarning}
	for _, result := range outcome.Results {
		resp.Results = append(resp.Results, recipientResultPayload(result))
		if result.Status == models.ShareStatusSuccess {
			resp.Success = true
		}
	}
	if len(resp.Results) > 0 {
		resp.ShareID = resp.Results[0].ShareID
		resp.Status = resp.Results[0].Status
		resp.ShareLink = resp.Results[0].ShareLink
	}

	if !resp.Success {
		respondJSON(ctx, w, http.StatusInternalServerError, resp)
		return
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

func (h ShareHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := h.authenticate(ctx, w, r)
	if !ok {
		return
	}

	grants, err := h.Shares.ListByOwner(ctx, ownerID)
	if err != nil {
		logging.FromContext(ctx).Error("list shares failed", "ownerId", ownerID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to list shares"})
		return
	}

	type shareSummary struct {
		ID             string    `json:"id"`
		RecipientEmail string    `json:"recipientEmail"`
		RecipientType  string    `json:"recipientType"`
		DocumentCount  int       `json:"documentCount"`
		AllowDownload  bool      `json:"allowDownload"`
		Status         string    `json:"status"`
		ExpiresAt      time.Time `json:"expiresAt"`
		CreatedAt      time.Time `json:"createdAt"`
	}

	summaries := make([]shareSummary, 0, len(grants))
	for _, grant := range grants {
		summaries = append(summaries, shareSummary{
			ID:             grant.ID,
			RecipientEmail: grant.RecipientEmail,
			RecipientType:  grant.RecipientType,
			DocumentCount:  len(grant.DocumentIDs),
			AllowDownload:  grant.AllowDownload,
			Status:         grant.Status,
			ExpiresAt:      grant.ExpiresAt,
			CreatedAt:      grant.CreatedAt,
		})
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"shares": summaries})
}

// Revoke handles POST /api/v1/shares/revoke.
func (h ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if handlePreflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	ownerID, ok := h.authenticate(ctx, w, r)
	if !ok {
		return
	}

	var req struct {
		ShareID string `json:"shareId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ShareID) == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "shareId is required"})
		return
	}

	if err := h.Revoker.Revoke(ctx, ownerID, req.ShareID); err != nil {
		if errors.Is(err, share.ErrShareNotFound) {
			// Not-owned and non-existent grants answer identically so a
			// non-owner learns nothing about the share id space.
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "share not found"})
			return
		}
		logger.Error("share revocation failed", "shareId", req.ShareID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to revoke share"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
}

// authenticate resolves the Authorization bearer token to an owner id,
// answering 401 itself when the token is missing, unknown, or expired.
func (h ShareHandler) authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("owner session store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication unavailable"})
		return "", false
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return "", false
	}

	session, err := h.Sessions.Find(ctx, strings.TrimSpace(token))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("owner session lookup failed", "error", err)
		}
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return "", false
	}

	if h.now().After(session.ExpiresAt) {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return "", false
	}

	return session.UserID, true
}

func normalizeRecipients(req issueRequest) ([]share.Recipient, string) {
	payloads := req.Recipients
	if len(payloads) == 0 && strings.TrimSpace(req.RecipientEmail) != "" {
		payloads = []recipientPayload{{
			Email:    req.RecipientEmail,
			Type:     req.RecipientType,
			Metadata: req.RecipientMetadata,
		}}
	}

	if len(payloads) == 0 {
		return nil, "at least one recipient is required"
	}

	recipients := make([]share.Recipient, 0, len(payloads))
	for _, p := range payloads {
		email := strings.TrimSpace(strings.ToLower(p.Email))
		if email == "" {
			return nil, "recipient email is required"
		}
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, "invalid recipient email address"
		}

		recipientType := strings.TrimSpace(p.Type)
		if recipientType == "" {
			recipientType = "other"
		}

		recipients = append(recipients, share.Recipient{
			Email:    email,
			Type:     recipientType,
			Metadata: p.Metadata,
		})
	}

	return recipients, ""
}

func (h ShareHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
