package share

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/taxbridge/backend/internal/models"
	"github.com/taxbridge/backend/internal/repositories"
)

type memShareStore struct {
	mu        sync.Mutex
	grants    map[string]models.ShareGrant
	createErr error
}

func newMemShareStore(grants ...models.ShareGrant) *memShareStore {
	s := &memShareStore{grants: make(map[string]models.ShareGrant)}
	for _, grant := range grants {
		s.grants[grant.ID] = grant
	}
	return s
}

func (s *memShareStore) Create(_ context.Context, grant models.ShareGrant) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.ID] = grant
	return nil
}

func (s *memShareStore) FindByToken(_ context.Context, token string) (models.ShareGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, grant := range s.grants {
		if grant.Token == token {
			return grant, nil
		}
	}
	return models.ShareGrant{}, repositories.ErrNotFound
}

func (s *memShareStore) FindByID(_ context.Context, id string) (models.ShareGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[id]
	if !ok {
		return models.ShareGrant{}, repositories.ErrNotFound
	}
	return grant, nil
}

func (s *memShareStore) ListByOwner(_ context.Context, ownerID string) ([]models.ShareGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ShareGrant
	for _, grant := range s.grants {
		if grant.OwnerID == ownerID {
			out = append(out, grant)
		}
	}
	return out, nil
}

func (s *memShareStore) UpdateStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[id]
	if !ok {
		return repositories.ErrNotFound
	}
	grant.Status = status
	s.grants[id] = grant
	return nil
}

func (s *memShareStore) UpdateLedger(_ context.Context, id string, ledger map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[id]
	if !ok {
		return repositories.ErrNotFound
	}
	copied := make(map[string]string, len(ledger))
	for k, v := range ledger {
		copied[k] = v
	}
	grant.DrivePermissions = copied
	s.grants[id] = grant
	return nil
}

type memAuditStore struct {
	entries  []models.AuditEntry
	verified map[string]time.Time
}

func newMemAuditStore() *memAuditStore {
	return &memAuditStore{verified: make(map[string]time.Time)}
}

func (s *memAuditStore) Append(_ context.Context, entry models.AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memAuditStore) MarkOTPVerified(_ context.Context, shareID, email string, at time.Time) error {
	s.verified[shareID+"|"+email] = at
	return nil
}

type memDocumentStore struct {
	docs map[string]models.DocumentRecord
}

func newMemDocumentStore(docs ...models.DocumentRecord) *memDocumentStore {
	s := &memDocumentStore{docs: make(map[string]models.DocumentRecord)}
	for _, doc := range docs {
		s.docs[doc.ID] = doc
	}
	return s
}

func (s *memDocumentStore) FindByIDs(_ context.Context, ids []string) ([]models.DocumentRecord, error) {
	var out []models.DocumentRecord
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

type memOTPStore struct {
	otps map[string]models.ShareOTP
}

func newMemOTPStore() *memOTPStore {
	return &memOTPStore{otps: make(map[string]models.ShareOTP)}
}

func (s *memOTPStore) Upsert(_ context.Context, otp models.ShareOTP) error {
	s.otps[otp.ShareID+"|"+otp.Email] = otp
	return nil
}

func (s *memOTPStore) Find(_ context.Context, shareID, email string) (models.ShareOTP, error) {
	otp, ok := s.otps[shareID+"|"+email]
	if !ok {
		return models.ShareOTP{}, repositories.ErrNotFound
	}
	return otp, nil
}

func (s *memOTPStore) Delete(_ context.Context, shareID, email string) error {
	delete(s.otps, shareID+"|"+email)
	return nil
}

type memRecipientSessionStore struct {
	sessions map[string]models.RecipientSession
}

func newMemRecipientSessionStore() *memRecipientSessionStore {
	return &memRecipientSessionStore{sessions: make(map[string]models.RecipientSession)}
}

func (s *memRecipientSessionStore) Save(_ context.Context, session models.RecipientSession) error {
	s.sessions[session.Token] = session
	return nil
}

func (s *memRecipientSessionStore) Find(_ context.Context, token string) (models.RecipientSession, error) {
	session, ok := s.sessions[token]
	if !ok {
		return models.RecipientSession{}, repositories.ErrNotFound
	}
	return session, nil
}

type fakeTokenProvider struct {
	token string
	err   error
	calls int
}

func (f *fakeTokenProvider) AccessToken(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakePermissionSync struct {
	ensureID    string
	ensureErr   error
	ensureCalls int

	// active maps fileID|permissionID to liveness.
	active map[string]bool

	revoked   []string
	revokeErr error

	link    string
	linkErr error
}

func (f *fakePermissionSync) EnsureAnyoneReader(_ context.Context, _, fileID string) (string, error) {
	f.ensureCalls++
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	if f.ensureID == "" {
		return "perm-" + fileID, nil
	}
	return f.ensureID, nil
}

func (f *fakePermissionSync) CheckPermission(_ context.Context, _, fileID, permissionID string) bool {
	if f.active == nil {
		return false
	}
	return f.active[fileID+"|"+permissionID]
}

func (f *fakePermissionSync) RevokePermission(_ context.Context, _, fileID, permissionID string) error {
	f.revoked = append(f.revoked, fileID+"|"+permissionID)
	return f.revokeErr
}

func (f *fakePermissionSync) WebViewLink(_ context.Context, _, fileID string) (string, error) {
	if f.linkErr != nil {
		return "", f.linkErr
	}
	if f.link == "" {
		return "https://drive.google.com/file/d/" + fileID + "/view", nil
	}
	return f.link, nil
}

type sentMail struct {
	to      string
	subject string
	html    string
	text    string
}

type fakeMailer struct {
	sent    []sentMail
	failFor map[string]error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html, text string) error {
	if err, ok := f.failFor[to]; ok {
		return err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, html: html, text: text})
	return nil
}

type countingSigner struct {
	calls int
	err   error
}

func (s *countingSigner) SignedURL(_ context.Context, rawPath string, _ time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.calls++
	return fmt.Sprintf("https://objects.example.com/%s?sig=%d", rawPath, s.calls), nil
}

type accessHarness struct {
	shares   *memShareStore
	audits   *memAuditStore
	docs     *memDocumentStore
	otps     *OTPManager
	sessions *SessionManager
	tokens   *fakeTokenProvider
	sync     *fakePermissionSync
	signer   *countingSigner
	mailer   *fakeMailer
	svc      *AccessService
	now      time.Time
}

func newAccessHarness(t *testing.T, grants []models.ShareGrant, docs []models.DocumentRecord) *accessHarness {
	t.Helper()

	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	nowFunc := func() time.Time { return now }

	h := &accessHarness{
		shares:   newMemShareStore(grants...),
		audits:   newMemAuditStore(),
		docs:     newMemDocumentStore(docs...),
		tokens:   &fakeTokenProvider{token: "drive-token"},
		sync:     &fakePermissionSync{},
		signer:   &countingSigner{},
		mailer:   &fakeMailer{},
		now:      now,
	}

	otps := NewOTPManager(newMemOTPStore(), 10*time.Minute)
	otps.NowFunc = nowFunc
	sessions := NewSessionManager(newMemRecipientSessionStore(), time.Hour)
	sessions.NowFunc = nowFunc
	h.otps = otps
	h.sessions = sessions

	h.svc = NewAccessService(h.shares, h.audits, h.docs, otps, sessions,
		h.tokens, h.sync, h.signer, h.mailer, 15*time.Minute)
	h.svc.NowFunc = nowFunc

	return h
}

func baseGrant(now time.Time) models.ShareGrant {
	return models.ShareGrant{
		ID:             "share-1",
		OwnerID:        "owner-1",
		DocumentIDs:    []string{"doc-1"},
		RecipientEmail: "ada@example.com",
		RecipientType:  "accountant",
		AllowDownload:  true,
		ExpiresAt:      now.Add(72 * time.Hour),
		Token:          "token-1",
		ShareKind:      models.ShareKindSingle,
		Status:         models.ShareStatusSuccess,
		CreatedAt:      now.Add(-time.Hour),
	}
}

func internalDoc() models.DocumentRecord {
	return models.DocumentRecord{
		ID:           "doc-1",
		OwnerID:      "owner-1",
		FileName:     "w2-2025.pdf",
		FileType:     "application/pdf",
		MainCategory: "income",
		SubCategory:  "w2",
		ShareEnabled: true,
		StoragePath:  "users/owner-1/documents/w2-2025.pdf",
	}
}

func driveDoc() models.DocumentRecord {
	return models.DocumentRecord{
		ID:           "doc-2",
		OwnerID:      "owner-1",
		FileName:     "1099-brokerage.pdf",
		FileType:     "application/pdf",
		MainCategory: "income",
		SubCategory:  "1099",
		ShareEnabled: true,
		StoragePath:  "gdrive:file-abc",
	}
}

func TestValidateReturnsSummary(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{internalDoc()})
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant

	summary, err := h.svc.Validate(context.Background(), grant.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if summary.RecipientEmail != grant.RecipientEmail {
		t.Fatalf("expected recipient %q got %q", grant.RecipientEmail, summary.RecipientEmail)
	}
	if summary.DocumentCount != 1 {
		t.Fatalf("expected 1 document got %d", summary.DocumentCount)
	}
	if !summary.AllowDownload {
		t.Fatalf("expected allowDownload to carry through")
	}
}

func TestValidateUnknownToken(t *testing.T) {
	h := newAccessHarness(t, nil, nil)

	if _, err := h.svc.Validate(context.Background(), "nope"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken got %v", err)
	}
	if _, err := h.svc.Validate(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token got %v", err)
	}
}

func TestValidateExpiryPrecedesStatus(t *testing.T) {
	h := newAccessHarness(t, nil, nil)
	grant := baseGrant(h.now)
	grant.ExpiresAt = h.now.Add(-time.Minute)
	grant.Status = models.ShareStatusRevoked
	h.shares.grants[grant.ID] = grant

	// A grant that is both expired and revoked reads as expired.
	if _, err := h.svc.Validate(context.Background(), grant.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired got %v", err)
	}
}

func TestValidateRevokedToken(t *testing.T) {
	h := newAccessHarness(t, nil, nil)
	grant := baseGrant(h.now)
	grant.Status = models.ShareStatusRevoked
	h.shares.grants[grant.ID] = grant

	if _, err := h.svc.Validate(context.Background(), grant.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken got %v", err)
	}
}

func TestValidateFailedEmailStaysUsable(t *testing.T) {
	h := newAccessHarness(t, nil, nil)
	grant := baseGrant(h.now)
	grant.Status = models.ShareStatusFailed
	h.shares.grants[grant.ID] = grant

	if _, err := h.svc.Validate(context.Background(), grant.Token); err != nil {
		t.Fatalf("expected failed-email grant to validate, got %v", err)
	}
}

func TestSendOTPEmailMismatch(t *testing.T) {
	h := newAccessHarness(t, nil, nil)
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant

	if err := h.svc.SendOTP(context.Background(), grant.Token, "mallory@example.com"); !errors.Is(err, ErrEmailMismatch) {
		t.Fatalf("expected ErrEmailMismatch got %v", err)
	}
	if len(h.mailer.sent) != 0 {
		t.Fatalf("expected no mail on mismatch")
	}
}

func TestSendOTPCaseInsensitiveEmail(t *testing.T) {
	h := newAccessHarness(t, nil, nil)
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant

	if err := h.svc.SendOTP(context.Background(), grant.Token, "  ADA@Example.COM "); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	if len(h.mailer.sent) != 1 {
		t.Fatalf("expected one mail got %d", len(h.mailer.sent))
	}
	if h.mailer.sent[0].to != grant.RecipientEmail {
		t.Fatalf("expected mail to %q got %q", grant.RecipientEmail, h.mailer.sent[0].to)
	}
}

func TestVerifyOTPMintsSessionAndFiltersDocuments(t *testing.T) {
	disabled := internalDoc()
	disabled.ID = "doc-3"
	disabled.ShareEnabled = false

	h := newAccessHarness(t, nil, []models.DocumentRecord{internalDoc(), driveDoc(), disabled})
	grant := baseGrant(h.now)
	grant.DocumentIDs = []string{"doc-1", "doc-2", "doc-3"}
	grant.DrivePermissions = map[string]string{"file-abc": "perm-1"}
	h.shares.grants[grant.ID] = grant
	h.sync.active = map[string]bool{"file-abc|perm-1": true}

	code, err := h.otps.Issue(context.Background(), grant.ID, grant.RecipientEmail)
	if err != nil {
		t.Fatalf("issue otp: %v", err)
	}

	access, err := h.svc.VerifyOTP(context.Background(), grant.Token, "Ada@Example.com", code)
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}

	if access.AccessToken == "" {
		t.Fatalf("expected a recipient session token")
	}
	if len(access.Documents) != 2 {
		t.Fatalf("expected share-disabled document dropped, got %d documents", len(access.Documents))
	}
	if access.Documents[0].ID != "doc-1" || access.Documents[0].IsDriveFile {
		t.Fatalf("unexpected first document: %+v", access.Documents[0])
	}
	if !access.Documents[1].IsDriveFile || !access.Documents[1].DrivePermissionActive {
		t.Fatalf("expected live drive document flagged active: %+v", access.Documents[1])
	}

	if _, ok := h.audits.verified[grant.ID+"|"+grant.RecipientEmail]; !ok {
		t.Fatalf("expected otp verification stamped on audit trail")
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{internalDoc()})
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant

	if _, err := h.otps.Issue(context.Background(), grant.ID, grant.RecipientEmail); err != nil {
		t.Fatalf("issue otp: %v", err)
	}

	if _, err := h.svc.VerifyOTP(context.Background(), grant.Token, grant.RecipientEmail, "000000"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid got %v", err)
	}
}

func TestVerifyOTPSingleUse(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{internalDoc()})
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant

	code, err := h.otps.Issue(context.Background(), grant.ID, grant.RecipientEmail)
	if err != nil {
		t.Fatalf("issue otp: %v", err)
	}

	if _, err := h.svc.VerifyOTP(context.Background(), grant.Token, grant.RecipientEmail, code); err != nil {
		t.Fatalf("first verification: %v", err)
	}
	if _, err := h.svc.VerifyOTP(context.Background(), grant.Token, grant.RecipientEmail, code); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected second verification to fail, got %v", err)
	}
}

func TestVerifyOTPStaleDrivePermissionFlaggedInactive(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{driveDoc()})
	grant := baseGrant(h.now)
	grant.DocumentIDs = []string{"doc-2"}
	grant.DrivePermissions = map[string]string{"file-abc": "perm-1"}
	h.shares.grants[grant.ID] = grant
	// No entries in sync.active: the provider no longer has the permission.

	code, err := h.otps.Issue(context.Background(), grant.ID, grant.RecipientEmail)
	if err != nil {
		t.Fatalf("issue otp: %v", err)
	}

	access, err := h.svc.VerifyOTP(context.Background(), grant.Token, grant.RecipientEmail, code)
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}

	if len(access.Documents) != 1 {
		t.Fatalf("expected the document listed, got %d", len(access.Documents))
	}
	if access.Documents[0].DrivePermissionActive {
		t.Fatalf("expected stale permission reported inactive")
	}
}

func verifiedSession(t *testing.T, h *accessHarness, grant models.ShareGrant) string {
	t.Helper()
	session, err := h.sessions.Issue(context.Background(), grant.ID, grant.RecipientEmail)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

func TestDocumentURLInternalMintsFreshURLs(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{internalDoc()})
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant
	token := verifiedSession(t, h, grant)

	first, err := h.svc.DocumentURL(context.Background(), token, "doc-1")
	if err != nil {
		t.Fatalf("first url: %v", err)
	}
	second, err := h.svc.DocumentURL(context.Background(), token, "doc-1")
	if err != nil {
		t.Fatalf("second url: %v", err)
	}

	if first.IsDriveFile || second.IsDriveFile {
		t.Fatalf("expected internal documents")
	}
	if first.SignedURL == second.SignedURL {
		t.Fatalf("expected fresh URL per view, got %q twice", first.SignedURL)
	}
}

func TestDocumentURLUnknownSession(t *testing.T) {
	h := newAccessHarness(t, nil, nil)

	if _, err := h.svc.DocumentURL(context.Background(), "bogus", "doc-1"); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid got %v", err)
	}
}

func TestDocumentURLDocumentNotInGrant(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{internalDoc()})
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant
	token := verifiedSession(t, h, grant)

	if _, err := h.svc.DocumentURL(context.Background(), token, "doc-999"); !errors.Is(err, ErrDocumentNotInGrant) {
		t.Fatalf("expected ErrDocumentNotInGrant got %v", err)
	}
}

func TestDocumentURLShareDisabledMidSession(t *testing.T) {
	doc := internalDoc()
	h := newAccessHarness(t, nil, []models.DocumentRecord{doc})
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant
	token := verifiedSession(t, h, grant)

	doc.ShareEnabled = false
	h.docs.docs[doc.ID] = doc

	if _, err := h.svc.DocumentURL(context.Background(), token, "doc-1"); !errors.Is(err, ErrDocumentNotAccessible) {
		t.Fatalf("expected ErrDocumentNotAccessible got %v", err)
	}
}

func TestDocumentURLRevokedMidSession(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{internalDoc()})
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant
	token := verifiedSession(t, h, grant)

	if err := h.shares.UpdateStatus(context.Background(), grant.ID, models.ShareStatusRevoked); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := h.svc.DocumentURL(context.Background(), token, "doc-1"); !errors.Is(err, ErrDocumentNotAccessible) {
		t.Fatalf("expected ErrDocumentNotAccessible got %v", err)
	}
}

func TestDocumentURLDriveHappyPath(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{driveDoc()})
	grant := baseGrant(h.now)
	grant.DocumentIDs = []string{"doc-2"}
	grant.DrivePermissions = map[string]string{"file-abc": "perm-1"}
	h.shares.grants[grant.ID] = grant
	h.sync.active = map[string]bool{"file-abc|perm-1": true}
	token := verifiedSession(t, h, grant)

	access, err := h.svc.DocumentURL(context.Background(), token, "doc-2")
	if err != nil {
		t.Fatalf("document url: %v", err)
	}
	if !access.IsDriveFile {
		t.Fatalf("expected drive document")
	}
	if access.SignedURL != "https://drive.google.com/file/d/file-abc/view" {
		t.Fatalf("unexpected link %q", access.SignedURL)
	}
}

func TestDocumentURLDrivePermissionRevokedPrunesLedger(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{driveDoc()})
	grant := baseGrant(h.now)
	grant.DocumentIDs = []string{"doc-2"}
	grant.DrivePermissions = map[string]string{"file-abc": "perm-1"}
	h.shares.grants[grant.ID] = grant
	// sync.active empty: Drive says the permission is gone.
	token := verifiedSession(t, h, grant)

	if _, err := h.svc.DocumentURL(context.Background(), token, "doc-2"); !errors.Is(err, ErrPermissionRevoked) {
		t.Fatalf("expected ErrPermissionRevoked got %v", err)
	}

	stored, err := h.shares.FindByID(context.Background(), grant.ID)
	if err != nil {
		t.Fatalf("reload grant: %v", err)
	}
	if _, ok := stored.DrivePermissions["file-abc"]; ok {
		t.Fatalf("expected stale ledger entry pruned")
	}

	// The pruned entry must not be trusted on a later call either.
	if _, err := h.svc.DocumentURL(context.Background(), token, "doc-2"); !errors.Is(err, ErrPermissionRevoked) {
		t.Fatalf("expected ErrPermissionRevoked after prune, got %v", err)
	}
}

func TestDocumentURLMissingLedgerEntry(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{driveDoc()})
	grant := baseGrant(h.now)
	grant.DocumentIDs = []string{"doc-2"}
	grant.DrivePermissions = map[string]string{}
	h.shares.grants[grant.ID] = grant
	token := verifiedSession(t, h, grant)

	if _, err := h.svc.DocumentURL(context.Background(), token, "doc-2"); !errors.Is(err, ErrPermissionRevoked) {
		t.Fatalf("expected ErrPermissionRevoked got %v", err)
	}
}

func TestDocumentURLCredentialErrorPassesThrough(t *testing.T) {
	h := newAccessHarness(t, nil, []models.DocumentRecord{driveDoc()})
	grant := baseGrant(h.now)
	grant.DocumentIDs = []string{"doc-2"}
	grant.DrivePermissions = map[string]string{"file-abc": "perm-1"}
	h.shares.grants[grant.ID] = grant
	credErr := errors.New("reconnect required")
	h.tokens.err = credErr
	token := verifiedSession(t, h, grant)

	if _, err := h.svc.DocumentURL(context.Background(), token, "doc-2"); !errors.Is(err, credErr) {
		t.Fatalf("expected credential error passed through, got %v", err)
	}
}

func TestSessionResolveExpired(t *testing.T) {
	h := newAccessHarness(t, nil, nil)
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant

	session, err := h.sessions.Issue(context.Background(), grant.ID, grant.RecipientEmail)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	h.sessions.NowFunc = func() time.Time { return h.now.Add(2 * time.Hour) }

	if _, err := h.sessions.Resolve(context.Background(), session.Token); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid got %v", err)
	}
}

func TestOTPExpired(t *testing.T) {
	h := newAccessHarness(t, nil, nil)
	grant := baseGrant(h.now)
	h.shares.grants[grant.ID] = grant

	code, err := h.otps.Issue(context.Background(), grant.ID, grant.RecipientEmail)
	if err != nil {
		t.Fatalf("issue otp: %v", err)
	}

	h.otps.NowFunc = func() time.Time { return h.now.Add(11 * time.Minute) }

	if err := h.otps.Verify(context.Background(), grant.ID, grant.RecipientEmail, code); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid got %v", err)
	}
}
