package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	cryptoService "github.com/recoverydesk/esign/internal/crypto/service"
	"github.com/recoverydesk/esign/internal/notification"
	"github.com/recoverydesk/esign/internal/retry"
	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/signature/service"
	"github.com/recoverydesk/esign/internal/storage"
	"github.com/recoverydesk/esign/internal/testutil"
)

// memoryTokenRepository enforces the same constraints as the SQL stores: one
// active token per case and document type, and compare-and-set transitions.
type memoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.Token
	// beforeTransition runs before a status change is applied, outside the lock.
	beforeTransition func(id string)
}

func newMemoryTokenRepository() *memoryTokenRepository {
	return &memoryTokenRepository{tokens: make(map[string]*domain.Token)}
}

func (r *memoryTokenRepository) Create(ctx context.Context, token *domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tokens {
		if existing.CaseID == token.CaseID && existing.DocumentType == token.DocumentType && existing.IsActive() {
			return domain.ErrPendingTokenExists
		}
	}
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r *memoryTokenRepository) Get(ctx context.Context, id string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[id]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	cp := *token
	return &cp, nil
}

func (r *memoryTokenRepository) GetActive(
	ctx context.Context,
	caseID string,
	documentType domain.DocumentType,
) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.tokens {
		if token.CaseID == caseID && token.DocumentType == documentType && token.IsActive() {
			cp := *token
			return &cp, nil
		}
	}
	return nil, domain.ErrTokenNotFound
}

func (r *memoryTokenRepository) ListByCase(ctx context.Context, caseID string) ([]*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tokens []*domain.Token
	for _, token := range r.tokens {
		if token.CaseID == caseID {
			cp := *token
			tokens = append(tokens, &cp)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.After(tokens[j].CreatedAt) })
	return tokens, nil
}

func (r *memoryTokenRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tokens []*domain.Token
	for _, token := range r.tokens {
		if token.IsActive() && token.ExpiresAt.Before(now) {
			cp := *token
			tokens = append(tokens, &cp)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ExpiresAt.Before(tokens[j].ExpiresAt) })
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens, nil
}

func (r *memoryTokenRepository) UpdateFormLink(ctx context.Context, id, link string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[id]
	if !ok || !token.IsActive() {
		return domain.ErrStatusConflict
	}
	token.FormLink = link
	token.UpdatedAt = at
	return nil
}

func (r *memoryTokenRepository) TransitionStatus(
	ctx context.Context,
	id string,
	expected, next domain.Status,
	at time.Time,
) error {
	if r.beforeTransition != nil {
		r.beforeTransition(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[id]
	if !ok || token.Status != expected {
		return domain.ErrStatusConflict
	}
	applyTransition(token, next, at)
	return nil
}

// set overwrites the stored status, as a concurrent writer would.
func (r *memoryTokenRepository) set(id string, status domain.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[id].Status = status
}

type memoryRecordRepository struct {
	mu      sync.Mutex
	records map[string]*domain.SignatureRecord
}

func newMemoryRecordRepository() *memoryRecordRepository {
	return &memoryRecordRepository{records: make(map[string]*domain.SignatureRecord)}
}

func (r *memoryRecordRepository) Create(ctx context.Context, record *domain.SignatureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.TokenID]; exists {
		return domain.ErrSubmissionInProgress
	}
	cp := *record
	r.records[record.TokenID] = &cp
	return nil
}

func (r *memoryRecordRepository) GetByTokenID(ctx context.Context, tokenID string) (*domain.SignatureRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[tokenID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	cp := *record
	return &cp, nil
}

func (r *memoryRecordRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type memoryDocumentRepository struct {
	mu        sync.Mutex
	documents map[uuid.UUID]*domain.GeneratedDocument
	createErr error
}

func newMemoryDocumentRepository() *memoryDocumentRepository {
	return &memoryDocumentRepository{documents: make(map[uuid.UUID]*domain.GeneratedDocument)}
}

func (r *memoryDocumentRepository) Create(ctx context.Context, doc *domain.GeneratedDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.documents {
		if existing.TokenID == doc.TokenID {
			return domain.ErrDocumentExists
		}
	}
	cp := *doc
	r.documents[doc.ID] = &cp
	return nil
}

func (r *memoryDocumentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.GeneratedDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *memoryDocumentRepository) GetByTokenID(ctx context.Context, tokenID string) (*domain.GeneratedDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, doc := range r.documents {
		if doc.TokenID == tokenID {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, domain.ErrDocumentNotFound
}

func (r *memoryDocumentRepository) ListByCase(ctx context.Context, caseID string) ([]*domain.GeneratedDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var docs []*domain.GeneratedDocument
	for _, doc := range r.documents {
		if doc.CaseID == caseID {
			cp := *doc
			docs = append(docs, &cp)
		}
	}
	return docs, nil
}

func (r *memoryDocumentRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.documents)
}

// keyringSealer seals with a real X25519 key pair under a single key version.
type keyringSealer struct {
	sealer     *cryptoService.EnvelopeSealer
	version    uint
	publicKey  []byte
	privateKey []byte
	sealErr    error
}

func newKeyringSealer(t *testing.T) *keyringSealer {
	t.Helper()
	publicKey, privateKey, err := cryptoService.GenerateKeyPair()
	require.NoError(t, err)
	return &keyringSealer{
		sealer:     cryptoService.NewEnvelopeSealer(cryptoService.NewAEADManager()),
		version:    1,
		publicKey:  publicKey,
		privateKey: privateKey,
	}
}

func (k *keyringSealer) Seal(ctx context.Context, payload []byte, alg cryptoDomain.Algorithm) ([]byte, uint, error) {
	if k.sealErr != nil {
		return nil, 0, k.sealErr
	}
	sealed, err := k.sealer.Seal(payload, alg, k.version, k.publicKey)
	return sealed, k.version, err
}

func (k *keyringSealer) Open(ctx context.Context, sealed []byte, keyVersion uint) ([]byte, error) {
	if keyVersion != k.version {
		return nil, cryptoDomain.ErrDocumentKeyNotFound
	}
	return k.sealer.Open(sealed, keyVersion, k.publicKey, k.privateKey)
}

// recordingAudit keeps every entry it is asked to record.
type recordingAudit struct {
	mu      sync.Mutex
	entries []*auditDomain.AuditLog
	err     error
}

func (a *recordingAudit) Record(
	ctx context.Context,
	caseID, tokenID string,
	action auditDomain.Action,
	actor auditDomain.Actor,
	metadata map[string]any,
) (*auditDomain.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := &auditDomain.AuditLog{
		ID:             uuid.Must(uuid.NewV7()),
		CaseID:         caseID,
		TokenID:        tokenID,
		Action:         action,
		ActorIP:        actor.IP,
		ActorUserAgent: actor.UserAgent,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if a.err != nil && !errors.Is(a.err, auditDomain.ErrDeferred) {
		return nil, a.err
	}
	a.entries = append(a.entries, entry)
	return entry, a.err
}

func (a *recordingAudit) actions() []auditDomain.Action {
	a.mu.Lock()
	defer a.mu.Unlock()

	actions := make([]auditDomain.Action, len(a.entries))
	for i, entry := range a.entries {
		actions[i] = entry.Action
	}
	return actions
}

type publishedEvent struct {
	eventType string
	payload   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{eventType: eventType, payload: payload})
	return nil
}

// mockSender is a testify mock of notification.Sender.
type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, msg notification.Email) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *mockSender) SendSMS(ctx context.Context, msg notification.SMS) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// failingGenerator fails every render.
type failingGenerator struct {
	calls int
}

func (g *failingGenerator) Generate(ctx context.Context, input *service.DocumentInput) ([]byte, error) {
	g.calls++
	return nil, errors.New("font table corrupt")
}

func pngSignatureDataURL(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 120, 40))
	for x := 10; x < 110; x++ {
		img.Set(x, 20+(x%5), color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// testClock is a settable clock shared by every use case of a harness.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires the three signature use cases to in-memory collaborators.
type harness struct {
	clock       *testClock
	tokens      *memoryTokenRepository
	records     *memoryRecordRepository
	documents   *memoryDocumentRepository
	bucket      *blob.Bucket
	sealer      *keyringSealer
	audit       *recordingAudit
	publisher   *recordingPublisher
	sender      *mockSender
	linkBuilder *service.FormLinkBuilder

	tokenUseCase      TokenUseCase
	dispatchUseCase   DispatchUseCase
	completionUseCase CompletionUseCase
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	linkBuilder, err := service.NewFormLinkBuilder(service.LinkConfig{
		Mode:          service.LinkModeInternal,
		PortalBaseURL: "https://sign.example.com",
	})
	require.NoError(t, err)

	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })

	h := &harness{
		clock:       &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		tokens:      newMemoryTokenRepository(),
		records:     newMemoryRecordRepository(),
		documents:   newMemoryDocumentRepository(),
		bucket:      bucket,
		sealer:      newKeyringSealer(t),
		audit:       &recordingAudit{},
		publisher:   &recordingPublisher{},
		sender:      &mockSender{},
		linkBuilder: linkBuilder,
	}
	t.Cleanup(func() { h.sender.AssertExpectations(t) })

	logger := testutil.NewTestLogger()
	fastPolicy := retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

	tokenUC := NewTokenUseCase(h.tokens, service.NewTokenGenerator(), linkBuilder, h.audit, logger)
	tokenUC.(*tokenUseCase).now = h.clock.Now

	dispatchUC := NewDispatchUseCase(h.tokens, linkBuilder, h.sender, h.audit, fastPolicy, logger)
	dispatchUC.(*dispatchUseCase).now = h.clock.Now

	completionUC := NewCompletionUseCase(
		h.tokens,
		h.records,
		h.documents,
		service.NewPDFGenerator(10*time.Second),
		h.sealer,
		storage.NewBlobStore(bucket),
		h.audit,
		h.publisher,
		h.sender,
		CompletionConfig{
			EncryptionAlgorithm: cryptoDomain.AESGCM,
			GenerationPolicy:    retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond},
			NotifyEmail:         "ops@example.com",
		},
		logger,
	)
	completionUC.(*completionUseCase).now = h.clock.Now

	h.tokenUseCase = tokenUC
	h.dispatchUseCase = dispatchUC
	h.completionUseCase = completionUC
	return h
}

// useGenerator swaps the document generator of the completion use case.
func (h *harness) useGenerator(g service.DocumentGenerator) {
	h.completionUseCase.(*completionUseCase).generator = g
}

func claimsPrefill(t *testing.T) domain.Prefill {
	t.Helper()

	prefill, err := domain.DecodePrefill(domain.DocumentTypeClaims, map[string]string{
		"client_name":          "Jane Doe",
		"client_email":         "jane@example.com",
		"vehicle_registration": "AB12 CDE",
		"accident_date":        "2026-01-15",
	})
	require.NoError(t, err)
	return prefill
}

func (h *harness) issue(t *testing.T, caseID string) *domain.Token {
	t.Helper()

	token, err := h.tokenUseCase.Issue(context.Background(), IssueInput{
		CaseID:     caseID,
		CaseNumber: "RD-" + caseID,
		Recipient:  domain.Recipient{Name: "Jane Doe", Email: "jane@example.com", Phone: "07700900123"},
		Prefill:    claimsPrefill(t),
		Actor:      auditDomain.Actor{IP: "10.0.0.1", UserAgent: "case-manager"},
	})
	require.NoError(t, err)
	return token
}

func (h *harness) submission(t *testing.T, tokenID string) *domain.Submission {
	t.Helper()

	return &domain.Submission{
		SubmissionID:   "sub-" + tokenID[:8],
		FormID:         "internal",
		Token:          tokenID,
		SignatureImage: pngSignatureDataURL(t),
		SignerName:     "Jane Doe",
		TermsAccepted:  true,
		Answers:        map[string]string{"injuries": "none"},
		IPAddress:      "203.0.113.7",
		UserAgent:      "Mozilla/5.0",
	}
}

func (h *harness) status(t *testing.T, tokenID string) domain.Status {
	t.Helper()

	token, err := h.tokens.Get(context.Background(), tokenID)
	require.NoError(t, err)
	return token.Status
}

func (h *harness) objectCount(t *testing.T) int {
	t.Helper()

	count := 0
	iter := h.bucket.List(nil)
	for {
		_, err := iter.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return count
		}
		require.NoError(t, err)
		count++
	}
}
