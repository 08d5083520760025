package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/sjperalta/eventra-api/internal/repository"
	"github.com/sjperalta/eventra-api/pkg/logger"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Setup("test")
	m.Run()
}

// In-memory contract repository. UpdateIfStatus takes the mutex for the
// whole check-and-write, mirroring the atomicity of the conditional SQL
// UPDATE it stands in for.
type memContractRepo struct {
	mu        sync.Mutex
	contracts map[uint]*models.Contract
}

func newMemContractRepo(contracts ...*models.Contract) *memContractRepo {
	repo := &memContractRepo{contracts: make(map[uint]*models.Contract)}
	for _, c := range contracts {
		repo.contracts[c.ID] = c
	}
	return repo
}

func (m *memContractRepo) get(id uint) (*models.Contract, error) {
	c, ok := m.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memContractRepo) FindByID(ctx context.Context, id uint) (*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memContractRepo) FindBySlug(ctx context.Context, slug string) (*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.contracts {
		if c.PublicSlug != nil && *c.PublicSlug == slug {
			return m.get(id)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memContractRepo) FindByToken(ctx context.Context, token string) (*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.contracts {
		if c.PublicToken != nil && *c.PublicToken == token {
			return m.get(id)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memContractRepo) Create(ctx context.Context, contract *models.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *contract
	m.contracts[contract.ID] = &copied
	return nil
}

func (m *memContractRepo) Update(ctx context.Context, contract *models.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[contract.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *contract
	m.contracts[contract.ID] = &copied
	return nil
}

func (m *memContractRepo) UpdateIfStatus(ctx context.Context, id uint, expectedStatus string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if c.Status != expectedStatus {
		return repository.ErrConflict
	}
	if v, ok := fields["status"].(string); ok {
		c.Status = v
	}
	if v, ok := fields["signed_at"].(time.Time); ok {
		signedAt := v
		c.SignedAt = &signedAt
	}
	if v, ok := fields["audit_payload"].(models.SignatureAudit); ok {
		audit := v
		c.AuditPayload = &audit
	}
	if v, ok := fields["client_name"].(string); ok {
		c.ClientName = v
	}
	if v, ok := fields["client_email"].(string); ok {
		c.ClientEmail = v
	}
	if _, ok := fields["status_before_signature"]; ok {
		c.StatusBeforeSignature = nil
	}
	return nil
}

func (m *memContractRepo) List(ctx context.Context, query *repository.ContractQuery) ([]models.Contract, int64, error) {
	return nil, 0, nil
}

func (m *memContractRepo) FindStalePreviews(ctx context.Context, olderThan time.Duration) ([]models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var stale []models.Contract
	for _, c := range m.contracts {
		if c.Status == models.ContractStatusDraftSigned && c.SignatureDrawnAt != nil && c.SignatureDrawnAt.Before(cutoff) {
			stale = append(stale, *c)
		}
	}
	return stale, nil
}

func (m *memContractRepo) GetStats(ctx context.Context) (*repository.ContractStats, error) {
	return &repository.ContractStats{}, nil
}

// Stub signature store
type stubSignatureStore struct {
	mu    sync.Mutex
	count int
	err   error
}

func (s *stubSignatureStore) StoreSignatureImage(dataURL string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return fmt.Sprintf("signatures/2026/01/sig-%d.png", s.count), nil
}

// Stub IP lookup
type stubIPLookup struct {
	mockLookup func(ctx context.Context) (string, error)
}

func (s *stubIPLookup) LookupCallerIP(ctx context.Context) (string, error) {
	if s.mockLookup != nil {
		return s.mockLookup(ctx)
	}
	return "198.51.100.10", nil
}

// Recording dispatcher
type recordingDispatcher struct {
	mu     sync.Mutex
	count  int
	audits []models.SignatureAudit
}

func (d *recordingDispatcher) DispatchSigned(ctx context.Context, contract *models.Contract, audit models.SignatureAudit) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	d.audits = append(d.audits, audit)
}

func (d *recordingDispatcher) dispatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// No-op audit recorder
type nopAuditRecorder struct{}

func (nopAuditRecorder) Log(ctx context.Context, actor, action, entity string, entityID uint, details, ip, userAgent string) error {
	return nil
}

func strPtr(s string) *string { return &s }

func sentContract(id uint) *models.Contract {
	amount := 1500.0
	return &models.Contract{
		ID:          id,
		Status:      models.ContractStatusSent,
		ClientName:  "Laura Mejía",
		ClientEmail: "laura@example.com",
		PublicSlug:  strPtr(fmt.Sprintf("slug-%d", id)),
		PublicToken: strPtr(fmt.Sprintf("token-%d", id)),
		EventType:   "boda",
		Amount:      &amount,
		Currency:    "USD",
	}
}

func newSigningFixture(contracts ...*models.Contract) (*SigningService, *memContractRepo, *recordingDispatcher) {
	repo := newMemContractRepo(contracts...)
	dispatcher := &recordingDispatcher{}
	svc := NewSigningService(repo, &stubSignatureStore{}, &stubIPLookup{}, dispatcher, nopAuditRecorder{})
	return svc, repo, dispatcher
}

func TestSavePreview_MovesContractToDraftSigned(t *testing.T) {
	svc, repo, dispatcher := newSigningFixture(sentContract(1))

	contract, err := svc.SavePreview(context.Background(), 1, "data:image/png;base64,aGVsbG8=", "Laura M. Mejía", "")
	assert.NoError(t, err)
	assert.Equal(t, models.ContractStatusDraftSigned, contract.Status)
	assert.NotNil(t, contract.PreviewSignaturePath)
	assert.NotNil(t, contract.SignatureDrawnAt)
	assert.Equal(t, "Laura M. Mejía", contract.ClientName)
	assert.Equal(t, "laura@example.com", contract.ClientEmail)

	stored, _ := repo.FindByID(context.Background(), 1)
	assert.Equal(t, models.ContractStatusDraftSigned, stored.Status)
	if assert.NotNil(t, stored.StatusBeforeSignature) {
		assert.Equal(t, models.ContractStatusSent, *stored.StatusBeforeSignature)
	}
	assert.Nil(t, stored.AuditPayload, "preview must not create audit evidence")
	assert.Equal(t, 0, dispatcher.dispatches(), "preview must not notify")
}

func TestSavePreview_MissingSignatureData(t *testing.T) {
	svc, repo, _ := newSigningFixture(sentContract(1))

	_, err := svc.SavePreview(context.Background(), 1, "   ", "", "")
	assert.ErrorIs(t, err, ErrMissingSignature)

	stored, _ := repo.FindByID(context.Background(), 1)
	assert.Equal(t, models.ContractStatusSent, stored.Status)
}

func TestSavePreview_OnSignedContract(t *testing.T) {
	contract := sentContract(1)
	contract.Status = models.ContractStatusSigned
	svc, _, _ := newSigningFixture(contract)

	_, err := svc.SavePreview(context.Background(), 1, "data:image/png;base64,aGVsbG8=", "", "")
	assert.ErrorIs(t, err, ErrAlreadySigned)
}

func TestSavePreview_RedrawKeepsPriorStatus(t *testing.T) {
	svc, repo, _ := newSigningFixture(sentContract(1))
	ctx := context.Background()

	first, err := svc.SavePreview(ctx, 1, "data:image/png;base64,dW5v", "", "")
	assert.NoError(t, err)
	second, err := svc.SavePreview(ctx, 1, "data:image/png;base64,ZG9z", "", "")
	assert.NoError(t, err)
	assert.NotEqual(t, *first.PreviewSignaturePath, *second.PreviewSignaturePath)

	stored, _ := repo.FindByID(ctx, 1)
	if assert.NotNil(t, stored.StatusBeforeSignature) {
		assert.Equal(t, models.ContractStatusSent, *stored.StatusBeforeSignature)
	}
}

func TestConfirmSignature_BindsAuditEvidence(t *testing.T) {
	svc, repo, dispatcher := newSigningFixture(sentContract(1))
	ctx := context.Background()

	_, err := svc.SavePreview(ctx, 1, "data:image/png;base64,aGVsbG8=", "", "")
	assert.NoError(t, err)

	clientCtx := models.ClientContext{
		IPAddress: "203.0.113.7",
		UserAgent: "Mozilla/5.0 (iPhone)",
		Timezone:  "America/Tegucigalpa",
	}
	signed, err := svc.ConfirmSignature(ctx, 1, "", "", clientCtx)
	assert.NoError(t, err)
	assert.Equal(t, models.ContractStatusSigned, signed.Status)
	assert.NotNil(t, signed.SignedAt)
	if assert.NotNil(t, signed.AuditPayload) {
		assert.Equal(t, "203.0.113.7", signed.AuditPayload.SignerIP)
		assert.Equal(t, "Mozilla/5.0 (iPhone)", signed.AuditPayload.UserAgent)
		assert.Equal(t, "America/Tegucigalpa", signed.AuditPayload.Timezone)
		assert.Equal(t, "Laura Mejía", signed.AuditPayload.ClientName)
		assert.Equal(t, "laura@example.com", signed.AuditPayload.ClientEmail)
		assert.NotEmpty(t, signed.AuditPayload.SignatureRef)
		assert.Equal(t, signed.AuditPayload.SignedAt, *signed.SignedAt)
	}

	stored, _ := repo.FindByID(ctx, 1)
	assert.Nil(t, stored.StatusBeforeSignature)
	assert.Equal(t, 1, dispatcher.dispatches())
}

func TestConfirmSignature_WithoutPreview(t *testing.T) {
	svc, repo, dispatcher := newSigningFixture(sentContract(1))

	_, err := svc.ConfirmSignature(context.Background(), 1, "", "", models.ClientContext{IPAddress: "203.0.113.7"})
	assert.ErrorIs(t, err, ErrInvalidState)

	stored, _ := repo.FindByID(context.Background(), 1)
	assert.Equal(t, models.ContractStatusSent, stored.Status)
	assert.Nil(t, stored.AuditPayload)
	assert.Equal(t, 0, dispatcher.dispatches())
}

func TestConfirmSignature_DoubleSubmit(t *testing.T) {
	svc, repo, dispatcher := newSigningFixture(sentContract(1))
	ctx := context.Background()

	_, err := svc.SavePreview(ctx, 1, "data:image/png;base64,aGVsbG8=", "", "")
	assert.NoError(t, err)

	first, err := svc.ConfirmSignature(ctx, 1, "", "", models.ClientContext{IPAddress: "203.0.113.7", UserAgent: "first"})
	assert.NoError(t, err)

	_, err = svc.ConfirmSignature(ctx, 1, "", "", models.ClientContext{IPAddress: "198.51.100.99", UserAgent: "second"})
	assert.ErrorIs(t, err, ErrAlreadySigned)

	stored, _ := repo.FindByID(ctx, 1)
	if assert.NotNil(t, stored.AuditPayload) {
		assert.Equal(t, first.AuditPayload.SignerIP, stored.AuditPayload.SignerIP)
		assert.Equal(t, "first", stored.AuditPayload.UserAgent)
	}
	assert.Equal(t, 1, dispatcher.dispatches())
}

func TestConfirmSignature_ConcurrentSubmissions(t *testing.T) {
	svc, repo, dispatcher := newSigningFixture(sentContract(1))
	ctx := context.Background()

	_, err := svc.SavePreview(ctx, 1, "data:image/png;base64,aGVsbG8=", "", "")
	assert.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clientCtx := models.ClientContext{
				IPAddress: fmt.Sprintf("203.0.113.%d", i+1),
				UserAgent: fmt.Sprintf("agent-%d", i),
			}
			_, errs[i] = svc.ConfirmSignature(ctx, 1, "", "", clientCtx)
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadySigned):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one confirmation must win")
	assert.Equal(t, attempts-1, conflicted)
	assert.Equal(t, 1, dispatcher.dispatches(), "losers must not notify")

	stored, _ := repo.FindByID(ctx, 1)
	assert.Equal(t, models.ContractStatusSigned, stored.Status)
	assert.NotNil(t, stored.AuditPayload)
}

func TestConfirmSignature_IPLookupFallbackToUnknown(t *testing.T) {
	repo := newMemContractRepo(sentContract(1))
	dispatcher := &recordingDispatcher{}
	ipLookup := &stubIPLookup{mockLookup: func(ctx context.Context) (string, error) {
		return "", errors.New("lookup timed out")
	}}
	svc := NewSigningService(repo, &stubSignatureStore{}, ipLookup, dispatcher, nopAuditRecorder{})
	ctx := context.Background()

	_, err := svc.SavePreview(ctx, 1, "data:image/png;base64,aGVsbG8=", "", "")
	assert.NoError(t, err)

	signed, err := svc.ConfirmSignature(ctx, 1, "", "", models.ClientContext{UserAgent: "Mozilla/5.0"})
	assert.NoError(t, err, "attribution failure must not block signing")
	if assert.NotNil(t, signed.AuditPayload) {
		assert.Equal(t, models.UnknownIP, signed.AuditPayload.SignerIP)
	}
}

func TestConfirmSignature_IPLookupFillsMissingAddress(t *testing.T) {
	repo := newMemContractRepo(sentContract(1))
	ipLookup := &stubIPLookup{mockLookup: func(ctx context.Context) (string, error) {
		return "198.51.100.42", nil
	}}
	svc := NewSigningService(repo, &stubSignatureStore{}, ipLookup, &recordingDispatcher{}, nopAuditRecorder{})
	ctx := context.Background()

	_, err := svc.SavePreview(ctx, 1, "data:image/png;base64,aGVsbG8=", "", "")
	assert.NoError(t, err)

	signed, err := svc.ConfirmSignature(ctx, 1, "", "", models.ClientContext{})
	assert.NoError(t, err)
	if assert.NotNil(t, signed.AuditPayload) {
		assert.Equal(t, "198.51.100.42", signed.AuditPayload.SignerIP)
	}
}

func TestEditSignature_RestoresPriorStatus(t *testing.T) {
	cases := []struct {
		name   string
		status string
	}{
		{"from draft", models.ContractStatusDraft},
		{"from sent", models.ContractStatusSent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			contract := sentContract(1)
			contract.Status = tc.status
			svc, repo, _ := newSigningFixture(contract)
			ctx := context.Background()

			_, err := svc.SavePreview(ctx, 1, "data:image/png;base64,aGVsbG8=", "", "")
			assert.NoError(t, err)

			reopened, err := svc.EditSignature(ctx, 1)
			assert.NoError(t, err)
			assert.Equal(t, tc.status, reopened.Status)
			assert.Nil(t, reopened.PreviewSignaturePath)
			assert.Nil(t, reopened.SignatureDrawnAt)
			assert.Nil(t, reopened.StatusBeforeSignature)

			stored, _ := repo.FindByID(ctx, 1)
			assert.Equal(t, tc.status, stored.Status)
		})
	}
}

func TestEditSignature_ThenResignAndConfirm(t *testing.T) {
	svc, repo, dispatcher := newSigningFixture(sentContract(1))
	ctx := context.Background()

	_, err := svc.SavePreview(ctx, 1, "data:image/png;base64,dW5v", "", "")
	assert.NoError(t, err)
	_, err = svc.EditSignature(ctx, 1)
	assert.NoError(t, err)

	second, err := svc.SavePreview(ctx, 1, "data:image/png;base64,ZG9z", "", "")
	assert.NoError(t, err)

	signed, err := svc.ConfirmSignature(ctx, 1, "", "", models.ClientContext{IPAddress: "203.0.113.7"})
	assert.NoError(t, err)
	assert.Equal(t, *second.PreviewSignaturePath, signed.AuditPayload.SignatureRef)
	assert.Equal(t, 1, dispatcher.dispatches())

	// The contract is final now
	_, err = svc.EditSignature(ctx, 1)
	assert.ErrorIs(t, err, ErrAlreadySigned)

	stored, _ := repo.FindByID(ctx, 1)
	assert.Equal(t, models.ContractStatusSigned, stored.Status)
}

func TestEditSignature_WithoutPreview(t *testing.T) {
	svc, _, _ := newSigningFixture(sentContract(1))

	_, err := svc.EditSignature(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestResolve_SlugAndTokenFallback(t *testing.T) {
	svc, _, _ := newSigningFixture(sentContract(1))
	ctx := context.Background()

	bySlug, err := svc.Resolve(ctx, "slug-1")
	assert.NoError(t, err)
	assert.Equal(t, uint(1), bySlug.ID)

	byToken, err := svc.Resolve(ctx, "token-1")
	assert.NoError(t, err)
	assert.Equal(t, uint(1), byToken.ID)

	_, err = svc.Resolve(ctx, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseStalePreviews(t *testing.T) {
	fresh := sentContract(1)
	stale := sentContract(2)
	svc, repo, _ := newSigningFixture(fresh, stale)
	ctx := context.Background()

	_, err := svc.SavePreview(ctx, 1, "data:image/png;base64,aGVsbG8=", "", "")
	assert.NoError(t, err)
	_, err = svc.SavePreview(ctx, 2, "data:image/png;base64,aGVsbG8=", "", "")
	assert.NoError(t, err)

	// Age the second preview past the cutoff
	repo.mu.Lock()
	old := time.Now().Add(-100 * time.Hour)
	repo.contracts[2].SignatureDrawnAt = &old
	repo.mu.Unlock()

	err = svc.ReleaseStalePreviews(ctx, 72*time.Hour)
	assert.NoError(t, err)

	kept, _ := repo.FindByID(ctx, 1)
	assert.Equal(t, models.ContractStatusDraftSigned, kept.Status)

	released, _ := repo.FindByID(ctx, 2)
	assert.Equal(t, models.ContractStatusSent, released.Status)
	assert.Nil(t, released.PreviewSignaturePath)
}
