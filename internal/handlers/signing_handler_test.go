package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/sjperalta/eventra-api/internal/repository"
	"github.com/sjperalta/eventra-api/internal/services"
	"github.com/sjperalta/eventra-api/internal/storage"
	"github.com/sjperalta/eventra-api/pkg/logger"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Setup("test")
	m.Run()
}

// Minimal in-memory contract repository for routing tests
type fakeContractRepo struct {
	mu        sync.Mutex
	contracts map[uint]*models.Contract
}

func (f *fakeContractRepo) find(match func(*models.Contract) bool) (*models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contracts {
		if match(c) {
			copied := *c
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeContractRepo) FindByID(ctx context.Context, id uint) (*models.Contract, error) {
	return f.find(func(c *models.Contract) bool { return c.ID == id })
}

func (f *fakeContractRepo) FindBySlug(ctx context.Context, slug string) (*models.Contract, error) {
	return f.find(func(c *models.Contract) bool { return c.PublicSlug != nil && *c.PublicSlug == slug })
}

func (f *fakeContractRepo) FindByToken(ctx context.Context, token string) (*models.Contract, error) {
	return f.find(func(c *models.Contract) bool { return c.PublicToken != nil && *c.PublicToken == token })
}

func (f *fakeContractRepo) Create(ctx context.Context, contract *models.Contract) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *contract
	f.contracts[contract.ID] = &copied
	return nil
}

func (f *fakeContractRepo) Update(ctx context.Context, contract *models.Contract) error {
	return f.Create(ctx, contract)
}

func (f *fakeContractRepo) UpdateIfStatus(ctx context.Context, id uint, expectedStatus string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[id]
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

func (f *fakeContractRepo) List(ctx context.Context, query *repository.ContractQuery) ([]models.Contract, int64, error) {
	return nil, 0, nil
}

func (f *fakeContractRepo) FindStalePreviews(ctx context.Context, olderThan time.Duration) ([]models.Contract, error) {
	return nil, nil
}

func (f *fakeContractRepo) GetStats(ctx context.Context) (*repository.ContractStats, error) {
	return &repository.ContractStats{}, nil
}

type noopAudit struct{}

func (noopAudit) Log(ctx context.Context, actor, action, entity string, entityID uint, details, ip, userAgent string) error {
	return nil
}

func signingTestRouter(t *testing.T) (*gin.Engine, *fakeContractRepo) {
	t.Helper()

	slug := "abc-123"
	token := "tok-456"
	repo := &fakeContractRepo{contracts: map[uint]*models.Contract{
		1: {
			ID:          1,
			Status:      models.ContractStatusSent,
			ClientName:  "Laura Mejía",
			ClientEmail: "laura@example.com",
			PublicSlug:  &slug,
			PublicToken: &token,
			EventType:   "boda",
		},
	}}

	store, err := storage.NewLocalStorage(t.TempDir())
	assert.NoError(t, err)

	signingSvc := services.NewSigningService(repo, store, nil, nil, noopAudit{})
	handler := NewSigningHandler(signingSvc, services.NewDocumentService(store))

	router := gin.New()
	sign := router.Group("/api/v1/sign/:public_id")
	sign.GET("", handler.Show)
	sign.POST("/signature", handler.SavePreview)
	sign.POST("/confirm", handler.Confirm)
	sign.POST("/edit", handler.EditSignature)

	return router, repo
}

func doJSON(router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signatureDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("firma"))
}

func TestSigningShow(t *testing.T) {
	router, _ := signingTestRouter(t)

	w := doJSON(router, "GET", "/api/v1/sign/abc-123", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Legacy token resolves the same contract
	w = doJSON(router, "GET", "/api/v1/sign/tok-456", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "GET", "/api/v1/sign/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSigningFlow(t *testing.T) {
	router, repo := signingTestRouter(t)

	// Preview
	w := doJSON(router, "POST", "/api/v1/sign/abc-123/signature", gin.H{"signature_data": signatureDataURL()})
	assert.Equal(t, http.StatusOK, w.Code)

	stored, _ := repo.FindByID(context.Background(), 1)
	assert.Equal(t, models.ContractStatusDraftSigned, stored.Status)

	// Confirm
	w = doJSON(router, "POST", "/api/v1/sign/abc-123/confirm", gin.H{"timezone": "America/Tegucigalpa"})
	assert.Equal(t, http.StatusOK, w.Code)

	stored, _ = repo.FindByID(context.Background(), 1)
	assert.Equal(t, models.ContractStatusSigned, stored.Status)
	if assert.NotNil(t, stored.AuditPayload) {
		assert.Equal(t, "America/Tegucigalpa", stored.AuditPayload.Timezone)
	}
}

func TestSigningConfirm_DoubleSubmitReturnsSignedSnapshot(t *testing.T) {
	router, _ := signingTestRouter(t)

	doJSON(router, "POST", "/api/v1/sign/abc-123/signature", gin.H{"signature_data": signatureDataURL()})
	first := doJSON(router, "POST", "/api/v1/sign/abc-123/confirm", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	// The duplicate gets the final state back, not an error
	second := doJSON(router, "POST", "/api/v1/sign/abc-123/confirm", nil)
	assert.Equal(t, http.StatusOK, second.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["already_signed"])
}

func TestSigningSavePreview_MissingData(t *testing.T) {
	router, _ := signingTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/sign/abc-123/signature", gin.H{"signature_data": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSigningConfirm_WithoutPreview(t *testing.T) {
	router, _ := signingTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/sign/abc-123/confirm", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSigningEdit(t *testing.T) {
	router, repo := signingTestRouter(t)

	doJSON(router, "POST", "/api/v1/sign/abc-123/signature", gin.H{"signature_data": signatureDataURL()})
	w := doJSON(router, "POST", "/api/v1/sign/abc-123/edit", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	stored, _ := repo.FindByID(context.Background(), 1)
	assert.Equal(t, models.ContractStatusSent, stored.Status)
	assert.Nil(t, stored.PreviewSignaturePath)
}
