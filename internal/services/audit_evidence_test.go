package services

import (
	"testing"
	"time"

	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildSignatureAudit(t *testing.T) {
	signedAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	clientCtx := models.ClientContext{
		IPAddress: "203.0.113.7",
		UserAgent: "Mozilla/5.0",
		Timezone:  "America/Tegucigalpa",
	}

	audit, err := BuildSignatureAudit("signatures/2026/03/abc.png", clientCtx, "Laura Mejía", "laura@example.com", signedAt)
	assert.NoError(t, err)
	assert.Equal(t, "signatures/2026/03/abc.png", audit.SignatureRef)
	assert.Equal(t, signedAt, audit.SignedAt)
	assert.Equal(t, "203.0.113.7", audit.SignerIP)
	assert.Equal(t, "Mozilla/5.0", audit.UserAgent)
	assert.Equal(t, "America/Tegucigalpa", audit.Timezone)
	assert.Equal(t, "Laura Mejía", audit.ClientName)
	assert.Equal(t, "laura@example.com", audit.ClientEmail)
}

func TestBuildSignatureAudit_UnknownIP(t *testing.T) {
	audit, err := BuildSignatureAudit("signatures/2026/03/abc.png", models.ClientContext{}, "Laura", "laura@example.com", time.Now())
	assert.NoError(t, err)
	assert.Equal(t, models.UnknownIP, audit.SignerIP)
}

func TestBuildSignatureAudit_Validation(t *testing.T) {
	now := time.Now()

	_, err := BuildSignatureAudit("", models.ClientContext{}, "Laura", "laura@example.com", now)
	assert.ErrorIs(t, err, ErrMissingSignature)

	_, err = BuildSignatureAudit("ref.png", models.ClientContext{}, "", "laura@example.com", now)
	assert.ErrorIs(t, err, ErrMissingSigner)

	_, err = BuildSignatureAudit("ref.png", models.ClientContext{}, "Laura", "", now)
	assert.ErrorIs(t, err, ErrMissingSigner)

	_, err = BuildSignatureAudit("ref.png", models.ClientContext{}, "Laura", "laura@example.com", time.Time{})
	assert.Error(t, err)
}
