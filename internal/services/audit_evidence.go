package services

import (
	"fmt"
	"time"

	"github.com/sjperalta/eventra-api/internal/models"
)

// BuildSignatureAudit assembles the immutable evidence bundle bound to a
// contract at confirmation. It performs no I/O: the caller resolves the
// signer's address beforehand (or leaves it empty to record it as unknown).
// Every field is mandatory except the IP, which degrades to unknown.
func BuildSignatureAudit(signatureRef string, clientCtx models.ClientContext, signerName, signerEmail string, signedAt time.Time) (models.SignatureAudit, error) {
	if signatureRef == "" {
		return models.SignatureAudit{}, fmt.Errorf("audit evidence requires a signature reference: %w", ErrMissingSignature)
	}
	if signerName == "" || signerEmail == "" {
		return models.SignatureAudit{}, ErrMissingSigner
	}
	if signedAt.IsZero() {
		return models.SignatureAudit{}, fmt.Errorf("audit evidence requires a signing timestamp")
	}

	ip := clientCtx.IPAddress
	if ip == "" {
		ip = models.UnknownIP
	}

	return models.SignatureAudit{
		SignatureRef: signatureRef,
		SignedAt:     signedAt,
		SignerIP:     ip,
		UserAgent:    clientCtx.UserAgent,
		Timezone:     clientCtx.Timezone,
		ClientName:   signerName,
		ClientEmail:  signerEmail,
	}, nil
}
