package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/sjperalta/eventra-api/internal/repository"
	"github.com/sjperalta/eventra-api/internal/statemachine"
	"github.com/sjperalta/eventra-api/pkg/logger"
	"gorm.io/gorm"
)

// SignatureStore persists drawn signature images and returns asset
// references. Implemented by storage.LocalStorage.
type SignatureStore interface {
	StoreSignatureImage(dataURL string) (string, error)
}

// AuditRecorder writes audit-log rows. Implemented by AuditService.
type AuditRecorder interface {
	Log(ctx context.Context, actor, action, entity string, entityID uint, details, ip, userAgent string) error
}

// SigningService drives the two-phase signing protocol: a contract enters
// draft_signed when the client draws a preview signature, and becomes
// permanently signed when they confirm. Confirmation is guarded by a
// compare-and-set write so a duplicate submission can never re-sign.
type SigningService struct {
	repo       repository.ContractRepository
	signatures SignatureStore
	ipLookup   IPLookup
	dispatcher SignedNotifier
	auditSvc   AuditRecorder
}

func NewSigningService(
	repo repository.ContractRepository,
	signatures SignatureStore,
	ipLookup IPLookup,
	dispatcher SignedNotifier,
	auditSvc AuditRecorder,
) *SigningService {
	return &SigningService{
		repo:       repo,
		signatures: signatures,
		ipLookup:   ipLookup,
		dispatcher: dispatcher,
		auditSvc:   auditSvc,
	}
}

// Resolve maps a public identifier to a contract, trying the slug first
// and the legacy token second. Contracts created before slugs existed only
// carry a token; both keys keep working indefinitely.
func (s *SigningService) Resolve(ctx context.Context, publicID string) (*models.Contract, error) {
	contract, err := s.repo.FindBySlug(ctx, publicID)
	if err == nil {
		return contract, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	contract, err = s.repo.FindByToken(ctx, publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return contract, nil
}

// SavePreview stores a drawn signature against the contract and moves it
// to draft_signed. The signer may correct their name and email here; both
// freeze at confirmation. No notification is sent for a preview.
func (s *SigningService) SavePreview(ctx context.Context, contractID uint, signatureData, signerName, signerEmail string) (*models.Contract, error) {
	if strings.TrimSpace(signatureData) == "" {
		return nil, ErrMissingSignature
	}

	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if contract.IsSigned() {
		return nil, ErrAlreadySigned
	}
	if !contract.MaySignPreview() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, contract.Status)
	}

	// Remember the pre-preview status the first time we enter draft_signed
	// so edit_signature can restore it exactly.
	if contract.Status != models.ContractStatusDraftSigned {
		prior := contract.Status
		contract.StatusBeforeSignature = &prior
	}

	fsm := statemachine.NewSigningFSM(contract)
	if err := fsm.SignPreview(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, err)
	}

	path, err := s.signatures.StoreSignatureImage(signatureData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingSignature, err)
	}

	now := time.Now().UTC()
	contract.PreviewSignaturePath = &path
	contract.SignatureDrawnAt = &now
	if signerName != "" {
		contract.ClientName = signerName
	}
	if signerEmail != "" {
		contract.ClientEmail = signerEmail
	}

	if err := s.repo.Update(ctx, contract); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, "client", "SIGN_PREVIEW", "Contract", contract.ID,
		fmt.Sprintf("Firma en borrador guardada (%s)", path), "", "")

	return contract, nil
}

// ConfirmSignature irreversibly binds the preview signature, the signer
// identity, and the client context into the contract's audit payload. The
// store write is conditional on the contract still being draft_signed: of
// N racing confirmations exactly one commits, the rest get ErrAlreadySigned
// and the winner's payload is never touched.
func (s *SigningService) ConfirmSignature(ctx context.Context, contractID uint, signerName, signerEmail string, clientCtx models.ClientContext) (*models.Contract, error) {
	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if contract.IsSigned() {
		return nil, ErrAlreadySigned
	}
	if !contract.MayConfirm() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, contract.Status)
	}

	if signerName == "" {
		signerName = contract.ClientName
	}
	if signerEmail == "" {
		signerEmail = contract.ClientEmail
	}

	// Network attribution is best-effort: when the edge could not capture
	// an address we try the lookup collaborator within its own deadline,
	// and settle for unknown on any failure.
	if clientCtx.IPAddress == "" && s.ipLookup != nil {
		ip, err := s.ipLookup.LookupCallerIP(ctx)
		if err != nil {
			logger.Warn("IP lookup failed, recording unknown", "contract_id", contract.ID, "error", err)
			ip = models.UnknownIP
		}
		clientCtx.IPAddress = ip
	}

	audit, err := BuildSignatureAudit(*contract.PreviewSignaturePath, clientCtx, signerName, signerEmail, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"status":                  models.ContractStatusSigned,
		"signed_at":               audit.SignedAt,
		"audit_payload":           audit,
		"client_name":             signerName,
		"client_email":            signerEmail,
		"status_before_signature": nil,
	}

	if err := s.repo.UpdateIfStatus(ctx, contract.ID, models.ContractStatusDraftSigned, fields); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost the race to another confirmation of the same contract.
			return nil, ErrAlreadySigned
		}
		return nil, err
	}

	// The contract is legally signed from here on; everything below is
	// best-effort and must not fail the operation.
	signed, err := s.repo.FindByID(ctx, contract.ID)
	if err != nil {
		logger.Error("Failed to reload signed contract", "contract_id", contract.ID, "error", err)
		signed = contract
		signed.Status = models.ContractStatusSigned
		signed.SignedAt = &audit.SignedAt
		signed.AuditPayload = &audit
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchSigned(ctx, signed, audit)
	}

	s.auditSvc.Log(ctx, "client", "CONFIRM_SIGNATURE", "Contract", signed.ID,
		fmt.Sprintf("Contrato firmado por %s <%s>", signerName, signerEmail),
		audit.SignerIP, audit.UserAgent)

	return signed, nil
}

// EditSignature discards the preview signature and returns the contract to
// the status it held before the preview was drawn. The stored image asset
// is not deleted; the asset store is append-only.
func (s *SigningService) EditSignature(ctx context.Context, contractID uint) (*models.Contract, error) {
	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if contract.IsSigned() {
		return nil, ErrAlreadySigned
	}
	if !contract.MayEditSignature() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, contract.Status)
	}

	fsm := statemachine.NewSigningFSM(contract)
	if err := fsm.EditSignature(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, err)
	}

	contract.PreviewSignaturePath = nil
	contract.SignatureDrawnAt = nil
	contract.StatusBeforeSignature = nil

	if err := s.repo.Update(ctx, contract); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, "client", "EDIT_SIGNATURE", "Contract", contract.ID,
		"Firma en borrador descartada", "", "")

	return contract, nil
}

// ReleaseStalePreviews returns contracts stuck in draft_signed for longer
// than olderThan to their pre-preview status, so an abandoned preview does
// not hold a contract open indefinitely.
func (s *SigningService) ReleaseStalePreviews(ctx context.Context, olderThan time.Duration) error {
	contracts, err := s.repo.FindStalePreviews(ctx, olderThan)
	if err != nil {
		return err
	}

	for _, contract := range contracts {
		if _, err := s.EditSignature(ctx, contract.ID); err != nil {
			logger.Error("Failed to release stale preview", "contract_id", contract.ID, "error", err)
			continue
		}
		logger.Info("Released stale signature preview", "contract_id", contract.ID)
	}

	return nil
}

// mapNotFound translates the store's not-found error into the service error
func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
