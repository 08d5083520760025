package services

import (
	"context"
	"fmt"

	"github.com/sjperalta/eventra-api/internal/jobs"
	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/sjperalta/eventra-api/pkg/logger"
)

// SignedNotifier is invoked once per successful confirmation, after the
// conditional write has committed. Implementations are fire-and-forget:
// a delivery failure never unwinds the signing transition.
type SignedNotifier interface {
	DispatchSigned(ctx context.Context, contract *models.Contract, audit models.SignatureAudit)
}

// SignedDispatcher fans a signed contract out to the signer confirmation
// email, the operator copy, and the operator inbox through the background
// worker.
type SignedDispatcher struct {
	notificationSvc *NotificationService
	emailSvc        *EmailService
	worker          *jobs.Worker
}

func NewSignedDispatcher(notificationSvc *NotificationService, emailSvc *EmailService, worker *jobs.Worker) *SignedDispatcher {
	return &SignedDispatcher{
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		worker:          worker,
	}
}

// DispatchSigned schedules the post-commit notifications for a signed
// contract. Errors surface only in the worker's log.
func (d *SignedDispatcher) DispatchSigned(ctx context.Context, contract *models.Contract, audit models.SignatureAudit) {
	d.worker.EnqueueAsync(func(ctx context.Context) error {
		return d.emailSvc.SendSignedConfirmation(ctx, contract, audit)
	})

	d.worker.EnqueueAsync(func(ctx context.Context) error {
		return d.emailSvc.SendSignedOperatorCopy(ctx, contract, audit)
	})

	d.worker.EnqueueAsync(func(ctx context.Context) error {
		return d.notificationSvc.NotifyOperator(ctx, contract.ID,
			"Contrato firmado",
			fmt.Sprintf("%s firmó el contrato #%d", audit.ClientName, contract.ID),
			models.NotificationTypeContractSigned)
	})

	logger.Info("Dispatched signed-contract notifications", "contract_id", contract.ID)
}
