package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sjperalta/eventra-api/internal/jobs"
	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/sjperalta/eventra-api/internal/repository"
	"github.com/sjperalta/eventra-api/internal/statemachine"
)

// ContractService handles the contract lifecycle around the signing core:
// creation from a quote, dispatch to the client, completion and cancellation.
type ContractService struct {
	repo            repository.ContractRepository
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	worker          *jobs.Worker
}

func NewContractService(
	repo repository.ContractRepository,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	worker *jobs.Worker,
) *ContractService {
	return &ContractService{
		repo:            repo,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		worker:          worker,
	}
}

// FindByID gets a contract by ID
func (s *ContractService) FindByID(ctx context.Context, id uint) (*models.Contract, error) {
	contract, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return contract, nil
}

func (s *ContractService) List(ctx context.Context, query *repository.ContractQuery) ([]models.Contract, int64, error) {
	return s.repo.List(ctx, query)
}

func (s *ContractService) GetStats(ctx context.Context) (*repository.ContractStats, error) {
	return s.repo.GetStats(ctx)
}

// Create stores a new draft contract and assigns both public access keys
func (s *ContractService) Create(ctx context.Context, contract *models.Contract, actor string) error {
	if contract.ClientName == "" || contract.ClientEmail == "" {
		return ErrMissingSigner
	}

	slug := uuid.NewString()
	token := uuid.NewString()
	contract.PublicSlug = &slug
	contract.PublicToken = &token
	contract.Status = models.ContractStatusDraft

	if err := s.repo.Create(ctx, contract); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actor, "CREATE", "Contract", contract.ID,
		fmt.Sprintf("Contrato creado para %s (%s)", contract.ClientName, contract.EventType), "", "")

	return nil
}

// Send dispatches the signing link to the client and marks the contract sent
func (s *ContractService) Send(ctx context.Context, id uint, actor string) (*models.Contract, error) {
	contract, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}

	fsm := statemachine.NewSigningFSM(contract)
	if err := fsm.Send(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, err)
	}

	now := time.Now()
	contract.SentAt = &now

	if err := s.repo.Update(ctx, contract); err != nil {
		return nil, err
	}

	// Email delivery is best-effort; the contract is sent either way.
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.emailSvc.SendSigningLink(ctx, contract)
	})
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.NotifyOperator(ctx, contract.ID,
			"Contrato enviado",
			fmt.Sprintf("Contrato #%d enviado a %s", contract.ID, contract.ClientEmail),
			models.NotificationTypeContractSent)
	})

	s.auditSvc.Log(ctx, actor, "SEND", "Contract", contract.ID,
		fmt.Sprintf("Contrato enviado a %s", contract.ClientEmail), "", "")

	return contract, nil
}

// Complete marks a signed contract as completed (event delivered)
func (s *ContractService) Complete(ctx context.Context, id uint, actor string) (*models.Contract, error) {
	contract, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}

	fsm := statemachine.NewSigningFSM(contract)
	if err := fsm.Complete(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, err)
	}

	if err := s.repo.Update(ctx, contract); err != nil {
		return nil, err
	}

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.NotifyOperator(ctx, contract.ID,
			"Contrato completado",
			fmt.Sprintf("Contrato #%d marcado como completado", contract.ID),
			models.NotificationTypeContractCompleted)
	})

	s.auditSvc.Log(ctx, actor, "COMPLETE", "Contract", contract.ID, "Contrato completado", "", "")

	return contract, nil
}

// Cancel cancels a contract that has not been signed
func (s *ContractService) Cancel(ctx context.Context, id uint, note, actor string) (*models.Contract, error) {
	contract, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}

	fsm := statemachine.NewSigningFSM(contract)
	if err := fsm.Cancel(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, err)
	}

	// A cancelled contract keeps no pending preview.
	contract.PreviewSignaturePath = nil
	contract.SignatureDrawnAt = nil
	contract.StatusBeforeSignature = nil

	if err := s.repo.Update(ctx, contract); err != nil {
		return nil, err
	}

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.NotifyOperator(ctx, contract.ID,
			"Contrato cancelado",
			fmt.Sprintf("Contrato #%d cancelado. Nota: %s", contract.ID, note),
			models.NotificationTypeContractCancelled)
	})

	s.auditSvc.Log(ctx, actor, "CANCEL", "Contract", contract.ID,
		fmt.Sprintf("Contrato cancelado. Nota: %s", note), "", "")

	return contract, nil
}
