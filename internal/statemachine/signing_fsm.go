package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/eventra-api/internal/models"
)

// SigningFSM wraps a contract with its signing state machine
type SigningFSM struct {
	contract *models.Contract
	fsm      *fsm.FSM
}

// NewSigningFSM creates the state machine for a contract. The destination
// of edit_signature is fixed per instance: it is the status the contract
// held before the preview was drawn.
func NewSigningFSM(contract *models.Contract) *SigningFSM {
	sfsm := &SigningFSM{
		contract: contract,
	}

	sfsm.fsm = fsm.NewFSM(
		contract.Status,
		fsm.Events{
			// draft/sent → draft_signed; re-entry replaces the preview signature
			{Name: "sign_preview", Src: []string{models.ContractStatusDraft, models.ContractStatusSent, models.ContractStatusDraftSigned}, Dst: models.ContractStatusDraftSigned},

			// draft_signed → signed (irreversible)
			{Name: "confirm", Src: []string{models.ContractStatusDraftSigned}, Dst: models.ContractStatusSigned},

			// draft_signed → pre-preview status ("edit signature")
			{Name: "edit_signature", Src: []string{models.ContractStatusDraftSigned}, Dst: contract.PriorStatus()},

			// draft → sent
			{Name: "send", Src: []string{models.ContractStatusDraft}, Dst: models.ContractStatusSent},

			// signed → completed
			{Name: "complete", Src: []string{models.ContractStatusSigned}, Dst: models.ContractStatusCompleted},

			// draft/sent/draft_signed → cancelled
			{Name: "cancel", Src: []string{models.ContractStatusDraft, models.ContractStatusSent, models.ContractStatusDraftSigned}, Dst: models.ContractStatusCancelled},
		},
		fsm.Callbacks{},
	)

	return sfsm
}

// SignPreview transitions the contract to draft_signed
func (s *SigningFSM) SignPreview(ctx context.Context) error {
	if !s.contract.MaySignPreview() {
		return fmt.Errorf("contract cannot enter signature preview in current state: %s", s.contract.Status)
	}

	if err := s.fsm.Event(ctx, "sign_preview"); err != nil {
		return fmt.Errorf("failed to save signature preview: %w", err)
	}

	s.contract.Status = s.fsm.Current()
	return nil
}

// Confirm transitions the contract to signed
func (s *SigningFSM) Confirm(ctx context.Context) error {
	if !s.contract.MayConfirm() {
		return fmt.Errorf("contract cannot be confirmed in current state: %s", s.contract.Status)
	}

	if err := s.fsm.Event(ctx, "confirm"); err != nil {
		return fmt.Errorf("failed to confirm signature: %w", err)
	}

	s.contract.Status = s.fsm.Current()
	return nil
}

// EditSignature returns the contract to its pre-preview status
func (s *SigningFSM) EditSignature(ctx context.Context) error {
	if !s.contract.MayEditSignature() {
		return fmt.Errorf("contract signature cannot be edited in current state: %s", s.contract.Status)
	}

	if err := s.fsm.Event(ctx, "edit_signature"); err != nil {
		return fmt.Errorf("failed to edit signature: %w", err)
	}

	s.contract.Status = s.fsm.Current()
	return nil
}

// Send transitions the contract to sent
func (s *SigningFSM) Send(ctx context.Context) error {
	if !s.contract.MaySend() {
		return fmt.Errorf("contract cannot be sent in current state: %s", s.contract.Status)
	}

	if err := s.fsm.Event(ctx, "send"); err != nil {
		return fmt.Errorf("failed to send contract: %w", err)
	}

	s.contract.Status = s.fsm.Current()
	return nil
}

// Complete transitions the contract to completed
func (s *SigningFSM) Complete(ctx context.Context) error {
	if !s.contract.MayComplete() {
		return fmt.Errorf("contract cannot be completed in current state: %s", s.contract.Status)
	}

	if err := s.fsm.Event(ctx, "complete"); err != nil {
		return fmt.Errorf("failed to complete contract: %w", err)
	}

	s.contract.Status = s.fsm.Current()
	return nil
}

// Cancel transitions the contract to cancelled
func (s *SigningFSM) Cancel(ctx context.Context) error {
	if !s.contract.MayCancel() {
		return fmt.Errorf("contract cannot be cancelled in current state: %s", s.contract.Status)
	}

	if err := s.fsm.Event(ctx, "cancel"); err != nil {
		return fmt.Errorf("failed to cancel contract: %w", err)
	}

	s.contract.Status = s.fsm.Current()
	return nil
}

// Current returns the current state
func (s *SigningFSM) Current() string {
	return s.fsm.Current()
}

// Can checks if a transition is possible
func (s *SigningFSM) Can(event string) bool {
	return s.fsm.Can(event)
}
