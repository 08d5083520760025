package statemachine

import (
	"context"
	"testing"

	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func previewedContract(status string) *models.Contract {
	path := "signatures/2026/01/sig.png"
	prior := status
	return &models.Contract{
		Status:                models.ContractStatusDraftSigned,
		PreviewSignaturePath:  &path,
		StatusBeforeSignature: &prior,
	}
}

func TestSignPreview_FromDraftAndSent(t *testing.T) {
	for _, status := range []string{models.ContractStatusDraft, models.ContractStatusSent} {
		contract := &models.Contract{Status: status}
		err := NewSigningFSM(contract).SignPreview(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, models.ContractStatusDraftSigned, contract.Status)
	}
}

func TestSignPreview_ReentryFromDraftSigned(t *testing.T) {
	contract := previewedContract(models.ContractStatusSent)
	err := NewSigningFSM(contract).SignPreview(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, models.ContractStatusDraftSigned, contract.Status)
}

func TestSignPreview_RejectedFromFinalStates(t *testing.T) {
	for _, status := range []string{models.ContractStatusSigned, models.ContractStatusCompleted, models.ContractStatusCancelled} {
		contract := &models.Contract{Status: status}
		err := NewSigningFSM(contract).SignPreview(context.Background())
		assert.Error(t, err, status)
		assert.Equal(t, status, contract.Status)
	}
}

func TestConfirm_RequiresPreviewSignature(t *testing.T) {
	contract := &models.Contract{Status: models.ContractStatusDraftSigned}
	err := NewSigningFSM(contract).Confirm(context.Background())
	assert.Error(t, err)

	contract = previewedContract(models.ContractStatusSent)
	err = NewSigningFSM(contract).Confirm(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, models.ContractStatusSigned, contract.Status)
}

func TestConfirm_IsIrreversible(t *testing.T) {
	contract := previewedContract(models.ContractStatusSent)
	sfsm := NewSigningFSM(contract)
	assert.NoError(t, sfsm.Confirm(context.Background()))

	// No event leaves signed other than complete
	assert.Error(t, NewSigningFSM(contract).SignPreview(context.Background()))
	assert.Error(t, NewSigningFSM(contract).EditSignature(context.Background()))
	assert.Error(t, NewSigningFSM(contract).Cancel(context.Background()))
	assert.Equal(t, models.ContractStatusSigned, contract.Status)
}

func TestEditSignature_RestoresPriorStatus(t *testing.T) {
	for _, prior := range []string{models.ContractStatusDraft, models.ContractStatusSent} {
		contract := previewedContract(prior)
		err := NewSigningFSM(contract).EditSignature(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, prior, contract.Status)
	}
}

func TestEditSignature_DefaultsToSentForLegacyRows(t *testing.T) {
	path := "signatures/2026/01/sig.png"
	contract := &models.Contract{
		Status:               models.ContractStatusDraftSigned,
		PreviewSignaturePath: &path,
	}
	err := NewSigningFSM(contract).EditSignature(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, models.ContractStatusSent, contract.Status)
}

func TestSendCompleteCancel(t *testing.T) {
	ctx := context.Background()

	contract := &models.Contract{Status: models.ContractStatusDraft}
	assert.NoError(t, NewSigningFSM(contract).Send(ctx))
	assert.Equal(t, models.ContractStatusSent, contract.Status)

	contract = &models.Contract{Status: models.ContractStatusSigned}
	assert.NoError(t, NewSigningFSM(contract).Complete(ctx))
	assert.Equal(t, models.ContractStatusCompleted, contract.Status)

	contract = &models.Contract{Status: models.ContractStatusSent}
	assert.NoError(t, NewSigningFSM(contract).Cancel(ctx))
	assert.Equal(t, models.ContractStatusCancelled, contract.Status)

	// A signed contract cannot be cancelled
	contract = &models.Contract{Status: models.ContractStatusSigned}
	assert.Error(t, NewSigningFSM(contract).Cancel(ctx))
}

func TestCan(t *testing.T) {
	contract := previewedContract(models.ContractStatusSent)
	sfsm := NewSigningFSM(contract)
	assert.True(t, sfsm.Can("confirm"))
	assert.True(t, sfsm.Can("edit_signature"))
	assert.False(t, sfsm.Can("send"))
	assert.Equal(t, models.ContractStatusDraftSigned, sfsm.Current())
}
