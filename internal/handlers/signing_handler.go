package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/sjperalta/eventra-api/internal/services"
)

// SigningHandler serves the unauthenticated public signing page API. A
// contract is reached through its public slug (or legacy token); the
// handler captures the request attribution and threads it into the
// protocol explicitly.
type SigningHandler struct {
	signingService  *services.SigningService
	documentService *services.DocumentService
}

func NewSigningHandler(signingService *services.SigningService, documentService *services.DocumentService) *SigningHandler {
	return &SigningHandler{signingService: signingService, documentService: documentService}
}

// @Summary Show Contract for Signing
// @Description Resolve a contract by public slug or legacy token and return its signing snapshot
// @Tags Signing
// @Accept json
// @Produce json
// @Param public_id path string true "Public slug or legacy token"
// @Success 200 {object} models.PublicContractResponse
// @Failure 404 {object} map[string]string
// @Router /sign/{public_id} [get]
func (h *SigningHandler) Show(c *gin.Context) {
	contract, err := h.signingService.Resolve(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato no encontrado"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": contract.ToPublicResponse()})
}

// SavePreviewRequest is the body for saving a preview signature
type SavePreviewRequest struct {
	SignatureData string `json:"signature_data"`
	ClientName    string `json:"client_name"`
	ClientEmail   string `json:"client_email"`
}

// @Summary Save Preview Signature
// @Description Store the drawn signature and move the contract to draft_signed for review
// @Tags Signing
// @Accept json
// @Produce json
// @Param public_id path string true "Public slug or legacy token"
// @Param request body SavePreviewRequest true "Signature data"
// @Success 200 {object} models.PublicContractResponse
// @Failure 400,404,422 {object} map[string]string
// @Router /sign/{public_id}/signature [post]
func (h *SigningHandler) SavePreview(c *gin.Context) {
	contract, err := h.signingService.Resolve(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato no encontrado"})
		return
	}

	var req SavePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.signingService.SavePreview(c.Request.Context(), contract.ID, req.SignatureData, req.ClientName, req.ClientEmail)
	if err != nil {
		h.respondSigningError(c, contract.ID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contract": updated.ToPublicResponse(),
		"message":  "Firma guardada. Revisa el contrato antes de confirmar",
	})
}

// ConfirmRequest is the body for confirming a signature
type ConfirmRequest struct {
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	Timezone    string `json:"timezone"`
}

// @Summary Confirm Signature
// @Description Irreversibly bind the preview signature and audit evidence to the contract
// @Tags Signing
// @Accept json
// @Produce json
// @Param public_id path string true "Public slug or legacy token"
// @Param request body ConfirmRequest true "Signer identity and timezone"
// @Success 200 {object} models.PublicContractResponse
// @Failure 404,422 {object} map[string]string
// @Router /sign/{public_id}/confirm [post]
func (h *SigningHandler) Confirm(c *gin.Context) {
	contract, err := h.signingService.Resolve(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato no encontrado"})
		return
	}

	var req ConfirmRequest
	c.ShouldBindJSON(&req)

	clientCtx := models.ClientContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Timezone:  req.Timezone,
	}

	signed, err := h.signingService.ConfirmSignature(c.Request.Context(), contract.ID, req.ClientName, req.ClientEmail, clientCtx)
	if err != nil {
		h.respondSigningError(c, contract.ID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contract": signed.ToPublicResponse(),
		"message":  "Contrato firmado exitosamente",
	})
}

// @Summary Edit Signature
// @Description Discard the preview signature and reopen the contract for a fresh one
// @Tags Signing
// @Accept json
// @Produce json
// @Param public_id path string true "Public slug or legacy token"
// @Success 200 {object} models.PublicContractResponse
// @Failure 404,422 {object} map[string]string
// @Router /sign/{public_id}/edit [post]
func (h *SigningHandler) EditSignature(c *gin.Context) {
	contract, err := h.signingService.Resolve(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato no encontrado"})
		return
	}

	updated, err := h.signingService.EditSignature(c.Request.Context(), contract.ID)
	if err != nil {
		h.respondSigningError(c, contract.ID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contract": updated.ToPublicResponse(),
		"message":  "Firma descartada. Puedes dibujar una nueva",
	})
}

// @Summary Download Signed Contract
// @Description Download the rendered PDF of a signed contract
// @Tags Signing
// @Produce application/pdf
// @Param public_id path string true "Public slug or legacy token"
// @Success 200 {file} binary
// @Failure 404,422 {object} map[string]string
// @Router /sign/{public_id}/document [get]
func (h *SigningHandler) Document(c *gin.Context) {
	contract, err := h.signingService.Resolve(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato no encontrado"})
		return
	}

	buf, err := h.documentService.RenderSignedContract(c.Request.Context(), contract)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "El contrato aún no está firmado"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=contrato-%d.pdf", contract.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// respondSigningError maps protocol errors onto the public API. A benign
// double submission is not an error for the signer: they get the final
// signed snapshot back instead of a failure.
func (h *SigningHandler) respondSigningError(c *gin.Context, contractID uint, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato no encontrado"})
	case errors.Is(err, services.ErrMissingSignature), errors.Is(err, services.ErrMissingSigner):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadySigned):
		contract, ferr := h.signingService.Resolve(c.Request.Context(), c.Param("public_id"))
		if ferr == nil && contract.IsSigned() {
			c.JSON(http.StatusOK, gin.H{
				"contract":       contract.ToPublicResponse(),
				"already_signed": true,
				"message":        "El contrato ya fue firmado",
			})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "El contrato ya fue firmado"})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
