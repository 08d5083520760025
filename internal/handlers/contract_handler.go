package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/eventra-api/internal/middleware"
	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/sjperalta/eventra-api/internal/repository"
	"github.com/sjperalta/eventra-api/internal/services"
)

type ContractHandler struct {
	contractService *services.ContractService
	documentService *services.DocumentService
	exportService   *services.ExportService
	auditService    *services.AuditService
}

func NewContractHandler(
	contractService *services.ContractService,
	documentService *services.DocumentService,
	exportService *services.ExportService,
	auditService *services.AuditService,
) *ContractHandler {
	return &ContractHandler{
		contractService: contractService,
		documentService: documentService,
		exportService:   exportService,
		auditService:    auditService,
	}
}

// @Summary List Contracts
// @Description Get a paginated list of contracts
// @Tags Contracts
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search_term query string false "Search term"
// @Param status query string false "Filter by status"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /contracts [get]
func (h *ContractHandler) Index(c *gin.Context) {
	query := &repository.ContractQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Status = c.Query("status")
	if statusIn := c.Query("status_in"); statusIn != "" {
		query.Filters["status_in"] = statusIn
	}
	if signedFrom := c.Query("signed_from"); signedFrom != "" {
		query.Filters["signed_from"] = signedFrom
	}
	if signedTo := c.Query("signed_to"); signedTo != "" {
		query.Filters["signed_to"] = signedTo
	}

	contracts, total, err := h.contractService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, contract := range contracts {
		responses = append(responses, contract.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"contracts": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Get Contract Stats
// @Description Get contract count statistics per status
// @Tags Contracts
// @Accept json
// @Produce json
// @Success 200 {object} repository.ContractStats
// @Security BearerAuth
// @Router /contracts/stats [get]
func (h *ContractHandler) GetStats(c *gin.Context) {
	stats, err := h.contractService.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Get Contract
// @Description Get a contract by ID
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} models.ContractResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /contracts/{id} [get]
func (h *ContractHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 32)
	contract, err := h.contractService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato no encontrado"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": contract.ToResponse()})
}

// CreateContractRequest is the body for creating a contract
type CreateContractRequest struct {
	QuoteRef    string  `json:"quote_ref"`
	ClientName  string  `json:"client_name"`
	ClientEmail string  `json:"client_email"`
	ClientPhone string  `json:"client_phone"`
	EventType   string  `json:"event_type"`
	EventDate   string  `json:"event_date"`
	Venue       string  `json:"venue"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Terms       string  `json:"terms"`
}

// @Summary Create Contract
// @Description Create a new draft contract for an event service
// @Tags Contracts
// @Accept json
// @Produce json
// @Param contract body CreateContractRequest true "Contract data"
// @Success 201 {object} models.ContractResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /contracts [post]
func (h *ContractHandler) Create(c *gin.Context) {
	var req CreateContractRequest
	if err := BindNestedOrFlat(c, "contract", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos inválidos: " + err.Error()})
		return
	}

	if req.ClientEmail != "" {
		if _, err := mail.ParseAddress(req.ClientEmail); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Correo del cliente inválido"})
			return
		}
	}

	contract := &models.Contract{
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		EventType:   req.EventType,
		Currency:    req.Currency,
	}
	if req.QuoteRef != "" {
		contract.QuoteRef = &req.QuoteRef
	}
	if req.Venue != "" {
		contract.Venue = &req.Venue
	}
	if req.Amount != 0 {
		contract.Amount = &req.Amount
	}
	if req.Terms != "" {
		contract.Terms = &req.Terms
	}
	if req.EventDate != "" {
		eventDate, err := time.Parse("2006-01-02", req.EventDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Fecha del evento inválida, usa YYYY-MM-DD"})
			return
		}
		contract.EventDate = &eventDate
	}

	if err := h.contractService.Create(c.Request.Context(), contract, middleware.GetOperatorEmail(c)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"contract": contract.ToResponse()})
}

// @Summary Send Contract
// @Description Send the signing link to the client and mark the contract as sent
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} models.ContractResponse
// @Failure 404,422 {object} map[string]string
// @Security BearerAuth
// @Router /contracts/{id}/send [post]
func (h *ContractHandler) Send(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 32)
	contract, err := h.contractService.Send(c.Request.Context(), uint(id), middleware.GetOperatorEmail(c))
	if err != nil {
		h.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contract": contract.ToResponse(),
		"message":  "Enlace de firma enviado al cliente",
	})
}

// @Summary Complete Contract
// @Description Mark a signed contract as completed after the event
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} models.ContractResponse
// @Failure 404,422 {object} map[string]string
// @Security BearerAuth
// @Router /contracts/{id}/complete [post]
func (h *ContractHandler) Complete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 32)
	contract, err := h.contractService.Complete(c.Request.Context(), uint(id), middleware.GetOperatorEmail(c))
	if err != nil {
		h.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": contract.ToResponse(), "message": "Contrato completado"})
}

// CancelContractRequest is the body for cancelling a contract
type CancelContractRequest struct {
	Note string `json:"note"`
}

// @Summary Cancel Contract
// @Description Cancel a contract that has not been signed
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Param request body CancelContractRequest false "Cancellation note"
// @Success 200 {object} models.ContractResponse
// @Failure 404,422 {object} map[string]string
// @Security BearerAuth
// @Router /contracts/{id}/cancel [post]
func (h *ContractHandler) Cancel(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 32)

	var req CancelContractRequest
	c.ShouldBindJSON(&req)

	contract, err := h.contractService.Cancel(c.Request.Context(), uint(id), req.Note, middleware.GetOperatorEmail(c))
	if err != nil {
		h.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": contract.ToResponse(), "message": "Contrato cancelado"})
}

// @Summary Export Contracts
// @Description Download the contract list as an XLSX file
// @Tags Contracts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /contracts/export [get]
func (h *ContractHandler) Export(c *gin.Context) {
	query := &repository.ContractQuery{ListQuery: repository.NewListQuery()}
	query.PerPage = 10000
	query.Status = c.Query("status")

	contracts, _, err := h.contractService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	buf, err := h.exportService.ContractsXLSX(c.Request.Context(), contracts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("contratos-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// @Summary Download Audit Certificate
// @Description Download the signing evidence certificate for a signed contract
// @Tags Contracts
// @Produce application/pdf
// @Param id path int true "Contract ID"
// @Success 200 {file} binary
// @Failure 404,422 {object} map[string]string
// @Security BearerAuth
// @Router /contracts/{id}/certificate [get]
func (h *ContractHandler) Certificate(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 32)
	contract, err := h.contractService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato no encontrado"})
		return
	}

	buf, err := h.documentService.GenerateAuditCertificate(c.Request.Context(), contract)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "El contrato aún no está firmado"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=certificado-%d.pdf", contract.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// @Summary Contract Audit Trail
// @Description List the audit log entries recorded for a contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /contracts/{id}/audit [get]
func (h *ContractHandler) AuditTrail(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 32)
	logs, err := h.auditService.ListByContract(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}

func (h *ContractHandler) respondLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato no encontrado"})
	case errors.Is(err, services.ErrAlreadySigned):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "El contrato ya fue firmado"})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
