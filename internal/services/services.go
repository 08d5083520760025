package services

import (
	"github.com/sjperalta/eventra-api/internal/config"
	"github.com/sjperalta/eventra-api/internal/jobs"
	"github.com/sjperalta/eventra-api/internal/repository"
	"github.com/sjperalta/eventra-api/internal/storage"
	"gorm.io/gorm"
)

// Services holds all service instances
type Services struct {
	Contract     *ContractService
	Signing      *SigningService
	Notification *NotificationService
	Email        *EmailService
	Audit        *AuditService
	Document     *DocumentService
	Export       *ExportService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, store *storage.LocalStorage, cfg *config.Config, db *gorm.DB) *Services {
	notificationSvc := NewNotificationService(repos.Notification)
	emailSvc := NewEmailService(cfg)
	auditSvc := NewAuditService(db)

	dispatcher := NewSignedDispatcher(notificationSvc, emailSvc, worker)
	ipLookup := NewIPLookupService(cfg)

	return &Services{
		Contract:     NewContractService(repos.Contract, notificationSvc, emailSvc, auditSvc, worker),
		Signing:      NewSigningService(repos.Contract, store, ipLookup, dispatcher, auditSvc),
		Notification: notificationSvc,
		Email:        emailSvc,
		Audit:        auditSvc,
		Document:     NewDocumentService(store),
		Export:       NewExportService(),
	}
}
