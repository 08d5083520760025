package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
	"github.com/sjperalta/eventra-api/internal/config"
	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/sjperalta/eventra-api/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

type EmailService struct {
	config       *config.Config
	resendClient *resend.Client
}

func NewEmailService(cfg *config.Config) *EmailService {
	client := resend.NewClient(cfg.ResendAPIKey)
	return &EmailService{
		config:       cfg,
		resendClient: client,
	}
}

// SendSigningLink emails the client the public URL of their signing page
func (s *EmailService) SendSigningLink(ctx context.Context, contract *models.Contract) error {
	if contract.PublicSlug == nil {
		return fmt.Errorf("contract %d has no public slug", contract.ID)
	}

	data := struct {
		Name       string
		EventType  string
		SigningURL string
	}{
		Name:       contract.ClientName,
		EventType:  contract.EventType,
		SigningURL: fmt.Sprintf("%s/sign/%s", s.config.PublicBaseURL, *contract.PublicSlug),
	}

	body, err := s.renderTemplate("signing_link.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{contract.ClientEmail},
		Subject: "Tu contrato está listo para firmar",
		Html:    body,
	}
	_, err = s.resendClient.Emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", contract.ClientEmail, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Tu contrato está listo para firmar", contract.ClientEmail))
	return nil
}

// SendSignedConfirmation emails the signer their copy of the signed contract
func (s *EmailService) SendSignedConfirmation(ctx context.Context, contract *models.Contract, audit models.SignatureAudit) error {
	data := struct {
		Name      string
		EventType string
		SignedAt  string
		AppURL    string
	}{
		Name:      audit.ClientName,
		EventType: contract.EventType,
		SignedAt:  audit.SignedAt.Format("02/01/2006 15:04"),
		AppURL:    s.config.PublicBaseURL,
	}

	body, err := s.renderTemplate("contract_signed_client.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{audit.ClientEmail},
		Subject: "Contrato firmado",
		Html:    body,
	}
	_, err = s.resendClient.Emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", audit.ClientEmail, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Contrato firmado", audit.ClientEmail))
	return nil
}

// SendSignedOperatorCopy emails the operator their copy of the signing evidence
func (s *EmailService) SendSignedOperatorCopy(ctx context.Context, contract *models.Contract, audit models.SignatureAudit) error {
	if s.config.OperatorEmail == "" {
		return nil
	}

	data := struct {
		ClientName  string
		ClientEmail string
		EventType   string
		SignedAt    string
		SignerIP    string
		UserAgent   string
		Timezone    string
	}{
		ClientName:  audit.ClientName,
		ClientEmail: audit.ClientEmail,
		EventType:   contract.EventType,
		SignedAt:    audit.SignedAt.Format("02/01/2006 15:04"),
		SignerIP:    audit.SignerIP,
		UserAgent:   audit.UserAgent,
		Timezone:    audit.Timezone,
	}

	body, err := s.renderTemplate("contract_signed_operator.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{s.config.OperatorEmail},
		Subject: fmt.Sprintf("Contrato #%d firmado por %s", contract.ID, audit.ClientName),
		Html:    body,
	}
	_, err = s.resendClient.Emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", s.config.OperatorEmail, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Contrato #%d firmado", s.config.OperatorEmail, contract.ID))
	return nil
}

// renderTemplate renders an embedded email template with the given data
func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email template %s: %w", name, err)
	}
	return buf.String(), nil
}
