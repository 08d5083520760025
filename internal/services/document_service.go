package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/jung-kurt/gofpdf"
	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/sjperalta/eventra-api/internal/storage"
)

//go:embed templates/documents/*.html
var documentTemplates embed.FS

// DocumentService renders a signed contract and its audit payload into
// durable document representations.
type DocumentService struct {
	storage *storage.LocalStorage
}

func NewDocumentService(store *storage.LocalStorage) *DocumentService {
	return &DocumentService{storage: store}
}

// RenderSignedContract produces the signed contract PDF: the bound contract
// fields, the drawn signature image, and the evidence footer.
func (s *DocumentService) RenderSignedContract(ctx context.Context, contract *models.Contract) (*bytes.Buffer, error) {
	if !contract.IsSigned() || contract.AuditPayload == nil {
		return nil, fmt.Errorf("%w: el contrato no está firmado", ErrInvalidState)
	}
	audit := contract.AuditPayload

	data := struct {
		ClientName     string
		ClientEmail    string
		EventType      string
		EventDate      string
		Venue          *string
		Amount         *float64
		Currency       string
		Terms          *string
		SignatureImage template.URL
		SignedAt       string
		SignerIP       string
		UserAgent      string
		Timezone       string
	}{
		ClientName:  audit.ClientName,
		ClientEmail: audit.ClientEmail,
		EventType:   contract.EventType,
		Venue:       contract.Venue,
		Amount:      contract.Amount,
		Currency:    contract.Currency,
		Terms:       contract.Terms,
		SignedAt:    audit.SignedAt.Format("02/01/2006 15:04 MST"),
		SignerIP:    audit.SignerIP,
		UserAgent:   audit.UserAgent,
		Timezone:    audit.Timezone,
	}
	if contract.EventDate != nil {
		data.EventDate = contract.EventDate.Format("02/01/2006")
	}

	// Inline the signature image so the PDF does not depend on storage paths
	if img, err := s.inlineSignature(audit.SignatureRef); err == nil {
		data.SignatureImage = img
	}

	tmpl, err := template.ParseFS(documentTemplates, "templates/documents/contract.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute contract template: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(buf.Bytes()))
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create pdf: %w", err)
	}

	return pdfg.Buffer(), nil
}

// GenerateAuditCertificate produces a one-page evidence certificate for a
// signed contract: signer identity, address, device, timezone, timestamps.
func (s *DocumentService) GenerateAuditCertificate(ctx context.Context, contract *models.Contract) (*bytes.Buffer, error) {
	if !contract.IsSigned() || contract.AuditPayload == nil {
		return nil, fmt.Errorf("%w: el contrato no está firmado", ErrInvalidState)
	}
	audit := contract.AuditPayload

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Certificado de Firma Electrónica")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Contrato #%d — %s", contract.ID, contract.EventType))
	pdf.Ln(10)

	rows := [][2]string{
		{"Firmante", fmt.Sprintf("%s <%s>", audit.ClientName, audit.ClientEmail)},
		{"Fecha de firma", audit.SignedAt.Format(time.RFC3339)},
		{"Dirección IP", audit.SignerIP},
		{"Dispositivo", audit.UserAgent},
		{"Zona horaria", audit.Timezone},
		{"Referencia de firma", audit.SignatureRef},
		{"Certificado emitido", time.Now().UTC().Format(time.RFC3339)},
	}

	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(45, 7, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(145, 7, row[1], "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4, "Este certificado resume la evidencia capturada en el momento de la confirmación de la firma. El contenido del contrato y su evidencia no pueden modificarse después de la firma.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	return &buf, nil
}

// inlineSignature reads the stored signature image and returns it as a
// base64 data URL for embedding
func (s *DocumentService) inlineSignature(ref string) (template.URL, error) {
	f, err := s.storage.Download(ref)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}

	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(data)), nil
}
