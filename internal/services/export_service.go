package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sjperalta/eventra-api/internal/models"
	"github.com/xuri/excelize/v2"
)

// ExportService builds spreadsheet exports of the contract book
type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

// ContractsXLSX renders the given contracts, including their signing
// evidence columns, into an Excel workbook.
func (s *ExportService) ContractsXLSX(ctx context.Context, contracts []models.Contract) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Contratos"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
	})

	headers := []string{"ID", "Cliente", "Correo", "Evento", "Monto", "Moneda", "Estado", "Enviado", "Firmado", "IP del firmante", "Dispositivo"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetCellStyle(sheet, "A1", "K1", headerStyle)

	for row, c := range contracts {
		values := make([]interface{}, len(headers))
		values[0] = c.ID
		values[1] = c.ClientName
		values[2] = c.ClientEmail
		values[3] = c.EventType
		if c.Amount != nil {
			values[4] = *c.Amount
		}
		values[5] = c.Currency
		values[6] = c.Status
		if c.SentAt != nil {
			values[7] = c.SentAt.Format("2006-01-02 15:04")
		}
		if c.SignedAt != nil {
			values[8] = c.SignedAt.Format("2006-01-02 15:04")
		}
		if c.AuditPayload != nil {
			values[9] = c.AuditPayload.SignerIP
			values[10] = c.AuditPayload.UserAgent
		}

		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
