package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	ledger "citypay/internal/ledger/domain"
)

// Statement is a user's transaction history prepared for export.
type Statement struct {
	UserID       string
	GeneratedAt  time.Time
	Transactions []ledger.Transaction
}

// Totals sums completed fiat and crypto payments.
func (s Statement) Totals() (fiat, crypto decimal.Decimal) {
	fiat, crypto = decimal.Zero, decimal.Zero
	for _, tx := range s.Transactions {
		if tx.Status != ledger.StatusCompleted {
			continue
		}
		if tx.PaymentType == ledger.PaymentTypeCrypto {
			crypto = crypto.Add(tx.Amount)
		} else {
			fiat = fiat.Add(tx.Amount)
		}
	}
	return fiat, crypto
}

var statementColumns = []string{"ID", "Time", "Type", "Service", "Amount", "Status", "Network", "Reference"}

func statementRow(tx ledger.Transaction) []string {
	return []string{
		tx.ID,
		tx.Timestamp.UTC().Format(time.RFC3339),
		string(tx.PaymentType),
		string(tx.ServiceType),
		tx.AmountString(),
		string(tx.Status),
		tx.CryptoNetwork,
		tx.TransactionHash,
	}
}

// BuildStatementCSV renders the statement as CSV with a header row.
func BuildStatementCSV(stmt Statement) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(statementColumns); err != nil {
		return nil, err
	}
	for _, tx := range stmt.Transactions {
		if err := w.Write(statementRow(tx)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementPDF renders a minimal PDF for a statement.
func BuildStatementPDF(stmt Statement) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	fiat, crypto := stmt.Totals()
	pdf.Cell(0, 8, "Payment Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("User: %s", stmt.UserID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", stmt.GeneratedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Completed fiat: %s", fiat.StringFixed(ledger.FiatScale)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Completed crypto: %s", crypto.StringFixed(ledger.CryptoScale)))
	pdf.Ln(8)

	widths := []float64{62, 40, 18, 32, 28, 26, 22, 50}
	pdf.SetFont("Arial", "B", 8)
	for i, title := range statementColumns {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for _, tx := range stmt.Transactions {
		for i, value := range statementRow(tx) {
			align := "L"
			if i == 4 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, truncate(value, 36), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementXLSX renders the statement as a workbook with summary and items sheets.
func BuildStatementXLSX(stmt Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	itemsSheet := "transactions"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	fiat, crypto := stmt.Totals()
	_ = f.SetCellValue(summarySheet, "A1", "Payment Statement")
	_ = f.SetCellValue(summarySheet, "A3", "User")
	_ = f.SetCellValue(summarySheet, "B3", stmt.UserID)
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", stmt.GeneratedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Transactions")
	_ = f.SetCellValue(summarySheet, "B5", len(stmt.Transactions))
	_ = f.SetCellValue(summarySheet, "A6", "Completed fiat")
	_ = f.SetCellValue(summarySheet, "B6", fiat.StringFixed(ledger.FiatScale))
	_ = f.SetCellValue(summarySheet, "A7", "Completed crypto")
	_ = f.SetCellValue(summarySheet, "B7", crypto.StringFixed(ledger.CryptoScale))

	for i, title := range statementColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(itemsSheet, cell, title)
	}
	for r, tx := range stmt.Transactions {
		for c, value := range statementRow(tx) {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(itemsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
