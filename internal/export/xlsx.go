package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"invoicedesk/internal/models"
)

const (
	invoiceSheet  = "Invoices"
	lineItemSheet = "Line Items"

	// ContentType is the media type of the workbook bytes.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var invoiceHeaders = []string{
	"Invoice ID",
	"Vendor",
	"Vendor Tax ID",
	"Invoice Number",
	"Invoice Date",
	"Currency",
	"Subtotal",
	"Tax %",
	"Total",
	"PO Number",
	"PO Date",
	"File Name",
	"Created At",
}

var lineItemHeaders = []string{
	"Invoice ID",
	"Invoice Number",
	"Description",
	"Unit Price",
	"Quantity",
	"Total",
}

// InvoicesXLSX renders records as a workbook with one sheet of invoices and one of their line items.
// Row order follows the input.
func InvoicesXLSX(records []models.InvoiceRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1"; rename it instead of leaving an empty sheet behind.
	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(lineItemSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(invoiceSheet)
	f.SetActiveSheet(activeIndex)

	if err := writeRow(f, invoiceSheet, 1, toAny(invoiceHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, lineItemSheet, 1, toAny(lineItemHeaders)); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, rec := range records {
		id := rec.ID.Hex()
		d := rec.InvoiceDetails
		err := writeRow(f, invoiceSheet, i+2, []any{
			id,
			rec.Vendor.Name,
			rec.Vendor.TaxID,
			d.Number,
			d.Date,
			d.Currency,
			d.Subtotal,
			d.TaxPercent,
			d.Total,
			d.PoNumber,
			d.PoDate,
			rec.FileName,
			rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
		if err != nil {
			return nil, err
		}

		for _, li := range rec.LineItems {
			if err := writeRow(f, lineItemSheet, itemRow, []any{
				id, d.Number, li.Description, li.UnitPrice, li.Quantity, li.Total,
			}); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	_ = f.SetColWidth(invoiceSheet, "A", "A", 26)
	_ = f.SetColWidth(invoiceSheet, "B", "C", 28)
	_ = f.SetColWidth(invoiceSheet, "D", "F", 14)
	_ = f.SetColWidth(invoiceSheet, "G", "I", 12)
	_ = f.SetColWidth(invoiceSheet, "J", "K", 14)
	_ = f.SetColWidth(invoiceSheet, "L", "M", 24)
	_ = f.SetColWidth(lineItemSheet, "A", "B", 26)
	_ = f.SetColWidth(lineItemSheet, "C", "C", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
