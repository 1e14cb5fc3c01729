// Package export writes ledger entries as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"expense-ledger/internal/models"
	"expense-ledger/internal/report"

	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// SheetName is the worksheet holding exported entries.
	SheetName = "Expenses"

	timestampLayout = "2006-01-02 15:04:05"
)

// utf8BOM lets spreadsheet software detect the encoding of CSV files.
const utf8BOM = "\xEF\xBB\xBF"

var headers = []string{"ID", "Date", "Category", "Description", "Amount", "Timestamp"}

// formulaPrefixes start a formula when a spreadsheet opens the cell.
const formulaPrefixes = "=+-@\t\r"

// plainText quotes user text that a spreadsheet would evaluate.
func plainText(s string) string {
	if s != "" && strings.ContainsRune(formulaPrefixes, rune(s[0])) {
		return "'" + s
	}
	return s
}

func row(e models.Expense) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.DateString(),
		string(e.Category),
		plainText(e.Description),
		e.Amount.StringFixed(2),
		e.Timestamp.UTC().Format(timestampLayout),
	}
}

// WriteCSV writes expenses to w with a header row.
func WriteCSV(w io.Writer, expenses []models.Expense) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, e := range expenses {
		if err := cw.Write(row(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes expenses to w as a workbook with a single sheet, a
// styled header and a totals row.
func WriteXLSX(w io.Writer, expenses []models.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", SheetName)

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return err
	}
	dataStyle, err := f.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{Border: border, NumFmt: 4})
	if err != nil {
		return err
	}
	totalStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Border: border,
		NumFmt: 4,
	})
	if err != nil {
		return err
	}

	widths := map[string]float64{"A": 8, "B": 12, "C": 16, "D": 36, "E": 14, "F": 20}
	for col, width := range widths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return err
		}
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "F1", headerStyle); err != nil {
		return err
	}

	for i, e := range expenses {
		r := i + 2
		values := []any{
			e.ID,
			e.DateString(),
			string(e.Category),
			plainText(e.Description),
			e.Amount.InexactFloat64(),
			e.Timestamp.UTC().Format(timestampLayout),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("A%d", r), fmt.Sprintf("F%d", r), dataStyle); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("E%d", r), fmt.Sprintf("E%d", r), amountStyle); err != nil {
			return err
		}
	}

	totalRow := len(expenses) + 2
	cells := map[string]any{
		fmt.Sprintf("A%d", totalRow): "Total",
		fmt.Sprintf("D%d", totalRow): fmt.Sprintf("%d entries", len(expenses)),
		fmt.Sprintf("E%d", totalRow): report.Total(expenses).InexactFloat64(),
	}
	for cell, v := range cells {
		if err := f.SetCellValue(SheetName, cell, v); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetName, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("F%d", totalRow), totalStyle); err != nil {
		return err
	}

	return f.Write(w)
}

// Filename names a download for the period selected by f.
func Filename(f models.Filter, ext string) string {
	switch {
	case f.HasMonth():
		return fmt.Sprintf("expenses_%04d-%02d.%s", f.Year, f.Month, ext)
	case f.HasYear():
		return fmt.Sprintf("expenses_%04d.%s", f.Year, ext)
	default:
		return "expenses_all." + ext
	}
}
