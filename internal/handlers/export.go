package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"expense-ledger/internal/export"
	"expense-ledger/internal/models"
)

// ExportCSV downloads the selected period as CSV.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", export.ContentTypeCSV, export.WriteCSV)
}

// ExportXLSX downloads the selected period as an Excel workbook.
func (h *Handlers) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", export.ContentTypeXLSX, export.WriteXLSX)
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, []models.Expense) error) {
	f := exportFilter(r.URL.Query())
	expenses, err := h.ledger.GetExpenses(r.Context(), GetUserFromContext(r).Username, f)
	if err != nil {
		h.serverError(w, r, "list expenses", err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, expenses); err != nil {
		h.serverError(w, r, "export "+ext, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(f, ext)))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger(r).Warn("export write failed", "error", err)
	}
}
