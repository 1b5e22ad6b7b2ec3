package http

import (
	"net/http"

	"citypay/internal/auth"
	"citypay/internal/observability/metrics"
)

type exportFormat struct {
	name        string
	contentType string
	build       func(Statement) ([]byte, error)
}

var (
	formatCSV  = exportFormat{name: "csv", contentType: "text/csv", build: BuildStatementCSV}
	formatPDF  = exportFormat{name: "pdf", contentType: "application/pdf", build: BuildStatementPDF}
	formatXLSX = exportFormat{name: "xlsx", contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", build: BuildStatementXLSX}
)

func (h *Handler) export(format exportFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := h.now()
		user, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, allowed := resolveSubject(user, r.URL.Query().Get("userId"))
		if !allowed {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		list, err := h.transactions.ListTransactionsByUser(r.Context(), userID)
		if err != nil {
			h.metrics.ObserveStatementExport(format.name, metrics.ResultError, h.now().Sub(started))
			h.logger.WithError(err).WithField("user", userID).Error("statement query failed")
			writeError(w, http.StatusInternalServerError, "statement query failed")
			return
		}
		data, err := format.build(Statement{UserID: userID, GeneratedAt: started, Transactions: list})
		if err != nil {
			h.metrics.ObserveStatementExport(format.name, metrics.ResultError, h.now().Sub(started))
			h.logger.WithError(err).WithField("format", format.name).Error("statement render failed")
			writeError(w, http.StatusInternalServerError, "statement render failed")
			return
		}
		h.metrics.ObserveStatementExport(format.name, metrics.ResultSuccess, h.now().Sub(started))
		w.Header().Set("Content-Type", format.contentType)
		w.Header().Set("Content-Disposition", "attachment; filename=statement-"+userID+"."+format.name)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
