package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dormbill/internal/auth"
	"dormbill/internal/core"
	"dormbill/internal/export"
	"dormbill/internal/log"
)

func (s *Server) present() presenter {
	return presenter{symbol: s.opts.CurrencySymbol, now: s.opts.Now()}
}

func (s *Server) handleListMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"methods": s.svc.Payments.Methods()})
}

func (s *Server) handleListDormers(w http.ResponseWriter, r *http.Request) {
	dormers, err := s.svc.Ledgers.ListDormers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := s.present()
	out := make([]dormerJSON, 0, len(dormers))
	for _, d := range dormers {
		out = append(out, p.dormer(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"dormers": out})
}

func (s *Server) handleCreateDormer(w http.ResponseWriter, r *http.Request) {
	var req createDormerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Ledgers.CreateDormer(r.Context(), core.Dormer{Name: req.Name, Email: req.Email, Room: req.Room})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/dormers/"+d.ID)
	writeJSON(w, http.StatusCreated, s.present().dormer(d))
}

func (s *Server) handleGetDormer(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Ledgers.GetDormer(r.Context(), chi.URLParam(r, "dormerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.present().dormer(d))
}

func (s *Server) handleListLedgers(w http.ResponseWriter, r *http.Request) {
	var kind core.LedgerKind
	if q := strings.TrimSpace(r.URL.Query().Get("kind")); q != "" {
		k, err := core.ParseKind(q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		kind = k
	}
	ledgers, err := s.svc.Ledgers.ListLedgers(r.Context(), chi.URLParam(r, "dormerID"), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := s.present()
	out := make([]ledgerJSON, 0, len(ledgers))
	for _, l := range ledgers {
		out = append(out, p.ledger(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ledgers": out})
}

func (s *Server) handleCreateLedger(w http.ResponseWriter, r *http.Request) {
	var req createLedgerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	spec, err := req.spec(chi.URLParam(r, "dormerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.svc.Ledgers.CreateLedger(r.Context(), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/ledgers/"+l.ID)
	writeJSON(w, http.StatusCreated, s.present().ledger(l))
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	l, err := s.svc.Ledgers.GetLedger(r.Context(), chi.URLParam(r, "ledgerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.present().ledger(l))
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.svc.Ledgers.ListPayments(r.Context(), chi.URLParam(r, "ledgerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := s.present()
	out := make([]paymentJSON, 0, len(payments))
	for _, pay := range payments {
		out = append(out, p.payment(pay))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": out})
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	actor, _ := auth.ActorFrom(r.Context())

	res, err := s.svc.Payments.RecordPayment(r.Context(), chi.URLParam(r, "ledgerID"), in, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Payment accepted",
		log.FieldPaymentID, res.Payment.ID,
		log.FieldStatus, string(res.Status))

	p := s.present()
	writeJSON(w, http.StatusCreated, paymentResultJSON{
		Payment: p.payment(res.Payment),
		Ledger:  p.ledger(res.Ledger),
	})
}

func (s *Server) handleDormerSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summaries.Summarize(r.Context(), chi.URLParam(r, "dormerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.present().dormerSummary(sum))
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	all, err := s.svc.Summaries.SummarizeAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := s.present()
	out := make([]dormerSummaryJSON, 0, len(all))
	for _, ds := range all {
		out = append(out, p.dormerSummary(ds))
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": out})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	dormerID := chi.URLParam(r, "dormerID")
	ledgers, err := s.svc.Ledgers.ListLedgers(r.Context(), dormerID, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="dormer-%s.csv"`, dormerID))
	rows := export.LedgerRows(ledgers, s.opts.Now())
	if err := export.NewCSVWriter(w).WriteRows(r.Context(), export.LedgerHeader, rows); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "CSV export failed",
			log.FieldDormerID, dormerID,
			log.FieldError, err)
	}
}
