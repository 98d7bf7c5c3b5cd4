package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/model"
	"github.com/schoolpaypro/ledger/internal/report"
	"github.com/schoolpaypro/ledger/internal/satellite"
)

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accts := h.ledger.Accounts()
	if t := r.URL.Query().Get("type"); t != "" {
		filtered := accts[:0]
		for _, a := range accts {
			if string(a.Type) == t {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	respondJSON(w, http.StatusOK, accts)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, ok := h.ledger.Account(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "account not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account":     a,
		"hasChildren": h.ledger.HasChildren(a.ID),
		"children":    h.ledger.Children(a.ID),
	})
}

func (h *Handler) NextCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.ledger.NextCode(chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"code": code})
}

type createAccountRequest struct {
	Code        string             `json:"code,omitempty"`
	Name        string             `json:"name"`
	Type        model.AccountType  `json:"type,omitempty"`
	Level       model.AccountLevel `json:"level,omitempty"`
	ParentID    string             `json:"parentId,omitempty"`
	IsMain      bool               `json:"isMain,omitempty"`
	Description string             `json:"description,omitempty"`
}

// CreateAccount adds an account. Without a code the next child code of the
// parent is generated.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	a := model.Account{
		Code:        req.Code,
		Name:        req.Name,
		Type:        req.Type,
		Level:       req.Level,
		ParentID:    req.ParentID,
		IsMain:      req.IsMain,
		Description: req.Description,
	}

	var (
		created model.Account
		err     error
	)
	if req.Code == "" && req.ParentID != "" {
		created, err = h.ledger.CreateChild(r.Context(), req.ParentID, a)
	} else {
		created, err = h.ledger.AddAccount(r.Context(), a)
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var p accounts.Patch
	if !decodeJSON(w, r, &p) {
		return
	}
	updated, err := h.ledger.UpdateAccount(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type postingsRequest struct {
	Postings []model.Posting `json:"postings"`
}

func (h *Handler) PostTransactions(w http.ResponseWriter, r *http.Request) {
	var req postingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Postings) == 0 {
		respondError(w, http.StatusBadRequest, "postings are required")
		return
	}
	if err := h.ledger.PostTransactions(r.Context(), req.Postings); err != nil {
		respondErr(w, r, err)
		return
	}

	touched := make([]model.Account, 0, len(req.Postings))
	seen := make(map[string]bool)
	for _, p := range req.Postings {
		if seen[p.AccountID] {
			continue
		}
		seen[p.AccountID] = true
		if a, ok := h.ledger.Account(p.AccountID); ok {
			touched = append(touched, a)
		}
	}
	respondJSON(w, http.StatusOK, touched)
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries := h.ledger.Entries()
	if s := r.URL.Query().Get("status"); s != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if string(e.Status) == strings.ToUpper(s) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	var e model.JournalEntry
	if !decodeJSON(w, r, &e) {
		return
	}
	added, err := h.ledger.RecordEntry(r.Context(), e)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, added)
}

type statusRequest struct {
	Status model.EntryStatus `json:"status"`
}

func (h *Handler) SetEntryStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.ledger.SetEntryStatus(r.Context(), chi.URLParam(r, "id"), model.EntryStatus(strings.ToUpper(string(req.Status))))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

type treasuryView struct {
	model.TreasuryAccount
	Code    string          `json:"code"`
	Balance decimal.Decimal `json:"balance"`
}

func (h *Handler) ListTreasury(w http.ResponseWriter, r *http.Request) {
	recs := h.satellite.Treasury()
	out := make([]treasuryView, 0, len(recs))
	for _, t := range recs {
		v := treasuryView{TreasuryAccount: t}
		if a, ok := h.ledger.Account(t.AccountID); ok {
			v.Code, v.Balance = a.Code, a.Balance
		}
		out = append(out, v)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) AddTreasury(w http.ResponseWriter, r *http.Request) {
	var in satellite.TreasuryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rec, err := h.satellite.AddTreasury(r.Context(), in)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (h *Handler) DeleteTreasury(w http.ResponseWriter, r *http.Request) {
	if err := h.satellite.DeleteTreasury(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type supplierView struct {
	model.SupplierAccount
	Code    string          `json:"code"`
	Balance decimal.Decimal `json:"balance"`
}

func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	recs := h.satellite.Suppliers()
	out := make([]supplierView, 0, len(recs))
	for _, s := range recs {
		v := supplierView{SupplierAccount: s}
		if a, ok := h.ledger.Account(s.AccountID); ok {
			v.Code, v.Balance = a.Code, a.Balance
		}
		out = append(out, v)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) AddSupplier(w http.ResponseWriter, r *http.Request) {
	var in satellite.SupplierInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rec, err := h.satellite.AddSupplier(r.Context(), in)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (h *Handler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := h.satellite.DeleteSupplier(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportRow struct {
	AccountID     string          `json:"accountId"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Depth         int             `json:"depth"`
	Effective     decimal.Decimal `json:"effective"`
	JournalDebit  decimal.Decimal `json:"journalDebit"`
	JournalCredit decimal.Decimal `json:"journalCredit"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Source        report.Source   `json:"source"`
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	rows := h.ledger.Report()
	out := make([]reportRow, len(rows))
	for i, row := range rows {
		out[i] = reportRow{
			AccountID:     row.Account.ID,
			Code:          row.Account.Code,
			Name:          row.Account.Name,
			Depth:         row.Depth,
			Effective:     row.Effective,
			JournalDebit:  row.JournalDebit,
			JournalCredit: row.JournalCredit,
			Debit:         row.Debit,
			Credit:        row.Credit,
			Source:        row.Source,
		}
	}
	total := report.Total(rows, nil)
	respondJSON(w, http.StatusOK, map[string]any{
		"fiscalYear": h.ledger.FiscalYear(),
		"rows":       out,
		"total":      map[string]decimal.Decimal{"debit": total.Debit, "credit": total.Credit},
	})
}

func (h *Handler) YearStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ledger.YearStatus(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"fiscalYear": h.ledger.FiscalYear(),
		"record":     rec,
	})
}

func (h *Handler) CloseYear(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		actor = "api"
	}
	rec, err := h.ledger.CloseYear(r.Context(), actor)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handler) ReopenYear(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.ReopenYear(r.Context()); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
