package http

import (
	"net/http"
	"strconv"

	"crm/internal/core"
	"crm/internal/log"
)

type createInvoiceRequest struct {
	ClientID  int64      `json:"client_id"`
	ProjectID *int64     `json:"project_id"`
	Amount    core.Money `json:"amount"`
	TaxAmount core.Money `json:"tax_amount"`
	IssueDate core.Date  `json:"issue_date"`
	DueDate   core.Date  `json:"due_date"`
	Notes     string     `json:"notes"`
}

type invoiceStatusRequest struct {
	Status   core.InvoiceStatus `json:"status"`
	PaidDate core.Date          `json:"paid_date"`
}

type generateInvoiceRequest struct {
	ProjectID    int64   `json:"project_id"`
	TimeEntryIDs []int64 `json:"time_entry_ids"`
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	clientID, err := ParseIDFilter(r.URL.Query(), "client_id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	items, err := s.store.ListInvoices(r.Context(), clientID)
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	inv, err := s.store.GetInvoice(r.Context(), id)
	respond(w, r, log.OpRead, inv, err)
}

// handleCreateInvoice stores a manually issued invoice. The total is always
// amount plus tax; dates default to today and today plus the due period.
func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}

	inv := core.Invoice{
		ClientID:    req.ClientID,
		ProjectID:   req.ProjectID,
		Amount:      req.Amount,
		TaxAmount:   req.TaxAmount,
		TotalAmount: req.Amount.Add(req.TaxAmount),
		Status:      core.InvoiceDraft,
		IssueDate:   req.IssueDate,
		DueDate:     req.DueDate,
		Notes:       sanitizeInput(req.Notes),
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = s.today()
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.AddDays(s.dueDays)
	}
	if err := inv.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}

	inv, err := s.store.CreateInvoice(r.Context(), inv)
	created(w, r, log.OpCreate, "/api/invoices", inv.ID, inv, err)
}

func (s *Server) handleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	var req invoiceStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	paidOn := req.PaidDate
	if paidOn.IsZero() {
		paidOn = s.today()
	}
	inv, err := s.store.TransitionInvoice(r.Context(), id, req.Status, paidOn)
	respond(w, r, log.OpTransition, inv, err)
}

func (s *Server) handleListUnbilled(w http.ResponseWriter, r *http.Request) {
	items, err := s.billing.ListUnbilledEntries(r.Context())
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleBillingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.billing.ComputeBillingStats(r.Context(), s.now())
	respond(w, r, log.OpRead, stats, err)
}

// handleGenerateInvoice bills the selected entries of one project. Alert
// invalidation happens inside the engine.
func (s *Server) handleGenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req generateInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	if req.ProjectID <= 0 {
		writeError(w, r, log.OpValidate, core.Invalid("project_id", core.ErrInvalidReference))
		return
	}

	inv, err := s.billing.GenerateInvoice(r.Context(), req.ProjectID, req.TimeEntryIDs)
	if err != nil {
		writeError(w, r, log.OpInvoice, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Location("/api/invoices/" + strconv.FormatInt(inv.ID, 10)).
		Data(inv).
		Write(w)
}

func (s *Server) handleRunBilling(w http.ResponseWriter, r *http.Request) {
	result, err := s.billing.RunAutomaticBilling(r.Context())
	if err != nil {
		writeError(w, r, log.OpInvoice, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		ErrorResponse(http.StatusServiceUnavailable, "unavailable", "alerts are not configured").Write(w)
		return
	}
	alerts, err := s.alerts.Current(r.Context(), s.now())
	if err == nil && alerts.Suggestions == nil {
		alerts.Suggestions = []string{}
	}
	respond(w, r, log.OpRead, alerts, err)
}
