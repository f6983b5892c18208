package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"crm/internal/core"
	"crm/internal/log"
	"crm/internal/middleware/ratelimit"
	"crm/internal/middleware/security"
	"crm/internal/middleware/trace"
)

// Store is the persistence surface the API exposes.
type Store interface {
	Ping(ctx context.Context) error

	CreateClient(ctx context.Context, c core.Client) (core.Client, error)
	GetClient(ctx context.Context, id int64) (core.Client, error)
	ListClients(ctx context.Context) ([]core.Client, error)
	UpdateClient(ctx context.Context, c core.Client) (core.Client, error)
	DeleteClient(ctx context.Context, id int64) error

	CreateContact(ctx context.Context, c core.Contact) (core.Contact, error)
	ListContacts(ctx context.Context, clientID int64) ([]core.Contact, error)
	DeleteContact(ctx context.Context, id int64) error

	CreateProject(ctx context.Context, p core.Project) (core.Project, error)
	GetProject(ctx context.Context, id int64) (core.Project, error)
	ListProjects(ctx context.Context, clientID int64) ([]core.Project, error)
	UpdateProject(ctx context.Context, p core.Project) (core.Project, error)
	DeleteProject(ctx context.Context, id int64) error

	CreateTask(ctx context.Context, t core.Task) (core.Task, error)
	GetTask(ctx context.Context, id int64) (core.Task, error)
	ListTasks(ctx context.Context, projectID int64) ([]core.Task, error)
	UpdateTask(ctx context.Context, t core.Task) (core.Task, error)
	DeleteTask(ctx context.Context, id int64) error

	CreateTimeEntry(ctx context.Context, e core.TimeEntry) (core.TimeEntry, error)
	GetTimeEntry(ctx context.Context, id int64) (core.TimeEntry, error)
	ListTimeEntries(ctx context.Context, projectID int64) ([]core.TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, id int64) error

	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListExpenses(ctx context.Context, projectID int64) ([]core.Expense, error)

	CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
	GetInvoice(ctx context.Context, id int64) (core.Invoice, error)
	ListInvoices(ctx context.Context, clientID int64) ([]core.Invoice, error)
	TransitionInvoice(ctx context.Context, id int64, next core.InvoiceStatus, paidOn core.Date) (core.Invoice, error)

	CreateContract(ctx context.Context, c core.Contract) (core.Contract, error)
	GetContract(ctx context.Context, id int64) (core.Contract, error)
	ListContracts(ctx context.Context, clientID int64) ([]core.Contract, error)
	UpdateContract(ctx context.Context, c core.Contract) (core.Contract, error)
	DeleteContract(ctx context.Context, id int64) error

	CreateAutomationRule(ctx context.Context, rule core.AutomationRule) (core.AutomationRule, error)
	ListAutomationRules(ctx context.Context) ([]core.AutomationRule, error)
	DeleteAutomationRule(ctx context.Context, id int64) error

	ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]core.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Billing is the billing engine as seen by the API.
type Billing interface {
	ListUnbilledEntries(ctx context.Context) ([]core.UnbilledEntry, error)
	ComputeBillingStats(ctx context.Context, now time.Time) (core.BillingStats, error)
	GenerateInvoice(ctx context.Context, projectID int64, entryIDs []int64) (core.Invoice, error)
	RunAutomaticBilling(ctx context.Context) (core.RunResult, error)
}

// Alerts is the alert surface as seen by the API.
type Alerts interface {
	Current(ctx context.Context, now time.Time) (core.Alerts, error)
	Invalidate(ctx context.Context)
}

// Options configures a Server. Zero values select defaults.
type Options struct {
	Addr              string
	DueDays           int
	RateLimit         ratelimit.Config
	BlockSuspicious   bool
	Logger            *log.Logger
	ReadHeaderTimeout time.Duration
}

// Server is the JSON API. It embeds the http.Server it runs on.
type Server struct {
	http.Server
	store    Store
	billing  Billing
	alerts   Alerts
	dueDays  int
	now      func() time.Time
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// alerts may be nil, in which case /api/alerts answers 503.
func NewServer(opts Options, store Store, billing Billing, alerts Alerts) *Server {
	if opts.DueDays <= 0 {
		opts.DueDays = 30
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = &log.Logger{Logger: slog.Default()}
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		store:    store,
		billing:  billing,
		alerts:   alerts,
		dueDays:  opts.DueDays,
		now:      time.Now,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, isMutating, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(opts.BlockSuspicious)(handler)
	handler = log.RequestIDMiddleware(requestID)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/clients", s.handleListClients)
	mux.HandleFunc("POST /api/clients", s.mutating(s.handleCreateClient))
	mux.HandleFunc("GET /api/clients/{id}", s.handleGetClient)
	mux.HandleFunc("PUT /api/clients/{id}", s.mutating(s.handleUpdateClient))
	mux.HandleFunc("DELETE /api/clients/{id}", s.mutating(s.handleDeleteClient))
	mux.HandleFunc("GET /api/clients/{id}/contacts", s.handleListContacts)
	mux.HandleFunc("POST /api/contacts", s.handleCreateContact)
	mux.HandleFunc("DELETE /api/contacts/{id}", s.handleDeleteContact)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.mutating(s.handleCreateProject))
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.mutating(s.handleUpdateProject))
	mux.HandleFunc("DELETE /api/projects/{id}", s.mutating(s.handleDeleteProject))

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.mutating(s.handleCreateTask))
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.mutating(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.mutating(s.handleDeleteTask))

	mux.HandleFunc("GET /api/time-entries", s.handleListTimeEntries)
	mux.HandleFunc("POST /api/time-entries", s.mutating(s.handleCreateTimeEntry))
	mux.HandleFunc("GET /api/time-entries/{id}", s.handleGetTimeEntry)
	mux.HandleFunc("DELETE /api/time-entries/{id}", s.mutating(s.handleDeleteTimeEntry))

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)

	mux.HandleFunc("GET /api/invoices", s.handleListInvoices)
	mux.HandleFunc("POST /api/invoices", s.mutating(s.handleCreateInvoice))
	mux.HandleFunc("GET /api/invoices/{id}", s.handleGetInvoice)
	mux.HandleFunc("POST /api/invoices/{id}/status", s.mutating(s.handleInvoiceStatus))

	mux.HandleFunc("GET /api/contracts", s.handleListContracts)
	mux.HandleFunc("POST /api/contracts", s.mutating(s.handleCreateContract))
	mux.HandleFunc("GET /api/contracts/{id}", s.handleGetContract)
	mux.HandleFunc("PUT /api/contracts/{id}", s.mutating(s.handleUpdateContract))
	mux.HandleFunc("DELETE /api/contracts/{id}", s.mutating(s.handleDeleteContract))

	mux.HandleFunc("GET /api/automation-rules", s.handleListAutomationRules)
	mux.HandleFunc("POST /api/automation-rules", s.handleCreateAutomationRule)
	mux.HandleFunc("DELETE /api/automation-rules/{id}", s.handleDeleteAutomationRule)

	mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.handleMarkNotificationRead)

	mux.HandleFunc("GET /api/billing/unbilled", s.handleListUnbilled)
	mux.HandleFunc("GET /api/billing/stats", s.handleBillingStats)
	mux.HandleFunc("POST /api/billing/invoices", s.handleGenerateInvoice)
	mux.HandleFunc("POST /api/billing/run", s.handleRunBilling)

	mux.HandleFunc("GET /api/alerts", s.handleAlerts)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundResponse("no route for " + r.Method + " " + r.URL.Path).Write(w)
	})
}

// mutating invalidates the alert snapshot after a successful write that can
// change what the alert surface reports.
func (s *Server) mutating(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if rec.status < 400 && s.alerts != nil {
			s.alerts.Invalidate(r.Context())
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func isMutating(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

// Shutdown gracefully shuts down the server and the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
