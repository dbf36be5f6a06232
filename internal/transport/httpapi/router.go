package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kislikjeka/grandlivre/internal/transport/httpapi/handler"
	"github.com/kislikjeka/grandlivre/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger           *logger.Logger
	AllowedOrigins   []string
	RateLimitRPS     float64
	RateLimitBurst   int
	HealthHandler    *handler.HealthHandler
	EntryHandler     *handler.EntryHandler
	ReconcileHandler *handler.ReconcileHandler
	ChartHandler     *handler.ChartHandler
	FiscalHandler    *handler.FiscalHandler
	BudgetHandler    *handler.BudgetHandler
	AnalyticHandler  *handler.AnalyticHandler
	PaymentHandler   *handler.PaymentHandler
	StatementHandler *handler.StatementHandler
	JWTMiddleware    func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	if cfg.JWTMiddleware == nil {
		return r
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.JWTMiddleware)
		// after JWT so limits apply per company
		if cfg.RateLimitRPS > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}

		if h := cfg.EntryHandler; h != nil {
			r.Route("/entries", func(r chi.Router) {
				r.Post("/", h.CreateEntry)
				r.Get("/", h.ListEntries)
				r.Get("/{id}", h.GetEntry)
				r.Delete("/{id}", h.DeleteEntry)
				r.Post("/{id}/lines", h.AddLine)
				r.Patch("/{id}/lines/{lineID}", h.UpdateLine)
				r.Delete("/{id}/lines/{lineID}", h.RemoveLine)
				r.Post("/{id}/post", h.PostEntry)
				r.Post("/{id}/cancel", h.CancelEntry)
				r.Post("/{id}/reopen", h.ReopenEntry)
				r.Post("/{id}/reverse", h.ReverseEntry)
			})
			r.Get("/lines/{id}/residual", h.GetResidual)
			r.Get("/accounts/{id}/balance", h.GetAccountBalance)
		}

		if h := cfg.ReconcileHandler; h != nil {
			r.Route("/reconciliations", func(r chi.Router) {
				r.Post("/", h.Reconcile)
				r.Delete("/partials", h.UnreconcilePartials)
				r.Delete("/lines", h.UnreconcileLines)
				r.Delete("/full/{id}", h.UnreconcileFull)
			})
		}

		if h := cfg.ChartHandler; h != nil {
			r.Post("/accounts", h.CreateAccount)
			r.Get("/accounts", h.ListAccounts)
			r.Get("/accounts/{id}", h.GetAccount)
			r.Put("/accounts/{id}/parent", h.SetParent)
			r.Post("/accounts/{id}/deprecate", h.DeprecateAccount)
			r.Post("/journals", h.CreateJournal)
			r.Get("/journals", h.ListJournals)
			r.Post("/taxes", h.CreateTax)
			r.Get("/taxes", h.ListTaxes)
			r.Post("/taxes/compute", h.ComputeTax)
		}

		if h := cfg.FiscalHandler; h != nil {
			r.Post("/fiscal-years", h.CreateYear)
			r.Get("/fiscal-years/{id}", h.GetYear)
			r.Post("/fiscal-years/{id}/close", h.CloseYear)
			r.Post("/fiscal-years/{id}/reopen", h.ReopenYear)
			r.Get("/fiscal-years/{id}/periods", h.ListPeriods)
			r.Post("/fiscal-years/{id}/periods", h.CreatePeriods)
			r.Post("/periods/{id}/close", h.ClosePeriod)
			r.Post("/periods/{id}/reopen", h.ReopenPeriod)
		}

		if h := cfg.BudgetHandler; h != nil {
			r.Route("/budgets", func(r chi.Router) {
				r.Post("/", h.CreateBudget)
				r.Get("/", h.ListBudgets)
				r.Get("/{id}", h.GetBudget)
				r.Get("/{id}/report", h.Report)
				r.Post("/{id}/lines", h.AddLine)
				r.Delete("/{id}/lines/{lineID}", h.RemoveLine)
				r.Post("/{id}/confirm", h.Confirm)
				r.Post("/{id}/validate", h.Validate)
				r.Post("/{id}/done", h.Done)
				r.Post("/{id}/cancel", h.Cancel)
				r.Post("/{id}/draft", h.ResetToDraft)
			})
			r.Post("/budget-posts", h.CreatePost)
		}

		if h := cfg.AnalyticHandler; h != nil {
			r.Route("/analytic-accounts", func(r chi.Router) {
				r.Post("/", h.CreateAccount)
				r.Get("/", h.ListAccounts)
				r.Post("/{id}/archive", h.Archive)
				r.Post("/{id}/lines", h.AddLine)
				r.Get("/{id}/balance", h.Balance)
			})
		}

		if h := cfg.PaymentHandler; h != nil {
			r.Route("/payments", func(r chi.Router) {
				r.Post("/", h.CreatePayment)
				r.Get("/", h.ListPayments)
				r.Get("/{id}", h.GetPayment)
				r.Post("/{id}/post", h.PostPayment)
				r.Post("/{id}/cancel", h.CancelPayment)
				r.Post("/{id}/draft", h.ResetToDraft)
			})
			r.Route("/payment-terms", func(r chi.Router) {
				r.Post("/", h.CreateTerm)
				r.Get("/", h.ListTerms)
				r.Get("/{id}", h.GetTerm)
				r.Post("/{id}/schedule", h.Schedule)
			})
		}

		if h := cfg.StatementHandler; h != nil {
			r.Route("/statements", func(r chi.Router) {
				r.Post("/", h.CreateStatement)
				r.Get("/", h.ListStatements)
				r.Get("/{id}", h.GetStatement)
				r.Post("/{id}/confirm", h.Confirm)
				r.Post("/{id}/reopen", h.Reopen)
				r.Post("/{id}/lines", h.AddLine)
				r.Delete("/{id}/lines/{lineID}", h.RemoveLine)
				r.Post("/{id}/lines/{lineID}/match", h.MatchLine)
				r.Post("/{id}/lines/{lineID}/book", h.BookLine)
				r.Post("/{id}/lines/{lineID}/unmatch", h.UnmatchLine)
			})
		}
	})

	return r
}
