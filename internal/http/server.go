// Package http exposes every ledger operation as a JSON procedure. Handlers
// convert all failures into structured {status:"error"} results; a caller
// never sees a raw fault.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"expensed/internal/export"
	"expensed/internal/services"
)

// pinger is the slice of *sql.DB the readiness probe needs.
type pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	http.Server

	expenses *services.ExpenseService
	reports  *services.ReportService
	exporter export.Writer

	backendIdentity string
	categoriesPath  string
	pinger          pinger
}

// NewServer wires all routes and returns a ready-to-run server. The
// backend services are injected so tests can run against an in-process
// sqlite store.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		expenses:        deps.Expenses,
		reports:         deps.Reports,
		exporter:        deps.Exporter,
		backendIdentity: deps.BackendIdentity,
		categoriesPath:  deps.CategoriesPath,
		pinger:          deps.Pinger,
	}

	mux.HandleFunc("POST /expenses", s.withRequestLog(s.handleAddExpense))
	mux.HandleFunc("GET /expenses/{id}", s.withRequestLog(s.handleReadExpense))
	mux.HandleFunc("PATCH /expenses/{id}", s.withRequestLog(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expenses/{id}", s.withRequestLog(s.handleDeleteExpense))
	mux.HandleFunc("GET /expenses", s.withRequestLog(s.handleListExpenses))

	mux.HandleFunc("GET /reports/summary", s.withRequestLog(s.handleSummarize))
	mux.HandleFunc("GET /reports/monthly", s.withRequestLog(s.handleMonthlyReport))
	mux.HandleFunc("GET /reports/top-categories", s.withRequestLog(s.handleTopCategories))
	mux.HandleFunc("GET /reports/daily-average", s.withRequestLog(s.handleDailyAverage))
	mux.HandleFunc("GET /reports/budget-alert", s.withRequestLog(s.handleBudgetAlert))

	mux.HandleFunc("POST /export/csv", s.withRequestLog(s.handleExportCSV))

	mux.HandleFunc("GET /categories", s.withRequestLog(s.handleCategories))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	return s
}

// Deps is everything the transport needs from the assembled backend.
type Deps struct {
	Expenses        *services.ExpenseService
	Reports         *services.ReportService
	Exporter        export.Writer
	BackendIdentity string
	CategoriesPath  string
	Pinger          pinger
}

// withRequestLog tags each request with an id and logs start/completion,
// capturing the response status.
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()
		ctx := r.Context()

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path)

		w.Header().Set("X-Content-Type-Options", "nosniff")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
