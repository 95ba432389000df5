package server

import (
	"log/slog"
	"net/http"

	"salesdash/internal/handlers"
	"salesdash/internal/observability"
	"salesdash/internal/services"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(
	store *services.Store,
	agg *services.Aggregator,
	detector *services.Detector,
	insights *services.InsightGenerator,
	metrics *observability.Metrics,
	logger *slog.Logger,
	templateHandlers *TemplateHandlers,
) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(store, agg, detector, insights, metrics, logger),
		sseHandlers: handlers.NewSSEHandlers(agg, detector, insights, logger),
	}
	s.setupRoutes(templateHandlers, metrics)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers, metrics *observability.Metrics) {
	// Dashboard and operational routes
	s.mux.HandleFunc("GET /", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	s.mux.HandleFunc("GET /admin/refresh", s.apiHandlers.HandleRefresh)
	s.mux.Handle("GET /metrics", metrics.Handler())

	// REST API endpoints
	s.mux.HandleFunc("GET /api/kpis", s.apiHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /api/sales-over-time", s.apiHandlers.HandleSalesOverTime)
	s.mux.HandleFunc("GET /api/sales-by-category", s.apiHandlers.HandleSalesByCategory)
	s.mux.HandleFunc("GET /api/sales-by-country", s.apiHandlers.HandleSalesByCountry)
	s.mux.HandleFunc("GET /api/top-customers", s.apiHandlers.HandleTopCustomers)
	s.mux.HandleFunc("GET /api/order-status", s.apiHandlers.HandleOrderStatus)
	s.mux.HandleFunc("GET /api/data-summary", s.apiHandlers.HandleDataSummary)
	s.mux.HandleFunc("GET /api/anomalies", s.apiHandlers.HandleAnomalies)
	s.mux.HandleFunc("GET /api/anomaly-summary", s.apiHandlers.HandleAnomalySummary)
	s.mux.HandleFunc("GET /api/insights", s.apiHandlers.HandleInsights)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/kpis", s.sseHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /sse/sales-over-time", s.sseHandlers.HandleSalesOverTime)
	s.mux.HandleFunc("GET /sse/anomalies", s.sseHandlers.HandleAnomalies)
	s.mux.HandleFunc("GET /sse/insights", s.sseHandlers.HandleInsights)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
