package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"salesdash/internal/errors"
	"salesdash/internal/models"
	"salesdash/internal/observability"
	"salesdash/internal/services"
)

const cacheControl = "public, max-age=300"

type APIHandlers struct {
	store    *services.Store
	agg      *services.Aggregator
	detector *services.Detector
	insights *services.InsightGenerator
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewAPIHandlers(
	store *services.Store,
	agg *services.Aggregator,
	detector *services.Detector,
	insights *services.InsightGenerator,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		store:    store,
		agg:      agg,
		detector: detector,
		insights: insights,
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, h.agg.KPIs(year), map[string]string{
		"Cache-Control": cacheControl,
	})
}

func (h *APIHandlers) HandleSalesOverTime(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = services.PeriodMonth
	}

	year, err := parseYear(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	series, err := h.agg.TimeSeries(period, year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, map[string]any{
		"period": period,
		"year":   year,
		"data":   series,
	}, map[string]string{"Cache-Control": cacheControl})
}

func (h *APIHandlers) HandleSalesByCategory(w http.ResponseWriter, r *http.Request) {
	h.handleGrouped(w, r, h.agg.ByCategory)
}

func (h *APIHandlers) HandleSalesByCountry(w http.ResponseWriter, r *http.Request) {
	h.handleGrouped(w, r, h.agg.ByCountry)
}

func (h *APIHandlers) HandleTopCustomers(w http.ResponseWriter, r *http.Request) {
	h.handleGrouped(w, r, h.agg.TopCustomers)
}

func (h *APIHandlers) handleGrouped(w http.ResponseWriter, r *http.Request, group func(int) ([]models.GroupSales, error)) {
	limit, err := parseLimit(r, h.agg.DefaultLimit())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := group(limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, map[string]any{
		"limit": limit,
		"data":  data,
	}, map[string]string{"Cache-Control": cacheControl})
}

func (h *APIHandlers) HandleOrderStatus(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.agg.StatusDistribution(), map[string]string{
		"Cache-Control": cacheControl,
	})
}

func (h *APIHandlers) HandleDataSummary(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.agg.Summary())
}

func (h *APIHandlers) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	contamination, err := parseContamination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results, err := h.detector.Detect(contamination)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.metrics.AnomalyRuns.Inc()

	errors.WriteSuccess(w, results)
}

func (h *APIHandlers) HandleAnomalySummary(w http.ResponseWriter, r *http.Request) {
	contamination, err := parseContamination(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.detector.Summary(contamination)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.metrics.AnomalyRuns.Inc()

	errors.WriteSuccess(w, summary)
}

func (h *APIHandlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	insights := h.insights.Generate()
	h.metrics.InsightRuns.Inc()
	errors.WriteSuccess(w, insights)
}

func (h *APIHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Refresh(r.Context()); err != nil {
		h.writeError(w, r, errors.InternalWrap(err, "refresh failed"))
		return
	}

	snapshot := h.store.Snapshot()
	h.metrics.DatasetRecords.Set(float64(len(snapshot.Records)))

	errors.WriteSuccess(w, map[string]any{
		"records":   len(snapshot.Records),
		"source":    snapshot.Source,
		"synthetic": snapshot.Synthetic,
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Snapshot()
	errors.WriteSuccess(w, map[string]any{
		"record_count": len(snapshot.Records),
		"source":       snapshot.Source,
		"synthetic":    snapshot.Synthetic,
		"loaded_at":    snapshot.LoadedAt,
	})
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func parseYear(r *http.Request) (int, error) {
	value := r.URL.Query().Get("year")
	if value == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(value)
	if err != nil || year < 1 {
		return 0, errors.Validation(fmt.Sprintf("year must be a positive integer, got %q", value))
	}
	return year, nil
}

func parseLimit(r *http.Request, defaultLimit int) (int, error) {
	value := r.URL.Query().Get("limit")
	if value == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < 1 {
		return 0, errors.Validation(fmt.Sprintf("limit must be a positive integer, got %q", value))
	}
	return limit, nil
}

func parseContamination(r *http.Request) (float64, error) {
	value := r.URL.Query().Get("contamination")
	if value == "" {
		return 0, nil // Detector applies the configured default.
	}
	contamination, err := strconv.ParseFloat(value, 64)
	if err != nil || contamination <= 0 || contamination >= 0.5 {
		return 0, errors.Validation(fmt.Sprintf("contamination must be in (0, 0.5), got %q", value))
	}
	return contamination, nil
}
