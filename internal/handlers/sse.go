package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"salesdash/internal/models"
	"salesdash/internal/services"
)

const maxInsightRows = 20

var kpiCardsTemplate = template.Must(template.New("kpiCards").Parse(`
<div id="kpi-content">
<div class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Total Sales</span><strong>${{printf "%.2f" .TotalSales}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Total Orders</span><strong>{{.TotalOrders}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Avg Order Value</span><strong>${{printf "%.2f" .AvgOrderValue}}</strong></div>
<div class="kpi-card"><span class="kpi-label">YoY Growth</span><strong>{{printf "%.2f" .YoYGrowthPct}}%</strong></div>
</div>
</div>`))

var insightListTemplate = template.Must(template.New("insightList").Parse(`
<div id="insights-content">
<ul class="insight-list">
{{range .}}<li class="insight-item insight-{{.Category}}">
<span class="insight-title">{{.Title}}</span>
<p>{{.Text}}</p>
</li>
{{end}}</ul>
</div>`))

type SSEHandlers struct {
	agg      *services.Aggregator
	detector *services.Detector
	insights *services.InsightGenerator
	logger   *slog.Logger
}

func NewSSEHandlers(agg *services.Aggregator, detector *services.Detector, insights *services.InsightGenerator, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		agg:      agg,
		detector: detector,
		insights: insights,
		logger:   logger,
	}
}

func (h *SSEHandlers) renderKPICards(kpis models.KPISummary) (string, error) {
	var buf strings.Builder
	err := kpiCardsTemplate.Execute(&buf, kpis)
	return buf.String(), err
}

func (h *SSEHandlers) renderInsightList(insights []models.Insight) (string, error) {
	if len(insights) > maxInsightRows {
		insights = insights[:maxInsightRows]
	}
	var buf strings.Builder
	err := insightListTemplate.Execute(&buf, insights)
	return buf.String(), err
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	html, err := h.renderKPICards(h.agg.KPIs(0))
	if err != nil {
		h.logger.Error("render kpi cards", "error", err)
		return
	}

	sse.PatchElements(html)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleSalesOverTime(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	series, err := h.agg.TimeSeries(services.PeriodMonth, 0)
	if err != nil {
		h.logger.Error("monthly series", "error", err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{
		"salesOverTime": series,
	})
	if err != nil {
		h.logger.Error("marshal monthly series", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="timeseries-content">Sales chart data loaded</div>`)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	summary, err := h.detector.Summary(0)
	if err != nil {
		h.logger.Error("anomaly summary", "error", err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{
		"anomalySummary": summary,
	})
	if err != nil {
		h.logger.Error("marshal anomaly summary", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="anomaly-content">Anomaly scores refreshed</div>`)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	html, err := h.renderInsightList(h.insights.Generate())
	if err != nil {
		h.logger.Error("render insights", "error", err)
		return
	}

	sse.PatchElements(html)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleRefreshAll pushes every dashboard fragment over one SSE response.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	if html, err := h.renderKPICards(h.agg.KPIs(0)); err == nil {
		sse.PatchElements(html)
	} else {
		h.logger.Error("render kpi cards", "error", err)
	}

	if html, err := h.renderInsightList(h.insights.Generate()); err == nil {
		sse.PatchElements(html)
	} else {
		h.logger.Error("render insights", "error", err)
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
