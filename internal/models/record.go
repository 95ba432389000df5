package models

import "time"

// SalesRecord is one order line from the sales dataset. Year, Month and
// Quarter are derived from OrderDate at load time and never diverge from it.
type SalesRecord struct {
	OrderNumber int
	Sales       float64
	OrderDate   time.Time
	Category    string
	Country     string
	Quantity    int
	Customer    string
	Status      string
	Year        int
	Month       int
	Quarter     int
}

// Derive fills the calendar fields from OrderDate.
func (r *SalesRecord) Derive() {
	r.Year = r.OrderDate.Year()
	r.Month = int(r.OrderDate.Month())
	r.Quarter = (r.Month-1)/3 + 1
}

type KPISummary struct {
	TotalSales    float64 `json:"total_sales"`
	TotalOrders   int     `json:"total_orders"`
	TotalQuantity int     `json:"total_quantity"`
	AvgOrderValue float64 `json:"avg_order_value"`
	YoYGrowthPct  float64 `json:"yoy_growth"`
	CurrentYear   int     `json:"current_year"`
	PreviousYear  int     `json:"previous_year"`
}

// PeriodSales is one bucket of the time-series summary, labelled by period
// ("2023-01-15", "2023-01", "2023-Q1" or "2023" depending on granularity).
type PeriodSales struct {
	Label      string  `json:"label"`
	TotalSales float64 `json:"total_sales"`
	OrderCount int     `json:"order_count"`
}

// GroupSales is one row of a grouped summary (category, country or customer).
type GroupSales struct {
	Label         string  `json:"label"`
	TotalSales    float64 `json:"total_sales"`
	OrderCount    int     `json:"order_count"`
	TotalQuantity int     `json:"total_quantity,omitempty"`
}

type DataSummary struct {
	TotalRecords     int    `json:"total_records"`
	DateStart        string `json:"date_start"`
	DateEnd          string `json:"date_end"`
	UniqueCustomers  int    `json:"unique_customers"`
	UniqueCountries  int    `json:"unique_countries"`
	UniqueCategories int    `json:"unique_categories"`
}

type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// AnomalyResult is the per-record output of the anomaly scorer. Score follows
// the decision-function convention: lower means more anomalous.
type AnomalyResult struct {
	OrderNumber int      `json:"order_number"`
	Sales       float64  `json:"sales"`
	Score       float64  `json:"anomaly_score"`
	IsAnomaly   bool     `json:"is_anomaly"`
	Severity    Severity `json:"severity"`
}

type AnomalySummary struct {
	TotalAnomalies int             `json:"total_anomalies"`
	AnomalyRate    float64         `json:"anomaly_rate"`
	AvgScore       float64         `json:"avg_anomaly_score"`
	MinScore       float64         `json:"min_anomaly_score"`
	ByCategory     map[string]int  `json:"by_category"`
	ByCountry      map[string]int  `json:"by_country"`
	ByStatus       map[string]int  `json:"by_status"`
	TopAnomalies   []AnomalyResult `json:"top_anomalies"`
}

// Insight is one generated finding plus the numbers it was derived from.
type Insight struct {
	Category string             `json:"category"`
	Title    string             `json:"title"`
	Text     string             `json:"text"`
	Facts    map[string]float64 `json:"facts,omitempty"`
}
