package services

import (
	"math"
	"testing"
	"time"

	"salesdash/internal/models"
)

func newTestStore(t *testing.T, records []models.SalesRecord) *Store {
	t.Helper()
	store := NewStore("unused.csv", 10, nil)
	store.SetData(records)
	return store
}

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func TestAggregator_KPIs(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 100, OrderDate: date(2023, 1, 15), Quantity: 1},
		{OrderNumber: 2, Sales: 300, OrderDate: date(2023, 2, 15), Quantity: 2},
		{OrderNumber: 3, Sales: 200, OrderDate: date(2024, 1, 15), Quantity: 3},
	})
	agg := NewAggregator(store, 10)

	kpis := agg.KPIs(0)

	if kpis.TotalSales != 600 {
		t.Errorf("TotalSales = %v, want 600", kpis.TotalSales)
	}
	if kpis.TotalOrders != 3 {
		t.Errorf("TotalOrders = %d, want 3", kpis.TotalOrders)
	}
	if kpis.TotalQuantity != 6 {
		t.Errorf("TotalQuantity = %d, want 6", kpis.TotalQuantity)
	}
	if kpis.AvgOrderValue != 200 {
		t.Errorf("AvgOrderValue = %v, want 200", kpis.AvgOrderValue)
	}
	// 2024 vs 2023: (200-400)/400 * 100
	if kpis.YoYGrowthPct != -50 {
		t.Errorf("YoYGrowthPct = %v, want -50", kpis.YoYGrowthPct)
	}
	if kpis.CurrentYear != 2024 || kpis.PreviousYear != 2023 {
		t.Errorf("years = %d/%d, want 2024/2023", kpis.CurrentYear, kpis.PreviousYear)
	}
}

func TestAggregator_KPIs_YearFilter(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 100, OrderDate: date(2023, 1, 15), Quantity: 1},
		{OrderNumber: 2, Sales: 200, OrderDate: date(2024, 1, 15), Quantity: 2},
	})
	agg := NewAggregator(store, 10)

	kpis := agg.KPIs(2023)
	if kpis.TotalSales != 100 {
		t.Errorf("TotalSales = %v, want 100", kpis.TotalSales)
	}
	if kpis.TotalOrders != 1 {
		t.Errorf("TotalOrders = %d, want 1", kpis.TotalOrders)
	}
}

func TestAggregator_KPIs_YearFilterKeepsYoY(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 100, OrderDate: date(2023, 1, 15), Quantity: 1},
		{OrderNumber: 2, Sales: 300, OrderDate: date(2023, 2, 15), Quantity: 2},
		{OrderNumber: 3, Sales: 200, OrderDate: date(2024, 1, 15), Quantity: 3},
	})
	agg := NewAggregator(store, 10)

	// Filtering to 2024 must still compare against 2023's rows:
	// (200-400)/400 * 100.
	kpis := agg.KPIs(2024)
	if kpis.YoYGrowthPct != -50 {
		t.Errorf("YoYGrowthPct = %v, want -50", kpis.YoYGrowthPct)
	}
	if kpis.CurrentYear != 2024 || kpis.PreviousYear != 2023 {
		t.Errorf("years = %d/%d, want 2024/2023", kpis.CurrentYear, kpis.PreviousYear)
	}
	if kpis.TotalSales != 200 || kpis.TotalOrders != 1 {
		t.Errorf("filtered totals = %v/%d, want 200/1", kpis.TotalSales, kpis.TotalOrders)
	}

	// The earliest year has nothing before it.
	if got := agg.KPIs(2023).YoYGrowthPct; got != 0 {
		t.Errorf("YoYGrowthPct for the first year = %v, want 0", got)
	}
}

func TestAggregator_KPIs_EmptyTable(t *testing.T) {
	store := newTestStore(t, nil)
	agg := NewAggregator(store, 10)

	kpis := agg.KPIs(0)
	if kpis.TotalSales != 0 || kpis.TotalOrders != 0 || kpis.AvgOrderValue != 0 {
		t.Errorf("empty table KPIs should be zero, got %+v", kpis)
	}
}

func TestAggregator_YoYGrowth_ZeroPreviousYear(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 500, OrderDate: date(2024, 6, 1), Quantity: 1},
	})
	agg := NewAggregator(store, 10)

	kpis := agg.KPIs(0)
	if kpis.YoYGrowthPct != 0 {
		t.Errorf("YoYGrowthPct with no previous year = %v, want 0", kpis.YoYGrowthPct)
	}
	if math.IsNaN(kpis.YoYGrowthPct) || math.IsInf(kpis.YoYGrowthPct, 0) {
		t.Error("YoYGrowthPct must never be NaN or Inf")
	}
}

func TestAggregator_TimeSeries(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 100, OrderDate: date(2023, 2, 10), Quantity: 1},
		{OrderNumber: 2, Sales: 50, OrderDate: date(2023, 1, 5), Quantity: 1},
		{OrderNumber: 3, Sales: 25, OrderDate: date(2023, 1, 20), Quantity: 1},
		{OrderNumber: 4, Sales: 10, OrderDate: date(2024, 7, 1), Quantity: 1},
	})
	agg := NewAggregator(store, 10)

	tests := []struct {
		name       string
		period     string
		year       int
		wantLabels []string
		wantTotals []float64
	}{
		{
			name:       "monthly all years",
			period:     PeriodMonth,
			wantLabels: []string{"2023-01", "2023-02", "2024-07"},
			wantTotals: []float64{75, 100, 10},
		},
		{
			name:       "monthly one year",
			period:     PeriodMonth,
			year:       2023,
			wantLabels: []string{"2023-01", "2023-02"},
			wantTotals: []float64{75, 100},
		},
		{
			name:       "quarterly",
			period:     PeriodQuarter,
			wantLabels: []string{"2023-Q1", "2024-Q3"},
			wantTotals: []float64{175, 10},
		},
		{
			name:       "yearly",
			period:     PeriodYear,
			wantLabels: []string{"2023", "2024"},
			wantTotals: []float64{175, 10},
		},
		{
			name:       "daily",
			period:     PeriodDay,
			year:       2024,
			wantLabels: []string{"2024-07-01"},
			wantTotals: []float64{10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := agg.TimeSeries(tt.period, tt.year)
			if err != nil {
				t.Fatalf("TimeSeries() error = %v", err)
			}
			if len(series) != len(tt.wantLabels) {
				t.Fatalf("got %d buckets, want %d", len(series), len(tt.wantLabels))
			}
			for i := range series {
				if series[i].Label != tt.wantLabels[i] {
					t.Errorf("bucket %d label = %q, want %q", i, series[i].Label, tt.wantLabels[i])
				}
				if series[i].TotalSales != tt.wantTotals[i] {
					t.Errorf("bucket %d total = %v, want %v", i, series[i].TotalSales, tt.wantTotals[i])
				}
			}
		})
	}
}

func TestAggregator_TimeSeries_InvalidPeriod(t *testing.T) {
	store := newTestStore(t, nil)
	agg := NewAggregator(store, 10)

	if _, err := agg.TimeSeries("week", 0); err == nil {
		t.Error("TimeSeries() with invalid period should fail")
	}
}

func TestAggregator_ByCategory_PartitionLaw(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 100, OrderDate: date(2023, 1, 1), Category: "Planes", Quantity: 1},
		{OrderNumber: 2, Sales: 400, OrderDate: date(2023, 1, 2), Category: "Ships", Quantity: 1},
		{OrderNumber: 3, Sales: 300, OrderDate: date(2023, 1, 3), Category: "Planes", Quantity: 1},
		{OrderNumber: 4, Sales: 200, OrderDate: date(2023, 1, 4), Category: "Trains", Quantity: 1},
	})
	agg := NewAggregator(store, 10)

	groups, err := agg.ByCategory(100)
	if err != nil {
		t.Fatalf("ByCategory() error = %v", err)
	}

	var groupedTotal float64
	for _, g := range groups {
		groupedTotal += g.TotalSales
	}

	grandTotal := agg.KPIs(0).TotalSales
	if groupedTotal != grandTotal {
		t.Errorf("sum of per-category totals = %v, want grand total %v", groupedTotal, grandTotal)
	}
}

func TestAggregator_GroupBy_TruncationAndTieBreak(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 500, OrderDate: date(2023, 1, 1), Category: "A", Quantity: 1},
		{OrderNumber: 2, Sales: 700, OrderDate: date(2023, 1, 2), Category: "B", Quantity: 1},
		{OrderNumber: 3, Sales: 500, OrderDate: date(2023, 1, 3), Category: "C", Quantity: 1},
	})
	agg := NewAggregator(store, 10)

	groups, err := agg.ByCategory(1)
	if err != nil {
		t.Fatalf("ByCategory() error = %v", err)
	}
	if len(groups) != 1 || groups[0].Label != "B" || groups[0].TotalSales != 700 {
		t.Errorf("limit=1 should return the top group B/700, got %+v", groups)
	}

	// A and C tie at 500; label ascending breaks the tie.
	groups, err = agg.ByCategory(2)
	if err != nil {
		t.Fatalf("ByCategory() error = %v", err)
	}
	if len(groups) != 2 || groups[1].Label != "A" {
		t.Errorf("tie should be broken by label ascending, got %+v", groups)
	}
}

func TestAggregator_GroupBy_InvalidLimit(t *testing.T) {
	store := newTestStore(t, nil)
	agg := NewAggregator(store, 10)

	for _, limit := range []int{0, -5} {
		if _, err := agg.ByCountry(limit); err == nil {
			t.Errorf("ByCountry(%d) should fail", limit)
		}
	}
}

func TestAggregator_TopCustomers(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 100, OrderDate: date(2023, 1, 1), Customer: "Acme", Quantity: 2},
		{OrderNumber: 2, Sales: 300, OrderDate: date(2023, 1, 2), Customer: "Acme", Quantity: 3},
		{OrderNumber: 3, Sales: 50, OrderDate: date(2023, 1, 3), Customer: "Globex", Quantity: 1},
	})
	agg := NewAggregator(store, 10)

	customers, err := agg.TopCustomers(10)
	if err != nil {
		t.Fatalf("TopCustomers() error = %v", err)
	}
	if len(customers) != 2 {
		t.Fatalf("got %d customers, want 2", len(customers))
	}
	top := customers[0]
	if top.Label != "Acme" || top.TotalSales != 400 || top.OrderCount != 2 || top.TotalQuantity != 5 {
		t.Errorf("top customer = %+v, want Acme/400/2/5", top)
	}
}

func TestAggregator_StatusDistribution(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 100, OrderDate: date(2023, 1, 1), Status: "Shipped", Quantity: 1},
		{OrderNumber: 2, Sales: 100, OrderDate: date(2023, 1, 2), Status: "Shipped", Quantity: 1},
		{OrderNumber: 3, Sales: 100, OrderDate: date(2023, 1, 3), Status: "Cancelled", Quantity: 1},
	})
	agg := NewAggregator(store, 10)

	dist := agg.StatusDistribution()

	if dist["Shipped"] != 2 {
		t.Errorf("Shipped = %d, want 2", dist["Shipped"])
	}
	if dist["Cancelled"] != 1 {
		t.Errorf("Cancelled = %d, want 1", dist["Cancelled"])
	}
	// Every known status appears even when zero.
	for _, status := range KnownStatuses {
		if _, ok := dist[status]; !ok {
			t.Errorf("status %q missing from distribution", status)
		}
	}
	if dist["On Hold"] != 0 {
		t.Errorf("On Hold = %d, want 0", dist["On Hold"])
	}
}

func TestAggregator_Summary(t *testing.T) {
	store := newTestStore(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 100, OrderDate: date(2023, 3, 1), Customer: "Acme", Country: "USA", Category: "Planes", Quantity: 1},
		{OrderNumber: 2, Sales: 100, OrderDate: date(2024, 5, 1), Customer: "Globex", Country: "USA", Category: "Ships", Quantity: 1},
	})
	agg := NewAggregator(store, 10)

	summary := agg.Summary()
	if summary.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", summary.TotalRecords)
	}
	if summary.DateStart != "2023-03-01" || summary.DateEnd != "2024-05-01" {
		t.Errorf("date range = %s..%s", summary.DateStart, summary.DateEnd)
	}
	if summary.UniqueCustomers != 2 || summary.UniqueCountries != 1 || summary.UniqueCategories != 2 {
		t.Errorf("unique counts = %+v", summary)
	}
}
