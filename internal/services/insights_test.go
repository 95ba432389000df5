package services

import (
	"strings"
	"testing"

	"salesdash/internal/models"
)

func newTestGenerator(t *testing.T, records []models.SalesRecord) *InsightGenerator {
	t.Helper()
	store := newTestStore(t, records)
	agg := NewAggregator(store, 10)
	return NewInsightGenerator(store, agg, testAnalyticsConfig())
}

func TestInsightGenerator_EmptyTable(t *testing.T) {
	g := newTestGenerator(t, nil)

	insights := g.Generate()
	if insights == nil {
		t.Fatal("Generate() should return an empty list, not nil")
	}
	if len(insights) != 0 {
		t.Errorf("empty table should yield no insights, got %d", len(insights))
	}
}

func TestInsightGenerator_TrendInsights(t *testing.T) {
	g := newTestGenerator(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 100, OrderDate: date(2023, 1, 10), Category: "Planes", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 2, Sales: 900, OrderDate: date(2023, 2, 10), Category: "Planes", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 3, Sales: 400, OrderDate: date(2023, 3, 10), Category: "Ships", Country: "UK", Customer: "Globex", Quantity: 1},
	})

	insights := g.Generate()

	var best, worst *models.Insight
	for i := range insights {
		if insights[i].Category != InsightTrend {
			continue
		}
		if strings.Contains(insights[i].Text, "Best performing month") {
			best = &insights[i]
		}
		if strings.Contains(insights[i].Text, "Lowest performing month") {
			worst = &insights[i]
		}
	}

	if best == nil || !strings.Contains(best.Text, "2023-02") {
		t.Errorf("best month insight should name 2023-02, got %+v", best)
	}
	if worst == nil || !strings.Contains(worst.Text, "2023-01") {
		t.Errorf("worst month insight should name 2023-01, got %+v", worst)
	}
}

func TestInsightGenerator_GrowthInsights(t *testing.T) {
	g := newTestGenerator(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 400, OrderDate: date(2023, 6, 1), Category: "Planes", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 2, Sales: 200, OrderDate: date(2024, 6, 1), Category: "Planes", Country: "USA", Customer: "Acme", Quantity: 1},
	})

	insights := g.Generate()

	var yoy *models.Insight
	for i := range insights {
		if insights[i].Title == "Year-over-Year Growth" {
			yoy = &insights[i]
		}
	}

	if yoy == nil {
		t.Fatal("expected a year-over-year insight")
	}
	if !strings.Contains(yoy.Text, "declined by 50.0%") {
		t.Errorf("yoy text = %q, want a 50.0%% decline", yoy.Text)
	}
	if yoy.Facts["growth_pct"] != -50 {
		t.Errorf("growth_pct fact = %v, want -50", yoy.Facts["growth_pct"])
	}
}

func TestInsightGenerator_SingleYearSkipsYoY(t *testing.T) {
	g := newTestGenerator(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 400, OrderDate: date(2023, 6, 1), Category: "Planes", Country: "USA", Customer: "Acme", Quantity: 1},
	})

	for _, insight := range g.Generate() {
		if insight.Title == "Year-over-Year Growth" {
			t.Error("single-year data should not produce a yoy insight")
		}
	}
}

func TestInsightGenerator_CategoryShare(t *testing.T) {
	g := newTestGenerator(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 750, OrderDate: date(2023, 1, 1), Category: "Planes", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 2, Sales: 240, OrderDate: date(2023, 1, 2), Category: "Ships", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 3, Sales: 10, OrderDate: date(2023, 1, 3), Category: "Trains", Country: "USA", Customer: "Acme", Quantity: 1},
	})

	insights := g.Generate()

	var top, under *models.Insight
	for i := range insights {
		if insights[i].Category != InsightCategory {
			continue
		}
		if strings.Contains(insights[i].Text, "top performer") {
			top = &insights[i]
		}
		if strings.Contains(insights[i].Text, "underperforming") {
			under = &insights[i]
		}
	}

	if top == nil || !strings.Contains(top.Text, "'Planes'") || !strings.Contains(top.Text, "75.0%") {
		t.Errorf("top category insight = %+v, want Planes at 75.0%%", top)
	}
	// Trains holds 1% of sales, under the 5% bar.
	if under == nil || !strings.Contains(under.Text, "'Trains'") {
		t.Errorf("underperformer insight = %+v, want Trains", under)
	}
}

func TestInsightGenerator_CategoryShareUnderRefresh(t *testing.T) {
	// Two tables with different category counts; the top share is 75% in the
	// small one and 50% in the large one. Any other share means a grouping
	// was computed across two different snapshots.
	small := []models.SalesRecord{
		{OrderNumber: 1, Sales: 750, OrderDate: date(2023, 1, 1), Category: "Planes", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 2, Sales: 240, OrderDate: date(2023, 1, 2), Category: "Ships", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 3, Sales: 10, OrderDate: date(2023, 1, 3), Category: "Trains", Country: "USA", Customer: "Acme", Quantity: 1},
	}
	large := []models.SalesRecord{
		{OrderNumber: 1, Sales: 500, OrderDate: date(2023, 1, 1), Category: "Classic Cars", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 2, Sales: 100, OrderDate: date(2023, 1, 2), Category: "Motorcycles", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 3, Sales: 100, OrderDate: date(2023, 1, 3), Category: "Planes", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 4, Sales: 100, OrderDate: date(2023, 1, 4), Category: "Ships", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 5, Sales: 100, OrderDate: date(2023, 1, 5), Category: "Trains", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 6, Sales: 100, OrderDate: date(2023, 1, 6), Category: "Trucks and Buses", Country: "USA", Customer: "Acme", Quantity: 1},
	}

	store := newTestStore(t, small)
	agg := NewAggregator(store, 10)
	g := NewInsightGenerator(store, agg, testAnalyticsConfig())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				store.SetData(large)
			} else {
				store.SetData(small)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		for _, insight := range g.Generate() {
			if insight.Category != InsightCategory || !strings.Contains(insight.Text, "top performer") {
				continue
			}
			if share := insight.Facts["share_pct"]; share != 75 && share != 50 {
				t.Fatalf("top category share = %v, want a whole-table share (75 or 50)", share)
			}
		}
	}
	<-done
}

func TestInsightGenerator_CustomerInsights(t *testing.T) {
	g := newTestGenerator(t, []models.SalesRecord{
		{OrderNumber: 1, Sales: 500, OrderDate: date(2023, 1, 1), Category: "Planes", Country: "USA", Customer: "Acme", Quantity: 1},
		{OrderNumber: 2, Sales: 100, OrderDate: date(2023, 1, 2), Category: "Planes", Country: "USA", Customer: "Globex", Quantity: 1},
		{OrderNumber: 3, Sales: 100, OrderDate: date(2023, 1, 3), Category: "Planes", Country: "USA", Customer: "Initech", Quantity: 1},
	})

	insights := g.Generate()

	var value, loyalty *models.Insight
	for i := range insights {
		if insights[i].Category != InsightCustomer {
			continue
		}
		switch insights[i].Title {
		case "Customer Value":
			value = &insights[i]
		case "Customer Loyalty":
			loyalty = &insights[i]
		}
	}

	if value == nil || !strings.Contains(value.Text, "'Acme'") {
		t.Errorf("customer value insight = %+v, want Acme", value)
	}
	// Nobody repeats, so the loyalty rate of 0% is under the 30% threshold.
	if loyalty == nil || loyalty.Facts["loyalty_rate_pct"] != 0 {
		t.Errorf("loyalty insight = %+v, want 0%% rate", loyalty)
	}
}

func TestInsightGenerator_CategoryOrder(t *testing.T) {
	g := newTestGenerator(t, anomalyTestRecords())

	order := map[string]int{
		InsightTrend:    0,
		InsightGrowth:   1,
		InsightCategory: 2,
		InsightGeo:      3,
		InsightCustomer: 4,
	}

	last := -1
	for _, insight := range g.Generate() {
		rank, ok := order[insight.Category]
		if !ok {
			t.Fatalf("unexpected insight category %q", insight.Category)
		}
		if rank < last {
			t.Fatalf("insight categories out of order: %q after rank %d", insight.Category, last)
		}
		last = rank
	}
}
