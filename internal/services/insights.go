package services

import (
	"fmt"

	"salesdash/internal/config"
	"salesdash/internal/models"
)

// Insight categories, in generation order. Output order is category order,
// not significance order.
const (
	InsightTrend    = "trend"
	InsightGrowth   = "growth"
	InsightCategory = "category"
	InsightGeo      = "geography"
	InsightCustomer = "customer"
)

const underperformerSharePct = 5.0

// InsightGenerator renders rule-based findings over aggregation outputs.
// Statements whose inputs are missing or empty are skipped, so a partial
// list is normal and an empty table yields an empty list.
type InsightGenerator struct {
	store *Store
	agg   *Aggregator
	cfg   config.AnalyticsConfig
}

func NewInsightGenerator(store *Store, agg *Aggregator, cfg config.AnalyticsConfig) *InsightGenerator {
	return &InsightGenerator{store: store, agg: agg, cfg: cfg}
}

func (g *InsightGenerator) Generate() []models.Insight {
	insights := []models.Insight{}
	insights = append(insights, g.trendInsights()...)
	insights = append(insights, g.growthInsights()...)
	insights = append(insights, g.categoryInsights()...)
	insights = append(insights, g.geoInsights()...)
	insights = append(insights, g.customerInsights()...)
	return insights
}

func (g *InsightGenerator) trendInsights() []models.Insight {
	monthly, err := g.agg.TimeSeries(PeriodMonth, 0)
	if err != nil || len(monthly) == 0 {
		return nil
	}

	best, worst := monthly[0], monthly[0]
	for _, m := range monthly {
		if m.TotalSales > best.TotalSales {
			best = m
		}
		if m.TotalSales < worst.TotalSales {
			worst = m
		}
	}

	insights := []models.Insight{{
		Category: InsightTrend,
		Title:    "Monthly Performance",
		Text:     fmt.Sprintf("Best performing month: %s with $%.2f in sales", best.Label, best.TotalSales),
		Facts:    map[string]float64{"total_sales": best.TotalSales},
	}}

	if worst.Label != best.Label {
		insights = append(insights, models.Insight{
			Category: InsightTrend,
			Title:    "Monthly Performance",
			Text:     fmt.Sprintf("Lowest performing month: %s with $%.2f in sales", worst.Label, worst.TotalSales),
			Facts:    map[string]float64{"total_sales": worst.TotalSales},
		})
	}
	return insights
}

func (g *InsightGenerator) growthInsights() []models.Insight {
	var insights []models.Insight

	yearly, err := g.agg.TimeSeries(PeriodYear, 0)
	if err == nil && len(yearly) > 1 {
		current := yearly[len(yearly)-1]
		previous := yearly[len(yearly)-2]
		growth := pctChange(current.TotalSales, previous.TotalSales)

		text := fmt.Sprintf("Sales grew by %.1f%% in %s compared to %s", growth, current.Label, previous.Label)
		if growth < 0 {
			text = fmt.Sprintf("Sales declined by %.1f%% in %s compared to %s", -growth, current.Label, previous.Label)
		}
		insights = append(insights, models.Insight{
			Category: InsightGrowth,
			Title:    "Year-over-Year Growth",
			Text:     text,
			Facts: map[string]float64{
				"current_total":  current.TotalSales,
				"previous_total": previous.TotalSales,
				"growth_pct":     round2(growth),
			},
		})
	}

	monthly, err := g.agg.TimeSeries(PeriodMonth, 0)
	if err == nil && len(monthly) > 1 {
		current := monthly[len(monthly)-1]
		previous := monthly[len(monthly)-2]
		growth := pctChange(current.TotalSales, previous.TotalSales)

		sign := "+"
		if growth < 0 {
			sign = "-"
		}
		insights = append(insights, models.Insight{
			Category: InsightGrowth,
			Title:    "Month-over-Month Growth",
			Text:     fmt.Sprintf("Sales changed %s%.1f%% in %s compared to %s", sign, abs(growth), current.Label, previous.Label),
			Facts: map[string]float64{
				"current_total":  current.TotalSales,
				"previous_total": previous.TotalSales,
				"growth_pct":     round2(growth),
			},
		})
	}

	return insights
}

func (g *InsightGenerator) categoryInsights() []models.Insight {
	categories := g.agg.allGroups(func(r models.SalesRecord) string { return r.Category }, false)
	if len(categories) == 0 {
		return nil
	}

	var grandTotal float64
	for _, c := range categories {
		grandTotal += c.TotalSales
	}
	if grandTotal <= 0 {
		return nil
	}

	top := categories[0]
	topShare := top.TotalSales / grandTotal * 100
	insights := []models.Insight{{
		Category: InsightCategory,
		Title:    "Product Performance",
		Text: fmt.Sprintf("'%s' is the top performer with %.1f%% of total sales ($%.2f)",
			top.Label, topShare, top.TotalSales),
		Facts: map[string]float64{
			"total_sales": top.TotalSales,
			"share_pct":   round2(topShare),
		},
	}}

	bottom := categories[len(categories)-1]
	bottomShare := bottom.TotalSales / grandTotal * 100
	if bottom.Label != top.Label && bottomShare < underperformerSharePct {
		insights = append(insights, models.Insight{
			Category: InsightCategory,
			Title:    "Product Performance",
			Text: fmt.Sprintf("'%s' is underperforming with only %.1f%% of total sales",
				bottom.Label, bottomShare),
			Facts: map[string]float64{
				"total_sales": bottom.TotalSales,
				"share_pct":   round2(bottomShare),
			},
		})
	}
	return insights
}

func (g *InsightGenerator) geoInsights() []models.Insight {
	countries := g.agg.allGroups(func(r models.SalesRecord) string { return r.Country }, false)
	if len(countries) == 0 {
		return nil
	}

	var grandTotal float64
	for _, c := range countries {
		grandTotal += c.TotalSales
	}
	if grandTotal <= 0 {
		return nil
	}

	top := countries[0]
	share := top.TotalSales / grandTotal * 100
	return []models.Insight{{
		Category: InsightGeo,
		Title:    "Geographic Performance",
		Text: fmt.Sprintf("%s leads all markets with %.1f%% of total sales ($%.2f)",
			top.Label, share, top.TotalSales),
		Facts: map[string]float64{
			"total_sales": top.TotalSales,
			"share_pct":   round2(share),
		},
	}}
}

func (g *InsightGenerator) customerInsights() []models.Insight {
	records := g.store.Snapshot().Records
	if len(records) == 0 {
		return nil
	}

	totals := make(map[string]float64)
	orders := make(map[string]int)
	for _, r := range records {
		totals[r.Customer] += r.Sales
		orders[r.Customer]++
	}

	var topCustomer string
	var topTotal float64
	for customer, total := range totals {
		if total > topTotal || (total == topTotal && (topCustomer == "" || customer < topCustomer)) {
			topCustomer, topTotal = customer, total
		}
	}

	insights := []models.Insight{{
		Category: InsightCustomer,
		Title:    "Customer Value",
		Text: fmt.Sprintf("'%s' is the highest value customer with $%.2f in total sales",
			topCustomer, topTotal),
		Facts: map[string]float64{"total_sales": round2(topTotal)},
	}}

	repeat := 0
	for _, count := range orders {
		if count > 1 {
			repeat++
		}
	}
	loyaltyRate := float64(repeat) / float64(len(orders)) * 100
	if loyaltyRate < g.cfg.LoyaltyThreshold {
		insights = append(insights, models.Insight{
			Category: InsightCustomer,
			Title:    "Customer Loyalty",
			Text:     fmt.Sprintf("Only %.1f%% of customers make repeat purchases", loyaltyRate),
			Facts: map[string]float64{
				"loyalty_rate_pct": round2(loyaltyRate),
				"repeat_customers": float64(repeat),
			},
		})
	}
	return insights
}

// pctChange is the growth percentage with the zero-denominator policy: zero
// when the previous value is zero.
func pctChange(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
