package services

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"salesdash/internal/errors"
	"salesdash/internal/models"
)

// Period granularities accepted by TimeSeries.
const (
	PeriodDay     = "day"
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
)

// Aggregator computes KPIs and grouped summaries over the store's current
// snapshot. All methods are pure reductions and safe for concurrent use.
type Aggregator struct {
	store        *Store
	defaultLimit int
}

func NewAggregator(store *Store, defaultLimit int) *Aggregator {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Aggregator{store: store, defaultLimit: defaultLimit}
}

func (a *Aggregator) DefaultLimit() int {
	return a.defaultLimit
}

// KPIs returns the scalar summary statistics. When year is non-zero only
// records from that year are considered. Ratio denominators of zero resolve
// to zero rather than failing.
func (a *Aggregator) KPIs(year int) models.KPISummary {
	all := a.store.Snapshot().Records
	records := a.filterYear(all, year)

	var summary models.KPISummary
	if len(records) == 0 {
		return summary
	}

	orderNumbers := make(map[int]struct{})
	maxYear := 0
	for _, r := range records {
		summary.TotalSales += r.Sales
		summary.TotalQuantity += r.Quantity
		orderNumbers[r.OrderNumber] = struct{}{}
		if r.Year > maxYear {
			maxYear = r.Year
		}
	}
	summary.TotalOrders = len(orderNumbers)

	if summary.TotalOrders > 0 {
		summary.AvgOrderValue = summary.TotalSales / float64(summary.TotalOrders)
	}

	currentYear := year
	if currentYear == 0 {
		currentYear = maxYear
	}
	summary.CurrentYear = currentYear
	summary.PreviousYear = currentYear - 1
	// Growth always compares against the previous year's rows, even when the
	// KPI window is filtered to a single year.
	summary.YoYGrowthPct = a.yoyGrowth(all, currentYear)

	summary.TotalSales = round2(summary.TotalSales)
	summary.AvgOrderValue = round2(summary.AvgOrderValue)
	summary.YoYGrowthPct = round2(summary.YoYGrowthPct)
	return summary
}

// yoyGrowth is zero when the previous year had no sales, never NaN or Inf.
func (a *Aggregator) yoyGrowth(records []models.SalesRecord, currentYear int) float64 {
	var current, previous float64
	for _, r := range records {
		switch r.Year {
		case currentYear:
			current += r.Sales
		case currentYear - 1:
			previous += r.Sales
		}
	}
	if previous <= 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// TimeSeries groups sales chronologically by the given period granularity,
// optionally restricted to one calendar year.
func (a *Aggregator) TimeSeries(period string, year int) ([]models.PeriodSales, error) {
	labelFor, err := periodLabeler(period)
	if err != nil {
		return nil, err
	}

	records := a.filterYear(a.store.Snapshot().Records, year)

	type bucket struct {
		total  float64
		orders int
	}
	buckets := make(map[string]*bucket)
	for _, r := range records {
		label := labelFor(r)
		b := buckets[label]
		if b == nil {
			b = &bucket{}
			buckets[label] = b
		}
		b.total += r.Sales
		b.orders++
	}

	series := make([]models.PeriodSales, 0, len(buckets))
	for label, b := range buckets {
		series = append(series, models.PeriodSales{
			Label:      label,
			TotalSales: round2(b.total),
			OrderCount: b.orders,
		})
	}

	// Period labels are zero-padded, so lexicographic order is chronological.
	slices.SortFunc(series, func(x, y models.PeriodSales) int {
		return strings.Compare(x.Label, y.Label)
	})
	return series, nil
}

func periodLabeler(period string) (func(models.SalesRecord) string, error) {
	switch period {
	case PeriodDay:
		return func(r models.SalesRecord) string {
			return r.OrderDate.Format("2006-01-02")
		}, nil
	case PeriodMonth:
		return func(r models.SalesRecord) string {
			return fmt.Sprintf("%04d-%02d", r.Year, r.Month)
		}, nil
	case PeriodQuarter:
		return func(r models.SalesRecord) string {
			return fmt.Sprintf("%04d-Q%d", r.Year, r.Quarter)
		}, nil
	case PeriodYear:
		return func(r models.SalesRecord) string {
			return fmt.Sprintf("%04d", r.Year)
		}, nil
	default:
		return nil, errors.Validation(fmt.Sprintf("period must be one of day, month, quarter, year; got %q", period))
	}
}

// ByCategory sums sales per product category, highest first.
func (a *Aggregator) ByCategory(limit int) ([]models.GroupSales, error) {
	return a.groupBy(limit, func(r models.SalesRecord) string { return r.Category }, false)
}

// ByCountry sums sales per country, highest first.
func (a *Aggregator) ByCountry(limit int) ([]models.GroupSales, error) {
	return a.groupBy(limit, func(r models.SalesRecord) string { return r.Country }, false)
}

// TopCustomers sums sales per customer, highest first, including total
// quantity ordered.
func (a *Aggregator) TopCustomers(limit int) ([]models.GroupSales, error) {
	return a.groupBy(limit, func(r models.SalesRecord) string { return r.Customer }, true)
}

func (a *Aggregator) groupBy(limit int, key func(models.SalesRecord) string, withQuantity bool) ([]models.GroupSales, error) {
	if limit <= 0 {
		return nil, errors.Validation(fmt.Sprintf("limit must be a positive integer, got %d", limit))
	}

	result := a.allGroups(key, withQuantity)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// allGroups sums sales per key over a single snapshot read, never truncated.
// Share calculations use this directly so a concurrent refresh cannot shrink
// the grouping under them.
func (a *Aggregator) allGroups(key func(models.SalesRecord) string, withQuantity bool) []models.GroupSales {
	groups := make(map[string]*models.GroupSales)
	for _, r := range a.store.Snapshot().Records {
		g := groups[key(r)]
		if g == nil {
			g = &models.GroupSales{Label: key(r)}
			groups[key(r)] = g
		}
		g.TotalSales += r.Sales
		g.OrderCount++
		if withQuantity {
			g.TotalQuantity += r.Quantity
		}
	}

	result := make([]models.GroupSales, 0, len(groups))
	for _, g := range groups {
		g.TotalSales = round2(g.TotalSales)
		result = append(result, *g)
	}

	// Total descending, ties broken by label ascending so truncation is stable.
	slices.SortFunc(result, func(x, y models.GroupSales) int {
		if x.TotalSales != y.TotalSales {
			if x.TotalSales > y.TotalSales {
				return -1
			}
			return 1
		}
		return strings.Compare(x.Label, y.Label)
	})
	return result
}

// StatusDistribution counts records per order status. Every known status is
// present even when zero.
func (a *Aggregator) StatusDistribution() map[string]int {
	counts := make(map[string]int, len(KnownStatuses))
	for _, status := range KnownStatuses {
		counts[status] = 0
	}
	for _, r := range a.store.Snapshot().Records {
		counts[r.Status]++
	}
	return counts
}

// Summary describes the loaded table as a whole.
func (a *Aggregator) Summary() models.DataSummary {
	records := a.store.Snapshot().Records

	summary := models.DataSummary{TotalRecords: len(records)}
	if len(records) == 0 {
		return summary
	}

	customers := make(map[string]struct{})
	countries := make(map[string]struct{})
	categories := make(map[string]struct{})

	minDate, maxDate := records[0].OrderDate, records[0].OrderDate
	for _, r := range records {
		customers[r.Customer] = struct{}{}
		countries[r.Country] = struct{}{}
		categories[r.Category] = struct{}{}
		if r.OrderDate.Before(minDate) {
			minDate = r.OrderDate
		}
		if r.OrderDate.After(maxDate) {
			maxDate = r.OrderDate
		}
	}

	summary.DateStart = minDate.Format("2006-01-02")
	summary.DateEnd = maxDate.Format("2006-01-02")
	summary.UniqueCustomers = len(customers)
	summary.UniqueCountries = len(countries)
	summary.UniqueCategories = len(categories)
	return summary
}

func (a *Aggregator) filterYear(records []models.SalesRecord, year int) []models.SalesRecord {
	if year == 0 {
		return records
	}
	filtered := make([]models.SalesRecord, 0, len(records))
	for _, r := range records {
		if r.Year == year {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
