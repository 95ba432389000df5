package services

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"salesdash/internal/config"
	"salesdash/internal/errors"
	"salesdash/internal/models"
)

// Detector scores every record in the current snapshot with an isolation
// forest. Each call fits a fresh model on the rows being scored, so concurrent
// calls never share model state. The model is seeded: identical data and
// configuration produce identical results.
type Detector struct {
	store *Store
	cfg   config.AnalyticsConfig
}

func NewDetector(store *Store, cfg config.AnalyticsConfig) *Detector {
	return &Detector{store: store, cfg: cfg}
}

// Detect produces one AnomalyResult per record. A contamination of zero uses
// the configured default; values outside (0, 0.5) fail with a validation
// error. Scores follow the decision-function convention: the lowest
// contamination fraction of rows scores below zero, and lower means more
// anomalous.
func (d *Detector) Detect(contamination float64) ([]models.AnomalyResult, error) {
	if contamination == 0 {
		contamination = d.cfg.Contamination
	}
	if contamination <= 0 || contamination >= 0.5 {
		return nil, errors.Validation(fmt.Sprintf("contamination must be in (0, 0.5), got %g", contamination))
	}

	records := d.store.Snapshot().Records
	if len(records) == 0 {
		return []models.AnomalyResult{}, nil
	}

	matrix := standardize(featureMatrix(records))

	rng := rand.New(rand.NewSource(d.cfg.Seed))
	forest := fitForest(matrix, d.cfg.ForestTrees, d.cfg.ForestSampleSize, rng)

	// Negate raw scores so that lower = more anomalous, then shift by the
	// contamination quantile: rows below zero are flagged.
	scores := make([]float64, len(matrix))
	for i, row := range matrix {
		scores[i] = -forest.Score(row)
	}
	offset := quantile(scores, contamination)

	results := make([]models.AnomalyResult, len(records))
	for i, r := range records {
		decision := scores[i] - offset
		results[i] = models.AnomalyResult{
			OrderNumber: r.OrderNumber,
			Sales:       r.Sales,
			Score:       round4(decision),
			IsAnomaly:   decision < 0,
			Severity:    d.severity(decision),
		}
	}
	return results, nil
}

// Summary condenses a Detect run into counts and the most anomalous orders.
func (d *Detector) Summary(contamination float64) (models.AnomalySummary, error) {
	results, err := d.Detect(contamination)
	if err != nil {
		return models.AnomalySummary{}, err
	}

	records := d.store.Snapshot().Records
	summary := models.AnomalySummary{
		ByCategory: make(map[string]int),
		ByCountry:  make(map[string]int),
		ByStatus:   make(map[string]int),
	}
	if len(results) == 0 {
		return summary, nil
	}

	var anomalous []models.AnomalyResult
	var scoreSum float64
	minScore := math.Inf(1)
	for i, res := range results {
		if !res.IsAnomaly {
			continue
		}
		anomalous = append(anomalous, res)
		scoreSum += res.Score
		if res.Score < minScore {
			minScore = res.Score
		}
		summary.ByCategory[records[i].Category]++
		summary.ByCountry[records[i].Country]++
		summary.ByStatus[records[i].Status]++
	}

	summary.TotalAnomalies = len(anomalous)
	summary.AnomalyRate = round2(float64(len(anomalous)) / float64(len(results)) * 100)
	if len(anomalous) > 0 {
		summary.AvgScore = round4(scoreSum / float64(len(anomalous)))
		summary.MinScore = round4(minScore)
	}

	slices.SortFunc(anomalous, func(x, y models.AnomalyResult) int {
		if x.Score != y.Score {
			if x.Score < y.Score {
				return -1
			}
			return 1
		}
		return x.OrderNumber - y.OrderNumber
	})
	top := d.cfg.TopAnomalies
	if top <= 0 {
		top = 5
	}
	if len(anomalous) > top {
		anomalous = anomalous[:top]
	}
	summary.TopAnomalies = anomalous
	return summary, nil
}

func (d *Detector) severity(score float64) models.Severity {
	switch {
	case score <= d.cfg.SevereThreshold:
		return models.SeveritySevere
	case score <= d.cfg.ModerateThreshold:
		return models.SeverityModerate
	default:
		return models.SeverityNormal
	}
}

// featureMatrix builds the fixed-width numeric vector for each record: amount
// and quantity, calendar position, and frequency encodings of the categorical
// columns. Frequency encoding is deterministic for a given snapshot.
func featureMatrix(records []models.SalesRecord) [][]float64 {
	categoryFreq := make(map[string]float64)
	countryFreq := make(map[string]float64)
	statusFreq := make(map[string]float64)
	for _, r := range records {
		categoryFreq[r.Category]++
		countryFreq[r.Country]++
		statusFreq[r.Status]++
	}

	matrix := make([][]float64, len(records))
	for i, r := range records {
		dayOfWeek := float64(r.OrderDate.Weekday())
		isWeekend := 0.0
		if wd := r.OrderDate.Weekday(); wd == time.Saturday || wd == time.Sunday {
			isWeekend = 1
		}
		salesPerUnit := 0.0
		if r.Quantity > 0 {
			salesPerUnit = r.Sales / float64(r.Quantity)
		}
		matrix[i] = []float64{
			r.Sales,
			float64(r.Quantity),
			dayOfWeek,
			float64(r.Month),
			float64(r.Quarter),
			isWeekend,
			salesPerUnit,
			math.Log1p(r.Sales),
			categoryFreq[r.Category],
			countryFreq[r.Country],
			statusFreq[r.Status],
		}
	}
	return matrix
}

// standardize scales each column to zero mean and unit variance using
// statistics from the rows being scored. Constant columns are left centered.
func standardize(matrix [][]float64) [][]float64 {
	if len(matrix) == 0 {
		return matrix
	}

	numFeatures := len(matrix[0])
	column := make([]float64, len(matrix))
	scaled := make([][]float64, len(matrix))
	for i := range scaled {
		scaled[i] = make([]float64, numFeatures)
	}

	for f := 0; f < numFeatures; f++ {
		for i, row := range matrix {
			column[i] = row[f]
		}
		mean, stddev := stat.MeanStdDev(column, nil)
		if math.IsNaN(stddev) || stddev == 0 {
			stddev = 1
		}
		for i, row := range matrix {
			scaled[i][f] = (row[f] - mean) / stddev
		}
	}
	return scaled
}

// quantile returns the empirical q-quantile of values without mutating them.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
