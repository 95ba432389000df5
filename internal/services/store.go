package services

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"salesdash/internal/models"
)

const (
	batchSize  = 5000
	maxWorkers = 8

	placeholderCustomer = "Unknown Customer"
	syntheticSeed       = 42
	watchDebounce       = 500 * time.Millisecond
)

// KnownStatuses is the fixed order-status vocabulary. The status distribution
// reports every one of these even when its count is zero.
var KnownStatuses = []string{"Shipped", "In Process", "Cancelled", "On Hold", "Disputed", "Resolved"}

var (
	syntheticCountries  = []string{"USA", "Canada", "UK", "Germany", "France", "Japan", "Australia", "Brazil"}
	syntheticCategories = []string{"Classic Cars", "Motorcycles", "Planes", "Ships", "Trains", "Trucks and Buses", "Vintage Cars"}
	syntheticStatusCum  = []struct {
		status string
		cum    float64
	}{
		{"Shipped", 0.60},
		{"In Process", 0.75},
		{"Cancelled", 0.80},
		{"On Hold", 0.85},
		{"Disputed", 0.90},
		{"Resolved", 1.00},
	}
)

// Snapshot is an immutable view of the loaded table. All aggregation and
// scoring operations read one snapshot; a refresh swaps the whole table.
type Snapshot struct {
	Records   []models.SalesRecord
	Source    string
	Synthetic bool
	LoadedAt  time.Time
}

// Store owns the current table snapshot. Reads never lock; Refresh builds a
// new snapshot and publishes it atomically.
type Store struct {
	snapshot atomic.Pointer[Snapshot]
	csvPath  string
	synRows  int
	logger   *slog.Logger

	refreshMu sync.Mutex
}

func NewStore(csvPath string, syntheticRows int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		csvPath: csvPath,
		synRows: syntheticRows,
		logger:  logger,
	}
	s.snapshot.Store(&Snapshot{LoadedAt: time.Now()})
	return s
}

// Snapshot returns the current table. The returned value must be treated as
// read-only.
func (s *Store) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// SetData replaces the table with the given records, deriving calendar fields.
func (s *Store) SetData(records []models.SalesRecord) {
	rows := make([]models.SalesRecord, len(records))
	copy(rows, records)
	for i := range rows {
		rows[i].Derive()
	}
	s.snapshot.Store(&Snapshot{
		Records:  rows,
		Source:   "inline",
		LoadedAt: time.Now(),
	})
}

// Load builds the table from the CSV file. A missing or unparsable file is
// not fatal: the store falls back to a deterministic synthetic dataset so the
// service always has something to serve.
func (s *Store) Load(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := time.Now()
	records, err := s.loadCSV(ctx, s.csvPath)
	if err != nil {
		s.logger.Warn("falling back to synthetic data",
			"file", s.csvPath,
			"error", err,
		)
		s.snapshot.Store(&Snapshot{
			Records:   syntheticRecords(s.synRows),
			Source:    "synthetic",
			Synthetic: true,
			LoadedAt:  time.Now(),
		})
		return nil
	}

	s.snapshot.Store(&Snapshot{
		Records:  records,
		Source:   s.csvPath,
		LoadedAt: time.Now(),
	})

	duration := time.Since(start)
	s.logger.Info("sales data loaded",
		"file", s.csvPath,
		"records", len(records),
		"duration", duration,
	)
	return nil
}

// Refresh rebuilds the snapshot from the data file.
func (s *Store) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// Watch reloads the table whenever the data file changes. Blocks until the
// context is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so the file can be replaced atomically.
	dir := filepath.Dir(s.csvPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.csvPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Debounce bursts of write events from a single save.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("file watcher error", "error", err)

		case <-reload:
			s.logger.Info("data file changed, refreshing table", "file", s.csvPath)
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("refresh failed", "error", err)
			}
		}
	}
}

type parsedRow struct {
	record       models.SalesRecord
	missingSales bool
	valid        bool
}

func (s *Store) loadCSV(ctx context.Context, filename string) ([]models.SalesRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("empty file")
	}
	columns := headerIndex(scanner.Text())

	var rows []parsedRow
	batch := make([]string, 0, batchSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		batch = append(batch, scanner.Text())
		if len(batch) >= batchSize {
			parsed, err := parseBatch(ctx, batch, columns)
			if err != nil {
				return nil, err
			}
			rows = append(rows, parsed...)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		parsed, err := parseBatch(ctx, batch, columns)
		if err != nil {
			return nil, err
		}
		rows = append(rows, parsed...)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan error: %w", err)
	}

	records := imputeAndCollect(rows)
	if len(records) == 0 {
		return nil, fmt.Errorf("no valid records found")
	}
	return records, nil
}

// parseBatch parses lines concurrently, preserving input order.
func parseBatch(ctx context.Context, batch []string, columns map[string]int) ([]parsedRow, error) {
	out := make([]parsedRow, len(batch))

	var wg errgroup.Group
	wg.SetLimit(maxWorkers)

	for i, line := range batch {
		wg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			row, err := parseSalesLine(line, columns)
			if err != nil {
				out[i] = parsedRow{valid: false}
				return nil // Skip invalid rows
			}
			out[i] = row
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func headerIndex(header string) map[string]int {
	columns := make(map[string]int)
	for i, name := range strings.Split(header, ",") {
		columns[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	return columns
}

func field(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseSalesLine(line string, columns map[string]int) (parsedRow, error) {
	record := strings.Split(line, ",")

	orderNumber, err := strconv.Atoi(field(record, columns, "ORDERNUMBER"))
	if err != nil {
		return parsedRow{}, fmt.Errorf("order number: %w", err)
	}

	orderDate, err := parseDate(field(record, columns, "ORDERDATE"))
	if err != nil {
		return parsedRow{}, fmt.Errorf("order date: %w", err)
	}

	quantity, err := strconv.Atoi(field(record, columns, "QUANTITYORDERED"))
	if err != nil || quantity < 1 {
		return parsedRow{}, fmt.Errorf("quantity: invalid value")
	}

	row := parsedRow{valid: true}
	salesText := field(record, columns, "SALES")
	if salesText == "" {
		row.missingSales = true
	} else {
		sales, err := strconv.ParseFloat(salesText, 64)
		if err != nil || sales < 0 {
			row.missingSales = true
		} else {
			row.record.Sales = sales
		}
	}

	customer := field(record, columns, "CUSTOMERNAME")
	if customer == "" {
		customer = placeholderCustomer
	}

	row.record.OrderNumber = orderNumber
	row.record.OrderDate = orderDate
	row.record.Category = field(record, columns, "PRODUCTLINE")
	row.record.Country = field(record, columns, "COUNTRY")
	row.record.Quantity = quantity
	row.record.Customer = customer
	row.record.Status = field(record, columns, "STATUS")
	row.record.Derive()

	return row, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// imputeAndCollect fills missing sales amounts with the dataset median so all
// downstream aggregations see a complete table.
func imputeAndCollect(rows []parsedRow) []models.SalesRecord {
	known := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.valid && !row.missingSales {
			known = append(known, row.record.Sales)
		}
	}

	median := 0.0
	if len(known) > 0 {
		sort.Float64s(known)
		median = stat.Quantile(0.5, stat.Empirical, known, nil)
	}

	records := make([]models.SalesRecord, 0, len(rows))
	for _, row := range rows {
		if !row.valid {
			continue
		}
		if row.missingSales {
			row.record.Sales = median
		}
		records = append(records, row.record)
	}
	return records
}

// syntheticRecords builds a deterministic sample dataset exercising every
// country, category and status.
func syntheticRecords(n int) []models.SalesRecord {
	rng := rand.New(rand.NewSource(syntheticSeed))

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(start).Hours() / 24)

	records := make([]models.SalesRecord, n)
	for i := range records {
		r := &records[i]
		r.OrderNumber = 10100 + i
		r.Sales = math.Round((1000+rng.Float64()*49000)*100) / 100
		r.OrderDate = start.AddDate(0, 0, rng.Intn(days+1))
		r.Category = syntheticCategories[rng.Intn(len(syntheticCategories))]
		r.Country = syntheticCountries[rng.Intn(len(syntheticCountries))]
		r.Quantity = 1 + rng.Intn(49)
		r.Customer = fmt.Sprintf("Customer_%d", i)
		r.Status = weightedStatus(rng.Float64())
		r.Derive()
	}
	return records
}

func weightedStatus(p float64) string {
	for _, entry := range syntheticStatusCum {
		if p < entry.cum {
			return entry.status
		}
	}
	return syntheticStatusCum[len(syntheticStatusCum)-1].status
}
