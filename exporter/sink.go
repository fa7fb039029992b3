package exporter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"retail-crawler/internal/types"
)

// Sink appends records of one retailer to a dated gzip CSV file.
// Every header or batch write is a complete gzip member, so the file
// stays a valid multi-member gzip stream between writes.
type Sink struct {
	path   string
	site   *types.SiteConfig
	logger types.Logger
	now    func() time.Time
}

// pathLocks serializes writers of the same file within the process
var pathLocks sync.Map

func lockPath(path string) func() {
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// NewSink creates the sink for a site. The output path is
// <outputDir>/<YYYY>/<MM>/<DD>/<retailer>.csv.gz for the day of day.
func NewSink(outputDir string, site *types.SiteConfig, day time.Time, logger types.Logger) *Sink {
	return &Sink{
		path:   OutputPath(outputDir, site, day),
		site:   site,
		logger: logger,
		now:    time.Now,
	}
}

// OutputPath returns the dated file path of a site
func OutputPath(outputDir string, site *types.SiteConfig, day time.Time) string {
	return filepath.Join(outputDir, day.Format("2006"), day.Format("01"), day.Format("02"), site.Slug()+".csv.gz")
}

// Path returns the file the sink writes to
func (s *Sink) Path() string {
	return s.path
}

// Append writes one batch and returns the number of rows written.
// Records failing validation or serialization are logged and skipped.
func (s *Sink) Append(records []types.Record) (int, error) {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		if !record.IsValid() {
			s.logger.Warnf("Refusing record without name or price: %v", record["link"])
			continue
		}
		s.stamp(record)

		row, err := formatRow(record)
		if err != nil {
			s.logger.Errorf("Failed to serialize record %v: %v", record["link"], err)
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	unlock := lockPath(s.path)
	defer unlock()

	if err := s.ensureHeader(); err != nil {
		return 0, err
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	if err := writeMember(file, rows); err != nil {
		file.Close()
		return 0, fmt.Errorf("failed to append to %s: %w", s.path, err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", s.path, err)
	}

	s.logger.Debugf("Appended %d records to %s", len(rows), s.path)
	return len(rows), nil
}

// ensureHeader creates the file with its header row if it does not exist yet
func (s *Sink) ensureHeader() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}

	if err := writeMember(file, [][]string{types.Fieldnames}); err != nil {
		file.Close()
		return fmt.Errorf("failed to write header to %s: %w", s.path, err)
	}
	s.logger.Infof("Created output file %s", s.path)
	return file.Close()
}

func (s *Sink) stamp(record types.Record) {
	record["retailer"] = s.site.Name
	record["retailer_country"] = s.site.RetailerCountry
	record["currency"] = s.site.Currency
	if _, ok := record["scraped_at"]; !ok || record["scraped_at"] == nil {
		record["scraped_at"] = s.now().Format(types.TimestampFormat)
	}
}

// writeMember writes rows as one gzip member
func writeMember(file *os.File, rows [][]string) error {
	gz := gzip.NewWriter(file)
	w := csv.NewWriter(gz)
	if err := w.WriteAll(rows); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// formatRow renders a record in canonical column order; unknown fields are dropped
func formatRow(record types.Record) ([]string, error) {
	row := make([]string, len(types.Fieldnames))
	for i, field := range types.Fieldnames {
		value, err := formatValue(record[field])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		row[i] = value
	}
	return row, nil
}

func formatValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
