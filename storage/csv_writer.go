package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"house-finder/models"
)

// CSVWriter writes ranked listings to a CSV file with one score column per
// objective. It is safe for concurrent use.
type CSVWriter struct {
	mu         sync.Mutex
	file       *os.File
	writer     *csv.Writer
	objectives []string
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string, objectives []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	header := []string{"run_id", "rank", "listing_id", "address", "price", "total_score"}
	header = append(header, objectives...)
	header = append(header, "url")
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w, objectives: objectives}, nil
}

// Write appends one row per ranked listing. Unavailable scores are left blank.
func (c *CSVWriter) Write(run models.RunInfo, ranked []*models.EvaluatedListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range ranked {
		row := []string{
			run.ID,
			strconv.Itoa(i + 1),
			e.Listing.ID,
			e.Listing.Address,
			strconv.Itoa(e.Listing.Price),
			strconv.FormatFloat(e.TotalScore, 'f', 2, 64),
		}
		for _, name := range c.objectives {
			cell := ""
			if r, ok := e.Result(name); ok && r.Available {
				cell = strconv.FormatFloat(r.Score, 'f', 2, 64)
			}
			row = append(row, cell)
		}
		row = append(row, e.Listing.URL)

		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
