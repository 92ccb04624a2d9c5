package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"rankwatch/models"
)

// snapshotColumns are the fixed leading columns of a snapshot CSV. Feature
// flag columns (has_*) follow in name order.
var snapshotColumns = []string{
	"rank", "itemCode", "itemName", "itemPrice", "reviewAverage", "reviewCount", "itemUrl", "imageUrl",
}

// CSVWriter writes cleaned snapshots to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu   sync.Mutex
	file *os.File
}

// NewCSVWriter creates (or truncates) the CSV file at the given path.
// Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}
	return &CSVWriter{file: f}, nil
}

// WriteSnapshot writes the header and every item of snap, replacing whatever
// the file held before.
func (c *CSVWriter) WriteSnapshot(snap *models.Snapshot) error {
	return c.WriteAnnotated(snap, "", nil)
}

// WriteAnnotated is WriteSnapshot plus one trailing column holding
// values[itemCode]. The column is not a feature flag and is ignored when the
// file is read back. An empty column name writes no extra column.
func (c *CSVWriter) WriteAnnotated(snap *models.Snapshot, column string, values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.file.Truncate(0); err != nil {
		return fmt.Errorf("csv: truncate: %w", err)
	}
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("csv: seek: %w", err)
	}

	flags := featureNames(snap)
	header := append(append([]string{}, snapshotColumns...), flags...)
	if column != "" {
		header = append(header, column)
	}

	w := csv.NewWriter(c.file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, it := range snap.Items {
		row := []string{
			strconv.Itoa(it.Rank),
			it.Code,
			it.Name,
			strconv.Itoa(it.Price),
			strconv.FormatFloat(it.ReviewAverage, 'f', -1, 64),
			strconv.Itoa(it.ReviewCount),
			it.URL,
			it.ImageURL,
		}
		for _, name := range flags {
			row = append(row, strconv.FormatBool(it.Features[name]))
		}
		if column != "" {
			row = append(row, values[it.Code])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// Close closes the underlying file.
func (c *CSVWriter) Close() error {
	return c.file.Close()
}

func featureNames(snap *models.Snapshot) []string {
	set := make(map[string]struct{})
	for _, it := range snap.Items {
		for name := range it.Features {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadCSV reads a snapshot CSV into raw rows. Missing columns yield empty
// strings; has_* columns become flags.
func ReadCSV(path string) ([]*models.RawItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []*models.RawItem
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				fields[strings.TrimSpace(col)] = record[i]
			}
		}
		rows = append(rows, rawFromFields(fields, path))
	}
	return rows, nil
}

// rawFromFields maps loosely named columns onto a RawItem.
func rawFromFields(fields map[string]string, source string) *models.RawItem {
	raw := &models.RawItem{
		Rank:          fields["rank"],
		ItemCode:      fields["itemCode"],
		ItemName:      fields["itemName"],
		ItemPrice:     fields["itemPrice"],
		ReviewAverage: fields["reviewAverage"],
		ReviewCount:   fields["reviewCount"],
		ItemURL:       fields["itemUrl"],
		ImageURL:      fields["imageUrl"],
		Source:        filepath.Base(source),
	}
	for col, v := range fields {
		if strings.HasPrefix(col, "has_") {
			if raw.Flags == nil {
				raw.Flags = make(map[string]string)
			}
			raw.Flags[col] = v
		}
	}
	return raw
}
