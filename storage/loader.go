package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"rankwatch/models"
)

// LoadSnapshot reads raw rows from a snapshot file (CSV, JSONL or Parquet).
func LoadSnapshot(path string) ([]*models.RawItem, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".csv":
		return ReadCSV(path)
	case ".jsonl", ".json":
		return loadJSONL(path)
	case ".parquet":
		return loadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported snapshot format: %s (supported: .csv, .jsonl, .parquet)", ext)
	}
}

// loadJSONL reads one loosely typed item object per line.
func loadJSONL(path string) ([]*models.RawItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	var rows []*models.RawItem
	scanner := bufio.NewScanner(file)

	const maxCapacity = 1024 * 1024 // 1MB per line
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(line, &obj); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}

		fields := make(map[string]string, len(obj))
		for key, raw := range obj {
			fields[key] = jsonText(raw)
		}
		rows = append(rows, rawFromFields(fields, path))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}
	return rows, nil
}

// jsonText renders a JSON scalar as text: strings unquoted, null as "".
func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

// snapshotRecord is the Parquet row layout of a cleaned item.
type snapshotRecord struct {
	Rank          int64    `parquet:"rank"`
	ItemCode      string   `parquet:"itemCode"`
	ItemName      string   `parquet:"itemName"`
	ItemPrice     int64    `parquet:"itemPrice"`
	ReviewAverage float64  `parquet:"reviewAverage"`
	ReviewCount   int64    `parquet:"reviewCount"`
	ItemURL       string   `parquet:"itemUrl"`
	ImageURL      string   `parquet:"imageUrl"`
	Features      []string `parquet:"features"`
}

// loadParquet reads snapshot rows written by WriteParquet.
func loadParquet(path string) ([]*models.RawItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[snapshotRecord](pf)
	defer reader.Close()

	records := make([]snapshotRecord, pf.NumRows())
	n, err := reader.Read(records)
	if err != nil && n < len(records) {
		return nil, fmt.Errorf("failed to read parquet rows: %w", err)
	}

	rows := make([]*models.RawItem, 0, n)
	for _, rec := range records[:n] {
		raw := &models.RawItem{
			Rank:          fmt.Sprint(rec.Rank),
			ItemCode:      rec.ItemCode,
			ItemName:      rec.ItemName,
			ItemPrice:     fmt.Sprint(rec.ItemPrice),
			ReviewAverage: fmt.Sprint(rec.ReviewAverage),
			ReviewCount:   fmt.Sprint(rec.ReviewCount),
			ItemURL:       rec.ItemURL,
			ImageURL:      rec.ImageURL,
			Source:        filepath.Base(path),
		}
		if len(rec.Features) > 0 {
			raw.Flags = make(map[string]string, len(rec.Features))
			for _, name := range rec.Features {
				raw.Flags[name] = "true"
			}
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

// WriteParquet exports a cleaned snapshot as Parquet. Only enabled feature
// flags are stored.
func WriteParquet(path string, snap *models.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("parquet: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("parquet: create file %q: %w", path, err)
	}
	defer f.Close()

	records := make([]snapshotRecord, 0, len(snap.Items))
	for _, it := range snap.Items {
		rec := snapshotRecord{
			Rank:          int64(it.Rank),
			ItemCode:      it.Code,
			ItemName:      it.Name,
			ItemPrice:     int64(it.Price),
			ReviewAverage: it.ReviewAverage,
			ReviewCount:   int64(it.ReviewCount),
			ItemURL:       it.URL,
			ImageURL:      it.ImageURL,
		}
		for _, name := range featureNames(&models.Snapshot{Items: []*models.Item{it}}) {
			if it.Features[name] {
				rec.Features = append(rec.Features, name)
			}
		}
		records = append(records, rec)
	}

	w := parquet.NewGenericWriter[snapshotRecord](f)
	if _, err := w.Write(records); err != nil {
		return fmt.Errorf("parquet: write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("parquet: close writer: %w", err)
	}
	return nil
}
