package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"rankwatch/models"
)

const timestampLayout = "2006-01-02_15-04"

// ReportStore writes change and visual reports as JSON under a data
// directory: changes/ for change reports, images/ for visual reports.
type ReportStore struct {
	changesDir string
	imagesDir  string
}

// NewReportStore creates the report directories below dataDir.
func NewReportStore(dataDir string) (*ReportStore, error) {
	rs := &ReportStore{
		changesDir: filepath.Join(dataDir, "changes"),
		imagesDir:  filepath.Join(dataDir, "images"),
	}
	for _, dir := range []string{rs.changesDir, rs.imagesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("reports: create %q: %w", dir, err)
		}
	}
	return rs, nil
}

// WriteChangeReport stores r as changes/enhanced_changes_<timestamp>.json.
func (rs *ReportStore) WriteChangeReport(r *models.ChangeReport) (string, error) {
	path := filepath.Join(rs.changesDir, "enhanced_changes_"+r.Timestamp.Format(timestampLayout)+".json")
	return path, writeJSON(path, r)
}

// WriteVisualReport stores r as images/image_analysis_<timestamp>.json.
func (rs *ReportStore) WriteVisualReport(r *models.VisualReport) (string, error) {
	path := filepath.Join(rs.imagesDir, "image_analysis_"+r.Metadata.AnalyzedAt.Format(timestampLayout)+".json")
	return path, writeJSON(path, r)
}

// LatestVisualReport loads the newest visual report, or returns nil when
// none has been written yet.
func (rs *ReportStore) LatestVisualReport() (*models.VisualReport, string, error) {
	matches, err := filepath.Glob(filepath.Join(rs.imagesDir, "image_analysis_*.json"))
	if err != nil {
		return nil, "", fmt.Errorf("reports: glob: %w", err)
	}
	if len(matches) == 0 {
		return nil, "", nil
	}

	// timestamps in the name sort chronologically
	sort.Strings(matches)
	path := matches[len(matches)-1]

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reports: read %q: %w", path, err)
	}
	var report models.VisualReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, "", fmt.Errorf("reports: parse %q: %w", path, err)
	}
	return &report, path, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("reports: create %q: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("reports: encode %q: %w", path, err)
	}
	return nil
}
