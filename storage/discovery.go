package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"rankwatch/models"
)

const (
	snapshotPrefix   = "rank_base_"
	withImagesSuffix = "_with_images"
	dateLayout       = "2006-01-02"
)

var snapshotExts = map[string]bool{".csv": true, ".jsonl": true, ".parquet": true}

// snapshotDateRegexp extracts the date from rank_base_<date>[...].<ext>.
var snapshotDateRegexp = regexp.MustCompile(`rank_base_(\d{4}-\d{2}-\d{2})`)

// SnapshotFileName returns the canonical file name of a snapshot taken on day.
func SnapshotFileName(day time.Time, withImages bool, ext string) string {
	name := snapshotPrefix + day.Format(dateLayout)
	if withImages {
		name += withImagesSuffix
	}
	return name + ext
}

// SnapshotDate parses the date encoded in a snapshot file name.
func SnapshotDate(path string) (time.Time, bool) {
	m := snapshotDateRegexp.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FindLatestPair returns the newest and the second newest snapshot in dir.
// Each date counts once; a _with_images file wins over a plain one of the
// same date.
func FindLatestPair(dir string) (current, previous string, err error) {
	paths, err := listSnapshots(dir)
	if err != nil {
		return "", "", err
	}
	if len(paths) < 2 {
		return "", "", fmt.Errorf("snapshots: need two snapshots in %q, found %d: %w",
			dir, len(paths), models.ErrInputUnavailable)
	}
	n := len(paths)
	return paths[n-1], paths[n-2], nil
}

// FindLatest returns the newest snapshot in dir.
func FindLatest(dir string) (string, error) {
	paths, err := listSnapshots(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("snapshots: none in %q: %w", dir, models.ErrInputUnavailable)
	}
	return paths[len(paths)-1], nil
}

// listSnapshots returns one snapshot path per date, oldest first.
func listSnapshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshots: read %q: %v: %w", dir, err, models.ErrInputUnavailable)
	}

	byKey := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !snapshotExts[ext] {
			continue
		}

		key := strings.TrimSuffix(strings.TrimSuffix(name, filepath.Ext(name)), withImagesSuffix)
		prev, seen := byKey[key]
		if !seen || (strings.Contains(name, withImagesSuffix) && !strings.Contains(prev, withImagesSuffix)) {
			byKey[key] = name
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		paths = append(paths, filepath.Join(dir, byKey[k]))
	}
	return paths, nil
}
