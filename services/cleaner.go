package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"rankwatch/config"
	"rankwatch/models"
	"rankwatch/utils"
)

var (
	// numberRegexp captures the first integer-looking value, commas allowed
	numberRegexp = regexp.MustCompile(`\d[\d,]*`)
	// decimalRegexp captures a decimal such as a review average
	decimalRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

type featureRule struct {
	name string
	re   *regexp.Regexp
}

// Cleaner turns RawItems into a typed Snapshot. Malformed fields degrade to
// neutral defaults instead of failing the row.
type Cleaner struct {
	logger *utils.Logger
	rules  []featureRule
}

// NewCleaner creates a Cleaner using the catalog's feature rules. Rules that
// fail to compile are skipped with a warning.
func NewCleaner(logger *utils.Logger, catalog *config.Catalog) *Cleaner {
	c := &Cleaner{logger: logger}
	if catalog == nil {
		return c
	}

	names := make([]string, 0, len(catalog.FeatureRules))
	for name := range catalog.FeatureRules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		re, err := regexp.Compile(catalog.FeatureRules[name])
		if err != nil {
			logger.Warn("[cleaner] Skipping feature rule %s: %v", name, err)
			continue
		}
		c.rules = append(c.rules, featureRule{name: name, re: re})
	}
	return c
}

// Clean processes raw rows into a snapshot. Rows without an item code and
// repeated codes are dropped; ranks are re-densified in input order.
func (c *Cleaner) Clean(source string, takenAt time.Time, raw []*models.RawItem) (*models.Snapshot, error) {
	seen := make(map[string]struct{})
	items := make([]*models.Item, 0, len(raw))

	type ranked struct {
		item *models.Item
		pos  int
	}
	rows := make([]ranked, 0, len(raw))

	for i, r := range raw {
		code := strings.TrimSpace(r.ItemCode)
		if code == "" {
			c.logger.Warn("[cleaner] Dropping row %d with empty item code: %s", i+1, truncate(r.ItemName, 40))
			continue
		}
		if _, dup := seen[code]; dup {
			c.logger.Debug("[cleaner] Duplicate item code skipped: %s", code)
			continue
		}
		seen[code] = struct{}{}

		name := normaliseText(r.ItemName)
		item := &models.Item{
			Code:          code,
			Name:          name,
			Price:         parsePrice(r.ItemPrice),
			ReviewAverage: parseReviewAverage(r.ReviewAverage),
			ReviewCount:   parseCount(r.ReviewCount),
			URL:           strings.TrimSpace(r.ItemURL),
			ImageURL:      strings.TrimSpace(r.ImageURL),
			Features:      c.features(name, r.Flags),
		}

		pos := parseCount(r.Rank)
		if pos < 1 {
			pos = i + 1
		}
		rows = append(rows, ranked{item: item, pos: pos})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("cleaner: %s has no usable rows: %w", source, models.ErrInputUnavailable)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].pos < rows[j].pos })
	for i, r := range rows {
		r.item.Rank = i + 1
		items = append(items, r.item)
	}

	c.logger.Info("[cleaner] %s: cleaned %d → %d items (dropped %d)",
		source, len(raw), len(items), len(raw)-len(items))

	return &models.Snapshot{Source: source, TakenAt: takenAt, Items: items}, nil
}

// features evaluates the catalog rules against the name. Explicit flag
// columns from the source row take precedence over the rules.
func (c *Cleaner) features(name string, flags map[string]string) map[string]bool {
	out := make(map[string]bool, len(c.rules)+len(flags))
	for _, rule := range c.rules {
		out[rule.name] = rule.re.MatchString(name)
	}
	for key, raw := range flags {
		if v, ok := parseFlag(raw); ok {
			out[key] = v
		}
	}
	return out
}

// parsePrice extracts a yen price.
// Examples:
//
//	"12800" → 12800
//	"¥12,800" → 12800
//	"12,800円" → 12800
//	"12800.0" → 12800
func parsePrice(raw string) int {
	match := numberRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseReviewAverage extracts a 0.0–5.0 review average.
func parseReviewAverage(raw string) float64 {
	match := decimalRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	val, err := strconv.ParseFloat(match, 64)
	if err != nil || val < 0 || val > 5 {
		return 0
	}
	return val
}

func parseCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= 0 {
		return int(f)
	}
	return parsePrice(raw)
}

func parseFlag(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	}
	return false, false
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
