package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalogDefaults(t *testing.T) {
	cat, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(cat.SpecialTerms) == 0 {
		t.Error("default catalog should carry special terms")
	}
	if _, ok := cat.FeatureRules["has_USB"]; !ok {
		t.Error("default catalog should carry the has_USB rule")
	}
	if err := cat.Validate(); err != nil {
		t.Errorf("default catalog should validate: %v", err)
	}
}

func TestLoadCatalogOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `
special_terms: ["premium"]
feature_rules:
  has_wheels: "(?i)wheel|キャスター"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(cat.SpecialTerms) != 1 || cat.SpecialTerms[0] != "premium" {
		t.Errorf("SpecialTerms: got %v, want [premium]", cat.SpecialTerms)
	}
	if _, ok := cat.FeatureRules["has_wheels"]; !ok {
		t.Error("overlay rule has_wheels missing")
	}
	if _, ok := cat.FeatureRules["has_USB"]; !ok {
		t.Error("default rule has_USB should survive the overlay")
	}
	if len(cat.ColorWords["black"]) == 0 {
		t.Error("untouched sections should keep their defaults")
	}
}

func TestLoadCatalogRejectsBadRule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("feature_rules:\n  has_bad: \"(\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Error("expected an error for an invalid regular expression")
	}
}

func TestLoadReadsEnv(t *testing.T) {
	t.Setenv("RANK_THRESHOLD", "3")
	t.Setenv("PRICE_THRESHOLD_PCT", "10")
	t.Setenv("SORT_TIERS_BY_SCORE", "true")
	t.Setenv("CRITICAL_CAP", "not-a-number")

	cfg := Load()
	if cfg.RankThreshold != 3 {
		t.Errorf("RankThreshold: got %d, want 3", cfg.RankThreshold)
	}
	if cfg.PriceThresholdPct != 10 {
		t.Errorf("PriceThresholdPct: got %.1f, want 10", cfg.PriceThresholdPct)
	}
	if !cfg.SortTiersByScore {
		t.Error("SortTiersByScore should be true")
	}
	if cfg.CriticalCap != 20 {
		t.Errorf("CriticalCap: got %d, want fallback 20", cfg.CriticalCap)
	}
}
