package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Catalog is the keyword configuration shared by the cleaner, the scorer, the
// visual classifier and the statistics builder. It is loaded once per run and
// treated as read-only afterwards.
type Catalog struct {
	// SpecialTerms earn an importance bonus when an item name contains one.
	SpecialTerms []string `yaml:"special_terms"`
	// KeywordTiers partitions tracked keywords by importance tier.
	KeywordTiers map[string][]string `yaml:"keyword_tiers"`
	// FeatureRules maps a feature flag name to a regular expression over item names.
	FeatureRules map[string]string `yaml:"feature_rules"`
	// ColorWords maps a reference color name to the words that declare it.
	ColorWords map[string][]string `yaml:"color_words"`
	// MaterialWords maps a material hint to the words that declare it.
	MaterialWords map[string][]string `yaml:"material_words"`
	// MaterialHints maps a dominant color name to the materials it suggests.
	MaterialHints map[string][]string `yaml:"material_hints"`
}

// DefaultCatalog returns the built-in catalog for the suitcase ranking.
func DefaultCatalog() *Catalog {
	return &Catalog{
		SpecialTerms: []string{"限定", "新作", "日本製", "TSAロック", "アルミ"},
		KeywordTiers: map[string][]string{
			"premium":    {"アルミ", "日本製", "限定", "ブランド"},
			"functional": {"USB", "拡張", "フロントオープン", "ストッパー", "TSAロック"},
			"size":       {"機内持ち込み", "Sサイズ", "Mサイズ", "Lサイズ"},
		},
		FeatureRules: map[string]string{
			"has_USB":     `(?i)USB|ポート`,
			"has_expand":  `(?i)拡張|エキスパンド`,
			"has_frontOP": `(?i)フロント|前開き`,
		},
		ColorWords: map[string][]string{
			"black":  {"ブラック", "黒", "black"},
			"white":  {"ホワイト", "白", "white"},
			"gray":   {"グレー", "gray", "grey"},
			"silver": {"シルバー", "silver"},
			"navy":   {"ネイビー", "navy"},
			"blue":   {"ブルー", "青", "blue"},
			"red":    {"レッド", "赤", "red"},
			"pink":   {"ピンク", "pink"},
			"green":  {"グリーン", "緑", "green"},
			"yellow": {"イエロー", "黄", "yellow"},
			"orange": {"オレンジ", "orange"},
			"brown":  {"ブラウン", "茶", "brown"},
			"beige":  {"ベージュ", "beige"},
			"gold":   {"ゴールド", "gold"},
			"purple": {"パープル", "紫", "purple"},
		},
		MaterialWords: map[string][]string{
			"aluminum":  {"アルミ", "aluminum"},
			"hard-case": {"ハード", "ポリカーボネート", "polycarbonate", "hard"},
			"leather":   {"レザー", "革", "leather"},
			"fabric":    {"ソフト", "布", "ナイロン", "nylon", "fabric"},
		},
		MaterialHints: map[string][]string{
			"black":  {"hard-case", "leather"},
			"gray":   {"hard-case", "aluminum"},
			"silver": {"aluminum", "hard-case"},
			"navy":   {"hard-case", "fabric"},
			"white":  {"hard-case"},
			"brown":  {"leather"},
			"beige":  {"fabric", "leather"},
			"gold":   {"aluminum"},
			"blue":   {"hard-case"},
			"red":    {"hard-case"},
			"pink":   {"hard-case"},
			"green":  {"hard-case"},
			"yellow": {"hard-case"},
			"orange": {"hard-case"},
			"purple": {"hard-case"},
		},
	}
}

// LoadCatalog reads a YAML catalog from path on top of the defaults. Keys
// present in the file replace the default entry; an empty path returns the
// defaults.
func LoadCatalog(path string) (*Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Validate checks that every feature rule compiles.
func (c *Catalog) Validate() error {
	for name, expr := range c.FeatureRules {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("catalog: feature rule %q: %w", name, err)
		}
	}
	return nil
}
