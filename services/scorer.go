package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"rankwatch/models"
)

// Scorer assigns a deterministic importance score to change events. It holds
// no state besides its compiled configuration and is safe to share.
type Scorer struct {
	special *regexp.Regexp
}

// NewScorer compiles the special terms into a single case-insensitive
// matcher. An empty term list disables the keyword bonus.
func NewScorer(specialTerms []string) *Scorer {
	quoted := make([]string, 0, len(specialTerms))
	for _, term := range specialTerms {
		term = strings.TrimSpace(term)
		if term != "" {
			quoted = append(quoted, regexp.QuoteMeta(term))
		}
	}
	if len(quoted) == 0 {
		return &Scorer{}
	}
	return &Scorer{special: regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))}
}

// Score is the sum of the banded factors that apply to the event.
func (s *Scorer) Score(ev models.ChangeEvent) int {
	rank, price := ev.Rank, ev.Price
	if ev.Kind == models.ChangeExit {
		rank, price = ev.PrevRank, ev.PrevPrice
	}

	score := rankBand(rank) + priceBand(price)
	switch ev.Kind {
	case models.ChangeRankMove:
		score += moveBand(abs(ev.RankDelta))
	case models.ChangePriceMove:
		score += pricePercentBand(math.Abs(ev.PricePercent))
	}
	if s.special != nil && s.special.MatchString(ev.Name) {
		score += 2
	}
	return score
}

// Evaluate scores every event, keeping input order.
func (s *Scorer) Evaluate(events []models.ChangeEvent) []models.ScoredChange {
	scored := make([]models.ScoredChange, 0, len(events))
	for _, ev := range events {
		score := s.Score(ev)
		scored = append(scored, models.ScoredChange{
			ChangeEvent: ev,
			Score:       score,
			Tier:        TierFor(score),
			Label:       describe(ev),
		})
	}
	return scored
}

// TierFor maps a score to its tier: critical ≥5, important 3–4, notable 2.
func TierFor(score int) models.Tier {
	switch {
	case score >= 5:
		return models.TierCritical
	case score >= 3:
		return models.TierImportant
	case score == 2:
		return models.TierNotable
	default:
		return models.TierDiscarded
	}
}

func rankBand(rank int) int {
	switch {
	case rank <= 0:
		return 0
	case rank <= 30:
		return 3
	case rank <= 100:
		return 2
	case rank <= 200:
		return 1
	}
	return 0
}

func moveBand(magnitude int) int {
	switch {
	case magnitude >= 50:
		return 3
	case magnitude >= 20:
		return 2
	case magnitude >= 10:
		return 1
	}
	return 0
}

func priceBand(price int) int {
	switch {
	case price >= 50000:
		return 3
	case price >= 30000:
		return 2
	case price >= 15000:
		return 1
	}
	return 0
}

func pricePercentBand(pct float64) int {
	switch {
	case pct >= 20:
		return 3
	case pct >= 10:
		return 2
	case pct >= 5:
		return 1
	}
	return 0
}

func describe(ev models.ChangeEvent) string {
	switch ev.Kind {
	case models.ChangeNewEntry:
		return fmt.Sprintf("new entry at rank %d", ev.Rank)
	case models.ChangeExit:
		return fmt.Sprintf("dropped out from rank %d", ev.PrevRank)
	case models.ChangeRankMove:
		direction := "up"
		if ev.RankDelta < 0 {
			direction = "down"
		}
		return fmt.Sprintf("rank %d → %d (%s %d)", ev.PrevRank, ev.Rank, direction, abs(ev.RankDelta))
	case models.ChangePriceMove:
		direction := "increase"
		if ev.PricePercent < 0 {
			direction = "decrease"
		}
		return fmt.Sprintf("price %d → %d (%s %+.1f%%)", ev.PrevPrice, ev.Price, direction, ev.PricePercent)
	}
	return string(ev.Kind)
}
