package services

import (
	"math"

	"rankwatch/models"
)

// Differ detects item-level changes between two snapshots keyed by item code.
type Differ struct {
	// RankThreshold is the minimum |rank change| recorded as a RankMove.
	RankThreshold int
	// PriceThresholdPct is the minimum |percent change| recorded as a PriceMove.
	PriceThresholdPct float64
}

// NewDiffer creates a Differ. Non-positive thresholds fall back to 5 places
// and 5 percent.
func NewDiffer(rankThreshold int, priceThresholdPct float64) *Differ {
	if rankThreshold <= 0 {
		rankThreshold = 5
	}
	if priceThresholdPct <= 0 {
		priceThresholdPct = 5
	}
	return &Differ{RankThreshold: rankThreshold, PriceThresholdPct: priceThresholdPct}
}

// Changes holds the four disjoint event sets of one comparison.
type Changes struct {
	NewEntries []models.ChangeEvent
	Exits      []models.ChangeEvent
	RankMoves  []models.ChangeEvent
	PriceMoves []models.ChangeEvent
	// Common is the number of codes present in both snapshots.
	Common int
}

// All returns every event in discovery order: new entries, exits, rank moves,
// price moves.
func (c *Changes) All() []models.ChangeEvent {
	all := make([]models.ChangeEvent, 0,
		len(c.NewEntries)+len(c.Exits)+len(c.RankMoves)+len(c.PriceMoves))
	all = append(all, c.NewEntries...)
	all = append(all, c.Exits...)
	all = append(all, c.RankMoves...)
	all = append(all, c.PriceMoves...)
	return all
}

// Diff compares prev to curr. Events follow current snapshot order, exits
// follow previous snapshot order.
func (d *Differ) Diff(prev, curr *models.Snapshot) *Changes {
	changes := &Changes{}
	prevIdx := indexOf(prev)
	currIdx := indexOf(curr)

	if curr != nil {
		for _, now := range curr.Items {
			before, ok := prevIdx[now.Code]
			if !ok {
				changes.NewEntries = append(changes.NewEntries, models.ChangeEvent{
					Kind:  models.ChangeNewEntry,
					Code:  now.Code,
					Name:  now.Name,
					URL:   now.URL,
					Rank:  now.Rank,
					Price: now.Price,
				})
				continue
			}

			changes.Common++
			if ev, ok := d.rankMove(before, now); ok {
				changes.RankMoves = append(changes.RankMoves, ev)
			}
			if ev, ok := d.priceMove(before, now); ok {
				changes.PriceMoves = append(changes.PriceMoves, ev)
			}
		}
	}

	if prev != nil {
		for _, before := range prev.Items {
			if _, ok := currIdx[before.Code]; ok {
				continue
			}
			changes.Exits = append(changes.Exits, models.ChangeEvent{
				Kind:      models.ChangeExit,
				Code:      before.Code,
				Name:      before.Name,
				URL:       before.URL,
				PrevRank:  before.Rank,
				PrevPrice: before.Price,
			})
		}
	}

	return changes
}

func (d *Differ) rankMove(before, now *models.Item) (models.ChangeEvent, bool) {
	delta := before.Rank - now.Rank
	if delta == 0 || abs(delta) < d.RankThreshold {
		return models.ChangeEvent{}, false
	}
	return models.ChangeEvent{
		Kind:      models.ChangeRankMove,
		Code:      now.Code,
		Name:      now.Name,
		URL:       now.URL,
		Rank:      now.Rank,
		PrevRank:  before.Rank,
		Price:     now.Price,
		PrevPrice: before.Price,
		RankDelta: delta,
	}, true
}

func (d *Differ) priceMove(before, now *models.Item) (models.ChangeEvent, bool) {
	if before.Price <= 0 || before.Price == now.Price {
		return models.ChangeEvent{}, false
	}
	pct := PercentChange(float64(before.Price), float64(now.Price))
	if math.Abs(pct) < d.PriceThresholdPct {
		return models.ChangeEvent{}, false
	}
	return models.ChangeEvent{
		Kind:         models.ChangePriceMove,
		Code:         now.Code,
		Name:         now.Name,
		URL:          now.URL,
		Rank:         now.Rank,
		PrevRank:     before.Rank,
		Price:        now.Price,
		PrevPrice:    before.Price,
		PricePercent: round1(pct),
	}, true
}

// PercentChange returns (to-from)/from*100, or 0 when from is 0.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func indexOf(s *models.Snapshot) map[string]*models.Item {
	if s == nil {
		return map[string]*models.Item{}
	}
	return s.Index()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
