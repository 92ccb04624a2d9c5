package models

// ChangeKind tags a ChangeEvent.
type ChangeKind string

const (
	ChangeNewEntry  ChangeKind = "new_entry"
	ChangeExit      ChangeKind = "exit"
	ChangeRankMove  ChangeKind = "rank_move"
	ChangePriceMove ChangeKind = "price_move"
)

// ChangeEvent is one detected difference between two snapshots, scoped to a
// single item code. Fields that do not apply to the kind stay zero.
type ChangeEvent struct {
	Kind         ChangeKind `json:"type"`
	Code         string     `json:"itemCode"`
	Name         string     `json:"itemName"`
	URL          string     `json:"itemUrl,omitempty"`
	Rank         int        `json:"rank,omitempty"`
	PrevRank     int        `json:"previousRank,omitempty"`
	Price        int        `json:"price,omitempty"`
	PrevPrice    int        `json:"previousPrice,omitempty"`
	RankDelta    int        `json:"rankDelta,omitempty"`
	PricePercent float64    `json:"pricePercent,omitempty"`
}

// Tier is a priority bucket derived from an importance score.
type Tier string

const (
	TierCritical  Tier = "critical"
	TierImportant Tier = "important"
	TierNotable   Tier = "notable"
	TierDiscarded Tier = "discarded"
)

// ScoredChange is a ChangeEvent with its importance score and tier.
type ScoredChange struct {
	ChangeEvent
	Score int    `json:"importanceScore"`
	Tier  Tier   `json:"tier"`
	Label string `json:"label"`
}
