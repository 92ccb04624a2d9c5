package models

import "time"

// RawItem holds an unprocessed ranking row exactly as a source delivered it.
// Every field is a string; parsing and defaults happen once, in the cleaner.
type RawItem struct {
	Rank          string
	ItemCode      string
	ItemName      string
	ItemPrice     string
	ReviewAverage string
	ReviewCount   string
	ItemURL       string
	ImageURL      string
	Flags         map[string]string
	FetchedAt     time.Time
	Source        string
}

// Item is the cleaned, typed ranking record.
type Item struct {
	Rank          int             `json:"rank"`
	Code          string          `json:"itemCode"`
	Name          string          `json:"itemName"`
	Price         int             `json:"itemPrice"`
	ReviewAverage float64         `json:"reviewAverage"`
	ReviewCount   int             `json:"reviewCount"`
	URL           string          `json:"itemUrl"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	Features      map[string]bool `json:"features,omitempty"`
}

// Snapshot is a rank-ordered set of items taken at one point in time.
// Item codes are unique within a snapshot.
type Snapshot struct {
	Source  string
	TakenAt time.Time
	Items   []*Item
}

// Index maps item code to item.
func (s *Snapshot) Index() map[string]*Item {
	idx := make(map[string]*Item, len(s.Items))
	for _, it := range s.Items {
		idx[it.Code] = it
	}
	return idx
}

// Len returns the number of items, treating a nil snapshot as empty.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Codes returns the item codes in rank order.
func (s *Snapshot) Codes() []string {
	if s == nil {
		return nil
	}
	codes := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		codes = append(codes, it.Code)
	}
	return codes
}
