package services

import (
	"fmt"
	"testing"

	"rankwatch/models"
)

func TestDiffRankMoveScenario(t *testing.T) {
	prev := &models.Snapshot{Items: []*models.Item{itemAt("X", 1, 1000)}}
	curr := &models.Snapshot{Items: []*models.Item{itemAt("X", 10, 1000)}}

	c := NewDiffer(5, 5).Diff(prev, curr)
	if len(c.RankMoves) != 1 {
		t.Fatalf("RankMoves: got %d, want 1", len(c.RankMoves))
	}
	if c.RankMoves[0].RankDelta != -9 {
		t.Errorf("RankDelta: got %d, want -9", c.RankMoves[0].RankDelta)
	}
	if len(c.PriceMoves) != 0 || len(c.NewEntries) != 0 || len(c.Exits) != 0 {
		t.Errorf("unexpected events: %+v", c)
	}
}

func TestDiffRankThreshold(t *testing.T) {
	tests := []struct {
		from, to  int
		threshold int
		want      bool
	}{
		{10, 6, 5, false},
		{10, 5, 5, true},
		{5, 10, 5, true},
		{10, 10, 1, false},
		{40, 37, 3, true},
	}
	for _, tt := range tests {
		prev := &models.Snapshot{Items: []*models.Item{itemAt("A", tt.from, 0)}}
		curr := &models.Snapshot{Items: []*models.Item{itemAt("A", tt.to, 0)}}
		got := len(NewDiffer(tt.threshold, 5).Diff(prev, curr).RankMoves) == 1
		if got != tt.want {
			t.Errorf("%d → %d threshold %d: got %v, want %v", tt.from, tt.to, tt.threshold, got, tt.want)
		}
	}
}

func TestDiffPriceMove(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		wantPct  float64
		wantMove bool
	}{
		{"increase", 10000, 12000, 20, true},
		{"decrease", 20000, 17000, -15, true},
		{"below threshold", 10000, 10400, 0, false},
		{"unchanged", 10000, 10000, 0, false},
		{"zero previous price", 0, 15000, 0, false},
		{"rounded", 30000, 31999, 6.7, true},
	}
	for _, tt := range tests {
		prev := &models.Snapshot{Items: []*models.Item{itemAt("A", 1, tt.from)}}
		curr := &models.Snapshot{Items: []*models.Item{itemAt("A", 1, tt.to)}}
		moves := NewDiffer(5, 5).Diff(prev, curr).PriceMoves
		if (len(moves) == 1) != tt.wantMove {
			t.Errorf("%s: got %d moves, want move=%v", tt.name, len(moves), tt.wantMove)
			continue
		}
		if tt.wantMove && moves[0].PricePercent != tt.wantPct {
			t.Errorf("%s: percent got %.1f, want %.1f", tt.name, moves[0].PricePercent, tt.wantPct)
		}
	}
}

func TestDiffPartitionsCodes(t *testing.T) {
	prev := snapshotOf("prev",
		row{"a", "A", 100}, row{"b", "B", 100}, row{"c", "C", 100}, row{"d", "D", 100})
	curr := snapshotOf("curr",
		row{"c", "C", 100}, row{"e", "E", 100}, row{"a", "A", 100}, row{"f", "F", 100})

	c := NewDiffer(1, 5).Diff(prev, curr)

	seen := map[string]int{}
	for _, ev := range c.NewEntries {
		seen[ev.Code]++
	}
	for _, ev := range c.Exits {
		seen[ev.Code]++
	}
	if c.Common != 2 {
		t.Errorf("Common: got %d, want 2", c.Common)
	}
	for _, code := range []string{"b", "d", "e", "f"} {
		if seen[code] != 1 {
			t.Errorf("code %s: seen %d times in new/exit, want 1", code, seen[code])
		}
	}
	for _, code := range []string{"a", "c"} {
		if seen[code] != 0 {
			t.Errorf("common code %s should not be new or exit", code)
		}
	}
	if len(seen)+c.Common != 6 {
		t.Errorf("union size: got %d, want 6", len(seen)+c.Common)
	}
}

func TestDiffDiscoveryOrder(t *testing.T) {
	prev := snapshotOf("prev", row{"x", "X", 1}, row{"y", "Y", 1})
	var rows []row
	for i := 0; i < 5; i++ {
		rows = append(rows, row{fmt.Sprintf("n%d", i), "N", 1})
	}
	curr := snapshotOf("curr", rows...)

	c := NewDiffer(5, 5).Diff(prev, curr)
	for i, ev := range c.NewEntries {
		if ev.Code != fmt.Sprintf("n%d", i) {
			t.Errorf("new entry %d: got %s", i, ev.Code)
		}
	}
	if c.Exits[0].Code != "x" || c.Exits[1].Code != "y" {
		t.Errorf("exits should follow previous order, got %s, %s", c.Exits[0].Code, c.Exits[1].Code)
	}

	all := c.All()
	if all[0].Kind != models.ChangeNewEntry || all[len(all)-1].Kind != models.ChangeExit {
		t.Errorf("All(): unexpected ordering %v ... %v", all[0].Kind, all[len(all)-1].Kind)
	}
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	snap := snapshotOf("same", row{"a", "A", 10000}, row{"b", "B", 20000})
	c := NewDiffer(1, 1).Diff(snap, snap)
	if n := len(c.All()); n != 0 {
		t.Errorf("events: got %d, want 0", n)
	}
}
