package arena

import (
	"testing"
	"time"

	"arena-server/internal/store"
)

func TestComputeRankingOrder(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := base.Add(d)
		return &v
	}
	participants := []store.Participant{
		{UserID: "a", Name: "A"},
		{UserID: "b", Name: "B"},
		{UserID: "c", Name: "C", HasLeft: true},
		{UserID: "d", Name: "D"},
	}
	progress := []store.Progress{
		{UserID: "a", Score: 500, Completed: false, LastActionAt: at(3 * time.Minute)},
		{UserID: "b", Score: 500, Completed: true, LastActionAt: at(4 * time.Minute)},
		{UserID: "c", Score: 700, LastActionAt: at(time.Minute)},
	}

	got := computeRanking(participants, progress)
	if len(got) != 4 {
		t.Fatalf("entries = %d, want every listed participant", len(got))
	}
	// Highest score wins even after leaving; completion breaks the tie at
	// 500; the no-progress participant lands last.
	want := []string{"c", "b", "a", "d"}
	for i, u := range want {
		if got[i].UserID != u {
			t.Fatalf("rank %d = %s, want %s (full: %+v)", i+1, got[i].UserID, u, got)
		}
		if got[i].Rank != i+1 {
			t.Fatalf("rank field = %d, want %d", got[i].Rank, i+1)
		}
	}
}

func TestComputeRankingEarlierActionWinsTie(t *testing.T) {
	base := time.Now()
	early, late := base, base.Add(time.Second)
	participants := []store.Participant{{UserID: "x"}, {UserID: "y"}}
	progress := []store.Progress{
		{UserID: "x", Score: 300, Completed: true, LastActionAt: &late},
		{UserID: "y", Score: 300, Completed: true, LastActionAt: &early},
	}
	got := computeRanking(participants, progress)
	if got[0].UserID != "y" {
		t.Fatalf("winner = %s, want y (finished first)", got[0].UserID)
	}
}
