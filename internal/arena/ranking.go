package arena

import (
	"sort"
	"time"

	"arena-server/internal/store"
)

// computeRanking orders every listed participant (leavers included, history
// counts) by score desc, completed desc, last action asc. Rank 1 wins.
func computeRanking(participants []store.Participant, progress []store.Progress) []store.RankEntry {
	byUser := make(map[string]*store.Progress, len(progress))
	for i := range progress {
		byUser[progress[i].UserID] = &progress[i]
	}

	entries := make([]store.RankEntry, 0, len(participants))
	lastAt := make(map[string]time.Time, len(participants))
	for _, p := range participants {
		e := store.RankEntry{UserID: p.UserID, Name: p.Name}
		if prog := byUser[p.UserID]; prog != nil {
			e.Score = prog.Score
			e.Completed = prog.Completed
			if prog.LastActionAt != nil {
				lastAt[p.UserID] = *prog.LastActionAt
			}
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Completed != b.Completed {
			return a.Completed
		}
		at, aok := lastAt[a.UserID]
		bt, bok := lastAt[b.UserID]
		switch {
		case aok && bok && !at.Equal(bt):
			return at.Before(bt)
		case aok != bok:
			return aok
		}
		return false
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
