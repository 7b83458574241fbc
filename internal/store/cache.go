package store

import (
	"sort"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

// rankingCache is a sorted ranking computed at one revision. It is valid
// only while its revision matches the live state; any mutation clears the
// whole per-game cache map, so a stale entry is never served.
type rankingCache struct {
	revision int64
	entries  []domain.RankingEntry
	byUID    map[string]int
}

// top returns a copy of the first n entries.
func (c *rankingCache) top(n int) []domain.RankingEntry {
	if n > len(c.entries) {
		n = len(c.entries)
	}
	out := make([]domain.RankingEntry, n)
	copy(out, c.entries[:n])
	return out
}

// entryFor returns a copy of the uid's entry, or nil when unranked.
func (c *rankingCache) entryFor(uid string) *domain.RankingEntry {
	if uid == "" {
		return nil
	}
	i, ok := c.byUID[uid]
	if !ok {
		return nil
	}
	entry := c.entries[i]
	return &entry
}

func (s *Store) overallRankingLocked() *rankingCache {
	if s.overallCache != nil && s.overallCache.revision == s.state.Revision {
		return s.overallCache
	}
	s.overallCache = s.buildRankingLocked(func(p *domain.PlayerRecord) int64 {
		return p.OverallScore
	})
	return s.overallCache
}

func (s *Store) gameRankingLocked(gameID string) *rankingCache {
	if c, ok := s.gameCaches[gameID]; ok && c.revision == s.state.Revision {
		return c
	}
	c := s.buildRankingLocked(func(p *domain.PlayerRecord) int64 {
		return p.GameScores[gameID]
	})
	s.gameCaches[gameID] = c
	return c
}

// buildRankingLocked sorts all players with a positive score. Comparator:
// score descending, then earlier UpdatedAt (first to reach the score wins
// the tie), then uid ascending for a deterministic total order.
func (s *Store) buildRankingLocked(score func(*domain.PlayerRecord) int64) *rankingCache {
	s.rebuilds++

	type ranked struct {
		entry     domain.RankingEntry
		updatedAt int64
	}
	rows := make([]ranked, 0, len(s.state.Players))
	for _, p := range s.state.Players {
		sc := score(p)
		if sc <= 0 {
			continue
		}
		rows = append(rows, ranked{
			entry: domain.RankingEntry{
				UID:      p.UID,
				Nickname: p.Nickname,
				Avatar:   p.Avatar,
				Score:    sc,
			},
			updatedAt: p.UpdatedAt,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.entry.Score != b.entry.Score {
			return a.entry.Score > b.entry.Score
		}
		if a.updatedAt != b.updatedAt {
			return a.updatedAt < b.updatedAt
		}
		return a.entry.UID < b.entry.UID
	})

	cache := &rankingCache{
		revision: s.state.Revision,
		entries:  make([]domain.RankingEntry, len(rows)),
		byUID:    make(map[string]int, len(rows)),
	}
	for i, row := range rows {
		row.entry.Rank = i + 1
		cache.entries[i] = row.entry
		cache.byUID[row.entry.UID] = i
	}
	return cache
}

func (s *Store) invalidateLocked() {
	s.overallCache = nil
	s.gameCaches = make(map[string]*rankingCache)
}
