package domain

// StateVersion tags the persisted file layout.
const StateVersion = 1

// Season describes the current weekly ranking epoch.
type Season struct {
	ID      string `json:"id"`
	StartAt int64  `json:"startAt"`
	EndAt   int64  `json:"endAt"`
}

// StoreState is the root aggregate owned by the ranking store. Revision is
// a monotonically increasing cache-invalidation token, not an ordering
// guarantee across processes.
type StoreState struct {
	Version   int                      `json:"version"`
	Revision  int64                    `json:"revision"`
	UpdatedAt int64                    `json:"updatedAt"`
	Season    Season                   `json:"season"`
	Players   map[string]*PlayerRecord `json:"players"`
}

// StateInfo is the small payload pushed to subscribers and returned by the
// health endpoint.
type StateInfo struct {
	Revision  int64  `json:"revision"`
	Season    Season `json:"season"`
	UpdatedAt int64  `json:"updatedAt"`
}

// RankingEntry is one row of a computed ranking.
type RankingEntry struct {
	Rank     int    `json:"rank"`
	UID      string `json:"uid"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Score    int64  `json:"score"`
}

// SyncRequest is a client-supplied session report. GameScores values are
// deliberately untyped: every entry goes through the sanitizer before it
// touches the store.
type SyncRequest struct {
	PlayerID   string         `json:"playerId"`
	Nickname   string         `json:"nickname"`
	Avatar     string         `json:"avatar"`
	GameScores map[string]any `json:"gameScores"`
}

// SyncResult reports the outcome of a sync.
type SyncResult struct {
	PlayerID     string
	OverallScore int64
	Changed      bool
	Season       Season
	Revision     int64
}

// SnapshotRequest selects what a snapshot read should include.
type SnapshotRequest struct {
	PlayerID string
	GameIDs  []string
	TopLimit int
}

// GameRanking is the per-game slice of a snapshot.
type GameRanking struct {
	Top []RankingEntry `json:"top"`
	My  *RankingEntry  `json:"my"`
}

// Snapshot is a read-only, point-in-time ranking result.
type Snapshot struct {
	Enabled     bool                   `json:"enabled"`
	Season      Season                 `json:"season"`
	Revision    int64                  `json:"revision"`
	GeneratedAt int64                  `json:"generatedAt"`
	OverallTop  []RankingEntry         `json:"overallTop"`
	MyOverall   *RankingEntry          `json:"myOverall"`
	Games       map[string]GameRanking `json:"games"`
}

// SyncEvent is the audit record emitted after a meaningful sync.
type SyncEvent struct {
	UID          string           `json:"uid"`
	GameScores   map[string]int64 `json:"gameScores"`
	OverallScore int64            `json:"overallScore"`
	Revision     int64            `json:"revision"`
	SeasonID     string           `json:"seasonId"`
	Timestamp    int64            `json:"timestamp"`
}

// Stats summarizes the current season for the stats endpoint.
type Stats struct {
	Season       Season `json:"season"`
	Revision     int64  `json:"revision"`
	TotalPlayers int    `json:"totalPlayers"`
	TopScore     int64  `json:"topScore,omitempty"`
}
