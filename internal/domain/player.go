package domain

// PlayerRecord holds everything the store knows about a single player
// within the current season. Timestamps are milliseconds since epoch to
// match the wire contract.
type PlayerRecord struct {
	UID          string           `json:"uid"`
	Nickname     string           `json:"nickname"`
	Avatar       string           `json:"avatar"`
	UpdatedAt    int64            `json:"updatedAt"`
	GameScores   map[string]int64 `json:"gameScores"`
	OverallScore int64            `json:"overallScore"`
}

// Clone returns a deep copy so callers can hand records across goroutine
// boundaries without aliasing the store's map.
func (p *PlayerRecord) Clone() *PlayerRecord {
	if p == nil {
		return nil
	}
	scores := make(map[string]int64, len(p.GameScores))
	for id, s := range p.GameScores {
		scores[id] = s
	}
	cp := *p
	cp.GameScores = scores
	return &cp
}

// SumScores recomputes the overall score from the per-game scores.
func (p *PlayerRecord) SumScores() int64 {
	var total int64
	for _, s := range p.GameScores {
		total += s
	}
	return total
}
