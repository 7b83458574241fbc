// Package store owns the player records and computed rankings for the
// current season. All state lives behind one mutex; every public operation
// runs its critical section start to finish without touching disk, so
// mutation latency never includes a write. Persistence is debounced onto a
// timer and notifications fan out through the broker.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
	"github.com/funniceguy/web-minigame-factory/internal/notify"
	"github.com/funniceguy/web-minigame-factory/internal/persist"
	"github.com/funniceguy/web-minigame-factory/internal/sanitize"
	"github.com/funniceguy/web-minigame-factory/internal/season"
)

const (
	persistDebounce = 800 * time.Millisecond
	persistTimeout  = 10 * time.Second

	defaultNickname = "Player"
	defaultAvatar   = "default"
	maxNameLen      = 32
)

// Recorder receives an audit record for every meaningful sync. Calls are
// best-effort and must never delay or fail a mutation.
type Recorder interface {
	RecordSync(ctx context.Context, event domain.SyncEvent) error
}

// Store is the authoritative ranking state machine.
type Store struct {
	mu        sync.Mutex
	state     *domain.StoreState
	persister persist.Persister
	broker    *notify.Broker
	recorder  Recorder
	logger    *slog.Logger

	// injectable for season-boundary tests
	now      func() time.Time
	debounce time.Duration

	overallCache *rankingCache
	gameCaches   map[string]*rankingCache
	rebuilds     int64

	persistTimer   *time.Timer
	persistPending bool
}

// Option configures optional store collaborators.
type Option func(*Store)

// WithRecorder attaches a sync-event audit recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// New creates a store with a fresh state at the current season. Call Load
// to adopt persisted state.
func New(persister persist.Persister, broker *notify.Broker, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		persister:  persister,
		broker:     broker,
		logger:     logger,
		now:        time.Now,
		debounce:   persistDebounce,
		gameCaches: make(map[string]*rankingCache),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = &domain.StoreState{
		Version:   domain.StateVersion,
		Season:    season.CurrentWindow(s.now()),
		UpdatedAt: s.now().UnixMilli(),
		Players:   make(map[string]*domain.PlayerRecord),
	}
	return s
}

// Load adopts persisted state. Any failure falls back to the fresh empty
// state; startup never fails on a missing or corrupt file.
func (s *Store) Load(ctx context.Context) {
	loaded, err := s.persister.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == persist.ErrNotFound:
		s.logger.Info("no persisted state, starting fresh")
	case err != nil:
		s.logger.Warn("failed to load persisted state, starting fresh", "error", err)
	default:
		loaded.Version = domain.StateVersion
		s.state = loaded
		s.logger.Info("loaded persisted state",
			"revision", loaded.Revision,
			"season", loaded.Season.ID,
			"players", len(loaded.Players),
		)
	}

	s.invalidateLocked()
	s.ensureActiveSeasonLocked()
}

// EnsureActiveSeason lazily rolls the season over. It returns whether a
// reset occurred. Every read and write runs this first, which is what makes
// rollover happen even with zero traffic between boundaries.
func (s *Store) EnsureActiveSeason() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureActiveSeasonLocked()
}

func (s *Store) ensureActiveSeasonLocked() bool {
	win := season.CurrentWindow(s.now())
	if win.ID == s.state.Season.ID {
		return false
	}

	s.logger.Info("season rollover", "from", s.state.Season.ID, "to", win.ID,
		"discarded_players", len(s.state.Players))

	s.state.Season = win
	s.state.Players = make(map[string]*domain.PlayerRecord)
	s.state.Revision++
	s.state.UpdatedAt = s.now().UnixMilli()

	s.invalidateLocked()
	s.schedulePersistLocked()
	s.broker.Publish(s.infoLocked())
	return true
}

// SyncPlayer merges an untrusted session report into the store. Per-game
// scores only ever increase, so replayed or stale reports are harmless.
func (s *Store) SyncPlayer(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureActiveSeasonLocked()

	uid := sanitize.SanitizeID(req.PlayerID)
	if uid == "" {
		return nil, domain.ErrInvalidPlayerID
	}
	nickname := sanitize.SanitizeString(req.Nickname, defaultNickname, maxNameLen)
	avatar := sanitize.SanitizeString(req.Avatar, defaultAvatar, maxNameLen)
	nowMs := s.now().UnixMilli()

	prevNickname, prevAvatar := defaultNickname, defaultAvatar
	var prevOverall int64
	next := make(map[string]int64)
	if existing, ok := s.state.Players[uid]; ok {
		prevNickname, prevAvatar = existing.Nickname, existing.Avatar
		prevOverall = existing.OverallScore
		for gameID, score := range existing.GameScores {
			next[gameID] = score
		}
	}

	scoreIncreased := false
	for rawID, rawScore := range req.GameScores {
		gameID := sanitize.SanitizeID(rawID)
		if gameID == "" {
			continue
		}
		score := sanitize.ToSafeScore(rawScore)
		if score <= 0 {
			continue
		}
		if current, ok := next[gameID]; !ok || score > current {
			next[gameID] = score
			scoreIncreased = true
		}
	}

	profileChanged := nickname != prevNickname || avatar != prevAvatar

	var overall int64
	for _, score := range next {
		overall += score
	}
	// The aggregate re-check should be redundant with scoreIncreased; both
	// are kept so an aggregation bug can never hide a change.
	overallChanged := overall != prevOverall

	changed := scoreIncreased || profileChanged || overallChanged
	if changed {
		s.state.Players[uid] = &domain.PlayerRecord{
			UID:          uid,
			Nickname:     nickname,
			Avatar:       avatar,
			UpdatedAt:    nowMs,
			GameScores:   next,
			OverallScore: overall,
		}
		s.state.Revision++
		s.state.UpdatedAt = nowMs

		s.invalidateLocked()
		s.schedulePersistLocked()
		s.broker.Publish(s.infoLocked())
		s.recordSyncLocked(uid, next, overall)
	}

	return &domain.SyncResult{
		PlayerID:     uid,
		OverallScore: overall,
		Changed:      changed,
		Season:       s.state.Season,
		Revision:     s.state.Revision,
	}, nil
}

// recordSyncLocked hands the audit record to the recorder off the mutation
// path.
func (s *Store) recordSyncLocked(uid string, scores map[string]int64, overall int64) {
	if s.recorder == nil {
		return
	}
	event := domain.SyncEvent{
		UID:          uid,
		GameScores:   make(map[string]int64, len(scores)),
		OverallScore: overall,
		Revision:     s.state.Revision,
		SeasonID:     s.state.Season.ID,
		Timestamp:    s.state.UpdatedAt,
	}
	for id, sc := range scores {
		event.GameScores[id] = sc
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.recorder.RecordSync(ctx, event); err != nil {
			s.logger.Warn("failed to record sync event", "uid", uid, "error", err)
		}
	}()
}

// Snapshot builds a read-only ranking view. The build itself never bumps
// the revision; only the season check at the top may mutate.
func (s *Store) Snapshot(req domain.SnapshotRequest) *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureActiveSeasonLocked()

	limit := req.TopLimit
	if limit == 0 {
		limit = sanitize.DefaultTopLimit
	}
	limit = sanitize.ClampTopLimit(limit)
	uid := sanitize.SanitizeID(req.PlayerID)

	overall := s.overallRankingLocked()
	snap := &domain.Snapshot{
		Enabled:     true,
		Season:      s.state.Season,
		Revision:    s.state.Revision,
		GeneratedAt: s.now().UnixMilli(),
		OverallTop:  overall.top(limit),
		MyOverall:   overall.entryFor(uid),
		Games:       make(map[string]domain.GameRanking, len(req.GameIDs)),
	}

	for _, rawID := range req.GameIDs {
		gameID := sanitize.SanitizeID(rawID)
		if gameID == "" {
			continue
		}
		cache := s.gameRankingLocked(gameID)
		snap.Games[gameID] = domain.GameRanking{
			Top: cache.top(limit),
			My:  cache.entryFor(uid),
		}
	}
	return snap
}

// Info returns the current state summary used by health checks and push
// frames.
func (s *Store) Info() domain.StateInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureActiveSeasonLocked()
	return s.infoLocked()
}

func (s *Store) infoLocked() domain.StateInfo {
	return domain.StateInfo{
		Revision:  s.state.Revision,
		Season:    s.state.Season,
		UpdatedAt: s.state.UpdatedAt,
	}
}

// Stats summarizes the current season.
func (s *Store) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureActiveSeasonLocked()
	overall := s.overallRankingLocked()

	stats := domain.Stats{
		Season:       s.state.Season,
		Revision:     s.state.Revision,
		TotalPlayers: len(s.state.Players),
	}
	if entries := overall.top(1); len(entries) > 0 {
		stats.TopScore = entries[0].Score
	}
	return stats
}

// schedulePersistLocked debounces disk writes: mutations inside one window
// collapse into a single save.
func (s *Store) schedulePersistLocked() {
	if s.persistPending {
		return
	}
	s.persistPending = true
	s.persistTimer = time.AfterFunc(s.debounce, s.persistNow)
}

// persistNow runs on the debounce timer. Failures are logged only; the
// in-memory state stays authoritative and the next mutation re-schedules.
func (s *Store) persistNow() {
	s.mu.Lock()
	s.persistPending = false
	snapshot := s.cloneStateLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.persister.Save(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist state", "revision", snapshot.Revision, "error", err)
		return
	}
	s.logger.Debug("persisted state", "revision", snapshot.Revision)
}

// Shutdown cancels a pending debounce window and performs one final
// synchronous save so the last writes are not lost.
func (s *Store) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.persistTimer != nil {
		s.persistTimer.Stop()
	}
	s.persistPending = false
	snapshot := s.cloneStateLocked()
	s.mu.Unlock()

	if err := s.persister.Save(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist state on shutdown", "error", err)
		return
	}
	s.logger.Info("persisted state on shutdown", "revision", snapshot.Revision)
}

func (s *Store) cloneStateLocked() *domain.StoreState {
	cp := *s.state
	cp.Players = make(map[string]*domain.PlayerRecord, len(s.state.Players))
	for uid, rec := range s.state.Players {
		cp.Players[uid] = rec.Clone()
	}
	return &cp
}
