package store

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
	"github.com/funniceguy/web-minigame-factory/internal/notify"
	"github.com/funniceguy/web-minigame-factory/internal/persist"
	"github.com/funniceguy/web-minigame-factory/internal/season"
)

// memPersister is an in-memory Persister that counts saves.
type memPersister struct {
	mu      sync.Mutex
	state   *domain.StoreState
	saves   int
	loadErr error
}

func (m *memPersister) Load(context.Context) (*domain.StoreState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.state == nil {
		return nil, persist.ErrNotFound
	}
	return m.state, nil
}

func (m *memPersister) Save(_ context.Context, state *domain.StoreState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.saves++
	return nil
}

func (m *memPersister) Close() error { return nil }

func (m *memPersister) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memPersister) savedState() *domain.StoreState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// midWeek is a Wednesday noon UTC inside the season that starts
// Monday 2025-03-10 09:00 KST.
var midWeek = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *memPersister, *time.Time) {
	t.Helper()
	clock := midWeek
	mp := &memPersister{}
	s := New(mp, notify.NewBroker(discardLogger()), discardLogger())
	s.now = func() time.Time { return clock }
	s.debounce = 10 * time.Millisecond
	s.state.Season = season.CurrentWindow(clock)
	s.state.UpdatedAt = clock.UnixMilli()
	return s, mp, &clock
}

func syncPlayer(t *testing.T, s *Store, uid string, scores map[string]any) *domain.SyncResult {
	t.Helper()
	res, err := s.SyncPlayer(context.Background(), domain.SyncRequest{
		PlayerID:   uid,
		Nickname:   "nick-" + uid,
		GameScores: scores,
	})
	require.NoError(t, err)
	return res
}

func TestSyncPlayerMonotoneMerge(t *testing.T) {
	s, _, _ := newTestStore(t)

	res := syncPlayer(t, s, "p1", map[string]any{"neon-block": 500})
	assert.True(t, res.Changed)
	assert.Equal(t, int64(500), res.OverallScore)

	// a lower replay must not regress the score or bump the revision
	before := s.Info().Revision
	res = syncPlayer(t, s, "p1", map[string]any{"neon-block": 300})
	assert.False(t, res.Changed)
	assert.Equal(t, int64(500), res.OverallScore)
	assert.Equal(t, before, s.Info().Revision)

	res = syncPlayer(t, s, "p1", map[string]any{"neon-block": 800})
	assert.True(t, res.Changed)
	assert.Equal(t, int64(800), res.OverallScore)
	assert.Equal(t, before+1, s.Info().Revision)
}

func TestSyncPlayerOverallIsSumOfGames(t *testing.T) {
	s, _, _ := newTestStore(t)

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 100, "star-dodge": 250})
	res := syncPlayer(t, s, "p1", map[string]any{"star-dodge": 300})
	assert.Equal(t, int64(400), res.OverallScore)

	snap := s.Snapshot(domain.SnapshotRequest{PlayerID: "p1"})
	require.NotNil(t, snap.MyOverall)
	assert.Equal(t, int64(400), snap.MyOverall.Score)
}

func TestSyncPlayerRejectsInvalidID(t *testing.T) {
	s, _, _ := newTestStore(t)

	for _, uid := range []string{"", "   ", "!!!", "日本語"} {
		_, err := s.SyncPlayer(context.Background(), domain.SyncRequest{PlayerID: uid})
		assert.ErrorIs(t, err, domain.ErrInvalidPlayerID, "uid %q", uid)
	}
	assert.Equal(t, int64(0), s.Info().Revision)
}

func TestSyncPlayerSanitizesScores(t *testing.T) {
	s, _, _ := newTestStore(t)

	res := syncPlayer(t, s, "p1", map[string]any{
		"neon-block": 99.9,             // floored
		"star-dodge": "250",            // numeric string accepted
		"bad-one":    "not a number",   // dropped
		"bad-two":    -50,              // dropped
		"bad-three":  map[string]any{}, // dropped
		"":           1000,             // unusable game id dropped
	})
	assert.Equal(t, int64(349), res.OverallScore)
}

func TestSyncPlayerProfileOnlyChange(t *testing.T) {
	s, _, _ := newTestStore(t)

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 100})
	before := s.Info().Revision

	res, err := s.SyncPlayer(context.Background(), domain.SyncRequest{
		PlayerID: "p1",
		Nickname: "renamed",
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, int64(100), res.OverallScore)
	assert.Equal(t, before+1, s.Info().Revision)
}

func TestRankingOrderAndTieBreak(t *testing.T) {
	s, _, clock := newTestStore(t)

	// p2 reaches 1000 first, p1 matches it a minute later. First to the
	// score wins the tie.
	syncPlayer(t, s, "p2", map[string]any{"neon-block": 1000})
	*clock = clock.Add(time.Minute)
	syncPlayer(t, s, "p1", map[string]any{"neon-block": 1000})
	syncPlayer(t, s, "p3", map[string]any{"neon-block": 400})

	snap := s.Snapshot(domain.SnapshotRequest{GameIDs: []string{"neon-block"}})
	require.Len(t, snap.OverallTop, 3)
	assert.Equal(t, "p2", snap.OverallTop[0].UID)
	assert.Equal(t, 1, snap.OverallTop[0].Rank)
	assert.Equal(t, "p1", snap.OverallTop[1].UID)
	assert.Equal(t, 2, snap.OverallTop[1].Rank)
	assert.Equal(t, "p3", snap.OverallTop[2].UID)

	game := snap.Games["neon-block"]
	require.Len(t, game.Top, 3)
	assert.Equal(t, "p2", game.Top[0].UID)
}

func TestRankingTieBreakByUID(t *testing.T) {
	s, _, _ := newTestStore(t)

	// identical score at the same instant: uid order decides
	syncPlayer(t, s, "zeta", map[string]any{"neon-block": 700})
	syncPlayer(t, s, "alpha", map[string]any{"neon-block": 700})

	snap := s.Snapshot(domain.SnapshotRequest{})
	require.Len(t, snap.OverallTop, 2)
	assert.Equal(t, "alpha", snap.OverallTop[0].UID)
	assert.Equal(t, "zeta", snap.OverallTop[1].UID)
}

func TestSnapshotUnknownPlayer(t *testing.T) {
	s, _, _ := newTestStore(t)

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 500})

	snap := s.Snapshot(domain.SnapshotRequest{
		PlayerID: "ghost",
		GameIDs:  []string{"neon-block", "never-played"},
	})
	assert.Nil(t, snap.MyOverall)
	assert.Len(t, snap.OverallTop, 1)
	assert.Nil(t, snap.Games["neon-block"].My)
	assert.Empty(t, snap.Games["never-played"].Top)
}

func TestSnapshotTopLimit(t *testing.T) {
	s, _, _ := newTestStore(t)

	for _, uid := range []string{"a", "b", "c", "d", "e"} {
		syncPlayer(t, s, uid, map[string]any{"neon-block": 100})
	}

	snap := s.Snapshot(domain.SnapshotRequest{TopLimit: 2})
	assert.Len(t, snap.OverallTop, 2)

	// requests beyond the cap are clamped, not honored
	snap = s.Snapshot(domain.SnapshotRequest{TopLimit: 500})
	assert.Len(t, snap.OverallTop, 5)
}

func TestSnapshotDoesNotBumpRevision(t *testing.T) {
	s, _, _ := newTestStore(t)

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 500})
	before := s.Info().Revision
	s.Snapshot(domain.SnapshotRequest{GameIDs: []string{"neon-block"}})
	s.Snapshot(domain.SnapshotRequest{GameIDs: []string{"neon-block"}})
	assert.Equal(t, before, s.Info().Revision)
}

func TestRankingCacheReuse(t *testing.T) {
	s, _, _ := newTestStore(t)

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 500})
	s.Snapshot(domain.SnapshotRequest{GameIDs: []string{"neon-block"}})

	s.mu.Lock()
	builds := s.rebuilds
	s.mu.Unlock()

	// same revision: both rankings must come from cache
	s.Snapshot(domain.SnapshotRequest{GameIDs: []string{"neon-block"}})
	s.mu.Lock()
	assert.Equal(t, builds, s.rebuilds)
	s.mu.Unlock()

	// a mutation invalidates everything
	syncPlayer(t, s, "p2", map[string]any{"neon-block": 300})
	s.Snapshot(domain.SnapshotRequest{GameIDs: []string{"neon-block"}})
	s.mu.Lock()
	assert.Greater(t, s.rebuilds, builds)
	s.mu.Unlock()
}

func TestSeasonRollover(t *testing.T) {
	s, _, clock := newTestStore(t)

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 500})
	firstSeason := s.Info().Season
	revBefore := s.Info().Revision

	// jump past the next Monday 09:00 KST boundary
	*clock = clock.Add(7 * 24 * time.Hour)

	assert.True(t, s.EnsureActiveSeason())
	info := s.Info()
	assert.NotEqual(t, firstSeason.ID, info.Season.ID)
	assert.Equal(t, firstSeason.EndAt, info.Season.StartAt)
	assert.Greater(t, info.Revision, revBefore)

	snap := s.Snapshot(domain.SnapshotRequest{PlayerID: "p1"})
	assert.Empty(t, snap.OverallTop)
	assert.Nil(t, snap.MyOverall)
}

func TestSeasonRolloverOnRead(t *testing.T) {
	s, _, clock := newTestStore(t)

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 500})
	oldID := s.Info().Season.ID

	*clock = clock.Add(8 * 24 * time.Hour)

	// a plain read is enough to trigger the reset
	snap := s.Snapshot(domain.SnapshotRequest{})
	assert.NotEqual(t, oldID, snap.Season.ID)
	assert.Empty(t, snap.OverallTop)
}

func TestPersistDebounceCoalesces(t *testing.T) {
	s, mp, _ := newTestStore(t)
	s.debounce = 30 * time.Millisecond

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 100})
	syncPlayer(t, s, "p1", map[string]any{"neon-block": 200})
	syncPlayer(t, s, "p2", map[string]any{"neon-block": 300})

	assert.Equal(t, 0, mp.saveCount())

	assert.Eventually(t, func() bool {
		return mp.saveCount() == 1
	}, time.Second, 5*time.Millisecond)

	saved := mp.savedState()
	require.NotNil(t, saved)
	assert.Equal(t, s.Info().Revision, saved.Revision)
	assert.Len(t, saved.Players, 2)
}

func TestPersistDebounceSeparateWindows(t *testing.T) {
	s, mp, _ := newTestStore(t)
	s.debounce = 10 * time.Millisecond

	// mutations spaced wider than the window each get their own save
	syncPlayer(t, s, "p1", map[string]any{"neon-block": 100})
	assert.Eventually(t, func() bool {
		return mp.saveCount() == 1
	}, time.Second, 5*time.Millisecond)

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 200})
	assert.Eventually(t, func() bool {
		return mp.saveCount() == 2
	}, time.Second, 5*time.Millisecond)

	saved := mp.savedState()
	require.NotNil(t, saved)
	assert.Equal(t, int64(200), saved.Players["p1"].OverallScore)
}

func TestShutdownFlushesPendingState(t *testing.T) {
	s, mp, _ := newTestStore(t)
	s.debounce = time.Hour // timer must never fire on its own

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 500})
	require.Equal(t, 0, mp.saveCount())

	s.Shutdown(context.Background())
	assert.Equal(t, 1, mp.saveCount())

	saved := mp.savedState()
	require.NotNil(t, saved)
	assert.Equal(t, int64(500), saved.Players["p1"].OverallScore)
}

func TestLoadAdoptsPersistedState(t *testing.T) {
	clock := midWeek
	mp := &memPersister{state: &domain.StoreState{
		Version:   domain.StateVersion,
		Revision:  42,
		UpdatedAt: midWeek.UnixMilli(),
		Season:    season.CurrentWindow(midWeek),
		Players: map[string]*domain.PlayerRecord{
			"p1": {
				UID: "p1", Nickname: "Ann", Avatar: "default",
				UpdatedAt:    midWeek.UnixMilli(),
				GameScores:   map[string]int64{"neon-block": 500},
				OverallScore: 500,
			},
		},
	}}

	s := New(mp, notify.NewBroker(discardLogger()), discardLogger())
	s.now = func() time.Time { return clock }
	s.Load(context.Background())

	info := s.Info()
	assert.Equal(t, int64(42), info.Revision)

	snap := s.Snapshot(domain.SnapshotRequest{PlayerID: "p1"})
	require.NotNil(t, snap.MyOverall)
	assert.Equal(t, int64(500), snap.MyOverall.Score)
}

func TestLoadFallsBackOnError(t *testing.T) {
	mp := &memPersister{loadErr: context.DeadlineExceeded}
	s := New(mp, notify.NewBroker(discardLogger()), discardLogger())

	s.Load(context.Background()) // must not panic or fail

	snap := s.Snapshot(domain.SnapshotRequest{})
	assert.Empty(t, snap.OverallTop)
}

func TestLoadDiscardsStaleSeason(t *testing.T) {
	clock := midWeek
	mp := &memPersister{state: &domain.StoreState{
		Version:  domain.StateVersion,
		Revision: 7,
		Season:   domain.Season{ID: "kst-week-2024-01-01", StartAt: 0, EndAt: 1},
		Players: map[string]*domain.PlayerRecord{
			"old": {UID: "old", GameScores: map[string]int64{"neon-block": 9}, OverallScore: 9},
		},
	}}

	s := New(mp, notify.NewBroker(discardLogger()), discardLogger())
	s.now = func() time.Time { return clock }
	s.Load(context.Background())

	info := s.Info()
	assert.NotEqual(t, "kst-week-2024-01-01", info.Season.ID)
	assert.Greater(t, info.Revision, int64(7))

	snap := s.Snapshot(domain.SnapshotRequest{})
	assert.Empty(t, snap.OverallTop)
}

func TestSyncPublishesStateInfo(t *testing.T) {
	s, _, _ := newTestStore(t)

	var mu sync.Mutex
	var got []domain.StateInfo
	unsubscribe := s.broker.Subscribe(func(info domain.StateInfo) {
		mu.Lock()
		got = append(got, info)
		mu.Unlock()
	})
	defer unsubscribe()

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 500})
	syncPlayer(t, s, "p1", map[string]any{"neon-block": 400}) // no change, no publish

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, s.Info().Revision, got[0].Revision)
}

type captureRecorder struct {
	mu     sync.Mutex
	events []domain.SyncEvent
}

func (c *captureRecorder) RecordSync(_ context.Context, ev domain.SyncEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func TestSyncInvokesRecorder(t *testing.T) {
	clock := midWeek
	rec := &captureRecorder{}
	s := New(&memPersister{}, notify.NewBroker(discardLogger()), discardLogger(), WithRecorder(rec))
	s.now = func() time.Time { return clock }
	s.debounce = time.Hour
	s.state.Season = season.CurrentWindow(clock)

	syncPlayer(t, s, "p1", map[string]any{"neon-block": 500})

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.events) == 1
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "p1", rec.events[0].UID)
	assert.Equal(t, int64(500), rec.events[0].OverallScore)
	assert.Equal(t, s.Info().Season.ID, rec.events[0].SeasonID)
}
