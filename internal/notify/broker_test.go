package notify

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

func testBroker() *Broker {
	return NewBroker(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testInfo(rev int64) domain.StateInfo {
	return domain.StateInfo{
		Revision:  rev,
		Season:    domain.Season{ID: "kst-week-2025-03-10"},
		UpdatedAt: rev * 1000,
	}
}

func TestBrokerFanOut(t *testing.T) {
	b := testBroker()

	var first, second []int64
	b.Subscribe(func(info domain.StateInfo) { first = append(first, info.Revision) })
	b.Subscribe(func(info domain.StateInfo) { second = append(second, info.Revision) })

	b.Publish(testInfo(1))
	b.Publish(testInfo(2))

	assert.Equal(t, []int64{1, 2}, first)
	assert.Equal(t, []int64{1, 2}, second)
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := testBroker()

	var got []int64
	unsubscribe := b.Subscribe(func(info domain.StateInfo) { got = append(got, info.Revision) })
	require.Equal(t, 1, b.SubscriberCount())

	b.Publish(testInfo(1))
	unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount())

	b.Publish(testInfo(2))
	assert.Equal(t, []int64{1}, got)

	// a second call is a no-op
	unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBrokerIsolatesPanickingListener(t *testing.T) {
	b := testBroker()

	var got []int64
	b.Subscribe(func(domain.StateInfo) { panic("listener bug") })
	b.Subscribe(func(info domain.StateInfo) { got = append(got, info.Revision) })

	require.NotPanics(t, func() { b.Publish(testInfo(1)) })
	assert.Equal(t, []int64{1}, got)

	// the broken listener stays subscribed and keeps failing safely
	require.NotPanics(t, func() { b.Publish(testInfo(2)) })
	assert.Equal(t, []int64{1, 2}, got)
}

func TestBrokerPublishWithoutSubscribers(t *testing.T) {
	b := testBroker()
	assert.NotPanics(t, func() { b.Publish(testInfo(1)) })
}
