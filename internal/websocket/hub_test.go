package websocket

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

func testHub() *Hub {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(func() domain.StateInfo {
		return domain.StateInfo{Revision: 1, Season: domain.Season{ID: "kst-week-2025-03-10"}}
	}, logger)
}

func TestHubRegisterAfterStop(t *testing.T) {
	hub := testHub()
	hub.Stop()

	client := NewClient(hub, nil, hub.logger)

	// with the run loop gone, register/unregister must not block
	done := make(chan struct{})
	go func() {
		hub.Register(client)
		hub.Unregister(client)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("register blocked after hub stop")
	}
	assert.Equal(t, 0, hub.GetTotalConnections())
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub := testHub()
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, hub.logger)
	hub.Register(client)

	// the ready frame lands in the client's send buffer
	select {
	case frame := <-client.send:
		assert.Contains(t, string(frame), `"type":"ready"`)
	case <-time.After(time.Second):
		t.Fatal("no ready frame after register")
	}

	hub.BroadcastUpdate(domain.StateInfo{Revision: 2})
	select {
	case frame := <-client.send:
		assert.Contains(t, string(frame), `"type":"update"`)
	case <-time.After(time.Second):
		t.Fatal("no update frame after broadcast")
	}

	assert.Equal(t, 1, hub.GetTotalConnections())
	hub.Unregister(client)
}
