package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arya-gaj/veri/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeed hands out a controllable event channel and records teardown
type fakeFeed struct {
	events chan models.BlockEvent

	mu           sync.Mutex
	unsubscribed bool
	once         sync.Once
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{events: make(chan models.BlockEvent)}
}

func (f *fakeFeed) WatchBlocks(_ context.Context) (<-chan models.BlockEvent, func()) {
	return f.events, func() {
		f.mu.Lock()
		f.unsubscribed = true
		f.mu.Unlock()
		f.closeFeed()
	}
}

func (f *fakeFeed) closeFeed() {
	f.once.Do(func() { close(f.events) })
}

func (f *fakeFeed) isUnsubscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

// runStream serves one SSE connection until cancel fires, then returns the
// recorded body split into decoded events.
func runStream(t *testing.T, feed BlockFeed, pingInterval time.Duration, drive func(cancel context.CancelFunc)) []models.StreamEvent {
	t.Helper()

	server := newTestServer(&stubReader{balance: big.NewInt(0)}, nil)
	server.feed = feed
	if pingInterval > 0 {
		server.pingInterval = pingInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", "/api/v1/stream", nil).WithContext(ctx)
	recorder := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.handleStream(recorder, req)
	}()

	drive(cancel)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler never returned")
	}

	return decodeStreamEvents(t, recorder.Body.String())
}

func decodeStreamEvents(t *testing.T, body string) []models.StreamEvent {
	t.Helper()

	var events []models.StreamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event models.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestStreamSendsInitThenBlocks(t *testing.T) {
	feed := newFakeFeed()

	events := runStream(t, feed, 0, func(cancel context.CancelFunc) {
		feed.events <- models.BlockEvent{Number: 42, Transactions: 3, GasUsed: "0x5208", Hash: "0xabc"}
		time.Sleep(50 * time.Millisecond)
		cancel()
	})

	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, models.StreamEventInit, events[0].Type)
	assert.NotZero(t, events[0].Timestamp)

	assert.Equal(t, models.StreamEventNewBlock, events[1].Type)
	assert.Equal(t, uint64(42), events[1].BlockNumber)
	assert.Equal(t, 3, events[1].Transactions)
	assert.Equal(t, "0xabc", events[1].Hash)
}

func TestStreamCancelTearsDownSubscription(t *testing.T) {
	feed := newFakeFeed()

	runStream(t, feed, 0, func(cancel context.CancelFunc) {
		time.Sleep(20 * time.Millisecond)
		cancel()
	})

	assert.True(t, feed.isUnsubscribed())
}

func TestStreamEndsWhenFeedCloses(t *testing.T) {
	feed := newFakeFeed()

	events := runStream(t, feed, 0, func(_ context.CancelFunc) {
		feed.closeFeed()
	})

	require.NotEmpty(t, events)
	assert.Equal(t, models.StreamEventInit, events[0].Type)
}

func TestStreamPings(t *testing.T) {
	feed := newFakeFeed()

	events := runStream(t, feed, 10*time.Millisecond, func(cancel context.CancelFunc) {
		time.Sleep(60 * time.Millisecond)
		cancel()
	})

	var pings int
	for _, event := range events {
		if event.Type == models.StreamEventPing {
			pings++
		}
	}
	assert.Greater(t, pings, 0)
}

func TestStreamUnavailableWithoutFeed(t *testing.T) {
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, nil)

	req := httptest.NewRequest("GET", "/api/v1/stream", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	assert.Equal(t, 503, recorder.Code)
}
