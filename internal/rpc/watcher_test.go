package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/arya-gaj/veri/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// movingChainNode is a fake node whose head can be advanced mid-test
type movingChainNode struct {
	mu   sync.Mutex
	head uint64
}

func (n *movingChainNode) setHead(head uint64) {
	n.mu.Lock()
	n.head = head
	n.mu.Unlock()
}

func (n *movingChainNode) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		n.mu.Lock()
		head := n.head
		n.mu.Unlock()

		var result interface{}
		switch req.Method {
		case "eth_blockNumber":
			result = Uint64ToHex(head)
		case "eth_getBlockByNumber":
			params := req.Params.([]interface{})
			result = map[string]interface{}{
				"number":       params[0],
				"hash":         "0xhash-" + params[0].(string),
				"timestamp":    "0x68b59aa0",
				"gasUsed":      "0x5208",
				"gasLimit":     "0x1c9c380",
				"transactions": []string{"0xtx1"},
			}
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}
}

func TestWatchBlocksEmitsNewBlocks(t *testing.T) {
	node := &movingChainNode{head: 100}
	server := httptest.NewServer(node.handler())
	defer server.Close()

	client := newTestClient(server.URL)
	watcher := NewBlockWatcher(client, 10*time.Millisecond, zerolog.Nop())

	events, unsubscribe := watcher.WatchBlocks(context.Background())
	defer unsubscribe()

	// Let the watcher baseline at 100, then advance the chain
	time.Sleep(30 * time.Millisecond)
	node.setHead(102)

	received := collectEvents(t, events, 2)
	assert.Equal(t, uint64(101), received[0].Number)
	assert.Equal(t, uint64(102), received[1].Number)
	assert.Equal(t, 1, received[0].Transactions)
}

func TestWatchBlocksBoundsCatchUp(t *testing.T) {
	node := &movingChainNode{head: 100}
	server := httptest.NewServer(node.handler())
	defer server.Close()

	client := newTestClient(server.URL)
	watcher := NewBlockWatcher(client, 10*time.Millisecond, zerolog.Nop())

	events, unsubscribe := watcher.WatchBlocks(context.Background())
	defer unsubscribe()

	time.Sleep(30 * time.Millisecond)
	node.setHead(200)

	received := collectEvents(t, events, maxCatchUpBlocks)
	// Only the most recent blocks are emitted after a large gap
	assert.Equal(t, uint64(196), received[0].Number)
	assert.Equal(t, uint64(200), received[len(received)-1].Number)
}

func TestWatchBlocksUnsubscribeClosesChannel(t *testing.T) {
	node := &movingChainNode{head: 100}
	server := httptest.NewServer(node.handler())
	defer server.Close()

	client := newTestClient(server.URL)
	watcher := NewBlockWatcher(client, 10*time.Millisecond, zerolog.Nop())

	events, unsubscribe := watcher.WatchBlocks(context.Background())
	unsubscribe()

	select {
	case _, open := <-events:
		assert.False(t, open, "channel must close after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel never closed after unsubscribe")
	}
}

func collectEvents(t *testing.T, events <-chan models.BlockEvent, count int) []models.BlockEvent {
	t.Helper()

	received := make([]models.BlockEvent, 0, count)
	deadline := time.After(2 * time.Second)
	for len(received) < count {
		select {
		case event, open := <-events:
			require.True(t, open, "channel closed before enough events arrived")
			received = append(received, event)
		case <-deadline:
			t.Fatalf("timed out with %d of %d events", len(received), count)
		}
	}
	return received
}
