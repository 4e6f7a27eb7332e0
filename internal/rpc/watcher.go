package rpc

import (
	"context"
	"time"

	"github.com/arya-gaj/veri/internal/models"
	"github.com/rs/zerolog"
)

// maxCatchUpBlocks bounds how many missed blocks a single poll emits, so a
// watcher that fell behind doesn't flood subscribers.
const maxCatchUpBlocks = 5

// BlockWatcher polls the chain head and emits an event per new block. The
// node exposes plain JSON-RPC over HTTP, so notification is poll-based rather
// than a push subscription.
type BlockWatcher struct {
	client   *Client
	interval time.Duration
	log      zerolog.Logger
}

// NewBlockWatcher creates a watcher polling at the given interval
func NewBlockWatcher(client *Client, interval time.Duration, log zerolog.Logger) *BlockWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &BlockWatcher{
		client:   client,
		interval: interval,
		log:      log.With().Str("component", "block_watcher").Logger(),
	}
}

// WatchBlocks starts a poll loop and returns a channel of new-block events
// plus an unsubscribe function. Unsubscribing (or cancelling ctx) stops the
// loop; the channel is closed once the loop has fully stopped, so after close
// no further events can arrive.
func (w *BlockWatcher) WatchBlocks(ctx context.Context) (<-chan models.BlockEvent, func()) {
	watchCtx, cancel := context.WithCancel(ctx)
	events := make(chan models.BlockEvent)

	go func() {
		defer close(events)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var lastSeen uint64

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				head, err := w.client.BlockNumber(watchCtx)
				if err != nil {
					w.log.Debug().Err(err).Msg("head poll failed")
					continue
				}

				if lastSeen == 0 {
					// First successful poll establishes the baseline;
					// only blocks produced after subscribing are emitted.
					lastSeen = head
					continue
				}

				if head <= lastSeen {
					continue
				}

				start := lastSeen + 1
				if head-lastSeen > maxCatchUpBlocks {
					start = head - maxCatchUpBlocks + 1
				}

				for number := start; number <= head; number++ {
					event, err := w.fetchBlockEvent(watchCtx, number)
					if err != nil {
						w.log.Debug().Err(err).Uint64("block", number).Msg("block fetch failed")
						continue
					}
					select {
					case events <- *event:
					case <-watchCtx.Done():
						return
					}
				}
				lastSeen = head
			}
		}
	}()

	return events, cancel
}

func (w *BlockWatcher) fetchBlockEvent(ctx context.Context, number uint64) (*models.BlockEvent, error) {
	block, err := w.client.GetBlockByNumber(ctx, number, false)
	if err != nil {
		return nil, err
	}

	timestamp, _ := HexToUint64(block.Timestamp)

	return &models.BlockEvent{
		Number:       number,
		Timestamp:    timestamp,
		Transactions: block.TransactionCount(),
		GasUsed:      block.GasUsed,
		Hash:         block.Hash,
	}, nil
}
