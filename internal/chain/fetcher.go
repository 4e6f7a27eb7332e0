package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/arya-gaj/veri/internal/models"
	"github.com/arya-gaj/veri/internal/rpc"
	"github.com/arya-gaj/veri/internal/tools"
	"github.com/arya-gaj/veri/internal/util"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// maxScanBlocks bounds the recent-activity scan. Without an indexer the only
// way to list a wallet's transactions is walking block bodies, so the walk is
// capped regardless of how few matches it finds.
const maxScanBlocks = 100

// Reader is the chain access the fetcher needs. *rpc.Client satisfies it;
// tests substitute fakes.
type Reader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
	GetBlockByNumber(ctx context.Context, number uint64, includeTxs bool) (*rpc.Block, error)
	GetCode(ctx context.Context, address string) (string, error)
}

// Fetcher reads wallet-scoped data from the chain, with a write-through cache
// in front of the slower lookups. All reads are point-in-time; nothing here
// mutates chain state.
type Fetcher struct {
	reader  Reader
	network models.Network
	cache   tools.Cache
	log     zerolog.Logger
}

// NewFetcher creates a fetcher. cache may be nil to disable caching.
func NewFetcher(reader Reader, network models.Network, cache tools.Cache, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		reader:  reader,
		network: network,
		cache:   cache,
		log:     log.With().Str("component", "fetcher").Logger(),
	}
}

// Head returns the current chain height
func (f *Fetcher) Head(ctx context.Context) (uint64, error) {
	return f.reader.BlockNumber(ctx)
}

// WalletData fetches the balance and transaction count of an address. The two
// reads run concurrently; either failing fails the snapshot.
func (f *Fetcher) WalletData(ctx context.Context, address string) (*models.WalletSnapshot, error) {
	cacheKey := fmt.Sprintf(tools.SnapshotKeyPattern, f.network.ID, strings.ToLower(address))
	if f.cache != nil {
		var cached models.WalletSnapshot
		if err := f.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	var (
		balance *big.Int
		txCount uint64
	)

	errCh := make(chan error, 2)

	go func() {
		var err error
		balance, err = f.reader.GetBalance(ctx, address)
		errCh <- err
	}()

	go func() {
		var err error
		txCount, err = f.reader.GetTransactionCount(ctx, address)
		errCh <- err
	}()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			return nil, fmt.Errorf("failed to fetch wallet data for %s: %w", address, err)
		}
	}

	snapshot := &models.WalletSnapshot{
		Address:          util.ChecksumAddress(address),
		Balance:          balance.String(),
		TransactionCount: txCount,
	}

	if f.cache != nil {
		if err := f.cache.SetJSON(ctx, cacheKey, snapshot, tools.SnapshotTTL); err != nil {
			f.log.Debug().Err(err).Msg("snapshot cache write failed")
		}
	}

	return snapshot, nil
}

// BalanceData fetches and formats the balance-intent payload
func (f *Fetcher) BalanceData(ctx context.Context, address string) (*models.BalanceData, error) {
	snapshot, err := f.WalletData(ctx, address)
	if err != nil {
		return nil, err
	}

	whole := wholeUnits(snapshot.BalanceBig(), f.network.Decimals)

	return &models.BalanceData{
		WalletSnapshot:   *snapshot,
		BalanceFormatted: f.FormatBaseUnits(snapshot.BalanceBig()),
		WalletShort:      util.ShortAddress(address),
		HasBalance:       whole.Sign() > 0,
		HasTransactions:  snapshot.TransactionCount > 0,
	}, nil
}

// OverviewData fetches the default-intent payload
func (f *Fetcher) OverviewData(ctx context.Context, address string) (*models.OverviewData, error) {
	snapshot, err := f.WalletData(ctx, address)
	if err != nil {
		return nil, err
	}

	return &models.OverviewData{
		WalletSnapshot:   *snapshot,
		BalanceFormatted: f.FormatBaseUnits(snapshot.BalanceBig()),
		WalletShort:      util.ShortAddress(address),
	}, nil
}

// RecentTransactions walks blocks backward from head looking for transactions
// touching the address, newest first. The walk stops at limit matches or
// maxScanBlocks blocks, whichever comes first; individual block failures are
// skipped, so the result is best-effort and an empty list never means
// "provably none". head comes from the caller so one height anchors both the
// scan and whatever proof it ends up in.
func (f *Fetcher) RecentTransactions(ctx context.Context, address string, head uint64, limit int) *models.TransactionsData {
	if limit <= 0 {
		limit = models.DefaultLimit
	}

	addressLower := strings.ToLower(address)
	found := []models.Transaction{}

	for scanned := uint64(0); scanned < maxScanBlocks && len(found) < limit; scanned++ {
		if scanned > head {
			break
		}
		number := head - scanned

		block, err := f.reader.GetBlockByNumber(ctx, number, true)
		if err != nil {
			f.log.Debug().Err(err).Uint64("block", number).Msg("skipping unreadable block")
			continue
		}

		txs, err := block.TransactionObjects()
		if err != nil {
			f.log.Debug().Err(err).Uint64("block", number).Msg("skipping undecodable block")
			continue
		}

		for _, tx := range txs {
			if strings.ToLower(tx.From) != addressLower && strings.ToLower(tx.To) != addressLower {
				continue
			}
			found = append(found, tx)
			if len(found) >= limit {
				break
			}
		}

		if number == 0 {
			break
		}
	}

	data := &models.TransactionsData{
		Transactions:    found,
		Count:           len(found),
		HasTransactions: len(found) > 0,
		WalletShort:     util.ShortAddress(address),
	}
	if len(found) > 0 {
		data.LatestTx = found[0].Hash
	}

	return data
}

// NFTBalance returns the nfts-intent payload. No indexing layer exists yet,
// so the payload states that explicitly instead of claiming zero holdings.
func (f *Fetcher) NFTBalance(_ context.Context, _ string) *models.NFTData {
	return &models.NFTData{
		TotalNFTs:   0,
		Collections: 0,
		NFTs:        []interface{}{},
		Message:     "NFT indexing coming soon",
	}
}

// TokenBalances returns the tokens-intent payload, stubbed like NFTBalance
func (f *Fetcher) TokenBalances(_ context.Context, _ string) *models.TokenData {
	return &models.TokenData{
		Tokens:  []interface{}{},
		Message: "Token balance indexing coming soon",
	}
}

// BlockDetails fetches header-level data for a block. Unlike the bounded
// scan, a failure here propagates: the caller asked about a specific block
// and a wrong answer is worse than an error.
func (f *Fetcher) BlockDetails(ctx context.Context, number uint64) (*models.BlockDetails, error) {
	cacheKey := fmt.Sprintf(tools.BlockDetailsKeyPattern, f.network.ID, number)
	if f.cache != nil {
		var cached models.BlockDetails
		if err := f.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	block, err := f.reader.GetBlockByNumber(ctx, number, false)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %d: %w", number, err)
	}

	details := &models.BlockDetails{
		Number:           block.Number,
		Hash:             block.Hash,
		Timestamp:        block.Timestamp,
		TransactionCount: block.TransactionCount(),
		GasUsed:          block.GasUsed,
		GasLimit:         block.GasLimit,
	}

	if f.cache != nil {
		if err := f.cache.SetJSON(ctx, cacheKey, details, tools.BlockDetailsTTL); err != nil {
			f.log.Debug().Err(err).Msg("block details cache write failed")
		}
	}

	return details, nil
}

// ContractInfo classifies an address by deployed bytecode. A failed code read
// degrades to "not a contract" rather than failing the whole query.
func (f *Fetcher) ContractInfo(ctx context.Context, address string) *models.ContractInfo {
	cacheKey := fmt.Sprintf(tools.ContractInfoKeyPattern, f.network.ID, strings.ToLower(address))
	if f.cache != nil {
		var cached models.ContractInfo
		if err := f.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached
		}
	}

	info := &models.ContractInfo{Address: util.ChecksumAddress(address)}

	code, err := f.reader.GetCode(ctx, address)
	if err != nil {
		f.log.Debug().Err(err).Str("address", address).Msg("code fetch failed")
		return info
	}

	if code != "" && code != "0x" {
		info.IsContract = true
		info.Bytecode = code
	}

	if f.cache != nil {
		if err := f.cache.SetJSON(ctx, cacheKey, info, tools.ContractInfoTTL); err != nil {
			f.log.Debug().Err(err).Msg("contract info cache write failed")
		}
	}

	return info
}

// FormatBaseUnits renders a base-unit amount as whole native tokens with the
// network symbol. Division truncates: 5.9 tokens formats as "5 STT", never
// rounded up, so the text never overstates holdings.
func (f *Fetcher) FormatBaseUnits(raw *big.Int) string {
	whole := wholeUnits(raw, f.network.Decimals)
	return fmt.Sprintf("%s %s", humanize.BigComma(whole), f.network.Symbol)
}

// wholeUnits truncates a base-unit amount to whole tokens
func wholeUnits(raw *big.Int, decimals int) *big.Int {
	if raw == nil {
		return big.NewInt(0)
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Quo(raw, divisor)
}
