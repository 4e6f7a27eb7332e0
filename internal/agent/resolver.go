package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arya-gaj/veri/internal/chain"
	"github.com/arya-gaj/veri/internal/models"
	"github.com/arya-gaj/veri/internal/store"
	"github.com/arya-gaj/veri/internal/tools"
	"github.com/arya-gaj/veri/internal/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidAddress marks a request whose wallet address fails validation.
// The transport layer maps it to a client error instead of a server fault.
var ErrInvalidAddress = errors.New("invalid wallet address")

// resolveTimeout caps one query end to end, covering parsing, chain reads,
// and synthesis including LLM retries.
const resolveTimeout = 30 * time.Second

// Resolver orchestrates the query pipeline: parse the question, fetch the
// chain data its intent needs, narrate the result, and attach the proof that
// anchors the narration to chain state.
type Resolver struct {
	parser      *tools.IntentParser
	fetcher     *chain.Fetcher
	synthesizer *tools.ResponseSynthesizer
	knowledge   *tools.GeneralKnowledge
	store       store.Store
	log         zerolog.Logger
}

// NewResolver creates a resolver. store may be nil to disable query logging.
func NewResolver(parser *tools.IntentParser, fetcher *chain.Fetcher, synthesizer *tools.ResponseSynthesizer, queryStore store.Store, log zerolog.Logger) *Resolver {
	return &Resolver{
		parser:      parser,
		fetcher:     fetcher,
		synthesizer: synthesizer,
		knowledge:   tools.NewGeneralKnowledge(),
		store:       queryStore,
		log:         log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve answers a natural-language question about a wallet. Knowledge
// questions are answered from the topic table without touching the chain;
// everything else fetches fresh state and returns a verified response whose
// proof carries the exact data the summary was derived from.
func (r *Resolver) Resolve(ctx context.Context, query, walletAddress string) (*models.QueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	if !util.IsHexAddress(walletAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, walletAddress)
	}

	parsed := r.parser.Parse(ctx, query)

	r.log.Info().
		Str("intent", parsed.Intent).
		Str("wallet", util.ShortAddress(walletAddress)).
		Msg("resolving query")

	if parsed.Intent == models.IntentGeneralKnowledge {
		response := &models.QueryResponse{
			Summary:         r.knowledge.Answer(query),
			Verified:        false,
			GlindaGlorified: true,
			ParsedQuery:     parsed,
		}
		r.logQuery(query, walletAddress, response)
		return response, nil
	}

	// One head read anchors the proof; the per-intent fetch below may read
	// slightly newer state if a block lands in between.
	head, err := r.fetcher.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain head: %w", err)
	}

	rawData, err := r.fetchForIntent(ctx, parsed, walletAddress, head)
	if err != nil {
		return nil, err
	}

	summary := r.synthesizer.Synthesize(ctx, rawData, parsed.Intent, walletAddress, query)

	response := &models.QueryResponse{
		Summary:  summary,
		Verified: true,
		Proof: &models.Proof{
			BlockNumber: head,
			Timestamp:   time.Now().UTC(),
			RawData:     rawData,
		},
		ParsedQuery: parsed,
	}

	r.logQuery(query, walletAddress, response)
	return response, nil
}

// fetchForIntent dispatches to the fetcher matching the parsed intent
func (r *Resolver) fetchForIntent(ctx context.Context, parsed *models.ParsedQuery, walletAddress string, head uint64) (interface{}, error) {
	switch parsed.Intent {
	case models.IntentBalance:
		return r.fetcher.BalanceData(ctx, walletAddress)
	case models.IntentTransactions:
		return r.fetcher.RecentTransactions(ctx, walletAddress, head, parsed.Limit), nil
	case models.IntentNFTs:
		return r.fetcher.NFTBalance(ctx, walletAddress), nil
	case models.IntentTokens:
		return r.fetcher.TokenBalances(ctx, walletAddress), nil
	case models.IntentBlocks:
		return r.fetcher.BlockDetails(ctx, head)
	case models.IntentContracts:
		return r.fetcher.ContractInfo(ctx, walletAddress), nil
	default:
		return r.fetcher.OverviewData(ctx, walletAddress)
	}
}

// logQuery persists a resolved query without blocking or failing the
// response. The request context may already be done by the time the write
// lands, so the write gets its own deadline.
func (r *Resolver) logQuery(query, walletAddress string, response *models.QueryResponse) {
	if r.store == nil {
		return
	}

	entry := &store.QueryLog{
		ID:            uuid.NewString(),
		Query:         query,
		WalletAddress: walletAddress,
		Intent:        response.ParsedQuery.Intent,
		ParsedQuery:   response.ParsedQuery,
		Verified:      response.Verified,
		Summary:       response.Summary,
		CreatedAt:     time.Now().UTC(),
	}
	if response.Proof != nil {
		entry.BlockNumber = response.Proof.BlockNumber
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := r.store.LogQuery(ctx, entry); err != nil {
			r.log.Warn().Err(err).Msg("query log write failed")
		}
	}()
}
