package models

import (
	"encoding/json"
	"math/big"
	"os"
	"strconv"
	"time"
)

// Network describes the chain this service reads from.
type Network struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	RPCUrl   string `json:"rpc_url"`
	Explorer string `json:"explorer"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// PublicNetwork is the network descriptor exposed over the API.
// It excludes the RPC URL, which may carry credentials.
type PublicNetwork struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Explorer string `json:"explorer"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// ToPublic converts a network to its public representation
func (n Network) ToPublic() PublicNetwork {
	return PublicNetwork{
		ID:       n.ID,
		Name:     n.Name,
		Explorer: n.Explorer,
		Symbol:   n.Symbol,
		Decimals: n.Decimals,
	}
}

// defaultNetwork is the Somnia testnet, used when no env overrides are set
var defaultNetwork = Network{
	ID:       50311,
	Name:     "Somnia Testnet",
	RPCUrl:   "https://dream-rpc.somnia.network",
	Explorer: "https://explorer.somnia.network",
	Symbol:   "STT",
	Decimals: 18,
}

// LoadNetworkFromEnv builds the network configuration from environment
// variables, falling back to the Somnia testnet defaults for anything unset.
// Recognized variables: CHAIN_RPC_URL, CHAIN_ID, CHAIN_NAME,
// CHAIN_EXPLORER_URL, CHAIN_SYMBOL, CHAIN_DECIMALS.
func LoadNetworkFromEnv() Network {
	network := defaultNetwork

	if v := os.Getenv("CHAIN_RPC_URL"); v != "" {
		network.RPCUrl = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			network.ID = id
		}
	}
	if v := os.Getenv("CHAIN_NAME"); v != "" {
		network.Name = v
	}
	if v := os.Getenv("CHAIN_EXPLORER_URL"); v != "" {
		network.Explorer = v
	}
	if v := os.Getenv("CHAIN_SYMBOL"); v != "" {
		network.Symbol = v
	}
	if v := os.Getenv("CHAIN_DECIMALS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			network.Decimals = d
		}
	}

	return network
}

// Query intents. Every parsed query resolves to exactly one of these.
const (
	IntentBalance          = "balance"
	IntentTransactions     = "transactions"
	IntentNFTs             = "nfts"
	IntentTokens           = "tokens"
	IntentContracts        = "contracts"
	IntentBlocks           = "blocks"
	IntentOverview         = "overview"
	IntentGeneralKnowledge = "general_knowledge"
)

// Intents lists every valid intent value
var Intents = []string{
	IntentBalance, IntentTransactions, IntentNFTs, IntentTokens,
	IntentContracts, IntentBlocks, IntentOverview, IntentGeneralKnowledge,
}

// IsValidIntent reports whether s is a known intent
func IsValidIntent(s string) bool {
	for _, intent := range Intents {
		if s == intent {
			return true
		}
	}
	return false
}

// Time ranges a query may be scoped to
const (
	TimeRange24h = "24h"
	TimeRange7d  = "7d"
	TimeRange30d = "30d"
	TimeRangeAll = "all"
)

// DefaultLimit caps result-set size for list-shaped intents when the query
// doesn't ask for a specific count.
const DefaultLimit = 10

// ParsedQuery is the structured form of a natural-language question.
// Created once per request by the intent parser and consumed by the resolver.
type ParsedQuery struct {
	Intent    string   `json:"intent"`
	Entities  []string `json:"entities"`
	Filters   []string `json:"filters"`
	TimeRange string   `json:"timeRange,omitempty"`
	Limit     int      `json:"limit"`
}

// NewParsedQuery returns a query with all defaults applied
func NewParsedQuery() *ParsedQuery {
	return &ParsedQuery{
		Intent:   IntentOverview,
		Entities: []string{},
		Filters:  []string{},
		Limit:    DefaultLimit,
	}
}

// QueryRequest is the inbound payload for the query endpoint
type QueryRequest struct {
	Query         string `json:"query"`
	WalletAddress string `json:"walletAddress"`
}

// Proof anchors a chain-backed answer to the height and data it was derived
// from. RawData is the exact payload the synthesizer was given, so callers
// can audit the summary's claims. Never mutated after assembly.
type Proof struct {
	BlockNumber uint64      `json:"blockNumber"`
	Timestamp   time.Time   `json:"timestamp"`
	RawData     interface{} `json:"rawData"`
}

// QueryResponse is the outward result of a resolved query.
// Verified is true only when at least one chain read succeeded and a proof is
// attached. GlindaGlorified marks general-knowledge answers produced without
// touching chain state, distinct from a plain unverified error.
type QueryResponse struct {
	Summary         string       `json:"summary"`
	Verified        bool         `json:"verified"`
	GlindaGlorified bool         `json:"glindaGlorified,omitempty"`
	Proof           *Proof       `json:"proof,omitempty"`
	ParsedQuery     *ParsedQuery `json:"parsedQuery,omitempty"`
}

// WalletSnapshot is the point-in-time state of a wallet, fetched fresh per
// request. Balance is a decimal string of base units to avoid any
// floating-point rounding.
type WalletSnapshot struct {
	Address          string `json:"address"`
	Balance          string `json:"balance"`
	TransactionCount uint64 `json:"transactionCount"`
}

// BalanceBig parses the balance into an arbitrary-precision integer
func (s *WalletSnapshot) BalanceBig() *big.Int {
	n := new(big.Int)
	n.SetString(s.Balance, 10)
	return n
}

// BalanceData is the balance-intent payload handed to the synthesizer
type BalanceData struct {
	WalletSnapshot
	BalanceFormatted string `json:"balanceFormatted"`
	WalletShort      string `json:"walletShort"`
	HasBalance       bool   `json:"hasBalance"`
	HasTransactions  bool   `json:"hasTransactions"`
}

// OverviewData is the default-intent payload handed to the synthesizer
type OverviewData struct {
	WalletSnapshot
	BalanceFormatted string `json:"balanceFormatted"`
	WalletShort      string `json:"walletShort"`
}

// Transaction is a single entry from the recent-activity scan
type Transaction struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
}

// TransactionsData is the transactions-intent payload. The scan behind it is
// a bounded heuristic over recent blocks, so Count may be lower than asked.
type TransactionsData struct {
	Transactions    []Transaction `json:"transactions"`
	Count           int           `json:"count"`
	HasTransactions bool          `json:"hasTransactions"`
	WalletShort     string        `json:"walletShort"`
	LatestTx        string        `json:"latestTx,omitempty"`
}

// NFTData is the nfts-intent payload. Until an indexing layer exists this is
// an explicit "not yet indexed" marker, never evidence of zero holdings.
type NFTData struct {
	TotalNFTs   int           `json:"totalNFTs"`
	Collections int           `json:"collections"`
	NFTs        []interface{} `json:"nfts"`
	Message     string        `json:"message,omitempty"`
}

// TokenData is the tokens-intent payload, stubbed the same way as NFTData
type TokenData struct {
	Tokens  []interface{} `json:"tokens"`
	Message string        `json:"message,omitempty"`
}

// BlockDetails holds header-level block fields without transaction bodies
type BlockDetails struct {
	Number           string `json:"number"`
	Hash             string `json:"hash"`
	Timestamp        string `json:"timestamp"`
	TransactionCount int    `json:"transactionCount"`
	GasUsed          string `json:"gasUsed"`
	GasLimit         string `json:"gasLimit"`
}

// ContractInfo classifies an address by the presence of on-chain bytecode
type ContractInfo struct {
	Address    string `json:"address"`
	IsContract bool   `json:"isContract"`
	Bytecode   string `json:"bytecode,omitempty"`
}

// Stream event types pushed over the SSE endpoint. Consumers must treat
// unknown future types as ignorable.
const (
	StreamEventInit     = "stream_init"
	StreamEventNewBlock = "new_block"
	StreamEventPing     = "ping"
)

// StreamEvent is one server-push message on the block stream
type StreamEvent struct {
	Type         string `json:"type"`
	Message      string `json:"message,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	BlockNumber  uint64 `json:"blockNumber,omitempty"`
	Transactions int    `json:"transactions,omitempty"`
	GasUsed      string `json:"gasUsed,omitempty"`
	Hash         string `json:"hash,omitempty"`
}

// BlockEvent is a new-block notification from the chain watcher
type BlockEvent struct {
	Number       uint64 `json:"number"`
	Timestamp    uint64 `json:"timestamp"`
	Transactions int    `json:"transactions"`
	GasUsed      string `json:"gas_used"`
	Hash         string `json:"hash"`
}

// ToJSON converts any struct to an indented JSON string, for prompt embedding
func ToJSON(v interface{}) string {
	bytes, _ := json.MarshalIndent(v, "", "  ")
	return string(bytes)
}
