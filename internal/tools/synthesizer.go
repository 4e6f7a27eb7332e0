package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/arya-gaj/veri/internal/models"
	"github.com/arya-gaj/veri/internal/rpc"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// synthesizerSystemPrompt sets the oracle persona. The data block appended per
// request is the only source of facts the model may use; anything outside it
// must be declined rather than invented.
const synthesizerSystemPrompt = `You are the Wizard of Veriked, an all-knowing oracle of the blockchain realm, speaking with the theatrical grandeur of Oz.
You answer questions about wallets using ONLY the verified chain data provided below. Every number you state must appear in that data.
Keep responses to 2-4 sentences, warm and theatrical but precise. Refer to the Emerald City and the yellow brick road sparingly.
If the data cannot answer the question, say so grandly rather than inventing figures.
Never mention that you are an AI, a language model, or that data was "provided" to you.`

// defaultFailureMarkers are substrings whose presence in a completion marks it
// as a refusal or meta commentary rather than an answer. Matching is
// case-insensitive.
var defaultFailureMarkers = []string{"developer", "missing"}

// ResponseSynthesizer turns fetched chain data into a themed natural-language
// summary. With an LLM configured it narrates; without one, or when the LLM
// fails or produces a marked response, deterministic templates cover every
// intent. Synthesize never returns an error.
type ResponseSynthesizer struct {
	llm            llms.Model
	network        models.Network
	failureMarkers []string
	log            zerolog.Logger
}

// NewResponseSynthesizer creates a synthesizer. llm may be nil, in which case
// only templates run.
func NewResponseSynthesizer(llm llms.Model, network models.Network, log zerolog.Logger) *ResponseSynthesizer {
	return &ResponseSynthesizer{
		llm:            llm,
		network:        network,
		failureMarkers: defaultFailureMarkers,
		log:            log.With().Str("component", "synthesizer").Logger(),
	}
}

// SetFailureMarkers replaces the rejection substrings applied to LLM output.
// An empty slice disables marker screening entirely.
func (s *ResponseSynthesizer) SetFailureMarkers(markers []string) {
	s.failureMarkers = markers
}

// Synthesize produces the summary for a resolved query. rawData is the exact
// payload that ends up in the response proof, so the narration and the
// evidence always describe the same bytes.
func (s *ResponseSynthesizer) Synthesize(ctx context.Context, rawData interface{}, intent, walletAddress, originalQuery string) string {
	if s.llm != nil {
		summary, err := s.synthesizeWithLLM(ctx, rawData, intent, walletAddress, originalQuery)
		if err == nil {
			return summary
		}
		s.log.Warn().Err(err).Str("intent", intent).Msg("LLM synthesis failed, using template")
	}

	return s.templateResponse(rawData, intent, walletAddress)
}

func (s *ResponseSynthesizer) synthesizeWithLLM(ctx context.Context, rawData interface{}, intent, walletAddress, originalQuery string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nWallet: %s\nIntent: %s\nVerified chain data:\n%s",
		synthesizerSystemPrompt, walletAddress, intent, models.ToJSON(rawData))

	response, err := CallLLMWithRetry(ctx, s.llm, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, prompt),
		llms.TextParts(schema.ChatMessageTypeHuman, originalQuery),
	}, s.log, llms.WithTemperature(0.7))
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", errEmptyLLMResponse
	}

	summary := strings.TrimSpace(response.Choices[0].Content)
	if summary == "" {
		return "", errEmptyLLMResponse
	}

	lower := strings.ToLower(summary)
	for _, marker := range s.failureMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return "", fmt.Errorf("response contains failure marker %q", marker)
		}
	}

	return summary, nil
}

// templateResponse renders the deterministic summary for an intent. Unknown
// payload shapes fall through to a generic line rather than panicking.
func (s *ResponseSynthesizer) templateResponse(rawData interface{}, intent, walletAddress string) string {
	switch intent {
	case models.IntentBalance:
		if data, ok := rawData.(*models.BalanceData); ok {
			return s.balanceTemplate(data)
		}
	case models.IntentTransactions:
		if data, ok := rawData.(*models.TransactionsData); ok {
			return s.transactionsTemplate(data)
		}
	case models.IntentNFTs:
		if data, ok := rawData.(*models.NFTData); ok {
			return s.nftTemplate(data)
		}
	case models.IntentTokens:
		if data, ok := rawData.(*models.TokenData); ok {
			return s.tokenTemplate(data)
		}
	case models.IntentBlocks:
		if data, ok := rawData.(*models.BlockDetails); ok {
			return s.blockTemplate(data)
		}
	case models.IntentContracts:
		if data, ok := rawData.(*models.ContractInfo); ok {
			return s.contractTemplate(data)
		}
	case models.IntentOverview:
		if data, ok := rawData.(*models.OverviewData); ok {
			return s.overviewTemplate(data)
		}
	}

	return fmt.Sprintf("The Great Oz has gazed into the Emerald City's records for wallet %s, and the chain has spoken. The details rest in the proof below.", walletAddress)
}

func (s *ResponseSynthesizer) balanceTemplate(data *models.BalanceData) string {
	if !data.HasBalance {
		if !data.HasTransactions {
			return fmt.Sprintf("The Great Oz has peered into vault %s and found it untouched, holding %s. No transactions have yet traveled the yellow brick road from this wallet. A fresh start awaits!", data.WalletShort, data.BalanceFormatted)
		}
		return fmt.Sprintf("The Great Oz has consulted the emerald ledgers. Vault %s holds %s at this moment, though %s have departed from it on journeys past.", data.WalletShort, data.BalanceFormatted, pluralize(int(data.TransactionCount), "transaction"))
	}

	txNote := "No transactions have yet been sent from it."
	if data.HasTransactions {
		txNote = fmt.Sprintf("It has sent %s on its travels.", pluralize(int(data.TransactionCount), "transaction"))
	}

	return fmt.Sprintf("Behold! The Great Oz has consulted the emerald ledgers, and wallet %s holds %s. %s The chain itself vouches for every figure.", data.WalletShort, data.BalanceFormatted, txNote)
}

func (s *ResponseSynthesizer) transactionsTemplate(data *models.TransactionsData) string {
	if !data.HasTransactions {
		return fmt.Sprintf("The Great Oz has surveyed the most recent stretch of the yellow brick road and found no footprints from wallet %s. Its recent history is quiet, though older travels may lie beyond the surveyed blocks.", data.WalletShort)
	}

	summary := fmt.Sprintf("The Great Oz has traced the recent travels of wallet %s and found %s along the surveyed blocks.", data.WalletShort, pluralize(data.Count, "transaction"))
	if data.LatestTx != "" {
		summary += fmt.Sprintf(" The freshest of them bears the seal %s.", data.LatestTx)
	}
	return summary
}

func (s *ResponseSynthesizer) nftTemplate(data *models.NFTData) string {
	if data.Message != "" {
		return fmt.Sprintf("Ah, seeker of collectibles! %s The Great Oz cannot yet enumerate the treasures of this vault, but the capability approaches the Emerald City.", data.Message)
	}
	return fmt.Sprintf("The Great Oz counts %s across %s in this vault.", pluralize(data.TotalNFTs, "collectible"), pluralize(data.Collections, "collection"))
}

func (s *ResponseSynthesizer) tokenTemplate(data *models.TokenData) string {
	if data.Message != "" {
		return fmt.Sprintf("Ah, curious one! %s The Great Oz sees only native %s for now; the full token census awaits its unveiling.", data.Message, s.network.Symbol)
	}
	return fmt.Sprintf("The Great Oz finds %s recorded for this vault.", pluralize(len(data.Tokens), "token holding"))
}

func (s *ResponseSynthesizer) blockTemplate(data *models.BlockDetails) string {
	number, err := rpc.HexToUint64(data.Number)
	blockLabel := data.Number
	if err == nil {
		blockLabel = humanize.Comma(int64(number))
	}
	return fmt.Sprintf("The Great Oz has inspected block %s of the Emerald City's chain. It carries %s and was sealed with hash %s. The record is immutable and true.", blockLabel, pluralize(data.TransactionCount, "transaction"), data.Hash)
}

func (s *ResponseSynthesizer) contractTemplate(data *models.ContractInfo) string {
	if data.IsContract {
		return fmt.Sprintf("The Great Oz has examined address %s and found living bytecode within. A smart contract dwells there, its spells permanently inscribed upon the chain.", data.Address)
	}
	return fmt.Sprintf("The Great Oz has examined address %s and found no bytecode within. It is an ordinary wallet, not a contract, holding no inscribed spells.", data.Address)
}

func (s *ResponseSynthesizer) overviewTemplate(data *models.OverviewData) string {
	return fmt.Sprintf("The Great Oz presents the state of wallet %s: it holds %s and has sent %s along the yellow brick road. All figures certified by the chain itself.", data.WalletShort, data.BalanceFormatted, pluralize(int(data.TransactionCount), "transaction"))
}

// pluralize renders "1 transaction" / "3 transactions"
func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}
