package tools

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/arya-gaj/veri/internal/models"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// parserSystemPrompt fixes the taxonomy the LLM must map queries onto. The
// same taxonomy is enforced again after decoding, so a creative reply can
// never smuggle an unknown intent into the pipeline.
const parserSystemPrompt = `You are a blockchain query parser. Convert natural language questions into structured queries.
Return JSON with:
- intent: one of balance|transactions|nfts|tokens|contracts|blocks|overview|general_knowledge
- entities: array of addresses or token names mentioned in the query
- filters: array drawn from wallet|tx|nft|contract
- timeRange: one of 24h|7d|30d|all, omit if the query has no time scope
- limit: number of results requested, omit if unspecified
Use general_knowledge for open questions about concepts that need no wallet data.`

// intentRule is one entry in the fallback routing table: the first rule whose
// match fires without its exclusion wins. Keeping the table as explicit
// (predicate, intent) pairs makes the precedence auditable rule by rule.
type intentRule struct {
	name    string
	match   *regexp.Regexp
	exclude *regexp.Regexp
	intent  string
}

// fallbackRules is evaluated in order. General-knowledge phrasing is checked
// first so open questions about concepts ("what is an NFT") are never
// misrouted into chain lookups; the balance rule excludes NFT/token phrasing
// so qualified questions like "show my NFT balance" route to the asset rule
// further down.
var fallbackRules = []intentRule{
	{
		name:   "general knowledge",
		match:  regexp.MustCompile(`what is|what are|tell me about|explain|how does|how do|define|describe`),
		intent: models.IntentGeneralKnowledge,
	},
	{
		name:    "open question",
		match:   regexp.MustCompile(`why|when|where`),
		exclude: regexp.MustCompile(`my|i have|show|get`),
		intent:  models.IntentGeneralKnowledge,
	},
	{
		name:    "balance",
		match:   regexp.MustCompile(`balance|how much|worth|value`),
		exclude: regexp.MustCompile(`nft|collectible|erc721|erc1155|token`),
		intent:  models.IntentBalance,
	},
	{
		name:    "nfts",
		match:   regexp.MustCompile(`nft|collectible|token id|erc721|erc1155`),
		exclude: regexp.MustCompile(`what is|explain`),
		intent:  models.IntentNFTs,
	},
	{
		name:    "tokens",
		match:   regexp.MustCompile(`token|erc20|holdings|asset`),
		exclude: regexp.MustCompile(`what is|explain`),
		intent:  models.IntentTokens,
	},
	{
		name:   "transactions",
		match:  regexp.MustCompile(`transaction|tx|transfer|sent|received|activity`),
		intent: models.IntentTransactions,
	},
	{
		name:   "contracts",
		match:  regexp.MustCompile(`contract|deploy|interact|call`),
		intent: models.IntentContracts,
	},
	{
		name:    "blocks",
		match:   regexp.MustCompile(`block|timestamp|when|date`),
		exclude: regexp.MustCompile(`what is|explain`),
		intent:  models.IntentBlocks,
	},
}

// Time-range and limit extraction run independently of intent classification
var (
	timeRange24hPattern = regexp.MustCompile(`today|24 hour|last day`)
	timeRange7dPattern  = regexp.MustCompile(`week|7 day`)
	timeRange30dPattern = regexp.MustCompile(`month|30 day`)
	limitPattern        = regexp.MustCompile(`(\d+)\s*(transaction|nft|token)`)
)

// IntentParser converts free-text queries into structured ParsedQuery values.
// The LLM strategy is primary when a model is configured; the rule table is a
// complete fallback, not a degraded stub, since it is the only path exercised
// in environments without the optional service.
type IntentParser struct {
	llm llms.Model
	log zerolog.Logger
}

// NewIntentParser creates a parser. llm may be nil, in which case only the
// deterministic rules run.
func NewIntentParser(llm llms.Model, log zerolog.Logger) *IntentParser {
	return &IntentParser{
		llm: llm,
		log: log.With().Str("component", "intent_parser").Logger(),
	}
}

// Parse classifies a query. Total: it always returns a valid ParsedQuery and
// never propagates an upstream failure to the caller.
func (p *IntentParser) Parse(ctx context.Context, query string) *models.ParsedQuery {
	if p.llm != nil {
		parsed, err := p.parseWithLLM(ctx, query)
		if err == nil {
			return parsed
		}
		p.log.Warn().Err(err).Msg("LLM parsing failed, using fallback rules")
	}

	return p.parseWithRules(query)
}

// llmParsedQuery is the decode target for the model's JSON reply
type llmParsedQuery struct {
	Intent    string   `json:"intent"`
	Entities  []string `json:"entities"`
	Filters   []string `json:"filters"`
	TimeRange string   `json:"timeRange"`
	Limit     int      `json:"limit"`
}

func (p *IntentParser) parseWithLLM(ctx context.Context, query string) (*models.ParsedQuery, error) {
	response, err := CallLLMWithRetry(ctx, p.llm, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, parserSystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, query),
	}, p.log, llms.WithJSONMode(), llms.WithTemperature(0.3))
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, errEmptyLLMResponse
	}

	var decoded llmParsedQuery
	if err := json.Unmarshal([]byte(stripJSONFences(response.Choices[0].Content)), &decoded); err != nil {
		return nil, err
	}

	parsed := models.NewParsedQuery()
	if models.IsValidIntent(decoded.Intent) {
		parsed.Intent = decoded.Intent
	}
	if decoded.Entities != nil {
		parsed.Entities = decoded.Entities
	}
	if decoded.Filters != nil {
		parsed.Filters = decoded.Filters
	}
	switch decoded.TimeRange {
	case models.TimeRange24h, models.TimeRange7d, models.TimeRange30d, models.TimeRangeAll:
		parsed.TimeRange = decoded.TimeRange
	}
	if decoded.Limit > 0 {
		parsed.Limit = decoded.Limit
	}

	return parsed, nil
}

// parseWithRules classifies a query through the ordered routing table
func (p *IntentParser) parseWithRules(query string) *models.ParsedQuery {
	queryLower := strings.ToLower(query)
	parsed := models.NewParsedQuery()

	for _, rule := range fallbackRules {
		if !rule.match.MatchString(queryLower) {
			continue
		}
		if rule.exclude != nil && rule.exclude.MatchString(queryLower) {
			continue
		}
		parsed.Intent = rule.intent
		break
	}

	// General-knowledge queries carry no wallet scoping
	if parsed.Intent == models.IntentGeneralKnowledge {
		return parsed
	}

	switch {
	case timeRange24hPattern.MatchString(queryLower):
		parsed.TimeRange = models.TimeRange24h
	case timeRange7dPattern.MatchString(queryLower):
		parsed.TimeRange = models.TimeRange7d
	case timeRange30dPattern.MatchString(queryLower):
		parsed.TimeRange = models.TimeRange30d
	}

	if m := limitPattern.FindStringSubmatch(queryLower); m != nil {
		if limit, err := strconv.Atoi(m[1]); err == nil && limit > 0 {
			parsed.Limit = limit
		}
	}

	return parsed
}

// stripJSONFences removes markdown code fences some models wrap JSON in
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
