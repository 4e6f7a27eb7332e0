package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/arya-gaj/veri/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeLLM returns a canned completion or error for every call, keeping the
// last message set it was handed
type fakeLLM struct {
	content  string
	err      error
	calls    int
	messages []llms.MessageContent
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.content}},
	}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, nil, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func TestParseWithRulesIntentRouting(t *testing.T) {
	parser := NewIntentParser(nil, zerolog.Nop())

	tests := []struct {
		name   string
		query  string
		intent string
	}{
		{"concept question routes to knowledge", "what is an NFT", models.IntentGeneralKnowledge},
		{"explain routes to knowledge", "explain how gas fees work", models.IntentGeneralKnowledge},
		{"open question routes to knowledge", "why do transactions fail", models.IntentGeneralKnowledge},
		{"what-is outranks balance phrasing", "what is my balance", models.IntentGeneralKnowledge},
		{"balance query", "what's my balance", models.IntentBalance},
		{"worth query", "how much is my wallet worth", models.IntentBalance},
		{"nft balance routes to nfts", "show my NFT balance", models.IntentNFTs},
		{"collectibles", "show me my collectibles", models.IntentNFTs},
		{"token holdings", "list my token holdings", models.IntentTokens},
		{"transactions", "show my recent transactions", models.IntentTransactions},
		{"transfers", "what transfers did I make", models.IntentTransactions},
		{"contracts", "did I deploy any contracts", models.IntentContracts},
		{"blocks", "show me the latest block", models.IntentBlocks},
		{"unmatched defaults to overview", "summarize everything please", models.IntentOverview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := parser.Parse(context.Background(), tt.query)
			require.NotNil(t, parsed)
			assert.Equal(t, tt.intent, parsed.Intent)
		})
	}
}

func TestParseWithRulesLimitAndTimeRange(t *testing.T) {
	parser := NewIntentParser(nil, zerolog.Nop())

	parsed := parser.Parse(context.Background(), "show my last 5 transactions")
	assert.Equal(t, models.IntentTransactions, parsed.Intent)
	assert.Equal(t, 5, parsed.Limit)

	parsed = parser.Parse(context.Background(), "transactions from today")
	assert.Equal(t, models.TimeRange24h, parsed.TimeRange)

	parsed = parser.Parse(context.Background(), "activity this week")
	assert.Equal(t, models.TimeRange7d, parsed.TimeRange)

	parsed = parser.Parse(context.Background(), "transfers in the last month")
	assert.Equal(t, models.TimeRange30d, parsed.TimeRange)

	// No explicit count falls back to the default
	parsed = parser.Parse(context.Background(), "show my transactions")
	assert.Equal(t, models.DefaultLimit, parsed.Limit)
}

func TestParseKnowledgeQueriesSkipScoping(t *testing.T) {
	parser := NewIntentParser(nil, zerolog.Nop())

	parsed := parser.Parse(context.Background(), "what is a blockchain, explain the last 5 transaction types from today")
	assert.Equal(t, models.IntentGeneralKnowledge, parsed.Intent)
	assert.Empty(t, parsed.TimeRange)
	assert.Equal(t, models.DefaultLimit, parsed.Limit)
}

func TestParseWithLLM(t *testing.T) {
	llm := &fakeLLM{content: `{"intent":"transactions","entities":["0xabc"],"filters":["tx"],"timeRange":"7d","limit":3}`}
	parser := NewIntentParser(llm, zerolog.Nop())

	parsed := parser.Parse(context.Background(), "show my recent activity")
	assert.Equal(t, models.IntentTransactions, parsed.Intent)
	assert.Equal(t, []string{"0xabc"}, parsed.Entities)
	assert.Equal(t, models.TimeRange7d, parsed.TimeRange)
	assert.Equal(t, 3, parsed.Limit)
	assert.Equal(t, 1, llm.calls)
}

func TestParseWithLLMFencedJSON(t *testing.T) {
	llm := &fakeLLM{content: "```json\n{\"intent\":\"balance\"}\n```"}
	parser := NewIntentParser(llm, zerolog.Nop())

	parsed := parser.Parse(context.Background(), "how much do I have")
	assert.Equal(t, models.IntentBalance, parsed.Intent)
}

func TestParseWithLLMInvalidIntentKeepsDefault(t *testing.T) {
	llm := &fakeLLM{content: `{"intent":"teleportation","timeRange":"yesterday"}`}
	parser := NewIntentParser(llm, zerolog.Nop())

	parsed := parser.Parse(context.Background(), "do something odd")
	assert.Equal(t, models.IntentOverview, parsed.Intent)
	assert.Empty(t, parsed.TimeRange)
}

func TestParseFallsBackWhenLLMFails(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model unavailable")}
	parser := NewIntentParser(llm, zerolog.Nop())

	parsed := parser.Parse(context.Background(), "what's my balance")
	assert.Equal(t, models.IntentBalance, parsed.Intent)
}

func TestParseFallsBackOnMalformedLLMJSON(t *testing.T) {
	llm := &fakeLLM{content: "certainly! the intent is balance"}
	parser := NewIntentParser(llm, zerolog.Nop())

	parsed := parser.Parse(context.Background(), "what's my balance")
	assert.Equal(t, models.IntentBalance, parsed.Intent)
}
