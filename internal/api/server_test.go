package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arya-gaj/veri/internal/agent"
	"github.com/arya-gaj/veri/internal/chain"
	"github.com/arya-gaj/veri/internal/models"
	"github.com/arya-gaj/veri/internal/rpc"
	"github.com/arya-gaj/veri/internal/store"
	"github.com/arya-gaj/veri/internal/tools"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "0x1234567890123456789012345678901234567890"

type stubReader struct {
	head    uint64
	balance *big.Int
	headErr error
}

func (r *stubReader) BlockNumber(context.Context) (uint64, error) {
	return r.head, r.headErr
}

func (r *stubReader) GetBalance(context.Context, string) (*big.Int, error) {
	return r.balance, nil
}

func (r *stubReader) GetTransactionCount(context.Context, string) (uint64, error) {
	return 2, nil
}

func (r *stubReader) GetBlockByNumber(_ context.Context, number uint64, _ bool) (*rpc.Block, error) {
	return &rpc.Block{
		Number:       rpc.Uint64ToHex(number),
		Hash:         "0xblockhash",
		Timestamp:    "0x68b59aa0",
		GasUsed:      "0x5208",
		GasLimit:     "0x1c9c380",
		Transactions: []byte("[]"),
	}, nil
}

func (r *stubReader) GetCode(context.Context, string) (string, error) {
	return "0x", nil
}

type stubStore struct {
	entries []store.QueryLog
	err     error
}

func (s *stubStore) LogQuery(context.Context, *store.QueryLog) error { return nil }

func (s *stubStore) History(context.Context, string, int64) ([]store.QueryLog, error) {
	return s.entries, s.err
}

func (s *stubStore) Close(context.Context) error { return nil }

func newTestServer(reader chain.Reader, queryStore store.Store) *Server {
	network := models.Network{ID: 50311, Name: "Somnia Testnet", RPCUrl: "http://localhost:8545", Symbol: "STT", Decimals: 18}
	log := zerolog.Nop()

	parser := tools.NewIntentParser(nil, log)
	fetcher := chain.NewFetcher(reader, network, nil, log)
	synthesizer := tools.NewResponseSynthesizer(nil, network, log)
	resolver := agent.NewResolver(parser, fetcher, synthesizer, queryStore, log)

	return NewServer("127.0.0.1:0", resolver, nil, network, queryStore, log)
}

func postQuery(t *testing.T, server *Server, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Somnia Testnet", body["network"])
}

func TestNetworkEndpointHidesRPCURL(t *testing.T) {
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, nil)

	req := httptest.NewRequest("GET", "/api/v1/network", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "localhost:8545")
	assert.Contains(t, recorder.Body.String(), "STT")
}

func TestQueryEndpoint(t *testing.T) {
	balance, _ := new(big.Int).SetString("5200000000000000000", 10)
	server := newTestServer(&stubReader{head: 100, balance: balance}, nil)

	recorder := postQuery(t, server, models.QueryRequest{
		Query:         "what's my balance",
		WalletAddress: testWallet,
	})

	require.Equal(t, http.StatusOK, recorder.Code)

	var response models.QueryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(t, response.Verified)
	require.NotNil(t, response.Proof)
	assert.Equal(t, uint64(100), response.Proof.BlockNumber)
	assert.Contains(t, response.Summary, "5 STT")
}

func TestQueryEndpointKnowledge(t *testing.T) {
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, nil)

	recorder := postQuery(t, server, models.QueryRequest{
		Query:         "what is an NFT",
		WalletAddress: testWallet,
	})

	require.Equal(t, http.StatusOK, recorder.Code)

	var response models.QueryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.False(t, response.Verified)
	assert.True(t, response.GlindaGlorified)
	assert.Nil(t, response.Proof)
}

func TestQueryEndpointInvalidAddress(t *testing.T) {
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, nil)

	recorder := postQuery(t, server, models.QueryRequest{
		Query:         "what's my balance",
		WalletAddress: "not-an-address",
	})

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "40 hexadecimal characters")
}

func TestQueryEndpointEmptyQuery(t *testing.T) {
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, nil)

	recorder := postQuery(t, server, models.QueryRequest{WalletAddress: testWallet})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestQueryEndpointHidesInternalErrors(t *testing.T) {
	server := newTestServer(&stubReader{headErr: errors.New("rpc node exploded at 10.0.0.5")}, nil)

	recorder := postQuery(t, server, models.QueryRequest{
		Query:         "show my balance",
		WalletAddress: testWallet,
	})

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "10.0.0.5")
	assert.Contains(t, recorder.Body.String(), "curtain has fallen")
}

func TestHistoryEndpoint(t *testing.T) {
	queryStore := &stubStore{entries: []store.QueryLog{
		{ID: "1", Query: "what is my balance", WalletAddress: testWallet, Intent: "balance", Verified: true},
	}}
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, queryStore)

	req := httptest.NewRequest("GET", "/api/v1/history/"+testWallet, nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "what is my balance")
}

func TestHistoryEndpointWithoutStore(t *testing.T) {
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, nil)

	req := httptest.NewRequest("GET", "/api/v1/history/"+testWallet, nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		History []store.QueryLog `json:"history"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Empty(t, body.History)
}

func TestHistoryEndpointInvalidAddress(t *testing.T) {
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, &stubStore{})

	req := httptest.NewRequest("GET", "/api/v1/history/nonsense", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRequestIDHeader(t *testing.T) {
	server := newTestServer(&stubReader{balance: big.NewInt(0)}, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	recorder = httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	assert.Equal(t, "caller-supplied", recorder.Header().Get("X-Request-ID"))
}
