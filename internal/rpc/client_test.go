package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arya-gaj/veri/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestNode serves canned JSON-RPC results per method
func newTestNode(t *testing.T, results map[string]interface{}) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		if !ok {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func newTestClient(url string) *Client {
	return NewClient(models.Network{ID: 50311, RPCUrl: url, Symbol: "STT", Decimals: 18})
}

func TestBlockNumber(t *testing.T) {
	node := newTestNode(t, map[string]interface{}{"eth_blockNumber": "0x10"})
	defer node.Close()

	head, err := newTestClient(node.URL).BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(16), head)
}

func TestGetBalance(t *testing.T) {
	node := newTestNode(t, map[string]interface{}{"eth_getBalance": "0x482a1c7300080000"})
	defer node.Close()

	balance, err := newTestClient(node.URL).GetBalance(context.Background(), "0xabc")
	require.NoError(t, err)

	expected, _ := new(big.Int).SetString("5200000000000000000", 10)
	assert.Equal(t, 0, balance.Cmp(expected))
}

func TestGetBlockByNumber(t *testing.T) {
	node := newTestNode(t, map[string]interface{}{
		"eth_getBlockByNumber": map[string]interface{}{
			"number":       "0x10",
			"hash":         "0xblockhash",
			"timestamp":    "0x68b59aa0",
			"gasUsed":      "0x5208",
			"gasLimit":     "0x1c9c380",
			"transactions": []string{"0xtx1", "0xtx2"},
		},
	})
	defer node.Close()

	block, err := newTestClient(node.URL).GetBlockByNumber(context.Background(), 16, false)
	require.NoError(t, err)
	assert.Equal(t, "0xblockhash", block.Hash)
	assert.Equal(t, 2, block.TransactionCount())
}

func TestGetBlockByNumberMissing(t *testing.T) {
	node := newTestNode(t, map[string]interface{}{"eth_getBlockByNumber": nil})
	defer node.Close()

	_, err := newTestClient(node.URL).GetBlockByNumber(context.Background(), 99, false)
	assert.Error(t, err)
}

func TestRPCErrorSurfaces(t *testing.T) {
	node := newTestNode(t, map[string]interface{}{})
	defer node.Close()

	_, err := newTestClient(node.URL).BlockNumber(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestTransactionObjects(t *testing.T) {
	raw, _ := json.Marshal([]models.Transaction{
		{Hash: "0xaaa", From: "0xfrom", To: "0xto", Value: "0x1", BlockNumber: "0x10"},
	})
	block := &Block{Transactions: raw}

	txs, err := block.TransactionObjects()
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "0xaaa", txs[0].Hash)
}

func TestHexHelpers(t *testing.T) {
	n, err := HexToUint64("0x10")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), n)

	n, err = HexToUint64("")
	require.NoError(t, err)
	assert.Zero(t, n)

	amount, err := HexToBig("0x482a1c7300080000")
	require.NoError(t, err)
	assert.Equal(t, "5200000000000000000", amount.String())

	_, err = HexToBig("0xnothex")
	assert.Error(t, err)

	assert.Equal(t, "0x10", Uint64ToHex(16))
}
