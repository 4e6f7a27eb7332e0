package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arya-gaj/veri/internal/models"
)

// Client is a JSON-RPC client for the configured chain. It holds no
// per-request state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	network    models.Network
}

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int         `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error"`
	ID      int             `json:"id"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Block is the wire shape of an eth_getBlockByNumber result. Transactions is
// kept raw because its element type depends on whether full bodies were
// requested.
type Block struct {
	Number       string          `json:"number"`
	Hash         string          `json:"hash"`
	ParentHash   string          `json:"parentHash"`
	Timestamp    string          `json:"timestamp"`
	GasUsed      string          `json:"gasUsed"`
	GasLimit     string          `json:"gasLimit"`
	Transactions json.RawMessage `json:"transactions"`
}

// TransactionCount returns the number of transactions in the block,
// regardless of whether full bodies or just hashes were fetched.
func (b *Block) TransactionCount() int {
	var items []json.RawMessage
	if err := json.Unmarshal(b.Transactions, &items); err != nil {
		return 0
	}
	return len(items)
}

// TransactionObjects decodes full transaction bodies. Only valid when the
// block was fetched with includeTxs=true.
func (b *Block) TransactionObjects() ([]models.Transaction, error) {
	var txs []models.Transaction
	if len(b.Transactions) == 0 {
		return txs, nil
	}
	if err := json.Unmarshal(b.Transactions, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode block transactions: %w", err)
	}
	return txs, nil
}

// NewClient creates a new RPC client for the given network
func NewClient(network models.Network) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		network: network,
	}
}

// GetNetwork returns the network this client reads from
func (c *Client) GetNetwork() models.Network {
	return c.network
}

// call makes a JSON-RPC call to the chain node
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.network.RPCUrl, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200]
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w (body: %s)", err, bodyPreview)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}

// callString makes a JSON-RPC call whose result is a plain hex string
func (c *Client) callString(ctx context.Context, method string, params interface{}) (string, error) {
	result, err := c.call(ctx, method, params)
	if err != nil {
		return "", err
	}

	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return "", fmt.Errorf("failed to unmarshal %s result: %w", method, err)
	}
	return s, nil
}

// BlockNumber retrieves the current chain height
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	hex, err := c.callString(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, err
	}
	return HexToUint64(hex)
}

// GetBalance retrieves the native balance of an address in base units
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	hex, err := c.callString(ctx, "eth_getBalance", []string{address, "latest"})
	if err != nil {
		return nil, err
	}
	return HexToBig(hex)
}

// GetTransactionCount retrieves the outbound transaction count of an address
func (c *Client) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	hex, err := c.callString(ctx, "eth_getTransactionCount", []string{address, "latest"})
	if err != nil {
		return 0, err
	}
	return HexToUint64(hex)
}

// GetBlockByNumber retrieves a block. With includeTxs the transactions field
// carries full bodies instead of hashes.
func (c *Client) GetBlockByNumber(ctx context.Context, number uint64, includeTxs bool) (*Block, error) {
	result, err := c.call(ctx, "eth_getBlockByNumber", []interface{}{Uint64ToHex(number), includeTxs})
	if err != nil {
		return nil, err
	}

	if string(result) == "null" {
		return nil, fmt.Errorf("block %d not found", number)
	}

	var block Block
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %w", err)
	}

	return &block, nil
}

// GetCode retrieves the bytecode deployed at an address. "0x" means none.
func (c *Client) GetCode(ctx context.Context, address string) (string, error) {
	return c.callString(ctx, "eth_getCode", []string{address, "latest"})
}

// HexToUint64 converts a 0x-prefixed hex quantity to uint64
func HexToUint64(hex string) (uint64, error) {
	hex = strings.TrimPrefix(hex, "0x")
	if hex == "" {
		return 0, nil
	}
	return strconv.ParseUint(hex, 16, 64)
}

// HexToBig converts a 0x-prefixed hex quantity to an arbitrary-precision
// integer. Balances can exceed uint64, so no width limit applies here.
func HexToBig(hex string) (*big.Int, error) {
	hex = strings.TrimPrefix(hex, "0x")
	if hex == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity: %q", hex)
	}
	return n, nil
}

// Uint64ToHex converts a uint64 to a 0x-prefixed hex quantity
func Uint64ToHex(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}
