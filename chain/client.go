package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Client talks JSON-RPC to the ledger node and implements Reader.
type Client struct {
	rpcURL          string
	factoryAddress  string
	httpClient      *http.Client
	receiptInterval time.Duration
	reqID           atomic.Int64
}

// NewClient builds a Reader bound to the given RPC endpoint and factory
// contract.
func NewClient(rpcURL, factoryAddress string) *Client {
	return &Client{
		rpcURL:          rpcURL,
		factoryAddress:  NormalizeAddress(factoryAddress),
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		receiptInterval: 2 * time.Second,
	}
}

type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.reqID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("chain: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chain: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("chain: decode %s response: %w", method, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("chain: %s: rpc error %d: %s", method, parsed.Error.Code, parsed.Error.Message)
	}
	return parsed.Result, nil
}

func (c *Client) ethCall(ctx context.Context, to, data string) ([][]byte, error) {
	raw, err := c.call(ctx, "eth_call", map[string]string{"to": to, "data": data}, "latest")
	if err != nil {
		return nil, err
	}
	var result string
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("chain: decode eth_call result: %w", err)
	}
	return decodeWords(result)
}

// GetDealInfo implements Reader.
func (c *Client) GetDealInfo(ctx context.Context, escrowAddress string) (DealInfo, error) {
	words, err := c.ethCall(ctx, NormalizeAddress(escrowAddress), Calldata("getDealInfo()"))
	if err != nil {
		return DealInfo{}, err
	}
	if len(words) < 9 {
		return DealInfo{}, fmt.Errorf("chain: getDealInfo returned %d words, want 9", len(words))
	}

	info := DealInfo{
		Buyer:    wordAddress(words[0]),
		Seller:   wordAddress(words[1]),
		Token:    wordAddress(words[2]),
		Amount:   wordBig(words[3]),
		Deadline: wordBig(words[4]).Int64(),
		Arbiter:  wordAddress(words[5]),
		Status:   Status(wordBig(words[7]).Uint64()),
		FundedAt: wordBig(words[8]).Int64(),
	}
	copy(info.MemoHash[:], words[6])
	return info, nil
}

type rpcLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

func (l rpcLog) toLog() Log {
	data, err := hex.DecodeString(strings.TrimPrefix(l.Data, "0x"))
	if err != nil {
		data = nil
	}
	return Log{Address: NormalizeAddress(l.Address), Topics: l.Topics, Data: data}
}

// GetDisputeWinner implements Reader. It scans DisputeResolved logs from
// genesis and returns the winner of the first one.
func (c *Client) GetDisputeWinner(ctx context.Context, escrowAddress string) (string, error) {
	raw, err := c.call(ctx, "eth_getLogs", map[string]any{
		"address":   NormalizeAddress(escrowAddress),
		"topics":    []string{disputeResolvedTopic},
		"fromBlock": "0x0",
		"toBlock":   "latest",
	})
	if err != nil {
		return "", err
	}

	var logs []rpcLog
	if err := json.Unmarshal(raw, &logs); err != nil {
		return "", fmt.Errorf("chain: decode eth_getLogs result: %w", err)
	}
	if len(logs) == 0 {
		return "", nil
	}
	winner, ok := winnerFromLog(logs[0].toLog())
	if !ok {
		return "", fmt.Errorf("chain: malformed DisputeResolved log on %s", escrowAddress)
	}
	return winner, nil
}

// GetEscrowCount implements Reader.
func (c *Client) GetEscrowCount(ctx context.Context) (uint64, error) {
	words, err := c.ethCall(ctx, c.factoryAddress, Calldata("getEscrowCount()"))
	if err != nil {
		return 0, err
	}
	if len(words) < 1 {
		return 0, fmt.Errorf("chain: empty getEscrowCount result")
	}
	return wordBig(words[0]).Uint64(), nil
}

type rpcReceipt struct {
	TransactionHash string   `json:"transactionHash"`
	Status          string   `json:"status"`
	Logs            []rpcLog `json:"logs"`
}

// WaitReceipt implements Reader. It polls for the transaction receipt until
// the transaction is mined or ctx expires.
func (c *Client) WaitReceipt(ctx context.Context, txHash string) (Receipt, error) {
	ticker := time.NewTicker(c.receiptInterval)
	defer ticker.Stop()

	for {
		raw, err := c.call(ctx, "eth_getTransactionReceipt", txHash)
		if err != nil {
			log.WithError(err).WithField("tx_hash", txHash).Debug("receipt poll failed, retrying")
		} else if string(raw) != "null" && len(raw) > 0 {
			var parsed rpcReceipt
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return Receipt{}, fmt.Errorf("chain: decode receipt: %w", err)
			}
			receipt := Receipt{
				TxHash:  parsed.TransactionHash,
				Success: parsed.Status == "0x1",
			}
			for _, l := range parsed.Logs {
				receipt.Logs = append(receipt.Logs, l.toLog())
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return Receipt{}, fmt.Errorf("chain: wait receipt %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
