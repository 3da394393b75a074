package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Balance is the faucet wallet's current holdings.
type Balance struct {
	Address  string `json:"address"`
	CoinType string `json:"coinType"`
	Mist     int64  `json:"balanceMist"`
}

// BalanceReader fetches the faucet wallet balance from a Sui fullnode.
type BalanceReader struct {
	rpcURL  string
	address string
	httpc   *http.Client
}

// NewBalanceReader constructs a reader for the given wallet address.
func NewBalanceReader(rpcURL, address string) *BalanceReader {
	return &BalanceReader{rpcURL: rpcURL, address: address, httpc: &http.Client{}}
}

// Read calls suix_getBalance for the faucet wallet.
func (r *BalanceReader) Read(ctx context.Context) (*Balance, error) {
	if strings.TrimSpace(r.address) == "" {
		return nil, fmt.Errorf("transfer: faucet wallet address not configured")
	}

	body, _ := sjson.Set("", "jsonrpc", "2.0")
	body, _ = sjson.Set(body, "id", 1)
	body, _ = sjson.Set(body, "method", "suix_getBalance")
	body, _ = sjson.Set(body, "params.0", r.address)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.rpcURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transfer: build balance request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transfer: balance call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("transfer: read balance response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transfer: balance call returned status %d", resp.StatusCode)
	}
	if rpcErr := gjson.GetBytes(payload, "error.message"); rpcErr.Exists() {
		return nil, fmt.Errorf("transfer: rpc error: %s", rpcErr.String())
	}

	result := gjson.GetBytes(payload, "result")
	if !result.Exists() {
		return nil, fmt.Errorf("transfer: balance response carries no result")
	}
	return &Balance{
		Address:  r.address,
		CoinType: result.Get("coinType").String(),
		Mist:     result.Get("totalBalance").Int(),
	}, nil
}
