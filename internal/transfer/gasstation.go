// Package transfer talks to the settlement side: the gas station that
// signs and broadcasts the grant transaction, and the fullnode RPC used
// for balance reads. The pipeline treats both as opaque collaborators.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const maxResponseBytes = 1 << 20

// ErrTransferRejected reports a settlement attempt the gas station
// definitively refused.
var ErrTransferRejected = errors.New("transfer: rejected by gas station")

// Client performs single-attempt grant transfers through a gas-station
// endpoint. It never retries: duplicate submissions risk duplicate
// grants, and admission throttling already happened upstream.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient constructs a client for the gas station at baseURL. The
// per-attempt deadline comes from the caller's context.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
	}
}

// Transfer asks the gas station to send amountMist to walletAddress
// and returns the transaction digest. All failure modes, including a
// context deadline, surface as errors for the pipeline to record.
func (c *Client) Transfer(ctx context.Context, walletAddress string, amountMist int64) (string, error) {
	body, _ := sjson.Set("", "FixedAmountRequest.recipient", walletAddress)
	body, _ = sjson.Set(body, "FixedAmountRequest.amount", amountMist)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/gas", strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("transfer: build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("transfer: gas station call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("transfer: read response failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: status %d: %s", ErrTransferRejected, resp.StatusCode, snippet(payload))
	}
	if errMsg := gjson.GetBytes(payload, "error"); errMsg.Exists() && errMsg.String() != "" {
		return "", fmt.Errorf("%w: %s", ErrTransferRejected, errMsg.String())
	}

	digest := gjson.GetBytes(payload, "transferredGasObjects.0.transferTxDigest").String()
	if digest == "" {
		return "", fmt.Errorf("%w: response carries no digest: %s", ErrTransferRejected, snippet(payload))
	}

	log.Infof("transfer: sent %d MIST to %s, digest %s (%s)",
		amountMist, walletAddress, digest, time.Since(start).Round(time.Millisecond))
	return digest, nil
}

func snippet(payload []byte) string {
	const max = 200
	s := strings.TrimSpace(string(payload))
	if len(s) > max {
		return s[:max]
	}
	return s
}
