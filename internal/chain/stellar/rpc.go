package stellar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// rpcClient is a minimal Soroban JSON-RPC client covering the one method
// this service needs: getLedgerEntries for the factory contract's instance
// entry.
type rpcClient struct {
	url        string
	httpClient *http.Client
}

func newRPCClient(url string, timeout time.Duration) *rpcClient {
	return &rpcClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ledgerEntryResult struct {
	Key                   string `json:"key"`
	XDR                   string `json:"xdr"`
	LastModifiedLedgerSeq uint32 `json:"lastModifiedLedgerSeq"`
}

// getLedgerEntries fetches raw ledger entries for the given base64 XDR keys.
// Missing entries are simply absent from the result, not an error.
func (c *rpcClient) getLedgerEntries(ctx context.Context, keys []string) ([]ledgerEntryResult, error) {
	reqBody, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "getLedgerEntries",
		"params":  map[string]interface{}{"keys": keys},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling getLedgerEntries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getLedgerEntries: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Result struct {
			Entries []ledgerEntryResult `json:"entries"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding getLedgerEntries response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("getLedgerEntries: rpc error %d: %s", result.Error.Code, result.Error.Message)
	}

	return result.Result.Entries, nil
}
