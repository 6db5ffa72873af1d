package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/verushub/stakewatch/internal/indexing/metrics"
)

// HTTPProvider implements Provider for JSON-RPC 1.0 over HTTP with basic auth,
// the transport bitcoin-family daemons expose.
type HTTPProvider struct {
	name       string
	endpoint   string
	username   string
	password   string
	httpClient *http.Client
}

// NewHTTPProvider creates an HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint, username, password string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name returns the provider's configured name.
func (p *HTTPProvider) Name() string {
	return p.name
}

// Call makes a single JSON-RPC 1.0 call with positional params.
func (p *HTTPProvider) Call(ctx context.Context, method string, params ...any) (any, error) {
	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(p.name, method).Inc()

	result, err := p.call(ctx, method, params)

	metrics.RPCLatency.WithLabelValues(p.name, method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(p.name, method).Inc()
	}
	return result, err
}

func (p *HTTPProvider) call(ctx context.Context, method string, params []any) (any, error) {
	if params == nil {
		params = []any{}
	}

	reqBody := map[string]any{
		"jsonrpc": "1.0",
		"id":      "stakewatch",
		"method":  method,
		"params":  params,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.username != "" {
		req.SetBasicAuth(p.username, p.password)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Bitcoin-family daemons return RPC errors with non-200 codes but a
	// parseable body; prefer the embedded error message when present.
	var rpcResp struct {
		Result any `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
	}

	return rpcResp.Result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
