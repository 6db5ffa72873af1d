// Package rpc provides a resilient JSON-RPC client for bitcoin-family nodes.
//
// Verus-style daemons speak JSON-RPC 1.0 over HTTP with basic auth. The
// package supports multiple node endpoints with retry, failover and error
// classification:
//
//	client := rpc.NewClient(
//		rpc.NewHTTPProvider("primary", url, user, pass, 30*time.Second),
//		rpc.NewHTTPProvider("fallback", url2, user, pass, 30*time.Second),
//	)
//	result, err := client.Call(ctx, "getblockcount")
package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider is one node endpoint.
type Provider interface {
	Name() string
	Call(ctx context.Context, method string, params ...any) (any, error)
}

// Client fans calls out across providers with retry and failover.
type Client struct {
	providers []Provider
	retry     RetryConfig
}

// NewClient creates a client over the given providers, tried in order.
func NewClient(providers ...Provider) *Client {
	return &Client{
		providers: providers,
		retry:     DefaultRetryConfig,
	}
}

// NewClientWithRetry creates a client with custom retry behavior.
func NewClientWithRetry(retry RetryConfig, providers ...Provider) *Client {
	return &Client{
		providers: providers,
		retry:     retry,
	}
}

// Call executes method against the first healthy provider, retrying transient
// failures with exponential backoff and failing over to the next provider.
func (c *Client) Call(ctx context.Context, method string, params ...any) (any, error) {
	if len(c.providers) == 0 {
		return nil, errors.New("no rpc providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		result, err := CallWithRetry(ctx, p, method, params, c.retry)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ClassifyError(err) == ActionFatal {
			return nil, fmt.Errorf("fatal error from provider %s: %w", p.Name(), err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// CallWithRetry executes an RPC call against one provider with exponential
// backoff for transient errors.
func CallWithRetry(
	ctx context.Context,
	p Provider,
	method string,
	params []any,
	config RetryConfig,
) (any, error) {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := p.Call(ctx, method, params...)
		if err == nil {
			return result, nil
		}

		lastErr = err

		action := ClassifyError(err)
		if action == ActionFatal {
			return nil, err
		}
		if action == ActionFailover {
			return nil, err // let the caller try the next provider
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := backoffDelay(attempt, config)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}
