// Package tendermint implements chain.Node over the Tendermint/CometBFT RPC
// HTTP API (GET /block and GET /block?height=N).
package tendermint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/blockledger/internal/core/domain"
	"github.com/vietddude/blockledger/internal/indexing/metrics"
	"github.com/vietddude/blockledger/internal/infra/chain"
)

const (
	DefaultTimeout = 5 * time.Second

	maxResponseSize = 32 << 20
)

// HealthStatus summarizes recent request outcomes.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
}

// Options configures a Client.
type Options struct {
	Timeout           time.Duration // per request, DefaultTimeout if zero
	RequestsPerSecond float64       // 0 = unlimited
}

// Client fetches block heights and hashes from a Tendermint RPC endpoint.
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int
}

// NewClient creates a client for the node at baseURL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid node url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid node url %q: scheme must be http or https", baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	c := &Client{
		endpoint: u,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
	}
	if opts.RequestsPerSecond > 0 {
		burst := max(1, int(opts.RequestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c, nil
}

// Head implements chain.Node.
func (c *Client) Head(ctx context.Context) (domain.Block, error) {
	return c.fetch(ctx, "head", 0)
}

// Block implements chain.Node.
func (c *Client) Block(ctx context.Context, height uint64) (domain.Block, error) {
	return c.fetch(ctx, "block", height)
}

// GetHealth returns the client's health status.
func (c *Client) GetHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}

// Close cleans up resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) blockURL(height uint64) string {
	u := *c.endpoint
	u.Path = path.Join("/", u.Path, "block")
	if height > 0 {
		q := u.Query()
		q.Set("height", strconv.FormatUint(height, 10))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// fetch requests the head block when height is zero, otherwise the block at height.
func (c *Client) fetch(ctx context.Context, method string, height uint64) (domain.Block, error) {
	start := time.Now()
	block, err := c.do(ctx, method, c.blockURL(height))
	if err == nil && height > 0 && block.Height != height {
		err = fmt.Errorf("requested height %d, node returned %d", height, block.Height)
	}
	if err != nil {
		c.recordFailure(err)
		metrics.NodeRequestsTotal.WithLabelValues(method, "error").Inc()
		return domain.Block{}, fmt.Errorf("%w: %v", chain.ErrBlockUnavailable, err)
	}

	c.recordSuccess(time.Since(start))
	metrics.NodeRequestsTotal.WithLabelValues(method, "ok").Inc()
	return block, nil
}

func (c *Client) do(ctx context.Context, method, target string) (domain.Block, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.Block{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.Block{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Block{}, fmt.Errorf("request %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.Block{}, fmt.Errorf("read response: %w", err)
	}

	metrics.NodeLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Block{}, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return decodeBlock(body)
}

func (c *Client) recordSuccess(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successCount++
	c.requestCount++
	c.totalLatency += latency
	c.health.LastSuccessAt = time.Now()
	c.health.Available = true

	if c.requestCount > 0 {
		c.health.ErrorRate = float64(c.failureCount) / float64(c.requestCount)
	}
	if c.successCount > 0 {
		c.health.Latency = c.totalLatency / time.Duration(c.successCount)
	}
}

func (c *Client) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount++
	c.requestCount++
	c.health.LastFailureAt = time.Now()
	c.health.LastError = err.Error()

	if c.requestCount > 0 {
		c.health.ErrorRate = float64(c.failureCount) / float64(c.requestCount)
	}

	if c.health.ErrorRate > 0.5 {
		c.health.Available = false
	}
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// =============================================================================
// Response decoding
// =============================================================================

// blockResult is the part of the /block response the ledger needs.
type blockResult struct {
	BlockID struct {
		Hash string `json:"hash"`
	} `json:"block_id"`
	Block struct {
		Header struct {
			Height height `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

// blockResponse accepts both the JSON-RPC envelope ({"result": {...}}) and
// the bare result object.
type blockResponse struct {
	blockResult
	Result *blockResult    `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// height decodes both "123" (Tendermint encodes int64 as strings) and 123.
type height uint64

func (h *height) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*h = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid height %s: %w", data, err)
	}
	*h = height(v)
	return nil
}

func decodeBlock(body []byte) (domain.Block, error) {
	var resp blockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Block{}, fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return domain.Block{}, fmt.Errorf("rpc error: %s", truncate(resp.Error, 256))
	}

	result := resp.blockResult
	if resp.Result != nil {
		result = *resp.Result
	}

	block := domain.Block{
		Height: uint64(result.Block.Header.Height),
		Hash:   result.BlockID.Hash,
	}
	if block.Height == 0 {
		return domain.Block{}, fmt.Errorf("parse response: missing block height")
	}
	if err := block.Validate(); err != nil {
		return domain.Block{}, fmt.Errorf("parse response: %w", err)
	}
	return block, nil
}
