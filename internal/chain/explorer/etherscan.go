package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/internal/interfaces"
	"github.com/ioogle/evm-tx-sampler/internal/metrics"
	"github.com/ioogle/evm-tx-sampler/internal/types"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
	"github.com/ioogle/evm-tx-sampler/pkg/utils"
	"golang.org/x/time/rate"
)

const (
	actionTxList = "txlist"
	actionGetABI = "getabi"

	// Etherscan free tier allows 5 calls per second
	defaultRateLimit = 5.0

	noTransactionsMessage = "no transactions found"
	notVerifiedMessage    = "not verified"
)

var _ interfaces.ExplorerClient = (*Client)(nil)

// Client Etherscan compatible REST client bound to one chain
type Client struct {
	chainName  string
	chainID    uint64
	apiURL     string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      config.RetryConfig
	metrics    *metrics.Explorer
}

// NewClient creates an explorer client for the chain
func NewClient(cfg config.ChainConfig, retry config.RetryConfig) *Client {
	limit := cfg.ExplorerRateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}

	return &Client{
		chainName: cfg.Name,
		chainID:   cfg.ChainID,
		apiURL:    cfg.ExplorerAPIURL,
		apiKey:    cfg.ExplorerAPIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
		retry:   retry,
		metrics: metrics.NewExplorer(cfg.Name),
	}
}

// apiResponse Etherscan response envelope
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// txRecord element of the txlist result
type txRecord struct {
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Input       string `json:"input"`
	MethodID    string `json:"methodId"`
	IsError     string `json:"isError"`
}

// ListTransactions lists normal transactions of an address
func (c *Client) ListTransactions(ctx context.Context, address common.Address, opts interfaces.ListOptions) ([]types.ExplorerTransaction, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", actionTxList)
	params.Set("address", address.Hex())
	params.Set("startblock", strconv.FormatUint(opts.StartBlock, 10))
	params.Set("endblock", strconv.FormatUint(opts.EndBlock, 10))
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Sort != "" {
		params.Set("sort", string(opts.Sort))
	}

	resp, err := c.request(ctx, actionTxList, params)
	if err != nil {
		return nil, err
	}

	if resp.Status != "1" {
		if strings.EqualFold(resp.Message, noTransactionsMessage) {
			return []types.ExplorerTransaction{}, nil
		}
		return nil, fmt.Errorf("explorer txlist for %s failed: %s", address.Hex(), resultText(resp))
	}

	var records []txRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("failed to decode txlist result: %w", err)
	}

	txs := make([]types.ExplorerTransaction, 0, len(records))
	for _, r := range records {
		tx, err := r.toExplorerTransaction()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// GetVerifiedABI gets the JSON ABI of a verified contract
func (c *Client) GetVerifiedABI(ctx context.Context, address common.Address) (string, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", actionGetABI)
	params.Set("address", address.Hex())

	resp, err := c.request(ctx, actionGetABI, params)
	if err != nil {
		return "", err
	}

	text := resultText(resp)
	if resp.Status != "1" {
		if strings.Contains(strings.ToLower(text), notVerifiedMessage) {
			return "", fmt.Errorf("%s: %w", address.Hex(), types.ErrContractNotVerified)
		}
		return "", fmt.Errorf("explorer getabi for %s failed: %s", address.Hex(), text)
	}
	return text, nil
}

// request sends one GET with rate limiting and retry.
// Etherscan reports rate limiting inside a 200 response, so that case is retried too.
func (c *Client) request(ctx context.Context, action string, params url.Values) (*apiResponse, error) {
	if c.chainID != 0 {
		params.Set("chainid", strconv.FormatUint(c.chainID, 10))
	}
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	endpoint := c.apiURL + "?" + params.Encode()
	description := fmt.Sprintf("explorer %s on %s", action, c.chainName)

	return utils.RetryWithResult(ctx, c.retry, func() (*apiResponse, error) {
		started := time.Now()
		resp, err := c.do(ctx, endpoint)
		c.metrics.Observe(action, err, started)
		return resp, err
	}, description)
}

func (c *Client) do(ctx context.Context, endpoint string) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, utils.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, utils.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := fmt.Errorf("HTTP error: %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, utils.Permanent(httpErr)
		}
		return nil, httpErr
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, utils.Permanent(fmt.Errorf("decode response: %w", err))
	}

	if out.Status != "1" && isRateLimited(resultText(&out)) {
		logger.Debugf("Explorer rate limited: %s", resultText(&out))
		return nil, errors.New(resultText(&out))
	}

	return &out, nil
}

// resultText returns the result as text when it is a JSON string, else the message
func resultText(resp *apiResponse) string {
	var s string
	if err := json.Unmarshal(resp.Result, &s); err == nil && s != "" {
		return s
	}
	return resp.Message
}

func isRateLimited(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "rate limit")
}

func (r txRecord) toExplorerTransaction() (types.ExplorerTransaction, error) {
	blockNumber, err := strconv.ParseUint(r.BlockNumber, 10, 64)
	if err != nil {
		return types.ExplorerTransaction{}, fmt.Errorf("invalid block number %q for %s: %w", r.BlockNumber, r.Hash, err)
	}

	var timestamp uint64
	if r.TimeStamp != "" {
		timestamp, err = strconv.ParseUint(r.TimeStamp, 10, 64)
		if err != nil {
			return types.ExplorerTransaction{}, fmt.Errorf("invalid timestamp %q for %s: %w", r.TimeStamp, r.Hash, err)
		}
	}

	return types.ExplorerTransaction{
		Hash:        strings.ToLower(r.Hash),
		BlockNumber: blockNumber,
		From:        strings.ToLower(r.From),
		To:          strings.ToLower(r.To),
		Input:       r.Input,
		MethodID:    r.MethodID,
		Timestamp:   timestamp,
		IsError:     r.IsError == "1",
	}, nil
}
