package client

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"bot-ledger-go/internal/api"
	"bot-ledger-go/internal/config"
	"bot-ledger-go/internal/ledger"
	"bot-ledger-go/internal/models"
	"bot-ledger-go/internal/trader"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NodeClient defines the interface for talking to a bot ledger node.
type NodeClient interface {
	SubmitTransaction(ctx context.Context, tx *trader.Transaction) (*api.ReceiptView, error)
	GetBot(ctx context.Context, addr ledger.Identity) (*api.BotView, error)
	GetOwnerBot(ctx context.Context, owner ledger.Identity) (*api.BotView, error)
	GetBalance(ctx context.Context, addr ledger.Identity) (*api.BalanceView, error)
	GetTransactions(ctx context.Context, bot ledger.Identity, limit int) ([]models.Instruction, error)
	Airdrop(ctx context.Context, addr ledger.Identity, lamports uint64) (*api.BalanceView, error)
	Health(ctx context.Context) error
}

// RestClient is a client for the node HTTP API.
// It implements the NodeClient interface.
type RestClient struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// ensure RestClient implements the interface
var _ NodeClient = (*RestClient)(nil)

// APIError is a non-2xx answer from the node.
type APIError struct {
	Status  int
	Message string
	// Code and Name are set when the node classified the failure as a program error.
	Code *uint32
	Name string
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("request failed (%d %s): %s", e.Status, e.Name, e.Message)
	}
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
}

// NewRestClient creates a new node API client.
func NewRestClient(cfg *config.Client, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json")

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &RestClient{
		client:     client,
		logger:     logger.Named("client"),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
// 429 answers are always retried. 5xx answers and transport errors are
// retried only for GET: a POST may already have been applied by the node.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	idempotent := method == http.MethodGet

	req.SetContext(ctx).SetError(&api.ErrorResponse{})

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = idempotent
			}
			err = apiError(resp)
		} else if ctx.Err() == nil {
			shouldRetry = idempotent
		}

		if !shouldRetry || i == c.maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, err
}

func apiError(resp *resty.Response) *APIError {
	e := &APIError{Status: resp.StatusCode(), Message: resp.String()}
	if body, ok := resp.Error().(*api.ErrorResponse); ok && body.Error != "" {
		e.Message = body.Error
		e.Code = body.Code
		e.Name = body.Name
	}
	return e
}

// SubmitTransaction sends a signed transaction to the node.
func (c *RestClient) SubmitTransaction(ctx context.Context, tx *trader.Transaction) (*api.ReceiptView, error) {
	req := c.client.R().
		SetBody(tx).
		SetResult(&api.ReceiptView{})

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/transactions", req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit transaction %s: %w", tx.ID, err)
	}
	return resp.Result().(*api.ReceiptView), nil
}

// GetBot fetches the bot record at addr.
func (c *RestClient) GetBot(ctx context.Context, addr ledger.Identity) (*api.BotView, error) {
	req := c.client.R().SetResult(&api.BotView{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/bots/"+addr.String(), req)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot %s: %w", addr, err)
	}
	return resp.Result().(*api.BotView), nil
}

// GetOwnerBot fetches the bot owned by owner.
func (c *RestClient) GetOwnerBot(ctx context.Context, owner ledger.Identity) (*api.BotView, error) {
	req := c.client.R().SetResult(&api.BotView{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/owners/"+owner.String()+"/bot", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot of %s: %w", owner, err)
	}
	return resp.Result().(*api.BotView), nil
}

// GetBalance fetches the native balance of addr.
func (c *RestClient) GetBalance(ctx context.Context, addr ledger.Identity) (*api.BalanceView, error) {
	req := c.client.R().SetResult(&api.BalanceView{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/accounts/"+addr.String()+"/balance", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", addr, err)
	}
	return resp.Result().(*api.BalanceView), nil
}

// GetTransactions fetches journalled instructions, most recent first.
// A zero bot returns instructions for every bot.
func (c *RestClient) GetTransactions(ctx context.Context, bot ledger.Identity, limit int) ([]models.Instruction, error) {
	var history []models.Instruction
	req := c.client.R().SetResult(&history)
	if !bot.IsZero() {
		req.SetQueryParam("bot", bot.String())
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/transactions", req); err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return history, nil
}

// Airdrop asks the node faucet to credit addr.
func (c *RestClient) Airdrop(ctx context.Context, addr ledger.Identity, lamports uint64) (*api.BalanceView, error) {
	req := c.client.R().
		SetBody(api.AirdropRequest{Address: addr, Lamports: lamports}).
		SetResult(&api.BalanceView{})

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/airdrop", req)
	if err != nil {
		return nil, fmt.Errorf("failed to airdrop to %s: %w", addr, err)
	}
	return resp.Result().(*api.BalanceView), nil
}

// Health checks that the node is serving.
func (c *RestClient) Health(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/health", c.client.R()); err != nil {
		return fmt.Errorf("node health check failed: %w", err)
	}
	return nil
}
