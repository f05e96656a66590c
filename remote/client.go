// remote/client.go
package remote

import (
	"auto_zonky_go/errs"
	"auto_zonky_go/logs"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Ensure APIClient struct implements Client interface
var _ Client = (*APIClient)(nil)

// APIClient talks to the lending platform's REST API.
type APIClient struct {
	AccessToken   string
	BaseURL       string
	Http          *http.Client
	limiter       *rate.Limiter
	lookupTimeout time.Duration // Per-attempt timeout of idempotent calls
	retryDelay    time.Duration
}

// platformError is the error body the platform returns on 4xx/5xx.
type platformError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"message"`
}

// statusError is a response that reached us with an error status code.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error: HTTP %d: %s", e.Status, e.Message)
}

type investRequest struct {
	LoanID int    `json:"loanId"`
	Amount string `json:"amount"`
}

// NewAPIClient creates a new API client instance
func NewAPIClient(baseURL, accessToken string, timeoutSeconds, lookupTimeoutSeconds int, requestsPerSecond float64) *APIClient {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &APIClient{
		AccessToken:   accessToken,
		BaseURL:       baseURL,
		Http:          &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		limiter:       rate.NewLimiter(limit, 1),
		lookupTimeout: time.Duration(lookupTimeoutSeconds) * time.Second,
		retryDelay:    500 * time.Millisecond,
	}
}

// sendRequest sends one request and decodes the response into target.
// Responses with status >= 400 come back as *statusError.
func (c *APIClient) sendRequest(ctx context.Context, method, endpoint string, params url.Values, header http.Header, payload, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := c.BaseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("Failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("Failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	resp, err := c.Http.Do(req)
	if err != nil {
		return fmt.Errorf("Failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("Failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := string(body)
		var errResp platformError
		if json.Unmarshal(body, &errResp) == nil {
			switch {
			case errResp.Description != "":
				msg = errResp.Description
			case errResp.Message != "":
				msg = errResp.Message
			case errResp.Error != "":
				msg = errResp.Error
			}
		}
		return &statusError{Status: resp.StatusCode, Message: msg}
	}

	if target != nil && len(body) > 0 {
		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("Failed to decode JSON: %w, body: %s", err, string(body))
		}
	}
	return nil
}

// get performs an idempotent GET with a bounded per-attempt timeout and a single retry.
// Client errors other than 429 are not retried.
func (c *APIClient) get(ctx context.Context, op, endpoint string, params url.Values, header http.Header, target interface{}) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attemptCtx := ctx
		if c.lookupTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.lookupTimeout)
			defer cancel()
		}
		err := c.sendRequest(attemptCtx, http.MethodGet, endpoint, params, header, nil, target)
		if err == nil {
			return struct{}{}, nil
		}
		var se *statusError
		if errors.As(err, &se) && se.Status < 500 && se.Status != http.StatusTooManyRequests {
			return struct{}{}, backoff.Permanent(err)
		}
		logs.Debugf("[API Client] %s attempt failed: %v", op, err)
		return struct{}{}, err
	}, backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)), backoff.WithMaxTries(2))
	if err == nil {
		return nil
	}

	var se *statusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return errs.New(op, errs.CodeNotFound, errs.WithCause(err))
	}
	return errs.New(op, errs.CodeTransport, errs.WithCause(err))
}

// GetWallet retrieves account balances.
func (c *APIClient) GetWallet(ctx context.Context) (*Wallet, error) {
	var wallet Wallet
	if err := c.get(ctx, "get wallet", "/users/me/wallet", nil, nil, &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetStatistics retrieves the portfolio statistics.
func (c *APIClient) GetStatistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	if err := c.get(ctx, "get statistics", "/users/me/statistics", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetAvailableLoans lists the marketplace loans that still accept investments.
func (c *APIClient) GetAvailableLoans(ctx context.Context) ([]Loan, error) {
	params := url.Values{}
	params.Set("remainingInvestment__gt", "0")

	var loans []Loan
	if err := c.get(ctx, "get marketplace", "/loans/marketplace", params, nil, &loans); err != nil {
		return nil, err
	}
	return loans, nil
}

// GetLoan retrieves a single loan.
func (c *APIClient) GetLoan(ctx context.Context, id int) (*Loan, error) {
	var loan Loan
	op := fmt.Sprintf("get loan %d", id)
	if err := c.get(ctx, op, "/loans/"+strconv.Itoa(id), nil, nil, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetBlockedAmounts retrieves one page of blocked amounts. The platform pages by
// page number, so offset is expected to be a multiple of size.
func (c *APIClient) GetBlockedAmounts(ctx context.Context, offset, size int) ([]BlockedAmount, error) {
	if size <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", size)
	}
	header := http.Header{}
	header.Set("X-Page", strconv.Itoa(offset/size))
	header.Set("X-Size", strconv.Itoa(size))

	var blocked []BlockedAmount
	if err := c.get(ctx, "get blocked amounts", "/users/me/wallet/blocked-amounts", nil, header, &blocked); err != nil {
		return nil, err
	}
	return blocked, nil
}

// GetInvestments lists investments in the given statuses.
func (c *APIClient) GetInvestments(ctx context.Context, statuses InvestmentStatuses) ([]Investment, error) {
	params := url.Values{}
	for _, s := range statuses.Statuses() {
		params.Add("investmentStatus__in", string(s))
	}

	var investments []Investment
	if err := c.get(ctx, "get investments", "/users/me/investments", params, nil, &investments); err != nil {
		return nil, err
	}
	return investments, nil
}

// Invest submits an investment. The request is sent exactly once: 400, 409 and 422
// mean the platform declined it; anything else that is not a success is a transport failure.
func (c *APIClient) Invest(ctx context.Context, investment Investment) (InvestResult, error) {
	req := investRequest{LoanID: investment.LoanID, Amount: investment.Amount.String()}
	err := c.sendRequest(ctx, http.MethodPost, "/marketplace/investment", nil, nil, req, nil)
	if err == nil {
		return InvestResult{Status: InvestAccepted}, nil
	}

	var se *statusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
			return InvestResult{Status: InvestRejected, Reason: se.Message}, nil
		}
	}
	return InvestResult{}, errs.New("invest", errs.CodeTransport,
		errs.WithMessage(investment.String()), errs.WithCause(err))
}
