// Package csgoroll talks to the CSGORoll GraphQL API: a one-shot HTTP client
// for account/balance lookups and a long-lived WebSocket feed for trade
// events.
package csgoroll

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rollmaster/rollwatch/internal/domain"
)

// mainWalletName is the wallet the balance is read from; accounts without a
// MAIN wallet fall back to their first wallet.
const mainWalletName = "MAIN"

// Client is a GraphQL client for the CSGORoll HTTP API, authenticated with a
// session cookie.
type Client struct {
	apiURL     string
	cookie     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new CSGORoll GraphQL client.
//
// apiURL is the GraphQL endpoint, e.g. "https://api.csgoroll.com/graphql".
func NewClient(apiURL, cookie, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		apiURL:    apiURL,
		cookie:    cookie,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "csgoroll_client")),
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// wallet is the wire shape of a single account wallet.
type wallet struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// CurrentUser fetches the authenticated account's id and current balance.
// The balance comes from the MAIN wallet, or the first wallet when no wallet
// is named MAIN; it is nil when the account has no wallets at all. An error
// is returned only when the account id itself cannot be resolved.
func (c *Client) CurrentUser(ctx context.Context) (domain.TrackedAccount, error) {
	respData, err := c.doQuery(ctx, currentUserQuery, nil)
	if err != nil {
		return domain.TrackedAccount{}, fmt.Errorf("csgoroll: fetch current user: %w", err)
	}

	var result struct {
		CurrentUser *struct {
			ID      string   `json:"id"`
			Wallets []wallet `json:"wallets"`
		} `json:"currentUser"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return domain.TrackedAccount{}, fmt.Errorf("csgoroll: decode current user: %w", err)
	}
	if result.CurrentUser == nil || result.CurrentUser.ID == "" {
		return domain.TrackedAccount{}, domain.ErrNoTrackedAccount
	}

	return domain.TrackedAccount{
		ID:      result.CurrentUser.ID,
		Balance: selectBalance(result.CurrentUser.Wallets),
	}, nil
}

// FetchBalance returns the account's current MAIN-wallet balance, or nil when
// the balance cannot be determined for any reason: expired cookie, network
// failure, or an unexpected response shape. It never returns an error; a nil
// balance is a first-class state the caller must handle, not a failure to
// propagate.
func (c *Client) FetchBalance(ctx context.Context) *float64 {
	account, err := c.CurrentUser(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "balance unavailable",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return account.Balance
}

// selectBalance picks the MAIN wallet, falling back to the first wallet.
func selectBalance(wallets []wallet) *float64 {
	if len(wallets) == 0 {
		return nil
	}
	selected := wallets[0]
	for _, w := range wallets {
		if w.Name == mainWalletName {
			selected = w
			break
		}
	}
	amount := selected.Amount
	return &amount
}

// doQuery executes a GraphQL query against the CSGORoll endpoint and returns
// the raw "data" field from the response.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	reqBody := graphqlRequest{
		Query:     query,
		Variables: variables,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cookie", c.cookie)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}

	return gqlResp.Data, nil
}
