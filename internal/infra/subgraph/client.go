// Package subgraph is the indexer client: a single-attempt GraphQL
// transport. Every failure mode (network, non-2xx, errors payload) is
// logged and surfaces as nil data; the reconciliation layer decides
// whether to fall back to a chain scan.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Row is one entity row as returned by the indexer. Graph-node scalars
// (BigInt, Bytes, addresses, timestamps) all serialize as strings.
type Row map[string]string

// Result maps entity collection names to their rows.
type Result map[string][]Row

// Querier is the reconciliation pipeline's view of the indexer.
type Querier interface {
	// Query returns nil on any transport or semantic failure, never an
	// error the caller must branch on beyond the nil check.
	Query(ctx context.Context, document string, variables map[string]any) Result
}

// Client issues GraphQL queries over HTTP POST with bearer-token auth.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a subgraph client. Token may be empty.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: slog.Default().With("component", "subgraph"),
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query sends a single request. No retries: one attempt per call.
func (c *Client) Query(ctx context.Context, document string, variables map[string]any) Result {
	body, err := json.Marshal(graphqlRequest{Query: document, Variables: variables})
	if err != nil {
		c.log.Error("marshal query", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.log.Error("create request", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ilsx-dashboard")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("subgraph request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("subgraph HTTP error", "status", resp.StatusCode, "body", string(snippet))
		return nil
	}

	var decoded graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.log.Error("decode subgraph response", "error", err)
		return nil
	}
	if len(decoded.Errors) > 0 {
		c.log.Error("subgraph returned errors", "first", decoded.Errors[0].Message, "count", len(decoded.Errors))
		return nil
	}

	result := make(Result, len(decoded.Data))
	for entity, raw := range decoded.Data {
		var rows []Row
		if err := json.Unmarshal(raw, &rows); err != nil {
			// Scalar or object-valued fields are not series entities; skip.
			c.log.Debug("skipping non-list entity", "entity", entity, "error", err)
			continue
		}
		result[entity] = rows
	}
	return result
}

// String used in logs to identify the endpoint without leaking the token.
func (c *Client) String() string {
	return fmt.Sprintf("subgraph(%s)", c.endpoint)
}
