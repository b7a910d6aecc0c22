package ikas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tnf-api/internal/util"

	"go.uber.org/zap"
)

var (
	// ErrUpstream marks any non-success response from the commerce platform.
	ErrUpstream = errors.New("commerce gateway error")
	// ErrGraphQL marks a response carrying a GraphQL errors array.
	ErrGraphQL = fmt.Errorf("%w: graphql", ErrUpstream)
)

// GraphQLError is one entry of a GraphQL errors array.
type GraphQLError struct {
	Message string          `json:"message"`
	Path    []interface{}   `json:"path,omitempty"`
	Ext     json.RawMessage `json:"extensions,omitempty"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// Client executes GraphQL operations against the commerce platform admin API.
type Client struct {
	httpClient *http.Client
	graphqlURL string
	tokens     *TokenSource
	logger     *zap.Logger
}

// NewClient creates a commerce gateway client.
func NewClient(httpClient *http.Client, graphqlURL string, tokens *TokenSource) *Client {
	return &Client{
		httpClient: httpClient,
		graphqlURL: graphqlURL,
		tokens:     tokens,
		logger:     util.Named("ikas"),
	}
}

// NewHTTPClient returns the http.Client used for gateway calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// MakeRequest POSTs {query, variables} with the service bearer token and
// decodes data into out. No retries.
func (c *Client) MakeRequest(ctx context.Context, operation, query string, variables map[string]interface{}, out interface{}) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}
	return c.do(ctx, operation, token, query, variables, out)
}

// MakeRequestWithToken is MakeRequest authenticated as a customer.
func (c *Client) MakeRequestWithToken(ctx context.Context, operation, token, query string, variables map[string]interface{}, out interface{}) error {
	return c.do(ctx, operation, token, query, variables, out)
}

func (c *Client) do(ctx context.Context, operation, token, query string, variables map[string]interface{}, out interface{}) (err error) {
	ctx, span := util.StartSpan(ctx, "ikas."+operation)
	defer span.End()

	start := time.Now()
	defer func() {
		observe(operation, start, err)
		util.RecordError(span, err)
	}()

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Commerce gateway returned non-success status",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 512)))
		return fmt.Errorf("%w: %s returned status %d", ErrUpstream, operation, resp.StatusCode)
	}

	var gr graphQLResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		c.logger.Error("Commerce gateway returned GraphQL errors",
			zap.String("operation", operation),
			zap.Strings("errors", msgs))
		return fmt.Errorf("%w: %s: %s", ErrGraphQL, operation, strings.Join(msgs, "; "))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s data: %w", operation, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
