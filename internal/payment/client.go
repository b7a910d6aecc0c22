package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tnf-api/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatusSuccess is the gateway's success status_code.
const StatusSuccess = 100

// ErrGateway marks any non-success answer from the payment gateway.
var ErrGateway = errors.New("payment gateway error")

// Config holds merchant credentials.
type Config struct {
	BaseURL      string
	AppID        string
	AppSecret    string
	MerchantKey  string
	MerchantID   string
	Currency     string
	Installments int
	ReturnURL    string
	CancelURL    string
}

// Client talks to the payment gateway server-to-server (token, refund).
// Card data never passes through it; see ThreeDForm.
type Client struct {
	httpClient *http.Client
	cfg        Config
	hasher     *Hasher
	logger     *zap.Logger
}

func NewClient(httpClient *http.Client, cfg Config, hasher *Hasher) *Client {
	if hasher == nil {
		hasher = NewHasher(cfg.AppSecret)
	}
	if cfg.Installments <= 0 {
		cfg.Installments = 1
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		hasher:     hasher,
		logger:     util.Named("payment"),
	}
}

func (c *Client) Config() Config { return c.cfg }
func (c *Client) Hasher() *Hasher { return c.hasher }

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	StatusCode        int    `json:"status_code"`
	StatusDescription string `json:"status_description"`
	Data              struct {
		Token string `json:"token"`
		Is3D  int    `json:"is_3d"`
	} `json:"data"`
}

// Token fetches a fresh gateway bearer token. Not cached.
func (c *Client) Token(ctx context.Context) (string, error) {
	var resp tokenResponse
	if err := c.post(ctx, "token", "/api/token", "", tokenRequest{AppID: c.cfg.AppID, AppSecret: c.cfg.AppSecret}, &resp); err != nil {
		return "", err
	}
	if resp.StatusCode != StatusSuccess || resp.Data.Token == "" {
		return "", fmt.Errorf("%w: token status %d: %s", ErrGateway, resp.StatusCode, resp.StatusDescription)
	}
	return resp.Data.Token, nil
}

// RefundRequest identifies the sale to refund.
type RefundRequest struct {
	InvoiceID string
	Amount    decimal.Decimal
}

type refundBody struct {
	InvoiceID   string `json:"invoice_id"`
	Amount      string `json:"amount"`
	AppID       string `json:"app_id"`
	AppSecret   string `json:"app_secret"`
	MerchantKey string `json:"merchant_key"`
	HashKey     string `json:"hash_key"`
}

// RefundResult is the gateway's refund answer.
type RefundResult struct {
	StatusCode        int    `json:"status_code"`
	StatusDescription string `json:"status_description"`
	OrderNo           string `json:"order_no"`
	InvoiceID         string `json:"invoice_id"`
	RefNo             string `json:"ref_no"`
}

func (r RefundResult) Succeeded() bool { return r.StatusCode == StatusSuccess }

// Refund asks the gateway to refund amount of the sale for invoiceID. A
// non-success status is returned as an error alongside the result.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment token: %w", err)
	}

	amount := FormatAmount(req.Amount)
	hashKey, err := c.hasher.RefundHash(amount, req.InvoiceID, c.cfg.MerchantKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build refund hash: %w", err)
	}

	body := refundBody{
		InvoiceID:   req.InvoiceID,
		Amount:      amount,
		AppID:       c.cfg.AppID,
		AppSecret:   c.cfg.AppSecret,
		MerchantKey: c.cfg.MerchantKey,
		HashKey:     hashKey,
	}

	var result RefundResult
	if err := c.post(ctx, "refund", "/api/refund", token, body, &result); err != nil {
		return nil, err
	}
	if !result.Succeeded() {
		return &result, fmt.Errorf("%w: refund status %d: %s", ErrGateway, result.StatusCode, result.StatusDescription)
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, operation, path, token string, in, out interface{}) (err error) {
	ctx, span := util.StartSpan(ctx, "payment."+operation)
	defer span.End()

	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		util.GatewayRequestDuration.WithLabelValues("sipay", operation, outcome).Observe(time.Since(start).Seconds())
		util.RecordError(span, err)
	}()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

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
		c.logger.Error("Payment gateway returned non-success status",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: %s returned status %d", ErrGateway, operation, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", operation, err)
	}
	return nil
}

// FormatAmount renders an amount the way it is posted and hashed.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
