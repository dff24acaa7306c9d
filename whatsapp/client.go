package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentgate/gateway"
	"github.com/hupe1980/agentgate/logging"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"

	maxResponseBody = 1 << 20
)

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	// Limiter paces sends; nil sends immediately.
	Limiter *rate.Limiter
	Logger  logging.Logger
}

// Client sends text replies through the Graph API messages endpoint. It
// implements gateway.Deliverer: one attempt per call, no retries, and every
// failure is reported in the DeliveryResult.
type Client struct {
	token    string
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   logging.Logger
}

// NewClient creates a Client for the business number phoneNumberID
// authenticated with the bearer token.
func NewClient(token, phoneNumberID string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		BaseURL:    DefaultBaseURL,
		APIVersion: DefaultAPIVersion,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{
		token:    token,
		endpoint: fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(opts.BaseURL, "/"), opts.APIVersion, phoneNumberID),
		http:     opts.HTTPClient,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
	}
}

// Endpoint returns the messages URL the client posts to.
func (c *Client) Endpoint() string { return c.endpoint }

type sendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             Text   `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// Send posts text to recipient.
func (c *Client) Send(ctx context.Context, recipient, text string) (res gateway.DeliveryResult) {
	start := time.Now()
	defer func() {
		logging.LogDelivery(c.logger, recipient, time.Since(start), res.Success, res.Detail)
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return gateway.DeliveryResult{Detail: fmt.Sprintf("rate limiter: %v", err)}
		}
	}

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipient,
		Type:             "text",
		Text:             Text{Body: text},
	})
	if err != nil {
		return gateway.DeliveryResult{Detail: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return gateway.DeliveryResult{Detail: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gateway.DeliveryResult{Detail: fmt.Sprintf("send request: %v", err)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	c.logger.Debug("whatsapp send response", "status_code", resp.StatusCode, "body", string(raw))

	var parsed sendResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gateway.DeliveryResult{
			StatusCode: resp.StatusCode,
			Detail:     failureDetail(resp.StatusCode, parsed.Error),
		}
	}

	res = gateway.DeliveryResult{Success: true, StatusCode: resp.StatusCode}
	if len(parsed.Messages) > 0 {
		res.MessageID = parsed.Messages[0].ID
	}
	return res
}

func failureDetail(status int, apiErr *apiError) string {
	var kind string
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = "authentication failed"
	case http.StatusTooManyRequests:
		kind = "rate limited"
	default:
		kind = "unexpected status"
	}
	detail := fmt.Sprintf("%s (status %d)", kind, status)
	if apiErr != nil && apiErr.Message != "" {
		detail += fmt.Sprintf(": %s [%s %d]", apiErr.Message, apiErr.Type, apiErr.Code)
	}
	return detail
}

var _ gateway.Deliverer = (*Client)(nil)
