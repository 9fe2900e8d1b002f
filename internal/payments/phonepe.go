package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	checkoutSource        = "resuradar"
)

// PhonePeConfig holds merchant credentials and endpoints.
type PhonePeConfig struct {
	BaseURL       string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	ClientVersion string
	Timeout       time.Duration
}

// PhonePe talks to the PhonePe standard checkout API.
type PhonePe struct {
	baseURL string
	tokens  *clientcredentials.Config
	http    *http.Client
	now     func() time.Time
}

// NewPhonePe builds a client. Tokens are fetched lazily per request.
func NewPhonePe(cfg PhonePeConfig) *PhonePe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	params := url.Values{}
	if cfg.ClientVersion != "" {
		params.Set("client_version", cfg.ClientVersion)
	}
	return &PhonePe{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens: &clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       cfg.TokenURL,
			EndpointParams: params,
			AuthStyle:      oauth2.AuthStyleInParams,
		},
		http: &http.Client{Timeout: timeout},
		now:  time.Now,
	}
}

// Configured reports whether credentials and endpoints are present.
func (p *PhonePe) Configured() bool {
	return p != nil && p.baseURL != "" && p.tokens.TokenURL != "" && p.tokens.ClientID != "" && p.tokens.ClientSecret != ""
}

// Token fetches an access token using the client credentials grant.
func (p *PhonePe) Token(ctx context.Context) (string, error) {
	if !p.Configured() {
		return "", ErrNotConfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
	tok, err := p.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: token: %v", ErrGatewayUnavailable, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrGatewayUnavailable)
	}
	return tok.AccessToken, nil
}

type checkoutRequest struct {
	MerchantOrderID string            `json:"merchantOrderId"`
	Amount          int64             `json:"amount"`
	PaymentFlow     checkoutFlow      `json:"paymentFlow"`
	MetaInfo        map[string]string `json:"metaInfo"`
}

type checkoutFlow struct {
	Type         string            `json:"type"`
	MerchantURLs map[string]string `json:"merchantUrls"`
}

// CreateCheckout starts a checkout session and returns the hosted payment page URL.
func (p *PhonePe) CreateCheckout(ctx context.Context, orderID string, amountPaise int64, redirectURL string) (string, map[string]any, error) {
	body := checkoutRequest{
		MerchantOrderID: orderID,
		Amount:          amountPaise,
		PaymentFlow: checkoutFlow{
			Type:         "PG_CHECKOUT",
			MerchantURLs: map[string]string{"redirectUrl": redirectURL},
		},
		MetaInfo: map[string]string{
			"initiatedAt": p.now().UTC().Format(time.RFC3339Nano),
			"source":      checkoutSource,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, err
	}
	raw, err := p.do(ctx, http.MethodPost, p.baseURL+"/checkout/v2/pay", payload)
	if err != nil {
		return "", nil, err
	}
	redirect, _ := raw["redirectUrl"].(string)
	if redirect == "" {
		return "", raw, fmt.Errorf("%w: missing redirectUrl", ErrGatewayUnavailable)
	}
	return redirect, raw, nil
}

// OrderStatus fetches the gateway state of an order.
func (p *PhonePe) OrderStatus(ctx context.Context, orderID string) (Status, map[string]any, error) {
	endpoint := fmt.Sprintf("%s/checkout/v2/order/%s/status?details=false&errorContext=false", p.baseURL, url.PathEscape(orderID))
	raw, err := p.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, nil, err
	}
	return statusFromGateway(raw), raw, nil
}

func (p *PhonePe) do(ctx context.Context, method, endpoint string, body []byte) (map[string]any, error) {
	token, err := p.Token(ctx)
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "O-Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrGatewayUnavailable, err)
	}
	return out, nil
}

// GatewayError is a non-2xx response from PhonePe.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("phonepe status %d: %s", e.StatusCode, e.Body)
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayUnavailable
}

func statusFromGateway(raw map[string]any) Status {
	st := Status{State: StatePending}
	if state, ok := raw["state"].(string); ok && state != "" {
		st.State = state
	}
	st.Amount = int64Field(raw["amount"])
	st.ExpireAt = int64Field(raw["expireAt"])
	if code, ok := raw["errorCode"].(string); ok {
		st.ErrorCode = code
	}
	if details, ok := raw["paymentDetails"].([]any); ok && len(details) > 0 {
		if first, ok := details[0].(map[string]any); ok {
			st.TransactionID, _ = first["transactionId"].(string)
			if st.ErrorCode == "" {
				st.ErrorCode, _ = first["errorCode"].(string)
			}
		}
	}
	return st
}

func int64Field(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
