package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RESTGateway talks to the payment processor's HTTP API with a bearer secret
// key. It is the production PaymentGateway implementation.
type RESTGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewRESTGateway(baseURL, secretKey string) *RESTGateway {
	return &RESTGateway{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *RESTGateway) Name() string { return "rest" }

type restIntent struct {
	ID            string            `json:"id"`
	ClientSecret  string            `json:"client_secret"`
	Status        string            `json:"status"`
	Amount        int64             `json:"amount"`
	Metadata      map[string]string `json:"metadata"`
	FailureReason string            `json:"failure_reason"`
}

func (g *RESTGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error) {
	if req.Amount <= 0 {
		return Intent{}, fmt.Errorf("gateway: amount must be positive, got %d", req.Amount)
	}

	var out restIntent
	if err := g.do(ctx, http.MethodPost, "/v1/payment_intents", req, &out); err != nil {
		return Intent{}, err
	}
	if out.ID == "" {
		return Intent{}, fmt.Errorf("gateway: create intent returned no id")
	}
	return Intent{ID: out.ID, ClientSecret: out.ClientSecret}, nil
}

func (g *RESTGateway) GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	var out restIntent
	if err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+intentID, nil, &out); err != nil {
		return IntentStatus{}, err
	}
	return IntentStatus{
		ID:            out.ID,
		State:         NormalizeState(out.Status),
		Amount:        out.Amount,
		Metadata:      out.Metadata,
		FailureReason: out.FailureReason,
	}, nil
}

func (g *RESTGateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gateway: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway: %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("gateway: decode response: %w", err)
		}
	}
	return nil
}
