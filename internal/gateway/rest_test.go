package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRESTGatewayCreateAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("authorization = %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/payment_intents":
			var req CreateIntentRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Amount != 500 || req.Currency != "jpy" {
				t.Errorf("unexpected request: %+v", req)
			}
			json.NewEncoder(w).Encode(restIntent{
				ID: "pi_123", ClientSecret: "pi_123_secret", Status: "requires_payment_method",
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/payment_intents/pi_123":
			json.NewEncoder(w).Encode(restIntent{
				ID: "pi_123", Status: "succeeded", Amount: 500,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewRESTGateway(srv.URL, "sk_test")
	ctx := context.Background()

	intent, err := g.CreateIntent(ctx, CreateIntentRequest{Amount: 500, Currency: "jpy"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent: %+v", intent)
	}

	st, err := g.GetIntentStatus(ctx, "pi_123")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != IntentStateSucceeded || st.Amount != 500 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestRESTGatewaySurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewRESTGateway(srv.URL, "sk_bad")
	if _, err := g.GetIntentStatus(context.Background(), "pi_123"); err == nil {
		t.Fatal("expected error for 401 response")
	}
}
