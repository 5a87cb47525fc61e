package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"credits-platform/internal/audit"
	"credits-platform/internal/auth"
	"credits-platform/internal/charge"
	"credits-platform/internal/gateway"
	"credits-platform/internal/ledger"
	"credits-platform/internal/migration"

	"github.com/gin-gonic/gin"
)

type apiFixture struct {
	router    *gin.Engine
	ledger    *ledger.Service
	charges   *charge.Tracker
	chargeRep *charge.MemoryRepo
	gw        *gateway.StubGateway
	audit     *audit.MemoryRepo
	now       time.Time
}

// identityAs injects an authenticated identity, standing in for the JWT
// middleware.
func identityAs(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), userID, role))
		c.Next()
	}
}

func newAPIFixture(t *testing.T, userID, role string) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Unix(1700000000, 0).UTC()
	clock := func() time.Time { return now }

	store := ledger.NewMemoryStore()
	svc := ledger.NewService(store, log, ledger.WithClock(clock))
	chargeRepo := charge.NewMemoryRepo()
	gw := gateway.NewStubGateway()
	tracker := charge.NewTracker(chargeRepo, gw, log, charge.WithTrackerClock(clock))
	reconciler := charge.NewReconciler(chargeRepo, tracker, gw, svc, log)
	auditRepo := audit.NewMemoryRepo()
	migrator := migration.NewMigrator(svc, log, &migration.MemorySource{
		SourceName: "phone_users",
		Items:      []migration.LegacyRecord{{UserID: "legacy1", Credits: 250}},
	})

	h := Handlers{
		Credits:    svc,
		Charges:    tracker,
		Reconciler: reconciler,
		Migrator:   migrator,
		Audit:      audit.NewService(auditRepo),
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(identityAs(userID, role))
	{
		v1.GET("/credits/balance", h.GetBalance)
		v1.GET("/credits/history", h.GetHistory)
		v1.POST("/credits/consume", h.ConsumeCredits)
		v1.GET("/charge-options", h.ListChargeOptions)
		v1.POST("/charges", h.CreateCharge)
		v1.GET("/charges/:charge_id", h.GetCharge)
		v1.POST("/charges/confirm", h.ConfirmCharge)

		admin := v1.Group("/admin")
		{
			admin.POST("/credits/add", h.AdminAddCredits)
			admin.POST("/credits/subtract", h.AdminSubtractCredits)
			admin.GET("/users/:user_id/credits", h.AdminGetUserCredits)
			admin.POST("/users/:user_id/verify", h.AdminVerifyIntegrity)
			admin.DELETE("/users/:user_id", h.AdminPurgeUser)
			admin.POST("/migrate", h.AdminRunMigration)
		}
	}

	return &apiFixture{
		router:    r,
		ledger:    svc,
		charges:   tracker,
		chargeRep: chargeRepo,
		gw:        gw,
		audit:     auditRepo,
		now:       now,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestBalanceAndConsume(t *testing.T) {
	f := newAPIFixture(t, "u1", "member")
	ctx := context.Background()
	if _, err := f.ledger.AddCredits(ctx, "u1", 100, "signup", ledger.TransactionTypeBonus, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := f.do(t, http.MethodGet, "/v1/credits/balance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance status %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["balance"].(float64); got != 100 {
		t.Fatalf("balance = %v, want 100", got)
	}

	w = f.do(t, http.MethodPost, "/v1/credits/consume", consumeRequest{Amount: 30, Description: "api call"})
	if w.Code != http.StatusOK {
		t.Fatalf("consume status %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["balance"].(float64); got != 70 {
		t.Fatalf("balance = %v, want 70", got)
	}

	// Overdraft surfaces as 402 with the structured discrepancy.
	w = f.do(t, http.MethodPost, "/v1/credits/consume", consumeRequest{Amount: 1000})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("overdraft status %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "insufficient_balance" || body["available"].(float64) != 70 {
		t.Fatalf("unexpected 402 body: %v", body)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	f := newAPIFixture(t, "u1", "member")
	ctx := context.Background()
	f.ledger.AddCredits(ctx, "u1", 100, "signup", ledger.TransactionTypeBonus, "")
	f.ledger.ConsumeCredits(ctx, "u1", 25, "usage")

	w := f.do(t, http.MethodGet, "/v1/credits/history?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	txs := decodeBody(t, w)["transactions"].([]any)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	newest := txs[0].(map[string]any)
	if newest["type"] != "usage" || newest["balance_after"].(float64) != 75 {
		t.Fatalf("unexpected newest transaction: %v", newest)
	}

	w = f.do(t, http.MethodGet, "/v1/credits/history?limit=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestChargeLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, "u1", "member")

	w := f.do(t, http.MethodPost, "/v1/charges", createChargeRequest{Amount: 500, Credits: 500})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", w.Code, w.Body.String())
	}
	ch := decodeBody(t, w)["charge"].(map[string]any)
	chargeID := ch["id"].(string)
	intentID := ch["gateway_intent_id"].(string)
	if ch["gateway_client_secret"] == "" {
		t.Fatal("expected client secret in response")
	}

	// Identical resubmit within the window coalesces: 200, created=false.
	w = f.do(t, http.MethodPost, "/v1/charges", createChargeRequest{Amount: 500, Credits: 500})
	if w.Code != http.StatusOK {
		t.Fatalf("dedup status %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["created"].(bool) {
		t.Fatal("expected created=false for deduped charge")
	}

	// Confirm before the gateway settles: charge stays pending.
	w = f.do(t, http.MethodPost, "/v1/charges/confirm", confirmChargeRequest{ChargeID: chargeID})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["credited"].(bool) {
		t.Fatal("pending confirm must not credit")
	}

	f.gw.Settle(intentID, gateway.IntentStateSucceeded, "")
	w = f.do(t, http.MethodPost, "/v1/charges/confirm", confirmChargeRequest{ChargeID: chargeID})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status %d: %s", w.Code, w.Body.String())
	}
	if !decodeBody(t, w)["credited"].(bool) {
		t.Fatal("expected settle to credit")
	}

	bal, _ := f.ledger.GetBalance(context.Background(), "u1")
	if bal != 500 {
		t.Fatalf("balance = %d, want 500", bal)
	}

	// Confirming again is a safe no-op.
	w = f.do(t, http.MethodPost, "/v1/charges/confirm", confirmChargeRequest{ChargeID: chargeID})
	if w.Code != http.StatusOK || decodeBody(t, w)["credited"].(bool) {
		t.Fatalf("replayed confirm must not credit: %d %s", w.Code, w.Body.String())
	}
}

func TestGetChargeHidesOtherUsers(t *testing.T) {
	f := newAPIFixture(t, "u1", "member")

	other, _, err := f.charges.Create(context.Background(), "u2", 500, 500)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w := f.do(t, http.MethodGet, "/v1/charges/"+other.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign charge, got %d", w.Code)
	}
}

func TestChargeOptionsEndpoint(t *testing.T) {
	f := newAPIFixture(t, "u1", "member")
	f.chargeRep.PutOption(charge.Option{
		ID: "pack-small", Name: "Small pack", Price: 500, Credits: 500, Active: true,
	})

	w := f.do(t, http.MethodGet, "/v1/charge-options", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	opts := decodeBody(t, w)["options"].([]any)
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}

	w = f.do(t, http.MethodPost, "/v1/charges", createChargeRequest{OptionID: "pack-small"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create from option status %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminEndpoints(t *testing.T) {
	f := newAPIFixture(t, "admin1", "admin")

	w := f.do(t, http.MethodPost, "/v1/admin/credits/add", adminAdjustRequest{
		UserID: "u1", Amount: 200, Description: "goodwill",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add status %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/v1/admin/credits/subtract", adminAdjustRequest{
		UserID: "u1", Amount: 50, Description: "correction",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("subtract status %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["balance"].(float64); got != 150 {
		t.Fatalf("balance = %v, want 150", got)
	}

	// Both adjustments are audited with signed amounts.
	events := f.audit.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(events))
	}
	if events[0].Amount != 200 || events[1].Amount != -50 {
		t.Fatalf("unexpected audit amounts: %+v", events)
	}

	w = f.do(t, http.MethodGet, "/v1/admin/users/u1/credits", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get user status %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["balance"].(float64) != 150 || len(body["transactions"].([]any)) != 2 {
		t.Fatalf("unexpected admin view: %v", body)
	}

	w = f.do(t, http.MethodPost, "/v1/admin/users/u1/verify", nil)
	if w.Code != http.StatusOK || !decodeBody(t, w)["consistent"].(bool) {
		t.Fatalf("verify: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodDelete, "/v1/admin/users/u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("purge status %d", w.Code)
	}
	bal, _ := f.ledger.GetBalance(context.Background(), "u1")
	if bal != 0 {
		t.Fatalf("expected purged balance 0, got %d", bal)
	}
}

func TestAdminMigrationEndpoint(t *testing.T) {
	f := newAPIFixture(t, "admin1", "admin")

	w := f.do(t, http.MethodPost, "/v1/admin/migrate", adminMigrateRequest{DryRun: true})
	if w.Code != http.StatusOK {
		t.Fatalf("dry run status %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["migrated"].(float64) != 1 || body["dry_run"].(bool) != true {
		t.Fatalf("unexpected dry-run report: %v", body)
	}
	if bal, _ := f.ledger.GetBalance(context.Background(), "legacy1"); bal != 0 {
		t.Fatalf("dry run wrote credits: %d", bal)
	}

	w = f.do(t, http.MethodPost, "/v1/admin/migrate", adminMigrateRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("migrate status %d: %s", w.Code, w.Body.String())
	}
	if bal, _ := f.ledger.GetBalance(context.Background(), "legacy1"); bal != 250 {
		t.Fatalf("legacy balance = %d, want 250", bal)
	}
}
