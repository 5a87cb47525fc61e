package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"credits-platform/internal/audit"
	"credits-platform/internal/auth"
	"credits-platform/internal/charge"
	"credits-platform/internal/ledger"
	"credits-platform/internal/migration"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Credits    *ledger.Service
	Charges    *charge.Tracker
	Reconciler *charge.Reconciler
	Migrator   *migration.Migrator
	Audit      *audit.Service
}

// writeServiceError maps business errors onto HTTP statuses. Insufficient
// balance is an expected outcome and gets a structured 402 body the frontend
// can render.
func writeServiceError(c *gin.Context, err error) {
	var ib *ledger.InsufficientBalanceError
	switch {
	case errors.As(err, &ib):
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
			"error":     "insufficient_balance",
			"requested": ib.Requested,
			"available": ib.Available,
		})
	case errors.Is(err, ledger.ErrInvalidArgument), errors.Is(err, charge.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, charge.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ledger.ErrAccountFrozen):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "account frozen"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func requireUser(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil || uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return uid, true
}

// --- Credits ---

func (h Handlers) GetBalance(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	bal, err := h.Credits.GetBalance(c.Request.Context(), uid)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "balance": bal})
}

func (h Handlers) GetHistory(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit invalid"})
			return
		}
		limit = n
	}
	history, err := h.Credits.GetHistory(c.Request.Context(), uid, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if history == nil {
		history = []ledger.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "transactions": history})
}

type consumeRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (h Handlers) ConsumeCredits(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	bal, err := h.Credits.ConsumeCredits(c.Request.Context(), uid, req.Amount, req.Description)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "balance": bal, "consumed": req.Amount})
}

// --- Charges ---

func (h Handlers) ListChargeOptions(c *gin.Context) {
	opts, err := h.Charges.ListOptions(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if opts == nil {
		opts = []charge.Option{}
	}
	c.JSON(http.StatusOK, gin.H{"options": opts})
}

type createChargeRequest struct {
	// Either option_id, or an explicit amount/credits pair.
	OptionID string `json:"option_id"`
	Amount   int64  `json:"amount"`
	Credits  int64  `json:"credits"`
}

func (h Handlers) CreateCharge(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req createChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var (
		ch      charge.Charge
		created bool
		err     error
	)
	if req.OptionID != "" {
		ch, created, err = h.Charges.CreateFromOption(c.Request.Context(), uid, req.OptionID)
	} else {
		ch, created, err = h.Charges.Create(c.Request.Context(), uid, req.Amount, req.Credits)
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		// Coalesced onto an existing pending charge.
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"charge": ch, "created": created})
}

func (h Handlers) GetCharge(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	ch, found, err := h.Charges.Get(c.Request.Context(), c.Param("charge_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !found || ch.UserID != uid {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"charge": ch})
}

type confirmChargeRequest struct {
	ChargeID string `json:"charge_id"`
}

// ConfirmCharge is the synchronous settlement path: the frontend calls it
// after the gateway redirect. It funnels into the same reconciler as the
// webhook, so racing deliveries cannot double-credit.
func (h Handlers) ConfirmCharge(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req confirmChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChargeID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "charge_id required"})
		return
	}

	ch, found, err := h.Charges.Get(c.Request.Context(), req.ChargeID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !found || ch.UserID != uid {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	out, err := h.Reconciler.Reconcile(c.Request.Context(), ch.GatewayIntentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"charge": out.Charge, "credited": out.Credited})
}

// --- Admin ---

type adminAdjustRequest struct {
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (h Handlers) AdminAddCredits(c *gin.Context) {
	h.adminAdjust(c, false)
}

func (h Handlers) AdminSubtractCredits(c *gin.Context) {
	h.adminAdjust(c, true)
}

func (h Handlers) adminAdjust(c *gin.Context, subtract bool) {
	var req adminAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var (
		bal int64
		err error
	)
	if subtract {
		bal, err = h.Credits.AdminSubtractCredits(c.Request.Context(), req.UserID, req.Amount, req.Description)
	} else {
		bal, err = h.Credits.AddCredits(c.Request.Context(), req.UserID, req.Amount, req.Description, ledger.TransactionTypeAdminAdd, "")
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.logAdminAudit(c, req.UserID, signedAmount(req.Amount, subtract), req.Description)
	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "balance": bal})
}

func signedAmount(amount int64, subtract bool) int64 {
	if subtract {
		return -amount
	}
	return amount
}

func (h Handlers) AdminGetUserCredits(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	bal, err := h.Credits.GetBalance(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	history, err := h.Credits.GetHistory(c.Request.Context(), userID, 0)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if history == nil {
		history = []ledger.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": bal, "transactions": history})
}

// AdminVerifyIntegrity recomputes an account's ledger sum. On mismatch the
// account comes back frozen and the response carries the discrepancy.
func (h Handlers) AdminVerifyIntegrity(c *gin.Context) {
	userID := c.Param("user_id")
	err := h.Credits.VerifyIntegrity(c.Request.Context(), userID)
	var ie *ledger.IntegrityError
	if errors.As(err, &ie) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    userID,
			"consistent": false,
			"balance":    ie.Balance,
			"ledger_sum": ie.LedgerSum,
		})
		return
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "consistent": true})
}

func (h Handlers) AdminPurgeUser(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	if err := h.Credits.PurgeAccount(c.Request.Context(), userID); err != nil {
		writeServiceError(c, err)
		return
	}
	if h.Audit != nil {
		actor, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogAccountPurge(c.Request.Context(), actor, role, c.ClientIP(), userID)
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "purged": true})
}

type adminMigrateRequest struct {
	DryRun bool `json:"dry_run"`
}

func (h Handlers) AdminRunMigration(c *gin.Context) {
	if h.Migrator == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "migration not configured"})
		return
	}
	var req adminMigrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rep, err := h.Migrator.MigrateAll(c.Request.Context(), req.DryRun)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if h.Audit != nil {
		actor, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		if body, err := json.Marshal(rep); err == nil {
			_ = h.Audit.LogMigrationRun(c.Request.Context(), actor, role, c.ClientIP(), string(body))
		}
	}
	c.JSON(http.StatusOK, rep)
}

func (h Handlers) logAdminAudit(c *gin.Context, targetUserID string, amount int64, message string) {
	if h.Audit == nil {
		return
	}
	actor, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	_ = h.Audit.LogCreditAdjustment(c.Request.Context(), actor, role, c.ClientIP(), targetUserID, amount, message)
}
