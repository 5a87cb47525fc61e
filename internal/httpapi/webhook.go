package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"credits-platform/internal/charge"
	"credits-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const webhookSignatureHeader = "X-Webhook-Signature"

// WebhookHandler receives payment gateway event notifications.
//
// The payload is treated as a hint only: the handler extracts the intent id
// and hands it to the reconciler, which re-reads the authoritative state from
// the gateway. Duplicate and out-of-order deliveries are therefore harmless.
type WebhookHandler struct {
	Reconciler *charge.Reconciler
	// Secret verifies the HMAC-SHA256 body signature. Empty disables
	// verification (local development only).
	Secret string
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`

	// Flat fallback shape some gateway configurations send.
	IntentID string `json:"intent_id"`
}

func (e webhookEvent) intent() string {
	if e.Data.Object.ID != "" {
		return e.Data.Object.ID
	}
	return e.IntentID
}

func (h WebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.Secret != "" {
		if !h.verifySignature(body, c.GetHeader(webhookSignatureHeader)) {
			log.Warn("webhook signature rejected", "remote", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	intentID := event.intent()
	if intentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "intent id required"})
		return
	}

	out, err := h.Reconciler.Reconcile(c.Request.Context(), intentID)
	if err != nil {
		// Unknown intents are acked so the gateway stops retrying events
		// for charges this system never created.
		if errors.Is(err, charge.ErrUnknownIntent) {
			log.Warn("webhook for unknown intent", "intent_id", intentID)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		// Transient failure: a non-2xx makes the gateway redeliver, and
		// redelivery is safe.
		log.Error("webhook reconcile failed", "intent_id", intentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"status":   out.Charge.Status,
		"credited": out.Credited,
	})
}

func (h WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignWebhookBody computes the signature the gateway attaches. Exported for
// tests and local tooling.
func SignWebhookBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
