package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// receiveWebhook accepts commerce platform webhooks. The raw body is decoded
// by the webhook service.
func (h *Handler) receiveWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "Unreadable body", err)
		return
	}
	if err := h.webhooks.Receive(c.Request.Context(), body); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// runSync triggers a sync job now
func (h *Handler) runSync(c *gin.Context) {
	report, err := h.sync.RunNow(c.Request.Context(), c.Param("job"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) listWebhooks(c *gin.Context) {
	hooks, err := h.webhooks.ListWebhooks(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

// deleteWebhooks removes the webhooks of every ?scope= given
func (h *Handler) deleteWebhooks(c *gin.Context) {
	if err := h.webhooks.DeleteWebhooks(c.Request.Context(), c.QueryArray("scope")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

// refundOrder refunds by commerce order id; a missing amount refunds the total
func (h *Handler) refundOrder(c *gin.Context) {
	var req refundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
	}

	order, err := h.payments.Refund(c.Request.Context(), c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
