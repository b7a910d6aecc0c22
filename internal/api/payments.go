package api

import (
	"bytes"
	"html/template"
	"net/http"

	"tnf-api/internal/payment"
	"tnf-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// initiatePayment stores the pending order and returns the auto-submitting
// 3D form as HTML for the app's webview.
func (h *Handler) initiatePayment(c *gin.Context) {
	var req service.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	form, err := h.payments.Initiate(c.Request.Context(), &req, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(form))
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>{{.Title}}</title></head>
<body data-status="{{.Status}}" data-order-id="{{.OrderID}}" data-invoice-id="{{.InvoiceID}}">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>`))

type resultView struct {
	Status    string
	Title     string
	Message   string
	OrderID   string
	InvoiceID string
}

// paymentCallback receives the gateway's browser redirect. The caller is a
// webview, so both outcomes render HTML.
func (h *Handler) paymentCallback(c *gin.Context) {
	var cb payment.CallbackResult
	if err := c.ShouldBind(&cb); err != nil {
		h.renderResult(c, http.StatusBadRequest, resultView{
			Status:  "failed",
			Title:   "Payment failed",
			Message: "Malformed payment callback",
		})
		return
	}

	order, err := h.payments.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Payment callback failed", zap.String("invoice_id", cb.InvoiceID), zap.Error(err))
		}
		h.renderResult(c, status, resultView{
			Status:    "failed",
			Title:     "Payment failed",
			Message:   service.ErrorMessage(err),
			InvoiceID: cb.InvoiceID,
		})
		return
	}

	h.renderResult(c, http.StatusOK, resultView{
		Status:    "success",
		Title:     "Payment successful",
		Message:   "Your order has been received.",
		OrderID:   order.ID.String(),
		InvoiceID: cb.InvoiceID,
	})
}

func (h *Handler) renderResult(c *gin.Context, status int, view resultView) {
	var buf bytes.Buffer
	if err := resultPage.Execute(&buf, view); err != nil {
		h.logger.Error("Failed to render payment result", zap.Error(err))
		c.String(http.StatusInternalServerError, "payment result unavailable")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handler) listOrders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orders, err := h.payments.Orders(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	order, err := h.payments.Order(c.Request.Context(), userID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
