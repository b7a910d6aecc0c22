package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"

	"github.com/shopspring/decimal"
)

// Card is the cardholder input. It is only ever rendered into the form.
type Card struct {
	HolderName  string `json:"holderName" binding:"required"`
	Number      string `json:"number" binding:"required"`
	ExpiryMonth string `json:"expiryMonth" binding:"required"`
	ExpiryYear  string `json:"expiryYear" binding:"required"`
	CVV         string `json:"cvv" binding:"required"`
}

// FormItem is one line of the items JSON posted to the gateway.
type FormItem struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
}

// Billing is the buyer block of the 3D form.
type Billing struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Country      string
	PostalCode   string
}

type FormRequest struct {
	InvoiceID   string
	Description string
	Total       decimal.Decimal
	Items       []FormItem
	Card        Card
	Billing     Billing
}

type formField struct {
	Name  string
	Value string
}

var threeDFormTemplate = template.Must(template.New("pay3d").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>Redirecting</title></head>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.Action}}">
{{range .Fields}}<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{end}}<noscript><button type="submit">Continue</button></noscript>
</form>
</body>
</html>`))

// ThreeDForm renders the self-submitting page that posts the card and the
// integrity hash straight from the client to the hosted 3D endpoint.
func (c *Client) ThreeDForm(req FormRequest) (string, error) {
	total := FormatAmount(req.Total)
	installments := strconv.Itoa(c.cfg.Installments)

	hashKey, err := c.hasher.PaymentHash(total, installments, c.cfg.Currency, c.cfg.MerchantKey, req.InvoiceID)
	if err != nil {
		return "", fmt.Errorf("failed to build payment hash: %w", err)
	}

	items, err := json.Marshal(req.Items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal items: %w", err)
	}

	fields := []formField{
		{"cc_holder_name", req.Card.HolderName},
		{"cc_no", req.Card.Number},
		{"expiry_month", req.Card.ExpiryMonth},
		{"expiry_year", req.Card.ExpiryYear},
		{"cvv", req.Card.CVV},
		{"currency_code", c.cfg.Currency},
		{"installments_number", installments},
		{"invoice_id", req.InvoiceID},
		{"invoice_description", req.Description},
		{"total", total},
		{"merchant_key", c.cfg.MerchantKey},
		{"items", string(items)},
		{"name", req.Billing.FirstName},
		{"surname", req.Billing.LastName},
		{"hash_key", hashKey},
		{"return_url", c.cfg.ReturnURL},
		{"cancel_url", c.cfg.CancelURL},
		{"bill_address1", req.Billing.AddressLine1},
		{"bill_address2", req.Billing.AddressLine2},
		{"bill_city", req.Billing.City},
		{"bill_state", req.Billing.State},
		{"bill_country", req.Billing.Country},
		{"bill_postcode", req.Billing.PostalCode},
		{"bill_email", req.Billing.Email},
		{"bill_phone", req.Billing.Phone},
	}

	var buf bytes.Buffer
	err = threeDFormTemplate.Execute(&buf, struct {
		Action string
		Fields []formField
	}{Action: c.cfg.BaseURL + "/api/paySmart3D", Fields: fields})
	if err != nil {
		return "", fmt.Errorf("failed to render payment form: %w", err)
	}
	return buf.String(), nil
}
