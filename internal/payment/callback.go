package payment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CallbackResult is the form the gateway posts to the return/cancel URL.
type CallbackResult struct {
	SipayStatus                  string `form:"sipay_status" json:"sipay_status"`
	OrderNo                      string `form:"order_no" json:"order_no"`
	OrderID                      string `form:"order_id" json:"order_id"`
	InvoiceID                    string `form:"invoice_id" json:"invoice_id"`
	StatusCode                   string `form:"status_code" json:"status_code"`
	StatusDescription            string `form:"status_description" json:"status_description"`
	SipayPaymentMethod           string `form:"sipay_payment_method" json:"sipay_payment_method"`
	CreditCardNo                 string `form:"credit_card_no" json:"credit_card_no"`
	TransactionType              string `form:"transaction_type" json:"transaction_type"`
	PaymentStatus                string `form:"payment_status" json:"payment_status"`
	PaymentMethod                string `form:"payment_method" json:"payment_method"`
	ErrorCode                    string `form:"error_code" json:"error_code"`
	Error                        string `form:"error" json:"error"`
	AuthCode                     string `form:"auth_code" json:"auth_code"`
	MerchantCommission           string `form:"merchant_commission" json:"merchant_commission"`
	UserCommission               string `form:"user_commission" json:"user_commission"`
	Amount                       string `form:"amount" json:"amount"`
	HashKey                      string `form:"hash_key" json:"hash_key"`
	MDStatus                     string `form:"md_status" json:"md_status"`
	OriginalBankErrorCode        string `form:"original_bank_error_code" json:"original_bank_error_code"`
	OriginalBankErrorDescription string `form:"original_bank_error_description" json:"original_bank_error_description"`
}

// Succeeded reports whether the gateway approved the sale.
func (r CallbackResult) Succeeded() bool {
	return r.SipayStatus == "1"
}

// FailureReason picks the most specific message the gateway sent.
func (r CallbackResult) FailureReason() string {
	for _, s := range []string{r.Error, r.StatusDescription, r.OriginalBankErrorDescription} {
		if s != "" {
			return s
		}
	}
	return "payment declined"
}

// PaidAmount parses the amount field; zero when absent or malformed.
func (r CallbackResult) PaidAmount() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// CallbackHash is the decrypted content of a callback hash_key.
type CallbackHash struct {
	Status    string
	Total     string
	InvoiceID string
	OrderID   string
	Currency  string
}

// VerifyCallback decrypts the callback hash_key and checks it was issued for
// the same invoice.
func (h *Hasher) VerifyCallback(r CallbackResult) (*CallbackHash, error) {
	fields, err := h.Decrypt(r.HashKey)
	if err != nil {
		return nil, err
	}
	if len(fields) < 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d", ErrInvalidHash, len(fields))
	}
	ch := &CallbackHash{
		Status:    fields[0],
		Total:     fields[1],
		InvoiceID: fields[2],
		OrderID:   fields[3],
		Currency:  fields[4],
	}
	if ch.InvoiceID != r.InvoiceID {
		return nil, fmt.Errorf("%w: invoice mismatch", ErrInvalidHash)
	}
	return ch, nil
}

// VerifyCallback checks r against the client's app secret.
func (c *Client) VerifyCallback(r CallbackResult) (*CallbackHash, error) {
	return c.hasher.VerifyCallback(r)
}
