package service

import (
	"context"
	"errors"
	"testing"

	"tnf-api/internal/models"
	"tnf-api/internal/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	svc       *PaymentService
	store     *memStore
	commerce  *fakeCommerce
	payments  *fakePayments
	publisher *recordingPublisher
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		store:     newMemStore(),
		commerce:  newFakeCommerce(),
		payments:  &fakePayments{},
		publisher: &recordingPublisher{},
	}
	f.svc = NewPaymentService(f.store, f.payments, f.commerce, f.publisher, PaymentConfig{
		Currency:       "TRY",
		SalesChannelID: "sc-1",
		StorefrontID:   "sf-1",
	})
	return f
}

func initiateRequest(invoiceID string) *InitiatePaymentRequest {
	return &InitiatePaymentRequest{
		InvoiceID: invoiceID,
		Items: []CartItem{{
			ProductID: "p1",
			VariantID: "v1",
			Quantity:  1,
			Price:     decimal.NewFromInt(100),
			Name:      "Nuptse",
		}},
		ShippingAddress: models.Address{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		Card:            payment.Card{HolderName: "Ada", Number: "4111111111111111", ExpiryMonth: "12", ExpiryYear: "2030", CVV: "123"},
	}
}

func successCallback(invoiceID string) payment.CallbackResult {
	return payment.CallbackResult{
		SipayStatus: "1",
		ErrorCode:   "100",
		InvoiceID:   invoiceID,
		OrderNo:     "SO-123",
		Amount:      "100",
		HashKey:     "signed",
	}
}

func TestPayment_EndToEnd(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	html, err := f.svc.Initiate(ctx, initiateRequest("INV-1"), nil)
	require.NoError(t, err)
	assert.Contains(t, html, "INV-1")
	assert.Equal(t, models.PendingStatusPending, f.store.pendingStatus("INV-1"))
	require.Len(t, f.payments.forms, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(f.payments.forms[0].Total))

	order, err := f.svc.HandleCallback(ctx, successCallback("INV-1"))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(order.TotalAmount))
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.True(t, order.IsPaid)
	assert.Equal(t, "SO-123", order.PaymentID)
	require.NotNil(t, order.IkasOrderID)
	assert.Equal(t, "ikas-order-1", *order.IkasOrderID)
	assert.Equal(t, models.PendingStatusCompleted, f.store.pendingStatus("INV-1"))

	stored, err := f.store.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)

	require.Len(t, f.commerce.createdOrders, 1)
	mirrored := f.commerce.createdOrders[0]
	assert.Equal(t, "sc-1", mirrored.Order.SalesChannelID)
	assert.Equal(t, "v1", mirrored.Order.OrderLineItems[0].Variant.ID)
	assert.Equal(t, "ada@example.com", mirrored.Order.Customer.Email)
	require.Len(t, mirrored.Transactions, 1)
	assert.Equal(t, "Sipay", mirrored.Transactions[0].PaymentGatewayName)
	assert.Equal(t, "SUCCESS", mirrored.Transactions[0].Status)
	assert.Equal(t, 100.0, mirrored.Transactions[0].Amount)

	assert.Equal(t, []string{models.EventTypeOrderCompleted}, f.publisher.types())

	// replay: the pending order is no longer claimable
	_, err = f.svc.HandleCallback(ctx, successCallback("INV-1"))
	assert.Equal(t, ENOTFOUND, ErrorCode(err))
	assert.Equal(t, 1, f.store.orderCount())
	assert.Len(t, f.commerce.createdOrders, 1)
}

func TestPayment_InitiateDuplicateInvoice(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, initiateRequest("INV-1"), nil)
	require.NoError(t, err)
	_, err = f.svc.Initiate(ctx, initiateRequest("INV-1"), nil)

	assert.Equal(t, ECONFLICT, ErrorCode(err))
}

func TestPayment_InitiateAddsPaidShipping(t *testing.T) {
	f := newPaymentFixture(t)
	req := initiateRequest("INV-2")
	req.ShippingMethod = &models.ShippingMethod{Title: "Express", Price: decimal.RequireFromString("29.90")}

	_, err := f.svc.Initiate(context.Background(), req, nil)

	require.NoError(t, err)
	assert.Equal(t, "129.90", f.payments.forms[0].Total.StringFixed(2))
}

func TestPayment_InitiateValidation(t *testing.T) {
	f := newPaymentFixture(t)
	tests := []struct {
		name   string
		mutate func(*InitiatePaymentRequest)
	}{
		{"no invoice", func(r *InitiatePaymentRequest) { r.InvoiceID = " " }},
		{"empty cart", func(r *InitiatePaymentRequest) { r.Items = nil }},
		{"zero quantity", func(r *InitiatePaymentRequest) { r.Items[0].Quantity = 0 }},
		{"negative price", func(r *InitiatePaymentRequest) { r.Items[0].Price = decimal.NewFromInt(-1) }},
		{"no card", func(r *InitiatePaymentRequest) { r.Card = payment.Card{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := initiateRequest("INV-V")
			tt.mutate(req)
			_, err := f.svc.Initiate(context.Background(), req, nil)
			assert.Equal(t, EINVALID, ErrorCode(err))
		})
	}
	assert.Empty(t, f.store.pending)
}

func TestPayment_DeclinedCallback(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	_, err := f.svc.Initiate(ctx, initiateRequest("INV-3"), nil)
	require.NoError(t, err)

	cb := payment.CallbackResult{SipayStatus: "0", InvoiceID: "INV-3", ErrorCode: "41", Error: "Insufficient funds", HashKey: "signed"}
	_, err = f.svc.HandleCallback(ctx, cb)

	assert.Equal(t, EDECLINED, ErrorCode(err))
	assert.Equal(t, "Insufficient funds", ErrorMessage(err))
	assert.Equal(t, models.PendingStatusFailed, f.store.pendingStatus("INV-3"))
	assert.Equal(t, 0, f.store.orderCount())
	assert.Equal(t, []string{models.EventTypePaymentFailed}, f.publisher.types())
}

func TestPayment_TamperedCallback(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	_, err := f.svc.Initiate(ctx, initiateRequest("INV-4"), nil)
	require.NoError(t, err)
	f.payments.verifyErr = payment.ErrInvalidHash

	_, err = f.svc.HandleCallback(ctx, successCallback("INV-4"))

	assert.Equal(t, EINVALID, ErrorCode(err))
	assert.Equal(t, models.PendingStatusPending, f.store.pendingStatus("INV-4"))
	assert.Equal(t, 0, f.store.orderCount())
}

func TestPayment_UnsignedCallback(t *testing.T) {
	ctx := context.Background()
	declined := func(invoiceID string) payment.CallbackResult {
		return payment.CallbackResult{SipayStatus: "0", InvoiceID: invoiceID, Error: "Insufficient funds"}
	}

	t.Run("success rejected", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, err := f.svc.Initiate(ctx, initiateRequest("INV-U1"), nil)
		require.NoError(t, err)
		cb := successCallback("INV-U1")
		cb.HashKey = ""

		_, err = f.svc.HandleCallback(ctx, cb)

		assert.Equal(t, EINVALID, ErrorCode(err))
		assert.Equal(t, models.PendingStatusPending, f.store.pendingStatus("INV-U1"))
		assert.Equal(t, 0, f.store.orderCount())
		assert.Empty(t, f.commerce.createdOrders)
	})

	t.Run("decline rejected", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, err := f.svc.Initiate(ctx, initiateRequest("INV-U2"), nil)
		require.NoError(t, err)

		_, err = f.svc.HandleCallback(ctx, declined("INV-U2"))

		assert.Equal(t, EINVALID, ErrorCode(err))
		assert.Equal(t, models.PendingStatusPending, f.store.pendingStatus("INV-U2"))
		assert.Empty(t, f.publisher.types())

		// a genuine signed success still settles the order
		_, err = f.svc.HandleCallback(ctx, successCallback("INV-U2"))
		require.NoError(t, err)
	})

	t.Run("allowed by config", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.svc.cfg.AllowUnsignedCallback = true
		_, err := f.svc.Initiate(ctx, initiateRequest("INV-U3"), nil)
		require.NoError(t, err)
		_, err = f.svc.Initiate(ctx, initiateRequest("INV-U4"), nil)
		require.NoError(t, err)
		cb := successCallback("INV-U3")
		cb.HashKey = ""

		_, err = f.svc.HandleCallback(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, models.PendingStatusCompleted, f.store.pendingStatus("INV-U3"))

		_, err = f.svc.HandleCallback(ctx, declined("INV-U4"))
		assert.Equal(t, EDECLINED, ErrorCode(err))
		assert.Equal(t, models.PendingStatusFailed, f.store.pendingStatus("INV-U4"))
	})
}

func TestPayment_CommitFailureReleasesClaim(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	_, err := f.svc.Initiate(ctx, initiateRequest("INV-11"), nil)
	require.NoError(t, err)
	f.store.failCreateOrder = errors.New("connection reset")

	_, err = f.svc.HandleCallback(ctx, successCallback("INV-11"))

	require.Error(t, err)
	assert.Equal(t, models.PendingStatusPending, f.store.pendingStatus("INV-11"))
	assert.Equal(t, 0, f.store.orderCount())

	f.store.failCreateOrder = nil
	order, err := f.svc.HandleCallback(ctx, successCallback("INV-11"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, 1, f.store.orderCount())
	assert.Equal(t, models.PendingStatusCompleted, f.store.pendingStatus("INV-11"))
}

func TestPayment_AmountMismatch(t *testing.T) {
	ctx := context.Background()

	t.Run("signed total differs", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, err := f.svc.Initiate(ctx, initiateRequest("INV-12"), nil)
		require.NoError(t, err)
		f.payments.signedTotal = "1.00"

		_, err = f.svc.HandleCallback(ctx, successCallback("INV-12"))

		assert.Equal(t, EINVALID, ErrorCode(err))
		assert.Equal(t, models.PendingStatusFailed, f.store.pendingStatus("INV-12"))
		assert.Equal(t, 0, f.store.orderCount())
		assert.Empty(t, f.commerce.createdOrders)
		assert.Equal(t, []string{models.EventTypePaymentFailed}, f.publisher.types())
	})

	t.Run("unsigned amount differs", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.svc.cfg.AllowUnsignedCallback = true
		_, err := f.svc.Initiate(ctx, initiateRequest("INV-13"), nil)
		require.NoError(t, err)
		cb := successCallback("INV-13")
		cb.HashKey = ""
		cb.Amount = "99.99"

		_, err = f.svc.HandleCallback(ctx, cb)

		assert.Equal(t, EINVALID, ErrorCode(err))
		assert.Equal(t, models.PendingStatusFailed, f.store.pendingStatus("INV-13"))
		assert.Equal(t, 0, f.store.orderCount())
	})

	t.Run("formatting differences match", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, err := f.svc.Initiate(ctx, initiateRequest("INV-14"), nil)
		require.NoError(t, err)
		f.payments.signedTotal = "100.00"

		_, err = f.svc.HandleCallback(ctx, successCallback("INV-14"))
		require.NoError(t, err)
	})
}

func TestPayment_DeclineLeavesClaimedOrder(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	_, err := f.svc.Initiate(ctx, initiateRequest("INV-15"), nil)
	require.NoError(t, err)
	f.store.setPendingStatus("INV-15", models.PendingStatusProcessing)

	cb := payment.CallbackResult{SipayStatus: "0", InvoiceID: "INV-15", Error: "late decline", HashKey: "signed"}
	_, err = f.svc.HandleCallback(ctx, cb)

	assert.Equal(t, EDECLINED, ErrorCode(err))
	assert.Equal(t, models.PendingStatusProcessing, f.store.pendingStatus("INV-15"))
}

func TestPayment_MirrorAdoptsSyncedOrder(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	_, err := f.svc.Initiate(ctx, initiateRequest("INV-16"), nil)
	require.NoError(t, err)

	// the order sync saw the remote order first
	remoteID := "ikas-order-1"
	synced := &models.Order{IkasOrderID: &remoteID, TotalAmount: decimal.NewFromInt(100), Status: models.OrderStatusCompleted}
	_, err = f.store.UpsertOrderByIkasID(ctx, synced)
	require.NoError(t, err)

	order, err := f.svc.HandleCallback(ctx, successCallback("INV-16"))

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.IkasOrderID)
	assert.Equal(t, remoteID, *order.IkasOrderID)
	assert.Equal(t, []string{models.EventTypeOrderCompleted}, f.publisher.types())
	assert.Equal(t, 1, f.store.orderCount())

	stored, err := f.store.GetOrderByIkasID(ctx, remoteID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	require.NoError(t, f.svc.RetryMirror(ctx, order.ID))
	assert.Len(t, f.commerce.createdOrders, 1)
}

func TestPayment_UnknownInvoice(t *testing.T) {
	f := newPaymentFixture(t)

	_, err := f.svc.HandleCallback(context.Background(), successCallback("INV-404"))

	assert.Equal(t, ENOTFOUND, ErrorCode(err))
}

func TestPayment_MirrorFailureKeepsPaidOrder(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	_, err := f.svc.Initiate(ctx, initiateRequest("INV-5"), nil)
	require.NoError(t, err)
	f.commerce.createOrderErr = errors.New("graphql down")

	order, err := f.svc.HandleCallback(ctx, successCallback("INV-5"))

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.Nil(t, order.IkasOrderID)
	assert.Equal(t, models.PendingStatusCompleted, f.store.pendingStatus("INV-5"))
	assert.Equal(t, []string{models.EventTypeOrderMirrorFailed}, f.publisher.types())

	f.commerce.createOrderErr = nil
	require.NoError(t, f.svc.RetryMirror(ctx, order.ID))

	stored, err := f.store.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)
	require.NotNil(t, stored.IkasOrderID)

	// already mirrored: no second remote order
	require.NoError(t, f.svc.RetryMirror(ctx, order.ID))
	assert.Len(t, f.commerce.createdOrders, 1)
}

func TestPayment_LinkedCustomerOnMirror(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	shadow := &models.IkasUser{IkasCustomerID: "cust-9", Email: "ada@example.com"}
	require.NoError(t, f.store.UpsertIkasUser(ctx, shadow))
	user := f.store.addUser("ada")
	require.NoError(t, f.store.LinkIkasUser(ctx, user.ID, shadow.ID))

	_, err := f.svc.Initiate(ctx, initiateRequest("INV-6"), &user.ID)
	require.NoError(t, err)
	order, err := f.svc.HandleCallback(ctx, successCallback("INV-6"))
	require.NoError(t, err)

	assert.Equal(t, user.ID, *order.UserID)
	assert.Equal(t, "cust-9", f.commerce.createdOrders[0].Order.Customer.ID)

	orders, err := f.svc.Orders(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = f.svc.Order(ctx, uuid.New(), order.ID)
	assert.Equal(t, ENOTFOUND, ErrorCode(err), "orders are private to their owner")
}

func paidOrder(t *testing.T, f *paymentFixture, invoiceID string) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Initiate(ctx, initiateRequest(invoiceID), nil)
	require.NoError(t, err)
	order, err := f.svc.HandleCallback(ctx, successCallback(invoiceID))
	require.NoError(t, err)
	return order
}

func TestPayment_Refund(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order := paidOrder(t, f, "INV-7")

	refunded, err := f.svc.Refund(ctx, *order.IkasOrderID, nil, "customer request")

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundInfo)
	assert.Equal(t, "REF-1", refunded.RefundInfo.ReferenceNo)
	assert.True(t, decimal.NewFromInt(100).Equal(refunded.RefundInfo.Amount))
	require.Len(t, f.payments.refunds, 1)
	assert.Equal(t, "INV-7", f.payments.refunds[0].InvoiceID)
	require.Len(t, f.commerce.refunds, 1)
	assert.Equal(t, *order.IkasOrderID, f.commerce.refunds[0].OrderID)

	_, err = f.svc.Refund(ctx, *order.IkasOrderID, nil, "again")
	assert.Equal(t, ECONFLICT, ErrorCode(err))
}

func TestPayment_RefundFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, err := f.svc.Refund(ctx, "nope", nil, "")
		assert.Equal(t, ENOTFOUND, ErrorCode(err))
	})

	t.Run("amount above total", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := paidOrder(t, f, "INV-8")
		amount := decimal.NewFromInt(101)
		_, err := f.svc.Refund(ctx, *order.IkasOrderID, &amount, "")
		assert.Equal(t, EINVALID, ErrorCode(err))
		assert.Empty(t, f.payments.refunds)
	})

	t.Run("gateway declines", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := paidOrder(t, f, "INV-9")
		f.payments.refundErr = payment.ErrGateway
		_, err := f.svc.Refund(ctx, *order.IkasOrderID, nil, "")
		assert.Equal(t, EUPSTREAM, ErrorCode(err))
		assert.Empty(t, f.commerce.refunds)
	})

	t.Run("commerce refund fails after gateway refund", func(t *testing.T) {
		f := newPaymentFixture(t)
		order := paidOrder(t, f, "INV-10")
		f.commerce.refundErr = errors.New("mutation failed")
		_, err := f.svc.Refund(ctx, *order.IkasOrderID, nil, "")
		assert.Equal(t, EUPSTREAM, ErrorCode(err))

		stored, err := f.store.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCompleted, stored.Status)
	})

	t.Run("synced order without invoice", func(t *testing.T) {
		f := newPaymentFixture(t)
		ikasID := "remote-1"
		_, err := f.store.UpsertOrderByIkasID(ctx, &models.Order{IkasOrderID: &ikasID, IsPaid: true, TotalAmount: decimal.NewFromInt(5)})
		require.NoError(t, err)
		_, err = f.svc.Refund(ctx, ikasID, nil, "")
		assert.Equal(t, EINVALID, ErrorCode(err))
	})
}
