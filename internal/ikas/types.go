package ikas

// Pagination mirrors the platform's PaginationInput.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type Page struct {
	Count   int  `json:"count"`
	HasNext bool `json:"hasNext"`
	Limit   int  `json:"limit"`
	Page    int  `json:"page"`
}

type IDName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProductPage struct {
	Page
	Data []Product `json:"data"`
}

type Product struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	Description         string               `json:"description"`
	BrandID             string               `json:"brandId"`
	Brand               *IDName              `json:"brand"`
	CategoryIDs         []string             `json:"categoryIds"`
	ProductVariantTypes []ProductVariantType `json:"productVariantTypes"`
	Variants            []Variant            `json:"variants"`
}

type ProductVariantType struct {
	Order           int      `json:"order"`
	VariantTypeID   string   `json:"variantTypeId"`
	VariantValueIDs []string `json:"variantValueIds"`
}

type Variant struct {
	ID              string            `json:"id"`
	SKU             string            `json:"sku"`
	IsActive        bool              `json:"isActive"`
	Weight          float64           `json:"weight"`
	Images          []VariantImage    `json:"images"`
	Prices          []VariantPrice    `json:"prices"`
	VariantValueIDs []VariantValueRef `json:"variantValueIds"`
}

type VariantImage struct {
	ImageID string `json:"imageId"`
	IsMain  bool   `json:"isMain"`
	Order   int    `json:"order"`
}

type VariantPrice struct {
	SellPrice     float64  `json:"sellPrice"`
	DiscountPrice *float64 `json:"discountPrice"`
	BuyPrice      *float64 `json:"buyPrice,omitempty"`
	Currency      string   `json:"currency,omitempty"`
}

type VariantValueRef struct {
	VariantTypeID  string `json:"variantTypeId"`
	VariantValueID string `json:"variantValueId"`
}

type VariantType struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	SelectionType string         `json:"selectionType"`
	Values        []VariantValue `json:"values"`
}

type VariantValue struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ColorCode        string `json:"colorCode,omitempty"`
	ThumbnailImageID string `json:"thumbnailImageId,omitempty"`
}

type Brand struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ImageID         string   `json:"imageId"`
	Description     string   `json:"description"`
	SalesChannelIDs []string `json:"salesChannelIds"`
}

type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

type OrderPage struct {
	Page
	Data []Order `json:"data"`
}

type Order struct {
	ID                 string          `json:"id"`
	OrderNumber        string          `json:"orderNumber"`
	Status             string          `json:"status"`
	OrderPaymentStatus string          `json:"orderPaymentStatus"`
	TotalFinalPrice    float64         `json:"totalFinalPrice"`
	CurrencyCode       string          `json:"currencyCode"`
	CustomerID         string          `json:"customerId"`
	Customer           *OrderCustomer  `json:"customer"`
	OrderLineItems     []OrderLineItem `json:"orderLineItems"`
	ShippingAddress    *Address        `json:"shippingAddress"`
	ShippingLines      []ShippingLine  `json:"shippingLines"`
	OrderedAt          int64           `json:"orderedAt"`
}

type OrderCustomer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type OrderLineItem struct {
	ID         string           `json:"id"`
	Quantity   int              `json:"quantity"`
	Price      float64          `json:"price"`
	FinalPrice float64          `json:"finalPrice"`
	Variant    OrderLineVariant `json:"variant"`
}

type OrderLineVariant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProductID   string `json:"productId"`
	SKU         string `json:"sku"`
	MainImageID string `json:"mainImageId"`
}

type Address struct {
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	Phone        string  `json:"phone"`
	AddressLine1 string  `json:"addressLine1"`
	AddressLine2 string  `json:"addressLine2,omitempty"`
	PostalCode   string  `json:"postalCode"`
	Country      *IDName `json:"country"`
	City         *IDName `json:"city"`
	District     *IDName `json:"district"`
}

type ShippingLine struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// CreateOrderInput is the payload of createOrderWithTransactions.
type CreateOrderInput struct {
	Order        OrderInput         `json:"order"`
	Transactions []TransactionInput `json:"transactions"`
}

type OrderInput struct {
	CurrencyCode    string               `json:"currencyCode"`
	SalesChannelID  string               `json:"salesChannelId,omitempty"`
	StorefrontID    string               `json:"storefrontId,omitempty"`
	Customer        *OrderCustomerInput  `json:"customer,omitempty"`
	OrderLineItems  []OrderLineItemInput `json:"orderLineItems"`
	ShippingAddress *Address             `json:"shippingAddress,omitempty"`
	BillingAddress  *Address             `json:"billingAddress,omitempty"`
	ShippingLines   []ShippingLine       `json:"shippingLines,omitempty"`
	Note            string               `json:"note,omitempty"`
}

type OrderCustomerInput struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type OrderLineItemInput struct {
	Variant  IDInput `json:"variant"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type IDInput struct {
	ID string `json:"id"`
}

type TransactionInput struct {
	Amount             float64 `json:"amount"`
	PaymentGatewayName string  `json:"paymentGatewayName"`
	Type               string  `json:"type"`
	Status             string  `json:"status"`
	TransactionID      string  `json:"transactionId,omitempty"`
}

type CreatedOrder struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
}

// RefundInput is the payload of refundOrderLine.
type RefundInput struct {
	OrderID    string            `json:"orderId"`
	OrderLines []RefundLineInput `json:"orderLines,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

type RefundLineInput struct {
	OrderLineID string `json:"orderLineId"`
	Quantity    int    `json:"quantity"`
}

type Customer struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
	Phone     string            `json:"phone"`
	Addresses []CustomerAddress `json:"addresses"`
}

type CustomerAddress struct {
	Address
	Title string `json:"title,omitempty"`
}

type CustomerInput struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Password  string `json:"password,omitempty"`
}

type CustomerLoginResult struct {
	Token       string    `json:"token"`
	TokenExpiry int64     `json:"tokenExpiry"`
	Customer    *Customer `json:"customer"`
}

type Webhook struct {
	ID       string `json:"id"`
	Scope    string `json:"scope"`
	Endpoint string `json:"endpoint"`
}
