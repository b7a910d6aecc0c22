package ikas

import (
	"context"
	"fmt"
)

const variantFields = `
	id sku isActive weight
	images { imageId isMain order }
	prices { sellPrice discountPrice buyPrice currency }
	variantValueIds { variantTypeId variantValueId }`

const listProductQuery = `query ListProduct($pagination: PaginationInput) {
  listProduct(pagination: $pagination) {
    count hasNext limit page
    data {
      id name description brandId categoryIds
      brand { id name }
      productVariantTypes { order variantTypeId variantValueIds }
      variants {` + variantFields + `
      }
    }
  }
}`

const listOrderQuery = `query ListOrder($pagination: PaginationInput) {
  listOrder(pagination: $pagination) {
    count hasNext limit page
    data {
      id orderNumber status orderPaymentStatus totalFinalPrice currencyCode customerId orderedAt
      customer { id email firstName lastName phone }
      orderLineItems { id quantity price finalPrice variant { id name productId sku mainImageId } }
      shippingAddress {
        firstName lastName phone addressLine1 addressLine2 postalCode
        country { id name } city { id name } district { id name }
      }
      shippingLines { title price }
    }
  }
}`

const listVariantTypeQuery = `query ListVariantType($id: StringFilterInput) {
  listVariantType(id: $id) {
    id name selectionType
    values { id name colorCode thumbnailImageId }
  }
}`

const listProductBrandQuery = `query ListProductBrand {
  listProductBrand { id name imageId description salesChannelIds }
}`

const listCategoryQuery = `query ListCategory {
  listCategory { id name parentId }
}`

const createOrderMutation = `mutation CreateOrderWithTransactions($input: CreateOrderWithTransactionsInput!) {
  createOrderWithTransactions(input: $input) { id orderNumber }
}`

const refundOrderLineMutation = `mutation RefundOrderLine($input: OrderRefundInput!) {
  refundOrderLine(input: $input) { id }
}`

const customerFields = `id email firstName lastName phone
  addresses {
    title firstName lastName phone addressLine1 addressLine2 postalCode
    country { id name } city { id name } district { id name }
  }`

const saveCustomerMutation = `mutation SaveCustomer($input: CustomerInput!) {
  saveCustomer(input: $input) { ` + customerFields + ` }
}`

const customerLoginMutation = `mutation CustomerLogin($email: String!, $password: String!) {
  customerLogin(email: $email, password: $password) {
    token tokenExpiry
    customer { ` + customerFields + ` }
  }
}`

const meQuery = `query Me {
  me { ` + customerFields + ` }
}`

const listWebhookQuery = `query ListWebhook {
  listWebhook { id scope endpoint }
}`

const deleteWebhookMutation = `mutation DeleteWebhook($scopes: [String!]!) {
  deleteWebhook(scopes: $scopes)
}`

// ListProducts fetches one page of the remote catalog.
func (c *Client) ListProducts(ctx context.Context, page, limit int) (*ProductPage, error) {
	var out struct {
		ListProduct ProductPage `json:"listProduct"`
	}
	vars := map[string]interface{}{"pagination": Pagination{Page: page, Limit: limit}}
	if err := c.MakeRequest(ctx, "listProduct", listProductQuery, vars, &out); err != nil {
		return nil, err
	}
	return &out.ListProduct, nil
}

// ListOrders fetches one page of remote orders.
func (c *Client) ListOrders(ctx context.Context, page, limit int) (*OrderPage, error) {
	var out struct {
		ListOrder OrderPage `json:"listOrder"`
	}
	vars := map[string]interface{}{"pagination": Pagination{Page: page, Limit: limit}}
	if err := c.MakeRequest(ctx, "listOrder", listOrderQuery, vars, &out); err != nil {
		return nil, err
	}
	return &out.ListOrder, nil
}

// GetVariantType fetches the full value catalog of a variant type.
func (c *Client) GetVariantType(ctx context.Context, id string) (*VariantType, error) {
	var out struct {
		ListVariantType []VariantType `json:"listVariantType"`
	}
	vars := map[string]interface{}{"id": map[string]string{"eq": id}}
	if err := c.MakeRequest(ctx, "listVariantType", listVariantTypeQuery, vars, &out); err != nil {
		return nil, err
	}
	if len(out.ListVariantType) == 0 {
		return nil, fmt.Errorf("%w: variant type %s not found", ErrUpstream, id)
	}
	return &out.ListVariantType[0], nil
}

func (c *Client) ListBrands(ctx context.Context) ([]Brand, error) {
	var out struct {
		ListProductBrand []Brand `json:"listProductBrand"`
	}
	if err := c.MakeRequest(ctx, "listProductBrand", listProductBrandQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.ListProductBrand, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var out struct {
		ListCategory []Category `json:"listCategory"`
	}
	if err := c.MakeRequest(ctx, "listCategory", listCategoryQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.ListCategory, nil
}

// CreateOrder mirrors a paid order into the commerce platform.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreatedOrder, error) {
	var out struct {
		CreateOrderWithTransactions CreatedOrder `json:"createOrderWithTransactions"`
	}
	vars := map[string]interface{}{"input": input}
	if err := c.MakeRequest(ctx, "createOrderWithTransactions", createOrderMutation, vars, &out); err != nil {
		return nil, err
	}
	return &out.CreateOrderWithTransactions, nil
}

func (c *Client) RefundOrder(ctx context.Context, input RefundInput) error {
	vars := map[string]interface{}{"input": input}
	return c.MakeRequest(ctx, "refundOrderLine", refundOrderLineMutation, vars, nil)
}

func (c *Client) SaveCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	var out struct {
		SaveCustomer Customer `json:"saveCustomer"`
	}
	vars := map[string]interface{}{"input": input}
	if err := c.MakeRequest(ctx, "saveCustomer", saveCustomerMutation, vars, &out); err != nil {
		return nil, err
	}
	return &out.SaveCustomer, nil
}

func (c *Client) CustomerLogin(ctx context.Context, email, password string) (*CustomerLoginResult, error) {
	var out struct {
		CustomerLogin *CustomerLoginResult `json:"customerLogin"`
	}
	vars := map[string]interface{}{"email": email, "password": password}
	if err := c.MakeRequest(ctx, "customerLogin", customerLoginMutation, vars, &out); err != nil {
		return nil, err
	}
	if out.CustomerLogin == nil || out.CustomerLogin.Token == "" {
		return nil, fmt.Errorf("%w: customer login rejected", ErrUpstream)
	}
	return out.CustomerLogin, nil
}

// Me returns the customer owning customerToken.
func (c *Client) Me(ctx context.Context, customerToken string) (*Customer, error) {
	var out struct {
		Me *Customer `json:"me"`
	}
	if err := c.MakeRequestWithToken(ctx, "me", customerToken, meQuery, nil, &out); err != nil {
		return nil, err
	}
	if out.Me == nil {
		return nil, fmt.Errorf("%w: no customer for token", ErrUpstream)
	}
	return out.Me, nil
}

func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var out struct {
		ListWebhook []Webhook `json:"listWebhook"`
	}
	if err := c.MakeRequest(ctx, "listWebhook", listWebhookQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.ListWebhook, nil
}

func (c *Client) DeleteWebhooks(ctx context.Context, scopes []string) error {
	vars := map[string]interface{}{"scopes": scopes}
	return c.MakeRequest(ctx, "deleteWebhook", deleteWebhookMutation, vars, nil)
}
