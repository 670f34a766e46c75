// Package keyware implements the Keyware / EMS Pay hosted order REST API.
// Amounts travel in cents and the API key authenticates as the basic auth
// user name.
package keyware

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"
	"time"

	"github.com/teyzer/paykit/gateway"
)

const defaultBaseURL = "https://api.online.emspay.eu/v1/"

// statuses maps the order status field
var statuses = map[string]gateway.Result{
	"completed":  gateway.ResultPaid,
	"new":        gateway.ResultWaiting,
	"processing": gateway.ResultWaiting,
	"cancelled":  gateway.ResultCancelled,
	"expired":    gateway.ResultExpired,
	"error":      gateway.ResultError,
}

var descriptor = gateway.Descriptor{
	Kind:    "keyware",
	Caption: "Keyware (EMS Pay)",
	Parameters: []gateway.ParameterSpec{
		{Key: "api_key", Caption: "API key", Type: "string", Required: true},
		{Key: "api_url", Caption: "API base URL", Type: "url", Default: defaultBaseURL},
		{Key: "currency", Caption: "Currency", Type: "string", Default: "EUR"},
		{Key: "normal_return_url", Caption: "Browser return URL", Type: "url"},
		{Key: "webhook_url", Caption: "Webhook notification URL", Type: "url"},
	},
	HasPaymentStatus: true,
	CanCancel:        true,
}

type orderResource struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	MerchantOrderID string `json:"merchant_order_id"`
	OrderURL        string `json:"order_url"`
	Created         string `json:"created"`
}

// Keyware implements the gateway.Gateway interface
type Keyware struct {
	currency  string
	returnURL string
	webhook   string
	client    *gateway.HTTPClient
}

// New creates a new Keyware backend
func New() gateway.Gateway {
	return &Keyware{}
}

func (k *Keyware) Initialize(options map[string]string) error {
	k.currency = options["currency"]
	k.returnURL = options["normal_return_url"]
	k.webhook = options["webhook_url"]
	k.client = gateway.NewHTTPClient(&gateway.HTTPClientConfig{
		Backend: "keyware",
		BaseURL: options["api_url"],
		DefaultHeaders: map[string]string{
			"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(options["api_key"]+":")),
		},
	})
	return nil
}

func (k *Keyware) Descriptor() gateway.Descriptor {
	return descriptor
}

func (k *Keyware) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, gateway.NoMaxAmount, true)
	if err != nil {
		return nil, err
	}
	cents, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return nil, &gateway.AmountError{Value: req.Amount, Message: "not a number"}
	}

	body := map[string]any{
		"amount":            cents,
		"currency":          k.currency,
		"merchant_order_id": req.OrderID,
		"description":       req.Subject,
	}
	if k.returnURL != "" {
		body["return_url"] = k.returnURL
	}
	if k.webhook != "" {
		body["webhook_url"] = k.webhook
	}
	if req.Email != "" {
		body["customer"] = map[string]string{"email_address": req.Email}
	}

	resp, err := k.client.SendJSON(ctx, &gateway.HTTPRequest{
		Method:   "POST",
		Endpoint: "orders",
		Body:     body,
	})
	if err != nil {
		return nil, err
	}
	var order orderResource
	if err := k.client.ParseJSONResponse(resp, &order); err != nil {
		return nil, err
	}
	if order.ID == "" || order.OrderURL == "" {
		return nil, &gateway.ProtocolError{Backend: "keyware", Method: "POST", Endpoint: "orders", Message: "no order id or payment URL in response"}
	}

	return &gateway.PaymentOrder{
		Handle: order.ID,
		Kind:   gateway.KindRedirect,
		URL:    order.OrderURL,
	}, nil
}

func (k *Keyware) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	orderID := payload.Get("order_id")
	if orderID == "" {
		orderID = payload.Get("id")
	}
	if orderID == "" {
		return nil, &gateway.ResponseError{Backend: "keyware", Message: "missing order_id field"}
	}
	return k.fetchOrder(ctx, orderID, payload)
}

// PaymentStatus actively polls the order resource.
func (k *Keyware) PaymentStatus(ctx context.Context, handle string, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	if handle == "" {
		return nil, &gateway.ResponseError{Backend: "keyware", Message: "missing order id handle"}
	}
	return k.fetchOrder(ctx, handle, url.Values{"order_id": {handle}})
}

// Cancel cancels an open order.
func (k *Keyware) Cancel(ctx context.Context, amount string, bankData url.Values) (*gateway.PaymentResponse, error) {
	orderID := bankData.Get("order_id")
	if orderID == "" {
		return nil, &gateway.ResponseError{Backend: "keyware", Message: "missing order_id in bank data"}
	}
	resp, err := k.client.SendJSON(ctx, &gateway.HTTPRequest{
		Method:   "DELETE",
		Endpoint: "orders/" + orderID,
	})
	if err != nil {
		return nil, err
	}
	return k.buildResponse(resp, bankData)
}

func (k *Keyware) fetchOrder(ctx context.Context, orderID string, payload url.Values) (*gateway.PaymentResponse, error) {
	resp, err := k.client.SendJSON(ctx, &gateway.HTTPRequest{
		Method:   "GET",
		Endpoint: "orders/" + orderID,
	})
	if err != nil {
		return nil, err
	}
	return k.buildResponse(resp, payload)
}

func (k *Keyware) buildResponse(resp *gateway.HTTPResponse, payload url.Values) (*gateway.PaymentResponse, error) {
	var order orderResource
	if err := k.client.ParseJSONResponse(resp, &order); err != nil {
		return nil, err
	}

	result, ok := statuses[order.Status]
	bankStatus := order.Status
	if !ok {
		result = gateway.ResultError
		bankStatus = "unknown status: " + order.Status
	}

	bankData := url.Values{}
	for key, values := range payload {
		bankData[key] = values
	}
	bankData.Set("status", order.Status)
	bankData.Set("amount", strconv.FormatInt(order.Amount, 10))

	var transactionDate *time.Time
	if order.Created != "" {
		if t, err := time.Parse(time.RFC3339, order.Created); err == nil {
			transactionDate = &t
		}
	}

	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          true, // the status comes from a direct API call
		TransactionID:   order.ID,
		OrderID:         order.MerchantOrderID,
		BankData:        bankData,
		BankStatus:      bankStatus,
		TransactionDate: transactionDate,
		Test:            false,
	}, nil
}
