// Package mollie implements the Mollie v2 REST API: payment creation with a
// hosted checkout URL, webhook driven status retrieval and cancellation.
package mollie

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/teyzer/paykit/gateway"
)

const defaultBaseURL = "https://api.mollie.com/v2/"

// statuses maps the Mollie payment status field
var statuses = map[string]gateway.Result{
	"paid":       gateway.ResultPaid,
	"open":       gateway.ResultWaiting,
	"pending":    gateway.ResultWaiting,
	"authorized": gateway.ResultAccepted,
	"canceled":   gateway.ResultCancelled,
	"expired":    gateway.ResultExpired,
	"failed":     gateway.ResultDenied,
}

var descriptor = gateway.Descriptor{
	Kind:    "mollie",
	Caption: "Mollie",
	Parameters: []gateway.ParameterSpec{
		{Key: "api_key", Caption: "API key", Type: "string", Required: true, Pattern: `^(test|live)_\w+$`},
		{Key: "api_url", Caption: "API base URL", Type: "url", Default: defaultBaseURL},
		{Key: "currency", Caption: "Currency", Type: "string", Default: "EUR"},
		{Key: "normal_return_url", Caption: "Browser return URL", Type: "url"},
		{Key: "webhook_url", Caption: "Webhook notification URL", Type: "url"},
	},
	HasPaymentStatus: true,
	CanCancel:        true,
}

type paymentResource struct {
	Resource    string `json:"resource"`
	ID          string `json:"id"`
	Mode        string `json:"mode"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Amount      struct {
		Currency string `json:"currency"`
		Value    string `json:"value"`
	} `json:"amount"`
	Metadata map[string]string `json:"metadata"`
	PaidAt   string            `json:"paidAt"`
	Links    struct {
		Checkout struct {
			Href string `json:"href"`
		} `json:"checkout"`
	} `json:"_links"`
}

// Mollie implements the gateway.Gateway interface
type Mollie struct {
	currency  string
	returnURL string
	webhook   string
	test      bool
	client    *gateway.HTTPClient
}

// New creates a new Mollie backend
func New() gateway.Gateway {
	return &Mollie{}
}

func (m *Mollie) Initialize(options map[string]string) error {
	apiKey := options["api_key"]
	m.currency = options["currency"]
	m.returnURL = options["normal_return_url"]
	m.webhook = options["webhook_url"]
	m.test = strings.HasPrefix(apiKey, "test_")
	m.client = gateway.NewHTTPClient(&gateway.HTTPClientConfig{
		Backend: "mollie",
		BaseURL: options["api_url"],
		DefaultHeaders: map[string]string{
			"Authorization": "Bearer " + apiKey,
		},
	})
	return nil
}

func (m *Mollie) Descriptor() gateway.Descriptor {
	return descriptor
}

func (m *Mollie) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, gateway.NoMaxAmount, false)
	if err != nil {
		return nil, err
	}

	description := req.Subject
	if description == "" {
		description = req.OrderID
	}
	body := map[string]any{
		"amount": map[string]string{
			"currency": m.currency,
			"value":    amount,
		},
		"description": description,
		"metadata": map[string]string{
			"orderid": req.OrderID,
		},
	}
	if m.returnURL != "" {
		body["redirectUrl"] = m.returnURL
	}
	if m.webhook != "" {
		body["webhookUrl"] = m.webhook
	}

	resp, err := m.client.SendJSON(ctx, &gateway.HTTPRequest{
		Method:   "POST",
		Endpoint: "payments",
		Body:     body,
	})
	if err != nil {
		return nil, err
	}
	var payment paymentResource
	if err := m.client.ParseJSONResponse(resp, &payment); err != nil {
		return nil, err
	}
	if payment.ID == "" || payment.Links.Checkout.Href == "" {
		return nil, &gateway.ProtocolError{Backend: "mollie", Method: "POST", Endpoint: "payments", Message: "no payment id or checkout URL in response"}
	}

	return &gateway.PaymentOrder{
		Handle: payment.ID,
		Kind:   gateway.KindRedirect,
		URL:    payment.Links.Checkout.Href,
	}, nil
}

func (m *Mollie) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	paymentID := payload.Get("id")
	if paymentID == "" {
		return nil, &gateway.ResponseError{Backend: "mollie", Message: "missing id field"}
	}
	return m.fetchPayment(ctx, paymentID, payload)
}

// PaymentStatus actively polls Mollie for the state of a payment.
func (m *Mollie) PaymentStatus(ctx context.Context, handle string, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	if handle == "" {
		return nil, &gateway.ResponseError{Backend: "mollie", Message: "missing payment id handle"}
	}
	return m.fetchPayment(ctx, handle, url.Values{"id": {handle}})
}

// Cancel cancels a cancellable payment.
func (m *Mollie) Cancel(ctx context.Context, amount string, bankData url.Values) (*gateway.PaymentResponse, error) {
	paymentID := bankData.Get("id")
	if paymentID == "" {
		return nil, &gateway.ResponseError{Backend: "mollie", Message: "missing id in bank data"}
	}
	resp, err := m.client.SendJSON(ctx, &gateway.HTTPRequest{
		Method:   "DELETE",
		Endpoint: "payments/" + paymentID,
	})
	if err != nil {
		return nil, err
	}
	return m.buildResponse(resp, bankData)
}

func (m *Mollie) fetchPayment(ctx context.Context, paymentID string, payload url.Values) (*gateway.PaymentResponse, error) {
	resp, err := m.client.SendJSON(ctx, &gateway.HTTPRequest{
		Method:   "GET",
		Endpoint: "payments/" + paymentID,
	})
	if err != nil {
		return nil, err
	}
	return m.buildResponse(resp, payload)
}

func (m *Mollie) buildResponse(resp *gateway.HTTPResponse, payload url.Values) (*gateway.PaymentResponse, error) {
	var payment paymentResource
	if err := m.client.ParseJSONResponse(resp, &payment); err != nil {
		return nil, err
	}

	result, ok := statuses[payment.Status]
	bankStatus := payment.Status
	if !ok {
		result = gateway.ResultError
		bankStatus = "unknown status: " + payment.Status
	}

	bankData := url.Values{}
	for key, values := range payload {
		bankData[key] = values
	}
	bankData.Set("status", payment.Status)
	bankData.Set("mode", payment.Mode)
	bankData.Set("amount", payment.Amount.Value)

	var transactionDate *time.Time
	if payment.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, payment.PaidAt); err == nil {
			transactionDate = &t
		}
	}

	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          true, // the status comes from a direct API call
		TransactionID:   payment.ID,
		OrderID:         payment.Metadata["orderid"],
		BankData:        bankData,
		BankStatus:      bankStatus,
		TransactionDate: transactionDate,
		Test:            m.test || payment.Mode == "test",
	}, nil
}
