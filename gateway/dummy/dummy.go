// Package dummy implements a test backend that never talks to a real
// processor. The redirect URL points at a configurable fake service and the
// notification is whatever query string the test harness sends back.
package dummy

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/teyzer/paykit/gateway"
)

const defaultServiceURL = "https://dummy-payment.example.com/"

var descriptor = gateway.Descriptor{
	Kind:    "dummy",
	Caption: "Dummy payment backend (for testing only)",
	Parameters: []gateway.ParameterSpec{
		{Key: "service_url", Caption: "Fake payment service URL", Type: "url", Default: defaultServiceURL},
		{Key: "origin", Caption: "Origin label shown on the fake service", Type: "string", Default: "paykit"},
		{Key: "normal_return_url", Caption: "Browser return URL", Type: "url"},
		{Key: "direct_notification_url", Caption: "Server to server notification URL", Type: "url"},
	},
	Deprecations: map[string]string{
		"dummy_service_url": "service_url",
	},
	HasFreeTransactionID: true,
}

// Dummy implements the gateway.Gateway interface
type Dummy struct {
	serviceURL            string
	origin                string
	normalReturnURL       string
	directNotificationURL string
}

// New creates a new dummy backend
func New() gateway.Gateway {
	return &Dummy{}
}

func (d *Dummy) Initialize(options map[string]string) error {
	d.serviceURL = options["service_url"]
	d.origin = options["origin"]
	d.normalReturnURL = options["normal_return_url"]
	d.directNotificationURL = options["direct_notification_url"]
	return nil
}

func (d *Dummy) Descriptor() gateway.Descriptor {
	return descriptor
}

func (d *Dummy) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, gateway.NoMaxAmount, false)
	if err != nil {
		return nil, err
	}

	handle := req.TransactionID
	if handle == "" {
		handle = uuid.New().String()
	}

	query := url.Values{}
	query.Set("transaction_id", handle)
	query.Set("amount", amount)
	query.Set("origin", d.origin)
	if req.Email != "" {
		query.Set("email", req.Email)
	}
	if d.normalReturnURL != "" {
		query.Set("return_url", d.normalReturnURL)
	}
	if d.directNotificationURL != "" {
		query.Set("direct_notification_url", d.directNotificationURL)
	}

	return &gateway.PaymentOrder{
		Handle: handle,
		Kind:   gateway.KindRedirect,
		URL:    d.serviceURL + "?" + query.Encode(),
	}, nil
}

func (d *Dummy) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	transactionID := payload.Get("transaction_id")
	if transactionID == "" {
		return nil, &gateway.ResponseError{Backend: "dummy", Message: "missing transaction_id"}
	}

	result := gateway.ResultDenied
	switch {
	case payload.Get("ok") == "1":
		result = gateway.ResultPaid
	case payload.Get("waiting") == "1":
		result = gateway.ResultWaiting
	case payload.Get("cancelled") == "1":
		result = gateway.ResultCancelled
	case payload.Get("error") == "1":
		result = gateway.ResultError
	}

	now := time.Now()
	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          true,
		TransactionID:   transactionID,
		OrderID:         transactionID,
		BankData:        payload,
		BankStatus:      payload.Get("reason"),
		TransactionDate: &now,
		Test:            true,
	}, nil
}
