// Package tipi implements the legacy TIPI (Titres Payables par Internet)
// redirect protocol of the French public finance directorate. The payment is
// a plain unsigned redirect URL; the outcome comes back in the resultrans
// query field.
package tipi

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/teyzer/paykit/gateway"
)

const defaultServiceURL = "https://www.tipi.budget.gouv.fr/tpa/paiement.web"

// resultrans values documented by the TIPI interface contract
var results = map[string]struct {
	message string
	result  gateway.Result
}{
	"P": {"Paiement effectué (carte bancaire)", gateway.ResultPaid},
	"V": {"Paiement effectué (prélèvement)", gateway.ResultPaid},
	"A": {"Paiement abandonné", gateway.ResultCancelled},
	"R": {"Paiement refusé", gateway.ResultDenied},
}

var descriptor = gateway.Descriptor{
	Kind:    "tipi",
	Caption: "TIPI (Titres Payables par Internet)",
	Parameters: []gateway.ParameterSpec{
		{Key: "service_url", Caption: "TIPI payment URL", Type: "url", Default: defaultServiceURL},
		{Key: "numcli", Caption: "Client number", Type: "string", Required: true, Pattern: `^\d{6}$`},
		{Key: "saisie", Caption: "Entry mode", Type: "string", Default: "T", Choices: []string{"T", "X", "W", "M", "A"}},
		{Key: "normal_return_url", Caption: "Browser return URL", Type: "url"},
	},
	HasFreeTransactionID: true,
}

// TIPI implements the gateway.Gateway interface
type TIPI struct {
	serviceURL string
	numcli     string
	saisie     string
	returnURL  string
}

// New creates a new TIPI backend
func New() gateway.Gateway {
	return &TIPI{}
}

func (t *TIPI) Initialize(options map[string]string) error {
	t.serviceURL = options["service_url"]
	t.numcli = options["numcli"]
	t.saisie = options["saisie"]
	t.returnURL = options["normal_return_url"]
	return nil
}

func (t *TIPI) Descriptor() gateway.Descriptor {
	return descriptor
}

func (t *TIPI) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, 100000, true)
	if err != nil {
		return nil, err
	}
	if req.OrderID == "" {
		return nil, &gateway.ConfigurationError{Backend: "tipi", Message: "orderid (refdet) is required"}
	}
	if req.Email == "" {
		return nil, &gateway.ConfigurationError{Backend: "tipi", Message: "email is required"}
	}

	query := url.Values{}
	query.Set("numcli", t.numcli)
	query.Set("exer", fmt.Sprintf("%d", time.Now().Year()))
	query.Set("refdet", req.OrderID)
	query.Set("montant", amount)
	query.Set("mel", req.Email)
	query.Set("saisie", t.saisie)
	if req.Subject != "" {
		query.Set("objet", req.Subject)
	}
	if t.returnURL != "" {
		query.Set("urlcl", t.returnURL)
	}

	return &gateway.PaymentOrder{
		Handle: req.OrderID,
		Kind:   gateway.KindRedirect,
		URL:    t.serviceURL + "?" + query.Encode(),
	}, nil
}

func (t *TIPI) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	refdet := payload.Get("refdet")
	if refdet == "" {
		return nil, &gateway.ResponseError{Backend: "tipi", Message: "missing refdet field"}
	}

	resultrans := payload.Get("resultrans")
	result := gateway.ResultError
	bankStatus := "unknown resultrans: " + resultrans
	if entry, ok := results[resultrans]; ok {
		result = entry.result
		bankStatus = entry.message
	}

	now := time.Now()
	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          false, // TIPI redirects carry no signature
		TransactionID:   refdet,
		OrderID:         refdet,
		BankData:        payload,
		BankStatus:      bankStatus,
		TransactionDate: &now,
		Test:            payload.Get("saisie") == "T" || t.saisie == "T",
	}, nil
}
