// Package payfip implements the PayFiP web service protocol (the successor
// of TIPI for French public revenue): payment creation and status retrieval
// over SOAP, with the browser redirected to the PayFiP payment page.
package payfip

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/teyzer/paykit/gateway"
)

const (
	defaultPaymentURL = "https://www.payfip.gouv.fr/tpa/paiement.web"

	// faultUnknownOperation is raised by the bank while the payment window
	// is still open and no transaction happened yet
	faultUnknownOperation = "P5"

	defaultValidityWindowMinutes = 20
)

var results = map[string]struct {
	message string
	result  gateway.Result
}{
	"P": {"Paiement effectué (carte bancaire)", gateway.ResultPaid},
	"V": {"Paiement effectué (prélèvement)", gateway.ResultPaid},
	"A": {"Paiement abandonné", gateway.ResultCancelled},
	"R": {"Paiement refusé", gateway.ResultDenied},
	"Z": {"Paiement en cours de traitement", gateway.ResultWaiting},
}

var descriptor = gateway.Descriptor{
	Kind:    "payfip",
	Caption: "PayFiP (DGFiP web service)",
	Parameters: []gateway.ParameterSpec{
		{Key: "numcli", Caption: "Client number", Type: "string", Required: true, Pattern: `^\d{6}$`},
		{Key: "saisie", Caption: "Entry mode", Type: "string", Default: "T", Choices: []string{"T", "X", "W", "A"}},
		{Key: "urlnotif", Caption: "Server to server notification URL", Type: "url", Required: true},
		{Key: "urlredirect", Caption: "Browser return URL", Type: "url", Required: true},
		{Key: "wsdl_url", Caption: "Local WSDL override (file path)", Type: "string"},
		{Key: "payment_url", Caption: "Payment page URL", Type: "url", Default: defaultPaymentURL},
		{Key: "validity_window", Caption: "Payment validity window in minutes", Type: "number", Default: "20"},
	},
	HasPaymentStatus: true,
	Timezone:         "Europe/Paris",
}

// PayFiP implements the gateway.Gateway interface
type PayFiP struct {
	numcli         string
	saisie         string
	urlnotif       string
	urlredirect    string
	paymentURL     string
	endpoint       string
	validityWindow time.Duration
	client         *gateway.HTTPClient
}

// New creates a new PayFiP backend
func New() gateway.Gateway {
	return &PayFiP{}
}

func (p *PayFiP) Initialize(options map[string]string) error {
	wsdl, err := loadWSDL(options["wsdl_url"])
	if err != nil {
		return err
	}
	endpoint, err := resolveEndpoint(wsdl)
	if err != nil {
		return err
	}

	p.numcli = options["numcli"]
	p.saisie = options["saisie"]
	p.urlnotif = options["urlnotif"]
	p.urlredirect = options["urlredirect"]
	p.paymentURL = options["payment_url"]
	p.endpoint = endpoint

	p.validityWindow = defaultValidityWindowMinutes * time.Minute
	if raw := options["validity_window"]; raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return &gateway.ConfigurationError{Backend: "payfip", Message: "validity_window must be a positive number of minutes"}
		}
		p.validityWindow = time.Duration(minutes) * time.Minute
	}

	p.client = gateway.NewHTTPClient(&gateway.HTTPClientConfig{Backend: "payfip"})
	return nil
}

func (p *PayFiP) Descriptor() gateway.Descriptor {
	return descriptor
}

func (p *PayFiP) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, 100000, true)
	if err != nil {
		return nil, err
	}
	if req.OrderID == "" {
		return nil, &gateway.ConfigurationError{Backend: "payfip", Message: "orderid (refdet) is required"}
	}
	if req.Email == "" {
		return nil, &gateway.ConfigurationError{Backend: "payfip", Message: "email is required"}
	}

	var resp creerResponse
	fault, err := call(ctx, p.client, p.endpoint, creerPaiementSecurise{
		Arg0: creerArgs{
			Exer:        fmt.Sprintf("%d", time.Now().Year()),
			Mel:         req.Email,
			Montant:     amount,
			Numcli:      p.numcli,
			Objet:       req.Subject,
			Refdet:      req.OrderID,
			Saisie:      p.saisie,
			URLNotif:    p.urlnotif,
			URLRedirect: p.urlredirect,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if fault != nil {
		return nil, p.faultError(fault)
	}
	if resp.Return.IdOp == "" {
		return nil, &gateway.ProtocolError{Backend: "payfip", Method: "POST", Endpoint: p.endpoint, Message: "no idOp in creerPaiementSecurise response"}
	}

	return &gateway.PaymentOrder{
		Handle: resp.Return.IdOp,
		Kind:   gateway.KindRedirect,
		URL:    p.paymentURL + "?idop=" + url.QueryEscape(resp.Return.IdOp),
	}, nil
}

func (p *PayFiP) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	idop := payload.Get("idop")
	if idop == "" {
		return nil, &gateway.ResponseError{Backend: "payfip", Message: "missing idop field"}
	}
	return p.retrieveDetail(ctx, idop, payload, hints)
}

// PaymentStatus actively polls the bank for the state of an operation.
func (p *PayFiP) PaymentStatus(ctx context.Context, handle string, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	if handle == "" {
		return nil, &gateway.ResponseError{Backend: "payfip", Message: "missing idop handle"}
	}
	return p.retrieveDetail(ctx, handle, url.Values{"idop": {handle}}, hints)
}

func (p *PayFiP) retrieveDetail(ctx context.Context, idop string, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	var resp detailResponse
	request := recupererDetail{}
	request.Arg0.IdOp = idop
	fault, err := call(ctx, p.client, p.endpoint, request, &resp)
	if err != nil {
		return nil, err
	}
	if fault != nil {
		code := fault.Detail.Fonctionnelle.Code
		if code == faultUnknownOperation {
			// no unambiguous signal from the bank: still pending while the
			// payment window is open, expired beyond it
			result := gateway.ResultExpired
			bankStatus := "Opération expirée"
			if !hints.TransactionDate.IsZero() && time.Since(hints.TransactionDate) < p.validityWindow {
				result = gateway.ResultWaiting
				bankStatus = "Paiement en attente"
			}
			return &gateway.PaymentResponse{
				Result:        result,
				Signed:        true,
				TransactionID: idop,
				OrderID:       hints.OrderID,
				BankData:      payload,
				BankStatus:    bankStatus,
				Test:          p.saisie != "W",
			}, nil
		}
		return nil, p.faultError(fault)
	}

	detail := resp.Return
	result := gateway.ResultError
	bankStatus := "unknown resultrans: " + detail.Resultrans
	if entry, ok := results[detail.Resultrans]; ok {
		result = entry.result
		bankStatus = entry.message
	}

	bankData := url.Values{}
	for key, values := range payload {
		bankData[key] = values
	}
	bankData.Set("resultrans", detail.Resultrans)
	bankData.Set("refdet", detail.Refdet)
	bankData.Set("montant", detail.Montant)
	if detail.Numauto != "" {
		bankData.Set("numauto", detail.Numauto)
	}

	var transactionDate *time.Time
	if detail.Dattrans != "" && detail.Heurtrans != "" {
		if t, err := time.Parse("02012006 1504", detail.Dattrans+" "+detail.Heurtrans); err == nil {
			transactionDate = &t
		}
	}

	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          true, // the detail comes from a direct web service call
		TransactionID:   idop,
		OrderID:         detail.Refdet,
		BankData:        bankData,
		BankStatus:      bankStatus,
		TransactionDate: transactionDate,
		Test:            detail.Saisie != "W" && detail.Saisie != "",
	}, nil
}

func (p *PayFiP) faultError(fault *soapFault) error {
	code := fault.Detail.Fonctionnelle.Code
	message := fault.Detail.Fonctionnelle.Libelle
	if message == "" {
		message = fault.String
	}
	return &gateway.ProtocolError{
		Backend:  "payfip",
		Method:   "POST",
		Endpoint: p.endpoint,
		Code:     code,
		Message:  message,
	}
}
