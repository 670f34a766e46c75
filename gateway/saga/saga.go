// Package saga implements the SAGA (Futur System) ticketing payment
// protocol: a SOAP Transaction call returns the payment page URL whose query
// string carries the operation id, and the asynchronous notification reports
// the final state.
package saga

import (
	"context"
	"encoding/xml"
	"net/url"
	"time"

	"github.com/teyzer/paykit/gateway"
)

const serviceNamespace = "urn:sagainterface"

// etats maps the etat notification field
var etats = map[string]struct {
	message string
	result  gateway.Result
}{
	"paye":    {"Paiement effectué", gateway.ResultPaid},
	"refus":   {"Paiement refusé", gateway.ResultDenied},
	"abandon": {"Paiement abandonné", gateway.ResultCancelled},
}

var descriptor = gateway.Descriptor{
	Kind:    "saga",
	Caption: "SAGA (Futur System)",
	Parameters: []gateway.ParameterSpec{
		{Key: "base_url", Caption: "SAGA web service URL", Type: "url", Required: true},
		{Key: "num_service", Caption: "Service number", Type: "string", Required: true, Pattern: `^\d+$`},
		{Key: "compte", Caption: "Accounting code", Type: "string", Required: true},
		{Key: "automatic_return_url", Caption: "Server to server notification URL", Type: "url"},
		{Key: "normal_return_url", Caption: "Browser return URL", Type: "url"},
	},
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	NSEnv   string   `xml:"xmlns:soapenv,attr"`
	NSSag   string   `xml:"xmlns:sag,attr"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content any
}

type transaction struct {
	XMLName             xml.Name `xml:"sag:Transaction"`
	NumService          string   `xml:"num_service"`
	IDTiers             string   `xml:"id_tiers"`
	Compte              string   `xml:"compte"`
	LibEcriture         string   `xml:"lib_ecriture"`
	Montant             string   `xml:"montant"`
	Email               string   `xml:"email"`
	URLRetourAsynchrone string   `xml:"urlretour_asynchrone"`
	URLRetourSynchrone  string   `xml:"urlretour_synchrone"`
}

type transactionResponse struct {
	XMLName xml.Name `xml:"TransactionResponse"`
	Return  string   `xml:"return"`
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

// SAGA implements the gateway.Gateway interface
type SAGA struct {
	baseURL            string
	numService         string
	compte             string
	automaticReturnURL string
	normalReturnURL    string
	client             *gateway.HTTPClient
}

// New creates a new SAGA backend
func New() gateway.Gateway {
	return &SAGA{}
}

func (s *SAGA) Initialize(options map[string]string) error {
	s.baseURL = options["base_url"]
	s.numService = options["num_service"]
	s.compte = options["compte"]
	s.automaticReturnURL = options["automatic_return_url"]
	s.normalReturnURL = options["normal_return_url"]
	s.client = gateway.NewHTTPClient(&gateway.HTTPClientConfig{Backend: "saga", BaseURL: s.baseURL})
	return nil
}

func (s *SAGA) Descriptor() gateway.Descriptor {
	return descriptor
}

func (s *SAGA) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, gateway.NoMaxAmount, false)
	if err != nil {
		return nil, err
	}

	envelope := soapEnvelope{
		NSEnv: "http://schemas.xmlsoap.org/soap/envelope/",
		NSSag: serviceNamespace,
		Body: soapBody{Content: transaction{
			NumService:          s.numService,
			IDTiers:             req.OrderID,
			Compte:              s.compte,
			LibEcriture:         req.Subject,
			Montant:             amount,
			Email:               req.Email,
			URLRetourAsynchrone: s.automaticReturnURL,
			URLRetourSynchrone:  s.normalReturnURL,
		}},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, &gateway.ProtocolError{Backend: "saga", Method: "POST", Endpoint: s.baseURL, Message: "cannot marshal SOAP request", Err: err}
	}

	resp, err := s.client.SendXML(ctx, &gateway.HTTPRequest{
		Method:   "POST",
		Endpoint: "",
		Headers:  map[string]string{"SOAPAction": "Transaction"},
		Body:     append([]byte(xml.Header), payload...),
	})
	if err != nil && (resp == nil || len(resp.Body) == 0) {
		return nil, err
	}

	var decoded responseEnvelope
	if err := xml.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, &gateway.ProtocolError{Backend: "saga", Method: "POST", Endpoint: s.baseURL, Message: "malformed SOAP response", Err: err}
	}
	if decoded.Body.Fault != nil {
		return nil, &gateway.ProtocolError{
			Backend:  "saga",
			Method:   "POST",
			Endpoint: s.baseURL,
			Code:     decoded.Body.Fault.Code,
			Message:  decoded.Body.Fault.String,
		}
	}
	var result transactionResponse
	if err := xml.Unmarshal(decoded.Body.Inner, &result); err != nil {
		return nil, &gateway.ProtocolError{Backend: "saga", Method: "POST", Endpoint: s.baseURL, Message: "malformed SOAP body", Err: err}
	}

	// the returned payment page URL carries the operation id in its query
	paymentURL, err := url.Parse(result.Return)
	if err != nil {
		return nil, &gateway.ProtocolError{Backend: "saga", Method: "POST", Endpoint: s.baseURL, Message: "invalid payment URL in Transaction response", Err: err}
	}
	idop := paymentURL.Query().Get("idop")
	if idop == "" {
		return nil, &gateway.ProtocolError{Backend: "saga", Method: "POST", Endpoint: s.baseURL, Message: "no idop in Transaction response URL"}
	}

	return &gateway.PaymentOrder{
		Handle: idop,
		Kind:   gateway.KindRedirect,
		URL:    result.Return,
	}, nil
}

func (s *SAGA) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	idop := payload.Get("idop")
	if idop == "" {
		return nil, &gateway.ResponseError{Backend: "saga", Message: "missing idop field"}
	}

	etat := payload.Get("etat")
	result := gateway.ResultError
	bankStatus := "unknown etat: " + etat
	if entry, ok := etats[etat]; ok {
		result = entry.result
		bankStatus = entry.message
	}

	now := time.Now()
	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          false, // the notification carries no signature
		TransactionID:   idop,
		OrderID:         payload.Get("id_tiers"),
		BankData:        payload,
		BankStatus:      bankStatus,
		TransactionDate: &now,
		Test:            false,
	}, nil
}
