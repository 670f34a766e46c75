// Package stripe implements a hosted Checkout Session backend through the
// official Stripe SDK: payment creation returns the hosted page URL, status
// retrieval and expiration go through the session resource.
package stripe

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/teyzer/paykit/gateway"
)

var descriptor = gateway.Descriptor{
	Kind:    "stripe",
	Caption: "Stripe (Checkout Session)",
	Parameters: []gateway.ParameterSpec{
		{Key: "secret_key", Caption: "Secret API key", Type: "string", Required: true, Pattern: `^(sk|rk)_\w+$`},
		{Key: "currency", Caption: "Currency", Type: "string", Default: "eur"},
		{Key: "normal_return_url", Caption: "Browser return URL", Type: "url", Required: true},
		{Key: "cancel_return_url", Caption: "Browser cancel URL", Type: "url"},
	},
	HasPaymentStatus: true,
	CanCancel:        true,
}

// Stripe implements the gateway.Gateway interface
type Stripe struct {
	currency  string
	returnURL string
	cancelURL string
	test      bool
}

// New creates a new Stripe backend
func New() gateway.Gateway {
	return &Stripe{}
}

func (s *Stripe) Initialize(options map[string]string) error {
	stripeapi.Key = options["secret_key"]
	s.currency = options["currency"]
	s.returnURL = options["normal_return_url"]
	s.cancelURL = options["cancel_return_url"]
	if s.cancelURL == "" {
		s.cancelURL = s.returnURL
	}
	s.test = strings.HasPrefix(options["secret_key"], "sk_test_")
	return nil
}

func (s *Stripe) Descriptor() gateway.Descriptor {
	return descriptor
}

func (s *Stripe) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, gateway.NoMaxAmount, true)
	if err != nil {
		return nil, err
	}
	cents, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return nil, &gateway.AmountError{Value: req.Amount, Message: "not a number"}
	}

	name := req.Subject
	if name == "" {
		name = "Payment " + req.OrderID
	}
	params := &stripeapi.CheckoutSessionParams{
		Params:            stripeapi.Params{Context: ctx},
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(s.returnURL),
		CancelURL:         stripeapi.String(s.cancelURL),
		ClientReferenceID: stripeapi.String(req.OrderID),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{{
			Quantity: stripeapi.Int64(1),
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripeapi.String(s.currency),
				UnitAmount: stripeapi.Int64(cents),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(name),
				},
			},
		}},
	}
	if req.Email != "" {
		params.CustomerEmail = stripeapi.String(req.Email)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, wrapError("POST", "checkout/sessions", err)
	}

	return &gateway.PaymentOrder{
		Handle: sess.ID,
		Kind:   gateway.KindRedirect,
		URL:    sess.URL,
	}, nil
}

func (s *Stripe) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	sessionID := payload.Get("session_id")
	if sessionID == "" {
		sessionID = payload.Get("id")
	}
	if sessionID == "" {
		return nil, &gateway.ResponseError{Backend: "stripe", Message: "missing session_id field"}
	}
	return s.fetchSession(ctx, sessionID, payload)
}

// PaymentStatus actively polls the checkout session.
func (s *Stripe) PaymentStatus(ctx context.Context, handle string, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	if handle == "" {
		return nil, &gateway.ResponseError{Backend: "stripe", Message: "missing session id handle"}
	}
	return s.fetchSession(ctx, handle, url.Values{"session_id": {handle}})
}

// Cancel expires an open checkout session.
func (s *Stripe) Cancel(ctx context.Context, amount string, bankData url.Values) (*gateway.PaymentResponse, error) {
	sessionID := bankData.Get("session_id")
	if sessionID == "" {
		return nil, &gateway.ResponseError{Backend: "stripe", Message: "missing session_id in bank data"}
	}
	sess, err := session.Expire(sessionID, &stripeapi.CheckoutSessionExpireParams{
		Params: stripeapi.Params{Context: ctx},
	})
	if err != nil {
		return nil, wrapError("POST", "checkout/sessions/expire", err)
	}
	return s.buildResponse(sess, bankData), nil
}

func (s *Stripe) fetchSession(ctx context.Context, sessionID string, payload url.Values) (*gateway.PaymentResponse, error) {
	sess, err := session.Get(sessionID, &stripeapi.CheckoutSessionParams{
		Params: stripeapi.Params{Context: ctx},
	})
	if err != nil {
		return nil, wrapError("GET", "checkout/sessions", err)
	}
	return s.buildResponse(sess, payload), nil
}

func (s *Stripe) buildResponse(sess *stripeapi.CheckoutSession, payload url.Values) *gateway.PaymentResponse {
	result := gateway.ResultError
	bankStatus := string(sess.Status)
	switch sess.Status {
	case stripeapi.CheckoutSessionStatusOpen:
		result = gateway.ResultWaiting
	case stripeapi.CheckoutSessionStatusExpired:
		result = gateway.ResultExpired
	case stripeapi.CheckoutSessionStatusComplete:
		switch sess.PaymentStatus {
		case stripeapi.CheckoutSessionPaymentStatusPaid,
			stripeapi.CheckoutSessionPaymentStatusNoPaymentRequired:
			result = gateway.ResultPaid
		case stripeapi.CheckoutSessionPaymentStatusUnpaid:
			result = gateway.ResultAccepted
		}
		bankStatus = string(sess.Status) + "/" + string(sess.PaymentStatus)
	default:
		bankStatus = "unknown status: " + string(sess.Status)
	}

	bankData := url.Values{}
	for key, values := range payload {
		bankData[key] = values
	}
	bankData.Set("status", string(sess.Status))
	bankData.Set("payment_status", string(sess.PaymentStatus))

	now := time.Now()
	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          true, // the status comes from a direct API call
		TransactionID:   sess.ID,
		OrderID:         sess.ClientReferenceID,
		BankData:        bankData,
		BankStatus:      bankStatus,
		TransactionDate: &now,
		Test:            !sess.Livemode,
	}
}

func wrapError(method, endpoint string, err error) error {
	var stripeErr *stripeapi.Error
	if e, ok := err.(*stripeapi.Error); ok {
		stripeErr = e
	}
	perr := &gateway.ProtocolError{Backend: "stripe", Method: method, Endpoint: endpoint, Err: err}
	if stripeErr != nil {
		perr.Code = string(stripeErr.Code)
		perr.Message = stripeErr.Msg
	}
	return perr
}
