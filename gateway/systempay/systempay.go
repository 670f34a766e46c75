// Package systempay implements the SystemPay / PayZen V2 form POST protocol.
// All vads_ prefixed fields are signed: keys sorted alphabetically, values
// joined with '+', the shared secret appended, then SHA-1 hex or HMAC-SHA-256
// base64 depending on the configured signature algorithm.
package systempay

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/teyzer/paykit/gateway"
)

const (
	defaultServiceURL = "https://paiement.systempay.fr/vads-payment/"

	algoSHA1       = "sha1"
	algoHMACSHA256 = "hmac_sha256"
)

// transStatuses maps vads_trans_status to the normalized result.
var transStatuses = map[string]gateway.Result{
	"AUTHORISED":                        gateway.ResultAccepted,
	"AUTHORISED_TO_VALIDATE":            gateway.ResultWaiting,
	"WAITING_AUTHORISATION":             gateway.ResultWaiting,
	"WAITING_AUTHORISATION_TO_VALIDATE": gateway.ResultWaiting,
	"UNDER_VERIFICATION":                gateway.ResultWaiting,
	"CAPTURED":                          gateway.ResultPaid,
	"CAPTURE_FAILED":                    gateway.ResultError,
	"REFUSED":                           gateway.ResultDenied,
	"ABANDONED":                         gateway.ResultCancelled,
	"CANCELLED":                         gateway.ResultCancelled,
	"EXPIRED":                           gateway.ResultExpired,
}

var descriptor = gateway.Descriptor{
	Kind:    "systempay",
	Caption: "SystemPay (Banque Populaire) / PayZen",
	Parameters: []gateway.ParameterSpec{
		{Key: "service_url", Caption: "Payment page URL", Type: "url", Default: defaultServiceURL},
		{Key: "vads_site_id", Caption: "Shop identifier", Type: "string", Required: true, Pattern: `^\d{8}$`},
		{Key: "secret_test", Caption: "Test certificate", Type: "string", Required: true},
		{Key: "secret_production", Caption: "Production certificate", Type: "string"},
		{Key: "vads_ctx_mode", Caption: "Context mode", Type: "string", Default: "TEST", Choices: []string{"TEST", "PRODUCTION"}},
		{Key: "signature_algo", Caption: "Signature algorithm", Type: "string", Default: algoSHA1, Choices: []string{algoSHA1, algoHMACSHA256}},
		{Key: "vads_currency", Caption: "Currency code", Type: "string", Default: "978"},
		{Key: "vads_payment_config", Caption: "Payment configuration", Type: "string", Default: "SINGLE"},
		{Key: "normal_return_url", Caption: "Browser return URL", Type: "url"},
		{Key: "capture_day", Caption: "Deferred capture day offset", Type: "number", Scope: gateway.ScopeTransaction},
	},
	Deprecations: map[string]string{
		"vads_url_return": "normal_return_url",
	},
	Timezone: "Europe/Paris",
}

// SystemPay implements the gateway.Gateway interface
type SystemPay struct {
	serviceURL    string
	siteID        string
	secret        string
	ctxMode       string
	algo          string
	currency      string
	paymentConfig string
	returnURL     string
	captureDay    string
}

// New creates a new SystemPay backend
func New() gateway.Gateway {
	return &SystemPay{}
}

func (s *SystemPay) Initialize(options map[string]string) error {
	s.serviceURL = options["service_url"]
	s.siteID = options["vads_site_id"]
	s.ctxMode = options["vads_ctx_mode"]
	s.algo = options["signature_algo"]
	s.currency = options["vads_currency"]
	s.paymentConfig = options["vads_payment_config"]
	s.returnURL = options["normal_return_url"]
	s.captureDay = options["capture_day"]

	s.secret = options["secret_test"]
	if s.ctxMode == "PRODUCTION" {
		if options["secret_production"] == "" {
			return &gateway.ConfigurationError{Backend: "systempay", Message: "secret_production is required in PRODUCTION mode"}
		}
		s.secret = options["secret_production"]
	}
	return nil
}

func (s *SystemPay) Descriptor() gateway.Descriptor {
	return descriptor
}

func (s *SystemPay) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, gateway.NoMaxAmount, true)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	transDate := now.Format("20060102150405")
	// trans_id must be unique over the day; seconds since midnight plus a
	// counter-less microsecond suffix keeps it within the 6 digit limit
	transID := fmt.Sprintf("%06d", (now.Hour()*3600+now.Minute()*60+now.Second())*10+now.Nanosecond()/100000000)

	fields := map[string]string{
		"vads_version":        "V2",
		"vads_page_action":    "PAYMENT",
		"vads_action_mode":    "INTERACTIVE",
		"vads_payment_config": s.paymentConfig,
		"vads_site_id":        s.siteID,
		"vads_ctx_mode":       s.ctxMode,
		"vads_currency":       s.currency,
		"vads_amount":         amount,
		"vads_trans_date":     transDate,
		"vads_trans_id":       transID,
	}
	if req.OrderID != "" {
		fields["vads_order_id"] = req.OrderID
	}
	if req.Email != "" {
		fields["vads_cust_email"] = req.Email
	}
	if req.Language != "" {
		fields["vads_language"] = req.Language
	}
	if s.returnURL != "" {
		fields["vads_url_return"] = s.returnURL
	}
	captureDay := s.captureDay
	if req.CaptureDay > 0 {
		captureDay = fmt.Sprintf("%d", req.CaptureDay)
	}
	if captureDay != "" {
		fields["vads_capture_delay"] = captureDay
	}

	signature := s.Sign(fields)

	formFields := make([]gateway.FormField, 0, len(fields)+1)
	for _, key := range sortedKeys(fields) {
		formFields = append(formFields, gateway.FormField{Name: key, Value: fields[key]})
	}
	formFields = append(formFields, gateway.FormField{Name: "signature", Value: signature})

	return &gateway.PaymentOrder{
		Handle: transDate + "_" + transID,
		Kind:   gateway.KindHTMLForm,
		URL:    s.serviceURL,
		Method: "POST",
		Fields: formFields,
	}, nil
}

func (s *SystemPay) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	transID := payload.Get("vads_trans_id")
	if transID == "" {
		return nil, &gateway.ResponseError{Backend: "systempay", Message: "missing vads_trans_id"}
	}

	fields := make(map[string]string, len(payload))
	for key, values := range payload {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	signed := s.Sign(fields) == payload.Get("signature")

	status := payload.Get("vads_trans_status")
	result, ok := transStatuses[status]
	bankStatus := status
	if !ok {
		result = gateway.ResultError
		bankStatus = "unknown vads_trans_status: " + status
	}
	if result == gateway.ResultDenied {
		if authResult := payload.Get("vads_auth_result"); authResult != "" {
			entry := gateway.LookupCBCode(authResult)
			bankStatus = entry.Message
			result = entry.Result
		}
	}

	handle := transID
	if transDate := payload.Get("vads_trans_date"); transDate != "" {
		handle = transDate + "_" + transID
	}

	var transactionDate *time.Time
	if transDate := payload.Get("vads_trans_date"); transDate != "" {
		if t, err := time.Parse("20060102150405", transDate); err == nil {
			transactionDate = &t
		}
	}

	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          signed,
		TransactionID:   handle,
		OrderID:         payload.Get("vads_order_id"),
		BankData:        payload,
		BankStatus:      bankStatus,
		TransactionDate: transactionDate,
		Test:            payload.Get("vads_ctx_mode") != "PRODUCTION",
	}, nil
}

// Sign computes the signature over all vads_ fields: keys sorted
// alphabetically, values joined with '+', the secret appended.
func (s *SystemPay) Sign(fields map[string]string) string {
	var values []string
	for _, key := range sortedKeys(fields) {
		if strings.HasPrefix(key, "vads_") {
			values = append(values, fields[key])
		}
	}
	data := strings.Join(values, "+") + "+" + s.secret

	if s.algo == algoHMACSHA256 {
		mac := gateway.SignHMAC([]byte(data), []byte(s.secret), gateway.HashSHA256)
		return base64.StdEncoding.EncodeToString(mac)
	}
	sum := sha1.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

func sortedKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
