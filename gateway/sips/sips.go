// Package sips implements the Worldline SIPS 2 paypage POST protocol. The
// whole payload travels in a single Data field of pipe separated key=value
// pairs, sealed with a SHA-256 digest or an HMAC of the raw Data string.
package sips

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/teyzer/paykit/gateway"
)

const (
	testURL          = "https://payment-webinit.simu.sips-services.com/paymentInit"
	productionURL    = "https://payment-webinit.sips-services.com/paymentInit"
	interfaceVersion = "HP_2.20"

	sealSHA256     = "SHA-256"
	sealHMACSHA256 = "HMAC-SHA-256"
)

// responseCodes maps the SIPS responseCode field. Codes shared with the CB
// network keep the same semantics.
var responseCodes = map[string]struct {
	message string
	result  gateway.Result
}{
	"00": {"Transaction acceptée", gateway.ResultPaid},
	"02": {"Demande d'autorisation par téléphone à la banque", gateway.ResultDenied},
	"03": {"Contrat commerçant invalide", gateway.ResultError},
	"05": {"Autorisation refusée", gateway.ResultDenied},
	"11": {"Utilisé dans le cas d'un contrôle différé", gateway.ResultError},
	"12": {"Transaction invalide", gateway.ResultDenied},
	"14": {"Coordonnées du moyen de paiement invalides", gateway.ResultDenied},
	"17": {"Annulation de l'acheteur", gateway.ResultCancelled},
	"24": {"Opération non autorisée", gateway.ResultDenied},
	"25": {"Transaction inconnue", gateway.ResultError},
	"30": {"Erreur de format", gateway.ResultError},
	"34": {"Suspicion de fraude", gateway.ResultDenied},
	"40": {"Fonction non supportée", gateway.ResultError},
	"51": {"Montant trop élevé", gateway.ResultDenied},
	"54": {"Date de validité du moyen de paiement dépassée", gateway.ResultDenied},
	"60": {"Transaction en attente", gateway.ResultWaiting},
	"63": {"Règles de sécurité non respectées", gateway.ResultDenied},
	"75": {"Nombre de tentatives de saisie dépassé", gateway.ResultDenied},
	"90": {"Service temporairement indisponible", gateway.ResultError},
	"94": {"Transaction dupliquée", gateway.ResultError},
	"97": {"Session expirée, transaction refusée", gateway.ResultExpired},
	"99": {"Problème temporaire du serveur de paiement", gateway.ResultError},
}

var descriptor = gateway.Descriptor{
	Kind:    "sips",
	Caption: "SIPS (Worldline / Atos)",
	Parameters: []gateway.ParameterSpec{
		{Key: "platform", Caption: "Platform", Type: "string", Default: "test", Choices: []string{"test", "prod"}},
		{Key: "merchant_id", Caption: "Merchant identifier", Type: "string", Required: true, Pattern: `^\d{15}$`},
		{Key: "secret_key", Caption: "Secret key", Type: "string", Required: true},
		{Key: "key_version", Caption: "Secret key version", Type: "number", Default: "1"},
		{Key: "seal_algorithm", Caption: "Seal algorithm", Type: "string", Default: sealSHA256, Choices: []string{sealSHA256, sealHMACSHA256}},
		{Key: "currency_code", Caption: "Currency code", Type: "string", Default: "978"},
		{Key: "normal_return_url", Caption: "Browser return URL", Type: "url"},
		{Key: "automatic_response_url", Caption: "Server to server notification URL", Type: "url"},
		{Key: "capture_day", Caption: "Deferred capture day offset", Type: "number", Scope: gateway.ScopeTransaction},
	},
	HasFreeTransactionID: true,
	Timezone:             "Europe/Paris",
}

// SIPS implements the gateway.Gateway interface
type SIPS struct {
	merchantID           string
	secretKey            string
	keyVersion           string
	sealAlgorithm        string
	currencyCode         string
	normalReturnURL      string
	automaticResponseURL string
	captureDay           string
	production           bool
}

// New creates a new SIPS backend
func New() gateway.Gateway {
	return &SIPS{}
}

func (s *SIPS) Initialize(options map[string]string) error {
	s.merchantID = options["merchant_id"]
	s.secretKey = options["secret_key"]
	s.keyVersion = options["key_version"]
	s.sealAlgorithm = options["seal_algorithm"]
	s.currencyCode = options["currency_code"]
	s.normalReturnURL = options["normal_return_url"]
	s.automaticResponseURL = options["automatic_response_url"]
	s.captureDay = options["capture_day"]
	s.production = options["platform"] == "prod"
	return nil
}

func (s *SIPS) Descriptor() gateway.Descriptor {
	return descriptor
}

func (s *SIPS) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, gateway.NoMaxAmount, true)
	if err != nil {
		return nil, err
	}

	handle := req.TransactionID
	if handle == "" {
		handle = fmt.Sprintf("tr%s%03d", time.Now().Format("20060102150405"), rand.Intn(1000))
	}

	data := map[string]string{
		"amount":               amount,
		"currencyCode":         s.currencyCode,
		"merchantId":           s.merchantID,
		"keyVersion":           s.keyVersion,
		"orderChannel":         "INTERNET",
		"transactionReference": handle,
	}
	if s.normalReturnURL != "" {
		data["normalReturnUrl"] = s.normalReturnURL
	}
	if s.automaticResponseURL != "" {
		data["automaticResponseUrl"] = s.automaticResponseURL
	}
	if req.OrderID != "" {
		data["orderId"] = req.OrderID
	}
	if req.Email != "" {
		data["customerEmail"] = req.Email
	}
	captureDay := s.captureDay
	if req.CaptureDay > 0 {
		captureDay = fmt.Sprintf("%d", req.CaptureDay)
	}
	if captureDay != "" && captureDay != "0" {
		data["captureDay"] = captureDay
		data["captureMode"] = "VALIDATION"
	}

	encoded := encodeData(data)
	serviceURL := testURL
	if s.production {
		serviceURL = productionURL
	}
	return &gateway.PaymentOrder{
		Handle: handle,
		Kind:   gateway.KindHTMLForm,
		URL:    serviceURL,
		Method: "POST",
		Fields: []gateway.FormField{
			{Name: "Data", Value: encoded},
			{Name: "InterfaceVersion", Value: interfaceVersion},
			{Name: "Seal", Value: s.Seal(encoded)},
		},
	}, nil
}

func (s *SIPS) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	encoded := payload.Get("Data")
	if encoded == "" {
		return nil, &gateway.ResponseError{Backend: "sips", Message: "missing Data field"}
	}
	data := decodeData(encoded)

	reference := data["transactionReference"]
	if reference == "" {
		return nil, &gateway.ResponseError{Backend: "sips", Message: "missing transactionReference in Data"}
	}

	signed := s.Seal(encoded) == payload.Get("Seal")

	code := data["responseCode"]
	result := gateway.ResultError
	bankStatus := "unknown responseCode: " + code
	if entry, ok := responseCodes[code]; ok {
		result = entry.result
		bankStatus = entry.message
	}

	// keep the decoded pairs alongside the raw payload for audit
	bankData := url.Values{}
	for key, values := range payload {
		bankData[key] = values
	}
	for key, value := range data {
		if bankData.Get(key) == "" {
			bankData.Set(key, value)
		}
	}

	var transactionDate *time.Time
	if raw := data["transactionDateTime"]; raw != "" {
		if t, err := time.Parse("2006-01-02T15:04:05-07:00", raw); err == nil {
			transactionDate = &t
		}
	}

	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          signed,
		TransactionID:   reference,
		OrderID:         data["orderId"],
		BankData:        bankData,
		BankStatus:      bankStatus,
		TransactionDate: transactionDate,
		Test:            !s.production,
	}, nil
}

// Seal computes the seal of the raw Data string.
func (s *SIPS) Seal(data string) string {
	if s.sealAlgorithm == sealHMACSHA256 {
		return hex.EncodeToString(gateway.SignHMAC([]byte(data), []byte(s.secretKey), gateway.HashSHA256))
	}
	sum := sha256.Sum256([]byte(data + s.secretKey))
	return hex.EncodeToString(sum[:])
}

func encodeData(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, key := range keys {
		pairs[i] = key + "=" + data[key]
	}
	return strings.Join(pairs, "|")
}

func decodeData(encoded string) map[string]string {
	data := make(map[string]string)
	for _, pair := range strings.Split(encoded, "|") {
		if key, value, found := strings.Cut(pair, "="); found {
			data[key] = value
		}
	}
	return data
}
