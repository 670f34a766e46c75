// Package paybox implements the Paybox System form POST protocol: ordered
// PBX_* fields signed with an HMAC over the raw field string, a redirected
// or server to server notification carrying an RSA signed query, and the
// Paybox Direct API for manual capture and cancellation.
package paybox

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teyzer/paykit/gateway"
)

const (
	testURL       = "https://preprod-tpeweb.paybox.com/cgi/MYchoix_pagepaiement.cgi"
	productionURL = "https://tpeweb.paybox.com/cgi/MYchoix_pagepaiement.cgi"

	directTestURL       = "https://preprod-ppps.paybox.com/PPPS.php"
	directProductionURL = "https://ppps.paybox.com/PPPS.php"

	// Paybox Direct operation types
	directOperationCapture = "00002"
	directOperationCancel  = "00005"
	directVersion          = "00103"

	// the notification field list requested through PBX_RETOUR; the bank
	// returns fields in this exact order, which is also the RSA signed data
	retourSpec = "montant:M;reference:R;code_autorisation:A;erreur:E;numappel:T;numtrans:S;signature:K"

	currencyEuro = "978"
)

// Default Paybox notification public key. Override with the
// payment_verify_key option when Paybox rotates it.
const defaultPublicKey = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAs9e7uZeVtvO3/CbAh0ct
Ce0qPTOp06sdthE1XugMSi7wuUnQnF6FKv0UmVAOhqjHOgS2AMb+5OpdLdsIDpkU
dcqPNZBt8lcntqhzgtPj+olcZetO8gM4uvnBcsaCfKiFyQMNMr5ZRGq6rL3U1cQc
yaU6YYB7MYBZG3SHfy+CBNAkpaNP9gVGXtfLMLXIVTgkFGHjSa0zBWJw7ND49sI9
HwI/1LwXcNLE86zc4s1ANdG8EOGmRPijGJsidL2l/MjkMYv05o5/AtzSRRPKyMb3
+iYJ3YV2Ow/OjKf4IT4g/ugX/iAgVtrqmPBiACGkOoLTeoyalMqfWhzl/cS0OcnL
OQIDAQAB
-----END PUBLIC KEY-----`

// payboxErrorCodes maps Paybox platform errors outside the CB range.
var payboxErrorCodes = map[string]struct {
	message string
	result  gateway.Result
}{
	"00000": {"Opération réussie", gateway.ResultPaid},
	"00001": {"La connexion au centre d'autorisation a échoué", gateway.ResultError},
	"00003": {"Erreur Paybox", gateway.ResultError},
	"00004": {"Numéro de porteur ou cryptogramme visuel invalide", gateway.ResultDenied},
	"00006": {"Accès refusé ou site/rang/identifiant incorrect", gateway.ResultError},
	"00008": {"Date de fin de validité incorrecte", gateway.ResultDenied},
	"00009": {"Erreur de création d'un abonnement", gateway.ResultError},
	"00010": {"Devise inconnue", gateway.ResultError},
	"00011": {"Montant incorrect", gateway.ResultError},
	"00015": {"Paiement déjà effectué", gateway.ResultError},
	"00016": {"Abonné déjà existant", gateway.ResultError},
	"00021": {"Carte non autorisée", gateway.ResultDenied},
	"00029": {"Carte non conforme", gateway.ResultDenied},
	"00030": {"Temps d'attente supérieur au délai maximal", gateway.ResultExpired},
	"00033": {"Code pays de l'adresse IP du navigateur non autorisé", gateway.ResultDenied},
	"00040": {"Opération sans authentification 3D-Secure, bloquée", gateway.ResultDenied},
}

var descriptor = gateway.Descriptor{
	Kind:    "paybox",
	Caption: "Paybox",
	Parameters: []gateway.ParameterSpec{
		{Key: "platform", Caption: "Platform", Type: "string", Default: "test", Choices: []string{"test", "prod"}},
		{Key: "site", Caption: "Site number", Type: "string", Required: true, Pattern: `^\d{7}$`},
		{Key: "rang", Caption: "Rank number", Type: "string", Required: true, Pattern: `^\d{2,3}$`},
		{Key: "identifiant", Caption: "Paybox identifier", Type: "string", Required: true, Pattern: `^\d{1,9}$`},
		{Key: "shared_secret", Caption: "HMAC shared secret (hexadecimal)", Type: "string", Required: true},
		{Key: "cle", Caption: "Paybox Direct password", Type: "string"},
		{Key: "signature_algo", Caption: "HMAC hash algorithm", Type: "string", Default: "sha512", Choices: []string{"sha1", "sha256", "sha512"}},
		{Key: "devise", Caption: "Currency code", Type: "string", Default: currencyEuro},
		{Key: "automatic_return_url", Caption: "Server to server notification URL", Type: "url"},
		{Key: "normal_return_url", Caption: "Browser return URL", Type: "url"},
		{Key: "payment_verify_key", Caption: "Notification RSA public key (PEM)", Type: "string"},
		{Key: "capture_day", Caption: "Deferred capture day offset", Type: "number", Scope: gateway.ScopeTransaction},
	},
	Deprecations: map[string]string{
		"callback": "automatic_return_url",
	},
	HasFreeTransactionID: true,
	CanValidate:          true,
	CanCancel:            true,
	Timezone:             "Europe/Paris",
}

// Paybox implements the gateway.Gateway interface for Paybox System
type Paybox struct {
	site               string
	rang               string
	identifiant        string
	secret             []byte
	cle                string
	algo               gateway.HashAlgo
	devise             string
	automaticReturnURL string
	normalReturnURL    string
	captureDay         int
	production         bool
	verifyKeyPEM       string
	client             *gateway.HTTPClient
}

// New creates a new Paybox backend
func New() gateway.Gateway {
	return &Paybox{}
}

func (p *Paybox) Initialize(options map[string]string) error {
	secret, err := hex.DecodeString(options["shared_secret"])
	if err != nil {
		return &gateway.ConfigurationError{Backend: "paybox", Message: "shared_secret must be hexadecimal"}
	}

	p.site = options["site"]
	p.rang = options["rang"]
	p.identifiant = options["identifiant"]
	p.secret = secret
	p.cle = options["cle"]
	p.algo = gateway.HashAlgo(options["signature_algo"])
	p.devise = options["devise"]
	p.automaticReturnURL = options["automatic_return_url"]
	p.normalReturnURL = options["normal_return_url"]
	if v := options["capture_day"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &gateway.ConfigurationError{Backend: "paybox", Message: "capture_day must be a number"}
		}
		p.captureDay = n
	}
	p.production = options["platform"] == "prod"
	p.verifyKeyPEM = options["payment_verify_key"]
	if p.verifyKeyPEM == "" {
		p.verifyKeyPEM = defaultPublicKey
	}

	directURL := directTestURL
	if p.production {
		directURL = directProductionURL
	}
	p.client = gateway.NewHTTPClient(&gateway.HTTPClientConfig{
		Backend: "paybox",
		BaseURL: directURL,
	})
	return nil
}

func (p *Paybox) Descriptor() gateway.Descriptor {
	return descriptor
}

// newHandle builds a transaction id from the current time plus random
// digits, unique enough for reconciliation without caller state.
func newHandle() string {
	return fmt.Sprintf("%s%04d", time.Now().Format("20060102150405"), rand.Intn(10000))
}

func (p *Paybox) Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentOrder, error) {
	amount, err := gateway.CleanAmount(req.Amount, 0, gateway.NoMaxAmount, true)
	if err != nil {
		return nil, err
	}
	if req.Email == "" {
		return nil, &gateway.ConfigurationError{Backend: "paybox", Message: "email is required"}
	}

	handle := req.TransactionID
	if handle == "" {
		handle = newHandle()
	}

	hashName := strings.ToUpper(string(p.algo))
	fields := []gateway.FormField{
		{Name: "PBX_SITE", Value: p.site},
		{Name: "PBX_RANG", Value: p.rang},
		{Name: "PBX_IDENTIFIANT", Value: p.identifiant},
		{Name: "PBX_TOTAL", Value: amount},
		{Name: "PBX_DEVISE", Value: p.devise},
		{Name: "PBX_CMD", Value: handle},
		{Name: "PBX_PORTEUR", Value: req.Email},
		{Name: "PBX_RETOUR", Value: retourSpec},
		{Name: "PBX_HASH", Value: hashName},
		{Name: "PBX_TIME", Value: time.Now().Format(time.RFC3339)},
	}
	captureDay := req.CaptureDay
	if captureDay == 0 {
		captureDay = p.captureDay
	}
	if captureDay > 0 {
		fields = append(fields, gateway.FormField{Name: "PBX_DIFF", Value: fmt.Sprintf("%02d", captureDay)})
	}
	if p.automaticReturnURL != "" {
		fields = append(fields, gateway.FormField{Name: "PBX_REPONDRE_A", Value: p.automaticReturnURL})
	}
	if p.normalReturnURL != "" {
		fields = append(fields,
			gateway.FormField{Name: "PBX_EFFECTUE", Value: p.normalReturnURL},
			gateway.FormField{Name: "PBX_REFUSE", Value: p.normalReturnURL},
			gateway.FormField{Name: "PBX_ANNULE", Value: p.normalReturnURL},
		)
	}

	fields = append(fields, gateway.FormField{
		Name:  "PBX_HMAC",
		Value: strings.ToUpper(hex.EncodeToString(gateway.SignHMAC([]byte(signedString(fields)), p.secret, p.algo))),
	})

	serviceURL := testURL
	if p.production {
		serviceURL = productionURL
	}
	return &gateway.PaymentOrder{
		Handle: handle,
		Kind:   gateway.KindHTMLForm,
		URL:    serviceURL,
		Method: "POST",
		Fields: fields,
	}, nil
}

// signedString joins the ordered fields as key=value pairs with '&', the
// exact byte string Paybox computes the HMAC over.
func signedString(fields []gateway.FormField) string {
	pairs := make([]string, len(fields))
	for i, f := range fields {
		pairs[i] = f.Name + "=" + f.Value
	}
	return strings.Join(pairs, "&")
}

func (p *Paybox) HandleResponse(ctx context.Context, payload url.Values, hints gateway.ResponseHints) (*gateway.PaymentResponse, error) {
	reference := payload.Get("reference")
	if reference == "" {
		return nil, &gateway.ResponseError{Backend: "paybox", Message: "missing reference field"}
	}
	erreur := payload.Get("erreur")
	if erreur == "" {
		return nil, &gateway.ResponseError{Backend: "paybox", Message: "missing erreur field"}
	}

	result, bankStatus := translateError(erreur)

	now := time.Now()
	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          p.verifySignature(payload),
		TransactionID:   reference,
		OrderID:         reference,
		BankData:        payload,
		BankStatus:      bankStatus,
		TransactionDate: &now,
		Test:            !p.production,
	}, nil
}

// translateError maps the Paybox erreur field to a result. Codes in the
// 001xx range carry a CB authorization code in their last two digits and are
// resolved through the shared CB table.
func translateError(erreur string) (gateway.Result, string) {
	if strings.HasPrefix(erreur, "001") && len(erreur) == 5 {
		entry := gateway.LookupCBCode(erreur[3:])
		return entry.Result, entry.Message
	}
	if entry, ok := payboxErrorCodes[erreur]; ok {
		return entry.result, entry.message
	}
	return gateway.ResultError, "Code erreur Paybox inconnu: " + erreur
}

// verifySignature checks the RSA/SHA-1 signature Paybox appends to the
// notification. The signed data is the returned fields in PBX_RETOUR order,
// signature excluded. A mismatch is reported, never raised.
func (p *Paybox) verifySignature(payload url.Values) bool {
	sig := payload.Get("signature")
	if sig == "" {
		return false
	}
	rawSig, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	pub, err := gateway.ParseRSAPublicKey([]byte(p.verifyKeyPEM))
	if err != nil {
		return false
	}

	var pairs []string
	for _, part := range strings.Split(retourSpec, ";") {
		name := strings.SplitN(part, ":", 2)[0]
		if name == "signature" {
			continue
		}
		if values, ok := payload[name]; ok && len(values) > 0 {
			pairs = append(pairs, name+"="+values[0])
		}
	}
	return gateway.VerifyRSASHA1([]byte(strings.Join(pairs, "&")), rawSig, pub)
}

// Validate triggers manual capture through Paybox Direct (operation 00002).
func (p *Paybox) Validate(ctx context.Context, amount string, bankData url.Values) (*gateway.PaymentResponse, error) {
	return p.direct(ctx, directOperationCapture, amount, bankData)
}

// Cancel reverses an authorization through Paybox Direct (operation 00005).
func (p *Paybox) Cancel(ctx context.Context, amount string, bankData url.Values) (*gateway.PaymentResponse, error) {
	return p.direct(ctx, directOperationCancel, amount, bankData)
}

func (p *Paybox) direct(ctx context.Context, operation, amount string, bankData url.Values) (*gateway.PaymentResponse, error) {
	if p.cle == "" {
		return nil, &gateway.ConfigurationError{Backend: "paybox", Message: "the cle option is required for Paybox Direct operations"}
	}
	numappel := bankData.Get("numappel")
	numtrans := bankData.Get("numtrans")
	if numappel == "" || numtrans == "" {
		return nil, &gateway.ResponseError{Backend: "paybox", Message: "missing numappel/numtrans in bank data"}
	}
	cents, err := gateway.CleanAmount(amount, 0, gateway.NoMaxAmount, true)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("VERSION", directVersion)
	form.Set("TYPE", operation)
	form.Set("SITE", p.site)
	form.Set("RANG", p.rang)
	form.Set("CLE", p.cle)
	form.Set("NUMQUESTION", fmt.Sprintf("%010d", time.Now().Unix()%10000000000))
	form.Set("MONTANT", cents)
	form.Set("DEVISE", p.devise)
	form.Set("NUMTRANS", numtrans)
	form.Set("NUMAPPEL", numappel)
	form.Set("REFERENCE", bankData.Get("reference"))
	form.Set("DATEQ", time.Now().Format("02012006"))
	form.Set("ACTIVITE", "024")

	resp, err := p.client.SendForm(ctx, &gateway.HTTPRequest{
		Method:   "POST",
		Endpoint: "",
		FormData: form,
	})
	if err != nil {
		return nil, err
	}

	answer, err := url.ParseQuery(strings.TrimSpace(string(resp.Body)))
	if err != nil {
		return nil, &gateway.ProtocolError{Backend: "paybox", Method: "POST", Message: "malformed Paybox Direct answer", Err: err}
	}
	code := answer.Get("CODEREPONSE")
	if code != "00000" {
		return nil, &gateway.ProtocolError{
			Backend: "paybox",
			Method:  "POST",
			Code:    code,
			Message: answer.Get("COMMENTAIRE"),
		}
	}

	result := gateway.ResultPaid
	if operation == directOperationCancel {
		result = gateway.ResultCancelled
	}
	now := time.Now()
	return &gateway.PaymentResponse{
		Result:          result,
		Signed:          true,
		TransactionID:   bankData.Get("reference"),
		OrderID:         bankData.Get("reference"),
		BankData:        answer,
		BankStatus:      answer.Get("COMMENTAIRE"),
		TransactionDate: &now,
		Test:            !p.production,
	}, nil
}
