package paybox

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyzer/paykit/gateway"
)

func testOptions() map[string]string {
	return map[string]string{
		"platform":             "test",
		"site":                 "1999888",
		"rang":                 "32",
		"identifiant":          "110647233",
		"shared_secret":        "0123456789ABCDEF0123456789ABCDEF",
		"signature_algo":       "sha512",
		"devise":               "978",
		"normal_return_url":    "https://shop.example.com/return",
		"automatic_return_url": "https://shop.example.com/notify",
	}
}

func newTestBackend(t *testing.T, overrides map[string]string) *Paybox {
	t.Helper()
	options := testOptions()
	for k, v := range overrides {
		options[k] = v
	}
	cleaned, err := gateway.CleanOptions(descriptor, options)
	require.NoError(t, err)
	p := New().(*Paybox)
	require.NoError(t, p.Initialize(cleaned))
	return p
}

func TestInitialize_BadSecret(t *testing.T) {
	p := New()
	options := testOptions()
	options["shared_secret"] = "not-hex"
	err := p.Initialize(options)
	var confErr *gateway.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}

func TestInitialize_BadCaptureDay(t *testing.T) {
	// option cleaning rejects it first
	options := testOptions()
	options["capture_day"] = "abc"
	_, err := gateway.CleanOptions(descriptor, options)
	var confErr *gateway.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Contains(t, err.Error(), "capture_day")

	// and initialization surfaces it even for uncleaned options
	p := New()
	err = p.Initialize(options)
	require.ErrorAs(t, err, &confErr)
	assert.Contains(t, err.Error(), "capture_day")
}

func TestRequest_DeferredCapture(t *testing.T) {
	p := newTestBackend(t, map[string]string{"capture_day": "3"})

	order, err := p.Request(context.Background(), gateway.PaymentRequest{
		Amount: "10.00",
		Email:  "a@b.com",
	})
	require.NoError(t, err)

	fields := map[string]string{}
	for _, f := range order.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "03", fields["PBX_DIFF"])
}

func TestRequest_FormFields(t *testing.T) {
	p := newTestBackend(t, nil)

	order, err := p.Request(context.Background(), gateway.PaymentRequest{
		Amount: "10.00",
		Email:  "a@b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.KindHTMLForm, order.Kind)
	assert.Equal(t, testURL, order.URL)
	assert.Equal(t, "POST", order.Method)

	fields := map[string]string{}
	for _, f := range order.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "1999888", fields["PBX_SITE"])
	assert.Equal(t, "1000", fields["PBX_TOTAL"])
	assert.Equal(t, "a@b.com", fields["PBX_PORTEUR"])
	assert.Equal(t, "SHA512", fields["PBX_HASH"])
	assert.Equal(t, retourSpec, fields["PBX_RETOUR"])
	assert.NotEmpty(t, fields["PBX_HMAC"])

	// the HMAC is the last field, computed over everything before it
	last := order.Fields[len(order.Fields)-1]
	assert.Equal(t, "PBX_HMAC", last.Name)
	signed := signedString(order.Fields[:len(order.Fields)-1])
	expected := strings.ToUpper(hex.EncodeToString(
		gateway.SignHMAC([]byte(signed), p.secret, p.algo)))
	assert.Equal(t, expected, last.Value)
}

func TestRequest_EmailRequired(t *testing.T) {
	p := newTestBackend(t, nil)
	_, err := p.Request(context.Background(), gateway.PaymentRequest{Amount: "10.00"})
	var confErr *gateway.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}

func TestSignedString_Fixture(t *testing.T) {
	fields := []gateway.FormField{
		{Name: "PBX_SITE", Value: "1999888"},
		{Name: "PBX_RANG", Value: "32"},
		{Name: "PBX_IDENTIFIANT", Value: "110647233"},
		{Name: "PBX_TOTAL", Value: "1000"},
		{Name: "PBX_DEVISE", Value: "978"},
		{Name: "PBX_CMD", Value: "abc"},
		{Name: "PBX_PORTEUR", Value: "a@b.com"},
		{Name: "PBX_RETOUR", Value: "montant:M;reference:R;code_autorisation:A;erreur:E;signature:K"},
		{Name: "PBX_HASH", Value: "SHA512"},
		{Name: "PBX_TIME", Value: "2020-01-01T12:00:00+00:00"},
	}
	key, err := hex.DecodeString("0123456789ABCDEF0123456789ABCDEF")
	require.NoError(t, err)

	mac := gateway.SignHMAC([]byte(signedString(fields)), key, gateway.HashSHA512)
	assert.Equal(t,
		"FD632D3053DB25CC7FF404C0E9587EEF43588E941473F33DDD16F667BF159F55FDB0F9584EFF2501230703B955CFED6191FA952B192FDFB4FA466CCE99B122CB",
		strings.ToUpper(hex.EncodeToString(mac)))
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		erreur string
		result gateway.Result
	}{
		{"00000", gateway.ResultPaid},
		{"00004", gateway.ResultDenied},
		{"00030", gateway.ResultExpired},
		{"00117", gateway.ResultCancelled}, // CB code 17
		{"00121", gateway.ResultDenied},    // CB code 21 is unknown, handled below
		{"99999", gateway.ResultError},
	}
	for _, tt := range tests {
		t.Run(tt.erreur, func(t *testing.T) {
			result, message := translateError(tt.erreur)
			if tt.erreur == "00121" {
				// 21 is not in the CB table, degrades to a generic error
				assert.Equal(t, gateway.ResultError, result)
				assert.Contains(t, message, "21")
				return
			}
			assert.Equal(t, tt.result, result)
			assert.NotEmpty(t, message)
		})
	}
}

func TestHandleResponse(t *testing.T) {
	p := newTestBackend(t, nil)

	resp, err := p.HandleResponse(context.Background(), url.Values{
		"montant":   {"1000"},
		"reference": {"abc"},
		"erreur":    {"00000"},
	}, gateway.ResponseHints{})
	require.NoError(t, err)
	assert.Equal(t, gateway.ResultPaid, resp.Result)
	assert.Equal(t, "abc", resp.TransactionID)
	assert.False(t, resp.Signed) // no signature field
	assert.True(t, resp.Test)
}

func TestHandleResponse_MissingFields(t *testing.T) {
	p := newTestBackend(t, nil)

	_, err := p.HandleResponse(context.Background(), url.Values{"erreur": {"00000"}}, gateway.ResponseHints{})
	var respErr *gateway.ResponseError
	assert.ErrorAs(t, err, &respErr)

	_, err = p.HandleResponse(context.Background(), url.Values{"reference": {"abc"}}, gateway.ResponseHints{})
	assert.ErrorAs(t, err, &respErr)
}

const fixtureVerifyKey = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEApF8Uxk8plPgdXCUZQ1BY
XmsU1Q9BezHAeeR8/9iDb4heDlppQyFYuyLa8HPVBNQTgQ8xLR/EODtV+oCL1mxV
o92DGvzDOCCpCtIFRRQafdFcOoLdTzkAT2KxsXaAMhuUo63F+C+io2tm2NXh7mcr
0Mkyhj6MzKuLo6zIfiVFv+QJamr6zHGGjAEMd0Ean4GiMLZw7Msad1Cu+6wtLtxF
TJ7nBU/9NkLtQnl3qwZ++6wXlvw+KZqLflRTVxiSWogbE6Yd+SiWAy8qDbTtD8Gw
1Vfg6G8cvkzRckI/zgVN6H6ElhocrRKn5Et7i76IaXlm/CmkevrqB4VaxmankjO2
SQIDAQAB
-----END PUBLIC KEY-----`

// signature of "montant=1000&reference=abc&erreur=00000" by the key pair
// behind fixtureVerifyKey
const fixtureSignature = `aeCeieukEZ2UYV6SmYG7TDoRlda0bw0qIGKKQ8KnqI2w2bLw5civGtdLsuag1/YM8hX5XxwfCixCBaDOm/sR9O+Gm67nz4rbP2NhWK4FHNhKHlDLB3BUWPf/MtfYoWKAc2iaZFm9m2uC6tP1Hwo7uwOyTvV4rihIUKEzu+73+VAGiI/SUOQfeixgv+m09hNWgWyixs/FHIuTTN/fUwOdDfT4tNRGDWUqrxCu3YEYy3PKPXc5pTtu+T8r4IrD4hf5EuNZbphRL/8AiZjwGi8WkdprGkk8KGVY/hhWxmNn9PkBE12LwfqAzDUYSUfQjQ+2U9t4+eBjxwIDWOBr8IJtJA==`

func TestHandleResponse_SignatureVerified(t *testing.T) {
	p := newTestBackend(t, map[string]string{"payment_verify_key": fixtureVerifyKey})

	payload := url.Values{
		"montant":   {"1000"},
		"reference": {"abc"},
		"erreur":    {"00000"},
		"signature": {fixtureSignature},
	}
	resp, err := p.HandleResponse(context.Background(), payload, gateway.ResponseHints{})
	require.NoError(t, err)
	assert.True(t, resp.Signed)

	// tampering with a signed field must flip Signed, not raise
	payload.Set("montant", "9999")
	resp, err = p.HandleResponse(context.Background(), payload, gateway.ResponseHints{})
	require.NoError(t, err)
	assert.False(t, resp.Signed)
}

func TestDirect_Validate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, directOperationCapture, r.PostForm.Get("TYPE"))
		assert.Equal(t, directVersion, r.PostForm.Get("VERSION"))
		assert.Equal(t, "1000", r.PostForm.Get("MONTANT"))
		assert.Equal(t, "12345", r.PostForm.Get("NUMTRANS"))
		w.Write([]byte("NUMTRANS=12345&NUMAPPEL=67890&CODEREPONSE=00000&COMMENTAIRE=Demande traitee avec succes"))
	}))
	defer server.Close()

	p := newTestBackend(t, map[string]string{"cle": "direct-password"})
	p.client = gateway.NewHTTPClient(&gateway.HTTPClientConfig{Backend: "paybox", BaseURL: server.URL})

	resp, err := p.Validate(context.Background(), "10.00", url.Values{
		"reference": {"abc"},
		"numappel":  {"67890"},
		"numtrans":  {"12345"},
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.ResultPaid, resp.Result)
	assert.Equal(t, "abc", resp.TransactionID)
}

func TestDirect_Cancel_Refused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("CODEREPONSE=00015&COMMENTAIRE=Paiement deja effectue"))
	}))
	defer server.Close()

	p := newTestBackend(t, map[string]string{"cle": "direct-password"})
	p.client = gateway.NewHTTPClient(&gateway.HTTPClientConfig{Backend: "paybox", BaseURL: server.URL})

	_, err := p.Cancel(context.Background(), "10.00", url.Values{
		"reference": {"abc"},
		"numappel":  {"67890"},
		"numtrans":  {"12345"},
	})
	var protoErr *gateway.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "00015", protoErr.Code)
}

func TestDirect_RequiresCle(t *testing.T) {
	p := newTestBackend(t, nil)
	_, err := p.Validate(context.Background(), "10.00", url.Values{
		"numappel": {"1"}, "numtrans": {"2"},
	})
	var confErr *gateway.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}

func TestDescriptor_Capabilities(t *testing.T) {
	desc := New().Descriptor()
	assert.True(t, desc.CanValidate)
	assert.True(t, desc.CanCancel)
	assert.True(t, desc.HasFreeTransactionID)
	assert.Equal(t, "Europe/Paris", desc.Timezone)
}
