package sips

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyzer/paykit/gateway"
)

const fixtureData = "amount=1000|currencyCode=978|merchantId=002001000000001|normalReturnUrl=https://shop.example.com/return|orderChannel=INTERNET|transactionReference=tr20200101120000"

func newBackend(t *testing.T, sealAlgo string) *SIPS {
	t.Helper()
	cleaned, err := gateway.CleanOptions(descriptor, map[string]string{
		"merchant_id":       "002001000000001",
		"secret_key":        "secret123",
		"seal_algorithm":    sealAlgo,
		"normal_return_url": "https://shop.example.com/return",
	})
	require.NoError(t, err)
	s := New().(*SIPS)
	require.NoError(t, s.Initialize(cleaned))
	return s
}

func TestSeal_SHA256(t *testing.T) {
	s := newBackend(t, sealSHA256)
	assert.Equal(t,
		"fb42c73238f1a82c30e47fc02dde15811cb7b0714de106d7b103b5633e7c89d9",
		s.Seal(fixtureData))
}

func TestSeal_HMACSHA256(t *testing.T) {
	s := newBackend(t, sealHMACSHA256)
	assert.Equal(t,
		"ce817e203b588bb4ec6a5a24bc8e83b9087661670811f5fd3a461c4da84d3875",
		s.Seal(fixtureData))
}

func TestEncodeDecodeData(t *testing.T) {
	data := map[string]string{
		"amount":               "1000",
		"transactionReference": "tr1",
		"responseCode":         "00",
	}
	encoded := encodeData(data)
	// keys are emitted sorted
	assert.Equal(t, "amount=1000|responseCode=00|transactionReference=tr1", encoded)
	assert.Equal(t, data, decodeData(encoded))
}

func TestRequest(t *testing.T) {
	s := newBackend(t, sealSHA256)
	order, err := s.Request(context.Background(), gateway.PaymentRequest{
		Amount:        "10.00",
		TransactionID: "tr20200101120000",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr20200101120000", order.Handle)
	assert.Equal(t, gateway.KindHTMLForm, order.Kind)
	assert.Equal(t, testURL, order.URL)
	require.Len(t, order.Fields, 3)

	fields := map[string]string{}
	for _, f := range order.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, interfaceVersion, fields["InterfaceVersion"])

	data := decodeData(fields["Data"])
	assert.Equal(t, "1000", data["amount"])
	assert.Equal(t, "002001000000001", data["merchantId"])
	assert.Equal(t, "INTERNET", data["orderChannel"])
	assert.Equal(t, s.Seal(fields["Data"]), fields["Seal"])
}

func TestRequest_DeferredCapture(t *testing.T) {
	s := newBackend(t, sealSHA256)
	order, err := s.Request(context.Background(), gateway.PaymentRequest{
		Amount:     "10.00",
		CaptureDay: 3,
	})
	require.NoError(t, err)

	var encoded string
	for _, f := range order.Fields {
		if f.Name == "Data" {
			encoded = f.Value
		}
	}
	data := decodeData(encoded)
	assert.Equal(t, "3", data["captureDay"])
	assert.Equal(t, "VALIDATION", data["captureMode"])
}

func notification(t *testing.T, s *SIPS, pairs map[string]string) url.Values {
	t.Helper()
	encoded := encodeData(pairs)
	return url.Values{
		"Data":             {encoded},
		"Seal":             {s.Seal(encoded)},
		"InterfaceVersion": {interfaceVersion},
	}
}

func TestHandleResponse_ResponseCodes(t *testing.T) {
	tests := []struct {
		code   string
		result gateway.Result
	}{
		{"00", gateway.ResultPaid},
		{"05", gateway.ResultDenied},
		{"17", gateway.ResultCancelled},
		{"60", gateway.ResultWaiting},
		{"97", gateway.ResultExpired},
		{"99", gateway.ResultError},
		{"XX", gateway.ResultError},
	}
	s := newBackend(t, sealSHA256)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			payload := notification(t, s, map[string]string{
				"transactionReference": "tr1",
				"responseCode":         tt.code,
			})
			resp, err := s.HandleResponse(context.Background(), payload, gateway.ResponseHints{})
			require.NoError(t, err)
			assert.Equal(t, tt.result, resp.Result)
			assert.True(t, resp.Signed)
			assert.Equal(t, "tr1", resp.TransactionID)
		})
	}
}

func TestHandleResponse_BadSeal(t *testing.T) {
	s := newBackend(t, sealSHA256)
	payload := notification(t, s, map[string]string{
		"transactionReference": "tr1",
		"responseCode":         "00",
	})
	payload.Set("Seal", "0000")

	resp, err := s.HandleResponse(context.Background(), payload, gateway.ResponseHints{})
	require.NoError(t, err)
	assert.Equal(t, gateway.ResultPaid, resp.Result)
	assert.False(t, resp.Signed)
}

func TestHandleResponse_DecodedPairsInBankData(t *testing.T) {
	s := newBackend(t, sealSHA256)
	payload := notification(t, s, map[string]string{
		"transactionReference": "tr1",
		"responseCode":         "00",
		"orderId":              "order-9",
	})
	resp, err := s.HandleResponse(context.Background(), payload, gateway.ResponseHints{})
	require.NoError(t, err)
	assert.Equal(t, "order-9", resp.OrderID)
	assert.Equal(t, "00", resp.BankData.Get("responseCode"))
	assert.NotEmpty(t, resp.BankData.Get("Data"))
}

func TestHandleResponse_MissingData(t *testing.T) {
	s := newBackend(t, sealSHA256)
	_, err := s.HandleResponse(context.Background(), url.Values{}, gateway.ResponseHints{})
	var respErr *gateway.ResponseError
	assert.ErrorAs(t, err, &respErr)
}
