package dummy

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyzer/paykit/gateway"
)

func newClient(t *testing.T, options map[string]string) *gateway.Client {
	t.Helper()
	client, err := gateway.New("dummy", options)
	require.NoError(t, err)
	return client
}

func TestRequest(t *testing.T) {
	client := newClient(t, map[string]string{"origin": "shop"})

	order, err := client.Request(context.Background(), gateway.PaymentRequest{
		Amount: "10.5",
		Email:  "a@b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.KindRedirect, order.Kind)
	assert.NotEmpty(t, order.Handle)

	parsed, err := url.Parse(order.URL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "10.50", query.Get("amount"))
	assert.Equal(t, "shop", query.Get("origin"))
	assert.Equal(t, order.Handle, query.Get("transaction_id"))
	assert.Equal(t, "a@b.com", query.Get("email"))
}

func TestRequest_FreeTransactionID(t *testing.T) {
	client := newClient(t, map[string]string{})
	order, err := client.Request(context.Background(), gateway.PaymentRequest{
		Amount:        "1",
		TransactionID: "my-id-42",
	})
	require.NoError(t, err)
	assert.Equal(t, "my-id-42", order.Handle)
}

func TestRequest_BadAmount(t *testing.T) {
	client := newClient(t, map[string]string{})
	_, err := client.Request(context.Background(), gateway.PaymentRequest{Amount: "zero"})
	var amountErr *gateway.AmountError
	assert.ErrorAs(t, err, &amountErr)
}

func TestHandleResponse_Results(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		result gateway.Result
	}{
		{"paid", "transaction_id=t1&ok=1", gateway.ResultPaid},
		{"waiting", "transaction_id=t1&waiting=1", gateway.ResultWaiting},
		{"cancelled", "transaction_id=t1&cancelled=1", gateway.ResultCancelled},
		{"error", "transaction_id=t1&error=1", gateway.ResultError},
		{"denied by default", "transaction_id=t1", gateway.ResultDenied},
	}
	client := newClient(t, map[string]string{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.HandleResponseQuery(context.Background(), tt.query, gateway.ResponseHints{})
			require.NoError(t, err)
			assert.Equal(t, tt.result, resp.Result)
			assert.Equal(t, "t1", resp.TransactionID)
			assert.True(t, resp.Signed)
			assert.True(t, resp.Test)
		})
	}
}

func TestHandleResponse_Idempotent(t *testing.T) {
	client := newClient(t, map[string]string{})
	payload := url.Values{"transaction_id": {"t1"}, "ok": {"1"}}

	first, err := client.HandleResponse(context.Background(), payload, gateway.ResponseHints{})
	require.NoError(t, err)
	second, err := client.HandleResponse(context.Background(), payload, gateway.ResponseHints{})
	require.NoError(t, err)

	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.Signed, second.Signed)
}

func TestHandleResponse_MissingTransactionID(t *testing.T) {
	client := newClient(t, map[string]string{})
	_, err := client.HandleResponseQuery(context.Background(), "ok=1", gateway.ResponseHints{})
	var respErr *gateway.ResponseError
	assert.ErrorAs(t, err, &respErr)
}

func TestDeprecatedServiceURLOption(t *testing.T) {
	client := newClient(t, map[string]string{
		"dummy_service_url": "https://old.example.com/",
	})
	order, err := client.Request(context.Background(), gateway.PaymentRequest{Amount: "1"})
	require.NoError(t, err)
	assert.Contains(t, order.URL, "https://old.example.com/")
}
