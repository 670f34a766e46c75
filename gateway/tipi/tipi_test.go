package tipi

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teyzer/paykit/gateway"
)

func newClient(t *testing.T) *gateway.Client {
	t.Helper()
	client, err := gateway.New("tipi", map[string]string{
		"numcli":            "123456",
		"normal_return_url": "https://commune.example.fr/retour",
	})
	require.NoError(t, err)
	return client
}

func TestRequest(t *testing.T) {
	client := newClient(t)
	order, err := client.Request(context.Background(), gateway.PaymentRequest{
		Amount:  "25.50",
		OrderID: "REF0001",
		Email:   "usager@example.fr",
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.KindRedirect, order.Kind)
	assert.Equal(t, "REF0001", order.Handle)

	parsed, err := url.Parse(order.URL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "123456", query.Get("numcli"))
	assert.Equal(t, "2550", query.Get("montant"))
	assert.Equal(t, "REF0001", query.Get("refdet"))
	assert.Equal(t, "usager@example.fr", query.Get("mel"))
	assert.Equal(t, "T", query.Get("saisie"))
	assert.Equal(t, "https://commune.example.fr/retour", query.Get("urlcl"))
}

func TestRequest_RequiredFields(t *testing.T) {
	client := newClient(t)
	var confErr *gateway.ConfigurationError

	_, err := client.Request(context.Background(), gateway.PaymentRequest{
		Amount: "10.00", Email: "a@b.fr",
	})
	assert.ErrorAs(t, err, &confErr)

	_, err = client.Request(context.Background(), gateway.PaymentRequest{
		Amount: "10.00", OrderID: "REF1",
	})
	assert.ErrorAs(t, err, &confErr)
}

func TestRequest_MaxAmount(t *testing.T) {
	client := newClient(t)
	_, err := client.Request(context.Background(), gateway.PaymentRequest{
		Amount: "100000.01", OrderID: "REF1", Email: "a@b.fr",
	})
	var amountErr *gateway.AmountError
	assert.ErrorAs(t, err, &amountErr)
}

func TestHandleResponse_Results(t *testing.T) {
	tests := []struct {
		resultrans string
		result     gateway.Result
	}{
		{"P", gateway.ResultPaid},
		{"V", gateway.ResultPaid},
		{"A", gateway.ResultCancelled},
		{"R", gateway.ResultDenied},
		{"Z", gateway.ResultError},
	}
	client := newClient(t)
	for _, tt := range tests {
		t.Run(tt.resultrans, func(t *testing.T) {
			resp, err := client.HandleResponseQuery(context.Background(),
				"refdet=REF0001&resultrans="+tt.resultrans, gateway.ResponseHints{})
			require.NoError(t, err)
			assert.Equal(t, tt.result, resp.Result)
			assert.Equal(t, "REF0001", resp.TransactionID)
			assert.False(t, resp.Signed)
		})
	}
}

func TestHandleResponse_MissingRefdet(t *testing.T) {
	client := newClient(t)
	_, err := client.HandleResponseQuery(context.Background(), "resultrans=P", gateway.ResponseHints{})
	var respErr *gateway.ResponseError
	assert.ErrorAs(t, err, &respErr)
}
