// Package audit indexes every handled bank notification into OpenSearch.
// The raw payload is kept verbatim: financial notifications must stay
// auditable even when most of their fields are unused.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/teyzer/paykit/infra/config"
)

// Record is one audited notification
type Record struct {
	Timestamp     time.Time           `json:"timestamp"`
	Backend       string              `json:"backend"`
	TransactionID string              `json:"transaction_id,omitempty"`
	OrderID       string              `json:"order_id,omitempty"`
	Result        string              `json:"result"`
	Signed        bool                `json:"signed"`
	BankStatus    string              `json:"bank_status,omitempty"`
	BankData      map[string][]string `json:"bank_data"`
	Test          bool                `json:"test"`
}

// Trail writes notification records into a per-month OpenSearch index.
type Trail struct {
	client *opensearch.Client
}

// NewTrail creates an audit trail against the configured OpenSearch cluster.
func NewTrail(cfg *config.AppConfig) (*Trail, error) {
	osConfig := opensearch.Config{
		Addresses:     []string{cfg.OpenSearchURL},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}
	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		osConfig.Username = cfg.OpenSearchUser
		osConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(osConfig)
	if err != nil {
		return nil, err
	}
	return &Trail{client: client}, nil
}

// IndexName returns the index notifications of a backend land in.
func IndexName(backend string, at time.Time) string {
	return fmt.Sprintf("paykit-notifications-%s-%s", backend, at.Format("2006.01"))
}

// Notification records one handled notification. Failures are returned, not
// fatal: auditing must never break notification handling.
func (t *Trail) Notification(ctx context.Context, backend string, bankData url.Values, result string, signed bool, transactionID, orderID, bankStatus string, test bool) error {
	record := Record{
		Timestamp:     time.Now().UTC(),
		Backend:       backend,
		TransactionID: transactionID,
		OrderID:       orderID,
		Result:        result,
		Signed:        signed,
		BankStatus:    bankStatus,
		BankData:      bankData,
		Test:          test,
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      IndexName(backend, record.Timestamp),
		DocumentID: uuid.New().String(),
		Body:       strings.NewReader(string(body)),
	}
	resp, err := req.Do(ctx, t.client)
	if err != nil {
		return fmt.Errorf("failed to index audit record: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("audit indexing failed: %s", resp.String())
	}
	return nil
}
