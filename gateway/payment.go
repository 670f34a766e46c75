package gateway

import (
	"context"
	"net/url"
	"time"
)

// Result represents the normalized outcome of a payment
type Result string

const (
	ResultPaid      Result = "paid"
	ResultDenied    Result = "denied"
	ResultCancelled Result = "cancelled"
	ResultError     Result = "error"
	ResultWaiting   Result = "waiting"
	ResultExpired   Result = "expired"
	ResultAccepted  Result = "accepted"
)

// Kind represents how a payment order is delivered to the customer
type Kind string

const (
	KindRedirect Kind = "redirect"
	KindHTMLForm Kind = "html_form"
	KindRawForm  Kind = "raw_form"
)

// ParamScope tells whether an option is fixed per backend configuration or
// may vary per transaction
type ParamScope string

const (
	ScopeGlobal      ParamScope = "global"
	ScopeTransaction ParamScope = "transaction"
)

// ParameterSpec describes one configuration option of a backend
type ParameterSpec struct {
	Key        string     `json:"key"`
	Caption    string     `json:"caption"`
	Required   bool       `json:"required"`
	Default    string     `json:"default,omitempty"`
	Type       string     `json:"type"` // "string", "number", "url", "email", "boolean"
	Choices    []string   `json:"choices,omitempty"`
	Scope      ParamScope `json:"scope,omitempty"`
	Pattern    string     `json:"pattern,omitempty"`
	MaxLength  int        `json:"maxLength,omitempty"`
	Deprecated bool       `json:"deprecated,omitempty"`
}

// Descriptor is the static metadata of a backend: caption, the full list of
// recognized options and the capability flags the facade gates on.
type Descriptor struct {
	Kind                 string
	Caption              string
	Parameters           []ParameterSpec
	Deprecations         map[string]string // old option key -> replacement
	HasFreeTransactionID bool
	HasPaymentStatus     bool
	CanValidate          bool
	CanCancel            bool
	Timezone             string // IANA name used for capture-date arithmetic
}

// Parameter returns the spec for the given option key, if declared.
func (d Descriptor) Parameter(key string) (ParameterSpec, bool) {
	for _, p := range d.Parameters {
		if p.Key == key {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// PaymentRequest carries everything a caller may supply when initiating a
// payment. Amount is a decimal string ("10.00"); each backend normalizes it
// to its own wire format (cents or decimal) before any network call.
type PaymentRequest struct {
	Amount        string
	OrderID       string
	TransactionID string
	Subject       string
	Email         string
	FirstName     string
	LastName      string
	Address       string
	ZipCode       string
	City          string
	Country       string
	Phone         string
	Language      string
	CaptureDate   time.Time // optional, deferred capture
	CaptureDay    int       // day offset, set by the facade from CaptureDate
	Info1         string
	Info2         string
	Info3         string
}

// FormField is one hidden input of an HTML form delivery. Order matters for
// backends that sign over the declared field order.
type FormField struct {
	Name  string
	Value string
}

// PaymentOrder is the artifact returned by Request: the handle the caller
// must store plus the delivery (redirect URL or form description).
type PaymentOrder struct {
	Handle string
	Kind   Kind
	URL    string
	Method string
	Fields []FormField
}

// PaymentResponse is the canonical result built from a bank notification or
// a status poll. It is created fresh on every call and never mutated.
type PaymentResponse struct {
	Result          Result
	Signed          bool
	TransactionID   string
	OrderID         string
	BankData        url.Values // entire raw inbound payload, kept verbatim
	BankStatus      string
	TransactionDate *time.Time
	Test            bool
}

// IsPaid reports whether funds were, or will be, captured.
func (r *PaymentResponse) IsPaid() bool {
	return r.Result == ResultPaid || r.Result == ResultAccepted
}

// ResponseHints carries adapter-specific context a caller may pass when the
// bank redirects the browser without a full notification payload.
type ResponseHints struct {
	Redirect bool // payload comes from a browser redirect, not a server call
	OrderID  string
	// TransactionDate is when the caller issued the original request; used
	// by backends that need elapsed-time heuristics to classify a pending
	// payment.
	TransactionDate time.Time
}

// Gateway is the contract every backend adapter implements.
type Gateway interface {
	// Initialize configures the adapter from validated options
	Initialize(options map[string]string) error

	// Descriptor returns the static backend metadata
	Descriptor() Descriptor

	// Request initiates a payment and returns the handle plus delivery
	Request(ctx context.Context, req PaymentRequest) (*PaymentOrder, error)

	// HandleResponse parses and verifies an inbound notification. It must be
	// safe to call any number of times for the same underlying event.
	HandleResponse(ctx context.Context, payload url.Values, hints ResponseHints) (*PaymentResponse, error)
}

// Validator is implemented by backends with manual capture.
type Validator interface {
	Validate(ctx context.Context, amount string, bankData url.Values) (*PaymentResponse, error)
}

// Canceler is implemented by backends that can reverse an authorization.
type Canceler interface {
	Cancel(ctx context.Context, amount string, bankData url.Values) (*PaymentResponse, error)
}

// StatusPoller is implemented by backends that support active polling in
// addition to passive notifications.
type StatusPoller interface {
	PaymentStatus(ctx context.Context, handle string, hints ResponseHints) (*PaymentResponse, error)
}

// Factory creates a new, uninitialized Gateway instance.
type Factory func() Gateway
