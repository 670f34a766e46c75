package gateway

import (
	"context"
	"math"
	"net/url"
	"time"

	"github.com/teyzer/paykit/infra/logger"
)

// Client is the single entry point callers use: it wraps a resolved,
// configured adapter and applies the cross-backend rules (option validation,
// capture-date arithmetic, capability gating).
type Client struct {
	kind    string
	adapter Gateway
	desc    Descriptor
}

// New resolves a backend kind, validates the options against its descriptor
// and returns a ready Client. Unknown kinds and invalid options are
// configuration errors.
func New(kind string, options map[string]string) (*Client, error) {
	return NewFromRegistry(DefaultRegistry, kind, options)
}

// NewFromRegistry is New against an explicit registry.
func NewFromRegistry(registry *Registry, kind string, options map[string]string) (*Client, error) {
	factory, err := registry.Resolve(kind)
	if err != nil {
		return nil, err
	}

	adapter := factory()
	desc := adapter.Descriptor()

	cleaned, err := CleanOptions(desc, options)
	if err != nil {
		return nil, err
	}
	if err := adapter.Initialize(cleaned); err != nil {
		return nil, err
	}

	return &Client{kind: kind, adapter: adapter, desc: desc}, nil
}

// Kind returns the backend kind of this client.
func (c *Client) Kind() string { return c.kind }

// Descriptor returns the backend metadata, including capability flags.
func (c *Client) Descriptor() Descriptor { return c.desc }

// HasFreeTransactionID reports whether the caller may choose the ultimate
// transaction id rather than having the backend generate one.
func (c *Client) HasFreeTransactionID() bool { return c.desc.HasFreeTransactionID }

// HasPaymentStatus reports whether the backend supports active polling.
func (c *Client) HasPaymentStatus() bool { return c.desc.HasPaymentStatus }

// Request initiates a payment through the configured backend.
func (c *Client) Request(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
	if !req.CaptureDate.IsZero() {
		day, err := c.captureDay(req.CaptureDate, time.Now())
		if err != nil {
			return nil, err
		}
		req.CaptureDay = day
	}

	order, err := c.adapter.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Info("payment requested", logger.LogContext{
		Backend: c.kind,
		Handle:  order.Handle,
		Fields:  map[string]any{"kind": string(order.Kind)},
	})
	return order, nil
}

// HandleResponse parses and verifies an inbound notification. The same
// notification may be handled any number of times and yields an equivalent
// response each time.
func (c *Client) HandleResponse(ctx context.Context, payload url.Values, hints ResponseHints) (*PaymentResponse, error) {
	resp, err := c.adapter.HandleResponse(ctx, payload, hints)
	if err != nil {
		return nil, err
	}
	logger.Info("payment notification handled", logger.LogContext{
		Backend: c.kind,
		Handle:  resp.TransactionID,
		Fields: map[string]any{
			"result": string(resp.Result),
			"signed": resp.Signed,
		},
	})
	return resp, nil
}

// HandleResponseQuery is HandleResponse over a raw URL-encoded query string.
func (c *Client) HandleResponseQuery(ctx context.Context, query string, hints ResponseHints) (*PaymentResponse, error) {
	payload, err := url.ParseQuery(query)
	if err != nil {
		return nil, &ResponseError{Backend: c.kind, Message: "malformed query string: " + err.Error()}
	}
	return c.HandleResponse(ctx, payload, hints)
}

// Validate triggers manual capture of a previously authorized transaction.
func (c *Client) Validate(ctx context.Context, amount string, bankData url.Values) (*PaymentResponse, error) {
	v, ok := c.adapter.(Validator)
	if !ok || !c.desc.CanValidate {
		return nil, &CapabilityError{Backend: c.kind, Operation: "validate"}
	}
	return v.Validate(ctx, amount, bankData)
}

// Cancel reverses a previously authorized transaction.
func (c *Client) Cancel(ctx context.Context, amount string, bankData url.Values) (*PaymentResponse, error) {
	canceler, ok := c.adapter.(Canceler)
	if !ok || !c.desc.CanCancel {
		return nil, &CapabilityError{Backend: c.kind, Operation: "cancel"}
	}
	return canceler.Cancel(ctx, amount, bankData)
}

// PaymentStatus actively polls the backend for the state of a transaction.
func (c *Client) PaymentStatus(ctx context.Context, handle string, hints ResponseHints) (*PaymentResponse, error) {
	poller, ok := c.adapter.(StatusPoller)
	if !ok || !c.desc.HasPaymentStatus {
		return nil, &CapabilityError{Backend: c.kind, Operation: "payment_status"}
	}
	return poller.PaymentStatus(ctx, handle, hints)
}

// captureDay converts an absolute capture date into the day offset the
// backend wire format expects, computed in the backend's declared timezone.
func (c *Client) captureDay(captureDate, now time.Time) (int, error) {
	if _, ok := c.desc.Parameter("capture_day"); !ok {
		return 0, configErrorf(c.kind, "capture_date is not supported by this backend")
	}

	loc := time.UTC
	if c.desc.Timezone != "" {
		l, err := time.LoadLocation(c.desc.Timezone)
		if err != nil {
			return 0, configErrorf(c.kind, "invalid backend timezone '%s'", c.desc.Timezone)
		}
		loc = l
	}

	today := now.In(loc)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	target := captureDate.In(loc)
	target = time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, loc)

	// round, not truncate: a DST transition shifts the span by an hour
	days := int(math.Round(target.Sub(today).Hours() / 24))
	if days <= 0 {
		return 0, configErrorf(c.kind, "capture_date must be a date in the future")
	}
	return days, nil
}
