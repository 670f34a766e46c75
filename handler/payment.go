package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/teyzer/paykit/gateway"
	"github.com/teyzer/paykit/infra/logger"
	"github.com/teyzer/paykit/infra/response"
)

// AuditTrail is the hook invoked after every handled notification. It is
// satisfied by infra/audit and kept as an interface so the handler can run
// without a cluster behind it.
type AuditTrail interface {
	Notification(ctx context.Context, backend string, bankData url.Values, result string, signed bool, transactionID, orderID, bankStatus string, test bool) error
}

// PaymentHandler handles payment related HTTP requests
type PaymentHandler struct {
	service  *gateway.Service
	validate *validator.Validate
	audit    AuditTrail
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service *gateway.Service, validate *validator.Validate, audit AuditTrail) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		validate: validate,
		audit:    audit,
	}
}

// paymentRequestDTO is the inbound JSON shape of a payment creation
type paymentRequestDTO struct {
	Amount        string `json:"amount" validate:"required"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Subject       string `json:"subject"`
	Email         string `json:"email" validate:"omitempty,email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Address       string `json:"address"`
	ZipCode       string `json:"zip_code"`
	City          string `json:"city"`
	Country       string `json:"country"`
	Phone         string `json:"phone"`
	Language      string `json:"language"`
	CaptureDate   string `json:"capture_date" validate:"omitempty,datetime=2006-01-02"`
	Info1         string `json:"info1"`
	Info2         string `json:"info2"`
	Info3         string `json:"info3"`
}

// paymentOrderDTO is the outbound shape of a created payment order
type paymentOrderDTO struct {
	Handle string              `json:"handle"`
	Kind   string              `json:"kind"`
	URL    string              `json:"url,omitempty"`
	Method string              `json:"method,omitempty"`
	Fields []gateway.FormField `json:"fields,omitempty"`
	Form   string              `json:"form,omitempty"`
}

// paymentResponseDTO is the outbound shape of a handled notification
type paymentResponseDTO struct {
	Result          string     `json:"result"`
	Signed          bool       `json:"signed"`
	TransactionID   string     `json:"transaction_id,omitempty"`
	OrderID         string     `json:"order_id,omitempty"`
	BankStatus      string     `json:"bank_status,omitempty"`
	TransactionDate *time.Time `json:"transaction_date,omitempty"`
	Test            bool       `json:"test"`
}

func orderDTO(order *gateway.PaymentOrder) (*paymentOrderDTO, error) {
	dto := &paymentOrderDTO{
		Handle: order.Handle,
		Kind:   string(order.Kind),
		URL:    order.URL,
		Method: order.Method,
		Fields: order.Fields,
	}
	if order.Kind == gateway.KindHTMLForm {
		form, err := order.RenderHTML()
		if err != nil {
			return nil, err
		}
		dto.Form = form
	}
	return dto, nil
}

func responseDTO(resp *gateway.PaymentResponse) *paymentResponseDTO {
	return &paymentResponseDTO{
		Result:          string(resp.Result),
		Signed:          resp.Signed,
		TransactionID:   resp.TransactionID,
		OrderID:         resp.OrderID,
		BankStatus:      resp.BankStatus,
		TransactionDate: resp.TransactionDate,
		Test:            resp.Test,
	}
}

// errorStatus maps gateway error types to HTTP status codes.
func errorStatus(err error) int {
	var confErr *gateway.ConfigurationError
	var amountErr *gateway.AmountError
	var respErr *gateway.ResponseError
	switch {
	case errors.Is(err, gateway.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.As(err, &confErr), errors.As(err, &amountErr), errors.As(err, &respErr):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// CreatePayment handles payment creation requests
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var dto paymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	client, err := h.service.Client(chi.URLParam(r, "backend"))
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown backend", err)
		return
	}

	req := gateway.PaymentRequest{
		Amount:        dto.Amount,
		OrderID:       dto.OrderID,
		TransactionID: dto.TransactionID,
		Subject:       dto.Subject,
		Email:         dto.Email,
		FirstName:     dto.FirstName,
		LastName:      dto.LastName,
		Address:       dto.Address,
		ZipCode:       dto.ZipCode,
		City:          dto.City,
		Country:       dto.Country,
		Phone:         dto.Phone,
		Language:      dto.Language,
		Info1:         dto.Info1,
		Info2:         dto.Info2,
		Info3:         dto.Info3,
	}
	if dto.CaptureDate != "" {
		captureDate, err := time.Parse("2006-01-02", dto.CaptureDate)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid capture_date", err)
			return
		}
		req.CaptureDate = captureDate
	}

	order, err := client.Request(ctx, req)
	if err != nil {
		response.Error(w, errorStatus(err), "Payment request failed", err)
		return
	}

	dtoOut, err := orderDTO(order)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to render payment form", err)
		return
	}
	response.Success(w, http.StatusOK, "Payment created", dtoOut)
}

// HandleCallback handles bank return and notification callbacks. Both GET
// redirects and POSTed notifications land here.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	backend := chi.URLParam(r, "backend")
	client, err := h.service.Client(backend)
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown backend", err)
		return
	}

	payload, err := callbackPayload(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Malformed callback payload", err)
		return
	}

	hints := gateway.ResponseHints{
		Redirect: r.Method == http.MethodGet,
		OrderID:  r.URL.Query().Get("order_id"),
	}

	resp, err := client.HandleResponse(ctx, payload, hints)
	if err != nil {
		response.Error(w, errorStatus(err), "Callback handling failed", err)
		return
	}

	h.recordAudit(ctx, client.Kind(), payload, resp)
	response.Success(w, http.StatusOK, "Callback handled", responseDTO(resp))
}

// PaymentStatus handles active status polling requests
func (h *PaymentHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	client, err := h.service.Client(chi.URLParam(r, "backend"))
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown backend", err)
		return
	}

	handle := chi.URLParam(r, "handle")
	if handle == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment handle", nil)
		return
	}

	hints := gateway.ResponseHints{}
	if requested := r.URL.Query().Get("requested_at"); requested != "" {
		at, err := time.Parse(time.RFC3339, requested)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid requested_at", err)
			return
		}
		hints.TransactionDate = at
	}

	resp, err := client.PaymentStatus(ctx, handle, hints)
	if err != nil {
		response.Error(w, errorStatus(err), "Failed to get payment status", err)
		return
	}
	response.Success(w, http.StatusOK, "Payment status retrieved", responseDTO(resp))
}

// operationDTO is the inbound shape of cancel and validate requests
type operationDTO struct {
	Amount   string            `json:"amount" validate:"required"`
	BankData map[string]string `json:"bank_data" validate:"required"`
}

// CancelPayment handles cancellation of an authorized transaction
func (h *PaymentHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "cancel")
}

// ValidatePayment handles manual capture of an authorized transaction
func (h *PaymentHandler) ValidatePayment(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "validate")
}

func (h *PaymentHandler) runOperation(w http.ResponseWriter, r *http.Request, op string) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var dto operationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	client, err := h.service.Client(chi.URLParam(r, "backend"))
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown backend", err)
		return
	}

	bankData := url.Values{}
	for key, value := range dto.BankData {
		bankData.Set(key, value)
	}

	var resp *gateway.PaymentResponse
	if op == "cancel" {
		resp, err = client.Cancel(ctx, dto.Amount, bankData)
	} else {
		resp, err = client.Validate(ctx, dto.Amount, bankData)
	}
	if err != nil {
		response.Error(w, errorStatus(err), "Operation failed", err)
		return
	}
	response.Success(w, http.StatusOK, "Operation completed", responseDTO(resp))
}

func (h *PaymentHandler) recordAudit(ctx context.Context, backend string, payload url.Values, resp *gateway.PaymentResponse) {
	if h.audit == nil {
		return
	}
	err := h.audit.Notification(ctx, backend, payload, string(resp.Result), resp.Signed,
		resp.TransactionID, resp.OrderID, resp.BankStatus, resp.Test)
	if err != nil {
		logger.Warn("failed to audit notification", logger.LogContext{
			Backend: backend,
			Handle:  resp.TransactionID,
			Fields:  map[string]any{"error": err.Error()},
		})
	}
}

// callbackPayload merges query and form parameters into a single payload.
func callbackPayload(r *http.Request) (url.Values, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	payload := url.Values{}
	for key, values := range r.Form {
		payload[key] = values
	}
	return payload, nil
}
