package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/teyzer/paykit/gateway"
	"github.com/teyzer/paykit/infra/config"
	"github.com/teyzer/paykit/infra/response"
)

// BackendHandler manages backend configuration over HTTP. Saved option sets
// are persisted so they survive restarts.
type BackendHandler struct {
	service *gateway.Service
	store   *config.Store
}

// NewBackendHandler creates a new backend configuration handler
func NewBackendHandler(service *gateway.Service, store *config.Store) *BackendHandler {
	return &BackendHandler{service: service, store: store}
}

// descriptorDTO is the outbound shape of backend metadata
type descriptorDTO struct {
	Kind                 string                  `json:"kind"`
	Caption              string                  `json:"caption"`
	Parameters           []gateway.ParameterSpec `json:"parameters"`
	HasFreeTransactionID bool                    `json:"has_free_transaction_id"`
	HasPaymentStatus     bool                    `json:"has_payment_status"`
	CanValidate          bool                    `json:"can_validate"`
	CanCancel            bool                    `json:"can_cancel"`
	Configured           bool                    `json:"configured"`
}

// ListBackends returns every registered backend kind with its metadata
func (h *BackendHandler) ListBackends(w http.ResponseWriter, r *http.Request) {
	configured := make(map[string]bool)
	for _, kind := range h.service.Configured() {
		configured[kind] = true
	}

	kinds := gateway.Kinds()
	sort.Strings(kinds)

	var backends []descriptorDTO
	for _, kind := range kinds {
		factory, err := gateway.DefaultRegistry.Resolve(kind)
		if err != nil {
			continue
		}
		desc := factory().Descriptor()
		backends = append(backends, descriptorDTO{
			Kind:                 desc.Kind,
			Caption:              desc.Caption,
			Parameters:           desc.Parameters,
			HasFreeTransactionID: desc.HasFreeTransactionID,
			HasPaymentStatus:     desc.HasPaymentStatus,
			CanValidate:          desc.CanValidate,
			CanCancel:            desc.CanCancel,
			Configured:           configured[kind],
		})
	}
	response.Success(w, http.StatusOK, "Backends listed", backends)
}

// ConfigureBackend validates and stores the option set for a backend kind
func (h *BackendHandler) ConfigureBackend(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "backend")

	var options map[string]string
	if err := json.NewDecoder(r.Body).Decode(&options); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.service.Configure(kind, options); err != nil {
		response.Error(w, http.StatusBadRequest, "Backend configuration rejected", err)
		return
	}

	if h.store != nil {
		if err := h.store.Save(kind, "", options); err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to persist configuration", err)
			return
		}
	}
	response.Success(w, http.StatusOK, "Backend configured", map[string]string{"kind": kind})
}

// RemoveBackend drops a configured backend and its stored options
func (h *BackendHandler) RemoveBackend(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "backend")
	h.service.Remove(kind)
	if h.store != nil {
		if err := h.store.Delete(kind, ""); err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to remove stored configuration", err)
			return
		}
	}
	response.Success(w, http.StatusOK, "Backend removed", map[string]string{"kind": kind})
}
