package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/havenhub/apiserver/internal/services"
	"github.com/havenhub/apiserver/types"
)

// TenantHandler provides tenant-facing lease endpoints.
type TenantHandler struct {
	tenantService *services.TenantService
	userService   *services.UserService
}

func NewTenantHandler(tenantService *services.TenantService, userService *services.UserService) *TenantHandler {
	return &TenantHandler{
		tenantService: tenantService,
		userService:   userService,
	}
}

// TenantRouter registers tenant routes. All routes require auth.
func TenantRouter(
	r chi.Router,
	tenantService *services.TenantService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewTenantHandler(tenantService, userService)

	r.Use(authMiddleware)
	r.Get("/lease", handler.GetLease)
	r.Post("/{tenantID}/payments", handler.RecordPayment)
}

func (h *TenantHandler) GetLease(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lease, err := h.tenantService.GetLease(r.Context(), userID)
	if err != nil {
		writeWorkflowError(w, err, "failed to load lease")
		return
	}
	writeJSON(w, http.StatusOK, lease)
}

// PaymentRequest is the payment recording payload.
type PaymentRequest struct {
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
}

func (h *TenantHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	actor, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	raw := chi.URLParam(r, "tenantID")
	tenantID, err := strconv.Atoi(raw)
	if err != nil || tenantID < 1 {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	tenant, err := h.tenantService.RecordPayment(r.Context(), actor, tenantID, types.Payment{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		writeWorkflowError(w, err, "failed to record payment")
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}
