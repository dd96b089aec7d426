package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/havenhub/apiserver/internal/services"
	"github.com/havenhub/apiserver/internal/store"
	"github.com/havenhub/apiserver/types"
)

// AdminHandler provides the admin console endpoints: the review queue,
// approval decisions, role transitions, lease management, and the
// consistency audit.
type AdminHandler struct {
	roleService        *services.RoleService
	approvalService    *services.ApprovalService
	agentService       *services.AgentService
	consistencyService *services.ConsistencyService
	userService        *services.UserService
	propertyService    *services.PropertyService
}

func NewAdminHandler(
	roleService *services.RoleService,
	approvalService *services.ApprovalService,
	agentService *services.AgentService,
	consistencyService *services.ConsistencyService,
	userService *services.UserService,
	propertyService *services.PropertyService,
) *AdminHandler {
	return &AdminHandler{
		roleService:        roleService,
		approvalService:    approvalService,
		agentService:       agentService,
		consistencyService: consistencyService,
		userService:        userService,
		propertyService:    propertyService,
	}
}

// AdminRouter registers admin routes. Every route requires auth and the
// admin role.
func AdminRouter(
	r chi.Router,
	roleService *services.RoleService,
	approvalService *services.ApprovalService,
	agentService *services.AgentService,
	consistencyService *services.ConsistencyService,
	userService *services.UserService,
	propertyService *services.PropertyService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAdminHandler(roleService, approvalService, agentService, consistencyService, userService, propertyService)

	r.Use(authMiddleware, handler.requireAdmin)
	r.Get("/properties/pending", handler.ListPending)
	r.Get("/properties/{propertyID}", handler.GetProperty)
	r.Post("/properties/{propertyID}/decision", handler.DecideProperty)
	r.Put("/users/{userID}/role", handler.SetUserRole)
	r.Post("/leases/{tenantID}/end", handler.EndLease)
	r.Put("/agents/{agentID}/subscription", handler.SetSubscription)
	r.Get("/consistency", handler.CheckConsistency)
}

// PendingListResponse is the paginated review-queue payload.
type PendingListResponse struct {
	Items []types.PendingProperty `json:"items"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
	Total int                     `json:"total"`
}

func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.approvalService.ListPending(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending properties")
		return
	}

	writeJSON(w, http.StatusOK, PendingListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// GetProperty returns a property regardless of approval status or
// visibility, for review outside the pending queue.
func (h *AdminHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := parsePropertyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	property, err := h.propertyService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "property not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch property")
		return
	}
	writeJSON(w, http.StatusOK, property)
}

// DecisionRequest is the approval decision payload.
type DecisionRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (h *AdminHandler) DecideProperty(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parsePropertyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	property, err := h.approvalService.Decide(r.Context(), actor, id, req.Decision, req.Notes)
	if err != nil {
		writeWorkflowError(w, err, "failed to decide property")
		return
	}
	writeJSON(w, http.StatusOK, property)
}

// RoleChangeRequest is the role-transition payload. Lease terms are
// required when the new role is "tenant".
type RoleChangeRequest struct {
	Role  string            `json:"role"`
	Lease *types.LeaseTerms `json:"lease,omitempty"`
}

func (h *AdminHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req RoleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.roleService.SetUserRole(r.Context(), actor, userID, strings.TrimSpace(req.Role), req.Lease)
	if err != nil {
		writeWorkflowError(w, err, "failed to change role")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) EndLease(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actorFromRequest(r)
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

	if err := h.roleService.EndLease(r.Context(), actor, tenantID); err != nil {
		writeWorkflowError(w, err, "failed to end lease")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscriptionRequest is the agent tier change payload.
type SubscriptionRequest struct {
	Subscription string `json:"subscription"`
}

func (h *AdminHandler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	raw := chi.URLParam(r, "agentID")
	agentID, err := strconv.Atoi(raw)
	if err != nil || agentID < 1 {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	agent, err := h.agentService.UpdateSubscription(r.Context(), actor, agentID, req.Subscription)
	if err != nil {
		writeWorkflowError(w, err, "failed to update subscription")
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (h *AdminHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.consistencyService.CheckRoleConsistency(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to run consistency check")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) actorFromRequest(r *http.Request) (types.User, error) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		return types.User{}, err
	}
	return h.userService.GetByID(r.Context(), userID)
}

func (h *AdminHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := h.userService.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}

		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}
