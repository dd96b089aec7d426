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

const maxImageBytes = 16 << 20

// PropertyHandler provides HTTP handlers for property browsing and
// agent-side listing management.
type PropertyHandler struct {
	propertyService *services.PropertyService
	approvalService *services.ApprovalService
	userService     *services.UserService
}

func NewPropertyHandler(propertyService *services.PropertyService, approvalService *services.ApprovalService, userService *services.UserService) *PropertyHandler {
	return &PropertyHandler{
		propertyService: propertyService,
		approvalService: approvalService,
		userService:     userService,
	}
}

// PropertyRouter registers property routes on the given router. Public
// browsing needs no auth; everything else requires it.
func PropertyRouter(
	r chi.Router,
	propertyService *services.PropertyService,
	approvalService *services.ApprovalService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewPropertyHandler(propertyService, approvalService, userService)

	r.Get("/", handler.ListPublic)
	r.With(authMiddleware).Post("/", handler.Create)
	r.With(authMiddleware).Get("/mine", handler.ListMine)
	r.Route("/{propertyID}", func(r chi.Router) {
		r.Get("/", handler.GetPublic)
		r.With(authMiddleware).Put("/", handler.Update)
		r.With(authMiddleware).Post("/images", handler.UploadImage)
		r.With(authMiddleware).Post("/resubmit", handler.Resubmit)
	})
}

// PropertyListResponse is the paginated list response payload.
type PropertyListResponse struct {
	Items []types.Property `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int              `json:"total"`
}

func (h *PropertyHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parsePropertyFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.propertyService.ListPublic(r.Context(), filter, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list properties")
		return
	}

	writeJSON(w, http.StatusOK, PropertyListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *PropertyHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	id, err := parsePropertyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	property, err := h.propertyService.GetPublic(r.Context(), id)
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

// PropertyUpsertRequest is the JSON payload for creating or editing a
// listing.
type PropertyUpsertRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	City        string   `json:"city"`
	Address     string   `json:"address"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Type        string   `json:"type"`
	Amenities   []string `json:"amenities"`
	Version     int      `json:"version"`
}

func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PropertyUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.propertyService.Create(r.Context(), userID, types.Property{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		City:        req.City,
		Address:     req.Address,
		Price:       req.Price,
		Category:    req.Category,
		Type:        req.Type,
		Amenities:   req.Amenities,
	})
	if err != nil {
		writeWorkflowError(w, err, "failed to create property")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *PropertyHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parsePropertyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req PropertyUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.propertyService.Update(r.Context(), userID, types.Property{
		ID:          id,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		City:        req.City,
		Address:     req.Address,
		Price:       req.Price,
		Category:    req.Category,
		Type:        req.Type,
		Amenities:   req.Amenities,
		Version:     req.Version,
	})
	if err != nil {
		writeWorkflowError(w, err, "failed to update property")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *PropertyHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	properties, err := h.propertyService.ListMine(r.Context(), userID)
	if err != nil {
		writeWorkflowError(w, err, "failed to list properties")
		return
	}
	writeJSON(w, http.StatusOK, properties)
}

func (h *PropertyHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parsePropertyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		writeError(w, http.StatusBadRequest, "image too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	updated, err := h.propertyService.AttachImage(r.Context(), userID, id, header.Filename, file, header.Size, contentType)
	if err != nil {
		writeWorkflowError(w, err, "failed to upload image")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *PropertyHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
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

	property, err := h.approvalService.Resubmit(r.Context(), actor, id)
	if err != nil {
		writeWorkflowError(w, err, "failed to resubmit property")
		return
	}
	writeJSON(w, http.StatusOK, property)
}

func (h *PropertyHandler) actorFromRequest(r *http.Request) (types.User, error) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		return types.User{}, err
	}
	return h.userService.GetByID(r.Context(), userID)
}

func parsePropertyID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "propertyID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid property id")
	}
	return id, nil
}

func parsePropertyFilter(r *http.Request) (types.PropertyFilter, error) {
	q := r.URL.Query()
	filter := types.PropertyFilter{
		City:     strings.TrimSpace(q.Get("city")),
		Type:     strings.TrimSpace(q.Get("type")),
		Category: strings.TrimSpace(q.Get("category")),
	}

	if raw := strings.TrimSpace(q.Get("min_price")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return types.PropertyFilter{}, errors.New("invalid min_price")
		}
		filter.MinPrice = value
	}
	if raw := strings.TrimSpace(q.Get("max_price")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return types.PropertyFilter{}, errors.New("invalid max_price")
		}
		filter.MaxPrice = value
	}
	return filter, nil
}
