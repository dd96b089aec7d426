package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/havenhub/apiserver/internal/storage"
	"github.com/havenhub/apiserver/internal/store"
	"github.com/havenhub/apiserver/types"
)

// PropertyRepository defines persistence operations for properties.
type PropertyRepository interface {
	Get(ctx context.Context, id int) (types.Property, error)
	ListPublic(ctx context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, error)
	ListByAgent(ctx context.Context, agentID int) ([]types.Property, error)
	Create(ctx context.Context, property types.Property) (types.Property, error)
	Update(ctx context.Context, property types.Property) (types.Property, error)
	Delete(ctx context.Context, id int) error
}

// ListingCache caches public listing pages.
type ListingCache interface {
	GetListings(ctx context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, bool)
	SetListings(ctx context.Context, filter types.PropertyFilter, offset, limit int, items []types.Property, total int)
	InvalidateListings(ctx context.Context)
}

// PropertyService encapsulates listing use-cases outside the approval
// state machine: public browsing, agent CRUD, and image uploads.
type PropertyService struct {
	repo    PropertyRepository
	agents  AgentRepository
	cache   ListingCache
	storage *storage.Storage
}

func NewPropertyService(repo PropertyRepository, agents AgentRepository, cache ListingCache, st *storage.Storage) *PropertyService {
	return &PropertyService{
		repo:    repo,
		agents:  agents,
		cache:   cache,
		storage: st,
	}
}

// ListPublic returns approved, visible properties, served through the
// listing cache when one is configured.
func (s *PropertyService) ListPublic(ctx context.Context, filter types.PropertyFilter, offset, limit int) ([]types.Property, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	if items, total, ok := s.cache.GetListings(ctx, filter, offset, limit); ok {
		return items, total, nil
	}

	items, total, err := s.repo.ListPublic(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	s.cache.SetListings(ctx, filter, offset, limit, items, total)
	return items, total, nil
}

// GetPublic returns a property for unauthenticated browsing. Properties
// that are not approved and visible behave as if they do not exist.
func (s *PropertyService) GetPublic(ctx context.Context, id int) (types.Property, error) {
	property, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Property{}, err
	}
	if !property.PubliclyVisible() {
		// Non-public listings are indistinguishable from absent ones.
		return types.Property{}, fmt.Errorf("property %d: %w", id, store.ErrNotFound)
	}
	return property, nil
}

// Get returns a property regardless of status. For admins and owners.
func (s *PropertyService) Get(ctx context.Context, id int) (types.Property, error) {
	return s.repo.Get(ctx, id)
}

// Create submits a new listing for the acting agent. Listings always
// start pending and invisible; the approval workflow decides the rest.
func (s *PropertyService) Create(ctx context.Context, actorUserID int, property types.Property) (types.Property, error) {
	agent, err := s.agents.GetByUserID(ctx, actorUserID)
	if err != nil {
		return types.Property{}, fmt.Errorf("%w: only agents can list properties", ErrForbidden)
	}
	if strings.TrimSpace(property.Title) == "" {
		return types.Property{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if property.Price <= 0 {
		return types.Property{}, fmt.Errorf("%w: price must be positive", ErrValidation)
	}

	property.AgentID = agent.ID
	property.ApprovalStatus = types.ApprovalPending
	property.Availability = types.AvailabilityAvailable
	property.Visible = false
	property.ReviewNotes = ""
	return s.repo.Create(ctx, property)
}

// Update edits a listing owned by the acting agent. The approval and
// visibility fields cannot be changed here; the version token guards
// against concurrent edits.
func (s *PropertyService) Update(ctx context.Context, actorUserID int, property types.Property) (types.Property, error) {
	agent, err := s.agents.GetByUserID(ctx, actorUserID)
	if err != nil {
		return types.Property{}, fmt.Errorf("%w: only agents can edit properties", ErrForbidden)
	}
	existing, err := s.repo.Get(ctx, property.ID)
	if err != nil {
		return types.Property{}, err
	}
	if existing.AgentID != agent.ID {
		return types.Property{}, fmt.Errorf("%w: property belongs to another agent", ErrForbidden)
	}
	if property.Version == 0 {
		property.Version = existing.Version
	}

	// Availability moves through the lease workflow and images through
	// the upload endpoint; an edit must not clobber either.
	property.Availability = existing.Availability
	property.Images = existing.Images

	return s.repo.Update(ctx, property)
}

// ListMine returns all listings of the acting agent.
func (s *PropertyService) ListMine(ctx context.Context, actorUserID int) ([]types.Property, error) {
	agent, err := s.agents.GetByUserID(ctx, actorUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: not an agent", ErrForbidden)
	}
	return s.repo.ListByAgent(ctx, agent.ID)
}

// AttachImage uploads a property photo to object storage and appends
// its key to the listing. The owning agent only.
func (s *PropertyService) AttachImage(ctx context.Context, actorUserID, propertyID int, filename string, r io.Reader, size int64, contentType string) (types.Property, error) {
	agent, err := s.agents.GetByUserID(ctx, actorUserID)
	if err != nil {
		return types.Property{}, fmt.Errorf("%w: only agents can upload images", ErrForbidden)
	}
	property, err := s.repo.Get(ctx, propertyID)
	if err != nil {
		return types.Property{}, err
	}
	if property.AgentID != agent.ID {
		return types.Property{}, fmt.Errorf("%w: property belongs to another agent", ErrForbidden)
	}
	if s.storage == nil {
		return types.Property{}, fmt.Errorf("%w: image storage is not configured", ErrValidation)
	}

	key := fmt.Sprintf("properties/%d/%s%s", propertyID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.Property{}, fmt.Errorf("upload image: %w", err)
	}

	property.Images = append(property.Images, key)
	return s.repo.Update(ctx, property)
}
