// Package content provides models and repository for items in a user's
// personal anthology: saved articles, videos, and documents.
package content

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for content operations.
var (
	ErrItemNotFound = errors.New("content item not found")
	ErrItemDeleted  = errors.New("content item has been deleted")
	ErrInvalidItem  = errors.New("invalid content item")
)

// Content kinds. The ranking engine treats the kind as an opaque category
// key for preference lookup; nothing downstream switches on it numerically.
const (
	KindArticle  = "article"
	KindVideo    = "video"
	KindDocument = "document"
	KindAudio    = "audio"
)

// AllowedKinds is the set of recognized content kinds.
var AllowedKinds = map[string]bool{
	KindArticle:  true,
	KindVideo:    true,
	KindDocument: true,
	KindAudio:    true,
}

// Item represents one saved piece of content.
// CompletionRate is the running last-known fraction consumed, in [0, 1].
// LastViewedAt is nil when the item has never been viewed.
// EmbeddingJSON is a reserved extension point for similarity-based
// ranking; nothing consumes it today.
type Item struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	SourceURL      string     `json:"source_url,omitempty"`
	StorageKey     string     `json:"storage_key,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastViewedAt   *time.Time `json:"lastViewedAt,omitempty"`
	ViewCount      int        `json:"viewCount"`
	CompletionRate float64    `json:"completionRate"`
	SemanticTags   []string   `json:"semanticTags,omitempty"`
	EmbeddingJSON  *string    `json:"embedding_json,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Validate checks the item's invariants. Called at the HTTP boundary;
// the ranking core assumes well-formed items and never validates.
func (i *Item) Validate() error {
	if i.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", ErrInvalidItem)
	}
	if !AllowedKinds[i.Type] {
		return fmt.Errorf("%w: unrecognized type %q", ErrInvalidItem, i.Type)
	}
	if i.CompletionRate < 0 || i.CompletionRate > 1 || math.IsNaN(i.CompletionRate) {
		return fmt.Errorf("%w: completionRate must be in [0, 1]", ErrInvalidItem)
	}
	if i.ViewCount < 0 {
		return fmt.Errorf("%w: viewCount must be non-negative", ErrInvalidItem)
	}
	return nil
}

// Progress describes a reading-progress update applied after a session.
type Progress struct {
	CompletionRate float64   // New running completion rate, [0, 1]
	ViewedAt       time.Time // When the session happened
}

// ListCursor represents a cursor for paginating through an owner's items.
// Uses (created_at, id) for stable pagination with tie-breaking.
type ListCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// Repository defines the interface for content item storage.
type Repository interface {
	// Create inserts a new item with a generated UUID.
	Create(item *Item) error

	// Update updates an existing item's mutable fields.
	Update(item *Item) error

	// UpdateProgress applies a reading-progress update: bumps ViewCount,
	// sets LastViewedAt and the running CompletionRate.
	UpdateProgress(id string, progress Progress) (*Item, error)

	// Delete soft-deletes an item by setting deleted_at.
	Delete(id string) error

	// GetByID retrieves an item by UUID, excluding soft-deleted items.
	GetByID(id string) (*Item, error)

	// ListByOwner retrieves items for an owner with cursor-based
	// pagination, ordered by created_at DESC, id ASC (tie-breaker).
	// Excludes soft-deleted items. Returns items, next cursor (nil if
	// no more), and error.
	ListByOwner(ownerID string, limit int, cursor *ListCursor) ([]*Item, *ListCursor, error)

	// ListAllByOwner retrieves every non-deleted item for an owner.
	// This is the content inventory handed to the ranking engine.
	ListAllByOwner(ownerID string) ([]*Item, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Item // UUID -> Item
}

// NewInMemoryRepository creates a new in-memory content repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[string]*Item),
	}
}

// Create inserts a new item with a generated UUID.
func (r *InMemoryRepository) Create(item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	itemCopy := *item
	r.items[item.ID] = &itemCopy
	return nil
}

// Update updates an existing item's mutable fields.
func (r *InMemoryRepository) Update(item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[item.ID]
	if !ok {
		return ErrItemNotFound
	}
	if existing.DeletedAt != nil {
		return ErrItemDeleted
	}

	existing.Title = item.Title
	existing.Type = item.Type
	existing.SourceURL = item.SourceURL
	existing.StorageKey = item.StorageKey
	existing.SemanticTags = item.SemanticTags
	existing.EmbeddingJSON = item.EmbeddingJSON
	existing.CompletionRate = item.CompletionRate
	existing.UpdatedAt = time.Now()

	return nil
}

// UpdateProgress applies a reading-progress update.
func (r *InMemoryRepository) UpdateProgress(id string, progress Progress) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	if item.DeletedAt != nil {
		return nil, ErrItemNotFound
	}

	viewedAt := progress.ViewedAt
	if viewedAt.IsZero() {
		viewedAt = time.Now()
	}

	item.ViewCount++
	item.LastViewedAt = &viewedAt
	item.CompletionRate = progress.CompletionRate
	item.UpdatedAt = time.Now()

	itemCopy := *item
	return &itemCopy, nil
}

// Delete soft-deletes an item by setting deleted_at.
func (r *InMemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return ErrItemNotFound
	}

	// Already deleted - treat as not found for idempotency
	if item.DeletedAt != nil {
		return ErrItemNotFound
	}

	now := time.Now()
	item.DeletedAt = &now
	return nil
}

// GetByID retrieves an item by UUID, excluding soft-deleted items.
func (r *InMemoryRepository) GetByID(id string) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	if item.DeletedAt != nil {
		return nil, ErrItemNotFound
	}

	itemCopy := *item
	return &itemCopy, nil
}

// ListByOwner retrieves items for an owner with cursor-based pagination.
func (r *InMemoryRepository) ListByOwner(ownerID string, limit int, cursor *ListCursor) ([]*Item, *ListCursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*Item
	for _, item := range r.items {
		if item.DeletedAt != nil {
			continue
		}
		if item.OwnerID != ownerID {
			continue
		}

		// Apply cursor filter if provided
		if cursor != nil {
			if item.CreatedAt.After(cursor.CreatedAt) {
				continue
			}
			if item.CreatedAt.Equal(cursor.CreatedAt) && item.ID <= cursor.ID {
				continue
			}
		}

		candidates = append(candidates, item)
	}

	sortItemsByCreatedDesc(candidates)

	var results []*Item
	var nextCursor *ListCursor

	if len(candidates) > limit {
		results = candidates[:limit]
		lastItem := results[len(results)-1]
		nextCursor = &ListCursor{
			CreatedAt: lastItem.CreatedAt,
			ID:        lastItem.ID,
		}
	} else {
		results = candidates
	}

	// Return deep copies to prevent external mutation
	copies := make([]*Item, len(results))
	for i, item := range results {
		itemCopy := *item
		copies[i] = &itemCopy
	}
	return copies, nextCursor, nil
}

// ListAllByOwner retrieves every non-deleted item for an owner.
func (r *InMemoryRepository) ListAllByOwner(ownerID string) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Item
	for _, item := range r.items {
		if item.DeletedAt != nil {
			continue
		}
		if item.OwnerID != ownerID {
			continue
		}
		itemCopy := *item
		results = append(results, &itemCopy)
	}

	sortItemsByCreatedDesc(results)
	return results, nil
}

// sortItemsByCreatedDesc sorts items by created_at DESC, then by ID ASC
// for tie-breaking, giving stable ordering for cursor pagination.
func sortItemsByCreatedDesc(items []*Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.After(items[j].CreatedAt) {
			return true
		}
		if items[i].CreatedAt.Before(items[j].CreatedAt) {
			return false
		}
		return items[i].ID < items[j].ID
	})
}
