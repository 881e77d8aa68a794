// Package engagement provides models and repositories for reading-session
// telemetry captured by the client after each content-viewing session.
package engagement

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for engagement operations.
var (
	ErrEventNotFound = errors.New("engagement event not found")
	ErrEmptyOwner    = errors.New("owner ID is required")
	ErrInvalidEvent  = errors.New("invalid engagement event")
)

// Event represents one content-viewing session.
// TimeSpent is in milliseconds. ScrollDepth and CompletionRate are in [0, 1].
// ScrollSpeed is the average scroll speed in pixels per millisecond; 0 means
// the content had no scroll surface (or no scroll data was captured).
type Event struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	ContentID      string    `json:"contentId"`
	TimeSpent      float64   `json:"timeSpent"`
	ScrollDepth    float64   `json:"scrollDepth"`
	ScrollSpeed    float64   `json:"scrollSpeed"`
	CompletionRate float64   `json:"completionRate"`
	TimeOfDay      int       `json:"timeOfDay"` // hour, 0-23
	DayOfWeek      int       `json:"dayOfWeek"` // 0-6, Sunday = 0
	RecordedAt     time.Time `json:"recorded_at"`
}

// Validate checks the numeric bounds of the event fields. The ranking core
// never validates its inputs, so malformed events must be rejected here at
// the capture boundary before they reach storage.
func (e *Event) Validate() error {
	if e.ContentID == "" {
		return fmt.Errorf("%w: contentId is required", ErrInvalidEvent)
	}
	if e.TimeSpent < 0 || math.IsNaN(e.TimeSpent) {
		return fmt.Errorf("%w: timeSpent must be a non-negative number", ErrInvalidEvent)
	}
	if e.ScrollDepth < 0 || e.ScrollDepth > 1 || math.IsNaN(e.ScrollDepth) {
		return fmt.Errorf("%w: scrollDepth must be in [0, 1]", ErrInvalidEvent)
	}
	if e.ScrollSpeed < 0 || math.IsNaN(e.ScrollSpeed) {
		return fmt.Errorf("%w: scrollSpeed must be a non-negative number", ErrInvalidEvent)
	}
	if e.CompletionRate < 0 || e.CompletionRate > 1 || math.IsNaN(e.CompletionRate) {
		return fmt.Errorf("%w: completionRate must be in [0, 1]", ErrInvalidEvent)
	}
	if e.TimeOfDay < 0 || e.TimeOfDay > 23 {
		return fmt.Errorf("%w: timeOfDay must be in [0, 23]", ErrInvalidEvent)
	}
	if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
		return fmt.Errorf("%w: dayOfWeek must be in [0, 6]", ErrInvalidEvent)
	}
	return nil
}

// Repository defines the interface for engagement event storage.
type Repository interface {
	// Record stores a single event, assigning an ID and RecordedAt if unset.
	Record(event *Event) error

	// RecordBatch stores a batch of events. Partial failures are not
	// possible for the in-memory implementation; the Postgres
	// implementation records all events in one transaction.
	RecordBatch(events []*Event) error

	// ListRecent returns up to limit events for the owner, most recent
	// first by RecordedAt. This is the recency window supplied to the
	// ranking engine; window selection is the caller's concern, the
	// engine itself never filters.
	ListRecent(ownerID string, limit int) ([]*Event, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*Event // event ID -> Event
}

// NewInMemoryRepository creates a new in-memory engagement repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		events: make(map[string]*Event),
	}
}

// Record stores a single event.
func (r *InMemoryRepository) Record(event *Event) error {
	if event.OwnerID == "" {
		return ErrEmptyOwner
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now()
	}

	eventCopy := *event
	r.events[event.ID] = &eventCopy
	return nil
}

// RecordBatch stores a batch of events.
func (r *InMemoryRepository) RecordBatch(events []*Event) error {
	for _, e := range events {
		if e.OwnerID == "" {
			return ErrEmptyOwner
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, event := range events {
		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		if event.RecordedAt.IsZero() {
			event.RecordedAt = now
		}
		eventCopy := *event
		r.events[event.ID] = &eventCopy
	}
	return nil
}

// ListRecent returns up to limit events for the owner, most recent first.
func (r *InMemoryRepository) ListRecent(ownerID string, limit int) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*Event
	for _, event := range r.events {
		if event.OwnerID != ownerID {
			continue
		}
		candidates = append(candidates, event)
	}

	// Sort by recorded_at DESC, then by ID ASC for tie-breaking
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RecordedAt.After(candidates[j].RecordedAt) {
			return true
		}
		if candidates[i].RecordedAt.Before(candidates[j].RecordedAt) {
			return false
		}
		return candidates[i].ID < candidates[j].ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	// Return deep copies to prevent external mutation
	copies := make([]*Event, len(candidates))
	for i, e := range candidates {
		eventCopy := *e
		copies[i] = &eventCopy
	}
	return copies, nil
}
