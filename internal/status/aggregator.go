// Package status manages the admin's ephemeral broadcast statuses.
// Entries live forever in the store; the 24 hour window is enforced on
// every read, so an undeleted stale row can never surface.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatline/internal/bus"
	"chatline/internal/store"
)

// TTL is the visibility window of a status.
const TTL = 24 * time.Hour

// DefaultCaption stands in when a status is created without one.
const DefaultCaption = "Nuevo estado"

// BlobRemover deletes the stored image behind a status URL. Satisfied
// by the blob store.
type BlobRemover interface {
	RemoveURL(url string) error
}

// Aggregator serves the status feed.
type Aggregator struct {
	db     *store.DB
	bus    *bus.Bus
	blobs  BlobRemover
	logger *zap.Logger
}

// NewAggregator creates an aggregator. blobs may be nil.
func NewAggregator(db *store.DB, b *bus.Bus, blobs BlobRemover, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{db: db, bus: b, blobs: blobs, logger: logger}
}

// List returns the statuses still inside the window at now, newest
// first. The filter is applied here, on the read path, never by a
// background sweeper.
func (a *Aggregator) List(now time.Time) ([]store.Status, error) {
	all, err := a.db.ListStatuses()
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	cutoff := now.Add(-TTL).UnixMilli()
	active := make([]store.Status, 0, len(all))
	for _, s := range all {
		if s.Timestamp > cutoff {
			active = append(active, s)
		}
	}
	return active, nil
}

// HasActive reports whether any status is visible at now. Consumers use
// this alone to decide whether to render the story ring.
func (a *Aggregator) HasActive(now time.Time) (bool, error) {
	active, err := a.List(now)
	if err != nil {
		return false, err
	}
	return len(active) > 0, nil
}

// Create records a new status. The image must already be uploaded;
// a blank caption falls back to the placeholder.
func (a *Aggregator) Create(imageURL, caption string) (*store.Status, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, fmt.Errorf("status requires an uploaded image")
	}
	if strings.TrimSpace(caption) == "" {
		caption = DefaultCaption
	}
	now := time.Now().UnixMilli()
	s := &store.Status{
		ID:        uuid.NewString(),
		ImageURL:  imageURL,
		Caption:   caption,
		Timestamp: now,
	}
	if err := a.db.InsertStatus(s); err != nil {
		return nil, fmt.Errorf("create status: %w", err)
	}
	a.publish()
	return s, nil
}

// Delete removes a status. The metadata row is authoritative; removing
// the backing image is best-effort and never fails the call.
func (a *Aggregator) Delete(id string) error {
	s, err := a.db.GetStatus(id)
	if err != nil {
		return fmt.Errorf("delete status %s: %w", id, err)
	}
	if s == nil {
		return nil
	}
	existed, err := a.db.DeleteStatus(id)
	if err != nil {
		return fmt.Errorf("delete status %s: %w", id, err)
	}
	if !existed {
		return nil
	}
	if a.blobs != nil {
		if err := a.blobs.RemoveURL(s.ImageURL); err != nil {
			a.logger.Warn("status image removal failed",
				zap.Error(err), zap.String("status_id", id), zap.String("url", s.ImageURL))
		}
	}
	a.publish()
	return nil
}

func (a *Aggregator) publish() {
	if a.bus != nil {
		a.bus.Publish(bus.Event{Kind: bus.StatusesTopic, Timestamp: time.Now()})
	}
}
