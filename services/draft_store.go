package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/stockmaster-web/models"
	"github.com/kendall-kelly/stockmaster-web/orders"
	"gorm.io/gorm"
)

// DraftStore persists form sessions with gorm
type DraftStore struct {
	db *gorm.DB
}

// NewDraftStore creates a store on top of db. The draft_sessions table must
// already be migrated.
func NewDraftStore(db *gorm.DB) *DraftStore {
	return &DraftStore{db: db}
}

// Create opens a new form session for owner
func (s *DraftStore) Create(ctx context.Context, owner string, d *orders.Draft) (*models.DraftSession, error) {
	session := &models.DraftSession{OwnerID: owner}
	session.SetDraft(d)
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create draft session: %w", err)
	}
	return session, nil
}

// Get returns the session with the given id
func (s *DraftStore) Get(ctx context.Context, id string) (*models.DraftSession, error) {
	var session models.DraftSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orders.ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to load draft session: %w", err)
	}
	return &session, nil
}

// ListByOwner returns the open sessions of owner, newest first
func (s *DraftStore) ListByOwner(ctx context.Context, owner string) ([]models.DraftSession, error) {
	var sessions []models.DraftSession
	if err := s.db.WithContext(ctx).Where("owner_id = ?", owner).Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list draft sessions: %w", err)
	}
	return sessions, nil
}

// Load returns the draft of the session with the given id
func (s *DraftStore) Load(ctx context.Context, id string) (*orders.Draft, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.Draft(), nil
}

// Save writes the draft back into its existing session
func (s *DraftStore) Save(ctx context.Context, id string, d *orders.Draft) error {
	session := models.DraftSession{ID: id, UpdatedAt: time.Now()}
	session.SetDraft(d)

	result := s.db.WithContext(ctx).
		Model(&models.DraftSession{ID: id}).
		Select("RecordID", "Header", "Lines", "Annotations", "UpdatedAt").
		Updates(&session)
	if result.Error != nil {
		return fmt.Errorf("failed to save draft session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return orders.ErrDraftNotFound
	}
	return nil
}

// Delete closes the session
func (s *DraftStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.DraftSession{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete draft session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return orders.ErrDraftNotFound
	}
	return nil
}
