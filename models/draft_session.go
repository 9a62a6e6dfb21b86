package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/stockmaster-web/orders"
	"gorm.io/gorm"
)

// DraftSession is an open order form. Deleting it closes the form.
type DraftSession struct {
	ID          string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Kind        string              `gorm:"not null;index" json:"kind"`
	OwnerID     string              `gorm:"not null;index" json:"owner_id"` // subject of the authenticated user
	RecordID    string              `gorm:"index" json:"record_id,omitempty"` // set in edit mode
	Header      map[string]string   `gorm:"serializer:json" json:"header"`
	Lines       []orders.Line       `gorm:"serializer:json" json:"lines"`
	Annotations []orders.Annotation `gorm:"serializer:json" json:"annotations"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TableName specifies the table name for the DraftSession model
func (DraftSession) TableName() string {
	return "draft_sessions"
}

// BeforeCreate assigns a random id to new sessions
func (s *DraftSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Draft returns the order draft held by the session
func (s *DraftSession) Draft() *orders.Draft {
	header := make(map[string]string, len(s.Header))
	for k, v := range s.Header {
		header[k] = v
	}
	annotations := s.Annotations
	if annotations == nil {
		annotations = []orders.Annotation{}
	}
	return &orders.Draft{
		Kind:        s.Kind,
		RecordID:    s.RecordID,
		Header:      header,
		Lines:       append([]orders.Line{}, s.Lines...),
		Annotations: annotations,
	}
}

// SetDraft copies the draft's contents into the session
func (s *DraftSession) SetDraft(d *orders.Draft) {
	s.Kind = d.Kind
	s.RecordID = d.RecordID
	s.Header = d.Header
	s.Lines = d.Lines
	s.Annotations = d.Annotations
}
