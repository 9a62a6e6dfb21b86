package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/stockmaster-web/orders"
)

// ArchivePrefix is the key prefix of every archived submission
const ArchivePrefix = "submissions/"

// ErrInvalidArchiveKey is returned for keys outside the archive
var ErrInvalidArchiveKey = errors.New("invalid archive key")

// ArchiveService keeps a JSON copy of every accepted submission in S3
type ArchiveService struct {
	s3Service S3Interface
	now       func() time.Time
}

// archivedSubmission is the document written for each submission
type archivedSubmission struct {
	Kind       string          `json:"kind"`
	RecordID   string          `json:"record_id"`
	Reference  string          `json:"reference,omitempty"`
	ArchivedAt time.Time       `json:"archived_at"`
	Payload    *orders.Payload `json:"payload"`
	Response   json.RawMessage `json:"response,omitempty"`
}

// NewArchiveService creates an archive backed by s3Service
func NewArchiveService(s3Service S3Interface) *ArchiveService {
	return &ArchiveService{
		s3Service: s3Service,
		now:       time.Now,
	}
}

// Archive stores the payload and the server's response and returns the key.
// Keys look like submissions/<kind>/<yyyy>/<mm>/<dd>/<record id>.json
func (a *ArchiveService) Archive(ctx context.Context, k *orders.Kind, p *orders.Payload, r *orders.Record) (string, error) {
	doc := archivedSubmission{
		Kind:       k.Name,
		ArchivedAt: a.now().UTC(),
		Payload:    p,
	}
	name := uuid.NewString()
	if r != nil {
		doc.RecordID = r.ID
		doc.Reference = r.Reference
		doc.Response = r.Body
		if r.ID != "" {
			name = r.ID
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode archived submission: %w", err)
	}

	key := fmt.Sprintf("%s%s/%s/%s.json", ArchivePrefix, k.Name, doc.ArchivedAt.Format("2006/01/02"), sanitizeKeySegment(name))
	if err := a.s3Service.PutObject(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("failed to archive submission: %w", err)
	}
	return key, nil
}

// URL returns a temporary download URL for an archived submission
func (a *ArchiveService) URL(ctx context.Context, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if !strings.HasPrefix(key, ArchivePrefix) || strings.Contains(key, "..") {
		return "", ErrInvalidArchiveKey
	}

	url, err := a.s3Service.GetPresignedURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to generate archive URL: %w", err)
	}
	return url, nil
}

func sanitizeKeySegment(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}
