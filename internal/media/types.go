package media

import (
	"errors"
	"time"
)

// Type classifies an uploaded item.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
)

// IsValidType returns true for a recognised media type.
func IsValidType(t Type) bool {
	return t == TypeImage || t == TypeVideo
}

// Status is the moderation state of an item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Item is one uploaded photo or video awaiting or past moderation.
type Item struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	UploadedBy string `json:"uploaded_by"`
	FileName   string `json:"file_name"`
	Type       Type   `json:"media_type"`
	Status     Status `json:"status"`

	ReviewedBy string     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Domain errors.
var (
	ErrNotFound        = errors.New("media item not found")
	ErrInvalidType     = errors.New("invalid media type")
	ErrTypeNotAllowed  = errors.New("media type not allowed for this event")
	ErrAlreadyReviewed = errors.New("media item has already been reviewed")
)
