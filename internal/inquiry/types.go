// Package inquiry implements per-slot support threads with append-only
// messages, poll-based delivery, and per-recipient read tracking.
package inquiry

import (
	"context"
	"errors"
	"fmt"

	"github.com/adforge/slotmarket/internal/role"
)

// Domain-level error values returned by the inquiry service.
var (
	ErrNotFoundOrForbidden  = errors.New("inquiry not found or not visible to caller")
	ErrInvalidInquiry       = errors.New("invalid inquiry")
	ErrInvalidMessage       = errors.New("invalid inquiry message")
	ErrInquiryClosed        = errors.New("inquiry is closed")
	ErrAttachmentTooLarge   = errors.New("attachment exceeds size limit")
	ErrAttachmentType       = errors.New("attachment mime type not allowed")
	ErrInvalidStatus        = errors.New("invalid inquiry status")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// Status is the lifecycle of an inquiry thread.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
	StatusClosed   Status = "closed"
)

// ParseStatus validates a raw inquiry status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusOpen, StatusResolved, StatusClosed:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// String returns the raw status value.
func (status Status) String() string {
	return string(status)
}

// Attachment holds file metadata only; the bytes live in object storage
// under StorageKey.
type Attachment struct {
	FileName   string
	SizeBytes  int64
	MimeType   string
	StorageKey string
}

// Inquiry is one support thread, attached to a slot or a guarantee slot.
type Inquiry struct {
	InquiryID       string
	SlotID          string
	GuaranteeSlotID string
	CampaignID      string
	UserID          string
	DistributorID   string
	Status          Status
	Title           string
	Category        string
	CreatedUnixUTC  int64
}

// Message is one append-only thread entry.
type Message struct {
	MessageID      string
	InquiryID      string
	SenderID       string
	SenderRole     role.Role
	Content        string
	Attachments    []Attachment
	IsRead         bool
	CreatedUnixUTC int64
}

// CreateInput is the caller-supplied part of a new inquiry.
type CreateInput struct {
	SlotID          string
	GuaranteeSlotID string
	CampaignID      string
	DistributorID   string
	Title           string
	Category        string
}

// Store is the persistence contract used by Service.
type Store interface {
	InsertInquiry(ctx context.Context, inquiry Inquiry) error
	GetInquiry(ctx context.Context, inquiryID string) (Inquiry, error)
	SetInquiryStatus(ctx context.Context, inquiryID string, status Status) error
	ListInquiries(ctx context.Context, userID string, callerRole role.Role) ([]Inquiry, error)

	InsertMessage(ctx context.Context, message Message) error
	ListMessagesSince(ctx context.Context, inquiryID string, sinceUnixUTC int64) ([]Message, error)
	MarkMessagesRead(ctx context.Context, inquiryID string, readerID string) error
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithMaxAttachmentBytes overrides the per-attachment size limit.
func WithMaxAttachmentBytes(limit int64) ServiceOption {
	return func(service *Service) {
		if limit > 0 {
			service.maxAttachmentBytes = limit
		}
	}
}

// WithAllowedMimeTypes replaces the accepted attachment mime types.
func WithAllowedMimeTypes(mimeTypes ...string) ServiceOption {
	return func(service *Service) {
		if len(mimeTypes) == 0 {
			return
		}
		allowed := make(map[string]bool, len(mimeTypes))
		for _, mimeType := range mimeTypes {
			allowed[mimeType] = true
		}
		service.allowedMimeTypes = allowed
	}
}
