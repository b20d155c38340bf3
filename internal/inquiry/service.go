package inquiry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/adforge/slotmarket/internal/role"
)

const defaultMaxAttachmentBytes = 10 << 20 // 10 MiB

func defaultAllowedMimeTypes() map[string]bool {
	return map[string]bool{
		"image/png":       true,
		"image/jpeg":      true,
		"image/gif":       true,
		"application/pdf": true,
	}
}

// Service contains the inquiry domain logic over a Store.
type Service struct {
	store              Store
	nowFn              func() int64
	idFn               func() string
	maxAttachmentBytes int64
	allowedMimeTypes   map[string]bool
}

// NewService wires a Service.
func NewService(store Store, now func() int64, newID func() string, options ...ServiceOption) (*Service, error) {
	if store == nil || now == nil || newID == nil {
		return nil, fmt.Errorf("%w: nil dependency", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:              store,
		nowFn:              now,
		idFn:               newID,
		maxAttachmentBytes: defaultMaxAttachmentBytes,
		allowedMimeTypes:   defaultAllowedMimeTypes(),
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Create opens a new thread for the caller.
func (service *Service) Create(ctx context.Context, userID string, input CreateInput) (Inquiry, error) {
	if strings.TrimSpace(input.Title) == "" {
		return Inquiry{}, fmt.Errorf("%w: title is required", ErrInvalidInquiry)
	}
	if input.SlotID == "" && input.GuaranteeSlotID == "" {
		return Inquiry{}, fmt.Errorf("%w: a slot or guarantee slot is required", ErrInvalidInquiry)
	}
	created := Inquiry{
		InquiryID:       service.idFn(),
		SlotID:          input.SlotID,
		GuaranteeSlotID: input.GuaranteeSlotID,
		CampaignID:      input.CampaignID,
		UserID:          userID,
		DistributorID:   input.DistributorID,
		Status:          StatusOpen,
		Title:           input.Title,
		Category:        input.Category,
		CreatedUnixUTC:  service.nowFn(),
	}
	if err := service.store.InsertInquiry(ctx, created); err != nil {
		return Inquiry{}, err
	}
	return created, nil
}

// SendMessage appends a message to an open thread. Attachment metadata is
// validated against the size and mime-type limits before any write.
func (service *Service) SendMessage(ctx context.Context, inquiryID string, senderID string, senderRole role.Role, content string, attachments []Attachment) (Message, error) {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return Message{}, fmt.Errorf("%w: content or attachments required", ErrInvalidMessage)
	}
	for _, attachment := range attachments {
		if err := service.validateAttachment(attachment); err != nil {
			return Message{}, err
		}
	}
	thread, err := service.store.GetInquiry(ctx, inquiryID)
	if err != nil {
		return Message{}, err
	}
	if err := requireParticipant(thread, senderID, senderRole); err != nil {
		return Message{}, err
	}
	if thread.Status == StatusClosed {
		return Message{}, ErrInquiryClosed
	}
	message := Message{
		MessageID:      service.idFn(),
		InquiryID:      inquiryID,
		SenderID:       senderID,
		SenderRole:     senderRole,
		Content:        content,
		Attachments:    attachments,
		CreatedUnixUTC: service.nowFn(),
	}
	if err := service.store.InsertMessage(ctx, message); err != nil {
		return Message{}, err
	}
	return message, nil
}

// Poll returns messages newer than sinceUnixUTC in created-at order and marks
// messages from other senders as read for the viewer. Callers repeat it on an
// interval; merging the result into an existing view goes through
// MergeThread, which keeps ordering and drops duplicate ids.
func (service *Service) Poll(ctx context.Context, inquiryID string, viewerID string, viewerRole role.Role, sinceUnixUTC int64) ([]Message, error) {
	thread, err := service.store.GetInquiry(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(thread, viewerID, viewerRole); err != nil {
		return nil, err
	}
	messages, err := service.store.ListMessagesSince(ctx, inquiryID, sinceUnixUTC)
	if err != nil {
		return nil, err
	}
	sortMessages(messages)
	if err := service.store.MarkMessagesRead(ctx, inquiryID, viewerID); err != nil {
		return nil, err
	}
	return messages, nil
}

// SetStatus moves a thread between open, resolved, and closed.
func (service *Service) SetStatus(ctx context.Context, inquiryID string, callerID string, callerRole role.Role, status Status) error {
	if _, err := ParseStatus(status.String()); err != nil {
		return err
	}
	thread, err := service.store.GetInquiry(ctx, inquiryID)
	if err != nil {
		return err
	}
	if err := requireParticipant(thread, callerID, callerRole); err != nil {
		return err
	}
	return service.store.SetInquiryStatus(ctx, inquiryID, status)
}

// List returns the caller's threads; admins see everything.
func (service *Service) List(ctx context.Context, callerID string, callerRole role.Role) ([]Inquiry, error) {
	return service.store.ListInquiries(ctx, callerID, callerRole)
}

func (service *Service) validateAttachment(attachment Attachment) error {
	if attachment.SizeBytes <= 0 {
		return fmt.Errorf("%w: attachment %q has no size", ErrInvalidMessage, attachment.FileName)
	}
	if attachment.SizeBytes > service.maxAttachmentBytes {
		return fmt.Errorf("%w: %q is %d bytes", ErrAttachmentTooLarge, attachment.FileName, attachment.SizeBytes)
	}
	if !service.allowedMimeTypes[attachment.MimeType] {
		return fmt.Errorf("%w: %q", ErrAttachmentType, attachment.MimeType)
	}
	return nil
}

func requireParticipant(thread Inquiry, callerID string, callerRole role.Role) error {
	if callerRole == role.Admin {
		return nil
	}
	if thread.UserID == callerID || thread.DistributorID == callerID {
		return nil
	}
	return ErrNotFoundOrForbidden
}

// MergeThread merges newly polled messages into an existing view. Duplicate
// ids keep the existing copy; the result is ordered by created-at with the
// message id breaking ties, so two merges of the same inputs always agree.
func MergeThread(existing []Message, polled []Message) []Message {
	seen := make(map[string]bool, len(existing)+len(polled))
	merged := make([]Message, 0, len(existing)+len(polled))
	for _, message := range existing {
		if seen[message.MessageID] {
			continue
		}
		seen[message.MessageID] = true
		merged = append(merged, message)
	}
	for _, message := range polled {
		if seen[message.MessageID] {
			continue
		}
		seen[message.MessageID] = true
		merged = append(merged, message)
	}
	sortMessages(merged)
	return merged
}

func sortMessages(messages []Message) {
	sort.SliceStable(messages, func(left, right int) bool {
		if messages[left].CreatedUnixUTC != messages[right].CreatedUnixUTC {
			return messages[left].CreatedUnixUTC < messages[right].CreatedUnixUTC
		}
		return messages[left].MessageID < messages[right].MessageID
	})
}
