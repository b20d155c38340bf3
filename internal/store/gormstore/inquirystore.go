package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/adforge/slotmarket/internal/inquiry"
	"github.com/adforge/slotmarket/internal/role"
)

// InquiryStore implements inquiry.Store.
type InquiryStore struct {
	db *gorm.DB
}

// NewInquiryStore returns an InquiryStore backed by gorm.DB.
func NewInquiryStore(db *gorm.DB) *InquiryStore {
	return &InquiryStore{db: db}
}

func (store *InquiryStore) InsertInquiry(ctx context.Context, thread inquiry.Inquiry) error {
	createdAt := time.Unix(thread.CreatedUnixUTC, 0).UTC()
	row := InquiryRecord{
		InquiryID:       thread.InquiryID,
		SlotID:          thread.SlotID,
		GuaranteeSlotID: thread.GuaranteeSlotID,
		CampaignID:      thread.CampaignID,
		UserID:          thread.UserID,
		DistributorID:   thread.DistributorID,
		Status:          thread.Status.String(),
		Title:           thread.Title,
		Category:        thread.Category,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectInquiry, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectInquiry, errorCodeInsert, err)
	}
	return nil
}

func (store *InquiryStore) GetInquiry(ctx context.Context, inquiryID string) (inquiry.Inquiry, error) {
	var row InquiryRecord
	err := store.db.WithContext(ctx).
		Where("inquiry_id = ?", inquiryID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return inquiry.Inquiry{}, inquiry.ErrNotFoundOrForbidden
	}
	if err != nil {
		return inquiry.Inquiry{}, wrapStoreError(errorSubjectInquiry, errorCodeGet, err)
	}
	return inquiryFromRow(row)
}

func (store *InquiryStore) SetInquiryStatus(ctx context.Context, inquiryID string, status inquiry.Status) error {
	result := store.db.WithContext(ctx).
		Model(&InquiryRecord{}).
		Where("inquiry_id = ?", inquiryID).
		Updates(map[string]any{
			"status":     status.String(),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectInquiry, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return inquiry.ErrNotFoundOrForbidden
	}
	return nil
}

func (store *InquiryStore) ListInquiries(ctx context.Context, userID string, callerRole role.Role) ([]inquiry.Inquiry, error) {
	query := store.db.WithContext(ctx)
	if callerRole != role.Admin {
		query = query.Where("user_id = ? OR distributor_id = ?", userID, userID)
	}
	var rows []InquiryRecord
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectInquiry, errorCodeList, err)
	}
	threads := make([]inquiry.Inquiry, 0, len(rows))
	for _, row := range rows {
		thread, err := inquiryFromRow(row)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

func (store *InquiryStore) InsertMessage(ctx context.Context, message inquiry.Message) error {
	attachments, err := json.Marshal(message.Attachments)
	if err != nil {
		return wrapStoreError(errorSubjectInqMessage, errorCodeInvalid, err)
	}
	row := InquiryMessageRecord{
		MessageID:   message.MessageID,
		InquiryID:   message.InquiryID,
		SenderID:    message.SenderID,
		SenderRole:  message.SenderRole.String(),
		Content:     message.Content,
		Attachments: datatypesJSONArray(string(attachments)),
		IsRead:      message.IsRead,
		CreatedAt:   time.Unix(message.CreatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectInqMessage, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectInqMessage, errorCodeInsert, err)
	}
	return nil
}

func (store *InquiryStore) ListMessagesSince(ctx context.Context, inquiryID string, sinceUnixUTC int64) ([]inquiry.Message, error) {
	since := time.Unix(sinceUnixUTC, 0).UTC()
	var rows []InquiryMessageRecord
	err := store.db.WithContext(ctx).
		Where("inquiry_id = ? AND created_at > ?", inquiryID, since).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectInqMessage, errorCodeList, err)
	}
	messages := make([]inquiry.Message, 0, len(rows))
	for _, row := range rows {
		message, err := inquiryMessageFromRow(row)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (store *InquiryStore) MarkMessagesRead(ctx context.Context, inquiryID string, readerID string) error {
	err := store.db.WithContext(ctx).
		Model(&InquiryMessageRecord{}).
		Where("inquiry_id = ? AND sender_id <> ? AND is_read = ?", inquiryID, readerID, false).
		Update("is_read", true).Error
	if err != nil {
		return wrapStoreError(errorSubjectInqMessage, errorCodeUpdate, err)
	}
	return nil
}

func inquiryFromRow(row InquiryRecord) (inquiry.Inquiry, error) {
	status, err := inquiry.ParseStatus(row.Status)
	if err != nil {
		return inquiry.Inquiry{}, wrapStoreError(errorSubjectInquiry, errorCodeInvalid, err)
	}
	return inquiry.Inquiry{
		InquiryID:       row.InquiryID,
		SlotID:          row.SlotID,
		GuaranteeSlotID: row.GuaranteeSlotID,
		CampaignID:      row.CampaignID,
		UserID:          row.UserID,
		DistributorID:   row.DistributorID,
		Status:          status,
		Title:           row.Title,
		Category:        row.Category,
		CreatedUnixUTC:  row.CreatedAt.Unix(),
	}, nil
}

func inquiryMessageFromRow(row InquiryMessageRecord) (inquiry.Message, error) {
	senderRole, err := role.Parse(row.SenderRole)
	if err != nil {
		return inquiry.Message{}, wrapStoreError(errorSubjectInqMessage, errorCodeInvalid, err)
	}
	var attachments []inquiry.Attachment
	if len(row.Attachments) > 0 {
		if err := json.Unmarshal(row.Attachments, &attachments); err != nil {
			return inquiry.Message{}, wrapStoreError(errorSubjectInqMessage, errorCodeInvalid, err)
		}
	}
	return inquiry.Message{
		MessageID:      row.MessageID,
		InquiryID:      row.InquiryID,
		SenderID:       row.SenderID,
		SenderRole:     senderRole,
		Content:        row.Content,
		Attachments:    attachments,
		IsRead:         row.IsRead,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}
