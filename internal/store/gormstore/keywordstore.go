package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/adforge/slotmarket/internal/keyword"
)

// KeywordStore implements keyword.Store.
type KeywordStore struct {
	db *gorm.DB
}

// NewKeywordStore returns a KeywordStore backed by gorm.DB.
func NewKeywordStore(db *gorm.DB) *KeywordStore {
	return &KeywordStore{db: db}
}

func (store *KeywordStore) InsertGroup(ctx context.Context, group keyword.Group) error {
	row := KeywordGroup{
		GroupID:   group.GroupID,
		UserID:    group.UserID,
		Name:      group.Name,
		CreatedAt: time.Unix(group.CreatedUnixUTC, 0).UTC(),
		UpdatedAt: time.Unix(group.UpdatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectGroup, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectGroup, errorCodeInsert, err)
	}
	return nil
}

func (store *KeywordStore) GetGroupOwner(ctx context.Context, groupID string) (string, error) {
	var row KeywordGroup
	err := store.db.WithContext(ctx).
		Select("group_id", "user_id").
		Where("group_id = ?", groupID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", keyword.ErrGroupNotFound
	}
	if err != nil {
		return "", wrapStoreError(errorSubjectGroup, errorCodeGet, err)
	}
	return row.UserID, nil
}

func (store *KeywordStore) ListGroups(ctx context.Context, userID string) ([]keyword.Group, error) {
	var rows []KeywordGroup
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectGroup, errorCodeList, err)
	}
	groups := make([]keyword.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, keyword.Group{
			GroupID:        row.GroupID,
			UserID:         row.UserID,
			Name:           row.Name,
			CreatedUnixUTC: row.CreatedAt.Unix(),
			UpdatedUnixUTC: row.UpdatedAt.Unix(),
		})
	}
	return groups, nil
}

func (store *KeywordStore) DeleteGroup(ctx context.Context, groupID string) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Where("group_id = ?", groupID).Delete(&KeywordRecord{}).Error; err != nil {
			return wrapStoreError(errorSubjectKeyword, errorCodeDelete, err)
		}
		result := transaction.Where("group_id = ?", groupID).Delete(&KeywordGroup{})
		if result.Error != nil {
			return wrapStoreError(errorSubjectGroup, errorCodeDelete, result.Error)
		}
		if result.RowsAffected == 0 {
			return keyword.ErrGroupNotFound
		}
		return nil
	})
}

func (store *KeywordStore) InsertKeyword(ctx context.Context, record keyword.Keyword) error {
	row, err := keywordRow(record)
	if err != nil {
		return wrapStoreError(errorSubjectKeyword, errorCodeInvalid, err)
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectKeyword, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectKeyword, errorCodeInsert, err)
	}
	return nil
}

func (store *KeywordStore) GetKeyword(ctx context.Context, keywordID string) (keyword.Keyword, string, error) {
	var row KeywordRecord
	err := store.db.WithContext(ctx).
		Where("keyword_id = ?", keywordID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return keyword.Keyword{}, "", keyword.ErrNotFoundOrForbidden
	}
	if err != nil {
		return keyword.Keyword{}, "", wrapStoreError(errorSubjectKeyword, errorCodeGet, err)
	}
	ownerID, err := store.GetGroupOwner(ctx, row.GroupID)
	if err != nil {
		return keyword.Keyword{}, "", err
	}
	record, err := keywordFromRow(row)
	if err != nil {
		return keyword.Keyword{}, "", wrapStoreError(errorSubjectKeyword, errorCodeInvalid, err)
	}
	return record, ownerID, nil
}

func (store *KeywordStore) UpdateKeyword(ctx context.Context, record keyword.Keyword) error {
	subKeywords, err := json.Marshal(record.SubKeywords)
	if err != nil {
		return wrapStoreError(errorSubjectKeyword, errorCodeInvalid, err)
	}
	result := store.db.WithContext(ctx).
		Model(&KeywordRecord{}).
		Where("keyword_id = ?", record.KeywordID).
		Updates(map[string]any{
			"main_keyword": record.MainKeyword,
			"mid":          record.MID,
			"url":          record.URL,
			"sub_keywords": datatypesJSONArray(string(subKeywords)),
			"description":  record.Description,
			"updated_at":   time.Unix(record.UpdatedUnixUTC, 0).UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectKeyword, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return keyword.ErrNotFoundOrForbidden
	}
	return nil
}

func (store *KeywordStore) SetKeywordActive(ctx context.Context, keywordID string, active bool, updatedUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&KeywordRecord{}).
		Where("keyword_id = ?", keywordID).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": time.Unix(updatedUnixUTC, 0).UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectKeyword, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return keyword.ErrNotFoundOrForbidden
	}
	return nil
}

func (store *KeywordStore) DeleteKeyword(ctx context.Context, keywordID string) error {
	result := store.db.WithContext(ctx).
		Where("keyword_id = ?", keywordID).
		Delete(&KeywordRecord{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectKeyword, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return keyword.ErrNotFoundOrForbidden
	}
	return nil
}

func (store *KeywordStore) ListKeywords(ctx context.Context, groupID string) ([]keyword.Keyword, error) {
	var rows []KeywordRecord
	err := store.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectKeyword, errorCodeList, err)
	}
	records := make([]keyword.Keyword, 0, len(rows))
	for _, row := range rows {
		record, err := keywordFromRow(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectKeyword, errorCodeInvalid, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func keywordRow(record keyword.Keyword) (KeywordRecord, error) {
	subKeywords, err := json.Marshal(record.SubKeywords)
	if err != nil {
		return KeywordRecord{}, err
	}
	return KeywordRecord{
		KeywordID:   record.KeywordID,
		GroupID:     record.GroupID,
		MainKeyword: record.MainKeyword,
		MID:         record.MID,
		URL:         record.URL,
		SubKeywords: datatypesJSONArray(string(subKeywords)),
		Description: record.Description,
		IsActive:    record.IsActive,
		CreatedAt:   time.Unix(record.CreatedUnixUTC, 0).UTC(),
		UpdatedAt:   time.Unix(record.UpdatedUnixUTC, 0).UTC(),
	}, nil
}

func keywordFromRow(row KeywordRecord) (keyword.Keyword, error) {
	var subKeywords []string
	if len(row.SubKeywords) > 0 {
		if err := json.Unmarshal(row.SubKeywords, &subKeywords); err != nil {
			return keyword.Keyword{}, err
		}
	}
	return keyword.Keyword{
		KeywordID:      row.KeywordID,
		GroupID:        row.GroupID,
		MainKeyword:    row.MainKeyword,
		MID:            row.MID,
		URL:            row.URL,
		SubKeywords:    subKeywords,
		Description:    row.Description,
		IsActive:       row.IsActive,
		CreatedUnixUTC: row.CreatedAt.Unix(),
		UpdatedUnixUTC: row.UpdatedAt.Unix(),
	}, nil
}
