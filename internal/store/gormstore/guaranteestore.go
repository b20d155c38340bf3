package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adforge/slotmarket/internal/guarantee"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

// GuaranteeStore implements guarantee.Store.
type GuaranteeStore struct {
	db *gorm.DB
}

// NewGuaranteeStore returns a GuaranteeStore backed by gorm.DB.
func NewGuaranteeStore(db *gorm.DB) *GuaranteeStore {
	return &GuaranteeStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *GuaranteeStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore guarantee.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &GuaranteeStore{db: transaction})
	})
}

func (store *GuaranteeStore) InsertRequest(ctx context.Context, request guarantee.Request) error {
	createdAt := time.Unix(request.CreatedUnixUTC, 0).UTC()
	row := GuaranteeSlotRequest{
		RequestID:          request.RequestID,
		CampaignID:         request.CampaignID,
		UserID:             request.UserID,
		DistributorID:      request.DistributorID,
		KeywordID:          request.KeywordID,
		TargetRank:         request.TargetRank,
		GuaranteeCount:     request.GuaranteeCount,
		InitialBudgetCents: request.InitialBudgetCents,
		FinalDailyCents:    request.FinalDailyCents,
		FinalTotalCents:    request.FinalTotalCents,
		Status:             request.Status.String(),
		InputData:          datatypesJSON(request.InputDataJSON),
		StartDate:          timePtr(request.StartDateUnixUTC),
		EndDate:            timePtr(request.EndDateUnixUTC),
		ExpiresAt:          timePtr(request.ExpiresAtUnixUTC),
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectGuarantee, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectGuarantee, errorCodeInsert, err)
	}
	return nil
}

func (store *GuaranteeStore) GetRequest(ctx context.Context, requestID string) (guarantee.Request, error) {
	return store.getRequest(ctx, requestID, false)
}

func (store *GuaranteeStore) GetRequestForUpdate(ctx context.Context, requestID string) (guarantee.Request, error) {
	return store.getRequest(ctx, requestID, true)
}

func (store *GuaranteeStore) getRequest(ctx context.Context, requestID string, forUpdate bool) (guarantee.Request, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row GuaranteeSlotRequest
	err := query.Where("request_id = ?", requestID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return guarantee.Request{}, guarantee.ErrNotFoundOrForbidden
	}
	if err != nil {
		return guarantee.Request{}, wrapStoreError(errorSubjectGuarantee, errorCodeGet, err)
	}
	return guaranteeRequestFromRow(row)
}

func (store *GuaranteeStore) UpdateRequestStatus(ctx context.Context, requestID string, from, to guarantee.RequestStatus) error {
	result := store.db.WithContext(ctx).
		Model(&GuaranteeSlotRequest{}).
		Where("request_id = ? AND status = ?", requestID, from.String()).
		Updates(map[string]any{
			"status":     to.String(),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectGuarantee, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: request %s is not %s", guarantee.ErrInvalidTransition, requestID, from)
	}
	return nil
}

func (store *GuaranteeStore) SetRequestFinalAmounts(ctx context.Context, requestID string, dailyCents, totalCents int64) error {
	result := store.db.WithContext(ctx).
		Model(&GuaranteeSlotRequest{}).
		Where("request_id = ?", requestID).
		Updates(map[string]any{
			"final_daily_cents": dailyCents,
			"final_total_cents": totalCents,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectGuarantee, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return guarantee.ErrNotFoundOrForbidden
	}
	return nil
}

func (store *GuaranteeStore) ListRequests(ctx context.Context, userID string, distributorID string) ([]guarantee.Request, error) {
	query := store.db.WithContext(ctx)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if distributorID != "" {
		query = query.Where("distributor_id = ?", distributorID)
	}
	var rows []GuaranteeSlotRequest
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectGuarantee, errorCodeList, err)
	}
	requests := make([]guarantee.Request, 0, len(rows))
	for _, row := range rows {
		request, err := guaranteeRequestFromRow(row)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// ExpireRequests closes every open negotiation whose deadline has passed.
func (store *GuaranteeStore) ExpireRequests(ctx context.Context, nowUnixUTC int64) (int64, error) {
	now := time.Unix(nowUnixUTC, 0).UTC()
	result := store.db.WithContext(ctx).
		Model(&GuaranteeSlotRequest{}).
		Where("status IN ? AND expires_at IS NOT NULL AND expires_at <= ?",
			[]string{guarantee.RequestRequested.String(), guarantee.RequestNegotiating.String()}, now).
		Updates(map[string]any{
			"status":     guarantee.RequestExpired.String(),
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectGuarantee, errorCodeUpdateStatus, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *GuaranteeStore) InsertMessage(ctx context.Context, message guarantee.Message) error {
	row := GuaranteeNegotiationMessage{
		MessageID:          message.MessageID,
		RequestID:          message.RequestID,
		SenderID:           message.SenderID,
		SenderRole:         message.SenderRole,
		Content:            message.Content,
		ProposedDailyCents: message.ProposedDailyCents,
		ProposedTotalCents: message.ProposedTotalCents,
		CreatedAt:          time.Unix(message.CreatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectNegotiate, errorCodeInsert, err)
	}
	return nil
}

func (store *GuaranteeStore) ListMessages(ctx context.Context, requestID string) ([]guarantee.Message, error) {
	var rows []GuaranteeNegotiationMessage
	err := store.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectNegotiate, errorCodeList, err)
	}
	messages := make([]guarantee.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, guarantee.Message{
			MessageID:          row.MessageID,
			RequestID:          row.RequestID,
			SenderID:           row.SenderID,
			SenderRole:         row.SenderRole,
			Content:            row.Content,
			ProposedDailyCents: row.ProposedDailyCents,
			ProposedTotalCents: row.ProposedTotalCents,
			CreatedUnixUTC:     row.CreatedAt.Unix(),
		})
	}
	return messages, nil
}

func (store *GuaranteeStore) InsertGuaranteeSlot(ctx context.Context, record guarantee.Slot) error {
	row := GuaranteeSlot{
		GuaranteeSlotID: record.GuaranteeSlotID,
		RequestID:       record.RequestID,
		SlotID:          record.SlotID,
		Status:          record.Status.String(),
		StartDate:       timePtr(record.StartDateUnixUTC),
		EndDate:         timePtr(record.EndDateUnixUTC),
		CreatedAt:       time.Unix(record.CreatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateError(err) {
			return wrapStoreError(errorSubjectGSlot, errorCodeDuplicate, err)
		}
		return wrapStoreError(errorSubjectGSlot, errorCodeInsert, err)
	}
	return nil
}

func (store *GuaranteeStore) GetGuaranteeSlotForUpdate(ctx context.Context, guaranteeSlotID string) (guarantee.Slot, error) {
	var row GuaranteeSlot
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("guarantee_slot_id = ?", guaranteeSlotID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return guarantee.Slot{}, guarantee.ErrNotFoundOrForbidden
	}
	if err != nil {
		return guarantee.Slot{}, wrapStoreError(errorSubjectGSlot, errorCodeGet, err)
	}
	status, err := guarantee.ParseSlotStatus(row.Status)
	if err != nil {
		return guarantee.Slot{}, wrapStoreError(errorSubjectGSlot, errorCodeInvalid, err)
	}
	return guarantee.Slot{
		GuaranteeSlotID:  row.GuaranteeSlotID,
		RequestID:        row.RequestID,
		SlotID:           row.SlotID,
		Status:           status,
		ApprovedAtUnix:   unixOrZero(row.ApprovedAt),
		ApprovedBy:       row.ApprovedBy,
		RejectedAtUnix:   unixOrZero(row.RejectedAt),
		RejectedBy:       row.RejectedBy,
		RejectionReason:  row.RejectionReason,
		StartDateUnixUTC: unixOrZero(row.StartDate),
		EndDateUnixUTC:   unixOrZero(row.EndDate),
		CreatedUnixUTC:   row.CreatedAt.Unix(),
	}, nil
}

func (store *GuaranteeStore) ApproveGuaranteeSlot(ctx context.Context, guaranteeSlotID string, approverID string, nowUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&GuaranteeSlot{}).
		Where("guarantee_slot_id = ? AND status = ?", guaranteeSlotID, guarantee.SlotPending.String()).
		Updates(map[string]any{
			"status":      guarantee.SlotActive.String(),
			"approved_at": time.Unix(nowUnixUTC, 0).UTC(),
			"approved_by": approverID,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectGSlot, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: guarantee slot %s is not %s", guarantee.ErrInvalidTransition, guaranteeSlotID, guarantee.SlotPending)
	}
	return nil
}

func (store *GuaranteeStore) RejectGuaranteeSlot(ctx context.Context, guaranteeSlotID string, rejecterID string, reason string, nowUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&GuaranteeSlot{}).
		Where("guarantee_slot_id = ? AND status = ?", guaranteeSlotID, guarantee.SlotPending.String()).
		Updates(map[string]any{
			"status":           guarantee.SlotRejected.String(),
			"rejected_at":      time.Unix(nowUnixUTC, 0).UTC(),
			"rejected_by":      rejecterID,
			"rejection_reason": reason,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectGSlot, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: guarantee slot %s is not %s", guarantee.ErrInvalidTransition, guaranteeSlotID, guarantee.SlotPending)
	}
	return nil
}

func (store *GuaranteeStore) UpdateGuaranteeSlotStatus(ctx context.Context, guaranteeSlotID string, from, to guarantee.SlotStatus) error {
	result := store.db.WithContext(ctx).
		Model(&GuaranteeSlot{}).
		Where("guarantee_slot_id = ? AND status = ?", guaranteeSlotID, from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectGSlot, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: guarantee slot %s is not %s", guarantee.ErrInvalidTransition, guaranteeSlotID, from)
	}
	return nil
}

func (store *GuaranteeStore) GetBalanceForUpdate(ctx context.Context, userID string) (ledger.Balance, error) {
	return getBalanceForUpdate(ctx, store.db, userID)
}

func (store *GuaranteeStore) SaveBalance(ctx context.Context, userID string, balance ledger.Balance) error {
	return saveBalance(ctx, store.db, userID, balance)
}

func (store *GuaranteeStore) InsertCashHistory(ctx context.Context, entry ledger.Entry) error {
	return insertCashHistory(ctx, store.db, entry)
}

func (store *GuaranteeStore) InsertSlotRecord(ctx context.Context, record slot.Slot) error {
	return insertSlotRecord(ctx, store.db, record)
}

func (store *GuaranteeStore) InsertSlotHistory(ctx context.Context, entry slot.HistoryEntry) error {
	return insertSlotHistory(ctx, store.db, entry)
}

func (store *GuaranteeStore) InsertPendingBalance(ctx context.Context, pending slot.PendingBalance) error {
	return insertPendingBalance(ctx, store.db, pending)
}

func (store *GuaranteeStore) UpdateSlotStatus(ctx context.Context, slotID string, from, to slot.Status) error {
	return updateSlotStatus(ctx, store.db, slotID, from, to, guarantee.ErrInvalidTransition)
}

func guaranteeRequestFromRow(row GuaranteeSlotRequest) (guarantee.Request, error) {
	status, err := guarantee.ParseRequestStatus(row.Status)
	if err != nil {
		return guarantee.Request{}, wrapStoreError(errorSubjectGuarantee, errorCodeInvalid, err)
	}
	return guarantee.Request{
		RequestID:          row.RequestID,
		CampaignID:         row.CampaignID,
		UserID:             row.UserID,
		DistributorID:      row.DistributorID,
		KeywordID:          row.KeywordID,
		TargetRank:         row.TargetRank,
		GuaranteeCount:     row.GuaranteeCount,
		InitialBudgetCents: row.InitialBudgetCents,
		FinalDailyCents:    row.FinalDailyCents,
		FinalTotalCents:    row.FinalTotalCents,
		Status:             status,
		InputDataJSON:      string(row.InputData),
		StartDateUnixUTC:   unixOrZero(row.StartDate),
		EndDateUnixUTC:     unixOrZero(row.EndDate),
		ExpiresAtUnixUTC:   unixOrZero(row.ExpiresAt),
		CreatedUnixUTC:     row.CreatedAt.Unix(),
	}, nil
}
