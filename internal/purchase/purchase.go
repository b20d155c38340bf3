// Package purchase implements the keyword slot purchase flow: one debit for
// the whole batch, one slot + history log + pending balance row per keyword,
// and one consolidated cash history entry, all inside a single transaction.
package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adforge/slotmarket/internal/keyword"
	"github.com/adforge/slotmarket/internal/role"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

// Domain-level error values returned by the purchase service.
var (
	ErrNotFoundOrForbidden  = errors.New("keyword not found or not owned by caller")
	ErrInvalidPurchase      = errors.New("invalid purchase")
	ErrInvalidTransition    = errors.New("invalid slot transition")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

const (
	slotCreatedNote   = "slot created"
	slotActivatedNote = "slot activated"
)

// Result reports what one purchase produced.
type Result struct {
	SlotIDs       []string
	TotalCents    int64
	FreeUsedCents int64
	PaidUsedCents int64
	Balance       ledger.Balance
}

// Store is the persistence contract used by Service. Ledger rows and slot
// rows are written through the same transactional store so a batch can never
// be half-applied.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetOwnedKeywords(ctx context.Context, userID string, keywordIDs []string) ([]keyword.Keyword, error)
	GetBalanceForUpdate(ctx context.Context, userID string) (ledger.Balance, error)
	SaveBalance(ctx context.Context, userID string, balance ledger.Balance) error
	InsertCashHistory(ctx context.Context, entry ledger.Entry) error
	InsertSlot(ctx context.Context, record slot.Slot) error
	InsertSlotHistory(ctx context.Context, entry slot.HistoryEntry) error
	InsertPendingBalance(ctx context.Context, pending slot.PendingBalance) error
	GetSlotForUpdate(ctx context.Context, slotID string) (slot.Slot, error)
	UpdateSlotStatus(ctx context.Context, slotID string, from, to slot.Status) error
}

// Notifier receives a callback after a purchase committed.
type Notifier interface {
	SlotsPurchased(ctx context.Context, userID string, slotIDs []string, totalCents int64)
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithNotifier wires a post-commit notifier.
func WithNotifier(notifier Notifier) ServiceOption {
	return func(service *Service) {
		service.notifier = notifier
	}
}

// Service contains the purchase domain logic over a Store.
type Service struct {
	store    Store
	nowFn    func() int64
	idFn     func() string
	notifier Notifier
}

// NewService wires a Service. The id function supplies slot ids, generated
// before insert.
func NewService(store Store, now func() int64, newID func() string, options ...ServiceOption) (*Service, error) {
	if store == nil || now == nil || newID == nil {
		return nil, fmt.Errorf("%w: nil dependency", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, idFn: newID}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Purchase buys one pending slot per keyword at perKeywordCents each. Free
// balance is exhausted before paid balance across the whole batch. Any
// failure discards the entire batch; no keyword is half-purchased.
func (service *Service) Purchase(ctx context.Context, userID string, keywordIDs []string, perKeywordCents int64) (Result, error) {
	if len(keywordIDs) == 0 {
		return Result{}, fmt.Errorf("%w: no keywords selected", ErrInvalidPurchase)
	}
	if perKeywordCents <= 0 {
		return Result{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidPurchase)
	}
	if hasDuplicates(keywordIDs) {
		return Result{}, fmt.Errorf("%w: duplicate keyword ids", ErrInvalidPurchase)
	}
	totalCents := perKeywordCents * int64(len(keywordIDs))

	var result Result
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		owned, err := transactionStore.GetOwnedKeywords(ctx, userID, keywordIDs)
		if err != nil {
			return err
		}
		if len(owned) != len(keywordIDs) {
			return ErrNotFoundOrForbidden
		}

		balance, err := transactionStore.GetBalanceForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		split, err := ledger.SplitDebit(balance, totalCents)
		if err != nil {
			return err
		}

		now := service.nowFn()
		slotIDs := make([]string, 0, len(owned))
		for _, record := range owned {
			slotID := service.idFn()
			inputData, err := snapshotInputData(record, perKeywordCents)
			if err != nil {
				return err
			}
			if err := transactionStore.InsertSlot(ctx, slot.Slot{
				SlotID:         slotID,
				UserID:         userID,
				KeywordID:      record.KeywordID,
				Status:         slot.StatusPending,
				InputDataJSON:  inputData,
				AmountCents:    perKeywordCents,
				CreatedUnixUTC: now,
			}); err != nil {
				return err
			}
			if err := transactionStore.InsertSlotHistory(ctx, slot.HistoryEntry{
				SlotID:         slotID,
				UserID:         userID,
				Action:         "create",
				Note:           slotCreatedNote,
				DetailsJSON:    inputData,
				CreatedUnixUTC: now,
			}); err != nil {
				return err
			}
			if err := transactionStore.InsertPendingBalance(ctx, slot.PendingBalance{
				SlotID:         slotID,
				AmountCents:    perKeywordCents,
				Status:         slot.PendingBalancePending,
				CreatedUnixUTC: now,
			}); err != nil {
				return err
			}
			slotIDs = append(slotIDs, slotID)
		}

		updated, err := ledger.ApplyDebit(balance, split)
		if err != nil {
			return err
		}
		if err := transactionStore.SaveBalance(ctx, userID, updated); err != nil {
			return err
		}
		metadata, err := json.Marshal(map[string]any{
			"slot_ids":          slotIDs,
			"keyword_count":     len(slotIDs),
			"per_keyword_cents": perKeywordCents,
		})
		if err != nil {
			return err
		}
		if err := transactionStore.InsertCashHistory(ctx, ledger.Entry{
			UserID:         userID,
			Type:           ledger.EntryPurchase,
			FreeCents:      -split.FreeCents,
			PaidCents:      -split.PaidCents,
			Note:           fmt.Sprintf("purchased %d keyword slots", len(slotIDs)),
			MetadataJSON:   string(metadata),
			CreatedUnixUTC: now,
		}); err != nil {
			return err
		}

		result = Result{
			SlotIDs:       slotIDs,
			TotalCents:    totalCents,
			FreeUsedCents: split.FreeCents,
			PaidUsedCents: split.PaidCents,
			Balance:       updated,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if service.notifier != nil {
		service.notifier.SlotsPurchased(ctx, userID, result.SlotIDs, result.TotalCents)
	}
	return result, nil
}

// ActivateSlot moves a purchased slot from pending to active once work on it
// starts. The slot's assigned distributor may activate it; an admin may
// activate any slot, including one with no distributor yet.
func (service *Service) ActivateSlot(ctx context.Context, slotID string, callerID string, callerRole role.Role) error {
	if callerRole != role.Distributor && callerRole != role.Admin {
		return ErrNotFoundOrForbidden
	}
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if callerRole == role.Distributor && record.DistributorID != callerID {
			return ErrNotFoundOrForbidden
		}
		if record.Status != slot.StatusPending {
			return fmt.Errorf("%w: cannot activate from %s", ErrInvalidTransition, record.Status)
		}
		if err := transactionStore.UpdateSlotStatus(ctx, slotID, slot.StatusPending, slot.StatusActive); err != nil {
			return err
		}
		return transactionStore.InsertSlotHistory(ctx, slot.HistoryEntry{
			SlotID:         slotID,
			UserID:         callerID,
			Action:         "activate",
			Note:           slotActivatedNote,
			CreatedUnixUTC: service.nowFn(),
		})
	})
}

func snapshotInputData(record keyword.Keyword, perKeywordCents int64) (string, error) {
	snapshot, err := json.Marshal(map[string]any{
		"keyword_id":   record.KeywordID,
		"group_id":     record.GroupID,
		"main_keyword": record.MainKeyword,
		"mid":          record.MID,
		"url":          record.URL,
		"sub_keywords": record.SubKeywords,
		"description":  record.Description,
		"amount_cents": perKeywordCents,
	})
	if err != nil {
		return "", err
	}
	return string(snapshot), nil
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, exists := seen[id]; exists {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
