package ledger

import (
	"context"
	"fmt"
)

// Service contains the cash ledger domain logic over a Store. Every mutation
// runs inside one store transaction and appends exactly one history entry
// whose signed split matches the balance delta.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Balance returns the user's current free/paid position.
func (service *Service) Balance(ctx context.Context, userID UserID) (Balance, error) {
	var balance Balance
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, err := transactionStore.GetBalanceForUpdate(ctx, userID.String())
		if err != nil {
			return err
		}
		balance = current
		return nil
	})
	return balance, err
}

// Charge credits purchased cash to the paid pool.
func (service *Service) Charge(ctx context.Context, userID UserID, amount PositiveAmountCents, note string, metadata MetadataJSON) error {
	operationError := service.credit(ctx, userID, amount, EntryCharge, balancePoolPaid, note, metadata)
	service.logOperation(ctx, OperationLog{
		Operation: operationCharge,
		UserID:    userID,
		EntryType: EntryCharge,
		PaidCents: amount.Int64(),
		Error:     operationError,
	})
	return operationError
}

// GrantBonus credits promotional cash to the free pool.
func (service *Service) GrantBonus(ctx context.Context, userID UserID, amount PositiveAmountCents, note string, metadata MetadataJSON) error {
	operationError := service.credit(ctx, userID, amount, EntryBonus, balancePoolFree, note, metadata)
	service.logOperation(ctx, OperationLog{
		Operation: operationGrantBonus,
		UserID:    userID,
		EntryType: EntryBonus,
		FreeCents: amount.Int64(),
		Error:     operationError,
	})
	return operationError
}

// CreditPaid credits the paid pool with an explicit entry type, used by
// refund payouts.
func (service *Service) CreditPaid(ctx context.Context, userID UserID, amount PositiveAmountCents, entryType EntryType, note string, metadata MetadataJSON) error {
	operationError := service.credit(ctx, userID, amount, entryType, balancePoolPaid, note, metadata)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreditPaid,
		UserID:    userID,
		EntryType: entryType,
		PaidCents: amount.Int64(),
		Error:     operationError,
	})
	return operationError
}

// CreditFree credits the free pool with an explicit entry type.
func (service *Service) CreditFree(ctx context.Context, userID UserID, amount PositiveAmountCents, entryType EntryType, note string, metadata MetadataJSON) error {
	operationError := service.credit(ctx, userID, amount, entryType, balancePoolFree, note, metadata)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreditFree,
		UserID:    userID,
		EntryType: entryType,
		FreeCents: amount.Int64(),
		Error:     operationError,
	})
	return operationError
}

// Debit takes amount out of the balance, free pool first, failing entirely
// when the combined pools cannot cover it. Returns the realized split.
func (service *Service) Debit(ctx context.Context, userID UserID, amount PositiveAmountCents, entryType EntryType, note string, metadata MetadataJSON) (DebitSplit, error) {
	var split DebitSplit
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		balance, err := transactionStore.GetBalanceForUpdate(ctx, userID.String())
		if err != nil {
			return err
		}
		split, err = SplitDebit(balance, amount.Int64())
		if err != nil {
			return err
		}
		updated, err := ApplyDebit(balance, split)
		if err != nil {
			return err
		}
		if err := transactionStore.SaveBalance(ctx, userID.String(), updated); err != nil {
			return err
		}
		return transactionStore.InsertEntry(ctx, Entry{
			UserID:         userID.String(),
			Type:           entryType,
			FreeCents:      -split.FreeCents,
			PaidCents:      -split.PaidCents,
			Note:           note,
			MetadataJSON:   metadata.String(),
			CreatedUnixUTC: service.nowFn(),
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDebit,
		UserID:    userID,
		EntryType: entryType,
		FreeCents: -split.FreeCents,
		PaidCents: -split.PaidCents,
		Error:     operationError,
	})
	if operationError != nil {
		return DebitSplit{}, operationError
	}
	return split, nil
}

// History lists cash history entries for a user before a cutoff time.
func (service *Service) History(ctx context.Context, userID UserID, beforeUnixUTC int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if beforeUnixUTC == 0 {
		beforeUnixUTC = service.nowFn() + 1
	}
	return service.store.ListEntries(ctx, userID.String(), beforeUnixUTC, limit)
}

type balancePool int

const (
	balancePoolFree balancePool = iota
	balancePoolPaid

	defaultHistoryLimit = 50
)

func (service *Service) credit(ctx context.Context, userID UserID, amount PositiveAmountCents, entryType EntryType, pool balancePool, note string, metadata MetadataJSON) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		balance, err := transactionStore.GetBalanceForUpdate(ctx, userID.String())
		if err != nil {
			return err
		}
		entry := Entry{
			UserID:         userID.String(),
			Type:           entryType,
			Note:           note,
			MetadataJSON:   metadata.String(),
			CreatedUnixUTC: service.nowFn(),
		}
		switch pool {
		case balancePoolFree:
			balance.FreeCents += amount.Int64()
			entry.FreeCents = amount.Int64()
		case balancePoolPaid:
			balance.PaidCents += amount.Int64()
			entry.PaidCents = amount.Int64()
		}
		if err := transactionStore.SaveBalance(ctx, userID.String(), balance); err != nil {
			return err
		}
		return transactionStore.InsertEntry(ctx, entry)
	})
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
