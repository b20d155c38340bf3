package ledger

import (
	"context"
	"errors"
	"testing"
)

var errStoreFailure = errors.New("store error")

// stubStore keeps everything in memory and restores the pre-transaction
// snapshot when the transactional function fails, mirroring a real rollback.
type stubStore struct {
	balance          Balance
	entries          []Entry
	listEntries      []Entry
	getBalanceError  error
	saveBalanceError error
	insertEntryError error
	listEntriesError error
}

func newStubStore(balance Balance) *stubStore {
	return &stubStore{balance: balance}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	snapshotBalance := store.balance
	snapshotEntries := append([]Entry(nil), store.entries...)
	if err := fn(ctx, store); err != nil {
		store.balance = snapshotBalance
		store.entries = snapshotEntries
		return err
	}
	return nil
}

func (store *stubStore) GetBalanceForUpdate(ctx context.Context, userID string) (Balance, error) {
	if store.getBalanceError != nil {
		return Balance{}, store.getBalanceError
	}
	return store.balance, nil
}

func (store *stubStore) SaveBalance(ctx context.Context, userID string, balance Balance) error {
	if store.saveBalanceError != nil {
		return store.saveBalanceError
	}
	store.balance = balance
	return nil
}

func (store *stubStore) InsertEntry(ctx context.Context, entry Entry) error {
	if store.insertEntryError != nil {
		return store.insertEntryError
	}
	store.entries = append(store.entries, entry)
	return nil
}

func (store *stubStore) ListEntries(ctx context.Context, userID string, beforeUnixUTC int64, limit int) ([]Entry, error) {
	if store.listEntriesError != nil {
		return nil, store.listEntriesError
	}
	return append([]Entry(nil), store.listEntries...), nil
}

func mustNewService(test *testing.T, store Store) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return 100 })
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	value, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}

func mustPositiveAmount(test *testing.T, raw int64) PositiveAmountCents {
	test.Helper()
	value, err := NewPositiveAmountCents(raw)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	return value
}

func mustMetadata(test *testing.T, raw string) MetadataJSON {
	test.Helper()
	value, err := NewMetadataJSON(raw)
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	return value
}
