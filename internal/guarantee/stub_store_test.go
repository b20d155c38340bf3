package guarantee

import (
	"context"

	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

type stubStore struct {
	requests       map[string]Request
	messages       map[string][]Message
	guaranteeSlots map[string]Slot
	slotRecords    map[string]slot.Slot
	histories      []slot.HistoryEntry
	pendings       []slot.PendingBalance
	cashEntries    []ledger.Entry
	balance        ledger.Balance
}

func newStubStore() *stubStore {
	return &stubStore{
		requests:       map[string]Request{},
		messages:       map[string][]Message{},
		guaranteeSlots: map[string]Slot{},
		slotRecords:    map[string]slot.Slot{},
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	snapshot := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(snapshot)
		return err
	}
	return nil
}

func (store *stubStore) snapshot() *stubStore {
	copyRequests := make(map[string]Request, len(store.requests))
	for id, request := range store.requests {
		copyRequests[id] = request
	}
	copyMessages := make(map[string][]Message, len(store.messages))
	for id, thread := range store.messages {
		copyMessages[id] = append([]Message(nil), thread...)
	}
	copySlots := make(map[string]Slot, len(store.guaranteeSlots))
	for id, record := range store.guaranteeSlots {
		copySlots[id] = record
	}
	copyRecords := make(map[string]slot.Slot, len(store.slotRecords))
	for id, record := range store.slotRecords {
		copyRecords[id] = record
	}
	return &stubStore{
		requests:       copyRequests,
		messages:       copyMessages,
		guaranteeSlots: copySlots,
		slotRecords:    copyRecords,
		histories:      append([]slot.HistoryEntry(nil), store.histories...),
		pendings:       append([]slot.PendingBalance(nil), store.pendings...),
		cashEntries:    append([]ledger.Entry(nil), store.cashEntries...),
		balance:        store.balance,
	}
}

func (store *stubStore) restore(snapshot *stubStore) {
	store.requests = snapshot.requests
	store.messages = snapshot.messages
	store.guaranteeSlots = snapshot.guaranteeSlots
	store.slotRecords = snapshot.slotRecords
	store.histories = snapshot.histories
	store.pendings = snapshot.pendings
	store.cashEntries = snapshot.cashEntries
	store.balance = snapshot.balance
}

func (store *stubStore) InsertRequest(ctx context.Context, request Request) error {
	store.requests[request.RequestID] = request
	return nil
}

func (store *stubStore) GetRequest(ctx context.Context, requestID string) (Request, error) {
	request, ok := store.requests[requestID]
	if !ok {
		return Request{}, ErrNotFoundOrForbidden
	}
	return request, nil
}

func (store *stubStore) GetRequestForUpdate(ctx context.Context, requestID string) (Request, error) {
	return store.GetRequest(ctx, requestID)
}

func (store *stubStore) UpdateRequestStatus(ctx context.Context, requestID string, from, to RequestStatus) error {
	request, ok := store.requests[requestID]
	if !ok {
		return ErrNotFoundOrForbidden
	}
	if request.Status != from {
		return ErrInvalidTransition
	}
	request.Status = to
	store.requests[requestID] = request
	return nil
}

func (store *stubStore) SetRequestFinalAmounts(ctx context.Context, requestID string, dailyCents, totalCents int64) error {
	request, ok := store.requests[requestID]
	if !ok {
		return ErrNotFoundOrForbidden
	}
	request.FinalDailyCents = dailyCents
	request.FinalTotalCents = totalCents
	store.requests[requestID] = request
	return nil
}

func (store *stubStore) ListRequests(ctx context.Context, userID string, distributorID string) ([]Request, error) {
	var requests []Request
	for _, request := range store.requests {
		if userID != "" && request.UserID != userID {
			continue
		}
		if distributorID != "" && request.DistributorID != distributorID {
			continue
		}
		requests = append(requests, request)
	}
	return requests, nil
}

func (store *stubStore) ExpireRequests(ctx context.Context, nowUnixUTC int64) (int64, error) {
	var count int64
	for id, request := range store.requests {
		open := request.Status == RequestRequested || request.Status == RequestNegotiating
		if open && request.ExpiresAtUnixUTC != 0 && request.ExpiresAtUnixUTC <= nowUnixUTC {
			request.Status = RequestExpired
			store.requests[id] = request
			count++
		}
	}
	return count, nil
}

func (store *stubStore) InsertMessage(ctx context.Context, message Message) error {
	store.messages[message.RequestID] = append(store.messages[message.RequestID], message)
	return nil
}

func (store *stubStore) ListMessages(ctx context.Context, requestID string) ([]Message, error) {
	return append([]Message(nil), store.messages[requestID]...), nil
}

func (store *stubStore) InsertGuaranteeSlot(ctx context.Context, record Slot) error {
	store.guaranteeSlots[record.GuaranteeSlotID] = record
	return nil
}

func (store *stubStore) GetGuaranteeSlotForUpdate(ctx context.Context, guaranteeSlotID string) (Slot, error) {
	record, ok := store.guaranteeSlots[guaranteeSlotID]
	if !ok {
		return Slot{}, ErrNotFoundOrForbidden
	}
	return record, nil
}

func (store *stubStore) ApproveGuaranteeSlot(ctx context.Context, guaranteeSlotID string, approverID string, nowUnixUTC int64) error {
	record, ok := store.guaranteeSlots[guaranteeSlotID]
	if !ok {
		return ErrNotFoundOrForbidden
	}
	if record.Status != SlotPending {
		return ErrInvalidTransition
	}
	record.Status = SlotActive
	record.ApprovedBy = approverID
	record.ApprovedAtUnix = nowUnixUTC
	store.guaranteeSlots[guaranteeSlotID] = record
	return nil
}

func (store *stubStore) RejectGuaranteeSlot(ctx context.Context, guaranteeSlotID string, rejecterID string, reason string, nowUnixUTC int64) error {
	record, ok := store.guaranteeSlots[guaranteeSlotID]
	if !ok {
		return ErrNotFoundOrForbidden
	}
	if record.Status != SlotPending {
		return ErrInvalidTransition
	}
	record.Status = SlotRejected
	record.RejectedBy = rejecterID
	record.RejectionReason = reason
	record.RejectedAtUnix = nowUnixUTC
	store.guaranteeSlots[guaranteeSlotID] = record
	return nil
}

func (store *stubStore) UpdateGuaranteeSlotStatus(ctx context.Context, guaranteeSlotID string, from, to SlotStatus) error {
	record, ok := store.guaranteeSlots[guaranteeSlotID]
	if !ok {
		return ErrNotFoundOrForbidden
	}
	if record.Status != from {
		return ErrInvalidTransition
	}
	record.Status = to
	store.guaranteeSlots[guaranteeSlotID] = record
	return nil
}

func (store *stubStore) GetBalanceForUpdate(ctx context.Context, userID string) (ledger.Balance, error) {
	return store.balance, nil
}

func (store *stubStore) SaveBalance(ctx context.Context, userID string, balance ledger.Balance) error {
	store.balance = balance
	return nil
}

func (store *stubStore) InsertCashHistory(ctx context.Context, entry ledger.Entry) error {
	store.cashEntries = append(store.cashEntries, entry)
	return nil
}

func (store *stubStore) InsertSlotRecord(ctx context.Context, record slot.Slot) error {
	store.slotRecords[record.SlotID] = record
	return nil
}

func (store *stubStore) InsertSlotHistory(ctx context.Context, entry slot.HistoryEntry) error {
	store.histories = append(store.histories, entry)
	return nil
}

func (store *stubStore) InsertPendingBalance(ctx context.Context, pending slot.PendingBalance) error {
	store.pendings = append(store.pendings, pending)
	return nil
}

func (store *stubStore) UpdateSlotStatus(ctx context.Context, slotID string, from, to slot.Status) error {
	record, ok := store.slotRecords[slotID]
	if !ok {
		return ErrNotFoundOrForbidden
	}
	if record.Status != from {
		return ErrInvalidTransition
	}
	record.Status = to
	store.slotRecords[slotID] = record
	return nil
}
