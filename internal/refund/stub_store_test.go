package refund_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/adforge/slotmarket/internal/refund"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

var errStoreFailure = errors.New("store failure")

type stubState struct {
	slots    map[string]refund.SlotView
	refunds  map[string]refund.Request
	balances map[string]ledger.Balance
	pendings map[string]slot.PendingBalanceStatus
	cashRows []ledger.Entry
}

func (state stubState) clone() stubState {
	cloned := stubState{
		slots:    make(map[string]refund.SlotView, len(state.slots)),
		refunds:  make(map[string]refund.Request, len(state.refunds)),
		balances: make(map[string]ledger.Balance, len(state.balances)),
		pendings: make(map[string]slot.PendingBalanceStatus, len(state.pendings)),
		cashRows: append([]ledger.Entry(nil), state.cashRows...),
	}
	for key, value := range state.slots {
		cloned.slots[key] = value
	}
	for key, value := range state.refunds {
		cloned.refunds[key] = value
	}
	for key, value := range state.balances {
		cloned.balances[key] = value
	}
	for key, value := range state.pendings {
		cloned.pendings[key] = value
	}
	return cloned
}

type stubStore struct {
	state stubState

	failOnMarkPaidOut map[string]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		state: stubState{
			slots:    make(map[string]refund.SlotView),
			refunds:  make(map[string]refund.Request),
			balances: make(map[string]ledger.Balance),
			pendings: make(map[string]slot.PendingBalanceStatus),
		},
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore refund.Store) error) error {
	snapshot := store.state.clone()
	if err := fn(ctx, store); err != nil {
		store.state = snapshot
		return err
	}
	return nil
}

func (store *stubStore) GetSlotView(ctx context.Context, slotID string) (refund.SlotView, error) {
	view, ok := store.state.slots[slotID]
	if !ok {
		return refund.SlotView{}, refund.ErrNotFoundOrForbidden
	}
	return view, nil
}

func (store *stubStore) InsertRefund(ctx context.Context, request refund.Request) error {
	store.state.refunds[request.RefundID] = request
	return nil
}

func (store *stubStore) GetRefund(ctx context.Context, refundID string) (refund.Request, error) {
	request, ok := store.state.refunds[refundID]
	if !ok {
		return refund.Request{}, refund.ErrNotFoundOrForbidden
	}
	return request, nil
}

func (store *stubStore) GetRefundForUpdate(ctx context.Context, refundID string) (refund.Request, error) {
	return store.GetRefund(ctx, refundID)
}

func (store *stubStore) SetRefundDecision(ctx context.Context, refundID string, status refund.Status, approvedCents int64, notes string, approvalUnixUTC int64) error {
	request, ok := store.state.refunds[refundID]
	if !ok {
		return refund.ErrNotFoundOrForbidden
	}
	request.Status = status
	request.ApprovedCents = approvedCents
	request.ApprovalNotes = notes
	request.ApprovalUnixUTC = approvalUnixUTC
	store.state.refunds[refundID] = request
	return nil
}

func (store *stubStore) MarkRefundPaidOut(ctx context.Context, refundID string, paidOutUnixUTC int64) error {
	if store.failOnMarkPaidOut[refundID] {
		return errStoreFailure
	}
	request, ok := store.state.refunds[refundID]
	if !ok {
		return refund.ErrNotFoundOrForbidden
	}
	request.Status = refund.StatusPaidOut
	request.PaidOutUnixUTC = paidOutUnixUTC
	store.state.refunds[refundID] = request
	return nil
}

func (store *stubStore) ListDueRefundIDs(ctx context.Context, approvedBeforeUnixUTC int64) ([]string, error) {
	var due []string
	for refundID, request := range store.state.refunds {
		if request.Status != refund.StatusApproved {
			continue
		}
		if request.ApprovalUnixUTC > approvedBeforeUnixUTC {
			continue
		}
		due = append(due, refundID)
	}
	sort.Strings(due)
	return due, nil
}

func (store *stubStore) UpdateSlotStatus(ctx context.Context, slotID string, from, to slot.Status) error {
	view, ok := store.state.slots[slotID]
	if !ok {
		return refund.ErrNotFoundOrForbidden
	}
	if view.Status != from {
		return fmt.Errorf("%w: slot is %s", refund.ErrInvalidTransition, view.Status)
	}
	view.Status = to
	store.state.slots[slotID] = view
	return nil
}

func (store *stubStore) ResolvePendingBalance(ctx context.Context, slotID string) error {
	store.state.pendings[slotID] = slot.PendingBalanceResolved
	return nil
}

func (store *stubStore) GetBalanceForUpdate(ctx context.Context, userID string) (ledger.Balance, error) {
	return store.state.balances[userID], nil
}

func (store *stubStore) SaveBalance(ctx context.Context, userID string, balance ledger.Balance) error {
	store.state.balances[userID] = balance
	return nil
}

func (store *stubStore) InsertCashHistory(ctx context.Context, entry ledger.Entry) error {
	store.state.cashRows = append(store.state.cashRows, entry)
	return nil
}

func mustNewService(test *testing.T, store refund.Store, now func() int64, options ...refund.ServiceOption) *refund.Service {
	test.Helper()
	counter := 0
	service, err := refund.NewService(store, now, func() string {
		counter++
		return fmt.Sprintf("refund-%d", counter)
	}, options...)
	if err != nil {
		test.Fatalf("NewService: %v", err)
	}
	return service
}
