package refund_test

import (
	"context"
	"errors"
	"testing"

	"github.com/adforge/slotmarket/internal/refund"
	"github.com/adforge/slotmarket/internal/role"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

const (
	threeDays = int64(3 * 24 * 60 * 60)

	advertiserID  = "user-adv"
	distributorID = "user-dist"
)

func seedActiveSlot(store *stubStore, slotID string) {
	store.state.slots[slotID] = refund.SlotView{
		SlotID:        slotID,
		UserID:        advertiserID,
		DistributorID: distributorID,
		Status:        slot.StatusActive,
	}
}

func mustRequest(test *testing.T, service *refund.Service, slotID string, amountCents int64) refund.Request {
	test.Helper()
	request, err := service.Request(context.Background(), slotID, advertiserID, amountCents, "campaign underperformed")
	if err != nil {
		test.Fatalf("Request: %v", err)
	}
	return request
}

func TestRequestRequiresActiveOwnedSlot(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	store.state.slots["slot-done"] = refund.SlotView{SlotID: "slot-done", UserID: advertiserID, Status: slot.StatusCompleted}
	now := int64(1000)
	service := mustNewService(test, store, func() int64 { return now })

	request := mustRequest(test, service, "slot-1", 10000)
	if request.Status != refund.StatusPending {
		test.Fatalf("status = %s, want pending", request.Status)
	}
	if request.RequestUnixUTC != 1000 {
		test.Fatalf("request time = %d, want 1000", request.RequestUnixUTC)
	}

	if _, err := service.Request(context.Background(), "slot-1", "user-other", 10000, "reason"); !errors.Is(err, refund.ErrNotFoundOrForbidden) {
		test.Fatalf("foreign slot err = %v, want ErrNotFoundOrForbidden", err)
	}
	if _, err := service.Request(context.Background(), "slot-done", advertiserID, 10000, "reason"); !errors.Is(err, refund.ErrSlotNotRefundable) {
		test.Fatalf("completed slot err = %v, want ErrSlotNotRefundable", err)
	}
	if _, err := service.Request(context.Background(), "slot-1", advertiserID, 0, "reason"); !errors.Is(err, refund.ErrInvalidRefund) {
		test.Fatalf("zero amount err = %v, want ErrInvalidRefund", err)
	}
}

func TestConfirmRejectsOverAskBeforeAnyWrite(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	service := mustNewService(test, store, func() int64 { return 1000 })
	request := mustRequest(test, service, "slot-1", 10000)

	_, err := service.Confirm(context.Background(), request.RefundID, distributorID, role.Distributor, true, 10001, "")
	if !errors.Is(err, refund.ErrApprovedExceedsAsked) {
		test.Fatalf("err = %v, want ErrApprovedExceedsAsked", err)
	}
	stored := store.state.refunds[request.RefundID]
	if stored.Status != refund.StatusPending || stored.ApprovedCents != 0 {
		test.Fatalf("refund was written: status=%s approved=%d", stored.Status, stored.ApprovedCents)
	}
}

func TestConfirmFullApprovalMarksSlot(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	service := mustNewService(test, store, func() int64 { return 2000 })
	request := mustRequest(test, service, "slot-1", 10000)

	updated, err := service.Confirm(context.Background(), request.RefundID, distributorID, role.Distributor, true, 0, "ok")
	if err != nil {
		test.Fatalf("Confirm: %v", err)
	}
	if updated.Status != refund.StatusApproved {
		test.Fatalf("status = %s, want approved", updated.Status)
	}
	if updated.ApprovedCents != 10000 {
		test.Fatalf("approved = %d, want full 10000", updated.ApprovedCents)
	}
	if updated.ApprovalUnixUTC != 2000 {
		test.Fatalf("approval time = %d, want 2000", updated.ApprovalUnixUTC)
	}
	if got := store.state.slots["slot-1"].Status; got != slot.StatusRefundApproved {
		test.Fatalf("slot status = %s, want refund_approved", got)
	}
}

func TestConfirmPartialWaitsForRequester(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	now := int64(2000)
	service := mustNewService(test, store, func() int64 { return now })
	request := mustRequest(test, service, "slot-1", 10000)

	updated, err := service.Confirm(context.Background(), request.RefundID, distributorID, role.Distributor, true, 6000, "partial")
	if err != nil {
		test.Fatalf("Confirm: %v", err)
	}
	if updated.Status != refund.StatusPendingConfirmation {
		test.Fatalf("status = %s, want pending_user_confirmation", updated.Status)
	}
	if got := store.state.slots["slot-1"].Status; got != slot.StatusActive {
		test.Fatalf("slot status = %s, want still active", got)
	}

	if _, err := service.ConfirmPartial(context.Background(), request.RefundID, "user-other", true); !errors.Is(err, refund.ErrNotFoundOrForbidden) {
		test.Fatalf("foreign confirm err = %v, want ErrNotFoundOrForbidden", err)
	}

	now = 3000
	accepted, err := service.ConfirmPartial(context.Background(), request.RefundID, advertiserID, true)
	if err != nil {
		test.Fatalf("ConfirmPartial: %v", err)
	}
	if accepted.Status != refund.StatusApproved {
		test.Fatalf("status = %s, want approved", accepted.Status)
	}
	if accepted.ApprovalUnixUTC != 3000 {
		test.Fatalf("payout clock = %d, want restart at 3000", accepted.ApprovalUnixUTC)
	}
	if got := store.state.slots["slot-1"].Status; got != slot.StatusRefundApproved {
		test.Fatalf("slot status = %s, want refund_approved", got)
	}
}

func TestConfirmGating(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name       string
		approverID string
		role       role.Role
		wantErr    error
	}{
		{name: "advertiser cannot approve own refund", approverID: advertiserID, role: role.Advertiser, wantErr: refund.ErrNotFoundOrForbidden},
		{name: "foreign distributor forbidden", approverID: "user-dist-other", role: role.Distributor, wantErr: refund.ErrNotFoundOrForbidden},
		{name: "assigned distributor allowed", approverID: distributorID, role: role.Distributor},
		{name: "admin allowed", approverID: "user-admin", role: role.Admin},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore()
			seedActiveSlot(store, "slot-1")
			service := mustNewService(test, store, func() int64 { return 1000 })
			request := mustRequest(test, service, "slot-1", 10000)

			_, err := service.Confirm(context.Background(), request.RefundID, testCase.approverID, testCase.role, true, 0, "")
			if testCase.wantErr == nil {
				if err != nil {
					test.Fatalf("Confirm: %v", err)
				}
				return
			}
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf("err = %v, want %v", err, testCase.wantErr)
			}
		})
	}
}

func TestPayoutWaitsOutTheDelay(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	now := int64(1000)
	service := mustNewService(test, store, func() int64 { return now })
	request := mustRequest(test, service, "slot-1", 10000)
	if _, err := service.Confirm(context.Background(), request.RefundID, distributorID, role.Distributor, true, 0, ""); err != nil {
		test.Fatalf("Confirm: %v", err)
	}

	now = 1000 + threeDays - 1
	summary, changesets, err := service.ProcessScheduled(context.Background())
	if err != nil {
		test.Fatalf("ProcessScheduled: %v", err)
	}
	if summary.Processed != 0 || len(changesets) != 0 {
		test.Fatalf("refund paid out before the delay elapsed: %+v", summary)
	}

	now = 1000 + threeDays
	summary, changesets, err = service.ProcessScheduled(context.Background())
	if err != nil {
		test.Fatalf("ProcessScheduled: %v", err)
	}
	if summary.Succeeded != 1 || len(changesets) != 1 {
		test.Fatalf("summary = %+v, want one payout", summary)
	}
	stored := store.state.refunds[request.RefundID]
	if stored.Status != refund.StatusPaidOut {
		test.Fatalf("status = %s, want paid_out", stored.Status)
	}
	if stored.PaidOutUnixUTC != now {
		test.Fatalf("paid out at %d, want %d", stored.PaidOutUnixUTC, now)
	}
}

func TestPartialPayoutSplitsDifferenceToDistributor(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	now := int64(1000)
	service := mustNewService(test, store, func() int64 { return now })
	request := mustRequest(test, service, "slot-1", 10000)
	if _, err := service.Confirm(context.Background(), request.RefundID, distributorID, role.Distributor, true, 6000, "partial"); err != nil {
		test.Fatalf("Confirm: %v", err)
	}
	if _, err := service.ConfirmPartial(context.Background(), request.RefundID, advertiserID, true); err != nil {
		test.Fatalf("ConfirmPartial: %v", err)
	}

	now = 1000 + threeDays
	changeset, err := service.ProcessOne(context.Background(), request.RefundID)
	if err != nil {
		test.Fatalf("ProcessOne: %v", err)
	}
	if changeset.RequesterCreditCents != 6000 {
		test.Fatalf("requester credit = %d, want 6000", changeset.RequesterCreditCents)
	}
	if changeset.DistributorCreditCents != 4000 {
		test.Fatalf("distributor credit = %d, want difference 4000", changeset.DistributorCreditCents)
	}
	if total := changeset.RequesterCreditCents + changeset.DistributorCreditCents; total != request.RefundCents {
		test.Fatalf("credits total %d, want conserved %d", total, request.RefundCents)
	}

	if got := store.state.balances[advertiserID].PaidCents; got != 6000 {
		test.Fatalf("advertiser paid balance = %d, want 6000", got)
	}
	if got := store.state.balances[distributorID].PaidCents; got != 4000 {
		test.Fatalf("distributor paid balance = %d, want 4000", got)
	}
	if got := store.state.slots["slot-1"].Status; got != slot.StatusRefunded {
		test.Fatalf("slot status = %s, want refunded", got)
	}
	if got := store.state.pendings["slot-1"]; got != slot.PendingBalanceResolved {
		test.Fatalf("pending balance = %s, want resolved", got)
	}
	if len(store.state.cashRows) != 2 {
		test.Fatalf("cash rows = %d, want refund + refund_difference", len(store.state.cashRows))
	}
	types := map[ledger.EntryType]int64{}
	for _, entry := range store.state.cashRows {
		types[entry.Type] += entry.PaidCents
	}
	if types[ledger.EntryRefund] != 6000 || types[ledger.EntryRefundDifference] != 4000 {
		test.Fatalf("cash rows mismatch: %v", types)
	}
}

func TestPartialPayoutNeedsDistributor(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.state.slots["slot-1"] = refund.SlotView{SlotID: "slot-1", UserID: advertiserID, Status: slot.StatusActive}
	now := int64(1000)
	service := mustNewService(test, store, func() int64 { return now })
	request := mustRequest(test, service, "slot-1", 10000)
	if _, err := service.Confirm(context.Background(), request.RefundID, "user-admin", role.Admin, true, 6000, ""); err != nil {
		test.Fatalf("Confirm: %v", err)
	}
	if _, err := service.ConfirmPartial(context.Background(), request.RefundID, advertiserID, true); err != nil {
		test.Fatalf("ConfirmPartial: %v", err)
	}

	now = 1000 + threeDays
	if _, err := service.ProcessOne(context.Background(), request.RefundID); !errors.Is(err, refund.ErrNoDistributorForSplit) {
		test.Fatalf("err = %v, want ErrNoDistributorForSplit", err)
	}
	if got := store.state.slots["slot-1"].Status; got != slot.StatusRefundApproved {
		test.Fatalf("slot status = %s, payout should have rolled back", got)
	}
}

func TestSweepSurvivesSingleFailure(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	seedActiveSlot(store, "slot-2")
	now := int64(1000)
	service := mustNewService(test, store, func() int64 { return now })
	first := mustRequest(test, service, "slot-1", 5000)
	second := mustRequest(test, service, "slot-2", 7000)
	for _, request := range []refund.Request{first, second} {
		if _, err := service.Confirm(context.Background(), request.RefundID, distributorID, role.Distributor, true, 0, ""); err != nil {
			test.Fatalf("Confirm %s: %v", request.RefundID, err)
		}
	}
	store.failOnMarkPaidOut = map[string]bool{first.RefundID: true}

	now = 1000 + threeDays
	summary, changesets, err := service.ProcessScheduled(context.Background())
	if err == nil {
		test.Fatal("expected sweep error reporting the failed refund")
	}
	if summary.Processed != 2 || summary.Succeeded != 1 || summary.Failed != 1 {
		test.Fatalf("summary = %+v, want one success and one failure", summary)
	}
	if len(changesets) != 1 || changesets[0].RefundID != second.RefundID {
		test.Fatalf("changesets = %+v, want only the surviving refund", changesets)
	}
	if got := store.state.refunds[first.RefundID].Status; got != refund.StatusApproved {
		test.Fatalf("failed refund status = %s, want rolled back to approved", got)
	}
	if got := store.state.refunds[second.RefundID].Status; got != refund.StatusPaidOut {
		test.Fatalf("surviving refund status = %s, want paid_out", got)
	}
}

func TestSimulateWritesNothing(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	now := int64(1000)
	service := mustNewService(test, store, func() int64 { return now })
	request := mustRequest(test, service, "slot-1", 10000)
	if _, err := service.Confirm(context.Background(), request.RefundID, distributorID, role.Distributor, true, 6000, ""); err != nil {
		test.Fatalf("Confirm: %v", err)
	}
	if _, err := service.ConfirmPartial(context.Background(), request.RefundID, advertiserID, true); err != nil {
		test.Fatalf("ConfirmPartial: %v", err)
	}

	now = 1000 + threeDays
	summary, simulated, err := service.Simulate(context.Background())
	if err != nil {
		test.Fatalf("Simulate: %v", err)
	}
	if summary.Succeeded != 1 || summary.TotalCents != 10000 {
		test.Fatalf("summary = %+v, want one refund totalling 10000", summary)
	}
	if got := store.state.refunds[request.RefundID].Status; got != refund.StatusApproved {
		test.Fatalf("simulate changed refund status to %s", got)
	}
	if got := store.state.slots["slot-1"].Status; got != slot.StatusRefundApproved {
		test.Fatalf("simulate changed slot status to %s", got)
	}
	if len(store.state.cashRows) != 0 {
		test.Fatalf("simulate wrote %d cash rows", len(store.state.cashRows))
	}

	_, applied, err := service.ProcessScheduled(context.Background())
	if err != nil {
		test.Fatalf("ProcessScheduled: %v", err)
	}
	if len(applied) != len(simulated) || applied[0] != simulated[0] {
		test.Fatalf("simulated %+v, applied %+v, want identical writes", simulated, applied)
	}
}

func TestRejectedRefundNeverPaysOut(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	now := int64(1000)
	service := mustNewService(test, store, func() int64 { return now })
	request := mustRequest(test, service, "slot-1", 10000)
	if _, err := service.Confirm(context.Background(), request.RefundID, distributorID, role.Distributor, false, 0, "not eligible"); err != nil {
		test.Fatalf("Confirm: %v", err)
	}

	now = 1000 + threeDays
	if _, err := service.ProcessOne(context.Background(), request.RefundID); !errors.Is(err, refund.ErrInvalidTransition) {
		test.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if got := store.state.balances[advertiserID].PaidCents; got != 0 {
		test.Fatalf("advertiser was paid %d on a rejected refund", got)
	}
}

type recordingNotifier struct {
	processed []refund.Changeset
}

func (notifier *recordingNotifier) RefundProcessed(_ context.Context, changeset refund.Changeset) {
	notifier.processed = append(notifier.processed, changeset)
}

func TestNotifierFiresAfterSweep(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedActiveSlot(store, "slot-1")
	now := int64(1000)
	notifier := &recordingNotifier{}
	service := mustNewService(test, store, func() int64 { return now }, refund.WithNotifier(notifier))
	request := mustRequest(test, service, "slot-1", 10000)
	if _, err := service.Confirm(context.Background(), request.RefundID, distributorID, role.Distributor, true, 0, ""); err != nil {
		test.Fatalf("Confirm: %v", err)
	}

	now = 1000 + threeDays
	if _, _, err := service.ProcessScheduled(context.Background()); err != nil {
		test.Fatalf("ProcessScheduled: %v", err)
	}
	if len(notifier.processed) != 1 || notifier.processed[0].RefundID != request.RefundID {
		test.Fatalf("notifier calls = %+v, want the paid refund", notifier.processed)
	}
}
