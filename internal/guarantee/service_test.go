package guarantee

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/adforge/slotmarket/internal/role"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

func TestFirstOfferMovesRequestToNegotiating(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	request := mustCreateRequest(test, service, "adv-1", "dist-1")

	message, err := service.SendOffer(context.Background(), request.RequestID, "dist-1", role.Distributor, "can do rank 3", 5000, 150000)
	if err != nil {
		test.Fatalf("send offer: %v", err)
	}
	if store.requests[request.RequestID].Status != RequestNegotiating {
		test.Fatalf("expected negotiating, got %s", store.requests[request.RequestID].Status)
	}
	if message.SenderRole != role.Distributor.String() {
		test.Fatalf("unexpected sender role: %s", message.SenderRole)
	}
	if len(store.messages[request.RequestID]) != 1 {
		test.Fatalf("expected 1 message, got %d", len(store.messages[request.RequestID]))
	}
}

func TestOutsiderCannotNegotiate(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	request := mustCreateRequest(test, service, "adv-1", "dist-1")

	_, err := service.SendOffer(context.Background(), request.RequestID, "stranger", role.Advertiser, "hello", 0, 1)
	if !errors.Is(err, ErrNotFoundOrForbidden) {
		test.Fatalf("expected ErrNotFoundOrForbidden, got %v", err)
	}
}

func TestAcceptStoresFinalAmountsDefaultingToBudget(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	request := mustCreateRequest(test, service, "adv-1", "dist-1")

	if err := service.Accept(context.Background(), request.RequestID, "dist-1", role.Distributor, 0, 0); err != nil {
		test.Fatalf("accept: %v", err)
	}
	accepted := store.requests[request.RequestID]
	if accepted.Status != RequestAccepted {
		test.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if accepted.FinalTotalCents != request.InitialBudgetCents {
		test.Fatalf("expected final total defaulted to budget %d, got %d", request.InitialBudgetCents, accepted.FinalTotalCents)
	}
}

func TestRejectedRequestCannotBeAccepted(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	request := mustCreateRequest(test, service, "adv-1", "dist-1")

	if err := service.Reject(context.Background(), request.RequestID, "adv-1", role.Advertiser); err != nil {
		test.Fatalf("reject: %v", err)
	}
	if err := service.Accept(context.Background(), request.RequestID, "dist-1", role.Distributor, 0, 0); !errors.Is(err, ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPurchaseAcceptedDebitsAndCreatesSlotPair(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.balance = ledger.Balance{FreeCents: 5000, PaidCents: 200000}
	service := mustNewService(test, store)
	request := mustCreateRequest(test, service, "adv-1", "dist-1")
	mustAccept(test, service, request.RequestID, 4000, 120000)

	result, err := service.PurchaseAccepted(context.Background(), request.RequestID, "adv-1")
	if err != nil {
		test.Fatalf("purchase accepted: %v", err)
	}
	if result.TotalCents != 120000 || result.FreeUsedCents != 5000 || result.PaidUsedCents != 115000 {
		test.Fatalf("unexpected result: %+v", result)
	}
	if store.requests[request.RequestID].Status != RequestPurchased {
		test.Fatalf("request not purchased: %s", store.requests[request.RequestID].Status)
	}
	if len(store.slotRecords) != 1 || len(store.guaranteeSlots) != 1 {
		test.Fatalf("expected one slot and one guarantee slot, got %d/%d", len(store.slotRecords), len(store.guaranteeSlots))
	}
	created := store.guaranteeSlots[result.GuaranteeSlotID]
	if created.Status != SlotPending || created.SlotID != result.SlotID {
		test.Fatalf("unexpected guarantee slot: %+v", created)
	}
	if len(store.cashEntries) != 1 || len(store.pendings) != 1 || len(store.histories) != 1 {
		test.Fatalf("expected one cash entry, pending row and history row")
	}
}

func TestPurchaseIsIdempotentSecondAttemptConflicts(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.balance = ledger.Balance{FreeCents: 0, PaidCents: 500000}
	service := mustNewService(test, store)
	request := mustCreateRequest(test, service, "adv-1", "dist-1")
	mustAccept(test, service, request.RequestID, 0, 100000)

	if _, err := service.PurchaseAccepted(context.Background(), request.RequestID, "adv-1"); err != nil {
		test.Fatalf("first purchase: %v", err)
	}
	balanceAfterFirst := store.balance

	_, err := service.PurchaseAccepted(context.Background(), request.RequestID, "adv-1")
	if !errors.Is(err, ErrAlreadyPurchased) {
		test.Fatalf("expected ErrAlreadyPurchased, got %v", err)
	}
	if store.balance != balanceAfterFirst {
		test.Fatalf("second attempt moved money: %+v vs %+v", store.balance, balanceAfterFirst)
	}
	if len(store.cashEntries) != 1 {
		test.Fatalf("expected single cash entry, got %d", len(store.cashEntries))
	}
}

func TestPurchaseInsufficientFundsRollsEverythingBack(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.balance = ledger.Balance{FreeCents: 100, PaidCents: 100}
	service := mustNewService(test, store)
	request := mustCreateRequest(test, service, "adv-1", "dist-1")
	mustAccept(test, service, request.RequestID, 0, 100000)

	_, err := service.PurchaseAccepted(context.Background(), request.RequestID, "adv-1")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if store.requests[request.RequestID].Status != RequestAccepted {
		test.Fatalf("request status not rolled back: %s", store.requests[request.RequestID].Status)
	}
	if len(store.slotRecords) != 0 || len(store.guaranteeSlots) != 0 || len(store.cashEntries) != 0 {
		test.Fatal("staged rows survived a failed purchase")
	}
}

func TestSlotApprovalIsRoleGated(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.balance = ledger.Balance{FreeCents: 0, PaidCents: 500000}
	service := mustNewService(test, store)
	request := mustCreateRequest(test, service, "adv-1", "dist-1")
	mustAccept(test, service, request.RequestID, 0, 100000)
	result, err := service.PurchaseAccepted(context.Background(), request.RequestID, "adv-1")
	if err != nil {
		test.Fatalf("purchase: %v", err)
	}

	if err := service.ApproveSlot(context.Background(), result.GuaranteeSlotID, "adv-1", role.Advertiser); !errors.Is(err, ErrNotFoundOrForbidden) {
		test.Fatalf("advertiser approval should be forbidden, got %v", err)
	}
	if err := service.ApproveSlot(context.Background(), result.GuaranteeSlotID, "dist-other", role.Distributor); !errors.Is(err, ErrNotFoundOrForbidden) {
		test.Fatalf("foreign distributor approval should be forbidden, got %v", err)
	}
	if err := service.ApproveSlot(context.Background(), result.GuaranteeSlotID, "dist-1", role.Distributor); err != nil {
		test.Fatalf("assigned distributor approval: %v", err)
	}
	if store.guaranteeSlots[result.GuaranteeSlotID].Status != SlotActive {
		test.Fatalf("slot not active: %s", store.guaranteeSlots[result.GuaranteeSlotID].Status)
	}

	if err := service.ApproveSlot(context.Background(), result.GuaranteeSlotID, "dist-1", role.Distributor); !errors.Is(err, ErrInvalidTransition) {
		test.Fatalf("double approval should fail, got %v", err)
	}
	if err := service.CompleteSlot(context.Background(), result.GuaranteeSlotID, "admin-1", role.Admin); err != nil {
		test.Fatalf("complete: %v", err)
	}
}

func TestSlotDecisionDrivesBackingSlotStatus(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.balance = ledger.Balance{FreeCents: 0, PaidCents: 500000}
	service := mustNewService(test, store)

	approved := mustCreateRequest(test, service, "adv-1", "dist-1")
	mustAccept(test, service, approved.RequestID, 0, 100000)
	approvedResult, err := service.PurchaseAccepted(context.Background(), approved.RequestID, "adv-1")
	if err != nil {
		test.Fatalf("purchase: %v", err)
	}
	if store.slotRecords[approvedResult.SlotID].Status != slot.StatusPending {
		test.Fatalf("backing slot should start pending, got %s", store.slotRecords[approvedResult.SlotID].Status)
	}
	if err := service.ApproveSlot(context.Background(), approvedResult.GuaranteeSlotID, "dist-1", role.Distributor); err != nil {
		test.Fatalf("approve: %v", err)
	}
	if store.slotRecords[approvedResult.SlotID].Status != slot.StatusActive {
		test.Fatalf("approval should activate backing slot, got %s", store.slotRecords[approvedResult.SlotID].Status)
	}

	rejected := mustCreateRequest(test, service, "adv-2", "dist-1")
	mustAccept(test, service, rejected.RequestID, 0, 100000)
	rejectedResult, err := service.PurchaseAccepted(context.Background(), rejected.RequestID, "adv-2")
	if err != nil {
		test.Fatalf("purchase: %v", err)
	}
	if err := service.RejectSlot(context.Background(), rejectedResult.GuaranteeSlotID, "dist-1", role.Distributor, "no capacity"); err != nil {
		test.Fatalf("reject: %v", err)
	}
	if store.slotRecords[rejectedResult.SlotID].Status != slot.StatusRejected {
		test.Fatalf("rejection should reject backing slot, got %s", store.slotRecords[rejectedResult.SlotID].Status)
	}
}

func TestExpireStaleSkipsClosedRequests(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store)
	stale := mustCreateRequest(test, service, "adv-1", "dist-1")
	closed := mustCreateRequest(test, service, "adv-2", "dist-1")
	mustAccept(test, service, closed.RequestID, 0, 0)

	expireAll(store, 50)

	count, err := service.ExpireStale(context.Background())
	if err != nil {
		test.Fatalf("expire: %v", err)
	}
	if count != 1 {
		test.Fatalf("expected 1 expired, got %d", count)
	}
	if store.requests[stale.RequestID].Status != RequestExpired {
		test.Fatalf("stale request not expired: %s", store.requests[stale.RequestID].Status)
	}
	if store.requests[closed.RequestID].Status != RequestAccepted {
		test.Fatalf("accepted request must survive expiry sweep: %s", store.requests[closed.RequestID].Status)
	}
}

func mustCreateRequest(test *testing.T, service *Service, userID, distributorID string) Request {
	test.Helper()
	request, err := service.CreateRequest(context.Background(), userID, RequestInput{
		CampaignID:         "camp-1",
		DistributorID:      distributorID,
		KeywordID:          "kw-1",
		TargetRank:         3,
		GuaranteeCount:     30,
		InitialBudgetCents: 90000,
	})
	if err != nil {
		test.Fatalf("create request: %v", err)
	}
	return request
}

func mustAccept(test *testing.T, service *Service, requestID string, daily, total int64) {
	test.Helper()
	if err := service.Accept(context.Background(), requestID, "dist-1", role.Distributor, daily, total); err != nil {
		test.Fatalf("accept: %v", err)
	}
}

func expireAll(store *stubStore, expiresAt int64) {
	for id, request := range store.requests {
		request.ExpiresAtUnixUTC = expiresAt
		store.requests[id] = request
	}
}

func mustNewService(test *testing.T, store Store) *Service {
	test.Helper()
	counter := 0
	service, err := NewService(store, func() int64 { return 100 }, func() string {
		counter++
		return fmt.Sprintf("guar-%d", counter)
	})
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}
