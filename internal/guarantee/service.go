// Package guarantee models guarantee-type campaign negotiation: a request
// moves requested → negotiating → accepted/rejected/expired → purchased, and
// a purchased request carries a guarantee slot moving pending → active →
// completed/cancelled. All transitions are role-gated and compare-and-set.
package guarantee

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adforge/slotmarket/internal/role"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

// Service contains the guarantee domain logic over a Store.
type Service struct {
	store Store
	nowFn func() int64
	idFn  func() string
}

// NewService wires a Service.
func NewService(store Store, now func() int64, newID func() string) (*Service, error) {
	if store == nil || now == nil || newID == nil {
		return nil, fmt.Errorf("%w: nil dependency", ErrInvalidServiceConfig)
	}
	return &Service{store: store, nowFn: now, idFn: newID}, nil
}

// CreateRequest opens a negotiation in state requested.
func (service *Service) CreateRequest(ctx context.Context, userID string, input RequestInput) (Request, error) {
	if input.DistributorID == "" {
		return Request{}, fmt.Errorf("%w: distributor is required", ErrInvalidRequest)
	}
	if input.TargetRank <= 0 || input.GuaranteeCount <= 0 {
		return Request{}, fmt.Errorf("%w: target rank and guarantee count must be positive", ErrInvalidRequest)
	}
	if input.InitialBudgetCents <= 0 {
		return Request{}, fmt.Errorf("%w: initial budget must be positive", ErrInvalidRequest)
	}
	request := Request{
		RequestID:          service.idFn(),
		CampaignID:         input.CampaignID,
		UserID:             userID,
		DistributorID:      input.DistributorID,
		KeywordID:          input.KeywordID,
		TargetRank:         input.TargetRank,
		GuaranteeCount:     input.GuaranteeCount,
		InitialBudgetCents: input.InitialBudgetCents,
		Status:             RequestRequested,
		StartDateUnixUTC:   input.StartDateUnixUTC,
		EndDateUnixUTC:     input.EndDateUnixUTC,
		ExpiresAtUnixUTC:   input.ExpiresAtUnixUTC,
		CreatedUnixUTC:     service.nowFn(),
	}
	if err := service.store.InsertRequest(ctx, request); err != nil {
		return Request{}, err
	}
	return request, nil
}

// SendOffer appends an offer or counter-offer to the negotiation thread.
// The first offer moves the request from requested to negotiating.
func (service *Service) SendOffer(ctx context.Context, requestID string, callerID string, callerRole role.Role, content string, proposedDailyCents, proposedTotalCents int64) (Message, error) {
	if strings.TrimSpace(content) == "" && proposedDailyCents == 0 && proposedTotalCents == 0 {
		return Message{}, fmt.Errorf("%w: empty offer", ErrInvalidRequest)
	}
	var message Message
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := requireParticipant(request, callerID, callerRole); err != nil {
			return err
		}
		switch request.Status {
		case RequestRequested:
			if err := transactionStore.UpdateRequestStatus(ctx, requestID, RequestRequested, RequestNegotiating); err != nil {
				return err
			}
		case RequestNegotiating:
		default:
			return fmt.Errorf("%w: cannot negotiate from %s", ErrInvalidTransition, request.Status)
		}
		message = Message{
			MessageID:          service.idFn(),
			RequestID:          requestID,
			SenderID:           callerID,
			SenderRole:         callerRole.String(),
			Content:            content,
			ProposedDailyCents: proposedDailyCents,
			ProposedTotalCents: proposedTotalCents,
			CreatedUnixUTC:     service.nowFn(),
		}
		return transactionStore.InsertMessage(ctx, message)
	})
	if err != nil {
		return Message{}, err
	}
	return message, nil
}

// Accept closes the negotiation with agreed amounts. Final amounts default
// to the initial budget when the parties never counter-offered.
func (service *Service) Accept(ctx context.Context, requestID string, callerID string, callerRole role.Role, finalDailyCents, finalTotalCents int64) error {
	if finalDailyCents < 0 || finalTotalCents < 0 {
		return fmt.Errorf("%w: negative final amount", ErrInvalidRequest)
	}
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := requireParticipant(request, callerID, callerRole); err != nil {
			return err
		}
		if request.Status != RequestRequested && request.Status != RequestNegotiating {
			return fmt.Errorf("%w: cannot accept from %s", ErrInvalidTransition, request.Status)
		}
		if finalTotalCents == 0 {
			finalTotalCents = request.InitialBudgetCents
		}
		if err := transactionStore.UpdateRequestStatus(ctx, requestID, request.Status, RequestAccepted); err != nil {
			return err
		}
		return transactionStore.SetRequestFinalAmounts(ctx, requestID, finalDailyCents, finalTotalCents)
	})
}

// Reject closes the negotiation without agreement.
func (service *Service) Reject(ctx context.Context, requestID string, callerID string, callerRole role.Role) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := requireParticipant(request, callerID, callerRole); err != nil {
			return err
		}
		if request.Status != RequestRequested && request.Status != RequestNegotiating {
			return fmt.Errorf("%w: cannot reject from %s", ErrInvalidTransition, request.Status)
		}
		return transactionStore.UpdateRequestStatus(ctx, requestID, request.Status, RequestRejected)
	})
}

// PurchaseAccepted buys an accepted request: debits the ledger free-first for
// the final total, creates the backing slot (with history log and pending
// balance) and the guarantee slot in state pending. A request can be
// purchased exactly once; a second attempt fails with ErrAlreadyPurchased and
// no ledger change.
func (service *Service) PurchaseAccepted(ctx context.Context, requestID string, callerID string) (PurchaseResult, error) {
	var result PurchaseResult
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if request.UserID != callerID {
			return ErrNotFoundOrForbidden
		}
		if request.Status == RequestPurchased {
			return ErrAlreadyPurchased
		}
		if request.Status != RequestAccepted {
			return fmt.Errorf("%w: cannot purchase from %s", ErrInvalidTransition, request.Status)
		}
		totalCents := request.FinalTotalCents
		if totalCents <= 0 {
			totalCents = request.InitialBudgetCents
		}
		if totalCents <= 0 {
			return fmt.Errorf("%w: nothing to charge", ErrInvalidRequest)
		}
		if err := transactionStore.UpdateRequestStatus(ctx, requestID, RequestAccepted, RequestPurchased); err != nil {
			return err
		}

		balance, err := transactionStore.GetBalanceForUpdate(ctx, request.UserID)
		if err != nil {
			return err
		}
		split, err := ledger.SplitDebit(balance, totalCents)
		if err != nil {
			return err
		}
		updated, err := ledger.ApplyDebit(balance, split)
		if err != nil {
			return err
		}
		if err := transactionStore.SaveBalance(ctx, request.UserID, updated); err != nil {
			return err
		}

		now := service.nowFn()
		inputData, err := snapshotRequest(request, totalCents)
		if err != nil {
			return err
		}
		slotID := service.idFn()
		if err := transactionStore.InsertSlotRecord(ctx, slot.Slot{
			SlotID:         slotID,
			UserID:         request.UserID,
			DistributorID:  request.DistributorID,
			KeywordID:      request.KeywordID,
			Status:         slot.StatusPending,
			InputDataJSON:  inputData,
			AmountCents:    totalCents,
			CreatedUnixUTC: now,
		}); err != nil {
			return err
		}
		if err := transactionStore.InsertSlotHistory(ctx, slot.HistoryEntry{
			SlotID:         slotID,
			UserID:         request.UserID,
			Action:         "create",
			Note:           "guarantee slot purchased",
			DetailsJSON:    inputData,
			CreatedUnixUTC: now,
		}); err != nil {
			return err
		}
		if err := transactionStore.InsertPendingBalance(ctx, slot.PendingBalance{
			SlotID:         slotID,
			AmountCents:    totalCents,
			Status:         slot.PendingBalancePending,
			CreatedUnixUTC: now,
		}); err != nil {
			return err
		}

		guaranteeSlotID := service.idFn()
		if err := transactionStore.InsertGuaranteeSlot(ctx, Slot{
			GuaranteeSlotID:  guaranteeSlotID,
			RequestID:        requestID,
			SlotID:           slotID,
			Status:           SlotPending,
			StartDateUnixUTC: request.StartDateUnixUTC,
			EndDateUnixUTC:   request.EndDateUnixUTC,
			CreatedUnixUTC:   now,
		}); err != nil {
			return err
		}

		metadata, err := json.Marshal(map[string]any{
			"request_id":        requestID,
			"slot_id":           slotID,
			"guarantee_slot_id": guaranteeSlotID,
		})
		if err != nil {
			return err
		}
		if err := transactionStore.InsertCashHistory(ctx, ledger.Entry{
			UserID:         request.UserID,
			Type:           ledger.EntryPurchase,
			FreeCents:      -split.FreeCents,
			PaidCents:      -split.PaidCents,
			Note:           "guarantee campaign purchased",
			MetadataJSON:   string(metadata),
			CreatedUnixUTC: now,
		}); err != nil {
			return err
		}

		result = PurchaseResult{
			SlotID:          slotID,
			GuaranteeSlotID: guaranteeSlotID,
			TotalCents:      totalCents,
			FreeUsedCents:   split.FreeCents,
			PaidUsedCents:   split.PaidCents,
			Balance:         updated,
		}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	return result, nil
}

// ApproveSlot moves a pending guarantee slot to active and activates the
// backing slot. Only the assigned distributor or an admin may approve.
func (service *Service) ApproveSlot(ctx context.Context, guaranteeSlotID string, callerID string, callerRole role.Role) error {
	return service.slotDecision(ctx, guaranteeSlotID, callerID, callerRole, func(ctx context.Context, transactionStore Store, record Slot) error {
		if record.Status != SlotPending {
			return fmt.Errorf("%w: cannot approve from %s", ErrInvalidTransition, record.Status)
		}
		if err := transactionStore.ApproveGuaranteeSlot(ctx, guaranteeSlotID, callerID, service.nowFn()); err != nil {
			return err
		}
		return transactionStore.UpdateSlotStatus(ctx, record.SlotID, slot.StatusPending, slot.StatusActive)
	})
}

// RejectSlot moves a pending guarantee slot to rejected with a reason.
func (service *Service) RejectSlot(ctx context.Context, guaranteeSlotID string, callerID string, callerRole role.Role, reason string) error {
	return service.slotDecision(ctx, guaranteeSlotID, callerID, callerRole, func(ctx context.Context, transactionStore Store, record Slot) error {
		if record.Status != SlotPending {
			return fmt.Errorf("%w: cannot reject from %s", ErrInvalidTransition, record.Status)
		}
		if err := transactionStore.RejectGuaranteeSlot(ctx, guaranteeSlotID, callerID, reason, service.nowFn()); err != nil {
			return err
		}
		return transactionStore.UpdateSlotStatus(ctx, record.SlotID, slot.StatusPending, slot.StatusRejected)
	})
}

// CompleteSlot moves an active guarantee slot to completed.
func (service *Service) CompleteSlot(ctx context.Context, guaranteeSlotID string, callerID string, callerRole role.Role) error {
	return service.slotDecision(ctx, guaranteeSlotID, callerID, callerRole, func(ctx context.Context, transactionStore Store, record Slot) error {
		if record.Status != SlotActive {
			return fmt.Errorf("%w: cannot complete from %s", ErrInvalidTransition, record.Status)
		}
		return transactionStore.UpdateGuaranteeSlotStatus(ctx, guaranteeSlotID, SlotActive, SlotCompleted)
	})
}

// CancelSlot moves an active guarantee slot to cancelled.
func (service *Service) CancelSlot(ctx context.Context, guaranteeSlotID string, callerID string, callerRole role.Role) error {
	return service.slotDecision(ctx, guaranteeSlotID, callerID, callerRole, func(ctx context.Context, transactionStore Store, record Slot) error {
		if record.Status != SlotActive {
			return fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, record.Status)
		}
		return transactionStore.UpdateGuaranteeSlotStatus(ctx, guaranteeSlotID, SlotActive, SlotCancelled)
	})
}

// Messages lists the negotiation thread for a participant.
func (service *Service) Messages(ctx context.Context, requestID string, callerID string, callerRole role.Role) ([]Message, error) {
	request, err := service.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(request, callerID, callerRole); err != nil {
		return nil, err
	}
	return service.store.ListMessages(ctx, requestID)
}

// ListRequests lists requests visible to the caller: own requests for
// advertisers, assigned ones for distributors, everything for admins.
func (service *Service) ListRequests(ctx context.Context, callerID string, callerRole role.Role) ([]Request, error) {
	switch callerRole {
	case role.Admin:
		return service.store.ListRequests(ctx, "", "")
	case role.Distributor:
		return service.store.ListRequests(ctx, "", callerID)
	default:
		return service.store.ListRequests(ctx, callerID, "")
	}
}

// ExpireStale marks requests past their negotiation deadline as expired.
// The update is a compare-and-set sweep, so a concurrent accept wins.
func (service *Service) ExpireStale(ctx context.Context) (int64, error) {
	return service.store.ExpireRequests(ctx, service.nowFn())
}

func (service *Service) slotDecision(ctx context.Context, guaranteeSlotID string, callerID string, callerRole role.Role, decide func(ctx context.Context, transactionStore Store, record Slot) error) error {
	if callerRole != role.Distributor && callerRole != role.Admin {
		return ErrNotFoundOrForbidden
	}
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetGuaranteeSlotForUpdate(ctx, guaranteeSlotID)
		if err != nil {
			return err
		}
		if callerRole == role.Distributor {
			request, err := transactionStore.GetRequest(ctx, record.RequestID)
			if err != nil {
				return err
			}
			if request.DistributorID != callerID {
				return ErrNotFoundOrForbidden
			}
		}
		return decide(ctx, transactionStore, record)
	})
}

func requireParticipant(request Request, callerID string, callerRole role.Role) error {
	if callerRole == role.Admin {
		return nil
	}
	if request.UserID == callerID || request.DistributorID == callerID {
		return nil
	}
	return ErrNotFoundOrForbidden
}

func snapshotRequest(request Request, totalCents int64) (string, error) {
	snapshot, err := json.Marshal(map[string]any{
		"request_id":      request.RequestID,
		"campaign_id":     request.CampaignID,
		"keyword_id":      request.KeywordID,
		"target_rank":     request.TargetRank,
		"guarantee_count": request.GuaranteeCount,
		"final_daily":     request.FinalDailyCents,
		"final_total":     totalCents,
		"start_date":      request.StartDateUnixUTC,
		"end_date":        request.EndDateUnixUTC,
	})
	if err != nil {
		return "", err
	}
	return string(snapshot), nil
}
