// Package refund implements refund approval and the delayed payout sweep.
// The processor computes a changeset per refund and applies it in its own
// transaction; the simulate path runs the same computation and never applies,
// so both always agree on the would-be writes.
package refund

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adforge/slotmarket/internal/role"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

// Three days between approval and payout unless configured otherwise.
const defaultPayoutDelaySeconds = 3 * 24 * 60 * 60

// Service contains the refund domain logic over a Store.
type Service struct {
	store              Store
	nowFn              func() int64
	idFn               func() string
	payoutDelaySeconds int64
	notifier           Notifier
}

// NewService wires a Service.
func NewService(store Store, now func() int64, newID func() string, options ...ServiceOption) (*Service, error) {
	if store == nil || now == nil || newID == nil {
		return nil, fmt.Errorf("%w: nil dependency", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:              store,
		nowFn:              now,
		idFn:               newID,
		payoutDelaySeconds: defaultPayoutDelaySeconds,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Request opens a pending refund for an active slot owned by the requester.
func (service *Service) Request(ctx context.Context, slotID string, requesterID string, amountCents int64, reason string) (Request, error) {
	if amountCents <= 0 {
		return Request{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRefund)
	}
	if strings.TrimSpace(reason) == "" {
		return Request{}, fmt.Errorf("%w: reason is required", ErrInvalidRefund)
	}
	var request Request
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		view, err := transactionStore.GetSlotView(ctx, slotID)
		if err != nil {
			return err
		}
		if view.UserID != requesterID {
			return ErrNotFoundOrForbidden
		}
		if view.Status != slot.StatusActive {
			return fmt.Errorf("%w: slot is %s", ErrSlotNotRefundable, view.Status)
		}
		request = Request{
			RefundID:       service.idFn(),
			SlotID:         slotID,
			RequesterID:    requesterID,
			RefundCents:    amountCents,
			Status:         StatusPending,
			Reason:         reason,
			RequestUnixUTC: service.nowFn(),
		}
		return transactionStore.InsertRefund(ctx, request)
	})
	if err != nil {
		return Request{}, err
	}
	return request, nil
}

// Confirm records the distributor/admin decision on a pending refund. A full
// approval moves straight to approved and starts the payout delay; a partial
// approval parks the refund in pending_user_confirmation until the requester
// accepts the lower amount. Approving more than was requested is rejected
// before any write.
func (service *Service) Confirm(ctx context.Context, refundID string, approverID string, approverRole role.Role, approve bool, approvedCents int64, notes string) (Request, error) {
	var updated Request
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRefundForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		view, err := transactionStore.GetSlotView(ctx, request.SlotID)
		if err != nil {
			return err
		}
		if err := requireApprover(view, approverID, approverRole); err != nil {
			return err
		}
		if request.Status != StatusPending {
			return fmt.Errorf("%w: refund is %s", ErrInvalidTransition, request.Status)
		}
		if !approve {
			if err := transactionStore.SetRefundDecision(ctx, refundID, StatusRejected, 0, notes, service.nowFn()); err != nil {
				return err
			}
			updated = request
			updated.Status = StatusRejected
			updated.ApprovalNotes = notes
			return nil
		}

		if approvedCents == 0 {
			approvedCents = request.RefundCents
		}
		if approvedCents > request.RefundCents {
			return ErrApprovedExceedsAsked
		}
		if approvedCents <= 0 {
			return fmt.Errorf("%w: approved amount must be positive", ErrInvalidRefund)
		}
		status := StatusApproved
		if approvedCents < request.RefundCents {
			status = StatusPendingConfirmation
		}
		now := service.nowFn()
		if err := transactionStore.SetRefundDecision(ctx, refundID, status, approvedCents, notes, now); err != nil {
			return err
		}
		if status == StatusApproved {
			if err := transactionStore.UpdateSlotStatus(ctx, request.SlotID, slot.StatusActive, slot.StatusRefundApproved); err != nil {
				return err
			}
		}
		updated = request
		updated.Status = status
		updated.ApprovedCents = approvedCents
		updated.ApprovalNotes = notes
		updated.ApprovalUnixUTC = now
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return updated, nil
}

// ConfirmPartial records the requester's answer to a partial approval.
// Accepting restarts the payout clock from the acceptance time.
func (service *Service) ConfirmPartial(ctx context.Context, refundID string, requesterID string, accept bool) (Request, error) {
	var updated Request
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRefundForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		if request.RequesterID != requesterID {
			return ErrNotFoundOrForbidden
		}
		if request.Status != StatusPendingConfirmation {
			return fmt.Errorf("%w: refund is %s", ErrInvalidTransition, request.Status)
		}
		now := service.nowFn()
		if !accept {
			if err := transactionStore.SetRefundDecision(ctx, refundID, StatusRejected, request.ApprovedCents, request.ApprovalNotes, now); err != nil {
				return err
			}
			updated = request
			updated.Status = StatusRejected
			return nil
		}
		if err := transactionStore.SetRefundDecision(ctx, refundID, StatusApproved, request.ApprovedCents, request.ApprovalNotes, now); err != nil {
			return err
		}
		if err := transactionStore.UpdateSlotStatus(ctx, request.SlotID, slot.StatusActive, slot.StatusRefundApproved); err != nil {
			return err
		}
		updated = request
		updated.Status = StatusApproved
		updated.ApprovalUnixUTC = now
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return updated, nil
}

// ProcessScheduled sweeps every approved refund whose payout delay has
// elapsed. Each refund is processed in its own transaction; one failure never
// halts the rest of the batch.
func (service *Service) ProcessScheduled(ctx context.Context) (SweepSummary, []Changeset, error) {
	dueIDs, err := service.store.ListDueRefundIDs(ctx, service.nowFn()-service.payoutDelaySeconds)
	if err != nil {
		return SweepSummary{}, nil, err
	}
	summary := SweepSummary{Processed: len(dueIDs)}
	changesets := make([]Changeset, 0, len(dueIDs))
	var failures []error
	for _, refundID := range dueIDs {
		changeset, err := service.ProcessOne(ctx, refundID)
		if err != nil {
			summary.Failed++
			failures = append(failures, fmt.Errorf("refund %s: %w", refundID, err))
			continue
		}
		summary.Succeeded++
		summary.TotalCents += changeset.RequesterCreditCents + changeset.DistributorCreditCents
		changesets = append(changesets, changeset)
	}
	if service.notifier != nil {
		for _, changeset := range changesets {
			service.notifier.RefundProcessed(ctx, changeset)
		}
	}
	return summary, changesets, joinErrors(failures)
}

// ProcessOne pays out a single due refund.
func (service *Service) ProcessOne(ctx context.Context, refundID string) (Changeset, error) {
	var changeset Changeset
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRefundForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		view, err := transactionStore.GetSlotView(ctx, request.SlotID)
		if err != nil {
			return err
		}
		changeset, err = service.computeChangeset(request, view)
		if err != nil {
			return err
		}
		return service.applyChangeset(ctx, transactionStore, changeset)
	})
	if err != nil {
		return Changeset{}, err
	}
	return changeset, nil
}

// Simulate computes the changesets the next sweep would apply without
// writing anything.
func (service *Service) Simulate(ctx context.Context) (SweepSummary, []Changeset, error) {
	dueIDs, err := service.store.ListDueRefundIDs(ctx, service.nowFn()-service.payoutDelaySeconds)
	if err != nil {
		return SweepSummary{}, nil, err
	}
	summary := SweepSummary{Processed: len(dueIDs)}
	changesets := make([]Changeset, 0, len(dueIDs))
	for _, refundID := range dueIDs {
		changeset, err := service.SimulateOne(ctx, refundID)
		if err != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
		summary.TotalCents += changeset.RequesterCreditCents + changeset.DistributorCreditCents
		changesets = append(changesets, changeset)
	}
	return summary, changesets, nil
}

// SimulateOne computes the changeset one refund would apply, without writes.
func (service *Service) SimulateOne(ctx context.Context, refundID string) (Changeset, error) {
	request, err := service.store.GetRefund(ctx, refundID)
	if err != nil {
		return Changeset{}, err
	}
	view, err := service.store.GetSlotView(ctx, request.SlotID)
	if err != nil {
		return Changeset{}, err
	}
	return service.computeChangeset(request, view)
}

// computeChangeset is the single source of truth for what a payout writes:
// the requester receives the approved amount and the distributor receives the
// difference on a partial approval, conserving the requested total.
func (service *Service) computeChangeset(request Request, view SlotView) (Changeset, error) {
	if request.Status != StatusApproved {
		return Changeset{}, fmt.Errorf("%w: refund is %s", ErrInvalidTransition, request.Status)
	}
	if request.ApprovalUnixUTC+service.payoutDelaySeconds > service.nowFn() {
		return Changeset{}, fmt.Errorf("%w: payout delay has not elapsed", ErrInvalidTransition)
	}
	if view.Status == slot.StatusRefunded {
		return Changeset{}, fmt.Errorf("%w: slot already refunded", ErrInvalidTransition)
	}
	approved := request.ApprovedCents
	if approved == 0 {
		approved = request.RefundCents
	}
	difference := request.RefundCents - approved
	if difference > 0 && view.DistributorID == "" {
		return Changeset{}, ErrNoDistributorForSplit
	}
	return Changeset{
		RefundID:               request.RefundID,
		SlotID:                 request.SlotID,
		RequesterID:            request.RequesterID,
		DistributorID:          view.DistributorID,
		RequesterCreditCents:   approved,
		DistributorCreditCents: difference,
	}, nil
}

func (service *Service) applyChangeset(ctx context.Context, transactionStore Store, changeset Changeset) error {
	now := service.nowFn()
	if err := transactionStore.UpdateSlotStatus(ctx, changeset.SlotID, slot.StatusRefundApproved, slot.StatusRefunded); err != nil {
		return err
	}
	if err := service.creditPaid(ctx, transactionStore, changeset.RequesterID, changeset.RequesterCreditCents, ledger.EntryRefund, changeset, now); err != nil {
		return err
	}
	if changeset.DistributorCreditCents > 0 {
		if err := service.creditPaid(ctx, transactionStore, changeset.DistributorID, changeset.DistributorCreditCents, ledger.EntryRefundDifference, changeset, now); err != nil {
			return err
		}
	}
	if err := transactionStore.ResolvePendingBalance(ctx, changeset.SlotID); err != nil {
		return err
	}
	return transactionStore.MarkRefundPaidOut(ctx, changeset.RefundID, now)
}

func (service *Service) creditPaid(ctx context.Context, transactionStore Store, userID string, amountCents int64, entryType ledger.EntryType, changeset Changeset, nowUnixUTC int64) error {
	balance, err := transactionStore.GetBalanceForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	balance.PaidCents += amountCents
	if err := transactionStore.SaveBalance(ctx, userID, balance); err != nil {
		return err
	}
	metadata, err := json.Marshal(map[string]any{
		"refund_id": changeset.RefundID,
		"slot_id":   changeset.SlotID,
	})
	if err != nil {
		return err
	}
	return transactionStore.InsertCashHistory(ctx, ledger.Entry{
		UserID:         userID,
		Type:           entryType,
		PaidCents:      amountCents,
		Note:           string(entryType),
		MetadataJSON:   string(metadata),
		CreatedUnixUTC: nowUnixUTC,
	})
}

func requireApprover(view SlotView, approverID string, approverRole role.Role) error {
	if approverRole == role.Admin {
		return nil
	}
	if approverRole == role.Distributor && view.DistributorID == approverID {
		return nil
	}
	return ErrNotFoundOrForbidden
}

func joinErrors(failures []error) error {
	if len(failures) == 0 {
		return nil
	}
	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		messages = append(messages, failure.Error())
	}
	return fmt.Errorf("%d refunds failed: %s", len(failures), strings.Join(messages, "; "))
}
