package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/adforge/slotmarket/internal/guarantee"
	"github.com/adforge/slotmarket/internal/slot"
)

func openTestDatabase(test *testing.T) *gorm.DB {
	test.Helper()
	database, err := gorm.Open(sqlite.Open(test.TempDir()+"/slotmarket.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	if err := database.AutoMigrate(Models()...); err != nil {
		test.Fatalf("automigrate failed: %v", err)
	}
	return database
}

func seedGuaranteeSlot(test *testing.T, store *GuaranteeStore, guaranteeSlotID, slotID string) {
	test.Helper()
	now := time.Now().UTC().Unix()
	err := store.InsertSlotRecord(context.Background(), slot.Slot{
		SlotID:         slotID,
		UserID:         "adv-1",
		DistributorID:  "dist-1",
		KeywordID:      "kw-1",
		Status:         slot.StatusPending,
		InputDataJSON:  `{"rank":3}`,
		AmountCents:    100000,
		CreatedUnixUTC: now,
	})
	if err != nil {
		test.Fatalf("insert slot record: %v", err)
	}
	err = store.InsertGuaranteeSlot(context.Background(), guarantee.Slot{
		GuaranteeSlotID: guaranteeSlotID,
		RequestID:       "req-" + guaranteeSlotID,
		SlotID:          slotID,
		Status:          guarantee.SlotPending,
		CreatedUnixUTC:  now,
	})
	if err != nil {
		test.Fatalf("insert guarantee slot: %v", err)
	}
}

func TestApproveGuaranteeSlotPersistsStatus(test *testing.T) {
	test.Parallel()
	database := openTestDatabase(test)
	store := NewGuaranteeStore(database)
	seedGuaranteeSlot(test, store, "gslot-1", "slot-1")

	decidedAt := time.Now().UTC().Unix()
	if err := store.ApproveGuaranteeSlot(context.Background(), "gslot-1", "dist-1", decidedAt); err != nil {
		test.Fatalf("approve: %v", err)
	}

	var row GuaranteeSlot
	if err := database.Where("guarantee_slot_id = ?", "gslot-1").Take(&row).Error; err != nil {
		test.Fatalf("reload guarantee slot: %v", err)
	}
	if row.Status != guarantee.SlotActive.String() {
		test.Fatalf("expected status %s, got %s", guarantee.SlotActive, row.Status)
	}
	if row.ApprovedBy != "dist-1" || row.ApprovedAt == nil {
		test.Fatalf("approval metadata not recorded: %+v", row)
	}

	err := store.ApproveGuaranteeSlot(context.Background(), "gslot-1", "dist-1", decidedAt)
	if !errors.Is(err, guarantee.ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition on repeat approval, got %v", err)
	}

	if err := store.UpdateGuaranteeSlotStatus(context.Background(), "gslot-1", guarantee.SlotActive, guarantee.SlotCompleted); err != nil {
		test.Fatalf("complete: %v", err)
	}
	if err := database.Where("guarantee_slot_id = ?", "gslot-1").Take(&row).Error; err != nil {
		test.Fatalf("reload guarantee slot: %v", err)
	}
	if row.Status != guarantee.SlotCompleted.String() {
		test.Fatalf("expected status %s, got %s", guarantee.SlotCompleted, row.Status)
	}
}

func TestRejectGuaranteeSlotPersistsStatusAndReason(test *testing.T) {
	test.Parallel()
	database := openTestDatabase(test)
	store := NewGuaranteeStore(database)
	seedGuaranteeSlot(test, store, "gslot-2", "slot-2")

	decidedAt := time.Now().UTC().Unix()
	if err := store.RejectGuaranteeSlot(context.Background(), "gslot-2", "dist-1", "no capacity", decidedAt); err != nil {
		test.Fatalf("reject: %v", err)
	}

	var row GuaranteeSlot
	if err := database.Where("guarantee_slot_id = ?", "gslot-2").Take(&row).Error; err != nil {
		test.Fatalf("reload guarantee slot: %v", err)
	}
	if row.Status != guarantee.SlotRejected.String() {
		test.Fatalf("expected status %s, got %s", guarantee.SlotRejected, row.Status)
	}
	if row.RejectedBy != "dist-1" || row.RejectionReason != "no capacity" || row.RejectedAt == nil {
		test.Fatalf("rejection metadata not recorded: %+v", row)
	}

	err := store.ApproveGuaranteeSlot(context.Background(), "gslot-2", "dist-1", decidedAt)
	if !errors.Is(err, guarantee.ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition after rejection, got %v", err)
	}
}

func TestUpdateSlotStatusMovesBackingSlot(test *testing.T) {
	test.Parallel()
	database := openTestDatabase(test)
	store := NewGuaranteeStore(database)
	seedGuaranteeSlot(test, store, "gslot-3", "slot-3")

	if err := store.UpdateSlotStatus(context.Background(), "slot-3", slot.StatusPending, slot.StatusActive); err != nil {
		test.Fatalf("activate backing slot: %v", err)
	}

	var row SlotRecord
	if err := database.Where("slot_id = ?", "slot-3").Take(&row).Error; err != nil {
		test.Fatalf("reload slot: %v", err)
	}
	if row.Status != slot.StatusActive.String() {
		test.Fatalf("expected status %s, got %s", slot.StatusActive, row.Status)
	}

	err := store.UpdateSlotStatus(context.Background(), "slot-3", slot.StatusPending, slot.StatusActive)
	if !errors.Is(err, guarantee.ErrInvalidTransition) {
		test.Fatalf("expected ErrInvalidTransition on repeat activation, got %v", err)
	}
}
