package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User mirrors the users table. Identity and role claims travel in the JWT;
// this row anchors the foreign keys of everything a user owns.
type User struct {
	UserID    string    `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"not null;index:idx_users_email,unique"`
	Role      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	return nil
}

// UserBalance mirrors the user_balances table: one row per user, both pools
// never negative.
type UserBalance struct {
	UserID    string    `gorm:"type:uuid;primaryKey"`
	FreeCents int64     `gorm:"not null;check:free_cents >= 0"`
	PaidCents int64     `gorm:"not null;check:paid_cents >= 0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (UserBalance) TableName() string { return "user_balances" }

// UserCashHistory mirrors the user_cash_history table. Rows are append-only;
// free/paid cents are signed deltas.
type UserCashHistory struct {
	EntryID   string         `gorm:"type:uuid;primaryKey"`
	UserID    string         `gorm:"type:uuid;not null;index:idx_cash_history_user_created,priority:1"`
	Type      string         `gorm:"not null"`
	FreeCents int64          `gorm:"not null"`
	PaidCents int64          `gorm:"not null"`
	Note      string         `gorm:""`
	Metadata  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;index:idx_cash_history_user_created,priority:2"`
}

func (UserCashHistory) TableName() string { return "user_cash_history" }

func (entry *UserCashHistory) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// KeywordGroup mirrors the keyword_groups table.
type KeywordGroup struct {
	GroupID   string    `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"type:uuid;not null;index:idx_keyword_groups_user"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (KeywordGroup) TableName() string { return "keyword_groups" }

func (group *KeywordGroup) BeforeCreate(tx *gorm.DB) error {
	if group.GroupID == "" {
		group.GroupID = uuid.NewString()
	}
	return nil
}

// KeywordRecord mirrors the keywords table. SubKeywords holds at most three
// values as a JSON array.
type KeywordRecord struct {
	KeywordID   string         `gorm:"type:uuid;primaryKey"`
	GroupID     string         `gorm:"type:uuid;not null;index:idx_keywords_group"`
	MainKeyword string         `gorm:"not null"`
	MID         string         `gorm:"column:mid"`
	URL         string         `gorm:"column:url"`
	SubKeywords datatypes.JSON `gorm:"not null"`
	Description string         `gorm:""`
	IsActive    bool           `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

func (KeywordRecord) TableName() string { return "keywords" }

func (record *KeywordRecord) BeforeCreate(tx *gorm.DB) error {
	if record.KeywordID == "" {
		record.KeywordID = uuid.NewString()
	}
	return nil
}

// SlotRecord mirrors the slots table.
type SlotRecord struct {
	SlotID                string         `gorm:"type:uuid;primaryKey"`
	UserID                string         `gorm:"type:uuid;not null;index:idx_slots_user"`
	DistributorID         string         `gorm:"type:uuid;index:idx_slots_distributor"`
	KeywordID             string         `gorm:"type:uuid;index:idx_slots_keyword"`
	Status                string         `gorm:"not null;index:idx_slots_status"`
	InputData             datatypes.JSON `gorm:"not null"`
	AmountCents           int64          `gorm:"not null"`
	IsAutoRefundCandidate bool           `gorm:"not null"`
	IsAutoContinue        bool           `gorm:"not null"`
	CreatedAt             time.Time      `gorm:"not null"`
	UpdatedAt             time.Time      `gorm:"not null"`
}

func (SlotRecord) TableName() string { return "slots" }

func (record *SlotRecord) BeforeCreate(tx *gorm.DB) error {
	if record.SlotID == "" {
		record.SlotID = uuid.NewString()
	}
	return nil
}

// SlotHistoryLog mirrors the slot_history_logs table.
type SlotHistoryLog struct {
	LogID     string         `gorm:"type:uuid;primaryKey"`
	SlotID    string         `gorm:"type:uuid;not null;index:idx_slot_history_slot"`
	UserID    string         `gorm:"type:uuid;not null"`
	Action    string         `gorm:"not null"`
	Note      string         `gorm:""`
	Details   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (SlotHistoryLog) TableName() string { return "slot_history_logs" }

func (log *SlotHistoryLog) BeforeCreate(tx *gorm.DB) error {
	if log.LogID == "" {
		log.LogID = uuid.NewString()
	}
	return nil
}

// SlotPendingBalance mirrors the slot_pending_balances table.
type SlotPendingBalance struct {
	SlotID      string    `gorm:"type:uuid;primaryKey"`
	AmountCents int64     `gorm:"not null"`
	Status      string    `gorm:"not null;index:idx_pending_balances_status"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (SlotPendingBalance) TableName() string { return "slot_pending_balances" }

// SlotRefundApproval mirrors the slot_refund_approvals table.
type SlotRefundApproval struct {
	RefundID      string     `gorm:"type:uuid;primaryKey"`
	SlotID        string     `gorm:"type:uuid;not null;index:idx_refunds_slot"`
	RequesterID   string     `gorm:"type:uuid;not null"`
	RefundCents   int64      `gorm:"not null"`
	ApprovedCents int64      `gorm:"not null"`
	Status        string     `gorm:"not null;index:idx_refunds_status"`
	Reason        string     `gorm:""`
	ApprovalNotes string     `gorm:""`
	RequestedAt   time.Time  `gorm:"not null"`
	ApprovalAt    *time.Time `gorm:"index:idx_refunds_approval_at"`
	PaidOutAt     *time.Time `gorm:""`
}

func (SlotRefundApproval) TableName() string { return "slot_refund_approvals" }

func (approval *SlotRefundApproval) BeforeCreate(tx *gorm.DB) error {
	if approval.RefundID == "" {
		approval.RefundID = uuid.NewString()
	}
	return nil
}

// GuaranteeSlotRequest mirrors the guarantee_slot_requests table.
type GuaranteeSlotRequest struct {
	RequestID          string         `gorm:"type:uuid;primaryKey"`
	CampaignID         string         `gorm:""`
	UserID             string         `gorm:"type:uuid;not null;index:idx_guarantee_requests_user"`
	DistributorID      string         `gorm:"type:uuid;not null;index:idx_guarantee_requests_distributor"`
	KeywordID          string         `gorm:"type:uuid"`
	TargetRank         int            `gorm:"not null"`
	GuaranteeCount     int            `gorm:"not null"`
	InitialBudgetCents int64          `gorm:"not null"`
	FinalDailyCents    int64          `gorm:"not null"`
	FinalTotalCents    int64          `gorm:"not null"`
	Status             string         `gorm:"not null;index:idx_guarantee_requests_status"`
	InputData          datatypes.JSON `gorm:"not null"`
	StartDate          *time.Time     `gorm:""`
	EndDate            *time.Time     `gorm:""`
	ExpiresAt          *time.Time     `gorm:""`
	CreatedAt          time.Time      `gorm:"not null"`
	UpdatedAt          time.Time      `gorm:"not null"`
}

func (GuaranteeSlotRequest) TableName() string { return "guarantee_slot_requests" }

func (request *GuaranteeSlotRequest) BeforeCreate(tx *gorm.DB) error {
	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}
	return nil
}

// GuaranteeNegotiationMessage mirrors the guarantee_negotiation_messages
// table.
type GuaranteeNegotiationMessage struct {
	MessageID          string    `gorm:"type:uuid;primaryKey"`
	RequestID          string    `gorm:"type:uuid;not null;index:idx_negotiation_messages_request"`
	SenderID           string    `gorm:"type:uuid;not null"`
	SenderRole         string    `gorm:"not null"`
	Content            string    `gorm:""`
	ProposedDailyCents int64     `gorm:"not null"`
	ProposedTotalCents int64     `gorm:"not null"`
	CreatedAt          time.Time `gorm:"not null;index:idx_negotiation_messages_created"`
}

func (GuaranteeNegotiationMessage) TableName() string { return "guarantee_negotiation_messages" }

func (message *GuaranteeNegotiationMessage) BeforeCreate(tx *gorm.DB) error {
	if message.MessageID == "" {
		message.MessageID = uuid.NewString()
	}
	return nil
}

// GuaranteeSlot mirrors the guarantee_slots table. SlotID references the
// regular slot row created by the purchase.
type GuaranteeSlot struct {
	GuaranteeSlotID string     `gorm:"type:uuid;primaryKey"`
	RequestID       string     `gorm:"type:uuid;not null;index:idx_guarantee_slots_request,unique"`
	SlotID          string     `gorm:"type:uuid;not null;index:idx_guarantee_slots_slot"`
	Status          string     `gorm:"not null;index:idx_guarantee_slots_status"`
	ApprovedAt      *time.Time `gorm:""`
	ApprovedBy      string     `gorm:"type:uuid"`
	RejectedAt      *time.Time `gorm:""`
	RejectedBy      string     `gorm:"type:uuid"`
	RejectionReason string     `gorm:""`
	StartDate       *time.Time `gorm:""`
	EndDate         *time.Time `gorm:""`
	CreatedAt       time.Time  `gorm:"not null"`
}

func (GuaranteeSlot) TableName() string { return "guarantee_slots" }

func (record *GuaranteeSlot) BeforeCreate(tx *gorm.DB) error {
	if record.GuaranteeSlotID == "" {
		record.GuaranteeSlotID = uuid.NewString()
	}
	return nil
}

// InquiryRecord mirrors the inquiries table.
type InquiryRecord struct {
	InquiryID       string    `gorm:"type:uuid;primaryKey"`
	SlotID          string    `gorm:"type:uuid;index:idx_inquiries_slot"`
	GuaranteeSlotID string    `gorm:"type:uuid;index:idx_inquiries_guarantee_slot"`
	CampaignID      string    `gorm:""`
	UserID          string    `gorm:"type:uuid;not null;index:idx_inquiries_user"`
	DistributorID   string    `gorm:"type:uuid;index:idx_inquiries_distributor"`
	Status          string    `gorm:"not null"`
	Title           string    `gorm:"not null"`
	Category        string    `gorm:""`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (InquiryRecord) TableName() string { return "inquiries" }

func (record *InquiryRecord) BeforeCreate(tx *gorm.DB) error {
	if record.InquiryID == "" {
		record.InquiryID = uuid.NewString()
	}
	return nil
}

// InquiryMessageRecord mirrors the inquiry_messages table. Attachments holds
// metadata only; the bytes live in object storage.
type InquiryMessageRecord struct {
	MessageID   string         `gorm:"type:uuid;primaryKey"`
	InquiryID   string         `gorm:"type:uuid;not null;index:idx_inquiry_messages_inquiry_created,priority:1"`
	SenderID    string         `gorm:"type:uuid;not null"`
	SenderRole  string         `gorm:"not null"`
	Content     string         `gorm:""`
	Attachments datatypes.JSON `gorm:"not null"`
	IsRead      bool           `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_inquiry_messages_inquiry_created,priority:2"`
}

func (InquiryMessageRecord) TableName() string { return "inquiry_messages" }

func (record *InquiryMessageRecord) BeforeCreate(tx *gorm.DB) error {
	if record.MessageID == "" {
		record.MessageID = uuid.NewString()
	}
	return nil
}

// CashGlobalSetting mirrors the cash_global_settings table. A single row
// keyed by a fixed id.
type CashGlobalSetting struct {
	SettingID          string    `gorm:"primaryKey"`
	BankName           string    `gorm:"not null"`
	BankAccountNumber  string    `gorm:"not null"`
	BankAccountHolder  string    `gorm:""`
	ChargeBonusPercent int64     `gorm:"not null"`
	MinChargeCents     int64     `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

func (CashGlobalSetting) TableName() string { return "cash_global_settings" }

// CashUserSetting mirrors the cash_user_settings table.
type CashUserSetting struct {
	UserID                   string    `gorm:"type:uuid;primaryKey"`
	DepositorName            string    `gorm:""`
	TaxInvoiceEmail          string    `gorm:""`
	AutoChargeEnabled        bool      `gorm:"not null"`
	AutoChargeThresholdCents int64     `gorm:"not null"`
	AutoChargeAmountCents    int64     `gorm:"not null"`
	UpdatedAt                time.Time `gorm:"not null"`
}

func (CashUserSetting) TableName() string { return "cash_user_settings" }

// SearchLimitsConfig mirrors the search_limits_config table, one row per
// role.
type SearchLimitsConfig struct {
	Role            string    `gorm:"primaryKey"`
	DailyLimit      int64     `gorm:"not null"`
	IntervalSeconds int64     `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (SearchLimitsConfig) TableName() string { return "search_limits_config" }

// Models returns every table for automigration.
func Models() []any {
	return []any{
		&User{},
		&UserBalance{},
		&UserCashHistory{},
		&KeywordGroup{},
		&KeywordRecord{},
		&SlotRecord{},
		&SlotHistoryLog{},
		&SlotPendingBalance{},
		&SlotRefundApproval{},
		&GuaranteeSlotRequest{},
		&GuaranteeNegotiationMessage{},
		&GuaranteeSlot{},
		&InquiryRecord{},
		&InquiryMessageRecord{},
		&CashGlobalSetting{},
		&CashUserSetting{},
		&SearchLimitsConfig{},
	}
}
