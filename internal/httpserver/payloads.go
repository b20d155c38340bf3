package httpserver

import (
	"github.com/adforge/slotmarket/internal/guarantee"
	"github.com/adforge/slotmarket/internal/inquiry"
	"github.com/adforge/slotmarket/internal/keyword"
	"github.com/adforge/slotmarket/internal/refund"
	"github.com/adforge/slotmarket/internal/settings"
	"github.com/adforge/slotmarket/pkg/ledger"
)

type entryPayload struct {
	EntryID        string `json:"entry_id"`
	Type           string `json:"type"`
	FreeCents      int64  `json:"free_cents"`
	PaidCents      int64  `json:"paid_cents"`
	Note           string `json:"note"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}

func entryPayloads(entries []ledger.Entry) []entryPayload {
	payloads := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		payloads = append(payloads, entryPayload{
			EntryID:        entry.EntryID,
			Type:           string(entry.Type),
			FreeCents:      entry.FreeCents,
			PaidCents:      entry.PaidCents,
			Note:           entry.Note,
			CreatedUnixUTC: entry.CreatedUnixUTC,
		})
	}
	return payloads
}

type groupPayload struct {
	GroupID        string `json:"group_id"`
	Name           string `json:"name"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
	UpdatedUnixUTC int64  `json:"updated_unix_utc"`
}

func groupToPayload(group keyword.Group) groupPayload {
	return groupPayload{
		GroupID:        group.GroupID,
		Name:           group.Name,
		CreatedUnixUTC: group.CreatedUnixUTC,
		UpdatedUnixUTC: group.UpdatedUnixUTC,
	}
}

func groupPayloads(groups []keyword.Group) []groupPayload {
	payloads := make([]groupPayload, 0, len(groups))
	for _, group := range groups {
		payloads = append(payloads, groupToPayload(group))
	}
	return payloads
}

type keywordPayload struct {
	KeywordID      string   `json:"keyword_id"`
	GroupID        string   `json:"group_id"`
	MainKeyword    string   `json:"main_keyword"`
	MID            string   `json:"mid"`
	URL            string   `json:"url"`
	SubKeywords    []string `json:"sub_keywords"`
	Description    string   `json:"description"`
	IsActive       bool     `json:"is_active"`
	CreatedUnixUTC int64    `json:"created_unix_utc"`
	UpdatedUnixUTC int64    `json:"updated_unix_utc"`
}

func keywordToPayload(record keyword.Keyword) keywordPayload {
	return keywordPayload{
		KeywordID:      record.KeywordID,
		GroupID:        record.GroupID,
		MainKeyword:    record.MainKeyword,
		MID:            record.MID,
		URL:            record.URL,
		SubKeywords:    record.SubKeywords,
		Description:    record.Description,
		IsActive:       record.IsActive,
		CreatedUnixUTC: record.CreatedUnixUTC,
		UpdatedUnixUTC: record.UpdatedUnixUTC,
	}
}

func keywordPayloads(records []keyword.Keyword) []keywordPayload {
	payloads := make([]keywordPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, keywordToPayload(record))
	}
	return payloads
}

type guaranteePayload struct {
	RequestID          string `json:"request_id"`
	CampaignID         string `json:"campaign_id"`
	UserID             string `json:"user_id"`
	DistributorID      string `json:"distributor_id"`
	KeywordID          string `json:"keyword_id"`
	TargetRank         int    `json:"target_rank"`
	GuaranteeCount     int    `json:"guarantee_count"`
	InitialBudgetCents int64  `json:"initial_budget_cents"`
	FinalDailyCents    int64  `json:"final_daily_cents"`
	FinalTotalCents    int64  `json:"final_total_cents"`
	Status             string `json:"status"`
	StartDateUnixUTC   int64  `json:"start_date_unix_utc"`
	EndDateUnixUTC     int64  `json:"end_date_unix_utc"`
	ExpiresAtUnixUTC   int64  `json:"expires_at_unix_utc"`
	CreatedUnixUTC     int64  `json:"created_unix_utc"`
}

func guaranteeToPayload(request guarantee.Request) guaranteePayload {
	return guaranteePayload{
		RequestID:          request.RequestID,
		CampaignID:         request.CampaignID,
		UserID:             request.UserID,
		DistributorID:      request.DistributorID,
		KeywordID:          request.KeywordID,
		TargetRank:         request.TargetRank,
		GuaranteeCount:     request.GuaranteeCount,
		InitialBudgetCents: request.InitialBudgetCents,
		FinalDailyCents:    request.FinalDailyCents,
		FinalTotalCents:    request.FinalTotalCents,
		Status:             request.Status.String(),
		StartDateUnixUTC:   request.StartDateUnixUTC,
		EndDateUnixUTC:     request.EndDateUnixUTC,
		ExpiresAtUnixUTC:   request.ExpiresAtUnixUTC,
		CreatedUnixUTC:     request.CreatedUnixUTC,
	}
}

func guaranteePayloads(requests []guarantee.Request) []guaranteePayload {
	payloads := make([]guaranteePayload, 0, len(requests))
	for _, request := range requests {
		payloads = append(payloads, guaranteeToPayload(request))
	}
	return payloads
}

type negotiationMessagePayload struct {
	MessageID          string `json:"message_id"`
	RequestID          string `json:"request_id"`
	SenderID           string `json:"sender_id"`
	SenderRole         string `json:"sender_role"`
	Content            string `json:"content"`
	ProposedDailyCents int64  `json:"proposed_daily_cents"`
	ProposedTotalCents int64  `json:"proposed_total_cents"`
	CreatedUnixUTC     int64  `json:"created_unix_utc"`
}

func negotiationMessageToPayload(message guarantee.Message) negotiationMessagePayload {
	return negotiationMessagePayload{
		MessageID:          message.MessageID,
		RequestID:          message.RequestID,
		SenderID:           message.SenderID,
		SenderRole:         message.SenderRole,
		Content:            message.Content,
		ProposedDailyCents: message.ProposedDailyCents,
		ProposedTotalCents: message.ProposedTotalCents,
		CreatedUnixUTC:     message.CreatedUnixUTC,
	}
}

func negotiationMessagePayloads(messages []guarantee.Message) []negotiationMessagePayload {
	payloads := make([]negotiationMessagePayload, 0, len(messages))
	for _, message := range messages {
		payloads = append(payloads, negotiationMessageToPayload(message))
	}
	return payloads
}

type refundPayload struct {
	RefundID        string `json:"refund_id"`
	SlotID          string `json:"slot_id"`
	RequesterID     string `json:"requester_id"`
	RefundCents     int64  `json:"refund_cents"`
	ApprovedCents   int64  `json:"approved_cents"`
	Status          string `json:"status"`
	Reason          string `json:"reason"`
	ApprovalNotes   string `json:"approval_notes"`
	RequestUnixUTC  int64  `json:"request_unix_utc"`
	ApprovalUnixUTC int64  `json:"approval_unix_utc"`
	PaidOutUnixUTC  int64  `json:"paid_out_unix_utc"`
}

func refundToPayload(request refund.Request) refundPayload {
	return refundPayload{
		RefundID:        request.RefundID,
		SlotID:          request.SlotID,
		RequesterID:     request.RequesterID,
		RefundCents:     request.RefundCents,
		ApprovedCents:   request.ApprovedCents,
		Status:          request.Status.String(),
		Reason:          request.Reason,
		ApprovalNotes:   request.ApprovalNotes,
		RequestUnixUTC:  request.RequestUnixUTC,
		ApprovalUnixUTC: request.ApprovalUnixUTC,
		PaidOutUnixUTC:  request.PaidOutUnixUTC,
	}
}

type inquiryPayload struct {
	InquiryID       string `json:"inquiry_id"`
	SlotID          string `json:"slot_id"`
	GuaranteeSlotID string `json:"guarantee_slot_id"`
	CampaignID      string `json:"campaign_id"`
	UserID          string `json:"user_id"`
	DistributorID   string `json:"distributor_id"`
	Status          string `json:"status"`
	Title           string `json:"title"`
	Category        string `json:"category"`
	CreatedUnixUTC  int64  `json:"created_unix_utc"`
}

func inquiryToPayload(thread inquiry.Inquiry) inquiryPayload {
	return inquiryPayload{
		InquiryID:       thread.InquiryID,
		SlotID:          thread.SlotID,
		GuaranteeSlotID: thread.GuaranteeSlotID,
		CampaignID:      thread.CampaignID,
		UserID:          thread.UserID,
		DistributorID:   thread.DistributorID,
		Status:          thread.Status.String(),
		Title:           thread.Title,
		Category:        thread.Category,
		CreatedUnixUTC:  thread.CreatedUnixUTC,
	}
}

func inquiryPayloads(threads []inquiry.Inquiry) []inquiryPayload {
	payloads := make([]inquiryPayload, 0, len(threads))
	for _, thread := range threads {
		payloads = append(payloads, inquiryToPayload(thread))
	}
	return payloads
}

type inquiryMessagePayload struct {
	MessageID      string              `json:"message_id"`
	InquiryID      string              `json:"inquiry_id"`
	SenderID       string              `json:"sender_id"`
	SenderRole     string              `json:"sender_role"`
	Content        string              `json:"content"`
	Attachments    []attachmentPayload `json:"attachments"`
	IsRead         bool                `json:"is_read"`
	CreatedUnixUTC int64               `json:"created_unix_utc"`
}

func inquiryMessageToPayload(message inquiry.Message) inquiryMessagePayload {
	attachments := make([]attachmentPayload, 0, len(message.Attachments))
	for _, attachment := range message.Attachments {
		attachments = append(attachments, attachmentPayload{
			FileName:   attachment.FileName,
			SizeBytes:  attachment.SizeBytes,
			MimeType:   attachment.MimeType,
			StorageKey: attachment.StorageKey,
		})
	}
	return inquiryMessagePayload{
		MessageID:      message.MessageID,
		InquiryID:      message.InquiryID,
		SenderID:       message.SenderID,
		SenderRole:     message.SenderRole.String(),
		Content:        message.Content,
		Attachments:    attachments,
		IsRead:         message.IsRead,
		CreatedUnixUTC: message.CreatedUnixUTC,
	}
}

func inquiryMessagePayloads(messages []inquiry.Message) []inquiryMessagePayload {
	payloads := make([]inquiryMessagePayload, 0, len(messages))
	for _, message := range messages {
		payloads = append(payloads, inquiryMessageToPayload(message))
	}
	return payloads
}

type globalSettingsPayload struct {
	BankName           string `json:"bank_name"`
	BankAccountNumber  string `json:"bank_account_number"`
	BankAccountHolder  string `json:"bank_account_holder"`
	ChargeBonusPercent int64  `json:"charge_bonus_percent"`
	MinChargeCents     int64  `json:"min_charge_cents"`
	UpdatedUnixUTC     int64  `json:"updated_unix_utc"`
}

func globalSettingsToPayload(row settings.GlobalSettings) globalSettingsPayload {
	return globalSettingsPayload{
		BankName:           row.BankName,
		BankAccountNumber:  row.BankAccountNumber,
		BankAccountHolder:  row.BankAccountHolder,
		ChargeBonusPercent: row.ChargeBonusPercent,
		MinChargeCents:     row.MinChargeCents,
		UpdatedUnixUTC:     row.UpdatedUnixUTC,
	}
}

type userSettingsPayload struct {
	UserID                   string `json:"user_id"`
	DepositorName            string `json:"depositor_name"`
	TaxInvoiceEmail          string `json:"tax_invoice_email"`
	AutoChargeEnabled        bool   `json:"auto_charge_enabled"`
	AutoChargeThresholdCents int64  `json:"auto_charge_threshold_cents"`
	AutoChargeAmountCents    int64  `json:"auto_charge_amount_cents"`
	UpdatedUnixUTC           int64  `json:"updated_unix_utc"`
}

func userSettingsToPayload(row settings.UserSettings) userSettingsPayload {
	return userSettingsPayload{
		UserID:                   row.UserID,
		DepositorName:            row.DepositorName,
		TaxInvoiceEmail:          row.TaxInvoiceEmail,
		AutoChargeEnabled:        row.AutoChargeEnabled,
		AutoChargeThresholdCents: row.AutoChargeThresholdCents,
		AutoChargeAmountCents:    row.AutoChargeAmountCents,
		UpdatedUnixUTC:           row.UpdatedUnixUTC,
	}
}

type searchLimitsPayload struct {
	Role            string `json:"role"`
	DailyLimit      int64  `json:"daily_limit"`
	IntervalSeconds int64  `json:"interval_seconds"`
	UpdatedUnixUTC  int64  `json:"updated_unix_utc"`
}

func searchLimitsToPayload(row settings.SearchLimits) searchLimitsPayload {
	return searchLimitsPayload{
		Role:            row.Role.String(),
		DailyLimit:      row.DailyLimit,
		IntervalSeconds: row.IntervalSeconds,
		UpdatedUnixUTC:  row.UpdatedUnixUTC,
	}
}
