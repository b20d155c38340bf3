package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adforge/slotmarket/internal/guarantee"
	"github.com/adforge/slotmarket/internal/inquiry"
	"github.com/adforge/slotmarket/internal/keyword"
	"github.com/adforge/slotmarket/internal/role"
	"github.com/adforge/slotmarket/internal/settings"
	"github.com/adforge/slotmarket/pkg/ledger"
)

type httpHandler struct {
	logger   *zap.Logger
	services Services
}

// --- cash ---

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	userID, err := ledger.NewUserID(callerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	balance, err := handler.services.Ledger.Balance(ctx.Request.Context(), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"free_cents":  balance.FreeCents,
		"paid_cents":  balance.PaidCents,
		"total_cents": balance.TotalCents(),
	})
}

func (handler *httpHandler) handleCashHistory(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	userID, err := ledger.NewUserID(callerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	before, _ := strconv.ParseInt(ctx.Query("before"), 10, 64)
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	entries, err := handler.services.Ledger.History(ctx.Request.Context(), userID, before, limit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"entries": entryPayloads(entries)})
}

type chargeRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

func (handler *httpHandler) handleCharge(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request chargeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	userID, err := ledger.NewUserID(callerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	amount, err := ledger.NewPositiveAmountCents(request.AmountCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	metadata, _ := ledger.NewMetadataJSON("")
	if err := handler.services.Ledger.Charge(ctx.Request.Context(), userID, amount, request.Note, metadata); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.handleBalance(ctx)
}

type bonusRequest struct {
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

func (handler *httpHandler) handleGrantBonus(ctx *gin.Context) {
	_, callerRole := callerIdentity(ctx)
	if callerRole != role.Admin {
		ctx.JSON(http.StatusForbidden, errorResponse("forbidden", "bonus grants are admin only"))
		return
	}
	var request bonusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	amount, err := ledger.NewPositiveAmountCents(request.AmountCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	metadata, _ := ledger.NewMetadataJSON("")
	if err := handler.services.Ledger.GrantBonus(ctx.Request.Context(), userID, amount, request.Note, metadata); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "granted"})
}

// --- keywords ---

type groupRequest struct {
	Name string `json:"name"`
}

func (handler *httpHandler) handleCreateGroup(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request groupRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	group, err := handler.services.Keywords.CreateGroup(ctx.Request.Context(), callerID, request.Name)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, groupToPayload(group))
}

func (handler *httpHandler) handleListGroups(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	groups, err := handler.services.Keywords.ListGroups(ctx.Request.Context(), callerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"groups": groupPayloads(groups)})
}

func (handler *httpHandler) handleDeleteGroup(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	if err := handler.services.Keywords.DeleteGroup(ctx.Request.Context(), callerID, ctx.Param("groupID")); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

type keywordRequest struct {
	MainKeyword string   `json:"main_keyword"`
	MID         string   `json:"mid"`
	URL         string   `json:"url"`
	SubKeywords []string `json:"sub_keywords"`
	Description string   `json:"description"`
}

func (request keywordRequest) toInput() keyword.Input {
	return keyword.Input{
		MainKeyword: request.MainKeyword,
		MID:         request.MID,
		URL:         request.URL,
		SubKeywords: request.SubKeywords,
		Description: request.Description,
	}
}

func (handler *httpHandler) handleCreateKeyword(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request keywordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	record, err := handler.services.Keywords.Create(ctx.Request.Context(), callerID, ctx.Param("groupID"), request.toInput())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, keywordToPayload(record))
}

func (handler *httpHandler) handleListKeywords(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	records, err := handler.services.Keywords.List(ctx.Request.Context(), callerID, ctx.Param("groupID"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"keywords": keywordPayloads(records)})
}

func (handler *httpHandler) handleUpdateKeyword(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request keywordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	record, err := handler.services.Keywords.Update(ctx.Request.Context(), callerID, ctx.Param("keywordID"), request.toInput())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, keywordToPayload(record))
}

type keywordActiveRequest struct {
	Active bool `json:"active"`
}

func (handler *httpHandler) handleSetKeywordActive(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request keywordActiveRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if err := handler.services.Keywords.SetActive(ctx.Request.Context(), callerID, ctx.Param("keywordID"), request.Active); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleDeleteKeyword(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	if err := handler.services.Keywords.Delete(ctx.Request.Context(), callerID, ctx.Param("keywordID")); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// --- purchases ---

type purchaseRequest struct {
	KeywordIDs      []string `json:"keyword_ids"`
	PerKeywordCents int64    `json:"per_keyword_cents"`
}

func (handler *httpHandler) handlePurchase(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request purchaseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	result, err := handler.services.Purchases.Purchase(ctx.Request.Context(), callerID, request.KeywordIDs, request.PerKeywordCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"slot_ids":        result.SlotIDs,
		"total_cents":     result.TotalCents,
		"free_used_cents": result.FreeUsedCents,
		"paid_used_cents": result.PaidUsedCents,
		"balance": gin.H{
			"free_cents": result.Balance.FreeCents,
			"paid_cents": result.Balance.PaidCents,
		},
	})
}

func (handler *httpHandler) handleActivateSlot(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	if err := handler.services.Purchases.ActivateSlot(ctx.Request.Context(), ctx.Param("slotID"), callerID, callerRole); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "active"})
}

// --- guarantees ---

type guaranteeRequestBody struct {
	CampaignID         string `json:"campaign_id"`
	DistributorID      string `json:"distributor_id"`
	KeywordID          string `json:"keyword_id"`
	TargetRank         int    `json:"target_rank"`
	GuaranteeCount     int    `json:"guarantee_count"`
	InitialBudgetCents int64  `json:"initial_budget_cents"`
	StartDateUnixUTC   int64  `json:"start_date_unix_utc"`
	EndDateUnixUTC     int64  `json:"end_date_unix_utc"`
	ExpiresAtUnixUTC   int64  `json:"expires_at_unix_utc"`
}

func (handler *httpHandler) handleCreateGuarantee(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request guaranteeRequestBody
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	created, err := handler.services.Guarantees.CreateRequest(ctx.Request.Context(), callerID, guarantee.RequestInput{
		CampaignID:         request.CampaignID,
		DistributorID:      request.DistributorID,
		KeywordID:          request.KeywordID,
		TargetRank:         request.TargetRank,
		GuaranteeCount:     request.GuaranteeCount,
		InitialBudgetCents: request.InitialBudgetCents,
		StartDateUnixUTC:   request.StartDateUnixUTC,
		EndDateUnixUTC:     request.EndDateUnixUTC,
		ExpiresAtUnixUTC:   request.ExpiresAtUnixUTC,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, guaranteeToPayload(created))
}

func (handler *httpHandler) handleListGuarantees(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	requests, err := handler.services.Guarantees.ListRequests(ctx.Request.Context(), callerID, callerRole)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"requests": guaranteePayloads(requests)})
}

type offerRequest struct {
	Content            string `json:"content"`
	ProposedDailyCents int64  `json:"proposed_daily_cents"`
	ProposedTotalCents int64  `json:"proposed_total_cents"`
}

func (handler *httpHandler) handleSendOffer(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	var request offerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	message, err := handler.services.Guarantees.SendOffer(ctx.Request.Context(), ctx.Param("requestID"), callerID, callerRole,
		request.Content, request.ProposedDailyCents, request.ProposedTotalCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, negotiationMessageToPayload(message))
}

func (handler *httpHandler) handleGuaranteeMessages(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	messages, err := handler.services.Guarantees.Messages(ctx.Request.Context(), ctx.Param("requestID"), callerID, callerRole)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"messages": negotiationMessagePayloads(messages)})
}

type acceptGuaranteeRequest struct {
	FinalDailyCents int64 `json:"final_daily_cents"`
	FinalTotalCents int64 `json:"final_total_cents"`
}

func (handler *httpHandler) handleAcceptGuarantee(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	var request acceptGuaranteeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	err := handler.services.Guarantees.Accept(ctx.Request.Context(), ctx.Param("requestID"), callerID, callerRole,
		request.FinalDailyCents, request.FinalTotalCents)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": guarantee.RequestAccepted.String()})
}

func (handler *httpHandler) handleRejectGuarantee(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	if err := handler.services.Guarantees.Reject(ctx.Request.Context(), ctx.Param("requestID"), callerID, callerRole); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": guarantee.RequestRejected.String()})
}

func (handler *httpHandler) handlePurchaseGuarantee(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	result, err := handler.services.Guarantees.PurchaseAccepted(ctx.Request.Context(), ctx.Param("requestID"), callerID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"slot_id":           result.SlotID,
		"guarantee_slot_id": result.GuaranteeSlotID,
		"total_cents":       result.TotalCents,
		"free_used_cents":   result.FreeUsedCents,
		"paid_used_cents":   result.PaidUsedCents,
		"balance": gin.H{
			"free_cents": result.Balance.FreeCents,
			"paid_cents": result.Balance.PaidCents,
		},
	})
}

func (handler *httpHandler) handleApproveGuaranteeSlot(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	if err := handler.services.Guarantees.ApproveSlot(ctx.Request.Context(), ctx.Param("guaranteeSlotID"), callerID, callerRole); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": guarantee.SlotActive.String()})
}

type rejectSlotRequest struct {
	Reason string `json:"reason"`
}

func (handler *httpHandler) handleRejectGuaranteeSlot(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	var request rejectSlotRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if err := handler.services.Guarantees.RejectSlot(ctx.Request.Context(), ctx.Param("guaranteeSlotID"), callerID, callerRole, request.Reason); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": guarantee.SlotRejected.String()})
}

func (handler *httpHandler) handleCompleteGuaranteeSlot(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	if err := handler.services.Guarantees.CompleteSlot(ctx.Request.Context(), ctx.Param("guaranteeSlotID"), callerID, callerRole); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": guarantee.SlotCompleted.String()})
}

func (handler *httpHandler) handleCancelGuaranteeSlot(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	if err := handler.services.Guarantees.CancelSlot(ctx.Request.Context(), ctx.Param("guaranteeSlotID"), callerID, callerRole); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": guarantee.SlotCancelled.String()})
}

// --- refunds ---

type refundRequestBody struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

func (handler *httpHandler) handleRequestRefund(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request refundRequestBody
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	created, err := handler.services.Refunds.Request(ctx.Request.Context(), ctx.Param("slotID"), callerID, request.AmountCents, request.Reason)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, refundToPayload(created))
}

type confirmRefundRequest struct {
	Approve       bool   `json:"approve"`
	ApprovedCents int64  `json:"approved_cents"`
	Notes         string `json:"notes"`
}

func (handler *httpHandler) handleConfirmRefund(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	var request confirmRefundRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	updated, err := handler.services.Refunds.Confirm(ctx.Request.Context(), ctx.Param("refundID"), callerID, callerRole,
		request.Approve, request.ApprovedCents, request.Notes)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, refundToPayload(updated))
}

type confirmPartialRequest struct {
	Accept bool `json:"accept"`
}

func (handler *httpHandler) handleConfirmPartialRefund(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request confirmPartialRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	updated, err := handler.services.Refunds.ConfirmPartial(ctx.Request.Context(), ctx.Param("refundID"), callerID, request.Accept)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, refundToPayload(updated))
}

// --- inquiries ---

type inquiryRequestBody struct {
	SlotID          string `json:"slot_id"`
	GuaranteeSlotID string `json:"guarantee_slot_id"`
	CampaignID      string `json:"campaign_id"`
	DistributorID   string `json:"distributor_id"`
	Title           string `json:"title"`
	Category        string `json:"category"`
}

func (handler *httpHandler) handleCreateInquiry(ctx *gin.Context) {
	callerID, _ := callerIdentity(ctx)
	var request inquiryRequestBody
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	created, err := handler.services.Inquiries.Create(ctx.Request.Context(), callerID, inquiry.CreateInput{
		SlotID:          request.SlotID,
		GuaranteeSlotID: request.GuaranteeSlotID,
		CampaignID:      request.CampaignID,
		DistributorID:   request.DistributorID,
		Title:           request.Title,
		Category:        request.Category,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, inquiryToPayload(created))
}

func (handler *httpHandler) handleListInquiries(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	threads, err := handler.services.Inquiries.List(ctx.Request.Context(), callerID, callerRole)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"inquiries": inquiryPayloads(threads)})
}

type attachmentPayload struct {
	FileName   string `json:"file_name"`
	SizeBytes  int64  `json:"size_bytes"`
	MimeType   string `json:"mime_type"`
	StorageKey string `json:"storage_key"`
}

type inquiryMessageRequest struct {
	Content     string              `json:"content"`
	Attachments []attachmentPayload `json:"attachments"`
}

func (handler *httpHandler) handleSendInquiryMessage(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	var request inquiryMessageRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	attachments := make([]inquiry.Attachment, 0, len(request.Attachments))
	for _, payload := range request.Attachments {
		attachments = append(attachments, inquiry.Attachment{
			FileName:   payload.FileName,
			SizeBytes:  payload.SizeBytes,
			MimeType:   payload.MimeType,
			StorageKey: payload.StorageKey,
		})
	}
	message, err := handler.services.Inquiries.SendMessage(ctx.Request.Context(), ctx.Param("inquiryID"), callerID, callerRole,
		request.Content, attachments)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, inquiryMessageToPayload(message))
}

func (handler *httpHandler) handlePollInquiry(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	since, _ := strconv.ParseInt(ctx.Query("since"), 10, 64)
	messages, err := handler.services.Inquiries.Poll(ctx.Request.Context(), ctx.Param("inquiryID"), callerID, callerRole, since)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"messages": inquiryMessagePayloads(messages)})
}

type inquiryStatusRequest struct {
	Status string `json:"status"`
}

func (handler *httpHandler) handleSetInquiryStatus(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	var request inquiryStatusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	status, err := inquiry.ParseStatus(request.Status)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.services.Inquiries.SetStatus(ctx.Request.Context(), ctx.Param("inquiryID"), callerID, callerRole, status); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": status.String()})
}

// --- settings ---

func (handler *httpHandler) handleGlobalSettings(ctx *gin.Context) {
	row, err := handler.services.Settings.Global(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, globalSettingsToPayload(row))
}

type globalSettingsRequest struct {
	BankName           string `json:"bank_name"`
	BankAccountNumber  string `json:"bank_account_number"`
	BankAccountHolder  string `json:"bank_account_holder"`
	ChargeBonusPercent int64  `json:"charge_bonus_percent"`
	MinChargeCents     int64  `json:"min_charge_cents"`
}

func (handler *httpHandler) handleUpdateGlobalSettings(ctx *gin.Context) {
	_, callerRole := callerIdentity(ctx)
	var request globalSettingsRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	saved, err := handler.services.Settings.UpdateGlobal(ctx.Request.Context(), callerRole, settings.GlobalSettings{
		BankName:           request.BankName,
		BankAccountNumber:  request.BankAccountNumber,
		BankAccountHolder:  request.BankAccountHolder,
		ChargeBonusPercent: request.ChargeBonusPercent,
		MinChargeCents:     request.MinChargeCents,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, globalSettingsToPayload(saved))
}

func (handler *httpHandler) handleUserSettings(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	row, err := handler.services.Settings.User(ctx.Request.Context(), callerID, callerRole, ctx.Param("userID"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, userSettingsToPayload(row))
}

type userSettingsRequest struct {
	DepositorName            string `json:"depositor_name"`
	TaxInvoiceEmail          string `json:"tax_invoice_email"`
	AutoChargeEnabled        bool   `json:"auto_charge_enabled"`
	AutoChargeThresholdCents int64  `json:"auto_charge_threshold_cents"`
	AutoChargeAmountCents    int64  `json:"auto_charge_amount_cents"`
}

func (handler *httpHandler) handleUpdateUserSettings(ctx *gin.Context) {
	callerID, callerRole := callerIdentity(ctx)
	var request userSettingsRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	saved, err := handler.services.Settings.UpdateUser(ctx.Request.Context(), callerID, callerRole, settings.UserSettings{
		UserID:                   ctx.Param("userID"),
		DepositorName:            request.DepositorName,
		TaxInvoiceEmail:          request.TaxInvoiceEmail,
		AutoChargeEnabled:        request.AutoChargeEnabled,
		AutoChargeThresholdCents: request.AutoChargeThresholdCents,
		AutoChargeAmountCents:    request.AutoChargeAmountCents,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, userSettingsToPayload(saved))
}

func (handler *httpHandler) handleSearchLimits(ctx *gin.Context) {
	forRole, err := role.Parse(ctx.Param("role"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	limits, err := handler.services.Settings.SearchLimits(ctx.Request.Context(), forRole)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, searchLimitsToPayload(limits))
}

type searchLimitsRequest struct {
	DailyLimit      int64 `json:"daily_limit"`
	IntervalSeconds int64 `json:"interval_seconds"`
}

func (handler *httpHandler) handleUpdateSearchLimits(ctx *gin.Context) {
	_, callerRole := callerIdentity(ctx)
	forRole, err := role.Parse(ctx.Param("role"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request searchLimitsRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	saved, err := handler.services.Settings.UpdateSearchLimits(ctx.Request.Context(), callerRole, settings.SearchLimits{
		Role:            forRole,
		DailyLimit:      request.DailyLimit,
		IntervalSeconds: request.IntervalSeconds,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, searchLimitsToPayload(saved))
}
