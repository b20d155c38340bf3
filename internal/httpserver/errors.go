package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adforge/slotmarket/internal/guarantee"
	"github.com/adforge/slotmarket/internal/inquiry"
	"github.com/adforge/slotmarket/internal/keyword"
	"github.com/adforge/slotmarket/internal/purchase"
	"github.com/adforge/slotmarket/internal/refund"
	"github.com/adforge/slotmarket/internal/role"
	"github.com/adforge/slotmarket/internal/settings"
	"github.com/adforge/slotmarket/internal/slot"
	"github.com/adforge/slotmarket/pkg/ledger"
)

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// respondError maps domain errors onto the HTTP surface: bad input is 400,
// shortfalls are 402 with the missing amount, unknown-or-foreign is 404,
// state conflicts are 409, anything else is a 502 from the storage layer.
func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	var insufficient ledger.InsufficientFundsError
	if errors.As(err, &insufficient) {
		ctx.JSON(http.StatusPaymentRequired, gin.H{
			"error": gin.H{
				"code":            "insufficient_funds",
				"message":         "balance cannot cover the requested amount",
				"shortfall_cents": insufficient.ShortfallCents(),
			},
		})
		return
	}

	switch {
	case isValidationError(err):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", err.Error()))
	case errors.Is(err, settings.ErrForbidden):
		ctx.JSON(http.StatusForbidden, errorResponse("forbidden", err.Error()))
	case isNotFoundError(err):
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case isConflictError(err):
		ctx.JSON(http.StatusConflict, errorResponse("conflict", err.Error()))
	default:
		handler.logger.Error("storage error", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("storage_error", "operation failed"))
	}
}

func isValidationError(err error) bool {
	validationErrors := []error{
		ledger.ErrInvalidUserID,
		ledger.ErrInvalidAmountCents,
		ledger.ErrInvalidEntryType,
		ledger.ErrInvalidMetadataJSON,
		keyword.ErrInvalidKeyword,
		keyword.ErrInvalidGroup,
		purchase.ErrInvalidPurchase,
		guarantee.ErrInvalidRequest,
		guarantee.ErrInvalidStatus,
		refund.ErrInvalidRefund,
		refund.ErrApprovedExceedsAsked,
		refund.ErrSlotNotRefundable,
		inquiry.ErrInvalidInquiry,
		inquiry.ErrInvalidMessage,
		inquiry.ErrAttachmentTooLarge,
		inquiry.ErrAttachmentType,
		inquiry.ErrInvalidStatus,
		settings.ErrInvalidSettings,
		slot.ErrInvalidStatus,
		role.ErrInvalidRole,
	}
	for _, validationError := range validationErrors {
		if errors.Is(err, validationError) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	notFoundErrors := []error{
		keyword.ErrNotFoundOrForbidden,
		keyword.ErrGroupNotFound,
		purchase.ErrNotFoundOrForbidden,
		guarantee.ErrNotFoundOrForbidden,
		refund.ErrNotFoundOrForbidden,
		inquiry.ErrNotFoundOrForbidden,
		settings.ErrNotFound,
	}
	for _, notFoundError := range notFoundErrors {
		if errors.Is(err, notFoundError) {
			return true
		}
	}
	return false
}

func isConflictError(err error) bool {
	conflictErrors := []error{
		guarantee.ErrInvalidTransition,
		guarantee.ErrAlreadyPurchased,
		purchase.ErrInvalidTransition,
		refund.ErrInvalidTransition,
		refund.ErrNoDistributorForSplit,
		inquiry.ErrInquiryClosed,
	}
	for _, conflictError := range conflictErrors {
		if errors.Is(err, conflictError) {
			return true
		}
	}
	return false
}
