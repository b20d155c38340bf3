// Package httpserver exposes every marketplace operation over a gin HTTP
// API. Identity and role travel in a JWT bearer token; domain errors map to
// a small set of HTTP statuses with a stable error envelope.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adforge/slotmarket/internal/guarantee"
	"github.com/adforge/slotmarket/internal/inquiry"
	"github.com/adforge/slotmarket/internal/keyword"
	"github.com/adforge/slotmarket/internal/purchase"
	"github.com/adforge/slotmarket/internal/refund"
	"github.com/adforge/slotmarket/internal/settings"
	"github.com/adforge/slotmarket/pkg/ledger"
)

// Services bundles the domain services the handlers dispatch to.
type Services struct {
	Ledger     *ledger.Service
	Keywords   *keyword.Service
	Purchases  *purchase.Service
	Guarantees *guarantee.Service
	Refunds    *refund.Service
	Inquiries  *inquiry.Service
	Settings   *settings.Service
}

// Run boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config, services Services, logger *zap.Logger) error {
	cfg.Normalize()
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{logger: logger, services: services}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(handler.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(authMiddleware(cfg.JWTSigningKey, cfg.JWTIssuer))

	api.GET("/balance", handler.handleBalance)
	api.GET("/cash/history", handler.handleCashHistory)
	api.POST("/cash/charge", handler.handleCharge)
	api.POST("/cash/bonus", handler.handleGrantBonus)

	api.POST("/keyword-groups", handler.handleCreateGroup)
	api.GET("/keyword-groups", handler.handleListGroups)
	api.DELETE("/keyword-groups/:groupID", handler.handleDeleteGroup)
	api.POST("/keyword-groups/:groupID/keywords", handler.handleCreateKeyword)
	api.GET("/keyword-groups/:groupID/keywords", handler.handleListKeywords)
	api.PUT("/keywords/:keywordID", handler.handleUpdateKeyword)
	api.PATCH("/keywords/:keywordID/active", handler.handleSetKeywordActive)
	api.DELETE("/keywords/:keywordID", handler.handleDeleteKeyword)

	api.POST("/purchases", handler.handlePurchase)
	api.POST("/slots/:slotID/activate", handler.handleActivateSlot)

	api.POST("/guarantees", handler.handleCreateGuarantee)
	api.GET("/guarantees", handler.handleListGuarantees)
	api.POST("/guarantees/:requestID/offers", handler.handleSendOffer)
	api.GET("/guarantees/:requestID/messages", handler.handleGuaranteeMessages)
	api.POST("/guarantees/:requestID/accept", handler.handleAcceptGuarantee)
	api.POST("/guarantees/:requestID/reject", handler.handleRejectGuarantee)
	api.POST("/guarantees/:requestID/purchase", handler.handlePurchaseGuarantee)
	api.POST("/guarantee-slots/:guaranteeSlotID/approve", handler.handleApproveGuaranteeSlot)
	api.POST("/guarantee-slots/:guaranteeSlotID/reject", handler.handleRejectGuaranteeSlot)
	api.POST("/guarantee-slots/:guaranteeSlotID/complete", handler.handleCompleteGuaranteeSlot)
	api.POST("/guarantee-slots/:guaranteeSlotID/cancel", handler.handleCancelGuaranteeSlot)

	api.POST("/slots/:slotID/refunds", handler.handleRequestRefund)
	api.POST("/refunds/:refundID/confirm", handler.handleConfirmRefund)
	api.POST("/refunds/:refundID/confirm-partial", handler.handleConfirmPartialRefund)

	api.POST("/inquiries", handler.handleCreateInquiry)
	api.GET("/inquiries", handler.handleListInquiries)
	api.POST("/inquiries/:inquiryID/messages", handler.handleSendInquiryMessage)
	api.GET("/inquiries/:inquiryID/messages", handler.handlePollInquiry)
	api.POST("/inquiries/:inquiryID/status", handler.handleSetInquiryStatus)

	api.GET("/settings/global", handler.handleGlobalSettings)
	api.PUT("/settings/global", handler.handleUpdateGlobalSettings)
	api.GET("/settings/users/:userID", handler.handleUserSettings)
	api.PUT("/settings/users/:userID", handler.handleUpdateUserSettings)
	api.GET("/settings/search-limits/:role", handler.handleSearchLimits)
	api.PUT("/settings/search-limits/:role", handler.handleUpdateSearchLimits)

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		logger.Info("request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
