package router

import (
	"github.com/gin-gonic/gin"
	libredis "github.com/redis/go-redis/v9"

	"github.com/laburoapp/laburo-backend/internal/config"
	"github.com/laburoapp/laburo-backend/internal/http/handlers"
	"github.com/laburoapp/laburo-backend/internal/http/middleware"
	"github.com/laburoapp/laburo-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	jobHandler *handlers.JobHandler,
	contractHandler *handlers.ContractHandler,
	paymentHandler *handlers.PaymentHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	disputeHandler *handlers.DisputeHandler,
	reportHandler *handlers.ReportHandler,
	profileHandler *handlers.ProfileHandler,
	notificationHandler *handlers.NotificationHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	seedHandler *handlers.SeedHandler,
	tokenManager *service.TokenManager,
	rdb *libredis.Client,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod, rdb))

	if seedHandler != nil && cfg.Env == "development" {
		api.POST("/seed", seedHandler.Seed)
	}

	// Уведомления платёжного шлюза: аутентификация по HMAC-подписи тела.
	api.POST("/webhooks/payments", middleware.WebhookSignature(cfg.WebhookSecret), webhookHandler.HandlePaymentEvent)

	// Публичные маршруты
	api.GET("/jobs", jobHandler.ListJobs)
	api.GET("/jobs/:id", middleware.UUIDValidator("id"), jobHandler.GetJob)
	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/profile", profileHandler.GetMe)
		protected.PUT("/profile/bank-details", profileHandler.UpdateBankDetails)

		protected.POST("/jobs", jobHandler.CreateJob)
		protected.GET("/jobs/my", jobHandler.ListMyJobs)
		protected.PUT("/jobs/:id", middleware.UUIDValidator("id"), jobHandler.UpdateJob)
		protected.PUT("/jobs/:id/status", middleware.UUIDValidator("id"), jobHandler.UpdateJobStatus)
		protected.POST("/jobs/:id/cancel", middleware.UUIDValidator("id"), jobHandler.CancelJob)
		protected.POST("/jobs/:id/proposals", middleware.UUIDValidator("id"), jobHandler.SubmitProposal)
		protected.GET("/jobs/:id/proposals", middleware.UUIDValidator("id"), jobHandler.ListProposals)
		protected.GET("/jobs/:id/contracts", middleware.UUIDValidator("id"), contractHandler.ListJobContracts)

		protected.GET("/proposals/my", jobHandler.ListMyProposals)
		protected.POST("/proposals/:proposalId/approve", middleware.UUIDValidator("proposalId"), jobHandler.ApproveProposal)
		protected.POST("/proposals/:proposalId/reject", middleware.UUIDValidator("proposalId"), jobHandler.RejectProposal)
		protected.POST("/proposals/:proposalId/withdraw", middleware.UUIDValidator("proposalId"), jobHandler.WithdrawProposal)

		protected.POST("/contracts", contractHandler.CreateContract)
		protected.GET("/contracts/my", contractHandler.ListMyContracts)
		protected.GET("/contracts/:id", middleware.UUIDValidator("id"), contractHandler.GetContract)
		protected.POST("/contracts/:id/accept", middleware.UUIDValidator("id"), contractHandler.Accept)
		protected.POST("/contracts/:id/request-completion", middleware.UUIDValidator("id"), contractHandler.RequestCompletion)
		protected.POST("/contracts/:id/confirm", middleware.UUIDValidator("id"), contractHandler.ConfirmCompletion)
		protected.POST("/contracts/:id/request-extension", middleware.UUIDValidator("id"), contractHandler.RequestExtension)
		protected.POST("/contracts/:id/approve-extension", middleware.UUIDValidator("id"), contractHandler.ApproveExtension)
		protected.POST("/contracts/:id/reject-extension", middleware.UUIDValidator("id"), contractHandler.RejectExtension)
		protected.PUT("/contracts/:id/modify-price", middleware.UUIDValidator("id"), contractHandler.ModifyPrice)
		protected.POST("/contracts/:id/cancel", middleware.UUIDValidator("id"), contractHandler.Cancel)
		protected.GET("/contracts/:id/events", middleware.UUIDValidator("id"), contractHandler.ListEvents)
		protected.GET("/contracts/:id/payment", middleware.UUIDValidator("id"), contractHandler.GetContractPayment)
		protected.POST("/contracts/:id/dispute", middleware.UUIDValidator("id"), disputeHandler.OpenDispute)
		protected.GET("/contracts/:id/dispute", middleware.UUIDValidator("id"), disputeHandler.GetContractDispute)

		protected.GET("/disputes/my", disputeHandler.ListMyDisputes)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.GetDispute)
		protected.GET("/disputes/:id/messages", middleware.UUIDValidator("id"), disputeHandler.ListMessages)
		protected.POST("/disputes/:id/messages", middleware.UUIDValidator("id"), disputeHandler.PostMessage)
		protected.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.UploadEvidence)

		protected.GET("/balance", paymentHandler.GetBalance)
		protected.GET("/balance/transactions", paymentHandler.ListTransactions)
		protected.POST("/balance/withdraw", withdrawalHandler.RequestWithdrawal)
		protected.GET("/balance/withdrawals", withdrawalHandler.ListMyWithdrawals)
		protected.GET("/balance/withdrawals/:id", middleware.UUIDValidator("id"), withdrawalHandler.GetWithdrawal)
		protected.POST("/balance/withdrawals/:id/cancel", middleware.UUIDValidator("id"), withdrawalHandler.Cancel)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
	}

	// Админские маршруты
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.AdminMiddleware())
	{
		admin.GET("/pending-payments", reportHandler.PendingPayments)
		admin.GET("/pending-payments/export/csv", reportHandler.ExportCSV)
		admin.POST("/pending-payments/upload-proof", reportHandler.UploadProof)
		admin.GET("/pending-payments/:contractId", middleware.UUIDValidator("contractId"), reportHandler.PendingPaymentDetail)
		admin.POST("/pending-payments/:contractId/mark-paid", middleware.UUIDValidator("contractId"), reportHandler.MarkPaid)
		admin.POST("/pending-payments/:contractId/fix-status", middleware.UUIDValidator("contractId"), reportHandler.FixStatus)

		admin.GET("/payments/:id", middleware.UUIDValidator("id"), paymentHandler.GetPayment)
		admin.POST("/payments/:id/verify", middleware.UUIDValidator("id"), paymentHandler.VerifyForPayout)
		admin.GET("/payments/:id/proofs", middleware.UUIDValidator("id"), paymentHandler.ListProofs)
		admin.POST("/contracts/:id/refund", middleware.UUIDValidator("id"), paymentHandler.Refund)
		admin.POST("/balance/adjust", paymentHandler.AdjustBalance)

		admin.GET("/withdrawals", withdrawalHandler.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", middleware.UUIDValidator("id"), withdrawalHandler.Approve)
		admin.POST("/withdrawals/:id/process", middleware.UUIDValidator("id"), withdrawalHandler.MarkProcessing)
		admin.POST("/withdrawals/:id/complete", middleware.UUIDValidator("id"), withdrawalHandler.Complete)
		admin.POST("/withdrawals/:id/reject", middleware.UUIDValidator("id"), withdrawalHandler.Reject)

		admin.GET("/disputes", disputeHandler.ListDisputes)
		admin.POST("/disputes/:id/review", middleware.UUIDValidator("id"), disputeHandler.SetInReview)
		admin.POST("/disputes/:id/request-info", middleware.UUIDValidator("id"), disputeHandler.RequestInfo)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.ResolveDispute)
	}

	return r
}
