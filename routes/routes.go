package routes

import (
	"claims-api/controllers"
	"claims-api/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/auth/login", controllers.Login)

			// Claim submission and claimant self-service status lookup
			public.POST("/claims", middleware.SubmissionRateLimit(), controllers.SubmitClaim)
			public.GET("/claims/reference/:reference", controllers.GetClaimByReference)

			// Draft auto-save flow
			drafts := public.Group("/drafts")
			{
				drafts.POST("/auto-save", middleware.AutoSaveRateLimit(), controllers.AutoSaveDraft)
				drafts.GET("/get-draft", controllers.GetDraft)
				drafts.DELETE("/delete-draft", controllers.DeleteDraft)
			}

			// Health check
			public.GET("/health", controllers.HealthCheck)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// Operator profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Claims administration
			claims := protected.Group("/claims")
			{
				// Specific routes must come before /:id
				claims.GET("/export/all", controllers.ExportClaims)
				claims.GET("/stats", controllers.GetClaimStats)
				claims.GET("", controllers.GetAllClaims)
				claims.GET("/:id", controllers.GetClaimByID)
				claims.PATCH("/:id/status", controllers.UpdateClaimStatus)
				claims.PUT("/:id/status", controllers.UpdateClaimStatus)
				claims.DELETE("/:id", middleware.RequireRole("admin"), controllers.DeleteClaim)
			}

			// Drafts administration
			drafts := protected.Group("/drafts")
			{
				drafts.GET("/list", controllers.ListDrafts)
				drafts.GET("/stats", controllers.GetDraftStats)
				drafts.GET("/export", controllers.ExportDrafts)
				drafts.DELETE("/:id", middleware.RequireRole("admin"), controllers.DeleteDraftByID)
			}

			// Dashboard
			dashboard := protected.Group("/dashboard")
			{
				dashboard.GET("/metrics", controllers.GetDashboardMetrics)
				dashboard.GET("/recent", controllers.GetRecentActivity)
			}
		}
	}
}
