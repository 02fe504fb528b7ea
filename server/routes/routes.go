package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"desktown-backend/server/handlers"
	"desktown-backend/server/middleware"
	"desktown-backend/shared/database/models"
)

// Setup registers every DeskTown route on router
func Setup(router *gin.Engine, deps handlers.Dependencies) {
	cfg := deps.Config
	h := handlers.NewHandler(deps)

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.Metrics())

	router.GET("/health", healthCheck(deps))
	router.GET("/metrics", middleware.MetricsHandler())

	router.GET("/swagger/*any", func(c *gin.Context) {
		if gin.Mode() == gin.DebugMode {
			ginSwagger.WrapHandler(swaggerFiles.Handler)(c)
		} else {
			c.JSON(http.StatusNotFound, gin.H{
				"message": "Swagger documentation not available in production",
			})
		}
	})

	limiter := middleware.NewRateLimiter(deps.Sessions.Client())
	session := middleware.SessionAuth(deps.Sessions, deps.Store, cfg)
	optional := middleware.OptionalSession(deps.Sessions, deps.Store, cfg)
	admins := middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)

	api := router.Group("/api")

	// Auth
	api.POST("/register", limiter.RegistrationRateLimitMiddleware(middleware.RegisterLimits(cfg)), h.Register)
	api.POST("/login", limiter.LoginRateLimitMiddleware(middleware.LoginLimits(cfg)), h.Login)
	api.POST("/logout", h.Logout)
	api.GET("/user", session, h.CurrentUser)

	// Signed callbacks from the payment provider and the automation workflow
	api.POST("/webhooks/payments", h.PaymentWebhook)
	api.POST("/automations/callback", h.AutomationCallback)
	api.POST("/automations/internal-email", h.InboundEmail)

	// Public storefront; a session is used when present
	public := api.Group("", optional)
	{
		public.GET("/offices", h.ListOffices)
		public.GET("/offices/slug/:slug", h.GetOfficeBySlug)
		public.GET("/offices/:id", h.GetOffice)
		public.GET("/offices/:id/departments", h.ListDepartments)
		public.GET("/offices/:id/media", h.ListOfficeMedia)
		public.GET("/offices/:id/comments", h.ListOfficeComments)
		public.POST("/offices/:id/messages", h.SendOfficeMessage)
		public.GET("/offices/:id/services", h.ListOfficeServices)
		public.GET("/services/share/:token", h.GetSharedService)
		public.GET("/services/:id", h.GetOfficeService)
		public.GET("/services/:id/ratings", h.ListServiceRatings)
		public.GET("/search", h.Search)
		public.GET("/push/vapid-public-key", h.VAPIDPublicKey)
		public.GET("/objects/*path", h.GetObject)
	}

	auth := api.Group("", session)
	{
		users := auth.Group("/users")
		users.GET("", h.ListUsers)
		users.GET("/online", h.ListOnlineUsers)
		users.PATCH("/me", h.UpdateProfile)
		users.POST("/me/presence", h.UpdatePresence)
		users.GET("/:id", h.GetUser)

		tasks := auth.Group("/tasks")
		tasks.GET("", h.ListTasks)
		tasks.POST("", h.CreateTask)
		tasks.GET("/:id", h.GetTask)
		tasks.PATCH("/:id", h.UpdateTask)
		tasks.PATCH("/:id/status", h.UpdateTaskStatus)
		tasks.DELETE("/:id", h.DeleteTask)
		tasks.POST("/:id/automate", h.AutomateTask)

		tickets := auth.Group("/tickets")
		tickets.GET("", h.ListTickets)
		tickets.POST("", h.CreateTicket)
		tickets.GET("/:id", h.GetTicket)
		tickets.PATCH("/:id", h.UpdateTicket)
		tickets.DELETE("/:id", h.DeleteTicket)
		tickets.GET("/:id/comments", h.ListTicketComments)
		tickets.POST("/:id/comments", h.AddTicketComment)

		posts := auth.Group("/posts")
		posts.GET("", h.ListFeed)
		posts.POST("", h.CreatePost)
		posts.DELETE("/:id", h.DeletePost)
		posts.POST("/:id/like", h.LikePost)
		posts.DELETE("/:id/like", h.UnlikePost)
		posts.GET("/:id/comments", h.ListPostComments)
		posts.POST("/:id/comments", h.AddPostComment)

		chat := auth.Group("/chat")
		chat.GET("/unread", h.TotalUnread)
		chat.GET("/threads", h.ListThreads)
		chat.POST("/threads", h.CreateThread)
		chat.GET("/threads/:id", h.GetThread)
		chat.GET("/threads/:id/messages", h.ListMessages)
		chat.POST("/threads/:id/messages", h.SendMessage)
		chat.POST("/threads/:id/read", h.MarkThreadRead)
		chat.GET("/threads/:id/unread", h.ThreadUnread)
		chat.POST("/threads/:id/participants", h.AddParticipant)
		chat.DELETE("/threads/:id/participants/:userId", h.RemoveParticipant)

		meetings := auth.Group("/meetings")
		meetings.GET("", h.ListMeetings)
		meetings.POST("", h.CreateMeeting)
		meetings.GET("/:id", h.GetMeeting)
		meetings.PATCH("/:id", h.UpdateMeeting)
		meetings.DELETE("/:id", h.DeleteMeeting)
		meetings.POST("/:id/rsvp", h.RSVPMeeting)

		calls := auth.Group("/calls")
		calls.POST("", h.StartCall)
		calls.GET("", h.ListCalls)
		calls.GET("/:id", h.GetCall)
		calls.POST("/:id/accept", h.AcceptCall)
		calls.POST("/:id/decline", h.DeclineCall)
		calls.POST("/:id/end", h.EndCall)
		calls.POST("/:id/signal", h.SignalCall)

		offices := auth.Group("/offices")
		offices.POST("", middleware.RequireRole(models.RoleOfficeRenter, models.RoleAdmin, models.RoleSuperAdmin), h.CreateOffice)
		offices.PATCH("/:id", h.UpdateOffice)
		offices.DELETE("/:id", h.DeleteOffice)
		offices.POST("/:id/departments", h.CreateDepartment)
		offices.DELETE("/:id/departments/:deptId", h.DeleteDepartment)
		offices.POST("/:id/media", h.AddOfficeMedia)
		offices.DELETE("/:id/media/:mediaId", h.DeleteOfficeMedia)
		offices.GET("/:id/messages", h.ListOfficeMessages)
		offices.PATCH("/:id/messages/:msgId/read", h.MarkOfficeMessageRead)
		offices.POST("/:id/comments", h.AddOfficeComment)
		offices.GET("/:id/stats", h.OfficeStats)
		offices.POST("/:id/services", h.CreateOfficeService)
		offices.GET("/:id/orders", h.ListOfficeOrders)

		svcs := auth.Group("/services")
		svcs.PATCH("/:id", h.UpdateOfficeService)
		svcs.DELETE("/:id", h.DeleteOfficeService)
		svcs.POST("/:id/ratings", h.RateOfficeService)
		svcs.POST("/:id/orders", h.CreateOrder)

		orders := auth.Group("/orders")
		orders.GET("/mine", h.ListMyOrders)
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/checkout", h.StartCheckout)

		auth.GET("/transactions", admins, h.ListTransactions)

		statuses := auth.Group("/statuses")
		statuses.GET("", h.ListStatuses)
		statuses.POST("", h.CreateStatus)
		statuses.GET("/user/:userId", h.ListUserStatuses)
		statuses.POST("/:id/view", h.ViewStatus)
		statuses.GET("/:id/viewers", h.ListStatusViewers)
		statuses.DELETE("/:id", h.DeleteStatus)

		emails := auth.Group("/emails")
		emails.GET("", h.ListEmails)
		emails.POST("", h.SendEmail)
		emails.GET("/unread-count", h.EmailUnreadCount)
		emails.GET("/:id", h.GetEmail)
		emails.PATCH("/:id", h.UpdateEmail)
		emails.DELETE("/:id", h.DeleteEmail)

		notifications := auth.Group("/notifications")
		notifications.GET("", h.ListNotifications)
		notifications.GET("/unread-count", h.NotificationUnreadCount)
		notifications.POST("/read-all", h.MarkAllNotificationsRead)
		notifications.PATCH("/:id/read", h.MarkNotificationRead)
		notifications.DELETE("/:id", h.DeleteNotification)

		auth.POST("/push/subscribe", h.PushSubscribe)
		auth.POST("/push/unsubscribe", h.PushUnsubscribe)
		auth.POST("/upload/media", h.UploadMedia)
		auth.GET("/ws", h.WebSocket)
	}

	admin := api.Group("/admin", session, admins, middleware.AuditTrail(deps.Store))
	{
		admin.GET("/users", h.AdminListUsers)
		admin.PATCH("/users/:id/role", h.AdminUpdateRole)
		admin.POST("/users/:id/deactivate", h.AdminDeactivateUser)
		admin.GET("/stats", h.AdminStats)
		admin.GET("/offices", h.AdminListOffices)
		admin.DELETE("/offices/:id", h.AdminDeleteOffice)
		admin.POST("/statuses/purge", h.AdminPurgeStatuses)
		admin.GET("/audit-logs", h.AdminAuditLogs)
	}

	// Employee portal authenticates with bearer tokens instead of the cookie
	api.POST("/employee/login", limiter.EmployeeLoginRateLimitMiddleware(middleware.LoginLimits(cfg)), h.EmployeeLogin)
	employee := api.Group("/employee", middleware.EmployeeAuth(deps.Sessions, deps.Store))
	{
		employee.POST("/logout", h.EmployeeLogout)
		employee.GET("/me", h.EmployeeMe)
		employee.GET("/tasks", h.EmployeeTasks)
		employee.PATCH("/tasks/:id/status", h.EmployeeUpdateTaskStatus)
		employee.POST("/presence", h.UpdatePresence)
	}
}

// healthCheck pings PostgreSQL and Redis; object storage and search report but never fail the check
func healthCheck(deps handlers.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok", "redis": "ok", "objects": "disabled"}
		status := http.StatusOK
		if err := deps.Store.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := deps.Sessions.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if deps.Objects != nil {
			checks["objects"] = "ok"
			if err := deps.Objects.Ping(ctx); err != nil {
				checks["objects"] = err.Error()
			}
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":  state,
			"service": "desktown",
			"checks":  checks,
		})
	}
}
