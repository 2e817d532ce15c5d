package router

import (
	"net/http"

	"github.com/leadflow/crm-backend/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "crm-api-service",
		})
	})

	leadHandler := handler.NewLeadHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	deviceHandler := handler.NewDeviceHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		leads := v1.Group("/leads")
		{
			// GET /api/v1/leads/:lead_id - Get lead details
			leads.GET("/:lead_id", leadHandler.GetLead)

			// POST /api/v1/leads/:lead_id/convert - Convert lead to contact
			leads.POST("/:lead_id/convert", leadHandler.ConvertLead)
		}

		// POST /api/v1/events - Enqueue a notification event
		v1.POST("/events", jobHandler.EnqueueEvent)

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List jobs (dead-letter inspection)
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/replay - Replay a dead-lettered job
			jobs.POST("/:job_id/replay", jobHandler.ReplayJob)
		}

		// PUT /api/v1/users/:user_id/device-token - Register a push token
		v1.PUT("/users/:user_id/device-token", deviceHandler.RegisterToken)
	}

	return r
}
