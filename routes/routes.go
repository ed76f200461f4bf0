package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifeplanner-backend/config"
	"lifeplanner-backend/controllers"
	"lifeplanner-backend/utils"
)

type Deps struct {
	Config         *config.Config
	Logger         *zap.Logger
	Reminders      *controllers.ReminderController
	DailyReminders *controllers.DailyReminderController
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     d.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))

	r.Use(config.PerformanceLogger(d.Logger))

	r.GET("/health", controllers.Health)

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(d.Config.JWTSecret))
	{
		reminders := api.Group("/reminders", utils.RequireRole(utils.RoleService))
		{
			reminders.GET("/status", d.Reminders.GetStatus)
			reminders.POST("/run", d.Reminders.RunNow)
			reminders.GET("/logs", d.Reminders.GetLogs)
		}

		daily := api.Group("/daily-reminders")
		{
			daily.GET("", d.DailyReminders.GetDailyReminders)
			daily.POST("", d.DailyReminders.CreateDailyReminder)
			daily.DELETE("/:id", d.DailyReminders.DeleteDailyReminder)
		}
	}

	return r
}
