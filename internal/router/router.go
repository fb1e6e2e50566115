package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oesys/oes-backend/internal/config"
	"github.com/oesys/oes-backend/internal/handler"
	"github.com/oesys/oes-backend/internal/middleware"
	"github.com/oesys/oes-backend/internal/response"
	"github.com/oesys/oes-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	TakeExam *handler.TakeExamHandler
	Exam     *handler.ExamHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/instructor/login", handlers.Auth.InstructorLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
	}

	// ─── 2. Take-Exam Group (Student JWT) ──────────────────────────────
	takeExam := router.Group("/api/v1/take-exam")
	takeExam.Use(middleware.RequireStudentJWT(authService))
	{
		takeExam.POST("/search", handlers.TakeExam.Search)
		takeExam.GET("/initialization", handlers.TakeExam.Initialization)
		takeExam.POST("/accept", handlers.TakeExam.Accept)
		takeExam.POST("/resume", handlers.TakeExam.Resume)
		takeExam.POST("/decline", handlers.TakeExam.Decline)
		takeExam.GET("/paper", handlers.TakeExam.Paper)
		takeExam.POST("/save", handlers.TakeExam.Save)
		takeExam.POST("/submit", handlers.TakeExam.Submit)
		takeExam.POST("/autosave", handlers.TakeExam.Autosave)
	}

	// ─── 3. Instructor Group (Instructor JWT) ──────────────────────────
	instructor := router.Group("/api/v1/instructor")
	instructor.Use(middleware.RequireInstructorJWT(authService))
	{
		instructor.POST("/exams", handlers.Exam.Create)
		instructor.GET("/exams", handlers.Exam.List)
		instructor.PUT("/exams/:id/availability", handlers.Exam.UpdateAvailability)
		instructor.PUT("/exams/:id/questions", handlers.Exam.ReplaceQuestions)
		instructor.GET("/exams/:id/submissions", handlers.Exam.ListSubmissions)
	}

	// ─── 4. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/take-exam/live", handlers.WS.ExamLiveChannel)
	}

	return router
}
