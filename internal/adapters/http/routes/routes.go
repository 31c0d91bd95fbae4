package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"

	"toolhub/internal/adapters/http/handlers"
	"toolhub/internal/adapters/http/middleware"
	"toolhub/internal/config"
	"toolhub/internal/core/services"
)

// Version is reported by the root and API info endpoints
const Version = "1.0.0"

// Setup configures all routes for the application. cache may be nil.
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config, svc *services.Container, cache handlers.Pinger) {
	healthHandler := handlers.NewHealthHandler(db, cache, cfg.AppMode, Version)

	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/swagger/*", swagger.HandlerDefault)

	apiV1 := app.Group("/api/v1")
	setupAPIV1Routes(apiV1, cfg, svc, healthHandler)
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(router fiber.Router, cfg *config.Config, svc *services.Container, healthHandler *handlers.HealthHandler) {
	auth := middleware.AuthMiddleware(svc.Tokens)

	router.Get("/", healthHandler.APIInfo)

	setupAuthRoutes(router.Group("/auth"), handlers.NewAuthHandler(svc.Auth, cfg), auth)

	userHandler := handlers.NewUserHandler(svc.Users)
	setupUserRoutes(router.Group("/users", auth, middleware.AdminOnly()), userHandler)
	setupProfileRoutes(router.Group("/profile", auth), userHandler)

	setupCategoryRoutes(router.Group("/categories"), handlers.NewCategoryHandler(svc.Categories), svc)
	setupToolRoutes(router.Group("/tools", auth), handlers.NewToolHandler(svc.Tools))

	returnHandler := handlers.NewReturnHandler(svc.Returns)
	setupLoanRoutes(router.Group("/loans", auth), handlers.NewLoanHandler(svc.Loans), returnHandler)
	setupReturnRoutes(router.Group("/returns", auth, middleware.StaffOrAdmin()), returnHandler)

	setupImportRoutes(router.Group("/imports", auth, middleware.AdminOnly()), handlers.NewImportHandler(svc.Imports))
	setupExportRoutes(router.Group("/exports", auth, middleware.StaffOrAdmin(), middleware.NoCacheHeaders()), handlers.NewExportHandler(svc.Exports))
	setupReportRoutes(router.Group("/reports", auth, middleware.StaffOrAdmin()), handlers.NewReportHandler(svc.Reports, svc.FinePerDay))
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, auth fiber.Handler) {
	// Public routes
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", auth, handler.Me)
	router.Post("/logout-all", auth, handler.LogoutAll)
}

// setupUserRoutes configures user management routes (Admin only)
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/", handler.ListUsers)
	router.Post("/", handler.CreateUser)
	router.Get("/:id", handler.GetUser)
	router.Put("/:id", handler.UpdateUser)
	router.Delete("/:id", handler.DeleteUser)
}

// setupProfileRoutes configures self-service profile routes
func setupProfileRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/", middleware.PrivateCacheHeaders(30*time.Second), handler.GetProfile)
	router.Put("/", handler.UpdateProfile)
	router.Put("/password", handler.ChangePassword)
}

// setupCategoryRoutes: reads are public, writes are Admin only
func setupCategoryRoutes(router fiber.Router, handler *handlers.CategoryHandler, svc *services.Container) {
	auth := middleware.AuthMiddleware(svc.Tokens)

	router.Get("/", middleware.OptionalAuth(svc.Tokens), middleware.CacheControl(5*time.Minute), handler.List)
	router.Get("/:id", middleware.CacheControl(5*time.Minute), handler.Get)

	router.Post("/", auth, middleware.AdminOnly(), handler.Create)
	router.Put("/:id", auth, middleware.AdminOnly(), handler.Update)
	router.Delete("/:id", auth, middleware.AdminOnly(), handler.Delete)
}

// setupToolRoutes: any signed-in user browses; staff maintain the catalog
func setupToolRoutes(router fiber.Router, handler *handlers.ToolHandler) {
	router.Get("/", handler.List)
	router.Get("/:id", handler.Get)

	staff := middleware.StaffOrAdmin()
	router.Post("/", staff, handler.Create)
	router.Put("/:id", staff, handler.Update)
	router.Delete("/:id", staff, handler.Delete)
	router.Put("/:id/stock", staff, handler.SetStock)
	router.Post("/:id/repair", staff, handler.Repair)
}

// setupLoanRoutes configures the loan life cycle
func setupLoanRoutes(router fiber.Router, handler *handlers.LoanHandler, returns *handlers.ReturnHandler) {
	// Any signed-in user; borrowers only see their own loans
	router.Post("/", handler.Create)
	router.Get("/my", handler.ListMine)
	router.Get("/:id", handler.Get)
	router.Get("/:id/history", handler.History)
	router.Get("/:id/receipt", handler.Receipt)

	// Lending desk
	staff := middleware.StaffOrAdmin()
	router.Get("/", staff, handler.List)
	router.Put("/:id/approve", staff, handler.Approve)
	router.Put("/:id/reject", staff, handler.Reject)
	router.Put("/:id/lend", staff, handler.Lend)
	router.Post("/:id/return", staff, returns.Reconcile)
	router.Get("/:id/return", staff, returns.GetByLoan)
}

// setupReturnRoutes configures return records (Staff/Admin)
func setupReturnRoutes(router fiber.Router, handler *handlers.ReturnHandler) {
	router.Get("/", handler.List)
	router.Get("/:id", handler.Get)
	router.Put("/:id", handler.Correct)
}

// setupImportRoutes configures spreadsheet imports (Admin only)
func setupImportRoutes(router fiber.Router, handler *handlers.ImportHandler) {
	router.Get("/:kind/fields", handler.Fields)
	router.Post("/:kind/preview", middleware.ImportRateLimiter(), handler.Preview)
	router.Post("/:kind/commit", middleware.ImportRateLimiter(), handler.Commit)
}

// setupExportRoutes configures spreadsheet exports (Staff/Admin)
func setupExportRoutes(router fiber.Router, handler *handlers.ExportHandler) {
	router.Get("/tools", handler.Tools)
	router.Get("/loans", handler.Loans)
}

// setupReportRoutes configures dashboard reports (Staff/Admin)
func setupReportRoutes(router fiber.Router, handler *handlers.ReportHandler) {
	router.Get("/summary", handler.Summary)
	router.Get("/overdue", handler.Overdue)
	router.Get("/top-tools", handler.TopTools)
}
