package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
)

// PublicRoutes lists the endpoints reachable without a bearer token. This is
// the guard's static exemption set.
var PublicRoutes = []string{
	"/api/auth/login",
	"/api/auth/signup",
	"/api/auth/verify-email",
	"/api/auth/request-password-reset",
	"/api/auth/reset-password",
	"/api/auth/refresh-token",
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Guard  *auth.Guard
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/auth", cfg.Guard.Handle)

	api.Post("/login", cfg.Auth.Login)
	api.Post("/signup", cfg.Auth.Signup)
	api.Get("/verify-email", cfg.Auth.VerifyEmail)
	api.Post("/request-password-reset", cfg.Auth.RequestPasswordReset)
	api.Post("/reset-password", cfg.Auth.ResetPassword)
	api.Post("/refresh-token", cfg.Auth.Refresh)

	api.Post("/logout", auth.RequireAuthenticated(), cfg.Auth.Logout)
	api.Get("/me", auth.RequireAuthenticated(), cfg.Auth.Me)
	api.Post("/password/change", auth.RequireAuthenticated(), cfg.Auth.ChangePassword)
}
