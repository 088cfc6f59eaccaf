// Package router registers every HTTP route and the middleware each one
// needs.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cafe-backend/internal/config"
	"github.com/iliyamo/cafe-backend/internal/handler"
	"github.com/iliyamo/cafe-backend/internal/middleware"
	"github.com/iliyamo/cafe-backend/internal/permission"
)

// Deps carries what the routes are built from. Redis may be nil; rate
// limiting and caching are then disabled.
type Deps struct {
	Config config.Config
	Redis  *redis.Client
	Log    *zap.Logger

	Gate   *middleware.Gate
	Auth   *handler.AuthHandler
	Menu   *handler.MenuHandler
	Health *handler.HealthHandler
}

// Register mounts the API on e.
func Register(e *echo.Echo, d Deps) {
	e.GET("/health", d.Health.Health)
	e.GET("/health/ready", d.Health.Ready)

	api := e.Group("/api", middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, d.Log))
	v1 := api.Group("/v1")

	registerAuth(v1, d)
	registerMenu(v1, d)

	v1.Any("/orders", handler.NotImplemented("Order"))
	v1.Any("/orders/*", handler.NotImplemented("Order"))
	v1.Any("/reservations", handler.NotImplemented("Reservation"))
	v1.Any("/reservations/*", handler.NotImplemented("Reservation"))
	v1.Any("/users", handler.NotImplemented("User"))
	v1.Any("/users/*", handler.NotImplemented("User"))
}

func registerAuth(v1 *echo.Group, d Deps) {
	authLimit := middleware.NewTokenBucket(d.Config.AuthRateLimit, d.Redis, d.Log)

	g := v1.Group("/auth")
	g.POST("/register", d.Auth.Register, authLimit)
	g.POST("/login", d.Auth.Login, authLimit)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/logout", d.Auth.Logout, d.Gate.OptionalAuth())
	g.GET("/profile", d.Auth.Profile, d.Gate.Authenticate())
}

func registerMenu(v1 *echo.Group, d Deps) {
	cache := middleware.NewRedisCache(d.Config.Cache, d.Redis, d.Log)
	invalidate := middleware.InvalidateOnWrite(d.Config.Cache, d.Redis, d.Log)
	authn := d.Gate.Authenticate()

	g := v1.Group("/menu")
	g.GET("/categories", d.Menu.ListCategories, cache)
	g.POST("/categories", d.Menu.CreateCategory,
		authn, d.Gate.Authorize(permission.MenuCreate), invalidate)

	g.GET("/items", d.Menu.ListItems, d.Gate.OptionalAuth(), cache)
	g.POST("/items", d.Menu.CreateItem,
		authn, d.Gate.Authorize(permission.MenuCreate), invalidate)
	g.PUT("/items/:id", d.Menu.UpdateItem,
		authn, d.Gate.Authorize(permission.MenuUpdate), invalidate)
	g.DELETE("/items/:id", d.Menu.DeleteItem,
		authn, d.Gate.Authorize(permission.MenuDelete), invalidate)
}
