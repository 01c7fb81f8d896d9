package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-usage-control/internal/config"
	"github.com/iliyamo/fleet-usage-control/internal/database"
	"github.com/iliyamo/fleet-usage-control/internal/geocode"
	"github.com/iliyamo/fleet-usage-control/internal/handler"
	appmw "github.com/iliyamo/fleet-usage-control/internal/middleware"
	"github.com/iliyamo/fleet-usage-control/internal/queue"
	"github.com/iliyamo/fleet-usage-control/internal/repository"
	"github.com/iliyamo/fleet-usage-control/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	schemaCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(schemaCtx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}
	cancel()

	// Repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	controls := repository.NewUsageControlRepo(db)
	routes := repository.NewRouteRepo(db)

	geo := geocode.NewClient(cfg.GeocodeAPIKey, cfg.GeocodeBaseURL, cfg.GeocodeTimeout)

	// Handlers
	authH := handler.NewAuthHandler(cfg, users, tokens)
	userH := handler.NewUserHandler(cfg, users)
	vehicleH := handler.NewVehicleHandler(vehicles)
	controlH := handler.NewUsageControlHandler(controls, vehicles, users)
	routeH := handler.NewRouteHandler(routes, controls, geo)

	e := echo.New()

	// Redis-backed rate limiting and response caching. Both degrade to
	// no-ops when Redis is not reachable.
	rdb := config.NewRedisClient()
	e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	e.Use(appmw.NewRedisCache(config.LoadCacheConfig(), rdb))

	// Uploaded avatars are served statically.
	e.Static("/avatar", cfg.AvatarDir)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterUsers(e, userH, cfg.JWTSecret)
	router.RegisterVehicles(e, vehicleH, cfg.JWTSecret)
	router.RegisterUsageControls(e, controlH, routeH, cfg.JWTSecret)

	// Background consumer for usage.finalized events. Runs its own
	// reconnect loop for the life of the process.
	go func() {
		if err := queue.StartUsageConsumer(); err != nil {
			log.Printf("usage consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
