package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strconv"
	"syscall"
	"time"

	"ticketing/src/boot"
	"ticketing/src/config"
	"ticketing/src/middlewares"
	"ticketing/src/types"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const (
	apiPrefix string = "/api/v1"
)

var paymentMethodValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	method, ok := fl.Field().Interface().(string)
	return ok && types.PaymentMethod(method).Valid()
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("paymethod", paymentMethodValidatorFunc)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		on, err := strconv.ParseBool(mm)
		if err == nil && on {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

// registerRoutes mounts every authenticated route on router.
func registerRoutes(router *gin.Engine, cfg *config.Config, gdb *gorm.DB, svc *boot.Services) {
	authorized := apiv1Group(router)
	authorized.Use(middlewares.AuthMiddleware([]byte(cfg.JWTSecret)))
	{
		eventHandlers(authorized, gdb)
		ticketHandlers(authorized, gdb, cfg.QRSecret)

		buyer := authorized.Group("")
		buyer.Use(middlewares.RequireRole(middlewares.ROLE_BUYER))
		orderHandlers(buyer, svc.Orders)

		organizer := authorized.Group("")
		organizer.Use(middlewares.RequireRole(middlewares.ROLE_ORGANIZER))
		organizerHandlers(organizer, svc.Catalog)

		staff := authorized.Group("")
		staff.Use(middlewares.RequireRole(middlewares.ROLE_STAFF, middlewares.ROLE_ORGANIZER))
		checkinHandlers(staff, svc.CheckIn, cfg.QRSecret)
	}
}

func initLogger(cfg *config.Config) {
	cwd, _ := os.Getwd()
	serverLogs := cfg.LogFile
	if serverLogs == "" {
		serverLogs = path.Join(cwd, "logs", "server.log")
	}
	apiLogs := path.Join(path.Dir(serverLogs), "api.log")

	gin.DefaultWriter = io.MultiWriter(&lumberjack.Logger{
		Filename:   apiLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.IsLocal() {
		return cors.Default()
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	cc.AllowOrigins = []string{cfg.AppHost}
	cc.AllowCredentials = true
	return cors.New(cc)
}

func main() {
	if os.Getenv("API_ENV") == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			log.Printf("No .env loaded: %s\n", err.Error())
		}
	}
	cfg := config.Load()
	initLogger(cfg)
	registerValidators()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb := boot.InitDb()
	sink, closeAudit := boot.InitAudit(cfg)
	defer closeAudit()
	svc := boot.InitServices(ctx, cfg, gdb, sink)
	boot.InitScheduler(ctx, svc.Reaper)
	defer boot.StopScheduler(svc.Reaper)

	router := setupRouter()
	router.Use(corsMiddleware(cfg))
	router = maintenanceModeMiddleware(router)
	registerRoutes(router, cfg, gdb, svc)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %s", err)
		}
	}()
	log.Printf("Listening on :%s\n", cfg.Port)

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %s\n", err.Error())
	}
}
