package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	"github.com/susupay/backend/docs"
	"github.com/susupay/backend/internal/database"
	"github.com/susupay/backend/internal/handlers"
	mW "github.com/susupay/backend/internal/middleware"
	"github.com/susupay/backend/internal/models"
	"github.com/susupay/backend/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Susu Pay Backend API
// @version 1.0
// @description API for rotating savings group (susu) management
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	docs.SwaggerInfo.Title = "Susu Pay Backend API"
	docs.SwaggerInfo.Description = "API for rotating savings group (susu) management"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	chatService := services.NewChatService(db)
	engineService := services.NewEngineService(db, redisClient, chatService)
	rotationService := services.NewRotationService(db)
	memberService := services.NewMemberService(db)
	groupService := services.NewGroupService(db)
	authService := services.NewAuthService(db, redisClient)
	auditService := services.NewAuditService(db)
	backupService := services.NewBackupService(db)
	settlementService := services.NewSettlementService(redisClient)

	walletHandler := handlers.NewWalletHandler(engineService)
	backupHandler := handlers.NewBackupHandler(backupService)

	mW.InitAuthMiddleware(redisClient)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go settlementService.RunWorker(workerCtx, 30*time.Second)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check with live dependency probes
	r.Get("/check-health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "healthy", "database": "up", "redis": "up"}
		code := http.StatusOK

		if err := database.PingWithTimeout(db, 3*time.Second); err != nil {
			status["status"] = "degraded"
			status["database"] = "down"
			code = http.StatusServiceUnavailable
		}
		if redisClient == nil {
			status["redis"] = "unavailable"
		} else if err := database.PingRedisWithTimeout(redisClient, 3*time.Second); err != nil {
			status["redis"] = "down"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for provider logos
	r.Handle("/static/provider-logos/*", http.StripPrefix("/static/provider-logos/",
		mW.StaticFileServer("./static/provider-logos")))

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Post("/auth/accept-invite", authService.AcceptInvite)
		r.Get("/groups/resolve-invite", groupService.ResolveInvite)

		// Protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.Account)
			r.Post("/auth/otp/request", authService.RequestPhoneOTP)
			r.Post("/auth/otp/verify", authService.VerifyPhoneOTP)

			// Groups
			r.Get("/groups", groupService.List)
			r.Post("/groups", groupService.Create)
			r.Post("/groups/join", groupService.Join)
			r.Get("/groups/{groupId}", groupService.Get)
			r.Get("/groups/{groupId}/members", groupService.Members)
			r.Get("/groups/{groupId}/invite-qr", groupService.InviteQR)
			r.Get("/groups/{groupId}/next-recipient", rotationService.NextRecipient)
			r.Post("/groups/{groupId}/contribute", engineService.Contribute)

			// Chat
			r.Get("/group-messages/{groupId}", chatService.ListMessages)
			r.Post("/group-messages/{groupId}", chatService.PostMessage)

			// Transactions
			r.Post("/transactions", engineService.CreateTransaction)
			r.Get("/transactions/{userId}", engineService.ListUserTransactions)

			// Wallet
			r.Post("/wallet/deposit", walletHandler.Deposit)
			r.Post("/wallet/withdraw", walletHandler.Withdraw)
			r.Get("/wallet/{userId}/balance", walletHandler.Balance)

			// Users
			r.Get("/users/{id}", memberService.GetUser)
			r.Put("/users/{id}", memberService.UpdateUser)

			// Admin endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(string(models.RoleAdmin), string(models.RoleSuperuser)))

				r.Put("/groups/{groupId}", groupService.Update)
				r.Delete("/groups/{groupId}", groupService.Delete)
				r.Post("/groups/{groupId}/payout", engineService.Payout)
				r.Put("/transactions/{txId}/confirm", engineService.ConfirmDeposit)

				r.Get("/users", memberService.ListUsers)
				r.Post("/users/invite", memberService.InviteUser)
				r.Put("/users/{id}/approve", memberService.ApproveUser)
				r.Put("/users/{id}/suspend", memberService.SuspendUser)
				r.Put("/users/{id}/reactivate", memberService.ReactivateUser)
				r.Put("/users/{id}/verify", memberService.VerifyUser)
				r.Put("/users/{id}/reject", memberService.RejectUser)

				r.Get("/audit-logs", auditService.ListAuditLogs)
				r.Get("/backup/export", backupHandler.Export)
			})

			// Superuser endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(string(models.RoleSuperuser)))

				r.Put("/users/{id}/role", memberService.ChangeUserRole)
				r.Delete("/users/{id}", memberService.RemoveUser)
				r.Post("/backup/restore", backupHandler.Restore)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
