// Package main, unistaj auth backend'inin giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//  1. Config'i yükle
//  2. Database'i başlat (migration'lar embedded)
//  3. Repository'leri oluştur (DB bağlantısı ile)
//  4. Service'leri oluştur (repository'ler ile)
//  5. Admin hesabını seed'le
//  6. Handler'ları oluştur (service'ler ile)
//  7. HTTP router'ı kur, route'ları bağla
//  8. CORS yapılandır
//  9. HTTP Server'ı başlat
// 10. Graceful shutdown
//
// Global değişken YOK — her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/akinalp/unistaj/config"
	"github.com/akinalp/unistaj/database"
	"github.com/akinalp/unistaj/handlers"
	"github.com/akinalp/unistaj/middleware"
	"github.com/akinalp/unistaj/models"
	"github.com/akinalp/unistaj/pkg/email"
	"github.com/akinalp/unistaj/pkg/ratelimit"
	"github.com/akinalp/unistaj/repository"
	"github.com/akinalp/unistaj/services"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] unistaj auth server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	// Migration'lar binary'ye gömülüdür (go:embed) — deploy'da SQL dosyası
	// taşıma derdi yok.
	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to open embedded migrations: %v", err)
	}

	db, err := database.New(cfg.Database.Path, migrationsFS)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repository Layer ───
	userRepo := repository.NewSQLiteUserRepo(db.Conn)
	sessionRepo := repository.NewSQLiteSessionRepo(db.Conn)
	// Rol yetkileri seed verisidir — cache decorator login/refresh yoğunluğunda
	// aynı join'in tekrar tekrar koşmasını engeller.
	roleRepo := repository.NewCachedRoleRepo(repository.NewSQLiteRoleRepo(db.Conn))
	resetRepo := repository.NewSQLiteResetTokenRepo(db.Conn)

	// ─── 4. Service Layer ───
	// Resend API key boşsa email gönderimi devre dışı kalır — forgot-password
	// token üretir ama mail atmaz (development modu).
	var emailSender email.EmailSender
	if cfg.Email.ResendAPIKey != "" {
		emailSender = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Email.AppURL)
	} else {
		log.Println("[main] RESEND_API_KEY not set, password reset emails disabled")
	}

	authService := services.NewAuthService(
		userRepo,
		sessionRepo,
		roleRepo,
		resetRepo,
		emailSender,
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessExpiryMinutes,
		cfg.Auth.RefreshExpiryDays,
	)

	loginLimiter := ratelimit.NewLoginRateLimiter(
		cfg.RateLimit.LoginMaxAttempts,
		time.Duration(cfg.RateLimit.LoginWindowMinute)*time.Minute,
	)
	defer loginLimiter.Stop()

	// ─── 5. Admin Seed ───
	if err := authService.EnsureAdminAccount(context.Background(),
		cfg.Auth.SeedAdminEmail, cfg.Auth.SeedAdminPassword); err != nil {
		log.Fatalf("[main] failed to seed admin account: %v", err)
	}

	// ─── 6. Handler Layer ───
	authHandler := handlers.NewAuthHandler(authService, loginLimiter, cfg.Auth.CookieSecure)
	userHandler := handlers.NewUserHandler(userRepo)
	adminHandler := handlers.NewAdminHandler(userRepo, sessionRepo)

	// ─── 7. HTTP Router ───
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"unistaj-auth"}`)
	})

	// Auth — public endpoint'ler (token gerekmez; refresh/logout kimliğini
	// cookie'den alır)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /api/auth/forgot-password", authHandler.ForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", authHandler.ResetPassword)

	// Protected endpoint'ler — middleware chain ile sarılır
	requireAuth := middleware.RequireAuth(authService)
	mux.Handle("GET /api/auth/me", requireAuth(http.HandlerFunc(userHandler.Me)))

	// Admin — view_list_user yetkisi gerekir
	mux.Handle("GET /api/admin/stats", requireAuth(
		middleware.RequirePermission(models.PermViewListUser)(
			http.HandlerFunc(adminHandler.Stats))))

	// ─── 8. CORS ───
	// AllowCredentials=true ZORUNLU: refresh cookie cross-origin istekle
	// taşınabilsin diye. Bu yüzden AllowedOrigins wildcard OLAMAZ.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			cfg.Email.AppURL,        // frontend'in public URL'i
			"http://localhost:3000", // Vite dev server
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		Debug:            false,
	})

	handler := corsHandler.Handler(mux)

	// ─── 9. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 10. Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	// Fırsatçı temizlik: süresi dolmuş session satırları günde bir süpürülür.
	// Doğruluk için GEREKMEZ (geçerlilik zaten lazy kontrol edilir) —
	// sadece tablonun sonsuza kadar büyümesini engeller.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sessionRepo.DeleteExpired(cleanupCtx, time.Now()); err != nil {
					log.Printf("[main] session cleanup failed: %v", err)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
