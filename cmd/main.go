package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/teyzer/paykit/gateway"
	"github.com/teyzer/paykit/handler"
	"github.com/teyzer/paykit/infra/audit"
	"github.com/teyzer/paykit/infra/config"
	"github.com/teyzer/paykit/infra/logger"
	"github.com/teyzer/paykit/infra/middle"
	"github.com/teyzer/paykit/infra/response"
	"github.com/teyzer/paykit/router"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := config.App()
	logger.Init(cfg.LogLevel, cfg.ConsoleLog)

	var trail handler.AuditTrail
	if cfg.EnableAudit {
		t, err := audit.NewTrail(cfg)
		if err != nil {
			logger.Warn("audit trail disabled", logger.LogContext{
				Fields: map[string]any{"error": err.Error()},
			})
		} else {
			trail = t
		}
	}

	store, err := config.NewStore(cfg.StorePath)
	if err != nil {
		log.Fatalf("Failed to open option store: %v", err)
	}
	defer store.Close()

	service := gateway.NewService()
	configureBackends(service, store, cfg)

	validate := validator.New()
	paymentHandler := handler.NewPaymentHandler(service, validate, trail)
	backendHandler := handler.NewBackendHandler(service, store)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middle.SecurityHeadersMiddleware())

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		health := map[string]any{
			"status":        "ok",
			"timestamp":     time.Now().UTC(),
			"backends":      service.Configured(),
			"audit_enabled": trail != nil,
		}
		response.Success(w, http.StatusOK, "Service is healthy", health)
	})

	// Bank callbacks carry no authentication; signatures are verified by the
	// adapters themselves.
	r.Route("/callback", func(r chi.Router) {
		r.HandleFunc("/", paymentHandler.HandleCallback)
		r.HandleFunc("/{backend}", paymentHandler.HandleCallback)
	})

	r.Route("/v1", func(r chi.Router) {
		router.Routes(r, paymentHandler, backendHandler)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server starting", logger.LogContext{
			Fields: map[string]any{"port": cfg.Port},
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	logger.Info("server stopped", logger.LogContext{})
}

// configureBackends loads option sets from the backends file and the store.
// File entries win over stored ones so operators can override from disk.
func configureBackends(service *gateway.Service, store *config.Store, cfg *config.AppConfig) {
	kinds, err := store.List()
	if err != nil {
		logger.Warn("failed to list stored backends", logger.LogContext{
			Fields: map[string]any{"error": err.Error()},
		})
	}
	for _, kind := range kinds {
		options, err := store.Get(kind, "")
		if err != nil {
			continue
		}
		if err := service.Configure(kind, options); err != nil {
			logger.Warn("stored backend configuration rejected", logger.LogContext{
				Backend: kind,
				Fields:  map[string]any{"error": err.Error()},
			})
		}
	}

	if cfg.BackendsFile == "" {
		return
	}
	fromFile, err := config.LoadBackendOptions(cfg.BackendsFile)
	if err != nil {
		logger.Warn("failed to load backends file", logger.LogContext{
			Fields: map[string]any{"error": err.Error(), "path": cfg.BackendsFile},
		})
		return
	}
	for kind, options := range fromFile {
		if err := service.Configure(kind, options); err != nil {
			logger.Warn("backend configuration rejected", logger.LogContext{
				Backend: kind,
				Fields:  map[string]any{"error": err.Error()},
			})
		}
	}
}
