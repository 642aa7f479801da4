// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/campushub/class-enrollment/internal/clock"
	"github.com/campushub/class-enrollment/internal/config"
	"github.com/campushub/class-enrollment/internal/database"
	"github.com/campushub/class-enrollment/internal/handler"
	"github.com/campushub/class-enrollment/internal/notify"
	"github.com/campushub/class-enrollment/internal/repository"
	"github.com/campushub/class-enrollment/internal/service"
	"github.com/campushub/class-enrollment/migrations"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 1. Connect to PostgreSQL and apply the schema ────────────────────
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()
	log.Println("connected to postgres")

	if err := migrations.Apply(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	// ── 2. Connect to the fan-out channel ────────────────────────────────
	var publisher notify.Publisher
	if cfg.AMQPURL != "" {
		amqpPub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.PromotionExchange)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		publisher = amqpPub
		log.Printf("connected to rabbitmq exchange=%s", cfg.PromotionExchange)
	} else {
		publisher = notify.NewLogPublisher()
		log.Println("AMQP_URL unset, promotion events will be logged only")
	}
	defer publisher.Close()

	// ── 3. Wire up layers ────────────────────────────────────────────────
	clk := clock.NewSystem()
	offeringRepo := repository.NewOfferingRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	waitlistRepo := repository.NewWaitlistRepository(pool, cfg.WaitlistCapacity, cfg.MaxWaitlistsPerStudent)
	policyRepo := repository.NewPolicyRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)

	emitter := notify.NewEmitter(subscriptionRepo, publisher, nil)
	engine := service.NewPromotionEngine(promotionStore{enrollmentRepo, offeringRepo}, emitter, clk, nil)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, waitlistRepo, policyRepo, engine, clk, nil)
	catalogSvc := service.NewCatalogService(offeringRepo, enrollmentRepo, waitlistRepo, policyRepo, engine, clk, nil)
	subscriptionSvc := service.NewSubscriptionService(subscriptionRepo, clk)
	h := handler.NewEnrollmentHandler(enrollmentSvc, catalogSvc, subscriptionSvc)

	// ── 4. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // access log
	r.Use(handler.CORS)            // permissive CORS for the gateway

	// Health
	r.Get("/health", handler.HealthCheck)

	// API routes. Identity is injected by the upstream gateway.
	r.Group(func(r chi.Router) {
		r.Use(handler.Identity)

		r.Route("/offerings", func(r chi.Router) {
			r.Post("/", h.CreateOffering)
			r.Get("/", h.ListOfferings)
			r.Get("/available", h.ListAvailable)
			r.Get("/{id}", h.GetOffering)
			r.Delete("/{id}", h.DeleteOffering)

			r.Post("/{id}/enroll", h.Enroll)
			r.Delete("/{id}/enrollment", h.Drop)
			r.Delete("/{id}/enrollment/{studentID}", h.AdministrativeDrop)

			r.Get("/{id}/waitlist/position", h.WaitlistPosition)
			r.Delete("/{id}/waitlist", h.LeaveWaitlist)

			r.Get("/{id}/roster", h.Roster)
			r.Get("/{id}/waitlist", h.Waitlist)
			r.Get("/{id}/droplist", h.Droplist)

			r.Post("/{id}/subscription", h.Subscribe)
			r.Delete("/{id}/subscription", h.Unsubscribe)
		})

		r.Get("/subscriptions", h.ListSubscriptions)
		r.Get("/auto-enrollment", h.GetPolicy)
		r.Put("/auto-enrollment", h.SetPolicy)
	})

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}

// promotionStore combines the ledger's promotion transaction with the
// offering index the sweep needs.
type promotionStore struct {
	*repository.EnrollmentRepository
	*repository.OfferingRepository
}
