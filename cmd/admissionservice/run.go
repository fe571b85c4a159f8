// cmd/admissionservice/run.go
package admissionservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	service "github.com/crowdlunch/admission/internal/app/admissionservice"
	"github.com/crowdlunch/admission/internal/domain/admission"
	"github.com/crowdlunch/admission/internal/ports"
	"github.com/crowdlunch/admission/internal/shared/config"
	"github.com/crowdlunch/admission/internal/shared/logger"
	pg "github.com/crowdlunch/admission/internal/shared/postgres"
	"github.com/crowdlunch/admission/internal/shared/rabbitmq"
)

// Run wires the admission service and blocks until ctx is cancelled.
// It returns the first terminal error (server or startup failure).
func Run(ctx context.Context, port int, maxConcurrent int) error {
	// set up a new logger for the admission service
	log := logger.NewLogger("admission-service")

	// load a config from file
	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load configuration", err)
		return err
	}

	// set up a Postgres connection pool
	pool, err := pg.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err)
		return err
	}
	defer pool.Close()

	// set up repositories, unit of work, and the application service
	uow := pg.NewUnitOfWork(pool)
	orders := pg.NewOrdersRepo()
	slots := pg.NewSlotsRepo()
	menus := pg.NewMenuRepo()

	// event publishing is optional; orders are admitted even when the
	// broker is down or disabled
	var publisher ports.AdmittedPublisher
	if cfg.RabbitMQ.Enabled {
		pub, err := rabbitmq.Connect(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err)
			return err
		}
		defer pub.Close()
		publisher = pub
	}

	svc := service.New(uow, orders, slots, menus, publisher, admission.JSTClock{}, log)

	// set up the HTTP handler
	h := service.NewHTTPHandler(svc, admission.JSTClock{}, log)

	mux := http.NewServeMux()
	h.Register(mux)

	// Concurrency limiter (global) — blocks when capacity is full.
	handler := withConcurrencyLimit(maxConcurrent, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Tie server lifetime to incoming ctx (nice for tests / parent cancel).
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	log.Info(ctx, "service_started",
		fmt.Sprintf("Admission Service started on port %d", port),
		map[string]any{"port": port, "max_concurrent": maxConcurrent},
	)

	// ---- Serve + graceful shutdown -------------------------------------------
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// http.ErrServerClosed is returned on Shutdown; treat that as clean exit.
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		// Graceful HTTP shutdown (drain keep-alives / in-flight requests).
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Error(context.Background(), "shutdown_failed", "HTTP server shutdown was not clean", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error(ctx, "service_failed", "Admission Service terminated with an error", err)
		return err
	}

	log.Info(context.Background(), "service_stopped", "Admission Service stopped", nil)
	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It *blocks* until capacity is available, which provides natural backpressure.
// If you prefer a fast-fail (HTTP 429), switch the acquire to a non-blocking select.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sem <- struct{}{}        // acquire
		defer func() { <-sem }() // release
		next.ServeHTTP(w, r)
	})
}
