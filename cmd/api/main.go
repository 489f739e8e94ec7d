package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/kafka"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/inventario-ledger/internal/interfaces/http"
	"github.com/jhoicas/inventario-ledger/pkg/config"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
	"github.com/jhoicas/inventario-ledger/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Ledger.Store).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]httpRouter.HealthCheck{}

	var repos inventory.Repositories
	switch cfg.Ledger.Store {
	case "memory":
		log.Warn().Msg("store en memoria: los datos se pierden al reiniciar")
		repos = memory.New().Repositories()
	default:
		var pool *pgxpool.Pool
		pool, err = postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("aplicar esquema")
		}
		repos = postgres.NewRepositories(pool)
		checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}

	opts, err := inventory.OptionsFromConfig(cfg.Ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("configuración del ledger")
	}
	m := metrics.New(metrics.DefaultConfig())
	engine := inventory.NewEngine(repos, opts, log.Zerolog(), m)

	var publisher inventory.SuggestionPublisher
	if cfg.Kafka.Enabled {
		p := kafka.NewSuggestionPublisher(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.SuggestionTopic,
			Source:       cfg.App.Name,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, log.Component("kafka"))
		defer func() {
			if err := p.Close(); err != nil {
				log.Error().Err(err).Msg("cerrar publicador kafka")
			}
		}()
		publisher = p
		checks["kafka"] = func(context.Context) error {
			if p.State() == "open" {
				return kafka.ErrBrokerUnavailable
			}
			return nil
		}
	}

	scheduler := inventory.NewReorderScheduler(engine, publisher, cfg.Ledger.ReorderInterval)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		scheduler.Run(ctx)
	}()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ReadTimeout:           time.Second * 10,
		WriteTimeout:          time.Second * 10,
		IdleTimeout:           time.Second * 60,
		DisableStartupMessage: cfg.App.Env != "development",
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.OpsDeps{
		Service:   cfg.App.Name,
		Metrics:   m,
		Checks:    checks,
		Positions: engine.Positions,
		Reconcile: engine.Reconcile,
		JWTSecret: cfg.HTTP.JWTSecret,
	})
	if cfg.HTTP.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET vacío: /ops sin autenticación")
	}

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	<-schedDone

	log.Info().Msg("aplicación detenida")
}
