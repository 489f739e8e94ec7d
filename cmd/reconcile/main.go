// reconcile reproduce el ledger de una posición (o de todas las de un tenant) desde cero
// y lo compara con los saldos almacenados.
//
// Uso: go run ./cmd/reconcile -tenant <id> [-product <id>]
// Sale con código 2 si encuentra diferencias.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-ledger/pkg/config"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant a conciliar (obligatorio)")
	productID := flag.String("product", "", "producto; vacío = todas las posiciones del tenant")
	flag.Parse()
	if *tenantID == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "reconcile"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	opts, err := inventory.OptionsFromConfig(cfg.Ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("configuración del ledger")
	}
	engine := inventory.NewEngine(postgres.NewRepositories(pool), opts, log.Zerolog(), nil)

	var reports []*inventory.ReconcileReport
	if *productID != "" {
		rep, err := engine.Reconcile.Reconcile(ctx, *tenantID, *productID)
		if err != nil {
			log.Fatal().Err(err).Msg("conciliar posición")
		}
		reports = append(reports, rep)
	} else {
		reports, err = engine.Reconcile.ReconcileTenant(ctx, *tenantID)
		if err != nil {
			log.Fatal().Err(err).Msg("conciliar tenant")
		}
	}

	failed := 0
	for _, rep := range reports {
		if rep.OK() {
			continue
		}
		failed++
		for _, d := range rep.Discrepancies {
			fmt.Printf("%s/%s\t%s\tledger=%d\talmacenado=%d\n", rep.TenantID, rep.ProductID, d.Field, d.Expected, d.Actual)
		}
	}
	fmt.Printf("posiciones revisadas: %d, con diferencias: %d\n", len(reports), failed)
	if failed > 0 {
		pool.Close()
		os.Exit(2)
	}
}
