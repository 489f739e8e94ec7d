package http

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/pkg/metrics"
)

// HealthCheck verifica una dependencia (DB, broker). nil = sano.
type HealthCheck func(ctx context.Context) error

// OpsDeps dependencias del servidor de operación.
type OpsDeps struct {
	Service   string
	Metrics   *metrics.Metrics
	Checks    map[string]HealthCheck
	Positions *appinv.PositionQuery
	Reconcile *appinv.ReconcileUseCase
	JWTSecret string // vacío = /ops sin autenticación
}

// Router registra las rutas de operación: salud, métricas y consultas de solo lectura
// sobre posiciones. Las mutaciones del ledger no se exponen por HTTP.
// Con JWTSecret, /ops exige un token del mismo tenant de la ruta.
func Router(app *fiber.App, deps OpsDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.Service})
	})
	app.Get("/ready", readyHandler(deps.Checks))

	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	ops := app.Group("/ops")
	var read, audit []fiber.Handler
	if deps.JWTSecret != "" {
		ops.Use(AuthMiddleware(deps.JWTSecret))
		read = append(read, RequireTenant(), RequireRole("admin", "auditor", "lector"))
		audit = append(audit, RequireTenant(), RequireRole("admin", "auditor"))
	}
	h := NewPositionHandler(deps.Positions, deps.Reconcile)
	ops.Get("/tenants/:tenant/positions", chain(read, h.List)...)
	ops.Get("/tenants/:tenant/positions/:product", chain(read, h.Get)...)
	ops.Get("/tenants/:tenant/positions/:product/reconcile", chain(audit, h.Reconcile)...)
}

func chain(mw []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mw)+1)
	return append(append(out, mw...), h)
}

// readyHandler ejecuta los checks con timeout; 503 si alguno falla.
func readyHandler(checks map[string]HealthCheck) fiber.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		status := fiber.StatusOK
		result := make(fiber.Map, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status = fiber.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		state := "ready"
		if status != fiber.StatusOK {
			state = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{"status": state, "checks": result})
	}
}
