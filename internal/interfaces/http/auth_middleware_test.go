package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/inventario-ledger/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/inventario-ledger/pkg/jwt"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testIssuer    = "inventario-ledger-test"
)

// buildAuthApp ruta /t/:tenant protegida por JWT, tenant y rol.
func buildAuthApp(allowedRoles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/t/:tenant",
		apphttp.AuthMiddleware(testJWTSecret),
		apphttp.RequireTenant(),
		apphttp.RequireRole(allowedRoles...),
		func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"tenant": apphttp.GetTenantID(c), "role": apphttp.GetRole(c)})
		},
	)
	return app
}

func bearer(t *testing.T, tenant, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, "op-1", tenant, role, testIssuer, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func doAuth(t *testing.T, app *fiber.App, path, authHeader string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestAuth_TenantYRolCorrectos(t *testing.T) {
	app := buildAuthApp("admin", "auditor")
	resp, body := doAuth(t, app, "/t/"+testTenant, bearer(t, testTenant, "auditor"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, testTenant, got["tenant"])
	assert.Equal(t, "auditor", got["role"])
}

func TestAuth_OtroTenantDevuelve403(t *testing.T) {
	app := buildAuthApp("admin")
	resp, body := doAuth(t, app, "/t/otro", bearer(t, testTenant, "admin"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "TENANT_MISMATCH")
}

func TestAuth_RolSinPermisoDevuelve403(t *testing.T) {
	app := buildAuthApp("admin")
	resp, body := doAuth(t, app, "/t/"+testTenant, bearer(t, testTenant, "lector"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "FORBIDDEN")
}

func TestAuth_SinRolDevuelve401(t *testing.T) {
	app := buildAuthApp("admin")
	resp, body := doAuth(t, app, "/t/"+testTenant, bearer(t, testTenant, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "MISSING_ROLE")
}

func TestAuth_SinHeaderDevuelve401(t *testing.T) {
	app := buildAuthApp("admin")
	resp, body := doAuth(t, app, "/t/"+testTenant, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "MISSING_TOKEN")
}

func TestAuth_TokenInvalidoDevuelve401(t *testing.T) {
	app := buildAuthApp("admin")
	resp, body := doAuth(t, app, "/t/"+testTenant, "Bearer token.invalido.aqui")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "INVALID_TOKEN")
}
