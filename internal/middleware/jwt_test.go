package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newProtectedApp(secret string) *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(secret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("user_id"), "role": c.Locals("user_role")})
	})
	return app
}

func TestJWTProtectedAcceptsValidTokens(t *testing.T) {
	app := newProtectedApp("secret")
	token := signToken(t, "secret", jwt.MapClaims{
		"sub":   "instructor@example.edu",
		"roles": []interface{}{"Teacher"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	app := newProtectedApp("secret")

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"empty token":    "Bearer ",
		"wrong secret":   "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": "x"}),
		"expired":        "Bearer " + signToken(t, "secret", jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Hour).Unix()}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestExtractClaims(t *testing.T) {
	require.Equal(t, "42", extractUserIDFromClaims(jwt.MapClaims{"user_id": float64(42)}))
	require.Equal(t, "", extractUserIDFromClaims(jwt.MapClaims{"sub": "  "}))
	require.Equal(t, "admin", extractUserRoleFromClaims(jwt.MapClaims{"role": " Admin "}))
	require.Equal(t, "", extractUserRoleFromClaims(jwt.MapClaims{}))
}

func TestCorrelationIDPropagates(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "req-123", resp.Header.Get("X-Correlation-ID"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
}
