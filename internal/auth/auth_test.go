package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"meatengine/internal/database"
	"meatengine/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite:" + filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedManager(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	company := models.Company{Name: "Brasa Group"}
	require.NoError(t, db.Create(&company).Error)
	store := models.Store{CompanyID: company.ID, Name: "Dallas Uptown"}
	require.NoError(t, db.Create(&store).Error)

	hash, err := bcrypt.GenerateFromPassword([]byte("picanha"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{Name: "Ana", Email: "ana@brasa.test", PasswordHash: string(hash), Role: models.RoleStoreManager, StoreID: &store.ID}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func TestLoginIssuesTokenThatMiddlewareAccepts(t *testing.T) {
	db := newTestDB(t)
	user := seedManager(t, db)

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Post("/login", LoginHandler(db, testSecret))
	app.Get("/me", JWTMiddleware(testSecret), MeHandler(db))
	app.Get("/stores/:id", JWTMiddleware(testSecret), func(c *fiber.Ctx) error {
		id, _ := c.ParamsInt("id")
		if !CanAccessStore(c, uint(id)) {
			return fiber.ErrForbidden
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":" ANA@brasa.test ","password":"picanha"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "ana@brasa.test", me["email"])
	assert.Equal(t, float64(*user.StoreID), me["store_id"])

	for path, want := range map[string]int{
		"/stores/" + itoa(*user.StoreID): http.StatusNoContent,
		"/stores/999":                    http.StatusForbidden,
	} {
		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+body.Token)
		resp, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	db := newTestDB(t)
	seedManager(t, db)

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Post("/login", LoginHandler(db, testSecret))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"ana@brasa.test","password":"fraldinha"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTMiddlewareRejectsBadTokens(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Get("/", JWTMiddleware(testSecret), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	other, err := GenerateToken("another-secret-another-secret-xx", &models.User{ID: 1, Role: models.RoleDirector})
	require.NoError(t, err)

	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt", "Bearer " + other} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
	}
}

func TestRequireRole(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Get("/", JWTMiddleware(testSecret), RequireRole(models.RoleSuperAdmin, models.RoleDirector),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for role, want := range map[models.UserRole]int{
		models.RoleDirector:     http.StatusOK,
		models.RoleStoreManager: http.StatusForbidden,
	} {
		tok, err := GenerateToken(testSecret, &models.User{ID: 3, Role: role})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, role)
	}
}

func TestRegisterSuperAdminOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Post("/register", RegisterSuperAdminHandler(db))

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"name":"Root","email":"root@brasa.test","password":"s3cret"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusCreated, post())
	assert.Equal(t, http.StatusForbidden, post())
}

func itoa(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}
