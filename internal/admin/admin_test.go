package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"meatengine/internal/auth"
	"meatengine/internal/database"
	"meatengine/internal/logging"
	"meatengine/internal/models"
	"meatengine/internal/reference"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type brokenReloader struct{}

func (brokenReloader) Reload(context.Context) error { return errors.New("tables file unreadable") }

type env struct {
	db   *gorm.DB
	refs *reference.Holder
	app  *fiber.App
}

func newEnv(t *testing.T, reloader func(*reference.Watcher) Reloader) *env {
	t.Helper()
	db, err := database.Open("sqlite:" + filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	loader := &reference.Loader{Targets: reference.GormTargets{DB: db}}
	snap, err := loader.Load(context.Background())
	require.NoError(t, err)
	refs := reference.NewHolder(snap)
	w := reference.NewWatcher(loader, refs, logging.Discard())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, uint(1))
		c.Locals(auth.CtxUserRoleKey, models.RoleSuperAdmin)
		c.Locals(auth.CtxEmailKey, "root@brasa.test")
		return c.Next()
	})
	th := NewTargetHandlers(db, refs, reloader(w))
	app.Post("/companies", CreateCompanyHandler(db))
	app.Post("/stores", CreateStoreHandler(db))
	app.Get("/stores", ListStoresHandler(db))
	app.Post("/stores/:id/managers", CreateStoreManagerHandler(db))
	app.Get("/stores/:id/targets", th.List())
	app.Put("/stores/:id/targets", th.Upsert())
	app.Delete("/stores/:id/targets/:protein", th.Delete())
	app.Put("/stores/:id/proxy", th.SetProxy())

	return &env{db: db, refs: refs, app: app}
}

func realReloader(w *reference.Watcher) Reloader { return w }

func (e *env) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (e *env) createStore(t *testing.T, companyID uint, name string) uint {
	t.Helper()
	code, raw := e.do(t, http.MethodPost, "/stores", `{"company_id":`+strconv.Itoa(int(companyID))+`,"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, code, string(raw))
	var s StoreResponse
	require.NoError(t, json.Unmarshal(raw, &s))
	return s.ID
}

func (e *env) createCompany(t *testing.T, name string) uint {
	t.Helper()
	code, raw := e.do(t, http.MethodPost, "/companies", `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, code, string(raw))
	var c models.Company
	require.NoError(t, json.Unmarshal(raw, &c))
	return c.ID
}

func TestStoresAndManagers(t *testing.T) {
	e := newEnv(t, realReloader)
	company := e.createCompany(t, "Brasa Group")
	dallas := e.createStore(t, company, "Dallas Uptown")

	code, _ := e.do(t, http.MethodPost, "/stores", `{"company_id":`+strconv.Itoa(int(company))+`,"name":"Dallas Uptown"}`)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = e.do(t, http.MethodPost, "/stores", `{"company_id":999,"name":"Nowhere"}`)
	assert.Equal(t, http.StatusNotFound, code)

	path := "/stores/" + strconv.Itoa(int(dallas)) + "/managers"
	code, raw := e.do(t, http.MethodPost, path, `{"name":"Ana","email":" Ana@Brasa.test ","password":"picanha"}`)
	require.Equal(t, http.StatusCreated, code, string(raw))
	assert.Contains(t, string(raw), `"email":"ana@brasa.test"`)
	assert.NotContains(t, string(raw), "picanha")

	code, _ = e.do(t, http.MethodPost, path, `{"name":"Ana","email":"ana@brasa.test","password":"x"}`)
	assert.Equal(t, http.StatusConflict, code)

	var logs []models.AuditLog
	require.NoError(t, e.db.Where("entity_type = ?", "store").Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func TestTargetChangesReachTheSnapshot(t *testing.T) {
	e := newEnv(t, realReloader)
	company := e.createCompany(t, "Brasa Group")
	dallas := e.createStore(t, company, "Dallas Uptown")
	frisco := e.createStore(t, company, "Frisco")
	base := "/stores/" + strconv.Itoa(int(dallas))

	code, raw := e.do(t, http.MethodPut, base+"/targets", `{"protein":"picanha","weight_target_per_guest":0.39}`)
	require.Equal(t, http.StatusOK, code, string(raw))
	tg, ok := e.refs.Load().Target(dallas, "Picanha")
	require.True(t, ok, "lowercase input is stored under the canonical key")
	assert.Equal(t, 0.39, tg.WeightPerGuest)

	code, _ = e.do(t, http.MethodPut, base+"/targets", `{"protein":"Picanha","weight_target_per_guest":0.41}`)
	require.Equal(t, http.StatusOK, code)
	tg, _ = e.refs.Load().Target(dallas, "Picanha")
	assert.Equal(t, 0.41, tg.WeightPerGuest)

	var count int64
	require.NoError(t, e.db.Model(&models.StoreMeatTarget{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "upsert keeps one row per store and protein")

	code, _ = e.do(t, http.MethodPut, base+"/targets", `{"protein":"Picanha","weight_target_per_guest":-1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, raw = e.do(t, http.MethodPut, "/stores/"+strconv.Itoa(int(frisco))+"/proxy",
		`{"proxy_store_id":`+strconv.Itoa(int(dallas))+`}`)
	require.Equal(t, http.StatusOK, code, string(raw))
	tg, ok = e.refs.Load().Target(frisco, "Picanha")
	require.True(t, ok, "Frisco borrows Dallas's targets")
	assert.Equal(t, 0.41, tg.WeightPerGuest)

	code, _ = e.do(t, http.MethodPut, base+"/proxy", `{"proxy_store_id":`+strconv.Itoa(int(dallas))+`}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodDelete, base+"/targets/Picanha", "")
	assert.Equal(t, http.StatusNoContent, code)
	_, ok = e.refs.Load().Target(dallas, "Picanha")
	assert.False(t, ok)

	code, _ = e.do(t, http.MethodDelete, base+"/targets/Picanha", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTargetSavedEvenWhenReloadFails(t *testing.T) {
	e := newEnv(t, func(*reference.Watcher) Reloader { return brokenReloader{} })
	company := e.createCompany(t, "Brasa Group")
	dallas := e.createStore(t, company, "Dallas Uptown")

	code, raw := e.do(t, http.MethodPut, "/stores/"+strconv.Itoa(int(dallas))+"/targets",
		`{"protein":"Picanha","weight_target_per_guest":0.39}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Contains(t, string(raw), "tables file unreadable")

	var target models.StoreMeatTarget
	require.NoError(t, e.db.First(&target).Error)
	assert.Equal(t, "Picanha", target.Protein)
}
