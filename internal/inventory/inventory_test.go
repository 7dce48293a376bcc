package inventory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meatengine/internal/audit"
	"meatengine/internal/auth"
	"meatengine/internal/compliance"
	"meatengine/internal/database"
	"meatengine/internal/logging"
	"meatengine/internal/meat"
	"meatengine/internal/models"
	"meatengine/internal/reference"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var actor = audit.Actor{UserID: 5, UserName: "ana@brasa.test"}

type fixture struct {
	db      *gorm.DB
	gate    *compliance.Gate
	svc     *Service
	storeID uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open("sqlite:" + filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	company := models.Company{Name: "Brasa Group"}
	require.NoError(t, db.Create(&company).Error)
	store := models.Store{CompanyID: company.ID, Name: "Dallas Uptown"}
	require.NoError(t, db.Create(&store).Error)

	sched, err := compliance.NewSchedule("Sun 22:00", "Mon 11:00", time.UTC)
	require.NoError(t, err)
	gate := compliance.NewGate(compliance.NewGormCycleRepository(db), sched, compliance.WithLogger(logging.Discard()))

	snap, err := reference.NewSnapshot(reference.Defaults())
	require.NoError(t, err)

	return &fixture{
		db:      db,
		gate:    gate,
		svc:     NewService(db, gate, reference.NewHolder(snap), logging.Discard()),
		storeID: store.ID,
	}
}

func (f *fixture) at(t time.Time) { f.svc.now = func() time.Time { return t } }

func utc(month time.Month, day, hour int) time.Time {
	return time.Date(2026, month, day, hour, 0, 0, 0, time.UTC)
}

func TestWeeklyCloseUnlocksStoreAndFeedsConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.at(utc(time.February, 23, 12))
	res, err := f.svc.WeeklyClose(ctx, actor, WeeklyClose{
		StoreID: f.storeID,
		Counts:  []CountLine{{Protein: "picanha", Quantity: 50}, {Protein: "Chicken Breast", Quantity: 30}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-W09", res.WindowKey)
	assert.Equal(t, compliance.Recorded, res.Result)

	now := utc(time.March, 2, 12)
	assert.False(t, f.gate.Check(ctx, f.storeID, models.RoleStoreManager, now).Allowed)

	f.at(now)
	res, err = f.svc.WeeklyClose(ctx, actor, WeeklyClose{
		StoreID:        f.storeID,
		Counts:         []CountLine{{Protein: "Picanha", Quantity: 40}, {Protein: "Chicken Breast", Quantity: 10}},
		Purchases:      []PurchaseLine{{Protein: "Picanha", Quantity: 100, CostTotal: decimal.RequireFromString("526.00"), Date: utc(time.February, 25, 0)}},
		DineInGuests:   200,
		DeliveryGuests: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-W10", res.WindowKey)
	assert.Equal(t, "2026-W09", res.ClosedPeriod)
	assert.Equal(t, compliance.Recorded, res.Result)
	assert.True(t, f.gate.Check(ctx, f.storeID, models.RoleStoreManager, now).Allowed)

	var guests models.GuestCount
	require.NoError(t, f.db.Where("store_id = ? AND period_key = ?", f.storeID, "2026-W09").First(&guests).Error)
	assert.Equal(t, 240, guests.Total())

	cons, err := f.svc.Consumption(ctx, f.storeID, meat.Period{Year: 2026, Week: 9})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-23", cons.StartDate)
	assert.Equal(t, "2026-03-02", cons.EndDate)
	by := cons.ByProtein()
	assert.InDelta(t, 110.0, by["Picanha"], 1e-9)
	assert.InDelta(t, 20.0, by["Chicken Breast"], 1e-9)
	for _, l := range cons.Lines {
		if l.Protein == "Picanha" {
			assert.True(t, l.PurchaseCost.Equal(decimal.RequireFromString("526")))
		}
	}

	var logs int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).Where("entity_type = ?", "weekly_close").Count(&logs).Error)
	assert.Equal(t, int64(2), logs)
}

func TestWeeklyCloseTwiceChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.at(utc(time.March, 2, 9))

	in := WeeklyClose{
		StoreID:   f.storeID,
		Counts:    []CountLine{{Protein: "Picanha", Quantity: 40}},
		Purchases: []PurchaseLine{{Protein: "Picanha", Quantity: 20, CostTotal: decimal.RequireFromString("105.20")}},
	}
	first, err := f.svc.WeeklyClose(ctx, actor, in)
	require.NoError(t, err)
	assert.Equal(t, compliance.Recorded, first.Result)

	in.Counts[0].Quantity = 99
	second, err := f.svc.WeeklyClose(ctx, actor, in)
	require.NoError(t, err)
	assert.Equal(t, compliance.AlreadySubmitted, second.Result)

	var purchases int64
	require.NoError(t, f.db.Model(&models.PurchaseRecord{}).Count(&purchases).Error)
	assert.Equal(t, int64(1), purchases)

	var count models.InventoryRecord
	require.NoError(t, f.db.Where("store_id = ?", f.storeID).First(&count).Error)
	assert.Equal(t, 40.0, count.Quantity)
}

func TestWeeklyCloseRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.at(utc(time.March, 2, 12))

	_, err := f.svc.WeeklyClose(ctx, actor, WeeklyClose{StoreID: f.storeID, Counts: []CountLine{{Protein: "Wagyu", Quantity: 4}}})
	assert.True(t, errors.Is(err, ErrUnknownProtein))

	_, err = f.svc.WeeklyClose(ctx, actor, WeeklyClose{StoreID: f.storeID, Counts: []CountLine{{Protein: "Picanha", Quantity: -4}}})
	assert.True(t, errors.Is(err, ErrInvalidClose))

	_, err = f.svc.WeeklyClose(ctx, actor, WeeklyClose{StoreID: f.storeID, DineInGuests: -1})
	assert.True(t, errors.Is(err, ErrInvalidClose))

	_, err = f.svc.WeeklyClose(ctx, actor, WeeklyClose{StoreID: f.storeID, WindowKey: "2026-W20"})
	assert.True(t, errors.Is(err, compliance.ErrOutsideWindow))

	// nothing was recorded, the store stays locked
	assert.False(t, f.gate.Check(ctx, f.storeID, models.RoleStoreManager, utc(time.March, 2, 12)).Allowed)
}

func TestConsumptionNeedsTwoCounts(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Consumption(context.Background(), f.storeID, meat.Period{Year: 2026, Week: 9})
	assert.True(t, errors.Is(err, ErrNoCount))
}

func TestWeeklyCloseHandler(t *testing.T) {
	f := newFixture(t)
	f.at(utc(time.March, 2, 12))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserRoleKey, models.RoleStoreManager)
		c.Locals(auth.CtxStoreIDKey, &f.storeID)
		return c.Next()
	})
	app.Post("/api/inventory/weekly-close", WeeklyCloseHandler(f.svc))

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/inventory/weekly-close", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	body := `{"counts":[{"protein":"Picanha","quantity":38.5}],"purchases":[{"protein":"Picanha","quantity":23,"cost_total":"120.98","date":"2026-02-26"}],"dine_in_guests":310}`
	assert.Equal(t, http.StatusCreated, post(body))
	assert.Equal(t, http.StatusOK, post(body))
	assert.Equal(t, http.StatusBadRequest, post(`{"counts":[{"protein":"Kobe","quantity":1}]}`))
	assert.Equal(t, http.StatusForbidden, post(`{"store_id":999}`))
}
