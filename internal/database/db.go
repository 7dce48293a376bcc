package database

import (
	"fmt"
	"log"
	"strings"

	"meatengine/internal/config"
	"meatengine/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	db, err := Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("could not connect to the database: %v", err)
	}
	if err := Migrate(db); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}
	DB = db
	log.Println("database connected, migration complete")
}

// Open picks the driver from the DSN: "sqlite:<path>" opens an embedded
// SQLite file (local runs and tests), anything else goes to Postgres.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		dialector = sqlite.Open(path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// SQLite allows one writer; funnel everything through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Company{},
		&models.Store{},
		&models.StoreProxy{},
		&models.User{},
		&models.StoreMeatTarget{},
		&models.UsageRecord{},
		&models.InventoryCycle{},
		&models.InventoryRecord{},
		&models.PurchaseRecord{},
		&models.GuestCount{},
		&models.WasteEntry{},
		&models.AuditLog{},
	)
}
