package repositories

import (
	"context"
	"fmt"
	"strings"

	"veggiemarket/internal/catalog"
	"veggiemarket/internal/models"
	"veggiemarket/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the database selected by driver ("sqlite" or "postgres").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the app uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Profile{},
		&storage.DeviceEntry{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

var seedNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

func seedProduct(name string, price int64, stock int, cat models.Category, organic bool, unit, desc string) models.Product {
	c := cat
	d := desc
	o := organic
	return models.Product{
		ID:          uuid.NewSHA1(seedNamespace, []byte(name)).String(),
		Name:        name,
		Description: &d,
		Price:       decimal.NewFromInt(price),
		Stock:       stock,
		Image:       "/images/" + strings.ReplaceAll(strings.ToLower(name), " ", "-") + ".jpg",
		Category:    &c,
		Organic:     &o,
		Unit:        unit,
	}
}

// DemoProducts is the starter catalog. IDs are stable across runs.
func DemoProducts() []models.Product {
	return []models.Product{
		seedProduct("Tomato", 40, 120, models.CategoryVegetables, false, "kg", "Ripe red tomatoes"),
		seedProduct("Red Onion", 35, 200, models.CategoryVegetables, false, "kg", "Crisp red onions"),
		seedProduct("Carrot", 60, 80, models.CategoryVegetables, true, "kg", "Sweet organic carrots"),
		seedProduct("Banana", 50, 150, models.CategoryFruits, false, "dozen", "Robusta bananas"),
		seedProduct("Alphonso Mango", 600, 30, models.CategoryFruits, true, "dozen", "Ratnagiri alphonso mangoes"),
		seedProduct("Spinach", 30, 60, models.CategoryLeafyGreens, true, "bunch", "Fresh spinach leaves"),
		seedProduct("Coriander", 15, 90, models.CategoryHerbs, false, "bunch", "Aromatic coriander"),
		seedProduct("Mint", 20, 70, models.CategoryHerbs, true, "bunch", "Cooling mint leaves"),
		seedProduct("Avocado", 250, 25, models.CategoryExotic, false, "piece", "Hass avocado"),
		seedProduct("Broccoli", 120, 40, models.CategoryExotic, true, "piece", "Green broccoli florets"),
	}
}

// SeedProducts inserts the demo catalog when the products table is empty.
func SeedProducts(ctx context.Context, repo ProductRepository) error {
	existing, err := repo.List(ctx, catalog.Filters{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, p := range DemoProducts() {
		if err := repo.Create(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.Name, err)
		}
	}
	return nil
}
