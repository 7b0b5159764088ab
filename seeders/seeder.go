// Package seeders loads a starter catalog.
package seeders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transaction-service/models"
	"transaction-service/repositories"
)

func product(id, name, category string, stock int, price int64) *models.Product {
	return &models.Product{ID: id, Name: name, Category: category, Stock: stock, Price: decimal.NewFromInt(price)}
}

// Products is the starter catalog.
func Products() []*models.Product {
	return []*models.Product{
		product("indomie-goreng", "Indomie Goreng", "food", 100, 3500),
		product("teh-botol", "Teh Botol", "drinks", 80, 5000),
		product("chitato", "Chitato", "snacks", 60, 8000),
		product("aqua-botol", "Aqua Botol", "drinks", 120, 4000),
		product("silverqueen", "Silverqueen", "snacks", 40, 15000),
		product("pocari-sweat", "Pocari Sweat", "drinks", 70, 7000),
		product("kopiko", "Kopiko", "snacks", 200, 1000),
		product("good-day-coffee", "Good Day Coffee", "drinks", 90, 2500),
		product("roma-biskuit", "Roma Biskuit", "snacks", 110, 6000),
		product("oreo", "Oreo", "snacks", 85, 7000),
	}
}

// Seed adds every starter product the catalog does not have yet, leaving
// existing products and their stock untouched. It returns how many were added.
func Seed(ctx context.Context, catalog repositories.CatalogStore, logger *zap.Logger) (int, error) {
	added := 0
	for _, p := range Products() {
		_, err := catalog.GetProduct(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return added, fmt.Errorf("seed %s: %w", p.ID, err)
		}
		if err := catalog.SaveProduct(ctx, p); err != nil {
			return added, fmt.Errorf("seed %s: %w", p.ID, err)
		}
		added++
	}
	logger.Info("catalog seeded", zap.Int("added", added))
	return added, nil
}
