package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"transaction-service/models"
)

type MySQLCatalog struct {
	db *sql.DB
}

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

const productColumns = "id, name, category, stock, price"

func (c *MySQLCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := c.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Category, &p.Stock, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, productNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

// AdjustStock guards the update in SQL so concurrent writers cannot push
// stock below zero.
func (c *MySQLCatalog) AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	result, err := c.db.ExecContext(ctx,
		"UPDATE products SET stock = stock + ? WHERE id = ? AND stock + ? >= 0",
		delta, id, delta,
	)
	if err != nil {
		return nil, fmt.Errorf("adjust stock %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("adjust stock %s: %w", id, err)
	}

	p, err := c.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, insufficientStock(p, delta)
	}
	return p, nil
}

func (c *MySQLCatalog) SaveProduct(ctx context.Context, p *models.Product) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), category = VALUES(category), stock = VALUES(stock), price = VALUES(price)`,
		p.ID, p.Name, p.Category, p.Stock, p.Price,
	)
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return nil
}

func (c *MySQLCatalog) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Stock, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}
