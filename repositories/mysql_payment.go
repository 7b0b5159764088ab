package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"transaction-service/models"
)

type MySQLPaymentRepository struct {
	db *sql.DB
}

func NewMySQLPaymentRepository(db *sql.DB) *MySQLPaymentRepository {
	return &MySQLPaymentRepository{db: db}
}

const paymentColumns = "id, customer_id, amount, method, status, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	var status string
	if err := row.Scan(&p.ID, &p.CustomerID, &p.Amount, &p.Method, &status, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func (r *MySQLPaymentRepository) Save(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	stored := p.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO payments ("+paymentColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		stored.ID, stored.CustomerID, stored.Amount, stored.Method, string(stored.Status), stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	return stored, nil
}

func (r *MySQLPaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, paymentNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", id, err)
	}
	return p, nil
}

func (r *MySQLPaymentRepository) FindByCustomerID(ctx context.Context, customerID string) ([]*models.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE customer_id = ? ORDER BY created_at", customerID)
	if err != nil {
		return nil, fmt.Errorf("find payments: %w", err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *MySQLPaymentRepository) Update(ctx context.Context, p *models.Payment) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE payments SET customer_id = ?, amount = ?, method = ?, status = ? WHERE id = ?",
		p.CustomerID, p.Amount, p.Method, string(p.Status), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	if affected == 0 {
		// Unchanged rows report zero; only a missing row is an error.
		_, err = r.FindByID(ctx, p.ID)
		return err
	}
	return nil
}

func (r *MySQLPaymentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete payment %s: %w", id, err)
	}
	return requireAffected(result, paymentNotFound(id))
}

// requireAffected returns notFound when a delete touched no row.
func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
