package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"transaction-service/models"
)

// MySQLTransactionRepository stores a transaction row, its items in
// transaction_items, and a reference to its payment. Items keep a
// snapshot of the product name and price they were sold at.
type MySQLTransactionRepository struct {
	db *sql.DB
}

func NewMySQLTransactionRepository(db *sql.DB) *MySQLTransactionRepository {
	return &MySQLTransactionRepository{db: db}
}

const transactionSelect = `SELECT t.id, t.customer_id, t.total_amount, t.payment_method, t.status, t.created_at, t.updated_at,
	p.id, p.customer_id, p.amount, p.method, p.status, p.created_at
	FROM transactions t LEFT JOIN payments p ON p.id = t.payment_id`

func (r *MySQLTransactionRepository) Save(ctx context.Context, t *models.Transaction) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", t.ID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var paymentID sql.NullString
	if t.Payment != nil && t.Payment.ID != "" {
		paymentID = sql.NullString{String: t.Payment.ID, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, customer_id, total_amount, payment_method, status, created_at, updated_at, payment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE customer_id = VALUES(customer_id), total_amount = VALUES(total_amount),
		payment_method = VALUES(payment_method), status = VALUES(status), updated_at = VALUES(updated_at),
		payment_id = VALUES(payment_id)`,
		t.ID, t.CustomerID, t.TotalAmount, t.PaymentMethod, string(t.Status), t.CreatedAt, t.UpdatedAt, paymentID,
	)
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", t.ID, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM transaction_items WHERE transaction_id = ?", t.ID); err != nil {
		return fmt.Errorf("save transaction %s items: %w", t.ID, err)
	}
	for i, item := range t.Items {
		var name string
		var price decimal.Decimal
		if item.Product != nil {
			name, price = item.Product.Name, item.Product.Price
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transaction_items (id, transaction_id, position, product_id, product_name, unit_price, quantity, subtotal)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, t.ID, i, item.ProductID(), name, price, item.Quantity, item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("save transaction %s items: %w", t.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save transaction %s: %w", t.ID, err)
	}
	return nil
}

// UpdateStatus only writes when the row still holds from. MySQL reports a
// matched but unchanged row as unaffected, so a miss is resolved by
// reading the current status back.
func (r *MySQLTransactionRepository) UpdateStatus(ctx context.Context, id string, from, to models.TransactionStatus, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), at, id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update transaction %s status: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %s status: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, "SELECT status FROM transactions WHERE id = ?", id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return transactionNotFound(id)
	case err != nil:
		return fmt.Errorf("update transaction %s status: %w", id, err)
	case from == to && models.TransactionStatus(current) == from:
		return nil
	default:
		return statusMismatch(id, models.TransactionStatus(current), from)
	}
}

func (r *MySQLTransactionRepository) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	found, err := r.query(ctx, "WHERE t.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, transactionNotFound(id)
	}
	return found[0], nil
}

func (r *MySQLTransactionRepository) FindAll(ctx context.Context) ([]*models.Transaction, error) {
	return r.query(ctx, "")
}

func (r *MySQLTransactionRepository) FindByCustomerID(ctx context.Context, customerID string) ([]*models.Transaction, error) {
	return r.query(ctx, "WHERE t.customer_id = ?", customerID)
}

func (r *MySQLTransactionRepository) FindByStatus(ctx context.Context, status models.TransactionStatus) ([]*models.Transaction, error) {
	return r.query(ctx, "WHERE t.status = ?", string(status))
}

func (r *MySQLTransactionRepository) FindByPaymentMethod(ctx context.Context, method string) ([]*models.Transaction, error) {
	return r.query(ctx, "WHERE t.payment_method = ?", method)
}

func (r *MySQLTransactionRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]*models.Transaction, error) {
	return r.query(ctx, "WHERE t.created_at >= ? AND t.created_at <= ?", start, end)
}

func (r *MySQLTransactionRepository) FindOngoing(ctx context.Context) ([]*models.Transaction, error) {
	return r.query(ctx, "WHERE t.status IN (?, ?)", string(models.StatusPending), string(models.StatusInProgress))
}

// SearchByKeyword compares bytes so the match stays case-sensitive under
// the default case-insensitive collation.
func (r *MySQLTransactionRepository) SearchByKeyword(ctx context.Context, keyword string) ([]*models.Transaction, error) {
	pattern := "%" + escapeLike(keyword) + "%"
	return r.query(ctx, "WHERE t.id LIKE BINARY ? OR t.customer_id LIKE BINARY ?", pattern, pattern)
}

func (r *MySQLTransactionRepository) FindWithFilters(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	var conds []string
	var args []any
	if filter.CustomerID != "" {
		conds = append(conds, "t.customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		conds = append(conds, "t.status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if len(filter.PaymentMethods) > 0 {
		conds = append(conds, "t.payment_method IN ("+placeholders(len(filter.PaymentMethods))+")")
		for _, m := range filter.PaymentMethods {
			args = append(args, m)
		}
	}
	if filter.StartDate != nil {
		conds = append(conds, "t.created_at >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conds = append(conds, "t.created_at <= ?")
		args = append(args, *filter.EndDate)
	}

	var where string
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	return r.query(ctx, where, args...)
}

func (r *MySQLTransactionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return requireAffected(result, transactionNotFound(id))
}

func (r *MySQLTransactionRepository) query(ctx context.Context, where string, args ...any) ([]*models.Transaction, error) {
	q := transactionSelect
	if where != "" {
		q += " " + where
	}
	q += " ORDER BY t.created_at, t.id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var found []*models.Transaction
	byID := make(map[string]*models.Transaction)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		found = append(found, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	if len(found) == 0 {
		return []*models.Transaction{}, nil
	}

	if err := r.loadItems(ctx, byID); err != nil {
		return nil, err
	}
	return found, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t            models.Transaction
		status       string
		paymentID    sql.NullString
		payCustomer  sql.NullString
		payAmount    decimal.NullDecimal
		payMethod    sql.NullString
		payStatus    sql.NullString
		payCreatedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.CustomerID, &t.TotalAmount, &t.PaymentMethod, &status, &t.CreatedAt, &t.UpdatedAt,
		&paymentID, &payCustomer, &payAmount, &payMethod, &payStatus, &payCreatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = models.TransactionStatus(status)
	t.Items = []*models.TransactionItem{}
	if paymentID.Valid {
		t.Payment = &models.Payment{
			ID:         paymentID.String,
			CustomerID: payCustomer.String,
			Amount:     payAmount.Decimal,
			Method:     payMethod.String,
			Status:     models.PaymentStatus(payStatus.String),
			CreatedAt:  payCreatedAt.Time,
		}
	}
	return &t, nil
}

func (r *MySQLTransactionRepository) loadItems(ctx context.Context, byID map[string]*models.Transaction) error {
	ids := make([]any, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, product_id, product_name, unit_price, quantity, subtotal
		FROM transaction_items WHERE transaction_id IN (`+placeholders(len(ids))+`)
		ORDER BY transaction_id, position`, ids...)
	if err != nil {
		return fmt.Errorf("query transaction items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item          models.TransactionItem
			transactionID string
			product       models.Product
		)
		if err := rows.Scan(&item.ID, &transactionID, &product.ID, &product.Name, &product.Price, &item.Quantity, &item.Subtotal); err != nil {
			return fmt.Errorf("scan transaction item: %w", err)
		}
		item.Product = &product
		if t, ok := byID[transactionID]; ok {
			t.Items = append(t.Items, &item)
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
