// Package repositories holds the persistence ports of the transaction core
// and their in-memory and MySQL implementations.
//
// Every lookup that misses returns an error matching models.ErrNotFound.
// Implementations hand out copies, so callers own what they receive and
// must Save to publish changes.
package repositories

import (
	"context"
	"time"

	"transaction-service/models"
)

type TransactionRepository interface {
	// Save inserts or replaces the transaction together with its items.
	Save(ctx context.Context, t *models.Transaction) error
	// UpdateStatus moves the stored transaction from one status to another
	// and stamps it with at. It fails with models.ErrConflict when the
	// stored status is no longer from, so two writers cannot both win the
	// same transition.
	UpdateStatus(ctx context.Context, id string, from, to models.TransactionStatus, at time.Time) error
	FindByID(ctx context.Context, id string) (*models.Transaction, error)
	FindAll(ctx context.Context) ([]*models.Transaction, error)
	FindByCustomerID(ctx context.Context, customerID string) ([]*models.Transaction, error)
	FindByStatus(ctx context.Context, status models.TransactionStatus) ([]*models.Transaction, error)
	FindByPaymentMethod(ctx context.Context, method string) ([]*models.Transaction, error)
	// FindByDateRange matches CreatedAt inclusively on both ends.
	FindByDateRange(ctx context.Context, start, end time.Time) ([]*models.Transaction, error)
	FindOngoing(ctx context.Context) ([]*models.Transaction, error)
	// SearchByKeyword is a case-sensitive substring match on id or customer id.
	SearchByKeyword(ctx context.Context, keyword string) ([]*models.Transaction, error)
	// FindWithFilters applies the filter predicates; sorting is left to the caller.
	FindWithFilters(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// PaymentRepository is the payment ledger.
type PaymentRepository interface {
	// Save assigns an ID and persists the payment.
	Save(ctx context.Context, p *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByCustomerID(ctx context.Context, customerID string) ([]*models.Payment, error)
	Update(ctx context.Context, p *models.Payment) error
	Delete(ctx context.Context, id string) error
}

// CatalogStore is the product catalog. AdjustStock is the only way stock
// changes; it applies delta atomically and fails with models.ErrConflict
// when the result would be negative.
type CatalogStore interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error)
	SaveProduct(ctx context.Context, p *models.Product) error
	ListProducts(ctx context.Context) ([]*models.Product, error)
}

func transactionNotFound(id string) error {
	return models.NotFoundf("transaction not found: %s", id)
}

func statusMismatch(id string, current, expected models.TransactionStatus) error {
	return models.Conflictf("transaction %s is %s, expected %s", id, current, expected)
}

func paymentNotFound(id string) error {
	return models.NotFoundf("payment not found: %s", id)
}

func productNotFound(id string) error {
	return models.NotFoundf("product not found: %s", id)
}

func insufficientStock(p *models.Product, delta int) error {
	return models.Conflictf("not enough stock for product: %s (stock %d, change %d)", p.Name, p.Stock, delta)
}
