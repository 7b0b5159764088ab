package repositories

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"transaction-service/models"
)

// MemoryTransactionRepository keeps transactions in insertion order.
type MemoryTransactionRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.Transaction
	order []string
}

func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{byID: make(map[string]*models.Transaction)}
}

func (r *MemoryTransactionRepository) Save(_ context.Context, t *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	r.byID[t.ID] = t.Clone()
	return nil
}

func (r *MemoryTransactionRepository) UpdateStatus(_ context.Context, id string, from, to models.TransactionStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return transactionNotFound(id)
	}
	if t.Status != from {
		return statusMismatch(id, t.Status, from)
	}
	t.Status = to
	t.UpdatedAt = at
	return nil
}

func (r *MemoryTransactionRepository) FindByID(_ context.Context, id string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return nil, transactionNotFound(id)
	}
	return t.Clone(), nil
}

func (r *MemoryTransactionRepository) find(match func(*models.Transaction) bool) []*models.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Transaction, 0, len(r.order))
	for _, id := range r.order {
		if t := r.byID[id]; match(t) {
			result = append(result, t.Clone())
		}
	}
	return result
}

func (r *MemoryTransactionRepository) FindAll(context.Context) ([]*models.Transaction, error) {
	return r.find(func(*models.Transaction) bool { return true }), nil
}

func (r *MemoryTransactionRepository) FindByCustomerID(_ context.Context, customerID string) ([]*models.Transaction, error) {
	return r.find(func(t *models.Transaction) bool { return t.CustomerID == customerID }), nil
}

func (r *MemoryTransactionRepository) FindByStatus(_ context.Context, status models.TransactionStatus) ([]*models.Transaction, error) {
	return r.find(func(t *models.Transaction) bool { return t.Status == status }), nil
}

func (r *MemoryTransactionRepository) FindByPaymentMethod(_ context.Context, method string) ([]*models.Transaction, error) {
	return r.find(func(t *models.Transaction) bool { return t.PaymentMethod == method }), nil
}

func (r *MemoryTransactionRepository) FindByDateRange(_ context.Context, start, end time.Time) ([]*models.Transaction, error) {
	return r.find(func(t *models.Transaction) bool { return models.InDateRange(t, &start, &end) }), nil
}

func (r *MemoryTransactionRepository) FindOngoing(context.Context) ([]*models.Transaction, error) {
	return r.find((*models.Transaction).IsOngoing), nil
}

func (r *MemoryTransactionRepository) SearchByKeyword(_ context.Context, keyword string) ([]*models.Transaction, error) {
	return r.find(func(t *models.Transaction) bool { return models.MatchesKeyword(t, keyword) }), nil
}

func (r *MemoryTransactionRepository) FindWithFilters(_ context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	return r.find(filter.Matches), nil
}

func (r *MemoryTransactionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return transactionNotFound(id)
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(existing string) bool { return existing == id })
	return nil
}

type MemoryPaymentRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.Payment
	order []string
}

func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{byID: make(map[string]*models.Payment)}
}

func (r *MemoryPaymentRepository) Save(_ context.Context, p *models.Payment) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := p.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := r.byID[stored.ID]; !exists {
		r.order = append(r.order, stored.ID)
	}
	r.byID[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *MemoryPaymentRepository) FindByID(_ context.Context, id string) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, paymentNotFound(id)
	}
	return p.Clone(), nil
}

func (r *MemoryPaymentRepository) FindByCustomerID(_ context.Context, customerID string) ([]*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*models.Payment{}
	for _, id := range r.order {
		if p := r.byID[id]; p.CustomerID == customerID {
			result = append(result, p.Clone())
		}
	}
	return result, nil
}

func (r *MemoryPaymentRepository) Update(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; !ok {
		return paymentNotFound(p.ID)
	}
	r.byID[p.ID] = p.Clone()
	return nil
}

func (r *MemoryPaymentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return paymentNotFound(id)
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(existing string) bool { return existing == id })
	return nil
}

// MemoryCatalog serializes every stock adjustment behind one lock.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	order    []string
}

func NewMemoryCatalog(products ...*models.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[string]*models.Product)}
	for _, p := range products {
		_ = c.SaveProduct(context.Background(), p)
	}
	return c
}

func (c *MemoryCatalog) GetProduct(_ context.Context, id string) (*models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, productNotFound(id)
	}
	return p.Clone(), nil
}

func (c *MemoryCatalog) AdjustStock(_ context.Context, id string, delta int) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return nil, productNotFound(id)
	}
	if p.Stock+delta < 0 {
		return nil, insufficientStock(p, delta)
	}
	p.Stock += delta
	return p.Clone(), nil
}

func (c *MemoryCatalog) SaveProduct(_ context.Context, p *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.products[p.ID]; !exists {
		c.order = append(c.order, p.ID)
	}
	c.products[p.ID] = p.Clone()
	return nil
}

func (c *MemoryCatalog) ListProducts(context.Context) ([]*models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*models.Product, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.products[id].Clone())
	}
	return result, nil
}
