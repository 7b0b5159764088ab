package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"transaction-service/models"
	"transaction-service/repositories"
)

type recordingPublisher struct {
	mu      sync.Mutex
	events  []models.TransactionEvent
	delayed []models.TransactionEvent
	delays  []time.Duration
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, e models.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) PublishDelayed(_ context.Context, e models.TransactionEvent, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delayed = append(p.delayed, e)
	p.delays = append(p.delays, d)
	return p.err
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// flakyCatalog fails AdjustStock for one product after passing validation,
// the way a concurrent writer would.
type flakyCatalog struct {
	*repositories.MemoryCatalog
	failProduct string
	// failRestore makes increments for this product fail outright.
	failRestore string
}

func (c *flakyCatalog) AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	if id == c.failProduct && delta < 0 {
		return nil, models.Conflictf("not enough stock for product: %s", id)
	}
	if id == c.failRestore && delta > 0 {
		return nil, errors.New("catalog unavailable")
	}
	return c.MemoryCatalog.AdjustStock(ctx, id, delta)
}

type failingTransactions struct {
	*repositories.MemoryTransactionRepository
}

func (failingTransactions) Save(context.Context, *models.Transaction) error {
	return errors.New("connection reset")
}

// faultyTransactions fails Save or Delete while the matching flag is set.
type faultyTransactions struct {
	*repositories.MemoryTransactionRepository
	failSave   bool
	failDelete bool
}

func (r *faultyTransactions) Save(ctx context.Context, t *models.Transaction) error {
	if r.failSave {
		return errors.New("connection reset")
	}
	return r.MemoryTransactionRepository.Save(ctx, t)
}

func (r *faultyTransactions) Delete(ctx context.Context, id string) error {
	if r.failDelete {
		return errors.New("connection reset")
	}
	return r.MemoryTransactionRepository.Delete(ctx, id)
}

type fixture struct {
	catalog      *repositories.MemoryCatalog
	transactions *repositories.MemoryTransactionRepository
	payments     *repositories.MemoryPaymentRepository
	publisher    *recordingPublisher
	service      *TransactionService

	// Switches for failure injection; both pass through when unset.
	flaky  *flakyCatalog
	faults *faultyTransactions
}

func newFixture(t *testing.T, products ...*models.Product) *fixture {
	t.Helper()
	if len(products) == 0 {
		products = []*models.Product{
			{ID: "p1", Name: "Keyboard", Stock: 10, Price: decimal.NewFromInt(100)},
			{ID: "p2", Name: "Mouse", Stock: 5, Price: decimal.NewFromInt(50)},
		}
	}
	f := &fixture{
		catalog:      repositories.NewMemoryCatalog(products...),
		transactions: repositories.NewMemoryTransactionRepository(),
		payments:     repositories.NewMemoryPaymentRepository(),
		publisher:    &recordingPublisher{},
	}
	f.flaky = &flakyCatalog{MemoryCatalog: f.catalog}
	f.faults = &faultyTransactions{MemoryTransactionRepository: f.transactions}
	f.service = NewTransactionService(f.flaky, f.faults, f.payments, WithPublisher(f.publisher))
	t.Cleanup(f.service.Close)
	return f
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) create(t *testing.T, quantities map[string]int, amount int64) models.TransactionView {
	t.Helper()
	view, err := f.service.CreateTransaction(context.Background(), models.TransactionRequest{
		CustomerID:        "C1",
		PaymentMethod:     "CASH",
		ProductQuantities: quantities,
		Amount:            decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) draft(t *testing.T, quantities map[string]int) models.TransactionView {
	t.Helper()
	view, err := f.service.CreateDraftTransaction(context.Background(), models.TransactionRequest{
		CustomerID:        "C1",
		PaymentMethod:     "CASH",
		ProductQuantities: quantities,
	})
	require.NoError(t, err)
	return view
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
