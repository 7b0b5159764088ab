// Package services implements the transaction lifecycle: creation against
// catalog stock, status transitions, payment settlement, batch operations
// and detail aggregation.
package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"transaction-service/models"
	"transaction-service/repositories"
	"transaction-service/workers"
)

const (
	defaultPoolSize          = 4
	defaultQueueCapacity     = 100
	defaultDetailConcurrency = 8
	defaultPaymentCheckDelay = 15 * time.Minute
)

type TransactionService struct {
	catalog      repositories.CatalogStore
	transactions repositories.TransactionRepository
	payments     repositories.PaymentRepository

	publisher         EventPublisher
	logger            *zap.Logger
	pool              *workers.Pool
	ownsPool          bool
	detailConcurrency int
	paymentCheckDelay time.Duration
}

type Option func(*TransactionService)

func WithPublisher(p EventPublisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *TransactionService) { s.logger = l }
}

// WithPool runs batch and detail work on p. The caller keeps ownership.
func WithPool(p *workers.Pool) Option {
	return func(s *TransactionService) { s.pool = p }
}

// WithDetailConcurrency bounds the per-item lookups of one details request.
func WithDetailConcurrency(n int) Option {
	return func(s *TransactionService) {
		if n > 0 {
			s.detailConcurrency = n
		}
	}
}

func WithPaymentCheckDelay(d time.Duration) Option {
	return func(s *TransactionService) {
		if d > 0 {
			s.paymentCheckDelay = d
		}
	}
}

func NewTransactionService(
	catalog repositories.CatalogStore,
	transactions repositories.TransactionRepository,
	payments repositories.PaymentRepository,
	opts ...Option,
) *TransactionService {
	s := &TransactionService{
		catalog:           catalog,
		transactions:      transactions,
		payments:          payments,
		publisher:         NopPublisher{},
		logger:            zap.NewNop(),
		detailConcurrency: defaultDetailConcurrency,
		paymentCheckDelay: defaultPaymentCheckDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = workers.NewPool(defaultPoolSize, defaultQueueCapacity)
		s.ownsPool = true
	}
	return s
}

// Close releases the worker pool if the service created it.
func (s *TransactionService) Close() {
	if s.ownsPool {
		s.pool.Close()
	}
}

// stockAdjustment is a stock change already applied to the catalog.
type stockAdjustment struct {
	productID string
	delta     int
}

// CreateTransaction reserves stock for every requested product and settles
// the transaction against the amount paid up front. Either every step
// succeeds or every stock change made so far is reverted.
func (s *TransactionService) CreateTransaction(ctx context.Context, req models.TransactionRequest) (models.TransactionView, error) {
	t := models.NewTransaction(req.CustomerID, req.PaymentMethod)
	applied, err := s.reserveItems(ctx, t, req.ProductQuantities)
	if err != nil {
		return models.TransactionView{}, err
	}

	t.Status = models.StatusForPaidAmount(t.TotalAmount, req.Amount)
	payment, err := s.payments.Save(ctx, models.NewPayment(t.CustomerID, req.Amount, t.PaymentMethod, models.PaymentStatusFor(t.Status)))
	if err != nil {
		return models.TransactionView{}, s.rollback(ctx, applied, fmt.Errorf("save payment: %w", err))
	}
	t.Payment = payment

	if err := s.transactions.Save(ctx, t); err != nil {
		if delErr := s.payments.Delete(ctx, payment.ID); delErr != nil {
			s.logger.Error("failed to discard payment of unsaved transaction",
				zap.String("payment_id", payment.ID), zap.Error(delErr))
		}
		return models.TransactionView{}, s.rollback(ctx, applied, fmt.Errorf("save transaction: %w", err))
	}

	s.logger.Info("transaction created",
		zap.String("transaction_id", t.ID),
		zap.String("customer_id", t.CustomerID),
		zap.String("status", string(t.Status)),
		zap.String("total", t.TotalAmount.String()))
	s.publish(ctx, t, models.EventCreated)
	return models.ViewOf(t), nil
}

// CreateDraftTransaction reserves stock like CreateTransaction but records
// no payment and leaves the transaction PENDING until it is confirmed,
// completed or cancelled. A payment check is scheduled for it.
func (s *TransactionService) CreateDraftTransaction(ctx context.Context, req models.TransactionRequest) (models.TransactionView, error) {
	t := models.NewTransaction(req.CustomerID, req.PaymentMethod)
	applied, err := s.reserveItems(ctx, t, req.ProductQuantities)
	if err != nil {
		return models.TransactionView{}, err
	}
	if err := s.transactions.Save(ctx, t); err != nil {
		return models.TransactionView{}, s.rollback(ctx, applied, fmt.Errorf("save transaction: %w", err))
	}

	s.logger.Info("draft transaction created",
		zap.String("transaction_id", t.ID),
		zap.String("customer_id", t.CustomerID))
	s.publish(ctx, t, models.EventDraftCreated)
	check := models.NewTransactionEvent(t, models.EventPaymentCheck)
	if err := s.publisher.PublishDelayed(ctx, check, s.paymentCheckDelay); err != nil {
		s.logger.Error("failed to schedule payment check",
			zap.String("transaction_id", t.ID), zap.Error(err))
	}
	return models.ViewOf(t), nil
}

// reserveItems adds one line per positive quantity, in product id order,
// and takes the stock for it. On failure it reverts what it took.
func (s *TransactionService) reserveItems(ctx context.Context, t *models.Transaction, quantities map[string]int) ([]stockAdjustment, error) {
	var applied []stockAdjustment
	for _, productID := range slices.Sorted(maps.Keys(quantities)) {
		qty := quantities[productID]
		if qty <= 0 {
			continue
		}

		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, s.rollback(ctx, applied, err)
		}
		if product.Stock < qty {
			return nil, s.rollback(ctx, applied, models.Conflictf("not enough stock for product: %s", product.Name))
		}

		item, err := models.NewTransactionItem(product, qty)
		if err != nil {
			return nil, s.rollback(ctx, applied, err)
		}
		// Stock may have moved since the check; the catalog has the final say.
		if _, err := s.catalog.AdjustStock(ctx, productID, -qty); err != nil {
			return nil, s.rollback(ctx, applied, err)
		}
		applied = append(applied, stockAdjustment{productID: productID, delta: -qty})
		if err := t.AddItem(item); err != nil {
			return nil, s.rollback(ctx, applied, err)
		}
	}
	t.CalculateTotalAmount()
	return applied, nil
}

// rollback reverts applied in reverse order and returns cause joined with
// any revert failure.
func (s *TransactionService) rollback(ctx context.Context, applied []stockAdjustment, cause error) error {
	errs := []error{cause}
	for _, adj := range slices.Backward(applied) {
		if _, err := s.catalog.AdjustStock(ctx, adj.productID, -adj.delta); err != nil {
			s.logger.Error("failed to revert stock",
				zap.String("product_id", adj.productID),
				zap.Int("delta", -adj.delta),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("revert stock for product %s: %w", adj.productID, err))
		}
	}
	return errors.Join(errs...)
}

// restoreStock returns every item's quantity to the catalog and reports
// what it gave back. Products that have since left the catalog are
// skipped. On failure the lines already returned are taken again.
func (s *TransactionService) restoreStock(ctx context.Context, t *models.Transaction) ([]stockAdjustment, error) {
	var applied []stockAdjustment
	for _, item := range t.Items {
		productID := item.ProductID()
		_, err := s.catalog.AdjustStock(ctx, productID, item.Quantity)
		switch {
		case err == nil:
			applied = append(applied, stockAdjustment{productID: productID, delta: item.Quantity})
		case errors.Is(err, models.ErrNotFound):
			s.logger.Warn("product no longer in catalog, stock not restored",
				zap.String("transaction_id", t.ID),
				zap.String("product_id", productID),
				zap.Int("quantity", item.Quantity))
		default:
			return nil, s.rollback(ctx, applied, fmt.Errorf("restore stock for product %s: %w", productID, err))
		}
	}
	return applied, nil
}

// statusMark is the status a transaction was loaded with.
type statusMark struct {
	status    models.TransactionStatus
	updatedAt time.Time
}

func markOf(t *models.Transaction) statusMark {
	return statusMark{status: t.Status, updatedAt: t.UpdatedAt}
}

// claim stores the status t was moved to, provided the stored record still
// holds the loaded one. When another writer got there first it fails with
// models.ErrConflict and t is put back as loaded.
func (s *TransactionService) claim(ctx context.Context, t *models.Transaction, loaded statusMark) error {
	if err := s.transactions.UpdateStatus(ctx, t.ID, loaded.status, t.Status, t.UpdatedAt); err != nil {
		t.Status, t.UpdatedAt = loaded.status, loaded.updatedAt
		return err
	}
	return nil
}

// release undoes a claim after the work that followed it failed.
func (s *TransactionService) release(ctx context.Context, t *models.Transaction, loaded statusMark, cause error) error {
	claimed := t.Status
	t.Status, t.UpdatedAt = loaded.status, loaded.updatedAt
	if err := s.transactions.UpdateStatus(ctx, t.ID, claimed, loaded.status, loaded.updatedAt); err != nil {
		s.logger.Error("failed to revert transaction status",
			zap.String("transaction_id", t.ID),
			zap.String("status", string(loaded.status)),
			zap.Error(err))
		return errors.Join(cause, fmt.Errorf("revert transaction %s status: %w", t.ID, err))
	}
	return cause
}

func (s *TransactionService) load(ctx context.Context, id string) (*models.Transaction, error) {
	return s.transactions.FindByID(ctx, id)
}

func (s *TransactionService) publish(ctx context.Context, t *models.Transaction, eventType models.EventType) {
	if err := s.publisher.Publish(ctx, models.NewTransactionEvent(t, eventType)); err != nil {
		s.logger.Error("failed to publish transaction event",
			zap.String("transaction_id", t.ID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

// ConfirmTransaction moves a PENDING transaction to IN_PROGRESS after
// checking the catalog still holds enough stock for every line. Stock is
// not taken again.
func (s *TransactionService) ConfirmTransaction(ctx context.Context, id string) (models.TransactionView, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return models.TransactionView{}, err
	}
	if !t.IsPending() {
		return models.TransactionView{}, models.IllegalStatef("only pending transactions can be confirmed")
	}

	for _, item := range t.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID())
		if err != nil {
			return models.TransactionView{}, err
		}
		if product.Stock < item.Quantity {
			return models.TransactionView{}, models.Conflictf("not enough stock for product: %s", product.Name)
		}
	}

	loaded := markOf(t)
	t.MarkInProgress()
	if err := s.claim(ctx, t, loaded); err != nil {
		return models.TransactionView{}, err
	}
	previous, err := s.syncPayment(ctx, t)
	if err != nil {
		return models.TransactionView{}, s.release(ctx, t, loaded, err)
	}
	if err := s.commit(ctx, t, loaded, previous); err != nil {
		return models.TransactionView{}, err
	}
	s.publish(ctx, t, models.EventConfirmed)
	return models.ViewOf(t), nil
}

func (s *TransactionService) CompleteTransaction(ctx context.Context, id string) (models.TransactionView, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return models.TransactionView{}, err
	}
	if !t.IsPending() {
		return models.TransactionView{}, models.IllegalStatef("cannot complete transaction with status: %s", t.Status)
	}
	if err := s.completeLoaded(ctx, t); err != nil {
		return models.TransactionView{}, err
	}
	return models.ViewOf(t), nil
}

func (s *TransactionService) completeLoaded(ctx context.Context, t *models.Transaction) error {
	loaded := markOf(t)
	t.Complete()
	if err := s.claim(ctx, t, loaded); err != nil {
		return err
	}
	previous, err := s.syncPayment(ctx, t)
	if err != nil {
		return s.release(ctx, t, loaded, err)
	}
	if err := s.commit(ctx, t, loaded, previous); err != nil {
		return err
	}
	s.publish(ctx, t, models.EventCompleted)
	return nil
}

// syncPayment keeps the payment label in step with the transaction status.
// It returns the payment as it was before a change, or nil if none was made.
func (s *TransactionService) syncPayment(ctx context.Context, t *models.Transaction) (*models.Payment, error) {
	if t.Payment == nil {
		return nil, nil
	}
	label := models.PaymentStatusFor(t.Status)
	if label == "" || label == t.Payment.Status {
		return nil, nil
	}
	previous := t.Payment.Clone()
	t.Payment.Status = label
	if err := s.payments.Update(ctx, t.Payment); err != nil {
		t.Payment = previous
		return nil, fmt.Errorf("update payment: %w", err)
	}
	return previous, nil
}

// commit stores t after a claim. If that fails the payment is put back to
// previous and the claim is released.
func (s *TransactionService) commit(ctx context.Context, t *models.Transaction, loaded statusMark, previous *models.Payment) error {
	if err := s.transactions.Save(ctx, t); err != nil {
		err = fmt.Errorf("save transaction: %w", err)
		if previous != nil {
			err = s.revertPayment(ctx, previous, err)
			t.Payment = previous
		}
		return s.release(ctx, t, loaded, err)
	}
	return nil
}

// CancelTransaction returns every item's stock to the catalog. Completed
// and already cancelled transactions are rejected.
func (s *TransactionService) CancelTransaction(ctx context.Context, id string) (models.TransactionView, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return models.TransactionView{}, err
	}
	switch {
	case t.IsCancelled():
		return models.TransactionView{}, models.IllegalStatef("transaction is already cancelled")
	case t.IsCompleted():
		return models.TransactionView{}, models.IllegalStatef("transaction is already completed")
	}
	if err := s.cancelLoaded(ctx, t); err != nil {
		return models.TransactionView{}, err
	}
	return models.ViewOf(t), nil
}

// cancelLoaded claims the CANCELLED status before touching stock, so a
// concurrent cancel of the same transaction cannot return it twice.
func (s *TransactionService) cancelLoaded(ctx context.Context, t *models.Transaction) error {
	loaded := markOf(t)
	t.Cancel()
	if err := s.claim(ctx, t, loaded); err != nil {
		return err
	}
	if _, err := s.restoreStock(ctx, t); err != nil {
		return s.release(ctx, t, loaded, err)
	}
	s.logger.Info("transaction cancelled", zap.String("transaction_id", t.ID))
	s.publish(ctx, t, models.EventCancelled)
	return nil
}

// DeleteTransaction removes the transaction and its payment, returning
// stock first unless the transaction was already cancelled.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) error {
	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if t.IsCancelled() {
		if err := s.transactions.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
	} else {
		loaded := markOf(t)
		t.Cancel()
		if err := s.claim(ctx, t, loaded); err != nil {
			return err
		}
		applied, err := s.restoreStock(ctx, t)
		if err != nil {
			return s.release(ctx, t, loaded, err)
		}
		// A concurrent delete of the cancelled record leaves nothing to undo.
		if err := s.transactions.Delete(ctx, id); err != nil && !errors.Is(err, models.ErrNotFound) {
			return s.release(ctx, t, loaded, s.rollback(ctx, applied, fmt.Errorf("delete transaction: %w", err)))
		}
	}

	if t.Payment != nil {
		if err := s.payments.Delete(ctx, t.Payment.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to delete payment",
				zap.String("transaction_id", t.ID),
				zap.String("payment_id", t.Payment.ID),
				zap.Error(err))
		}
	}
	s.logger.Info("transaction deleted", zap.String("transaction_id", id))
	s.publish(ctx, t, models.EventDeleted)
	return nil
}

// UpdateTransaction edits an ongoing transaction. A new amount tops up an
// installment payment and settles the transaction against its total. If
// the transaction cannot be stored the payment is put back as it was.
func (s *TransactionService) UpdateTransaction(ctx context.Context, id string, update models.TransactionUpdate) (models.TransactionView, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return models.TransactionView{}, err
	}
	if !t.IsOngoing() {
		return models.TransactionView{}, models.IllegalStatef("cannot update transaction with status: %s", t.Status)
	}
	loaded := markOf(t)

	if update.CustomerID != nil {
		t.CustomerID = *update.CustomerID
	}
	if update.PaymentMethod != nil {
		t.PaymentMethod = *update.PaymentMethod
	}

	var previous *models.Payment
	if update.Amount != nil {
		amount := *update.Amount
		switch {
		case t.Payment == nil:
			return models.TransactionView{}, models.IllegalStatef("transaction %s has no payment to update", t.ID)
		case !t.Payment.IsInstallment():
			return models.TransactionView{}, models.IllegalStatef("cannot update payment amount for non-installment transactions")
		case amount.IsNegative():
			return models.TransactionView{}, models.InvalidArgumentf("payment amount cannot be negative")
		case amount.GreaterThan(t.TotalAmount):
			return models.TransactionView{}, models.InvalidArgumentf("payment amount cannot exceed total amount")
		}

		previous = t.Payment.Clone()
		t.Payment.Amount = amount
		t.Settle(amount)
		t.Payment.Status = models.PaymentStatusFor(t.Status)
	}
	t.Touch()

	if err := s.claim(ctx, t, loaded); err != nil {
		return models.TransactionView{}, err
	}
	if previous != nil {
		if err := s.payments.Update(ctx, t.Payment); err != nil {
			return models.TransactionView{}, s.release(ctx, t, loaded, fmt.Errorf("update payment: %w", err))
		}
	}
	if err := s.commit(ctx, t, loaded, previous); err != nil {
		return models.TransactionView{}, err
	}
	s.publish(ctx, t, models.EventUpdated)
	return models.ViewOf(t), nil
}

func (s *TransactionService) revertPayment(ctx context.Context, previous *models.Payment, cause error) error {
	if err := s.payments.Update(ctx, previous); err != nil {
		s.logger.Error("failed to revert payment",
			zap.String("payment_id", previous.ID),
			zap.Error(err))
		return errors.Join(cause, fmt.Errorf("revert payment %s: %w", previous.ID, err))
	}
	return cause
}

func (s *TransactionService) GetTransactionByID(ctx context.Context, id string) (models.TransactionView, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return models.TransactionView{}, err
	}
	return models.ViewOf(t), nil
}

func views(ts []*models.Transaction, err error) ([]models.TransactionView, error) {
	if err != nil {
		return nil, err
	}
	return models.ViewsOf(ts), nil
}

func (s *TransactionService) GetAllTransactions(ctx context.Context) ([]models.TransactionView, error) {
	return views(s.transactions.FindAll(ctx))
}

func (s *TransactionService) GetTransactionsByCustomerID(ctx context.Context, customerID string) ([]models.TransactionView, error) {
	return views(s.transactions.FindByCustomerID(ctx, customerID))
}

func (s *TransactionService) GetTransactionsByStatus(ctx context.Context, status models.TransactionStatus) ([]models.TransactionView, error) {
	return views(s.transactions.FindByStatus(ctx, status))
}

func (s *TransactionService) GetTransactionsByPaymentMethod(ctx context.Context, method string) ([]models.TransactionView, error) {
	return views(s.transactions.FindByPaymentMethod(ctx, method))
}

// GetTransactionsByDateRange matches CreatedAt inclusively on both ends.
func (s *TransactionService) GetTransactionsByDateRange(ctx context.Context, start, end time.Time) ([]models.TransactionView, error) {
	if end.Before(start) {
		return nil, models.InvalidArgumentf("end date %s is before start date %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return views(s.transactions.FindByDateRange(ctx, start, end))
}

// SearchTransactions matches keyword case-sensitively against the id and
// the customer id. An empty keyword returns everything.
func (s *TransactionService) SearchTransactions(ctx context.Context, keyword string) ([]models.TransactionView, error) {
	if keyword == "" {
		return s.GetAllTransactions(ctx)
	}
	return views(s.transactions.SearchByKeyword(ctx, keyword))
}

func (s *TransactionService) GetOngoingTransactions(ctx context.Context) ([]models.TransactionView, error) {
	return views(s.transactions.FindOngoing(ctx))
}
