package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"transaction-service/models"
	"transaction-service/workers"
)

// GetTransactionDetails resolves, off the calling goroutine, the current
// catalog stock for every line of the transaction. Lines are looked up
// concurrently and reported in item order.
func (s *TransactionService) GetTransactionDetails(ctx context.Context, id string) *workers.Future[*models.TransactionDetails] {
	return workers.Submit(ctx, s.pool, func(ctx context.Context) (*models.TransactionDetails, error) {
		return s.transactionDetails(ctx, id)
	})
}

func (s *TransactionService) transactionDetails(ctx context.Context, id string) (*models.TransactionDetails, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	stock := make([]models.StockStatus, len(t.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.detailConcurrency)
	for i, item := range t.Items {
		g.Go(func() error {
			product, err := s.catalog.GetProduct(gctx, item.ProductID())
			if err != nil {
				return err
			}
			stock[i] = models.StockStatus{
				ProductID:             product.ID,
				ProductName:           product.Name,
				QuantityInTransaction: item.Quantity,
				CurrentStock:          product.Stock,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.TransactionDetails{
		Transaction: models.ViewOf(t),
		StockStatus: stock,
	}, nil
}
