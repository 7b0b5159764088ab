package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"transaction-service/models"
	"transaction-service/workers"
)

// batchStep transitions one loaded transaction. It reports false when the
// transaction is not eligible.
type batchStep func(ctx context.Context, t *models.Transaction) (bool, error)

// BatchCompleteTransactions completes every PENDING transaction among ids.
// Other ids are skipped or recorded as failures; the batch never aborts.
func (s *TransactionService) BatchCompleteTransactions(ctx context.Context, ids []string) models.BatchResult {
	return s.runBatch(ctx, "complete", ids, func(ctx context.Context, t *models.Transaction) (bool, error) {
		if !t.IsPending() {
			return false, nil
		}
		return true, s.completeLoaded(ctx, t)
	})
}

// BatchCancelTransactions cancels every transaction among ids that is not
// already cancelled, returning its stock.
func (s *TransactionService) BatchCancelTransactions(ctx context.Context, ids []string) models.BatchResult {
	return s.runBatch(ctx, "cancel", ids, func(ctx context.Context, t *models.Transaction) (bool, error) {
		if t.IsCancelled() {
			return false, nil
		}
		return true, s.cancelLoaded(ctx, t)
	})
}

func (s *TransactionService) BatchCompleteTransactionsAsync(ctx context.Context, ids []string) *workers.Future[models.BatchResult] {
	return workers.Submit(ctx, s.pool, func(ctx context.Context) (models.BatchResult, error) {
		return s.BatchCompleteTransactions(ctx, ids), nil
	})
}

func (s *TransactionService) BatchCancelTransactionsAsync(ctx context.Context, ids []string) *workers.Future[models.BatchResult] {
	return workers.Submit(ctx, s.pool, func(ctx context.Context) (models.BatchResult, error) {
		return s.BatchCancelTransactions(ctx, ids), nil
	})
}

func (s *TransactionService) runBatch(ctx context.Context, op string, ids []string, step batchStep) models.BatchResult {
	result := models.BatchResult{
		Requested: len(ids),
		Skipped:   []string{},
		Failures:  []models.BatchFailure{},
	}
	for _, id := range ids {
		done, err := s.batchOne(ctx, id, step)
		switch {
		case err != nil:
			s.logger.Warn("batch item failed",
				zap.String("operation", op),
				zap.String("transaction_id", id),
				zap.Error(err))
			result.Failures = append(result.Failures, models.BatchFailure{ID: id, Error: err.Error(), Err: err})
		case done:
			result.Count++
		default:
			result.Skipped = append(result.Skipped, id)
		}
	}
	s.logger.Info("batch finished",
		zap.String("operation", op),
		zap.Int("requested", result.Requested),
		zap.Int("count", result.Count),
		zap.Int("failed", len(result.Failures)))
	return result
}

func (s *TransactionService) batchOne(ctx context.Context, id string, step batchStep) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			done, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	t, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	return step(ctx, t)
}
