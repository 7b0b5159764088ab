package services

import (
	"context"
	"slices"
	"strings"

	"transaction-service/models"
)

// FilterTransactions applies every constraint set on filter and sorts the
// result by filter.SortBy, ascending unless SortDirection is "desc".
// Unknown sort keys sort by creation time.
func (s *TransactionService) FilterTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionView, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, models.InvalidArgumentf("end date is before start date")
	}
	found, err := s.transactions.FindWithFilters(ctx, filter)
	if err != nil {
		return nil, err
	}
	result := models.ViewsOf(found)
	sortViews(result, filter.SortBy, filter.SortDirection)
	return result, nil
}

func sortViews(views []models.TransactionView, sortBy, direction string) {
	cmp := comparatorFor(sortBy)
	if strings.EqualFold(direction, models.SortDesc) {
		asc := cmp
		cmp = func(a, b models.TransactionView) int { return asc(b, a) }
	}
	slices.SortStableFunc(views, cmp)
}

func comparatorFor(sortBy string) func(a, b models.TransactionView) int {
	switch strings.ToLower(sortBy) {
	case models.SortByTotalAmount:
		return func(a, b models.TransactionView) int { return a.TotalAmount.Cmp(b.TotalAmount) }
	case models.SortByUpdatedAt:
		return func(a, b models.TransactionView) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case models.SortByStatus:
		return func(a, b models.TransactionView) int { return strings.Compare(string(a.Status), string(b.Status)) }
	default:
		return func(a, b models.TransactionView) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}
