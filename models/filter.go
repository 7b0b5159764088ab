package models

import (
	"slices"
	"strings"
	"time"
)

const (
	SortByTotalAmount = "totalamount"
	SortByUpdatedAt   = "updatedat"
	SortByStatus      = "status"
	SortByCreatedAt   = "createdat"

	SortDesc = "desc"
)

// TransactionFilter constrains a listing. Zero-valued fields do not
// constrain; the date range is inclusive on both ends.
type TransactionFilter struct {
	CustomerID     string
	Statuses       []TransactionStatus
	PaymentMethods []string
	StartDate      *time.Time
	EndDate        *time.Time
	SortBy         string
	SortDirection  string
}

func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.CustomerID != "" && t.CustomerID != f.CustomerID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.PaymentMethods) > 0 && !slices.Contains(f.PaymentMethods, t.PaymentMethod) {
		return false
	}
	return InDateRange(t, f.StartDate, f.EndDate)
}

// InDateRange checks CreatedAt against optional inclusive bounds.
func InDateRange(t *Transaction, start, end *time.Time) bool {
	if start != nil && t.CreatedAt.Before(*start) {
		return false
	}
	if end != nil && t.CreatedAt.After(*end) {
		return false
	}
	return true
}

// MatchesKeyword is a case-sensitive substring match on id or customer id.
func MatchesKeyword(t *Transaction, keyword string) bool {
	return strings.Contains(t.ID, keyword) || strings.Contains(t.CustomerID, keyword)
}
