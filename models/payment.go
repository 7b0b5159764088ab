package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement label carried by a Payment.
type PaymentStatus string

const (
	// PaymentStatusPaid means the amount paid equals the transaction total.
	PaymentStatusPaid PaymentStatus = "LUNAS"
	// PaymentStatusInstallment means part of the total is still owed.
	PaymentStatusInstallment PaymentStatus = "CICILAN"
)

// Payment records what a customer has paid toward a single transaction.
// ID stays empty until the payment ledger persists it.
type Payment struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customerId"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Status     PaymentStatus   `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func NewPayment(customerID string, amount decimal.Decimal, method string, status PaymentStatus) *Payment {
	return &Payment{
		CustomerID: customerID,
		Amount:     amount,
		Method:     method,
		Status:     status,
		CreatedAt:  now(),
	}
}

func (p *Payment) IsInstallment() bool {
	return p.Status == PaymentStatusInstallment
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// PaymentStatusFor is the single mapping between a transaction status and
// the payment label that must accompany it. Statuses with no payment
// meaning map to the empty label.
func PaymentStatusFor(status TransactionStatus) PaymentStatus {
	switch status {
	case StatusCompleted:
		return PaymentStatusPaid
	case StatusInProgress:
		return PaymentStatusInstallment
	default:
		return ""
	}
}

// StatusForPaidAmount settles a transaction: paying exactly the total
// completes it, any other amount leaves it in progress.
func StatusForPaidAmount(total, paid decimal.Decimal) TransactionStatus {
	if total.Equal(paid) {
		return StatusCompleted
	}
	return StatusInProgress
}
