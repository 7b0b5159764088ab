package services

import (
	"context"

	"transaction-service/models"
	"transaction-service/repositories"
)

// PaymentService is the read side of the payment ledger. Payments change
// only through the transaction they belong to.
type PaymentService struct {
	payments repositories.PaymentRepository
}

func NewPaymentService(payments repositories.PaymentRepository) *PaymentService {
	return &PaymentService{payments: payments}
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.payments.FindByID(ctx, id)
}

// GetPaymentsByCustomerID is the customer's payment history, oldest first.
func (s *PaymentService) GetPaymentsByCustomerID(ctx context.Context, customerID string) ([]*models.Payment, error) {
	return s.payments.FindByCustomerID(ctx, customerID)
}
