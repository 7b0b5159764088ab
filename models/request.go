package models

import "github.com/shopspring/decimal"

// TransactionRequest creates a transaction from product quantities.
// Amount is ignored for drafts.
type TransactionRequest struct {
	CustomerID        string          `json:"customerId"`
	PaymentMethod     string          `json:"paymentMethod"`
	ProductQuantities map[string]int  `json:"productQuantities"`
	Amount            decimal.Decimal `json:"amount"`
}

// TransactionUpdate is a partial edit; nil fields are left unchanged.
type TransactionUpdate struct {
	CustomerID    *string          `json:"customerId,omitempty"`
	PaymentMethod *string          `json:"paymentMethod,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}
