package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionItemView struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// TransactionView is the flattened projection returned to callers.
type TransactionView struct {
	ID            string                `json:"id"`
	CustomerID    string                `json:"customerId"`
	Items         []TransactionItemView `json:"items"`
	TotalAmount   decimal.Decimal       `json:"totalAmount"`
	PaymentMethod string                `json:"paymentMethod"`
	Status        TransactionStatus     `json:"status"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`

	PaymentID     string           `json:"paymentId,omitempty"`
	PaymentStatus PaymentStatus    `json:"paymentStatus,omitempty"`
	PaidAmount    *decimal.Decimal `json:"paidAmount,omitempty"`
}

// ViewOf projects t without touching it.
func ViewOf(t *Transaction) TransactionView {
	view := TransactionView{
		ID:            t.ID,
		CustomerID:    t.CustomerID,
		Items:         make([]TransactionItemView, 0, len(t.Items)),
		TotalAmount:   t.TotalAmount,
		PaymentMethod: t.PaymentMethod,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	for _, item := range t.Items {
		line := TransactionItemView{
			ProductID: item.ProductID(),
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.Price = item.Product.Price
		}
		view.Items = append(view.Items, line)
	}
	if t.Payment != nil {
		paid := t.Payment.Amount
		view.PaymentID = t.Payment.ID
		view.PaidAmount = &paid
		// The ledger keeps the label it settled with; a cancelled
		// transaction is neither paid off nor in installments.
		if !t.IsCancelled() {
			view.PaymentStatus = t.Payment.Status
		}
	}
	return view
}

func ViewsOf(transactions []*Transaction) []TransactionView {
	views := make([]TransactionView, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, ViewOf(t))
	}
	return views
}

// StockStatus reports a line item against the catalog's current stock.
type StockStatus struct {
	ProductID             string `json:"productId"`
	ProductName           string `json:"productName"`
	QuantityInTransaction int    `json:"quantityInTransaction"`
	CurrentStock          int    `json:"currentStock"`
}

type TransactionDetails struct {
	Transaction TransactionView `json:"transaction"`
	StockStatus []StockStatus   `json:"stockStatus"`
}
