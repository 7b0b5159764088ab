package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusInProgress TransactionStatus = "IN_PROGRESS"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusCancelled  TransactionStatus = "CANCELLED"
)

// ParseTransactionStatus accepts a status name in any case.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch status := TransactionStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return status, nil
	default:
		return "", InvalidArgumentf("unknown transaction status: %q", s)
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// TransactionItem is a quantity of one catalog product. Subtotal is only
// as fresh as the last call that recomputed it.
type TransactionItem struct {
	ID       string          `json:"id"`
	Product  *Product        `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func NewTransactionItem(product *Product, quantity int) (*TransactionItem, error) {
	if product == nil {
		return nil, InvalidArgumentf("transaction item requires a product")
	}
	return &TransactionItem{
		ID:       uuid.NewString(),
		Product:  product,
		Quantity: quantity,
		Subtotal: product.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

func (i *TransactionItem) ProductID() string {
	if i.Product == nil {
		return ""
	}
	return i.Product.ID
}

// UpdateQuantity sets the quantity and prices it at the product's current price.
func (i *TransactionItem) UpdateQuantity(quantity int) error {
	if i.Product == nil {
		return InvalidArgumentf("transaction item %s has no product", i.ID)
	}
	i.Quantity = quantity
	i.Subtotal = i.Product.Price.Mul(decimal.NewFromInt(int64(quantity)))
	return nil
}

// RecomputeSubtotal is the lenient form of UpdateQuantity: an item without
// a product is worth zero instead of failing.
func (i *TransactionItem) RecomputeSubtotal() {
	if i.Product == nil {
		i.Subtotal = decimal.Zero
		return
	}
	i.Subtotal = i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i *TransactionItem) Clone() *TransactionItem {
	if i == nil {
		return nil
	}
	c := *i
	c.Product = i.Product.Clone()
	return &c
}

// Transaction is the order aggregate. It owns its items and its payment.
type Transaction struct {
	ID            string             `json:"id"`
	CustomerID    string             `json:"customerId"`
	Items         []*TransactionItem `json:"items"`
	TotalAmount   decimal.Decimal    `json:"totalAmount"`
	PaymentMethod string             `json:"paymentMethod"`
	Status        TransactionStatus  `json:"status"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	Payment       *Payment           `json:"payment,omitempty"`
}

func NewTransaction(customerID, paymentMethod string) *Transaction {
	ts := now()
	return &Transaction{
		ID:            uuid.NewString(),
		CustomerID:    customerID,
		Items:         []*TransactionItem{},
		TotalAmount:   decimal.Zero,
		PaymentMethod: paymentMethod,
		Status:        StatusPending,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
}

func (t *Transaction) IsPending() bool    { return t.Status == StatusPending }
func (t *Transaction) IsInProgress() bool { return t.Status == StatusInProgress }
func (t *Transaction) IsCompleted() bool  { return t.Status == StatusCompleted }
func (t *Transaction) IsCancelled() bool  { return t.Status == StatusCancelled }

// IsOngoing reports whether the transaction can still be edited.
func (t *Transaction) IsOngoing() bool {
	return t.IsPending() || t.IsInProgress()
}

func (t *Transaction) item(productID string) *TransactionItem {
	for _, item := range t.Items {
		if item.ProductID() == productID {
			return item
		}
	}
	return nil
}

// AddItem merges into the existing line for the same product, summing
// quantities, or appends a new line.
func (t *Transaction) AddItem(item *TransactionItem) error {
	if item == nil || item.Product == nil {
		return InvalidArgumentf("transaction item requires a product")
	}
	defer t.CalculateTotalAmount()

	if existing := t.item(item.ProductID()); existing != nil {
		return existing.UpdateQuantity(existing.Quantity + item.Quantity)
	}
	t.Items = append(t.Items, item)
	return nil
}

// RemoveItem drops the line for productID, if any.
func (t *Transaction) RemoveItem(productID string) {
	kept := t.Items[:0]
	for _, item := range t.Items {
		if item.ProductID() != productID {
			kept = append(kept, item)
		}
	}
	for i := len(kept); i < len(t.Items); i++ {
		t.Items[i] = nil
	}
	t.Items = kept
	t.CalculateTotalAmount()
}

// UpdateItemQuantity removes the line when quantity <= 0.
func (t *Transaction) UpdateItemQuantity(productID string, quantity int) error {
	existing := t.item(productID)
	if existing == nil {
		return nil
	}
	if quantity <= 0 {
		t.RemoveItem(productID)
		return nil
	}
	defer t.CalculateTotalAmount()
	return existing.UpdateQuantity(quantity)
}

func (t *Transaction) CalculateTotalAmount() {
	total := decimal.Zero
	for _, item := range t.Items {
		total = total.Add(item.Subtotal)
	}
	t.TotalAmount = total
}

func (t *Transaction) Touch() {
	t.UpdatedAt = now()
}

// Complete moves a pending transaction to COMPLETED and reports whether it did.
func (t *Transaction) Complete() bool {
	if !t.IsPending() {
		return false
	}
	t.Status = StatusCompleted
	t.Touch()
	return true
}

// MarkInProgress moves a pending transaction to IN_PROGRESS and reports whether it did.
func (t *Transaction) MarkInProgress() bool {
	if !t.IsPending() {
		return false
	}
	t.Status = StatusInProgress
	t.Touch()
	return true
}

// Cancel moves any non-cancelled transaction to CANCELLED and reports whether it did.
func (t *Transaction) Cancel() bool {
	if t.IsCancelled() {
		return false
	}
	t.Status = StatusCancelled
	t.Touch()
	return true
}

// Settle derives the status from the amount paid against the current total.
func (t *Transaction) Settle(paid decimal.Decimal) {
	t.Status = StatusForPaidAmount(t.TotalAmount, paid)
	t.Touch()
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	c.Items = make([]*TransactionItem, len(t.Items))
	for i, item := range t.Items {
		c.Items[i] = item.Clone()
	}
	c.Payment = t.Payment.Clone()
	return &c
}
