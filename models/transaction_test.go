package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, price int64) *Product {
	return &Product{ID: id, Name: "Product " + id, Stock: 10, Price: decimal.NewFromInt(price)}
}

func newItem(t *testing.T, p *Product, qty int) *TransactionItem {
	t.Helper()
	item, err := NewTransactionItem(p, qty)
	require.NoError(t, err)
	return item
}

func assertTotalIsSumOfSubtotals(t *testing.T, tx *Transaction) {
	t.Helper()
	sum := decimal.Zero
	for _, item := range tx.Items {
		sum = sum.Add(item.Subtotal)
	}
	assert.True(t, tx.TotalAmount.Equal(sum), "total %s != sum of subtotals %s", tx.TotalAmount, sum)
}

func TestNewTransactionItem(t *testing.T) {
	item := newItem(t, product("p1", 100), 3)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "p1", item.ProductID())
	assert.True(t, item.Subtotal.Equal(decimal.NewFromInt(300)))
}

func TestNewTransactionItemWithoutProduct(t *testing.T) {
	_, err := NewTransactionItem(nil, 1)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestUpdateQuantityUsesCurrentPrice(t *testing.T) {
	p := product("p1", 100)
	item := newItem(t, p, 2)

	p.Price = decimal.NewFromInt(150)
	assert.True(t, item.Subtotal.Equal(decimal.NewFromInt(200)), "subtotal must not follow price changes on its own")

	require.NoError(t, item.UpdateQuantity(3))
	assert.Equal(t, 3, item.Quantity)
	assert.True(t, item.Subtotal.Equal(decimal.NewFromInt(450)))
}

func TestUpdateQuantityWithoutProduct(t *testing.T) {
	item := &TransactionItem{ID: "i1", Quantity: 1}
	err := item.UpdateQuantity(2)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestRecomputeSubtotal(t *testing.T) {
	p := product("p1", 10)
	item := newItem(t, p, 4)
	p.Price = decimal.NewFromInt(20)

	item.RecomputeSubtotal()
	item.RecomputeSubtotal()
	assert.True(t, item.Subtotal.Equal(decimal.NewFromInt(80)))

	orphan := &TransactionItem{Quantity: 5, Subtotal: decimal.NewFromInt(99)}
	orphan.RecomputeSubtotal()
	assert.True(t, orphan.Subtotal.IsZero())
}

func TestNewTransaction(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")

	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, StatusPending, tx.Status)
	assert.Empty(t, tx.Items)
	assert.True(t, tx.TotalAmount.IsZero())
	assert.Equal(t, tx.CreatedAt, tx.UpdatedAt)
	assert.Nil(t, tx.Payment)
}

func TestAddItemMergesSameProduct(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	p := product("p1", 100)

	require.NoError(t, tx.AddItem(newItem(t, p, 2)))
	require.NoError(t, tx.AddItem(newItem(t, p, 3)))

	require.Len(t, tx.Items, 1)
	assert.Equal(t, 5, tx.Items[0].Quantity)
	assert.True(t, tx.TotalAmount.Equal(decimal.NewFromInt(500)))
}

func TestAddItemMergePicksUpNewPrice(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	p := product("p1", 100)
	require.NoError(t, tx.AddItem(newItem(t, p, 1)))

	p.Price = decimal.NewFromInt(120)
	require.NoError(t, tx.AddItem(newItem(t, p, 1)))

	assert.True(t, tx.TotalAmount.Equal(decimal.NewFromInt(240)))
}

func TestAddItemKeepsInsertionOrder(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, tx.AddItem(newItem(t, product(id, 1), 1)))
	}

	var ids []string
	for _, item := range tx.Items {
		ids = append(ids, item.ProductID())
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestAddItemRejectsItemWithoutProduct(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	assert.True(t, errors.Is(tx.AddItem(&TransactionItem{Quantity: 1}), ErrInvalidArgument))
	assert.True(t, errors.Is(tx.AddItem(nil), ErrInvalidArgument))
}

func TestRemoveItem(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	require.NoError(t, tx.AddItem(newItem(t, product("p1", 100), 1)))
	require.NoError(t, tx.AddItem(newItem(t, product("p2", 50), 2)))

	tx.RemoveItem("missing")
	assert.Len(t, tx.Items, 2)

	tx.RemoveItem("p1")
	require.Len(t, tx.Items, 1)
	assert.Equal(t, "p2", tx.Items[0].ProductID())
	assert.True(t, tx.TotalAmount.Equal(decimal.NewFromInt(100)))
}

func TestUpdateItemQuantityZeroRemoves(t *testing.T) {
	a := NewTransaction("cust-1", "cash")
	b := NewTransaction("cust-1", "cash")
	for _, tx := range []*Transaction{a, b} {
		require.NoError(t, tx.AddItem(newItem(t, product("p1", 100), 1)))
		require.NoError(t, tx.AddItem(newItem(t, product("p2", 50), 2)))
	}

	require.NoError(t, a.UpdateItemQuantity("p1", 0))
	b.RemoveItem("p1")

	require.Len(t, a.Items, len(b.Items))
	assert.Equal(t, b.Items[0].ProductID(), a.Items[0].ProductID())
	assert.True(t, a.TotalAmount.Equal(b.TotalAmount))
}

func TestUpdateItemQuantityMissingProductIsNoop(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	require.NoError(t, tx.AddItem(newItem(t, product("p1", 100), 1)))

	require.NoError(t, tx.UpdateItemQuantity("p9", 4))
	assert.Equal(t, 1, tx.Items[0].Quantity)
}

func TestTotalInvariantAcrossMutations(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	p1, p2, p3 := product("p1", 100), product("p2", 35), product("p3", 7)

	steps := []func(){
		func() { require.NoError(t, tx.AddItem(newItem(t, p1, 2))) },
		func() { require.NoError(t, tx.AddItem(newItem(t, p2, 1))) },
		func() { require.NoError(t, tx.AddItem(newItem(t, p1, 1))) },
		func() { require.NoError(t, tx.UpdateItemQuantity("p2", 4)) },
		func() { require.NoError(t, tx.AddItem(newItem(t, p3, 9))) },
		func() { tx.RemoveItem("p1") },
		func() { require.NoError(t, tx.UpdateItemQuantity("p3", -1)) },
		func() { tx.RemoveItem("p2") },
	}
	for _, step := range steps {
		step()
		assertTotalIsSumOfSubtotals(t, tx)
	}
	assert.Empty(t, tx.Items)
	assert.True(t, tx.TotalAmount.IsZero())
}

func TestStatusTransitions(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	assert.True(t, tx.MarkInProgress())
	assert.False(t, tx.MarkInProgress())
	assert.False(t, tx.Complete())
	assert.True(t, tx.Cancel())
	assert.False(t, tx.Cancel())
	assert.True(t, tx.IsCancelled())

	other := NewTransaction("cust-1", "cash")
	assert.True(t, other.Complete())
	assert.True(t, other.IsCompleted())
	assert.False(t, other.IsOngoing())
}

func TestSettle(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	require.NoError(t, tx.AddItem(newItem(t, product("p1", 100), 2)))

	tx.Settle(decimal.NewFromInt(150))
	assert.Equal(t, StatusInProgress, tx.Status)

	tx.Settle(decimal.NewFromInt(200))
	assert.Equal(t, StatusCompleted, tx.Status)
}

func TestCloneIsDeep(t *testing.T) {
	tx := NewTransaction("cust-1", "cash")
	require.NoError(t, tx.AddItem(newItem(t, product("p1", 100), 2)))
	tx.Payment = NewPayment("cust-1", decimal.NewFromInt(200), "cash", PaymentStatusPaid)

	c := tx.Clone()
	c.Items[0].Quantity = 99
	c.Items[0].Product.Name = "changed"
	c.Payment.Status = PaymentStatusInstallment

	assert.Equal(t, 2, tx.Items[0].Quantity)
	assert.Equal(t, "Product p1", tx.Items[0].Product.Name)
	assert.Equal(t, PaymentStatusPaid, tx.Payment.Status)
}

func TestParseTransactionStatus(t *testing.T) {
	status, err := ParseTransactionStatus(" in_progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, status)

	_, err = ParseTransactionStatus("shipped")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestViewOfIsPure(t *testing.T) {
	tx := NewTransaction("cust-1", "card")
	require.NoError(t, tx.AddItem(newItem(t, product("p1", 100), 2)))
	tx.Payment = &Payment{ID: "pay-1", Amount: decimal.NewFromInt(50), Status: PaymentStatusInstallment}
	before := tx.Clone()

	first := ViewOf(tx)
	second := ViewOf(tx)

	assert.Equal(t, first, second)
	assert.Equal(t, before, tx)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "Product p1", first.Items[0].ProductName)
	assert.True(t, first.Items[0].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "pay-1", first.PaymentID)
	assert.Equal(t, PaymentStatusInstallment, first.PaymentStatus)
	require.NotNil(t, first.PaidAmount)
	assert.True(t, first.PaidAmount.Equal(decimal.NewFromInt(50)))
}

func TestViewOfCancelledHidesPaymentLabel(t *testing.T) {
	tx := NewTransaction("cust-1", "card")
	require.NoError(t, tx.AddItem(newItem(t, product("p1", 100), 2)))
	tx.Payment = &Payment{ID: "pay-1", Amount: decimal.NewFromInt(200), Status: PaymentStatusPaid}
	tx.Status = StatusCompleted
	require.True(t, tx.Cancel())

	view := ViewOf(tx)

	assert.Empty(t, view.PaymentStatus)
	assert.Equal(t, "pay-1", view.PaymentID)
	require.NotNil(t, view.PaidAmount)
	assert.True(t, view.PaidAmount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, PaymentStatusPaid, tx.Payment.Status)
}
