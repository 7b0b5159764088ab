package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"transaction-service/models"
	"transaction-service/repositories"
	"transaction-service/services"
)

type testServer struct {
	router  *gin.Engine
	catalog *repositories.MemoryCatalog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := repositories.NewMemoryCatalog(
		&models.Product{ID: "p1", Name: "Keyboard", Stock: 10, Price: decimal.NewFromInt(100)},
		&models.Product{ID: "p2", Name: "Mouse", Stock: 5, Price: decimal.NewFromInt(50)},
	)
	payments := repositories.NewMemoryPaymentRepository()
	service := services.NewTransactionService(catalog, repositories.NewMemoryTransactionRepository(), payments)
	t.Cleanup(service.Close)

	logger := zap.NewNop()
	r := gin.New()
	api := r.Group("/api")
	NewTransactionController(service, logger).RegisterRoutes(api)
	NewPaymentController(services.NewPaymentService(payments), logger).RegisterRoutes(api)
	api.POST("/dead-letter", DeadLetterHandler(logger))
	return &testServer{router: r, catalog: catalog}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) create(t *testing.T, path string, quantities map[string]int, amount int) models.TransactionView {
	t.Helper()
	w := s.do(t, http.MethodPost, path, gin.H{
		"customerId":        "C1",
		"paymentMethod":     "CASH",
		"productQuantities": quantities,
		"amount":            amount,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.TransactionView](t, w)
}

func TestCreateAndGetTransaction(t *testing.T) {
	s := newTestServer(t)

	created := s.create(t, "/api/transactions", map[string]int{"p1": 2}, 200)
	assert.Equal(t, models.StatusCompleted, created.Status)
	assert.Equal(t, models.PaymentStatusPaid, created.PaymentStatus)

	w := s.do(t, http.MethodGet, "/api/transactions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.TransactionView](t, w)
	assert.True(t, decimal.NewFromInt(200).Equal(got.TotalAmount))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Keyboard", got.Items[0].ProductName)
}

func TestCreateTransactionValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/transactions", `{"paymentMethod":"CASH"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/transactions", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/transactions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "transaction not found")

	w = s.do(t, http.MethodPost, "/api/transactions", gin.H{
		"customerId":        "C1",
		"productQuantities": map[string]int{"p2": 6},
		"amount":            300,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	done := s.create(t, "/api/transactions", map[string]int{"p1": 1}, 100)
	w = s.do(t, http.MethodPatch, "/api/transactions/"+done.ID+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	open := s.create(t, "/api/transactions", map[string]int{"p1": 1}, 10)
	w = s.do(t, http.MethodPut, "/api/transactions/"+open.ID, gin.H{"amount": 500})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("load: %w", models.NotFoundf("x"))))
	assert.Equal(t, http.StatusConflict, statusFor(errors.Join(models.Conflictf("x"), errors.New("revert"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("db down")))
}

func TestDraftLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	draft := s.create(t, "/api/transactions/drafts", map[string]int{"p1": 1}, 0)
	assert.Equal(t, models.StatusPending, draft.Status)

	w := s.do(t, http.MethodGet, "/api/transactions/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.TransactionView](t, w), 1)

	w = s.do(t, http.MethodPatch, "/api/transactions/"+draft.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusInProgress, decode[models.TransactionView](t, w).Status)

	w = s.do(t, http.MethodGet, "/api/transactions/in-progress", nil)
	assert.Len(t, decode[[]models.TransactionView](t, w), 1)

	w = s.do(t, http.MethodPatch, "/api/transactions/"+draft.ID+"/complete", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPatch, "/api/transactions/"+draft.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCancelled, decode[models.TransactionView](t, w).Status)

	w = s.do(t, http.MethodDelete, "/api/transactions/"+draft.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestInstallmentTopUpOverHTTP(t *testing.T) {
	s := newTestServer(t)
	view := s.create(t, "/api/transactions", map[string]int{"p1": 2}, 100)
	assert.Equal(t, models.PaymentStatusInstallment, view.PaymentStatus)

	w := s.do(t, http.MethodPut, "/api/transactions/"+view.ID, gin.H{"amount": "200"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.TransactionView](t, w)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	w = s.do(t, http.MethodGet, "/api/payments/"+view.PaymentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PaymentStatusPaid, decode[models.Payment](t, w).Status)

	w = s.do(t, http.MethodGet, "/api/payments/customer/C1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Payment](t, w), 1)
}

func TestQueryEndpoints(t *testing.T) {
	s := newTestServer(t)
	done := s.create(t, "/api/transactions", map[string]int{"p1": 2}, 200)
	open := s.create(t, "/api/transactions", map[string]int{"p2": 1}, 10)

	w := s.do(t, http.MethodGet, "/api/transactions", nil)
	assert.Len(t, decode[[]models.TransactionView](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/transactions?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	completed := decode[[]models.TransactionView](t, w)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)

	w = s.do(t, http.MethodGet, "/api/transactions?status=shipped", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/transactions?customerId=C1", nil)
	assert.Len(t, decode[[]models.TransactionView](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/transactions?paymentMethod=CARD", nil)
	assert.Empty(t, decode[[]models.TransactionView](t, w))

	start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w = s.do(t, http.MethodGet, "/api/transactions?startDate="+start+"&endDate="+end, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.TransactionView](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/transactions?startDate="+start, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/transactions/ongoing", nil)
	ongoing := decode[[]models.TransactionView](t, w)
	require.Len(t, ongoing, 1)
	assert.Equal(t, open.ID, ongoing[0].ID)

	w = s.do(t, http.MethodGet, "/api/transactions/search?keyword="+done.ID[:6], nil)
	assert.NotEmpty(t, decode[[]models.TransactionView](t, w))

	w = s.do(t, http.MethodGet, "/api/transactions/filter?status=COMPLETED,IN_PROGRESS&sortBy=totalAmount&sortDirection=desc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	filtered := decode[[]models.TransactionView](t, w)
	require.Len(t, filtered, 2)
	assert.Equal(t, done.ID, filtered[0].ID)

	w = s.do(t, http.MethodGet, "/api/transactions/filter?startDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetailsEndpoint(t *testing.T) {
	s := newTestServer(t)
	view := s.create(t, "/api/transactions", map[string]int{"p1": 2, "p2": 1}, 250)

	w := s.do(t, http.MethodGet, "/api/transactions/"+view.ID+"/details", nil)
	require.Equal(t, http.StatusOK, w.Code)
	details := decode[models.TransactionDetails](t, w)
	assert.Equal(t, view.ID, details.Transaction.ID)
	assert.Equal(t, []models.StockStatus{
		{ProductID: "p1", ProductName: "Keyboard", QuantityInTransaction: 2, CurrentStock: 8},
		{ProductID: "p2", ProductName: "Mouse", QuantityInTransaction: 1, CurrentStock: 4},
	}, details.StockStatus)

	w = s.do(t, http.MethodGet, "/api/transactions/ghost/details", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchEndpoints(t *testing.T) {
	s := newTestServer(t)
	pending := s.create(t, "/api/transactions/drafts", map[string]int{"p1": 1}, 0)
	completed := s.create(t, "/api/transactions", map[string]int{"p1": 1}, 100)

	w := s.do(t, http.MethodPost, "/api/transactions/batch/complete", []string{pending.ID, completed.ID, "ghost"})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[models.BatchResult](t, w)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, []string{completed.ID}, result.Skipped)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "ghost", result.Failures[0].ID)

	w = s.do(t, http.MethodPost, "/api/transactions/batch/cancel", []string{pending.ID, completed.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[models.BatchResult](t, w).Count)

	p1, err := s.catalog.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p1.Stock)

	w = s.do(t, http.MethodPost, "/api/transactions/batch/cancel", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeadLetterEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/dead-letter", gin.H{"transaction_id": "tx-1", "reason": "expired"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/dead-letter", gin.H{"reason": "expired"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
