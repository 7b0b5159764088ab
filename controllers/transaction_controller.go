package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transaction-service/middlewares"
	"transaction-service/models"
	"transaction-service/services"
)

type TransactionController struct {
	service *services.TransactionService
	logger  *zap.Logger
}

func NewTransactionController(service *services.TransactionService, logger *zap.Logger) *TransactionController {
	return &TransactionController{service: service, logger: logger}
}

func (tc *TransactionController) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/transactions")
	g.POST("", tc.CreateTransaction)
	g.POST("/drafts", tc.CreateDraftTransaction)
	g.GET("", tc.ListTransactions)
	g.GET("/search", tc.SearchTransactions)
	g.GET("/ongoing", tc.GetOngoingTransactions)
	g.GET("/pending", tc.statusShortcut(models.StatusPending))
	g.GET("/in-progress", tc.statusShortcut(models.StatusInProgress))
	g.GET("/filter", tc.FilterTransactions)
	g.POST("/batch/complete", tc.BatchComplete)
	g.POST("/batch/cancel", tc.BatchCancel)
	g.GET("/:id", tc.GetTransaction)
	g.PUT("/:id", tc.UpdateTransaction)
	g.DELETE("/:id", tc.DeleteTransaction)
	g.PATCH("/:id/confirm", tc.ConfirmTransaction)
	g.PATCH("/:id/complete", tc.CompleteTransaction)
	g.PATCH("/:id/cancel", tc.CancelTransaction)
	g.GET("/:id/details", tc.GetTransactionDetails)
}

func record(c *gin.Context, operation string) {
	middlewares.RecordTransactionOperation(operation, c.Writer.Status())
}

type createTransactionRequest struct {
	CustomerID        string          `json:"customerId" binding:"required"`
	PaymentMethod     string          `json:"paymentMethod"`
	ProductQuantities map[string]int  `json:"productQuantities" binding:"required"`
	Amount            decimal.Decimal `json:"amount"`
}

func (r createTransactionRequest) toModel() models.TransactionRequest {
	return models.TransactionRequest{
		CustomerID:        r.CustomerID,
		PaymentMethod:     r.PaymentMethod,
		ProductQuantities: r.ProductQuantities,
		Amount:            r.Amount,
	}
}

func (tc *TransactionController) CreateTransaction(c *gin.Context) {
	defer record(c, "create")

	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := tc.service.CreateTransaction(c.Request.Context(), req.toModel())
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	middlewares.RecordTransition("create", view.Status)
	middlewares.RecordTransactionTotal(view.Status, view.TotalAmount)
	c.JSON(http.StatusCreated, view)
}

func (tc *TransactionController) CreateDraftTransaction(c *gin.Context) {
	defer record(c, "create_draft")

	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := tc.service.CreateDraftTransaction(c.Request.Context(), req.toModel())
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	middlewares.RecordTransition("create_draft", view.Status)
	c.JSON(http.StatusCreated, view)
}

func (tc *TransactionController) GetTransaction(c *gin.Context) {
	defer record(c, "get")

	view, err := tc.service.GetTransactionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListTransactions narrows by the first of customerId, status,
// paymentMethod or startDate/endDate that is present.
func (tc *TransactionController) ListTransactions(c *gin.Context) {
	defer record(c, "list")
	ctx := c.Request.Context()

	var (
		result []models.TransactionView
		err    error
	)
	switch {
	case c.Query("customerId") != "":
		result, err = tc.service.GetTransactionsByCustomerID(ctx, c.Query("customerId"))
	case c.Query("status") != "":
		var status models.TransactionStatus
		if status, err = models.ParseTransactionStatus(c.Query("status")); err == nil {
			result, err = tc.service.GetTransactionsByStatus(ctx, status)
		}
	case c.Query("paymentMethod") != "":
		result, err = tc.service.GetTransactionsByPaymentMethod(ctx, c.Query("paymentMethod"))
	case c.Query("startDate") != "" || c.Query("endDate") != "":
		var start, end *time.Time
		if start, end, err = dateRange(c); err == nil {
			if start == nil || end == nil {
				err = models.InvalidArgumentf("startDate and endDate must be given together")
			} else {
				result, err = tc.service.GetTransactionsByDateRange(ctx, *start, *end)
			}
		}
	default:
		result, err = tc.service.GetAllTransactions(ctx)
	}
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (tc *TransactionController) UpdateTransaction(c *gin.Context) {
	defer record(c, "update")

	var update models.TransactionUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := tc.service.UpdateTransaction(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	middlewares.RecordTransition("update", view.Status)
	c.JSON(http.StatusOK, view)
}

// transition adapts a single-id status change to a handler.
func (tc *TransactionController) transition(c *gin.Context, operation string,
	apply func(*services.TransactionService, *gin.Context, string) (models.TransactionView, error)) {
	defer record(c, operation)

	view, err := apply(tc.service, c, c.Param("id"))
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	middlewares.RecordTransition(operation, view.Status)
	c.JSON(http.StatusOK, view)
}

func (tc *TransactionController) ConfirmTransaction(c *gin.Context) {
	tc.transition(c, "confirm", func(s *services.TransactionService, c *gin.Context, id string) (models.TransactionView, error) {
		return s.ConfirmTransaction(c.Request.Context(), id)
	})
}

func (tc *TransactionController) CompleteTransaction(c *gin.Context) {
	tc.transition(c, "complete", func(s *services.TransactionService, c *gin.Context, id string) (models.TransactionView, error) {
		return s.CompleteTransaction(c.Request.Context(), id)
	})
}

func (tc *TransactionController) CancelTransaction(c *gin.Context) {
	tc.transition(c, "cancel", func(s *services.TransactionService, c *gin.Context, id string) (models.TransactionView, error) {
		return s.CancelTransaction(c.Request.Context(), id)
	})
}

func (tc *TransactionController) DeleteTransaction(c *gin.Context) {
	defer record(c, "delete")

	if err := tc.service.DeleteTransaction(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, tc.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (tc *TransactionController) SearchTransactions(c *gin.Context) {
	defer record(c, "search")

	result, err := tc.service.SearchTransactions(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (tc *TransactionController) GetOngoingTransactions(c *gin.Context) {
	defer record(c, "ongoing")

	result, err := tc.service.GetOngoingTransactions(c.Request.Context())
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (tc *TransactionController) statusShortcut(status models.TransactionStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer record(c, "list_"+strings.ToLower(string(status)))

		result, err := tc.service.GetTransactionsByStatus(c.Request.Context(), status)
		if err != nil {
			respondError(c, tc.logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// FilterTransactions accepts repeated or comma-separated status and
// paymentMethod values, RFC 3339 dates, sortBy and sortDirection.
func (tc *TransactionController) FilterTransactions(c *gin.Context) {
	defer record(c, "filter")

	filter := models.TransactionFilter{
		CustomerID:     c.Query("customerId"),
		PaymentMethods: listQuery(c, "paymentMethod"),
		SortBy:         c.Query("sortBy"),
		SortDirection:  c.Query("sortDirection"),
	}
	for _, raw := range listQuery(c, "status") {
		status, err := models.ParseTransactionStatus(raw)
		if err != nil {
			respondError(c, tc.logger, err)
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	start, end, err := dateRange(c)
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	filter.StartDate, filter.EndDate = start, end

	result, err := tc.service.FilterTransactions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (tc *TransactionController) GetTransactionDetails(c *gin.Context) {
	defer record(c, "details")

	ctx := c.Request.Context()
	details, err := tc.service.GetTransactionDetails(ctx, c.Param("id")).Get(ctx)
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (tc *TransactionController) BatchComplete(c *gin.Context) {
	defer record(c, "batch_complete")

	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	result, err := tc.service.BatchCompleteTransactionsAsync(ctx, ids).Get(ctx)
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	middlewares.RecordBatchOutcome("complete", result.Count, len(result.Skipped), len(result.Failures))
	c.JSON(http.StatusOK, result)
}

func (tc *TransactionController) BatchCancel(c *gin.Context) {
	defer record(c, "batch_cancel")

	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	result, err := tc.service.BatchCancelTransactionsAsync(ctx, ids).Get(ctx)
	if err != nil {
		respondError(c, tc.logger, err)
		return
	}
	middlewares.RecordBatchOutcome("cancel", result.Count, len(result.Skipped), len(result.Failures))
	c.JSON(http.StatusOK, result)
}

func listQuery(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func dateRange(c *gin.Context) (start, end *time.Time, err error) {
	if start, err = parseDate(c.Query("startDate"), "startDate"); err != nil {
		return nil, nil, err
	}
	if end, err = parseDate(c.Query("endDate"), "endDate"); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func parseDate(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, models.InvalidArgumentf("%s must be an RFC 3339 timestamp: %q", name, raw)
	}
	return &t, nil
}
