package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"transaction-service/services"
)

type PaymentController struct {
	service *services.PaymentService
	logger  *zap.Logger
}

func NewPaymentController(service *services.PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{service: service, logger: logger}
}

func (pc *PaymentController) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/payments")
	g.GET("/:id", pc.GetPayment)
	g.GET("/customer/:customerId", pc.GetPaymentsByCustomer)
}

func (pc *PaymentController) GetPayment(c *gin.Context) {
	defer record(c, "payment_get")

	payment, err := pc.service.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (pc *PaymentController) GetPaymentsByCustomer(c *gin.Context) {
	defer record(c, "payment_history")

	payments, err := pc.service.GetPaymentsByCustomerID(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}
