package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"solflow/backend/internal/services"
	"solflow/backend/pkg/models"
)

type calculateRequest struct {
	Amount float64  `json:"amount"`
	FeeBps *float64 `json:"feeBps"`
}

// PaymentList is the body of a payment listing.
type PaymentList struct {
	Payments []*models.Payment `json:"payments"`
	Total    int               `json:"total"`
}

func (s *Server) registerPayments(g *echo.Group) {
	g.POST("/create-intent", s.CreatePaymentIntent)
	g.POST("/verify", s.VerifyPayment)
	g.GET("/status/:paymentId", s.GetPaymentStatus)
	g.GET("/list", s.ListPayments)
	g.POST("/calculate", s.CalculatePayment)
}

// CreatePaymentIntent records a pending payment
// (POST /api/payments/create-intent)
func (s *Server) CreatePaymentIntent(c echo.Context) error {
	var in services.CreateIntentInput
	if err := bind(c, &in, "Missing required fields"); err != nil {
		return err
	}
	payment, err := s.Payments.CreateIntent(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"paymentId": payment.ID,
		"recipient": payment.Recipient,
		"mint":      payment.Mint,
		"amount":    payment.Amount,
		"status":    payment.Status,
	})
}

// VerifyPayment settles a payment intent against a transaction
// (POST /api/payments/verify)
func (s *Server) VerifyPayment(c echo.Context) error {
	var in services.VerifyInput
	if err := bind(c, &in, "Endpoint and signature are required"); err != nil {
		return err
	}
	result, err := s.Payments.Verify(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// GetPaymentStatus returns one payment
// (GET /api/payments/status/:paymentId)
func (s *Server) GetPaymentStatus(c echo.Context) error {
	payment, err := s.Payments.Get(c.Request().Context(), c.Param("paymentId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payment)
}

// ListPayments lists payments filtered by status, recipient and payer
// (GET /api/payments/list)
func (s *Server) ListPayments(c echo.Context) error {
	filter := models.PaymentFilter{
		Status:    models.PaymentStatus(c.QueryParam("status")),
		Recipient: c.QueryParam("recipient"),
		Payer:     c.QueryParam("payer"),
	}
	payments, err := s.Payments.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	return c.JSON(http.StatusOK, PaymentList{Payments: payments, Total: len(payments)})
}

// CalculatePayment quotes the fee for an amount
// (POST /api/payments/calculate)
func (s *Server) CalculatePayment(c echo.Context) error {
	var req calculateRequest
	if err := bind(c, &req, "Invalid amount"); err != nil {
		return err
	}
	quote, err := services.Calculate(req.Amount, req.FeeBps)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quote)
}
