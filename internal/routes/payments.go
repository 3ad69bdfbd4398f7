package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payments_engine/internal/payments"
)

// RegisterPaymentRoutes wires transaction and account endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, batchLimiter fiber.Handler) {
	r.Post("/transactions", h.Submit)
	r.Post("/transactions/batch", batchLimiter, h.Batch)
	r.Get("/accounts", h.Accounts)
	r.Get("/accounts/:client", h.Account)
}
