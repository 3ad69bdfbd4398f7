package payments

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payments_engine/internal/engine"
	"github.com/congo-pay/payments_engine/internal/export"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

// Handler exposes transaction and account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type resultResponse struct {
	Status  string       `json:"status"`
	Reason  string       `json:"reason,omitempty"`
	Account *export.View `json:"account,omitempty"`
}

// Submit applies one JSON encoded transaction.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var record transaction.Record
	if err := c.BodyParser(&record); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Submit(c.UserContext(), record)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(resultResponse{
			Status: engine.Rejected.String(),
			Reason: err.Error(),
		})
	}

	view := export.NewView(res.Account)
	out := resultResponse{Status: res.Status.String(), Account: &view}
	if res.Reason != nil {
		out.Reason = res.Reason.Error()
	}
	return c.Status(http.StatusOK).JSON(out)
}

type batchResponse struct {
	engine.Summary
	Error string `json:"error"`
}

// Batch streams a CSV body through the engine. A batch that fails after some
// records were processed still writes its summary, so an idempotent retry
// replays it instead of applying those records again.
func (h *Handler) Batch(c *fiber.Ctx) error {
	summary, err := h.service.SubmitBatch(c.UserContext(), bytes.NewReader(c.Body()))
	if err != nil {
		if errors.Is(err, transaction.ErrBadHeader) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if summary == (engine.Summary{}) {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusInternalServerError).JSON(batchResponse{Summary: summary, Error: err.Error()})
	}
	return c.Status(http.StatusOK).JSON(summary)
}

// Accounts lists every account.
func (h *Handler) Accounts(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(export.Views(h.service.Accounts()))
}

// Account returns one account by client id.
func (h *Handler) Account(c *fiber.Ctx) error {
	client, err := transaction.ParseClientID(c.Params("client"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acc, ok := h.service.Account(client)
	if !ok {
		return fiber.NewError(http.StatusNotFound, "account not found")
	}
	return c.Status(http.StatusOK).JSON(export.NewView(acc))
}
