package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/model"
	"giftcards/internal/service"
)

// BillingHandler serves company invoicing.
type BillingHandler struct {
	billingService service.BillingService
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(billingService service.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

// InvoiceRunResponse reports the outcome of an invoicing run.
type InvoiceRunResponse struct {
	Message string         `json:"message"`
	Invoice *model.Invoice `json:"invoice"`
}

// CreateInvoice godoc
// @Summary Invoice a company's open platform fees
// @Tags billing
// @Produce json
// @Security BearerAuth
// @Param id path string true "Company ID"
// @Success 201 {object} InvoiceRunResponse
// @Success 200 {object} InvoiceRunResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/companies/{id}/invoices [post]
func (h *BillingHandler) CreateInvoice(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	invoice, err := h.billingService.CreateInvoice(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	if invoice == nil {
		return c.JSON(http.StatusOK, InvoiceRunResponse{Message: "No open transactions to invoice"})
	}
	return c.JSON(http.StatusCreated, InvoiceRunResponse{Message: "Invoice created", Invoice: invoice})
}

// ListInvoices godoc
// @Summary List a company's invoices
// @Tags billing
// @Produce json
// @Security BearerAuth
// @Param id path string true "Company ID"
// @Success 200 {array} model.Invoice
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /companies/{id}/invoices [get]
func (h *BillingHandler) ListInvoices(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	claims, err := operator(c)
	if err != nil {
		return err
	}
	if !claims.HasRole(model.OperatorRoleAdmin) && claims.Company() != id {
		return errorResponse(apperrors.ErrForbidden)
	}

	invoices, err := h.billingService.ListInvoices(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, invoices)
}
