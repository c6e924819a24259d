package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/model"
	"giftcards/internal/service"
)

// CatalogHandler serves companies, offers and company billing.
type CatalogHandler struct {
	catalogService service.CatalogService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// SeedCatalogResponse represents the seed response.
type SeedCatalogResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ListOffers godoc
// @Summary List active offers
// @Tags catalog
// @Produce json
// @Param company_id query string false "Company ID"
// @Success 200 {array} model.Offer
// @Failure 400 {object} errors.ErrorResponse
// @Router /offers [get]
func (h *CatalogHandler) ListOffers(c echo.Context) error {
	companyID := uuid.Nil
	if raw := c.QueryParam("company_id"); raw != "" {
		id, err := parseUUIDField(raw, "company_id")
		if err != nil {
			return err
		}
		companyID = id
	}
	offers, err := h.catalogService.ListOffers(c.Request().Context(), companyID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, offers)
}

// GetOffer godoc
// @Summary Get an offer
// @Tags catalog
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} model.Offer
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /offers/{id} [get]
func (h *CatalogHandler) GetOffer(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	offer, err := h.catalogService.GetOffer(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, offer)
}

// ListCompanies godoc
// @Summary List active companies
// @Tags catalog
// @Produce json
// @Success 200 {array} model.Company
// @Router /companies [get]
func (h *CatalogHandler) ListCompanies(c echo.Context) error {
	companies, err := h.catalogService.ListCompanies(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, companies)
}

// CompanyBilling godoc
// @Summary List a company's billing transactions
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Company ID"
// @Param fee_status query string false "Fee status" Enums(paid_via_provider, open, invoiced, waived, not_applicable)
// @Success 200 {array} model.BillingTransaction
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /companies/{id}/billing [get]
func (h *CatalogHandler) CompanyBilling(c echo.Context) error {
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

	txns, err := h.catalogService.CompanyBilling(c.Request().Context(), id, model.FeeStatus(c.QueryParam("fee_status")))
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, txns)
}

// SeedCatalog godoc
// @Summary Create or update companies and offers
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.Catalog true "Catalog"
// @Success 200 {object} SeedCatalogResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/catalog [post]
func (h *CatalogHandler) SeedCatalog(c echo.Context) error {
	var catalog service.Catalog
	if err := c.Bind(&catalog); err != nil {
		return badRequest("invalid request body", "INVALID_BODY")
	}

	count, err := h.catalogService.SeedCatalog(c.Request().Context(), catalog)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, SeedCatalogResponse{
		Message: "Catalog seeded successfully",
		Count:   count,
	})
}
