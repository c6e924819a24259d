package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"giftcards/internal/auth"
	apperrors "giftcards/internal/errors"
	"giftcards/internal/model"
	"giftcards/internal/service"
)

// KioskHandler serves point-of-sale operators. Company operators only see
// and change cards of their own company; admins act for any company.
type KioskHandler struct {
	cardService    service.CardService
	catalogService service.CatalogService
}

// NewKioskHandler creates a new kiosk handler.
func NewKioskHandler(cards service.CardService, catalog service.CatalogService) *KioskHandler {
	return &KioskHandler{cardService: cards, catalogService: catalog}
}

// ActivateRequest represents an in-store activation.
type ActivateRequest struct {
	Code          string `json:"code" validate:"required" example:"ABCD-EFGH"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	// CompanyID is only read for admins, who act for no company of their own.
	CompanyID string `json:"company_id" validate:"omitempty,uuid"`
}

// StockRequest asks for a pre-printed inactive card.
type StockRequest struct {
	OfferID string `json:"offer_id" validate:"required,uuid"`
}

// company resolves the company an operator acts for.
func company(claims *auth.Claims, requested string) (uuid.UUID, error) {
	if id := claims.Company(); id != uuid.Nil {
		return id, nil
	}
	if claims.HasRole(model.OperatorRoleAdmin) && requested != "" {
		return parseUUIDField(requested, "company_id")
	}
	return uuid.Nil, errorResponse(apperrors.ErrForbidden)
}

// ownCard loads a card and checks that the operator may act on it.
func (h *KioskHandler) ownCard(c echo.Context, id uuid.UUID) (*model.Card, error) {
	claims, err := operator(c)
	if err != nil {
		return nil, err
	}
	card, err := h.cardService.GetCard(c.Request().Context(), id)
	if err != nil {
		return nil, errorResponse(err)
	}
	if !claims.HasRole(model.OperatorRoleAdmin) && card.CompanyID != claims.Company() {
		return nil, errorResponse(apperrors.ErrForbidden)
	}
	return card, nil
}

// Activate godoc
// @Summary Activate a printed card at the counter
// @Tags kiosk
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ActivateRequest true "Card code"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /kiosk/activate [post]
func (h *KioskHandler) Activate(c echo.Context) error {
	var req ActivateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	claims, err := operator(c)
	if err != nil {
		return err
	}
	companyID, err := company(claims, req.CompanyID)
	if err != nil {
		return err
	}

	card, err := h.cardService.ActivateInStore(c.Request().Context(), req.Code, companyID, req.CustomerEmail)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// Lookup godoc
// @Summary Look a card up by its code
// @Tags kiosk
// @Produce json
// @Security BearerAuth
// @Param code path string true "Card code"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /kiosk/codes/{code} [get]
func (h *KioskHandler) Lookup(c echo.Context) error {
	claims, err := operator(c)
	if err != nil {
		return err
	}
	card, err := h.cardService.GetCardByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return errorResponse(err)
	}
	if !claims.HasRole(model.OperatorRoleAdmin) && card.CompanyID != claims.Company() {
		// Foreign cards are reported as missing.
		return errorResponse(apperrors.ErrNotFound)
	}
	return c.JSON(http.StatusOK, card)
}

// Spend godoc
// @Summary Redeem an amount from a card
// @Tags kiosk
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body AmountRequest true "Amount"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 410 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /kiosk/cards/{id}/spend [post]
func (h *KioskHandler) Spend(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req AmountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if _, err := h.ownCard(c, id); err != nil {
		return err
	}

	card, err := h.cardService.Spend(c.Request().Context(), id, amount)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// Print godoc
// @Summary Mark a card as printed
// @Description The first print rotates the code; printing again returns the card unchanged.
// @Tags kiosk
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /kiosk/cards/{id}/print [post]
func (h *KioskHandler) Print(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.ownCard(c, id); err != nil {
		return err
	}

	card, err := h.cardService.MarkPrinted(c.Request().Context(), id, false)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// CreateStock godoc
// @Summary Issue a pre-printed inactive card
// @Tags kiosk
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body StockRequest true "Offer"
// @Success 201 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /kiosk/stock [post]
func (h *KioskHandler) CreateStock(c echo.Context) error {
	var req StockRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	offerID, err := parseUUIDField(req.OfferID, "offer_id")
	if err != nil {
		return err
	}
	claims, err := operator(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	offer, err := h.catalogService.GetOffer(ctx, offerID)
	if err != nil {
		return errorResponse(err)
	}
	if !claims.HasRole(model.OperatorRoleAdmin) && offer.CompanyID != claims.Company() {
		return errorResponse(apperrors.ErrForbidden)
	}

	card, err := h.cardService.CreateInactiveCard(ctx, offer.ID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, card)
}
