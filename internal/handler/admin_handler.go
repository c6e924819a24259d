package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"giftcards/internal/model"
	"giftcards/internal/service"
)

// AdminHandler serves back-office card management.
type AdminHandler struct {
	cardService    service.CardService
	giftingService service.GiftingService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cards service.CardService, gifting service.GiftingService) *AdminHandler {
	return &AdminHandler{cardService: cards, giftingService: gifting}
}

// AdminCreateCardRequest represents a card issued by the back office.
type AdminCreateCardRequest struct {
	OfferID       string `json:"offer_id" validate:"required,uuid"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	IsPaid        bool   `json:"is_paid"`
}

// AdminUpdateRequest is a partial card edit. Omitted fields are kept.
type AdminUpdateRequest struct {
	RemainingBalance *string `json:"remaining_balance"`
	IsPaid           *bool   `json:"is_paid"`
	CustomerEmail    *string `json:"customer_email" validate:"omitempty,email"`
	RecipientName    *string `json:"recipient_name" validate:"omitempty,max=255"`
	RecipientEmail   *string `json:"recipient_email" validate:"omitempty,email"`
	Message          *string `json:"message" validate:"omitempty,max=2000"`
}

// LedgerResponse lists the ledger entries of a card.
type LedgerResponse struct {
	Card    *model.Card         `json:"card"`
	Entries []model.LedgerEntry `json:"entries"`
}

// CreateCard godoc
// @Summary Issue a card
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AdminCreateCardRequest true "Card"
// @Success 201 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards [post]
func (h *AdminHandler) CreateCard(c echo.Context) error {
	var req AdminCreateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	offerID, err := parseUUIDField(req.OfferID, "offer_id")
	if err != nil {
		return err
	}

	card, err := h.cardService.CreateCard(c.Request().Context(), service.CreateCardInput{
		OfferID:       offerID,
		CustomerEmail: req.CustomerEmail,
		IsPaid:        req.IsPaid,
	})
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, card)
}

// GetCard godoc
// @Summary Get a card
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} LedgerResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id} [get]
func (h *AdminHandler) GetCard(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	card, err := h.cardService.GetCard(ctx, id)
	if err != nil {
		return errorResponse(err)
	}
	entries, err := h.cardService.Ledger(ctx, id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, LedgerResponse{Card: card, Entries: entries})
}

// Activate godoc
// @Summary Activate a paid online card
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 402 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/activate [post]
func (h *AdminHandler) Activate(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	card, err := h.cardService.ActivateCard(c.Request().Context(), service.ActivateInput{
		CardID: id,
		Source: service.ActivationOnline,
	})
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// TopUp godoc
// @Summary Add credit to a card
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body AmountRequest true "Amount"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 410 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/topup [post]
func (h *AdminHandler) TopUp(c echo.Context) error {
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

	card, err := h.cardService.TopUp(c.Request().Context(), id, amount)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// Print godoc
// @Summary Mark any card as printed, including inactive stock
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/print [post]
func (h *AdminHandler) Print(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	card, err := h.cardService.MarkPrinted(c.Request().Context(), id, true)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// Reset godoc
// @Summary Take a card back from its recipient
// @Description Clears gifting metadata and issues a new code and recipient uuid.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/reset [post]
func (h *AdminHandler) Reset(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	card, err := h.cardService.ResetToBuyer(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// ResendGift godoc
// @Summary Send the gift email of a card again
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Card uuid"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/uuid/{uuid}/resend-gift [post]
func (h *AdminHandler) ResendGift(c echo.Context) error {
	cardUUID, err := paramUUID(c, "uuid")
	if err != nil {
		return err
	}
	if err := h.giftingService.ResendGiftNotification(c.Request().Context(), cardUUID); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusAccepted, MessageResponse{Message: "gift notification queued"})
}

// Update godoc
// @Summary Edit a card
// @Description Balance changes are booked as ledger corrections.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body AdminUpdateRequest true "Changes"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/cards/{id} [patch]
func (h *AdminHandler) Update(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req AdminUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	changes := service.AdminChanges{
		IsPaid:         req.IsPaid,
		CustomerEmail:  req.CustomerEmail,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		Message:        req.Message,
	}
	if req.RemainingBalance != nil {
		balance, err := parseAmount(*req.RemainingBalance)
		if err != nil {
			return err
		}
		changes.RemainingBalance = &balance
	}

	card, err := h.cardService.AdminUpdate(c.Request().Context(), id, changes)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}
