package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"giftcards/internal/service"
)

// CardHandler serves the customer-facing card endpoints. Cards are addressed
// by their owner or recipient uuid, which act as bearer links.
type CardHandler struct {
	cardService     service.CardService
	giftingService  service.GiftingService
	recoveryService service.RecoveryService
}

// NewCardHandler creates a new card handler.
func NewCardHandler(cards service.CardService, gifting service.GiftingService, recovery service.RecoveryService) *CardHandler {
	return &CardHandler{
		cardService:     cards,
		giftingService:  gifting,
		recoveryService: recovery,
	}
}

// CreateCardRequest represents an online order before payment.
type CreateCardRequest struct {
	OfferID       string `json:"offer_id" validate:"required,uuid"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
}

// GiftRequest represents gifting metadata.
type GiftRequest struct {
	Name    string `json:"name" validate:"max=255"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"max=2000"`
}

func (r GiftRequest) recipient() service.GiftRecipient {
	return service.GiftRecipient{Name: r.Name, Email: r.Email, Message: r.Message}
}

// RecoveryRequest asks for the cards of an email address.
type RecoveryRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CreateCard godoc
// @Summary Create an unpaid card for an online order
// @Tags cards
// @Accept json
// @Produce json
// @Param request body CreateCardRequest true "Order"
// @Success 201 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards [post]
func (h *CardHandler) CreateCard(c echo.Context) error {
	var req CreateCardRequest
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
	})
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, card)
}

// GetCard godoc
// @Summary Get a card by its owner uuid
// @Tags cards
// @Produce json
// @Param uuid path string true "Card uuid"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards/{uuid} [get]
func (h *CardHandler) GetCard(c echo.Context) error {
	cardUUID, err := paramUUID(c, "uuid")
	if err != nil {
		return err
	}
	card, err := h.cardService.GetCardByUUID(c.Request().Context(), cardUUID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// GetRecipientCard godoc
// @Summary Get a card by its recipient uuid
// @Tags cards
// @Produce json
// @Param uuid path string true "Recipient uuid"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards/recipient/{uuid} [get]
func (h *CardHandler) GetRecipientCard(c echo.Context) error {
	recipientUUID, err := paramUUID(c, "uuid")
	if err != nil {
		return err
	}
	card, err := h.cardService.GetCardByRecipientUUID(c.Request().Context(), recipientUUID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// SendGift godoc
// @Summary Gift a card to a recipient
// @Tags cards
// @Accept json
// @Produce json
// @Param uuid path string true "Card uuid"
// @Param request body GiftRequest true "Recipient"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 410 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /cards/{uuid}/gift [post]
func (h *CardHandler) SendGift(c echo.Context) error {
	cardUUID, err := paramUUID(c, "uuid")
	if err != nil {
		return err
	}
	var req GiftRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	card, err := h.giftingService.SendGift(c.Request().Context(), cardUUID, req.recipient())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// RegisterRecipient godoc
// @Summary Register the recipient of a card without sending it
// @Tags cards
// @Accept json
// @Produce json
// @Param uuid path string true "Card uuid"
// @Param request body GiftRequest true "Recipient"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /cards/{uuid}/recipient [post]
func (h *CardHandler) RegisterRecipient(c echo.Context) error {
	cardUUID, err := paramUUID(c, "uuid")
	if err != nil {
		return err
	}
	var req GiftRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	card, err := h.cardService.RegisterGiftRecipient(c.Request().Context(), cardUUID, req.recipient())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// RecoverCards godoc
// @Summary Email a customer their cards
// @Description Always answers 202 for a well-formed address.
// @Tags cards
// @Accept json
// @Produce json
// @Param request body RecoveryRequest true "Email"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /cards/recovery [post]
func (h *CardHandler) RecoverCards(c echo.Context) error {
	var req RecoveryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.recoveryService.RecoverCards(c.Request().Context(), req.Email); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusAccepted, MessageResponse{Message: "if cards exist for this address, an email is on its way"})
}
