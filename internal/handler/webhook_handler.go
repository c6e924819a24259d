package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
	"go.uber.org/zap"

	apperrors "giftcards/internal/errors"
	"giftcards/internal/logger"
	"giftcards/internal/service"
)

const maxWebhookBody = 64 << 10

// Checkout session metadata keys set when the session is created.
const (
	metaOfferID      = "offer_id"
	metaCardUUID     = "card_uuid"
	metaGiftName     = "gift_name"
	metaGiftEmail    = "gift_email"
	metaGiftMessage  = "gift_message"
	stripeSignature  = "Stripe-Signature"
	stripeMinorUnits = -2
)

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	fulfillmentService service.FulfillmentService
	secret             string
}

// NewWebhookHandler creates a new webhook handler verifying payloads with secret.
func NewWebhookHandler(fulfillment service.FulfillmentService, secret string) *WebhookHandler {
	return &WebhookHandler{fulfillmentService: fulfillment, secret: secret}
}

// Stripe godoc
// @Summary Stripe webhook
// @Description Fulfils completed checkout sessions. Other events are acknowledged and ignored.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) Stripe(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest("failed to read body", "INVALID_BODY")
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.Request().Header.Get(stripeSignature), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		logger.Warn("Rejected Stripe webhook", zap.Error(err))
		return badRequest("invalid signature", "INVALID_SIGNATURE")
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return c.JSON(http.StatusOK, MessageResponse{Message: "ignored"})
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return badRequest("invalid checkout session", "INVALID_BODY")
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return c.JSON(http.StatusOK, MessageResponse{Message: "awaiting payment"})
	}

	payment, err := paymentFromSession(&session)
	if err != nil {
		return errorResponse(err)
	}
	card, err := h.fulfillmentService.FulfillPayment(c.Request().Context(), payment)
	if err != nil {
		logger.Error("Failed to fulfil checkout session",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return errorResponse(err)
	}

	logger.Info("Checkout session fulfilled",
		zap.String("event_id", event.ID),
		zap.String("card_id", card.ID.String()),
	)
	return c.JSON(http.StatusOK, MessageResponse{Message: "fulfilled"})
}

// paymentFromSession translates a paid checkout session.
func paymentFromSession(session *stripe.CheckoutSession) (service.PaymentConfirmed, error) {
	meta := session.Metadata
	offerID, err := uuid.Parse(meta[metaOfferID])
	if err != nil {
		return service.PaymentConfirmed{}, apperrors.Validation("checkout session %s has no offer", session.ID)
	}

	payment := service.PaymentConfirmed{
		SessionID:     session.ID,
		OfferID:       offerID,
		CustomerEmail: session.CustomerEmail,
		AmountPaid:    decimal.New(session.AmountTotal, stripeMinorUnits),
		Currency:      strings.ToUpper(string(session.Currency)),
	}
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		payment.CustomerEmail = session.CustomerDetails.Email
	}
	if raw := meta[metaCardUUID]; raw != "" {
		cardUUID, err := uuid.Parse(raw)
		if err != nil {
			return service.PaymentConfirmed{}, apperrors.Validation("checkout session %s has a malformed card uuid", session.ID)
		}
		payment.ExistingCardUUID = &cardUUID
	}
	if email := meta[metaGiftEmail]; email != "" {
		payment.Gift = &service.GiftRecipient{
			Name:    meta[metaGiftName],
			Email:   email,
			Message: meta[metaGiftMessage],
		}
	}
	return payment, nil
}
