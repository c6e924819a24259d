package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"giftcards/internal/auth"
	apperrors "giftcards/internal/errors"
	"giftcards/internal/handler"
	"giftcards/internal/logger"
	"giftcards/internal/metrics"
	"giftcards/internal/model"
)

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Auth    *handler.AuthHandler
	Cards   *handler.CardHandler
	Kiosk   *handler.KioskHandler
	Admin   *handler.AdminHandler
	Catalog *handler.CatalogHandler
	Billing *handler.BillingHandler
	Webhook *handler.WebhookHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface, h Handlers) {
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(metrics.Middleware())

	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", metrics.Handler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.POST("/webhooks/stripe", h.Webhook.Stripe)

	api.GET("/offers", h.Catalog.ListOffers)
	api.GET("/offers/:id", h.Catalog.GetOffer)
	api.GET("/companies", h.Catalog.ListCompanies)

	api.POST("/cards", h.Cards.CreateCard)
	api.POST("/cards/recovery", h.Cards.RecoverCards)
	api.GET("/cards/:uuid", h.Cards.GetCard)
	api.GET("/cards/recipient/:uuid", h.Cards.GetRecipientCard)
	api.POST("/cards/:uuid/gift", h.Cards.SendGift)
	api.POST("/cards/:uuid/recipient", h.Cards.RegisterRecipient)

	// Secured routes (require JWT authentication)
	secured := api.Group("", echojwt.WithConfig(JWTConfig(jwtService, tokenStore)))
	secured.GET("/me", h.Auth.Me)
	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/companies/:id/billing", h.Catalog.CompanyBilling, RequireRole(model.OperatorRoleAdmin, model.OperatorRoleCompany))
	secured.GET("/companies/:id/invoices", h.Billing.ListInvoices, RequireRole(model.OperatorRoleAdmin, model.OperatorRoleCompany))

	kiosk := secured.Group("/kiosk", RequireRole(model.OperatorRoleAdmin, model.OperatorRoleCompany))
	kiosk.POST("/activate", h.Kiosk.Activate)
	kiosk.POST("/stock", h.Kiosk.CreateStock)
	kiosk.GET("/codes/:code", h.Kiosk.Lookup)
	kiosk.POST("/cards/:id/spend", h.Kiosk.Spend)
	kiosk.POST("/cards/:id/print", h.Kiosk.Print)

	admin := secured.Group("/admin", RequireRole(model.OperatorRoleAdmin))
	admin.POST("/operators", h.Auth.CreateOperator)
	admin.POST("/catalog", h.Catalog.SeedCatalog)
	admin.POST("/companies/:id/invoices", h.Billing.CreateInvoice)
	admin.POST("/cards", h.Admin.CreateCard)
	admin.GET("/cards/:id", h.Admin.GetCard)
	admin.PATCH("/cards/:id", h.Admin.Update)
	admin.POST("/cards/:id/activate", h.Admin.Activate)
	admin.POST("/cards/:id/topup", h.Admin.TopUp)
	admin.POST("/cards/:id/print", h.Admin.Print)
	admin.POST("/cards/:id/reset", h.Admin.Reset)
	admin.POST("/cards/uuid/:uuid/resend-gift", h.Admin.ResendGift)
}

// JWTConfig validates bearer tokens with jwtService and stores the operator
// claims under auth.ContextKey. Revoked access tokens are rejected.
func JWTConfig(jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) echojwt.Config {
	return echojwt.Config{
		ContextKey:  auth.ContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				return nil, err
			}
			revoked, err := tokenStore.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID)
			if err != nil {
				return nil, err
			}
			if revoked {
				return nil, errors.New("token has been revoked")
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: "invalid or missing token",
				Code:  "UNAUTHORIZED",
			})
		},
	}
}

// RequireRole rejects operators holding none of roles.
func RequireRole(roles ...model.OperatorRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(auth.ContextKey).(*auth.Claims)
			if !ok || !claims.HasRole(roles...) {
				return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{
					Error: "operator role not allowed",
					Code:  "FORBIDDEN",
				})
			}
			return next(c)
		}
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				logger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			if v.Latency > time.Second {
				logger.Warn("Slow request", fields...)
				return nil
			}
			logger.Debug("Request", fields...)
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
