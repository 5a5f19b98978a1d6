// Package httpapi exposes the booking service over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/photobook/internal/apperror"
	"github.com/MarkoPoloResearchLab/photobook/internal/notify"
	"github.com/MarkoPoloResearchLab/photobook/internal/validation"
	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var ErrInvalidServerConfig = errors.New("invalid http server config")

// Bookings is the part of booking.Service the HTTP surface drives.
type Bookings interface {
	CreateRequest(ctx context.Context, input booking.RequestInput) (booking.ClientRequest, error)
	GetRequest(ctx context.Context, requestID booking.RequestID) (booking.ClientRequest, error)
	CancelRequest(ctx context.Context, clientID booking.UserID, requestID booking.RequestID) error
	MatchProviders(ctx context.Context, requestID booking.RequestID, minScore float64) ([]booking.ProviderMatch, error)
	MatchRequests(ctx context.Context, providerID booking.UserID, minScore float64) ([]booking.RequestMatch, error)
	CreateQuote(ctx context.Context, input booking.QuoteInput) (booking.Quote, error)
	ListQuotes(ctx context.Context, requestID booking.RequestID) ([]booking.Quote, error)
	MarkQuoteRead(ctx context.Context, clientID booking.UserID, quoteID booking.QuoteID) (booking.Quote, error)
	AcceptQuote(ctx context.Context, clientID booking.UserID, quoteID booking.QuoteID) (booking.Reservation, error)
	RefuseQuote(ctx context.Context, clientID booking.UserID, quoteID booking.QuoteID) error
	GetReservation(ctx context.Context, actorID booking.UserID, reservationID booking.ReservationID) (booking.Reservation, error)
	UpdateReservationStatus(ctx context.Context, actorID booking.UserID, reservationID booking.ReservationID, to booking.ReservationStatus) (booking.Reservation, error)
	ConfirmPayment(ctx context.Context, sessionID string) (booking.Reservation, error)
	SubmitReview(ctx context.Context, input booking.ReviewInput) (booking.Review, error)
	CheckAvailability(ctx context.Context, providerID booking.UserID, start time.Time, duration time.Duration) (booking.Availability, error)
	SaveProviderProfile(ctx context.Context, profile booking.ProviderProfile) (booking.ProviderProfile, error)
	GetProviderProfile(ctx context.Context, providerID booking.UserID) (booking.ProviderProfile, error)
}

// Notifications is the in-app inbox and device registry.
type Notifications interface {
	ListNotifications(ctx context.Context, userID booking.UserID, limit int) ([]notify.Notification, error)
	MarkNotificationRead(ctx context.Context, userID booking.UserID, notificationID string) error
	RegisterDevice(ctx context.Context, userID booking.UserID, token string, platform string) error
}

// Config carries the router settings.
type Config struct {
	AllowedOrigins    []string
	RequestTimeout    time.Duration
	MinimumMatchScore float64
}

// Handler serves the HTTP API.
type Handler struct {
	bookings      Bookings
	notifications Notifications
	authenticator *Authenticator
	validator     *validation.Validator
	logger        *zap.Logger
	cfg           Config
}

// NewHandler wires the API dependencies.
func NewHandler(cfg Config, bookings Bookings, notifications Notifications, authenticator *Authenticator, logger *zap.Logger) (*Handler, error) {
	if bookings == nil {
		return nil, fmt.Errorf("%w: bookings is nil", ErrInvalidServerConfig)
	}
	if notifications == nil {
		return nil, fmt.Errorf("%w: notifications is nil", ErrInvalidServerConfig)
	}
	if authenticator == nil {
		return nil, fmt.Errorf("%w: authenticator is nil", ErrInvalidServerConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bookings:      bookings,
		notifications: notifications,
		authenticator: authenticator,
		validator:     validation.New(),
		logger:        logger,
		cfg:           cfg,
	}, nil
}

// Router builds the gin engine with every route.
func (handler *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if len(handler.cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     handler.cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if handler.cfg.RequestTimeout > 0 {
		router.Use(requestTimeout(handler.cfg.RequestTimeout))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/webhooks/paiement", handler.handlePaymentWebhook)
	router.POST("/inscriptions/photographe/validation", handler.handleValidateProviderSignup)

	api := router.Group("/api")
	api.Use(handler.authenticator.Middleware()...)

	api.POST("/demandes", handler.handleCreateRequest)
	api.GET("/demandes/:id", handler.handleGetRequest)
	api.POST("/demandes/:id/annuler", handler.handleCancelRequest)
	api.GET("/demandes/:id/devis", handler.handleListQuotes)
	api.GET("/demandes/:id/photographes", handler.handleMatchProviders)

	api.POST("/devis", handler.handleCreateQuote)
	api.POST("/devis/:id/lu", handler.handleMarkQuoteRead)
	api.POST("/devis/:id/accepter", handler.handleAcceptQuote)
	api.POST("/devis/:id/refuser", handler.handleRefuseQuote)

	api.GET("/photographes/:id/profil", handler.handleGetProfile)
	api.PUT("/photographes/:id/profil", handler.handleSaveProfile)
	api.GET("/photographes/:id/disponibilite", handler.handleAvailability)
	api.GET("/photographes/:id/demandes", handler.handleMatchRequests)

	api.GET("/reservations/:id", handler.handleGetReservation)
	api.POST("/reservations/:id/statut", handler.handleUpdateReservationStatus)
	api.POST("/reservations/:id/avis", handler.handleSubmitReview)

	api.GET("/notifications", handler.handleListNotifications)
	api.POST("/notifications/:id/lu", handler.handleMarkNotificationRead)
	api.POST("/appareils", handler.handleRegisterDevice)

	return router
}

// Serve runs server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, server *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("photobook api listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(requestCtx)
		ctx.Next()
	}
}

func (handler *Handler) respondError(ctx *gin.Context, operation string, err error) {
	normalized := apperror.Normalize(err)
	status := apperror.HTTPStatus(normalized.Kind)
	if status >= http.StatusInternalServerError {
		handler.logger.Error(operation+" failed",
			zap.String("kind", string(normalized.Kind)),
			zap.Error(err))
	} else {
		handler.logger.Debug(operation+" rejected",
			zap.String("kind", string(normalized.Kind)),
			zap.Error(err))
	}
	ctx.JSON(status, errorResponse(string(normalized.Kind), normalized.UserMessage))
}

func (handler *Handler) respondInvalid(ctx *gin.Context, result validation.Result) {
	response := errorResponse(string(apperror.KindValidation), apperror.UserMessage(apperror.KindValidation))
	response["error"].(gin.H)["champs"] = result.Errors
	ctx.JSON(http.StatusBadRequest, response)
}

// bindForm decodes the JSON body into form and validates it. It writes the
// error response itself and reports whether the handler may continue.
func (handler *Handler) bindForm(ctx *gin.Context, form interface{}) bool {
	if err := ctx.ShouldBindJSON(form); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(string(apperror.KindInvalidInput), apperror.UserMessage(apperror.KindInvalidInput)))
		return false
	}
	if result := handler.validator.Validate(form); !result.IsValid {
		handler.respondInvalid(ctx, result)
		return false
	}
	return true
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
