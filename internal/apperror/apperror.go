// Package apperror classifies failures from every layer into a small fixed
// taxonomy carrying a developer message and a user-facing message.
package apperror

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MarkoPoloResearchLab/photobook/internal/notify"
	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind is the machine code of a normalized error.
type Kind string

const (
	KindNotFound               Kind = "DB_NOT_FOUND"
	KindConstraint             Kind = "DB_CONSTRAINT"
	KindConnection             Kind = "DB_CONNECTION"
	KindAuthInvalid            Kind = "AUTH_INVALID"
	KindAuthExpired            Kind = "AUTH_EXPIRED"
	KindAuthRequired           Kind = "AUTH_REQUIRED"
	KindForbidden              Kind = "AUTH_FORBIDDEN"
	KindValidation             Kind = "VALIDATION_FAILED"
	KindInvalidInput           Kind = "INVALID_INPUT"
	KindStateConflict          Kind = "STATE_CONFLICT"
	KindNetwork                Kind = "NETWORK_ERROR"
	KindTimeout                Kind = "TIMEOUT"
	KindPaymentFailed          Kind = "PAYMENT_FAILED"
	KindPaymentSessionNotFound Kind = "PAYMENT_SESSION_NOT_FOUND"
	KindUnknown                Kind = "UNKNOWN"
)

const (
	pgClassIntegrity   = "23"
	pgClassConnection  = "08"
	sqliteConstraint   = 19
	sqliteCannotOpen   = 14
	sqlitePrimaryMask  = 0xFF
	unknownUserMessage = "Une erreur inattendue est survenue. Veuillez réessayer."
)

// ErrAuthRequired is returned when a protected operation has no caller.
var ErrAuthRequired = errors.New("authentication required")

var userMessages = map[Kind]string{
	KindNotFound:               "L'élément demandé est introuvable.",
	KindConstraint:             "Cette opération entre en conflit avec des données existantes.",
	KindConnection:             "Le service est momentanément indisponible.",
	KindAuthInvalid:            "Votre session est invalide. Veuillez vous reconnecter.",
	KindAuthExpired:            "Votre session a expiré. Veuillez vous reconnecter.",
	KindAuthRequired:           "Vous devez être connecté pour effectuer cette action.",
	KindForbidden:              "Vous n'êtes pas autorisé à effectuer cette action.",
	KindValidation:             "Certains champs sont invalides.",
	KindInvalidInput:           "Les informations fournies sont invalides.",
	KindStateConflict:          "Cette action n'est plus possible dans l'état actuel.",
	KindNetwork:                "Problème de connexion. Vérifiez votre réseau.",
	KindTimeout:                "Le service a mis trop de temps à répondre.",
	KindPaymentFailed:          "Le paiement n'a pas pu être traité.",
	KindPaymentSessionNotFound: "Session de paiement introuvable.",
	KindUnknown:                unknownUserMessage,
}

// Error is a classified failure. Message is for logs, UserMessage for display.
type Error struct {
	Kind        Kind
	Message     string
	UserMessage string
	Err         error
}

func (appError *Error) Error() string {
	return string(appError.Kind) + ": " + appError.Message
}

func (appError *Error) Unwrap() error {
	return appError.Err
}

// UserMessage returns the display text for kind.
func UserMessage(kind Kind) string {
	if message, ok := userMessages[kind]; ok {
		return message
	}
	return unknownUserMessage
}

// New builds an Error of the given kind around err.
func New(kind Kind, err error) *Error {
	message := string(kind)
	if err != nil {
		message = err.Error()
	}
	return &Error{Kind: kind, Message: message, UserMessage: UserMessage(kind), Err: err}
}

// Normalize classifies err. It returns nil for nil, and an already
// normalized error unchanged.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var appError *Error
	if errors.As(err, &appError) {
		return appError
	}
	return New(classify(err), err)
}

func classify(err error) Kind {
	if kind, ok := classifyDomain(err); ok {
		return kind
	}
	if kind, ok := classifyDatabase(err); ok {
		return kind
	}
	if errors.Is(err, ErrAuthRequired) {
		return KindAuthRequired
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return KindAuthExpired
	}
	if isJWTError(err) {
		return KindAuthInvalid
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return KindValidation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netError net.Error
	if errors.As(err, &netError) {
		if netError.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

func classifyDomain(err error) (Kind, bool) {
	switch {
	case errors.Is(err, booking.ErrRequestNotFound),
		errors.Is(err, booking.ErrQuoteNotFound),
		errors.Is(err, booking.ErrReservationNotFound),
		errors.Is(err, booking.ErrProfileNotFound),
		errors.Is(err, notify.ErrNotificationNotFound):
		return KindNotFound, true
	case errors.Is(err, booking.ErrForbidden):
		return KindForbidden, true
	case errors.Is(err, booking.ErrRequestClosed),
		errors.Is(err, booking.ErrQuoteExists),
		errors.Is(err, booking.ErrQuoteNotAcceptable),
		errors.Is(err, booking.ErrQuoteNotRefusable),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrStatusConflict),
		errors.Is(err, booking.ErrReviewExists),
		errors.Is(err, booking.ErrReviewNotAllowed):
		return KindStateConflict, true
	case errors.Is(err, booking.ErrPaymentSessionNotFound):
		return KindPaymentSessionNotFound, true
	case errors.Is(err, booking.ErrPaymentAmountMismatch),
		errors.Is(err, booking.ErrPaymentUnavailable):
		return KindPaymentFailed, true
	case errors.Is(err, booking.ErrInvalidUserID),
		errors.Is(err, booking.ErrInvalidRequestID),
		errors.Is(err, booking.ErrInvalidQuoteID),
		errors.Is(err, booking.ErrInvalidReservationID),
		errors.Is(err, booking.ErrInvalidAmountCents),
		errors.Is(err, booking.ErrInvalidSchedule),
		errors.Is(err, booking.ErrInvalidCategory),
		errors.Is(err, booking.ErrInvalidBudget),
		errors.Is(err, booking.ErrInvalidRating),
		errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, notify.ErrInvalidDeviceToken):
		return KindInvalidInput, true
	}
	return "", false
}

func classifyDatabase(err error) (Kind, bool) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound, true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return KindConstraint, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, pgClassIntegrity):
			return KindConstraint, true
		case strings.HasPrefix(pgErr.Code, pgClassConnection):
			return KindConnection, true
		}
		return KindUnknown, true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return KindConnection, true
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & sqlitePrimaryMask {
		case sqliteConstraint:
			return KindConstraint, true
		case sqliteCannotOpen:
			return KindConnection, true
		}
		return KindUnknown, true
	}
	return "", false
}

func isJWTError(err error) bool {
	for _, sentinel := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenInvalidClaims,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenRequiredClaimMissing,
		jwt.ErrInvalidKey,
		jwt.ErrInvalidKeyType,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// HTTPStatus maps a kind onto a response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound, KindPaymentSessionNotFound:
		return http.StatusNotFound
	case KindConstraint, KindStateConflict:
		return http.StatusConflict
	case KindAuthInvalid, KindAuthExpired, KindAuthRequired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindInvalidInput:
		return http.StatusBadRequest
	case KindConnection:
		return http.StatusServiceUnavailable
	case KindNetwork, KindPaymentFailed:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
