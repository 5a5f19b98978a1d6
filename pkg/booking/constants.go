package booking

import "time"

const (
	operationCreateRequest     = "create_request"
	operationCancelRequest     = "cancel_request"
	operationMatchProviders    = "match_providers"
	operationCreateQuote       = "create_quote"
	operationMarkQuoteRead     = "mark_quote_read"
	operationAcceptQuote       = "accept_quote"
	operationRefuseQuote       = "refuse_quote"
	operationUpdateReservation = "update_reservation"
	operationConfirmPayment    = "confirm_payment"
	operationSubmitReview      = "submit_review"
	operationSaveProfile       = "save_profile"
	operationSweep             = "sweep"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// RequestLifetime is how long a request stays open without being filled.
	RequestLifetime = 30 * 24 * time.Hour
	// DefaultQuoteValidityDays applies when a quote states no validity window.
	DefaultQuoteValidityDays = 7

	minimumRating = 1
	maximumRating = 5
)
