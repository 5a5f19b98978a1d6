package booking

import (
	"context"
	"time"
)

// Store is the persistence contract used by Service. Every Update method
// is conditional on the current status and returns ErrStatusConflict when no
// row matched.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	InsertRequest(ctx context.Context, request ClientRequest) error
	GetRequest(ctx context.Context, requestID RequestID) (ClientRequest, error)
	ListOpenRequests(ctx context.Context, at time.Time) ([]ClientRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID RequestID, from RequestStatus, to RequestStatus) error
	SaveRequestProviders(ctx context.Context, requestID RequestID, notified []UserID, interested []UserID) error

	InsertQuote(ctx context.Context, quote Quote) error
	GetQuote(ctx context.Context, quoteID QuoteID) (Quote, error)
	ListQuotes(ctx context.Context, requestID RequestID) ([]Quote, error)
	UpdateQuoteStatus(ctx context.Context, quoteID QuoteID, to QuoteStatus, at time.Time, from ...QuoteStatus) error
	LinkQuoteReservation(ctx context.Context, quoteID QuoteID, reservationID ReservationID) error
	RefuseSiblingQuotes(ctx context.Context, requestID RequestID, acceptedQuoteID QuoteID) (int64, error)

	InsertReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, reservationID ReservationID) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID ReservationID, to ReservationStatus, from ...ReservationStatus) error
	UpdatePaymentStatus(ctx context.Context, reservationID ReservationID, from PaymentStatus, to PaymentStatus, sessionID string) error
	ListOverlappingReservations(ctx context.Context, providerID UserID, slot TimeSlot, statuses ...ReservationStatus) ([]Reservation, error)

	ExpireQuotes(ctx context.Context, at time.Time) (int64, error)
	ExpireRequests(ctx context.Context, at time.Time) (int64, error)
	ExpireUnpaidReservations(ctx context.Context, at time.Time) (int64, error)

	UpsertProviderProfile(ctx context.Context, profile ProviderProfile) error
	GetProviderProfile(ctx context.Context, providerID UserID) (ProviderProfile, error)
	ListAvailableProfiles(ctx context.Context) ([]ProviderProfile, error)

	InsertReview(ctx context.Context, review Review) error
}

// PaymentLookup resolves a checkout session with the payment provider.
type PaymentLookup interface {
	LookupSession(ctx context.Context, sessionID string) (PaymentSession, error)
}
