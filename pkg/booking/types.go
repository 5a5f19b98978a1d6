package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/photobook/pkg/matching"
)

// AmountCents is an integer currency in euro cents.
type AmountCents int64

// Int64 exposes the raw cents value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// NewAmountCents validates a non-negative amount.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// UserID identifies a client or a provider account.
type UserID struct {
	value string
}

// RequestID identifies a client request.
type RequestID struct {
	value string
}

// QuoteID identifies a quote.
type QuoteID struct {
	value string
}

// ReservationID identifies a reservation.
type ReservationID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidUserID)
	return UserID{value: trimmed}, err
}

// NewRequestID validates and normalizes a request id.
func NewRequestID(raw string) (RequestID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidRequestID)
	return RequestID{value: trimmed}, err
}

// NewQuoteID validates and normalizes a quote id.
func NewQuoteID(raw string) (QuoteID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidQuoteID)
	return QuoteID{value: trimmed}, err
}

// NewReservationID validates and normalizes a reservation id.
func NewReservationID(raw string) (ReservationID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidReservationID)
	return ReservationID{value: trimmed}, err
}

func (id UserID) String() string        { return id.value }
func (id RequestID) String() string     { return id.value }
func (id QuoteID) String() string       { return id.value }
func (id ReservationID) String() string { return id.value }

// IsZero reports whether the reservation id is unset.
func (id ReservationID) IsZero() bool { return id.value == "" }

func normalizeIdentifier(raw string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", sentinel)
	}
	return trimmed, nil
}

// RequestStatus is the lifecycle state of a client request.
type RequestStatus string

const (
	RequestStatusOpen      RequestStatus = "ouverte"
	RequestStatusFilled    RequestStatus = "pourvue"
	RequestStatusCancelled RequestStatus = "annulee"
	RequestStatusExpired   RequestStatus = "expiree"
)

// QuoteStatus is the lifecycle state of a quote.
type QuoteStatus string

const (
	QuoteStatusSent     QuoteStatus = "envoye"
	QuoteStatusRead     QuoteStatus = "lu"
	QuoteStatusAccepted QuoteStatus = "accepte"
	QuoteStatusRefused  QuoteStatus = "refuse"
	QuoteStatusExpired  QuoteStatus = "expire"
)

// ReservationStatus is the booking state of a reservation.
type ReservationStatus string

const (
	ReservationStatusPendingPayment ReservationStatus = "en_attente_paiement"
	ReservationStatusConfirmed      ReservationStatus = "confirmee"
	ReservationStatusInProgress     ReservationStatus = "en_cours"
	ReservationStatusCompleted      ReservationStatus = "terminee"
	ReservationStatusCancelled      ReservationStatus = "annulee"
)

// PaymentStatus is the payment state of a reservation.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "en_attente"
	PaymentStatusPaid     PaymentStatus = "paye"
	PaymentStatusFailed   PaymentStatus = "echoue"
	PaymentStatusRefunded PaymentStatus = "rembourse"
)

func (status RequestStatus) String() string     { return string(status) }
func (status QuoteStatus) String() string       { return string(status) }
func (status ReservationStatus) String() string { return string(status) }
func (status PaymentStatus) String() string     { return string(status) }

// ParseRequestStatus validates a stored request status.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	switch status := RequestStatus(strings.TrimSpace(raw)); status {
	case RequestStatusOpen, RequestStatusFilled, RequestStatusCancelled, RequestStatusExpired:
		return status, nil
	}
	return "", fmt.Errorf("%w: request status %q", ErrInvalidStatus, raw)
}

// ParseQuoteStatus validates a stored quote status.
func ParseQuoteStatus(raw string) (QuoteStatus, error) {
	switch status := QuoteStatus(strings.TrimSpace(raw)); status {
	case QuoteStatusSent, QuoteStatusRead, QuoteStatusAccepted, QuoteStatusRefused, QuoteStatusExpired:
		return status, nil
	}
	return "", fmt.Errorf("%w: quote status %q", ErrInvalidStatus, raw)
}

// ParseReservationStatus validates a stored reservation status.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch status := ReservationStatus(strings.TrimSpace(raw)); status {
	case ReservationStatusPendingPayment, ReservationStatusConfirmed, ReservationStatusInProgress,
		ReservationStatusCompleted, ReservationStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: reservation status %q", ErrInvalidStatus, raw)
}

// ParsePaymentStatus validates a stored payment status.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch status := PaymentStatus(strings.TrimSpace(raw)); status {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return status, nil
	}
	return "", fmt.Errorf("%w: payment status %q", ErrInvalidStatus, raw)
}

// Location is where a shoot takes place.
type Location struct {
	Address     string
	City        string
	PostalCode  string
	Coordinates *matching.Coordinates
}

// ClientRequest ("demande") is a client's posted request awaiting quotes.
type ClientRequest struct {
	ID                  RequestID
	ClientID            UserID
	CategoryID          string
	Title               string
	Description         string
	StartsAt            time.Time
	DurationMinutes     int
	Location            Location
	BudgetMin           AmountCents
	BudgetMax           AmountCents
	Status              RequestStatus
	QuotesReceived      int
	NotifiedProviders   []UserID
	InterestedProviders []UserID
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// MatchingCriteria projects the request onto the scoring input.
func (request ClientRequest) MatchingCriteria() matching.Request {
	return matching.Request{
		CategoryID:     request.CategoryID,
		PostalCode:     request.Location.PostalCode,
		Coordinates:    request.Location.Coordinates,
		BudgetMaxCents: request.BudgetMax.Int64(),
	}
}

// QuoteOption is an optional extra line of a quote.
type QuoteOption struct {
	Name  string      `json:"nom"`
	Price AmountCents `json:"prix"`
}

// Quote ("devis") is a provider's priced proposal against a request.
type Quote struct {
	ID            QuoteID
	RequestID     RequestID
	ProviderID    UserID
	BaseRate      AmountCents
	TravelFee     AmountCents
	Options       []QuoteOption
	Discount      AmountCents
	Total         AmountCents
	ValidityDays  int
	Message       string
	Status        QuoteStatus
	ReadAt        *time.Time
	ReservationID ReservationID
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Live reports whether the quote can still move to accepted or refused.
func (quote Quote) Live() bool {
	return quote.Status == QuoteStatusSent || quote.Status == QuoteStatusRead
}

// Reservation is a booking created from an accepted quote.
type Reservation struct {
	ID               ReservationID
	QuoteID          QuoteID
	RequestID        RequestID
	ClientID         UserID
	ProviderID       UserID
	StartsAt         time.Time
	DurationMinutes  int
	Location         Location
	Total            AmountCents
	Status           ReservationStatus
	PaymentStatus    PaymentStatus
	PaymentSessionID string
	CreatedAt        time.Time
}

// EndsAt returns the end of the booked slot.
func (reservation Reservation) EndsAt() time.Time {
	return reservation.StartsAt.Add(time.Duration(reservation.DurationMinutes) * time.Minute)
}

// TimeSlot is a half-open interval [Start, End).
type TimeSlot struct {
	Start time.Time `json:"debut"`
	End   time.Time `json:"fin"`
}

// Overlaps reports whether two slots intersect.
func (slot TimeSlot) Overlaps(other TimeSlot) bool {
	return slot.Start.Before(other.End) && slot.End.After(other.Start)
}

// ProviderProfile ("profil photographe") describes a provider's offer.
type ProviderProfile struct {
	ProviderID         UserID
	Specializations    []string
	Styles             []string
	TravelRadiusKm     float64
	MinimumPrice       AmountCents
	City               string
	PostalCode         string
	Coordinates        *matching.Coordinates
	Verification       matching.Verification
	GenerallyAvailable bool
	BlockedSlots       []TimeSlot
}

// MatchingProfile projects the profile onto the scoring input.
func (profile ProviderProfile) MatchingProfile() matching.Profile {
	return matching.Profile{
		Specializations:   profile.Specializations,
		PostalCode:        profile.PostalCode,
		Coordinates:       profile.Coordinates,
		TravelRadiusKm:    profile.TravelRadiusKm,
		MinimumPriceCents: profile.MinimumPrice.Int64(),
		Verification:      profile.Verification,
	}
}

// Review ("avis") is a client's rating of a completed reservation.
type Review struct {
	ID            string
	ReservationID ReservationID
	ClientID      UserID
	ProviderID    UserID
	Rating        int
	Comment       string
	CreatedAt     time.Time
}

// PaymentSession is the checkout session state reported by the payment provider.
type PaymentSession struct {
	SessionID     string
	ReservationID ReservationID
	Status        PaymentStatus
	Amount        AmountCents
}

// SweepResult counts the entities moved to expired by one sweep.
type SweepResult struct {
	QuotesExpired       int64
	RequestsExpired     int64
	ReservationsExpired int64
}
