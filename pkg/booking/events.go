package booking

import (
	"context"
	"strconv"
)

// EventType tags a lifecycle event. Values double as notification types.
type EventType string

const (
	EventNewRequest         EventType = "nouvelle_demande"
	EventNewQuote           EventType = "nouveau_devis"
	EventQuoteRead          EventType = "devis_lu"
	EventQuoteAccepted      EventType = "devis_accepte"
	EventQuoteRefused       EventType = "devis_refuse"
	EventRequestFilled      EventType = "demande_pourvue"
	EventReservationUpdated EventType = "reservation_mise_a_jour"
	EventPaymentConfirmed   EventType = "paiement_confirme"
	EventReviewReceived     EventType = "nouvel_avis"
)

// Metadata keys carried by events.
const (
	EventKeyRequestID     = "demande_id"
	EventKeyQuoteID       = "devis_id"
	EventKeyReservationID = "reservation_id"
	EventKeyAmountCents   = "montant_cents"
	EventKeyStatus        = "statut"
	EventKeyScore         = "score"
	EventKeyTitle         = "titre"
	EventKeyRating        = "note"
)

// Event is one lifecycle change addressed to a set of recipients.
type Event struct {
	Type       EventType
	Recipients []UserID
	Data       map[string]string
}

// EventNotifier delivers lifecycle events. Implementations own their own
// failure handling; Service never sees delivery errors.
type EventNotifier interface {
	Notify(ctx context.Context, event Event)
}

func (service *Service) emit(ctx context.Context, events ...Event) {
	if service.notifier == nil {
		return
	}
	for _, event := range events {
		if len(event.Recipients) == 0 {
			continue
		}
		service.notifier.Notify(ctx, event)
	}
}

func quoteEventData(quote Quote) map[string]string {
	data := map[string]string{
		EventKeyRequestID:   quote.RequestID.String(),
		EventKeyQuoteID:     quote.ID.String(),
		EventKeyAmountCents: strconv.FormatInt(quote.Total.Int64(), 10),
	}
	if !quote.ReservationID.IsZero() {
		data[EventKeyReservationID] = quote.ReservationID.String()
	}
	return data
}

func reservationEventData(reservation Reservation) map[string]string {
	return map[string]string{
		EventKeyRequestID:     reservation.RequestID.String(),
		EventKeyQuoteID:       reservation.QuoteID.String(),
		EventKeyReservationID: reservation.ID.String(),
		EventKeyAmountCents:   strconv.FormatInt(reservation.Total.Int64(), 10),
		EventKeyStatus:        reservation.Status.String(),
	}
}
