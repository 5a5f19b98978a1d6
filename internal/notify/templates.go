package notify

import (
	"fmt"
	"strconv"

	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
)

func render(event booking.Event) (string, string) {
	data := event.Data
	switch event.Type {
	case booking.EventNewRequest:
		title := "Nouvelle demande"
		if data[booking.EventKeyTitle] != "" {
			return title, fmt.Sprintf("Une demande correspond à votre profil : %s", data[booking.EventKeyTitle])
		}
		return title, "Une nouvelle demande correspond à votre profil."
	case booking.EventNewQuote:
		return "Nouveau devis", fmt.Sprintf("Vous avez reçu un devis de %s.", formatEuros(data[booking.EventKeyAmountCents]))
	case booking.EventQuoteRead:
		return "Devis consulté", "Le client a consulté votre devis."
	case booking.EventQuoteAccepted:
		return "Devis accepté", "Votre devis a été accepté. La réservation attend le paiement."
	case booking.EventQuoteRefused:
		return "Devis refusé", "Votre devis n'a pas été retenu."
	case booking.EventRequestFilled:
		return "Demande pourvue", "Votre réservation est créée. Finalisez le paiement pour la confirmer."
	case booking.EventReservationUpdated:
		return "Réservation mise à jour", fmt.Sprintf("Nouveau statut : %s.", statusLabel(data[booking.EventKeyStatus]))
	case booking.EventPaymentConfirmed:
		return "Paiement confirmé", fmt.Sprintf("Le paiement de %s est confirmé.", formatEuros(data[booking.EventKeyAmountCents]))
	case booking.EventReviewReceived:
		return "Nouvel avis", fmt.Sprintf("Vous avez reçu un avis : %s/5.", data[booking.EventKeyRating])
	}
	return "Notification", "Vous avez une nouvelle notification."
}

func formatEuros(rawCents string) string {
	cents, err := strconv.ParseInt(rawCents, 10, 64)
	if err != nil {
		return "montant inconnu"
	}
	return fmt.Sprintf("%d,%02d €", cents/100, cents%100)
}

func statusLabel(raw string) string {
	switch booking.ReservationStatus(raw) {
	case booking.ReservationStatusPendingPayment:
		return "en attente de paiement"
	case booking.ReservationStatusConfirmed:
		return "confirmée"
	case booking.ReservationStatusInProgress:
		return "en cours"
	case booking.ReservationStatusCompleted:
		return "terminée"
	case booking.ReservationStatusCancelled:
		return "annulée"
	}
	return raw
}
